package cleanup

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TokenStore clears password reset tokens whose expiry is before now.
type TokenStore interface {
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

type CleanupService struct {
	store    TokenStore
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewCleanupService(store TokenStore, interval time.Duration, logger *zap.Logger) *CleanupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &CleanupService{
		store:    store,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Start runs one sweep immediately and then one per interval until Stop or ctx is done.
func (s *CleanupService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.logger.Info("starting password reset token cleanup", zap.Duration("interval", s.interval))

	go s.run(ctx)
}

func (s *CleanupService) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.cleanupExpiredTokens(ctx)
	for {
		select {
		case <-ticker.C:
			s.cleanupExpiredTokens(ctx)
		case <-ctx.Done():
			s.logger.Info("stopping password reset token cleanup")
			return
		}
	}
}

// Stop cancels the loop and waits for it to exit.
func (s *CleanupService) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *CleanupService) cleanupExpiredTokens(ctx context.Context) {
	count, err := s.store.ClearExpiredResetTokens(ctx, s.now())
	if err != nil {
		s.logger.Error("failed to clear expired reset tokens", zap.Error(err))
		return
	}
	if count > 0 {
		s.logger.Info("cleared expired password reset tokens", zap.Int64("count", count))
	}
}
