package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// FallbackLimiter consults primary and switches to secondary for any call where
// primary fails, typically Redis being unreachable.
type FallbackLimiter struct {
	primary   RateLimiter
	secondary RateLimiter
	logger    *zap.Logger
	fallbacks int64
}

func NewFallbackLimiter(primary, secondary RateLimiter, logger *zap.Logger) *FallbackLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackLimiter{primary: primary, secondary: secondary, logger: logger}
}

func (f *FallbackLimiter) Allow(ctx context.Context, clientID, category string) (bool, time.Duration, error) {
	allowed, retry, err := f.primary.Allow(ctx, clientID, category)
	if err == nil {
		return allowed, retry, nil
	}
	if atomic.AddInt64(&f.fallbacks, 1) == 1 {
		f.logger.Warn("rate limiter falling back to memory", zap.Error(err))
	}
	return f.secondary.Allow(ctx, clientID, category)
}

func (f *FallbackLimiter) Limit(category string) RateLimit {
	return f.primary.Limit(category)
}

func (f *FallbackLimiter) GetStats() RateLimiterStats {
	p := f.primary.GetStats()
	s := f.secondary.GetStats()
	return RateLimiterStats{
		TotalRequests:   p.TotalRequests + s.TotalRequests,
		BlockedRequests: p.BlockedRequests + s.BlockedRequests,
		Fallbacks:       atomic.LoadInt64(&f.fallbacks),
		ActiveClients:   s.ActiveClients,
	}
}
