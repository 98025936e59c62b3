package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// MemoryRateLimiter keeps one token bucket per client and category in process memory.
type MemoryRateLimiter struct {
	config *Config

	mu          sync.Mutex
	buckets     map[string]*bucket
	lastCleanup time.Time
	now         func() time.Time

	total   int64
	blocked int64
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewMemoryRateLimiter(config *Config) *MemoryRateLimiter {
	if config == nil {
		config = DefaultConfig()
	}
	return &MemoryRateLimiter{
		config:      config,
		buckets:     make(map[string]*bucket),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

func (m *MemoryRateLimiter) Allow(_ context.Context, clientID, category string) (bool, time.Duration, error) {
	if !m.config.Enabled {
		return true, 0, nil
	}
	atomic.AddInt64(&m.total, 1)

	limit := m.config.LimitFor(category)
	now := m.now()

	m.mu.Lock()
	m.cleanupLocked(now)
	key := category + ":" + clientID
	b, ok := m.buckets[key]
	if !ok {
		every := limit.WindowSize / time.Duration(max(1, limit.BurstSize))
		b = &bucket{limiter: rate.NewLimiter(rate.Every(every), limit.BurstSize)}
		m.buckets[key] = b
	}
	b.lastSeen = now
	r := b.limiter.ReserveN(now, 1)
	m.mu.Unlock()

	if !r.OK() {
		atomic.AddInt64(&m.blocked, 1)
		return false, limit.WindowSize, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		atomic.AddInt64(&m.blocked, 1)
		return false, delay, nil
	}
	return true, 0, nil
}

// cleanupLocked drops buckets idle for longer than the cleanup interval.
func (m *MemoryRateLimiter) cleanupLocked(now time.Time) {
	if m.config.CleanupInterval <= 0 || now.Sub(m.lastCleanup) < m.config.CleanupInterval {
		return
	}
	for key, b := range m.buckets {
		if now.Sub(b.lastSeen) > m.config.CleanupInterval {
			delete(m.buckets, key)
		}
	}
	m.lastCleanup = now
}

func (m *MemoryRateLimiter) Limit(category string) RateLimit {
	return m.config.LimitFor(category)
}

func (m *MemoryRateLimiter) GetStats() RateLimiterStats {
	m.mu.Lock()
	active := len(m.buckets)
	m.mu.Unlock()
	return RateLimiterStats{
		TotalRequests:   atomic.LoadInt64(&m.total),
		BlockedRequests: atomic.LoadInt64(&m.blocked),
		ActiveClients:   active,
	}
}
