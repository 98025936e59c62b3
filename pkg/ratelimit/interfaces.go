package ratelimit

import (
	"context"
	"time"
)

// RateLimiter decides whether clientID may make another request in category.
type RateLimiter interface {
	Allow(ctx context.Context, clientID, category string) (bool, time.Duration, error)
	Limit(category string) RateLimit
	GetStats() RateLimiterStats
}

// RateLimit allows BurstSize requests per WindowSize. RequestsPerMinute is advertised in headers.
type RateLimit struct {
	RequestsPerMinute int           `json:"requestsPerMinute"`
	BurstSize         int           `json:"burstSize"`
	WindowSize        time.Duration `json:"windowSize"`
}

type RateLimiterStats struct {
	TotalRequests   int64 `json:"totalRequests"`
	BlockedRequests int64 `json:"blockedRequests"`
	Fallbacks       int64 `json:"fallbacks"`
	ActiveClients   int   `json:"activeClients"`
}
