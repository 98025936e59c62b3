package cache

import (
	"context"
	"time"

	"bantay-backend/internal/models"
)

// CacheManager is the read-through cache used by the alert listings. The
// stats and health check feed the health endpoint.
type CacheManager interface {
	GetAlertList(ctx context.Context, key string) ([]*models.Alert, bool, error)
	SetAlertList(ctx context.Context, key string, alerts []*models.Alert, ttl time.Duration, tags ...string) error
	InvalidateByTag(ctx context.Context, tag string) error

	GetCacheStats(ctx context.Context) CacheStats
	HealthCheck(ctx context.Context) error
}

type CacheStats struct {
	HitRate       float64 `json:"hitRate"`
	MissRate      float64 `json:"missRate"`
	MemoryUsage   int64   `json:"memoryUsage"`
	KeyCount      int     `json:"keyCount"`
	EvictionCount int     `json:"evictionCount"`
	TotalHits     int64   `json:"totalHits"`
	TotalMisses   int64   `json:"totalMisses"`
}
