package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bantay-backend/internal/models"
)

// RedisCacheManager implements CacheManager using Redis
type RedisCacheManager struct {
	client redis.Cmdable
	config CacheConfig
	stats  *cacheStats
	logger *zap.Logger
}

type cacheStats struct {
	mu            sync.RWMutex
	totalHits     int64
	totalMisses   int64
	evictionCount int64
}

func NewRedisCacheManager(client redis.Cmdable, config CacheConfig, logger *zap.Logger) *RedisCacheManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCacheManager{
		client: client,
		config: config,
		stats:  &cacheStats{},
		logger: logger,
	}
}

// GetAlertList returns a cached alert list; ok is false on a miss.
func (r *RedisCacheManager) GetAlertList(ctx context.Context, key string) ([]*models.Alert, bool, error) {
	var alerts []*models.Alert
	ok, err := r.getJSON(ctx, r.buildKey("alert_list", key), &alerts)
	if err != nil || !ok {
		return nil, ok, err
	}
	return alerts, true, nil
}

// SetAlertList caches an alert list under key and tags it for bulk invalidation.
func (r *RedisCacheManager) SetAlertList(ctx context.Context, key string, alerts []*models.Alert, ttl time.Duration, tags ...string) error {
	cacheKey := r.buildKey("alert_list", key)
	if err := r.setJSON(ctx, cacheKey, alerts, ttl); err != nil {
		return fmt.Errorf("failed to set alert list in cache: %w", err)
	}
	if err := r.tagKey(ctx, cacheKey, tags...); err != nil {
		r.logger.Warn("failed to tag cache key", zap.String("key", cacheKey), zap.Error(err))
	}
	return nil
}

// tagKey records key under every tag.
func (r *RedisCacheManager) tagKey(ctx context.Context, key string, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}
	ttl := r.config.tagTTL()
	pipe := r.client.Pipeline()
	for _, tag := range tags {
		tagKeysKey := r.buildTagKey("tag_keys", tag)
		pipe.SAdd(ctx, tagKeysKey, key)
		pipe.Expire(ctx, tagKeysKey, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// InvalidateByTag deletes every key recorded under tag.
func (r *RedisCacheManager) InvalidateByTag(ctx context.Context, tag string) error {
	tagKeysKey := r.buildTagKey("tag_keys", tag)

	keys, err := r.client.SMembers(ctx, tagKeysKey).Result()
	if err != nil {
		return fmt.Errorf("failed to get keys for tag %s: %w", tag, err)
	}
	if len(keys) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for _, key := range keys {
		pipe.Del(ctx, key)
	}
	pipe.Del(ctx, tagKeysKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to invalidate keys for tag %s: %w", tag, err)
	}

	r.stats.mu.Lock()
	r.stats.evictionCount += int64(len(keys))
	r.stats.mu.Unlock()
	return nil
}

// GetCacheStats reports this process's hit counters alongside the server's
// memory use and the number of keys under the cache prefix.
func (r *RedisCacheManager) GetCacheStats(ctx context.Context) CacheStats {
	r.stats.mu.RLock()
	totalHits := r.stats.totalHits
	totalMisses := r.stats.totalMisses
	evictionCount := r.stats.evictionCount
	r.stats.mu.RUnlock()

	total := totalHits + totalMisses
	var hitRate, missRate float64
	if total > 0 {
		hitRate = float64(totalHits) / float64(total)
		missRate = float64(totalMisses) / float64(total)
	}

	var memoryUsage int64
	if info, err := r.client.Info(ctx, "memory").Result(); err == nil {
		for _, line := range strings.Split(info, "\n") {
			if strings.HasPrefix(line, "used_memory:") {
				value := strings.TrimSpace(strings.TrimPrefix(line, "used_memory:"))
				if v, err := strconv.ParseInt(value, 10, 64); err == nil {
					memoryUsage = v
				}
			}
		}
	}

	keyCount := 0
	iter := r.client.Scan(ctx, 0, r.config.KeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keyCount++
	}

	return CacheStats{
		HitRate:       hitRate,
		MissRate:      missRate,
		MemoryUsage:   memoryUsage,
		KeyCount:      keyCount,
		EvictionCount: int(evictionCount),
		TotalHits:     totalHits,
		TotalMisses:   totalMisses,
	}
}

func (r *RedisCacheManager) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCacheManager) getJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.recordMiss()
			return false, nil
		}
		return false, fmt.Errorf("failed to get %s from cache: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached %s: %w", key, err)
	}
	r.recordHit()
	return true, nil
}

func (r *RedisCacheManager) setJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *RedisCacheManager) buildKey(keyType, identifier string) string {
	return fmt.Sprintf("%s%s:%s", r.config.KeyPrefix, keyType, identifier)
}

func (r *RedisCacheManager) buildTagKey(keyType, identifier string) string {
	return fmt.Sprintf("%s%s:%s", r.config.TagPrefix, keyType, identifier)
}

func (r *RedisCacheManager) recordHit() {
	r.stats.mu.Lock()
	r.stats.totalHits++
	r.stats.mu.Unlock()
}

func (r *RedisCacheManager) recordMiss() {
	r.stats.mu.Lock()
	r.stats.totalMisses++
	r.stats.mu.Unlock()
}
