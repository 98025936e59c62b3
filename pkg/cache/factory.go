package cache

import (
	"go.uber.org/zap"

	"bantay-backend/pkg/redis"
)

// NewCacheManager builds the Redis-backed cache on top of the shared pool.
func NewCacheManager(client *redis.Client, config CacheConfig, logger *zap.Logger) CacheManager {
	return NewRedisCacheManager(client.GetClient(), config, logger)
}
