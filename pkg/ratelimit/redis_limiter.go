package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript counts requests in the current window and reports the
// milliseconds left until the window resets when the request is refused.
var fixedWindowScript = redis.NewScript(`
local key = KEYS[1]
local burst = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])

local count = redis.call('INCR', key)
if count == 1 then
	redis.call('PEXPIRE', key, window_ms)
end

if count > burst then
	local ttl = redis.call('PTTL', key)
	if ttl < 0 then
		redis.call('PEXPIRE', key, window_ms)
		ttl = window_ms
	end
	return {0, ttl}
end
return {1, 0}
`)

// RedisRateLimiter shares counters across every API instance.
type RedisRateLimiter struct {
	client redis.Scripter
	config *Config

	total   int64
	blocked int64
}

func NewRedisRateLimiter(client redis.Scripter, config *Config) *RedisRateLimiter {
	if config == nil {
		config = DefaultConfig()
	}
	return &RedisRateLimiter{client: client, config: config}
}

func (r *RedisRateLimiter) Allow(ctx context.Context, clientID, category string) (bool, time.Duration, error) {
	if !r.config.Enabled {
		return true, 0, nil
	}
	atomic.AddInt64(&r.total, 1)

	limit := r.config.LimitFor(category)
	key := fmt.Sprintf("%s%s:%s", r.config.RedisKeyPrefix, category, clientID)

	res, err := fixedWindowScript.Run(ctx, r.client, []string{key}, limit.BurstSize, limit.WindowSize.Milliseconds()).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("unexpected rate limit script result %v", res)
	}

	if res[0] == 1 {
		return true, 0, nil
	}
	atomic.AddInt64(&r.blocked, 1)
	return false, time.Duration(res[1]) * time.Millisecond, nil
}

func (r *RedisRateLimiter) Limit(category string) RateLimit {
	return r.config.LimitFor(category)
}

func (r *RedisRateLimiter) GetStats() RateLimiterStats {
	return RateLimiterStats{
		TotalRequests:   atomic.LoadInt64(&r.total),
		BlockedRequests: atomic.LoadInt64(&r.blocked),
	}
}
