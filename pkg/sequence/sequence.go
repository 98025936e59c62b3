// Package sequence issues human-readable daily codes such as ALT-20250314-007.
package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dayLayout = "20060102"

// Counter atomically increments the named counter and returns the new value.
type Counter interface {
	Increment(ctx context.Context, key string) (int64, error)
}

// Generator turns a Counter into per-day codes. Counter keys are "<PREFIX>-YYYYMMDD",
// so every prefix starts again from 1 at local midnight.
type Generator struct {
	counter Counter
	loc     *time.Location
	now     func() time.Time
}

func NewGenerator(counter Counter, loc *time.Location) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{counter: counter, loc: loc, now: time.Now}
}

// WithClock overrides the time source.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Next returns the next code for prefix on the current local day.
func (g *Generator) Next(ctx context.Context, prefix string) (string, error) {
	day := g.now().In(g.loc).Format(dayLayout)
	seq, err := g.counter.Increment(ctx, DayKey(prefix, day))
	if err != nil {
		return "", fmt.Errorf("sequence %s: %w", prefix, err)
	}
	return Format(prefix, day, seq), nil
}

func DayKey(prefix, day string) string {
	return prefix + "-" + day
}

// Format renders a code; the sequence is padded to three digits and widens past 999.
func Format(prefix, day string, seq int64) string {
	return fmt.Sprintf("%s-%s-%03d", prefix, day, seq)
}

// RedisCounter keeps counters as plain INCR keys that expire after two days.
type RedisCounter struct {
	client    redis.Cmdable
	keyPrefix string
	ttl       time.Duration
}

func NewRedisCounter(client redis.Cmdable, keyPrefix string) *RedisCounter {
	return &RedisCounter{client: client, keyPrefix: keyPrefix, ttl: 48 * time.Hour}
}

func (c *RedisCounter) Increment(ctx context.Context, key string) (int64, error) {
	fullKey := c.keyPrefix + "seq:" + key

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
