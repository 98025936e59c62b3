package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisClient "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bantay-backend/internal/models"
)

func setupManager(t *testing.T) (*miniredis.Miniredis, *RedisCacheManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisClient.NewClient(&redisClient.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	config := DefaultCacheConfig()
	config.KeyPrefix = "test:"
	config.TagPrefix = "test_tag:"
	return mr, NewRedisCacheManager(client, config, nil)
}

func sampleAlerts() []*models.Alert {
	return []*models.Alert{
		{ID: primitive.NewObjectID(), AlertID: "ALT-20250314-001", Title: "Flood Warning", Severity: models.SeverityWarning},
		{ID: primitive.NewObjectID(), AlertID: "ALT-20250314-002", Title: "Storm Watch", Severity: models.SeverityWatch},
	}
}

func TestRedisCacheManager_AlertListRoundTrip(t *testing.T) {
	_, manager := setupManager(t)
	ctx := context.Background()

	t.Run("Miss", func(t *testing.T) {
		alerts, ok, err := manager.GetAlertList(ctx, "area:centro")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, alerts)
	})

	t.Run("Hit", func(t *testing.T) {
		require.NoError(t, manager.SetAlertList(ctx, "area:centro", sampleAlerts(), time.Minute, TagActiveAlerts))

		alerts, ok, err := manager.GetAlertList(ctx, "area:centro")
		require.NoError(t, err)
		assert.True(t, ok)
		require.Len(t, alerts, 2)
		assert.Equal(t, "Flood Warning", alerts[0].Title)
	})

	stats := manager.GetCacheStats(ctx)
	assert.Equal(t, int64(1), stats.TotalHits)
	assert.Equal(t, int64(1), stats.TotalMisses)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
}

func TestRedisCacheManager_InvalidateByTag(t *testing.T) {
	mr, manager := setupManager(t)
	ctx := context.Background()

	require.NoError(t, manager.SetAlertList(ctx, "area:centro", sampleAlerts(), time.Minute, TagActiveAlerts))
	require.NoError(t, manager.SetAlertList(ctx, "area:all", sampleAlerts(), time.Minute, TagActiveAlerts))
	assert.True(t, mr.Exists("test:alert_list:area:centro"))

	require.NoError(t, manager.InvalidateByTag(ctx, TagActiveAlerts))

	assert.False(t, mr.Exists("test:alert_list:area:centro"))
	assert.False(t, mr.Exists("test:alert_list:area:all"))
	assert.False(t, mr.Exists("test_tag:tag_keys:"+TagActiveAlerts))
	assert.Equal(t, 2, manager.GetCacheStats(ctx).EvictionCount)

	// Invalidating an empty tag is a no-op.
	assert.NoError(t, manager.InvalidateByTag(ctx, "unused"))
}

func TestRedisCacheManager_TTL(t *testing.T) {
	mr, manager := setupManager(t)
	ctx := context.Background()

	require.NoError(t, manager.SetAlertList(ctx, "short", sampleAlerts(), time.Second))
	mr.FastForward(2 * time.Second)

	_, ok, err := manager.GetAlertList(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCacheManager_GetCacheStats(t *testing.T) {
	mr, manager := setupManager(t)
	ctx := context.Background()
	require.NoError(t, mr.Set("other:key", "x"))

	empty := manager.GetCacheStats(ctx)
	assert.Zero(t, empty.KeyCount)
	assert.Zero(t, empty.HitRate)

	require.NoError(t, manager.SetAlertList(ctx, "area:centro", sampleAlerts(), time.Minute, TagActiveAlerts))
	for i := 0; i < 3; i++ {
		_, _, err := manager.GetAlertList(ctx, "area:centro")
		require.NoError(t, err)
	}
	_, _, err := manager.GetAlertList(ctx, "area:ilaya")
	require.NoError(t, err)

	stats := manager.GetCacheStats(ctx)
	assert.Equal(t, int64(3), stats.TotalHits)
	assert.Equal(t, int64(1), stats.TotalMisses)
	assert.InDelta(t, 0.75, stats.HitRate, 1e-9)
	assert.InDelta(t, 0.25, stats.MissRate, 1e-9)
	assert.Equal(t, 1, stats.KeyCount, "only keys under the cache prefix are counted")
}

func TestRedisCacheManager_HealthCheck(t *testing.T) {
	mr, manager := setupManager(t)
	assert.NoError(t, manager.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, manager.HealthCheck(context.Background()))
}

func TestCacheConfigTTLs(t *testing.T) {
	cfg := DefaultCacheConfig()
	assert.Equal(t, cfg.ActiveAlertsTTL, cfg.GetTTLForDataType(DataTypeActiveAlerts))
	assert.Equal(t, cfg.StatisticsTTL, cfg.GetTTLForDataType(DataTypeStatistics))
	assert.Equal(t, cfg.AlertTTL, cfg.GetTTLForDataType("anything"))
	assert.Equal(t, 2*cfg.StatisticsTTL, cfg.tagTTL())
}
