package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bantay-backend/internal/config"
)

func testConfig(host, port string) config.RedisConfig {
	return config.RedisConfig{
		Host:               host,
		Port:               port,
		PoolSize:           4,
		MinIdleConns:       0,
		MaxRetries:         0,
		RetryDelay:         10 * time.Millisecond,
		DialTimeout:        200 * time.Millisecond,
		ReadTimeout:        200 * time.Millisecond,
		WriteTimeout:       200 * time.Millisecond,
		PoolTimeout:        200 * time.Millisecond,
		IdleTimeout:        time.Minute,
		IdleCheckFrequency: time.Minute,
	}
}

func TestNewClientAgainstMiniredis(t *testing.T) {
	mr := miniredis.RunT(t)

	client := NewClient(testConfig(mr.Host(), mr.Port()), nil)
	defer client.Close()

	assert.True(t, client.IsConnected())
	require.NoError(t, client.GetClient().Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestHealthCheckDetectsOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewClient(testConfig(mr.Host(), mr.Port()), nil)
	defer client.Close()

	mr.Close()
	status := client.HealthCheck()

	assert.False(t, status.IsConnected)
	assert.NotEmpty(t, status.Error)
	assert.False(t, status.LastPing.IsZero())
	assert.False(t, client.IsConnected())
}

func TestURLTakesPrecedence(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig("unused-host", "1")
	cfg.URL = "redis://" + mr.Addr() + "/0"

	client := NewClient(cfg, nil)
	defer client.Close()

	assert.True(t, client.IsConnected())
	assert.Equal(t, mr.Addr(), client.HealthCheck().ConnectionInfo)
}

func TestGetConnectionStats(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewClient(testConfig(mr.Host(), mr.Port()), nil)
	defer client.Close()

	stats := client.GetConnectionStats()
	for _, key := range []string{"hits", "misses", "timeouts", "totalConns", "idleConns", "staleConns", "isConnected"} {
		assert.Contains(t, stats, key)
	}
}
