package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bantay-backend/internal/config"
)

// Client wraps a pooled go-redis client and tracks reachability in the background.
// The underlying client is never replaced, so callers may hold on to GetClient().
type Client struct {
	client      *redis.Client
	config      config.RedisConfig
	logger      *zap.Logger
	mu          sync.RWMutex
	isConnected bool
	lastPing    time.Time
	cancel      context.CancelFunc
	done        chan struct{}
}

type HealthStatus struct {
	IsConnected    bool          `json:"isConnected"`
	LastPing       time.Time     `json:"lastPing"`
	ResponseTime   time.Duration `json:"responseTime"`
	ConnectionInfo string        `json:"connectionInfo"`
	Error          string        `json:"error,omitempty"`
}

// NewClient builds the pool, pings once and starts the periodic health check.
func NewClient(cfg config.RedisConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		client: redis.NewClient(buildOptions(cfg, logger)),
		config: cfg,
		logger: logger,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	status := c.HealthCheck()
	if status.IsConnected {
		logger.Info("redis connected", zap.String("addr", status.ConnectionInfo))
	} else {
		logger.Warn("redis unreachable, continuing with degraded features",
			zap.String("addr", status.ConnectionInfo),
			zap.String("error", status.Error))
	}

	go c.healthCheckLoop(ctx)
	return c
}

func buildOptions(cfg config.RedisConfig, logger *zap.Logger) *redis.Options {
	var opt *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			logger.Warn("invalid REDIS_URL, falling back to host and port", zap.Error(err))
		} else {
			opt = parsed
		}
	}
	if opt == nil {
		opt = &redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}

	opt.PoolSize = cfg.PoolSize
	opt.MinIdleConns = cfg.MinIdleConns
	opt.MaxRetries = cfg.MaxRetries
	opt.MinRetryBackoff = cfg.RetryDelay
	opt.DialTimeout = cfg.DialTimeout
	opt.ReadTimeout = cfg.ReadTimeout
	opt.WriteTimeout = cfg.WriteTimeout
	opt.PoolTimeout = cfg.PoolTimeout
	opt.ConnMaxIdleTime = cfg.IdleTimeout
	return opt
}

func (c *Client) GetClient() *redis.Client {
	return c.client
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

// HealthCheck pings the server and records the result.
func (c *Client) HealthCheck() HealthStatus {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	status := HealthStatus{ConnectionInfo: c.client.Options().Addr}

	start := time.Now()
	err := c.client.Ping(ctx).Err()
	status.ResponseTime = time.Since(start)
	status.LastPing = time.Now()
	status.IsConnected = err == nil
	if err != nil {
		status.Error = err.Error()
	}

	c.mu.Lock()
	c.isConnected = status.IsConnected
	c.lastPing = status.LastPing
	c.mu.Unlock()

	return status
}

func (c *Client) healthCheckLoop(ctx context.Context) {
	defer close(c.done)

	interval := c.config.IdleCheckFrequency
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			wasConnected := c.IsConnected()
			status := c.HealthCheck()
			switch {
			case wasConnected && !status.IsConnected:
				c.logger.Warn("redis connection lost", zap.String("error", status.Error))
			case !wasConnected && status.IsConnected:
				c.logger.Info("redis connection restored")
			}
		}
	}
}

// Close stops the health check and releases the pool.
func (c *Client) Close() error {
	c.cancel()
	<-c.done
	return c.client.Close()
}

func (c *Client) GetConnectionStats() map[string]interface{} {
	stats := c.client.PoolStats()
	return map[string]interface{}{
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"totalConns":  stats.TotalConns,
		"idleConns":   stats.IdleConns,
		"staleConns":  stats.StaleConns,
		"isConnected": c.IsConnected(),
	}
}
