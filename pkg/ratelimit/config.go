package ratelimit

import (
	"strings"
	"time"
)

const defaultCategory = "default"

type Config struct {
	DefaultLimits map[string]RateLimit `json:"defaultLimits"`

	// Routes maps "METHOD:/route/template" to a category. A trailing * matches any suffix.
	Routes map[string]string `json:"routes"`

	RedisKeyPrefix  string        `json:"redisKeyPrefix"`
	CleanupInterval time.Duration `json:"cleanupInterval"`
	Enabled         bool          `json:"enabled"`
}

func DefaultConfig() *Config {
	return &Config{
		DefaultLimits: map[string]RateLimit{
			"auth":       {RequestsPerMinute: 10, BurstSize: 10, WindowSize: time.Minute},
			"auth_login": {RequestsPerMinute: 5, BurstSize: 5, WindowSize: time.Minute},
			"auth_reset": {RequestsPerMinute: 3, BurstSize: 3, WindowSize: time.Minute},

			"alerts":        {RequestsPerMinute: 200, BurstSize: 200, WindowSize: time.Minute},
			"alerts_write":  {RequestsPerMinute: 30, BurstSize: 30, WindowSize: time.Minute},
			"alerts_notify": {RequestsPerMinute: 10, BurstSize: 10, WindowSize: time.Minute},
			"acknowledge":   {RequestsPerMinute: 30, BurstSize: 30, WindowSize: time.Minute},

			"rescue":        {RequestsPerMinute: 100, BurstSize: 100, WindowSize: time.Minute},
			"rescue_create": {RequestsPerMinute: 10, BurstSize: 10, WindowSize: time.Minute},

			"users": {RequestsPerMinute: 50, BurstSize: 50, WindowSize: time.Minute},

			"health": {RequestsPerMinute: 1000, BurstSize: 1000, WindowSize: time.Minute},

			defaultCategory: {RequestsPerMinute: 60, BurstSize: 60, WindowSize: time.Minute},
		},
		Routes: map[string]string{
			"POST:/api/v1/auth/login":           "auth_login",
			"POST:/api/v1/auth/forgot-password": "auth_reset",
			"POST:/api/v1/auth/reset-password":  "auth_reset",
			"POST:/api/v1/auth/*":               "auth",
			"GET:/api/v1/auth/*":                "auth",
			"PATCH:/api/v1/auth/*":              "auth",

			"GET:/api/v1/alerts*":                 "alerts",
			"POST:/api/v1/alerts":                 "alerts_write",
			"PATCH:/api/v1/alerts/:id":            "alerts_write",
			"POST:/api/v1/alerts/:id/publish":     "alerts_notify",
			"POST:/api/v1/alerts/:id/acknowledge": "acknowledge",
			"POST:/api/v1/alerts/:id/*":           "alerts_write",

			"GET:/api/v1/rescue-requests*":    "rescue",
			"POST:/api/v1/rescue-requests":    "rescue_create",
			"POST:/api/v1/rescue-requests/*":  "rescue",
			"PATCH:/api/v1/rescue-requests/*": "rescue",

			"GET:/api/v1/users*":    "users",
			"POST:/api/v1/users":    "users",
			"PATCH:/api/v1/users/*": "users",

			"GET:/health": "health",
		},
		RedisKeyPrefix:  "ratelimit:",
		CleanupInterval: 5 * time.Minute,
		Enabled:         true,
	}
}

// Category maps a request to its limit bucket. Exact routes win over wildcard
// patterns, and longer patterns win over shorter ones.
func (c *Config) Category(method, route string) string {
	key := method + ":" + route
	if category, ok := c.Routes[key]; ok {
		return category
	}

	best, bestLen := defaultCategory, -1
	for pattern, category := range c.Routes {
		if !strings.HasSuffix(pattern, "*") {
			continue
		}
		prefix := strings.TrimSuffix(pattern, "*")
		if strings.HasPrefix(key, prefix) && len(prefix) > bestLen {
			best, bestLen = category, len(prefix)
		}
	}
	return best
}

// LimitFor returns the configured limit for category, or the default limit.
func (c *Config) LimitFor(category string) RateLimit {
	if limit, ok := c.DefaultLimits[category]; ok {
		return limit
	}
	if limit, ok := c.DefaultLimits[defaultCategory]; ok {
		return limit
	}
	return RateLimit{RequestsPerMinute: 60, BurstSize: 60, WindowSize: time.Minute}
}
