package middleware

import (
	"fmt"
	"hash/fnv"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bantay-backend/pkg/ratelimit"
)

// RateLimitMiddleware throttles requests per client and route category. A
// limiter failure lets the request through.
func RateLimitMiddleware(limiter ratelimit.RateLimiter, cfg *ratelimit.Config, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		category := cfg.Category(c.Request.Method, routeOf(c))
		clientID := getClientID(c)

		allowed, retryAfter, err := limiter.Allow(c.Request.Context(), clientID, category)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("category", category), zap.Error(err))
			c.Header("X-RateLimit-Error", "Rate limiter unavailable")
			c.Next()
			return
		}

		setRateLimitHeaders(c, limiter.Limit(category), allowed, retryAfter)

		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success":    false,
				"message":    fmt.Sprintf("Too many requests. Try again in %v", retryAfter.Round(time.Second)),
				"error":      gin.H{"code": "RATE_LIMIT_EXCEEDED", "message": "Rate limit exceeded"},
				"retryAfter": retrySeconds(retryAfter),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// routeOf prefers the matched route template so ids do not split buckets.
func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return c.Request.URL.Path
}

// getClientID identifies the caller: authenticated user first, then IP and user agent.
func getClientID(c *gin.Context) string {
	if uid := c.GetString(ContextUserID); uid != "" {
		return "user:" + uid
	}
	return fmt.Sprintf("anon:%s:%s", getClientIP(c), hashString(c.GetHeader("User-Agent")))
}

func getClientIP(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		ips := strings.Split(forwarded, ",")
		return strings.TrimSpace(ips[0])
	}
	if realIP := c.GetHeader("X-Real-IP"); realIP != "" {
		return realIP
	}
	return c.ClientIP()
}

func hashString(s string) string {
	if s == "" {
		return "unknown"
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return strconv.FormatUint(uint64(h.Sum32()), 16)
}

func retrySeconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}

func setRateLimitHeaders(c *gin.Context, limit ratelimit.RateLimit, allowed bool, retryAfter time.Duration) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(limit.RequestsPerMinute))
	c.Header("X-RateLimit-Window", strconv.Itoa(int(limit.WindowSize.Seconds())))
	c.Header("X-RateLimit-Burst", strconv.Itoa(limit.BurstSize))

	if !allowed {
		c.Header("Retry-After", strconv.Itoa(retrySeconds(retryAfter)))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(retryAfter).Unix(), 10))
	}
}
