package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"bantay-backend/internal/websocket"
	"bantay-backend/pkg/cache"
	"bantay-backend/pkg/ratelimit"
	"bantay-backend/pkg/redis"
)

// MongoPinger is satisfied by *mongo.Client.
type MongoPinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

type RedisHealth interface {
	HealthCheck() redis.HealthStatus
	GetConnectionStats() map[string]interface{}
}

type CacheHealth interface {
	HealthCheck(ctx context.Context) error
	GetCacheStats(ctx context.Context) cache.CacheStats
}

type HubStats interface {
	GetClientStats() websocket.ClientStats
}

type HealthHandler struct {
	mongo   MongoPinger
	redis   RedisHealth
	cache   CacheHealth
	hub     HubStats
	limiter ratelimit.RateLimiter
}

type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Services  map[string]interface{} `json:"services"`
}

// NewHealthHandler accepts nil for any dependency that is not configured.
func NewHealthHandler(mongo MongoPinger, redis RedisHealth, alertCache CacheHealth, hub HubStats, limiter ratelimit.RateLimiter) *HealthHandler {
	return &HealthHandler{mongo: mongo, redis: redis, cache: alertCache, hub: hub, limiter: limiter}
}

// HealthCheck reports 503 only when MongoDB is down. Redis or the alert cache
// being unreachable degrades caching and shared rate limits but the API keeps serving.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Services:  make(map[string]interface{}),
	}

	mongoStatus := h.checkMongoDB(c.Request.Context())
	response.Services["mongodb"] = mongoStatus

	redisStatus := h.checkRedis()
	response.Services["redis"] = redisStatus

	cacheHealthy := true
	if h.cache != nil {
		cacheStatus := h.checkCache(c.Request.Context())
		response.Services["cache"] = cacheStatus
		cacheHealthy = cacheStatus["healthy"].(bool)
	}

	if h.hub != nil {
		response.Services["websocket"] = h.hub.GetClientStats()
	}
	if h.limiter != nil {
		response.Services["rateLimiter"] = h.limiter.GetStats()
	}

	if !redisStatus["healthy"].(bool) || !cacheHealthy {
		response.Status = "degraded"
	}
	if !mongoStatus["healthy"].(bool) {
		response.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *HealthHandler) checkMongoDB(ctx context.Context) map[string]interface{} {
	status := map[string]interface{}{
		"service": "mongodb",
		"healthy": false,
	}
	if h.mongo == nil {
		status["error"] = "Database client not initialized"
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := h.mongo.Ping(ctx, readpref.Primary()); err != nil {
		status["error"] = err.Error()
		return status
	}
	status["healthy"] = true
	status["message"] = "Connected"
	status["responseTime"] = time.Since(start).String()
	return status
}

func (h *HealthHandler) checkCache(ctx context.Context) map[string]interface{} {
	status := map[string]interface{}{
		"service": "cache",
		"healthy": false,
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := h.cache.HealthCheck(ctx); err != nil {
		status["error"] = err.Error()
		return status
	}
	status["healthy"] = true
	status["stats"] = h.cache.GetCacheStats(ctx)
	return status
}

func (h *HealthHandler) checkRedis() map[string]interface{} {
	status := map[string]interface{}{
		"service": "redis",
		"healthy": false,
	}
	if h.redis == nil {
		status["error"] = "Redis client not initialized"
		return status
	}

	healthStatus := h.redis.HealthCheck()
	status["healthy"] = healthStatus.IsConnected
	status["connectionInfo"] = healthStatus.ConnectionInfo
	status["responseTime"] = healthStatus.ResponseTime.String()
	status["lastPing"] = healthStatus.LastPing
	if healthStatus.Error != "" {
		status["error"] = healthStatus.Error
	}
	status["connectionStats"] = h.redis.GetConnectionStats()
	return status
}
