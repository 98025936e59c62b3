package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"bantay-backend/internal/api/handlers"
	"bantay-backend/internal/api/routes"
	"bantay-backend/internal/config"
	"bantay-backend/internal/repository"
	"bantay-backend/internal/services"
	"bantay-backend/internal/websocket"
	"bantay-backend/pkg/cache"
	"bantay-backend/pkg/cleanup"
	"bantay-backend/pkg/database"
	"bantay-backend/pkg/email"
	"bantay-backend/pkg/jwt"
	"bantay-backend/pkg/metrics"
	"bantay-backend/pkg/ratelimit"
	"bantay-backend/pkg/redis"
	"bantay-backend/pkg/sequence"
	"bantay-backend/pkg/sms"
)

// app owns every long-lived component of the server process.
type app struct {
	Router *gin.Engine

	db       *mongo.Database
	redis    *redis.Client
	hub      *websocket.Manager
	dispatch *services.DispatchQueue
	cleanup  *cleanup.CleanupService
	logger   *zap.Logger

	// stopWorkers cancels the context the background workers run on.
	stopWorkers context.CancelFunc
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	db, err := database.Connect(ctx, cfg.Mongo, log)
	if err != nil {
		return nil, err
	}
	if err := database.EnsureIndexes(ctx, db, log); err != nil {
		log.Warn("index creation incomplete", zap.Error(err))
	}

	redisClient := redis.NewClient(cfg.Redis, log)
	m := metrics.New()
	loc := cfg.Location()
	tokens := jwt.NewJWTUtil(cfg.JWT.Secret, cfg.JWT.Expiry)

	alertRepo := repository.NewAlertRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)
	ackRepo := repository.NewAcknowledgmentRepository(db)
	userRepo := repository.NewUserRepository(db)
	rescueRepo := repository.NewRescueRepository(db)

	ids, err := newIDGenerator(cfg, db, redisClient, loc)
	if err != nil {
		_ = redisClient.Close()
		_ = database.Disconnect(context.Background(), db.Client())
		return nil, err
	}

	hub := websocket.NewManager(log, cfg.AllowedOrigins...)

	var smsSender services.SMSSender
	if cfg.SMS.Enabled {
		smsSender = sms.NewSemaphoreClient(cfg.SMS, log)
	}
	var alertMailer services.AlertMailer
	var accountMailer services.AccountMailer
	if cfg.SMTP.Enabled {
		mailer := email.NewEmailService(cfg.SMTP, log)
		alertMailer, accountMailer = mailer, mailer
	}

	dispatcher := services.NewDispatcher(services.DispatcherDeps{
		Alerts:      alertRepo,
		Deliveries:  deliveryRepo,
		SMS:         smsSender,
		Email:       alertMailer,
		Broadcaster: hub,
		Metrics:     m,
		Logger:      log,
		Location:    loc,
	})
	dispatchQueue := services.NewDispatchQueue(dispatcher, cfg.Dispatch, log)

	cacheConfig := cache.DefaultCacheConfig()
	if cfg.Cache.ActiveAlertsTTL > 0 {
		cacheConfig.ActiveAlertsTTL = cfg.Cache.ActiveAlertsTTL
	}
	if cfg.Cache.KeyPrefix != "" {
		cacheConfig.KeyPrefix = cfg.Cache.KeyPrefix
		cacheConfig.TagPrefix = cfg.Cache.KeyPrefix + "tag:"
	}
	alertCache := cache.NewCacheManager(redisClient, cacheConfig, log)

	alertService := services.NewAlertService(services.AlertServiceDeps{
		Alerts:      alertRepo,
		Audit:       auditRepo,
		Deliveries:  deliveryRepo,
		Acks:        ackRepo,
		Resolver:    services.NewRecipientResolver(userRepo, log),
		IDs:         ids,
		Dispatch:    dispatchQueue,
		Cache:       alertCache,
		Broadcaster: hub,
		Metrics:     m,
		Logger:      log,
		CacheTTL:    cacheConfig.ActiveAlertsTTL,
	})
	ackTracker := services.NewAcknowledgmentTracker(alertRepo, ackRepo, hub, m, log)
	rescueService := services.NewRescueService(rescueRepo, userRepo, ids, hub, log)
	authService := services.NewAuthService(userRepo, tokens, accountMailer, log)
	userService := services.NewUserService(userRepo, log)

	var limiter ratelimit.RateLimiter
	rateConfig := ratelimit.DefaultConfig()
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewFallbackLimiter(
			ratelimit.NewRedisRateLimiter(redisClient.GetClient(), rateConfig),
			ratelimit.NewMemoryRateLimiter(rateConfig),
			log,
		)
	}

	router := routes.NewRouter(routes.Handlers{
		Auth:      handlers.NewAuthHandler(authService),
		Alerts:    handlers.NewAlertHandler(alertService, ackTracker),
		Rescue:    handlers.NewRescueHandler(rescueService),
		Users:     handlers.NewUserHandler(userService),
		Health:    handlers.NewHealthHandler(db.Client(), redisClient, alertCache, hub, limiter),
		WebSocket: handlers.NewWebSocketHandler(hub, tokens, log),
	}, routes.Options{
		Tokens:          tokens,
		Limiter:         limiter,
		RateLimitConfig: rateConfig,
		Metrics:         m,
		Logger:          log,
		AllowedOrigins:  cfg.AllowedOrigins,
	})

	return &app{
		Router:   router,
		db:       db,
		redis:    redisClient,
		hub:      hub,
		dispatch: dispatchQueue,
		cleanup:  cleanup.NewCleanupService(userRepo, cfg.Cleanup.Interval, log),
		logger:   log,
	}, nil
}

// newIDGenerator picks where the per-day PREFIX-YYYYMMDD-NNN counters live.
func newIDGenerator(cfg *config.Config, db *mongo.Database, redisClient *redis.Client, loc *time.Location) (*sequence.Generator, error) {
	switch cfg.Sequence.Backend {
	case "", "mongo":
		return sequence.NewGenerator(repository.NewCounterRepository(db), loc), nil
	case "redis":
		return sequence.NewGenerator(sequence.NewRedisCounter(redisClient.GetClient(), cacheKeyPrefix(cfg)), loc), nil
	default:
		return nil, fmt.Errorf("unknown sequence backend %q", cfg.Sequence.Backend)
	}
}

func cacheKeyPrefix(cfg *config.Config) string {
	if cfg.Cache.KeyPrefix != "" {
		return cfg.Cache.KeyPrefix
	}
	return cache.DefaultCacheConfig().KeyPrefix
}

// Start launches the background workers on a context of their own, so a
// shutdown signal does not stop dispatch while requests are still draining.
func (a *app) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.stopWorkers = cancel
	a.hub.Start()
	a.dispatch.Start(ctx)
	a.cleanup.Start(ctx)
}

// Close stops workers before closing the connections they use. Call it
// after the HTTP server has shut down.
func (a *app) Close() {
	a.cleanup.Stop()
	a.dispatch.Stop()
	if a.stopWorkers != nil {
		a.stopWorkers()
	}
	a.hub.Stop()
	if err := a.redis.Close(); err != nil {
		a.logger.Warn("failed to close redis", zap.Error(err))
	}
	if err := database.Disconnect(context.Background(), a.db.Client()); err != nil {
		a.logger.Warn("failed to disconnect from MongoDB", zap.Error(err))
	}
}
