package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bantay-backend/internal/api/handlers"
	"bantay-backend/internal/api/middleware"
	"bantay-backend/internal/models"
	"bantay-backend/pkg/jwt"
	"bantay-backend/pkg/logger"
	"bantay-backend/pkg/metrics"
	"bantay-backend/pkg/ratelimit"
)

type Handlers struct {
	Auth      *handlers.AuthHandler
	Alerts    *handlers.AlertHandler
	Rescue    *handlers.RescueHandler
	Users     *handlers.UserHandler
	Health    *handlers.HealthHandler
	WebSocket *handlers.WebSocketHandler
}

// Options carries the cross-cutting pieces the router needs. Limiter and
// Metrics may be nil.
type Options struct {
	Tokens          *jwt.JWTUtil
	Limiter         ratelimit.RateLimiter
	RateLimitConfig *ratelimit.Config
	Metrics         *metrics.Metrics
	Logger          *zap.Logger
	AllowedOrigins  []string
}

var (
	alertEditors = []string{models.RoleAdmin, models.RoleOfficial}
	rescueStaff  = []string{models.RoleAdmin, models.RoleOfficial, models.RoleResponder}
	admins       = []string{models.RoleAdmin}
)

// NewRouter builds the engine with the global middleware chain and every route.
func NewRouter(h Handlers, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		logger.GinMiddleware(opts.Logger),
		opts.Metrics.GinMiddleware(),
		cors.New(CORSConfig(opts.AllowedOrigins)),
	)
	SetupRoutes(router, h, opts)
	return router
}

// CORSConfig allows the configured frontends. A lone "*" allows any origin
// without credentials.
func CORSConfig(origins []string) cors.Config {
	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", "Upgrade", "Connection", "Sec-WebSocket-Key", "Sec-WebSocket-Version", "Sec-WebSocket-Protocol"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Burst", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	} else {
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
	}
	return corsConfig
}

func SetupRoutes(router *gin.Engine, h Handlers, opts Options) {
	limit := func() gin.HandlerFunc {
		if opts.Limiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		cfg := opts.RateLimitConfig
		if cfg == nil {
			cfg = ratelimit.DefaultConfig()
		}
		return middleware.RateLimitMiddleware(opts.Limiter, cfg, opts.Logger)
	}()
	auth := middleware.AuthMiddleware(opts.Tokens)

	router.GET("/health", limit, h.Health.HealthCheck)
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}
	router.GET("/ws", h.WebSocket.HandleWebSocket)

	api := router.Group("/api/v1")

	// Public routes are limited per IP, protected ones per user.
	public := api.Group("/auth", limit)
	{
		public.POST("/register", h.Auth.Register)
		public.POST("/login", h.Auth.Login)
		public.POST("/forgot-password", h.Auth.ForgotPassword)
		public.POST("/reset-password", h.Auth.ResetPassword)
		public.POST("/verify-email", h.Auth.VerifyEmail)
		public.POST("/resend-verification", h.Auth.ResendVerification)
	}

	protected := api.Group("", auth, limit)

	account := protected.Group("/auth")
	{
		account.POST("/refresh", h.Auth.RefreshToken)
		account.GET("/profile", h.Auth.GetProfile)
		account.PATCH("/profile", h.Auth.UpdateProfile)
		account.POST("/change-password", h.Auth.ChangePassword)
	}

	alerts := protected.Group("/alerts")
	{
		alerts.GET("", h.Alerts.GetAlerts)
		alerts.GET("/active", h.Alerts.GetActiveAlerts)
		alerts.GET("/nearby", h.Alerts.GetNearbyAlerts)
		alerts.GET("/statistics", middleware.RequireRoles(alertEditors...), h.Alerts.GetStatistics)
		alerts.GET("/:id", h.Alerts.GetAlert)
		alerts.POST("/:id/acknowledge", h.Alerts.AcknowledgeAlert)

		editors := alerts.Group("", middleware.RequireRoles(alertEditors...))
		editors.POST("", h.Alerts.CreateAlert)
		editors.PATCH("/:id", h.Alerts.UpdateAlert)
		editors.POST("/:id/publish", h.Alerts.PublishAlert)
		editors.POST("/:id/extend", h.Alerts.ExtendAlert)
		editors.POST("/:id/deactivate", h.Alerts.DeactivateAlert)
		editors.POST("/:id/cancel", h.Alerts.CancelAlert)
	}

	rescue := protected.Group("/rescue-requests")
	{
		rescue.GET("", h.Rescue.GetRescueRequests)
		rescue.POST("", h.Rescue.CreateRescueRequest)
		rescue.GET("/nearby", middleware.RequireRoles(rescueStaff...), h.Rescue.GetNearbyRescueRequests)
		rescue.GET("/:id", h.Rescue.GetRescueRequest)
		rescue.POST("/:id/notes", h.Rescue.AddNote)
		rescue.PATCH("/:id/status", middleware.RequireRoles(rescueStaff...), h.Rescue.UpdateStatus)
		rescue.POST("/:id/assign", middleware.RequireRoles(alertEditors...), h.Rescue.AssignResponder)
	}

	users := protected.Group("/users")
	{
		users.GET("/:id", h.Users.GetUser)

		adminOnly := users.Group("", middleware.RequireRoles(admins...))
		adminOnly.GET("", h.Users.GetUsers)
		adminOnly.POST("", h.Users.CreateUser)
		adminOnly.PATCH("/:id/status", h.Users.ChangeUserStatus)
	}

	protected.GET("/realtime/stats", middleware.RequireRoles(alertEditors...), h.WebSocket.GetConnectedClients)
}
