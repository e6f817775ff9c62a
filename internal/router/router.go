package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/litmusq-backend/internal/config"
	"github.com/stemsi/litmusq-backend/internal/handler"
	"github.com/stemsi/litmusq-backend/internal/logger"
	"github.com/stemsi/litmusq-backend/internal/middleware"
	"github.com/stemsi/litmusq-backend/internal/response"
	"github.com/stemsi/litmusq-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Bank    *handler.BankHandler
	Session *handler.SessionHandler
	History *handler.HistoryHandler
	WS      *handler.WSHandler
	System  *handler.SystemHandler
}

// Limiters are the rate limiters applied to route groups. main sweeps them.
type Limiters struct {
	Commands *middleware.RateLimiter
	Imports  *middleware.RateLimiter
}

// NewLimiters builds the default limiters: bursts of commands from a busy
// candidate are fine, bank imports are rare.
func NewLimiters() *Limiters {
	return &Limiters{
		Commands: middleware.NewRateLimiter(120, time.Minute),
		Imports:  middleware.NewRateLimiter(10, time.Minute),
	}
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	limiters *Limiters,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID first so the request log and every envelope carry it.
	router.Use(response.RequestIDMiddleware())
	router.Use(logger.RequestLogger(log, response.ContextKeyRequestID))
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)

	api := router.Group("/api/v1")

	// ─── 0. Public Group (No Auth) ─────────────────────────────────────
	api.GET("/banks", middleware.CacheControl(60), handlers.Bank.ListBanks)

	// ─── 1. Admin Group ────────────────────────────────────────────────
	admin := api.Group("/admin")
	admin.Use(middleware.RequireJWT(authService), middleware.RequireRole(service.RoleAdmin))
	{
		admin.POST("/banks", limiters.Imports.Middleware(), handlers.Bank.ImportBank)
		admin.GET("/system/metrics", handlers.System.SystemMetricsSSE)
	}

	// ─── 2. Candidate Group ────────────────────────────────────────────
	candidate := api.Group("")
	candidate.Use(middleware.RequireJWT(authService), middleware.NoStore(), limiters.Commands.Middleware())
	{
		sessions := candidate.Group("/sessions")
		sessions.POST("", handlers.Session.StartSession)
		sessions.GET("/active", handlers.Session.GetActiveSession)
		sessions.GET("/:id", handlers.Session.GetSession)
		sessions.POST("/:id/goto", handlers.Session.GoTo)
		sessions.POST("/:id/next", handlers.Session.Next)
		sessions.POST("/:id/previous", handlers.Session.Previous)
		sessions.PUT("/:id/answers/:index", handlers.Session.Answer)
		sessions.DELETE("/:id/answers/:index", handlers.Session.ClearAnswer)
		sessions.POST("/:id/marks/:index", handlers.Session.ToggleMark)
		sessions.POST("/:id/submit", handlers.Session.Submit)

		history := candidate.Group("/history")
		history.GET("", handlers.History.ListHistory)
		history.GET("/:result_id", handlers.History.GetResult)
		history.DELETE("/:result_id", handlers.History.DeleteResult)
		history.POST("/:result_id/retest", handlers.History.Retest)
	}

	// ─── 3. WebSocket Group ────────────────────────────────────────────
	wsGroup := router.Group("/ws/v1")
	wsGroup.Use(middleware.RequireWSAuth(authService))
	{
		wsGroup.GET("/sessions/:id/stream", handlers.WS.SessionStream)
	}

	return router
}
