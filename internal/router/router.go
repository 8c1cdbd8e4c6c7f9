package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/proficiency-backend/internal/config"
	"github.com/stemsi/proficiency-backend/internal/handler"
	"github.com/stemsi/proficiency-backend/internal/metrics"
	"github.com/stemsi/proficiency-backend/internal/middleware"
	"github.com/stemsi/proficiency-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Exam      *handler.ExamHandler
	Presence  *handler.PresenceHandler
	Integrity *handler.IntegrityHandler
	Reviewer  *handler.ReviewerHandler
	Content   *handler.ContentHandler
	WS        *handler.WSHandler
	System    *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// presenceLimiter guards the presence heartbeat; its cleanup loop is run by
// the caller.
func SetupRouter(
	auth middleware.TokenValidator,
	handlers *Handlers,
	presenceLimiter *middleware.RateLimiter,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", response.HeaderRequestID}
	corsConfig.ExposeHeaders = []string{response.HeaderRequestID}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(metrics.MetricsMiddleware())

	// Apply brotli middleware globally. SSE and WebSocket pass through.
	router.Use(middleware.Brotli())

	// Probes.
	router.GET("/health", handlers.System.Health)
	router.GET("/metrics", metrics.PrometheusHandler())

	// ─── 1. Examinee Group (JWT, role examinee) ────────────────────────
	examineeAPI := router.Group("/api/v1/examinee")
	examineeAPI.Use(middleware.RequireExaminee(auth), middleware.NoStore())
	{
		examineeAPI.POST("/attempts", handlers.Exam.GenerateAttempt)
		examineeAPI.POST("/attempts/submit", handlers.Exam.SubmitAttempt)
		examineeAPI.GET("/results", handlers.Exam.GetMyResults)
		examineeAPI.POST("/integrity-events", handlers.Integrity.ReportEvent)

		presence := examineeAPI.Group("/presence")
		presence.Use(presenceLimiter.Middleware())
		{
			presence.POST("/start", handlers.Presence.Start)
			presence.POST("/ping", handlers.Presence.Ping)
			presence.POST("/stop", handlers.Presence.Stop)
		}
	}

	// ─── 2. WebSocket Group (Examinee WS Auth) ─────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireExamineeWSAuth(auth), presenceLimiter.Middleware())
	{
		ws.GET("/examinee/presence", handlers.WS.PresenceStream)
	}

	// ─── 3. Reviewer Group (JWT, role reviewer or admin) ───────────────
	reviewerAPI := router.Group("/api/v1/reviewer")
	reviewerAPI.Use(middleware.RequireReviewer(auth))
	{
		reviewerAPI.GET("/examinees/:examinee_id/cheating-events", handlers.Reviewer.ListCheatingEvents)
		reviewerAPI.GET("/examinees/:examinee_id/attempts", handlers.Reviewer.ListAttempts)
		reviewerAPI.GET("/examinees/:examinee_id/results", handlers.Reviewer.ListResults)
		reviewerAPI.GET("/integrity/stream", handlers.Reviewer.IntegrityStream)
		reviewerAPI.GET("/system/status", handlers.System.Status)

		reviewerAPI.GET("/content/mcq", handlers.Content.ListMCQ)
		reviewerAPI.POST("/content/mcq", handlers.Content.CreateMCQ)
		reviewerAPI.DELETE("/content/mcq/:id", handlers.Content.DeleteMCQ)
	}

	return router
}
