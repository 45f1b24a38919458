package router

import (
	"net/http"
	"time"

	"github.com/Duell10111/artemis-exam-agent/internal/config"
	"github.com/Duell10111/artemis-exam-agent/internal/handler"
	"github.com/Duell10111/artemis-exam-agent/internal/middleware"
	"github.com/Duell10111/artemis-exam-agent/internal/response"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Exam *handler.ExamHandler
	Sync *handler.SyncHandler
	WS   *handler.WSHandler
}

// SetupRouter configures the local bridge the exam UI talks to.
func SetupRouter(handlers *Handlers, cfg *config.Config, log zerolog.Logger) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// Restricted to AllowedOrigins when set, otherwise all origins.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", response.HeaderRequestID}
	corsConfig.ExposeHeaders = []string{response.HeaderRequestID}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestID())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Brotli(middleware.BrotliOptions{
		MinSize:      2048,
		SkipPrefixes: []string{"/ws/", "/health"},
	}))

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Exam state ─────────────────────────────────────────────────
	api := router.Group("/api/v1")
	api.Use(middleware.NoStore())
	{
		api.GET("/exam", handlers.Exam.GetExam)
		api.GET("/participations/:participation_id/submission", handlers.Exam.GetSubmission)
		api.PUT("/participations/:participation_id/submission", handlers.Exam.UpdateSubmission)
	}

	// ─── 2. Synchronization ────────────────────────────────────────────
	sync := api.Group("/sync")
	{
		sync.GET("", handlers.Sync.GetStatus)
		sync.POST("/flush", handlers.Sync.Flush)
	}

	// ─── 3. WebSocket ──────────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/exam/stream", handlers.WS.ExamStream)
	}

	return router
}
