package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pragati/exam-engine/internal/config"
	"github.com/pragati/exam-engine/internal/handler"
	"github.com/pragati/exam-engine/internal/metrics"
	"github.com/pragati/exam-engine/internal/middleware"
	"github.com/pragati/exam-engine/internal/response"
	"github.com/pragati/exam-engine/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	StudentExam *handler.StudentExamHandler
	WS          *handler.WSHandler
	System      *handler.SystemHandler
}

// Deps carries the shared pieces the middleware chain needs.
type Deps struct {
	Auth          *service.AuthService
	AnswerLimiter *middleware.RateLimiter
	Metrics       *metrics.Metrics
	Gatherer      prometheus.Gatherer
	Log           zerolog.Logger
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(cfg *config.Config, deps Deps, handlers *Handlers) *gin.Engine {
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
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(deps.Log))
	router.Use(deps.Metrics.Middleware())
	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		MinLength:     middleware.DefaultBrotliConfig.MinLength,
		Quality:       middleware.DefaultBrotliConfig.Quality,
		ExcludedPaths: []string{"/metrics"},
	}))

	router.GET("/health", handlers.System.Health)
	if deps.Gatherer != nil {
		router.GET("/metrics", metrics.Handler(deps.Gatherer))
	}

	// ─── 1. Student Group (JWT) ────────────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(deps.Auth))
	{
		studentAPI.GET("/exams", handlers.StudentExam.ListExams)
		studentAPI.GET("/exams/:exam_id/paper", handlers.StudentExam.GetPaper)
		studentAPI.POST("/exams/:exam_id/attempts", handlers.StudentExam.StartAttempt)

		studentAPI.GET("/attempts", handlers.StudentExam.ListAttempts)
		studentAPI.GET("/attempts/:attempt_id", handlers.StudentExam.GetAttempt)
		studentAPI.POST("/attempts/:attempt_id/submit", handlers.StudentExam.SubmitAttempt)
		studentAPI.GET("/attempts/:attempt_id/result", handlers.StudentExam.GetResult)

		answers := studentAPI.Group("")
		if deps.AnswerLimiter != nil {
			answers.Use(deps.AnswerLimiter.Middleware())
		}
		answers.PUT("/attempts/:attempt_id/answers", handlers.StudentExam.RecordAnswer)
	}

	// ─── 2. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(deps.Auth))
	{
		ws.GET("/student/attempts/:attempt_id/stream", handlers.WS.AttemptStream)
	}

	return router
}
