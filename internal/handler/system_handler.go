package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pragati/exam-engine/internal/response"
	"github.com/rs/zerolog"
)

const healthTimeout = 2 * time.Second

// Dependency is a backing service the health check pings.
type Dependency struct {
	Name string
	Ping func(ctx context.Context) error
}

// SystemHandler reports process health and the state of its dependencies.
type SystemHandler struct {
	deps      []Dependency
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(log zerolog.Logger, deps ...Dependency) *SystemHandler {
	return &SystemHandler{
		deps:      deps,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type healthReport struct {
	Status       string            `json:"status"`
	Uptime       string            `json:"uptime"`
	Goroutines   int               `json:"goroutines"`
	GoVersion    string            `json:"go_version"`
	Dependencies map[string]string `json:"dependencies"`
}

// Health godoc
// GET /health
// 200 when every dependency answers a ping, 503 otherwise.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	report := healthReport{
		Status:       "ok",
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Goroutines:   runtime.NumGoroutine(),
		GoVersion:    runtime.Version(),
		Dependencies: make(map[string]string, len(h.deps)),
	}

	for _, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			h.log.Warn().Err(err).Str("dependency", dep.Name).Msg("Health check failed")
			report.Dependencies[dep.Name] = "down"
			report.Status = "degraded"
			continue
		}
		report.Dependencies[dep.Name] = "up"
	}

	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	response.Success(c, status, report)
}
