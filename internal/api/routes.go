package api

import (
	"context"
	"net/http"
	"transaction-summary-api/internal/metrics"
	"transaction-summary-api/internal/middleware"

	"github.com/gin-gonic/gin"
)

// HealthChecker reports whether the store is reachable.
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// Dependencies are the collaborators wired into the HTTP layer.
type Dependencies struct {
	Uploader       Uploader
	Summarizer     Summarizer
	Health         HealthChecker
	Metrics        *metrics.Recorder
	ServiceName    string
	MaxUploadBytes int64
}

// Handlers holds the request handlers and their collaborators.
type Handlers struct {
	uploader    Uploader
	summarizer  Summarizer
	health      HealthChecker
	serviceName string
}

// SetupRoutes sets up all routes
func SetupRoutes(r *gin.Engine, deps Dependencies) {
	h := &Handlers{
		uploader:    deps.Uploader,
		summarizer:  deps.Summarizer,
		health:      deps.Health,
		serviceName: deps.ServiceName,
	}
	if h.serviceName == "" {
		h.serviceName = "transaction-summary-api"
	}

	if deps.Metrics != nil {
		r.Use(middleware.MetricsMiddleware(deps.Metrics))
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	// Upload routes
	upload := r.Group("/upload")
	upload.Use(middleware.BodyLimitMiddleware(deps.MaxUploadBytes))
	{
		upload.POST("/", h.UploadData)
		upload.POST("", h.UploadData)
	}

	r.GET("/summary/:user_id", h.GetSummary)

	// Health check
	r.GET("/health", h.Health)
}

// Health reports service liveness and store reachability.
func (h *Handlers) Health(c *gin.Context) {
	status, db := http.StatusOK, "ok"
	if h.health != nil {
		if err := h.health.Healthy(c.Request.Context()); err != nil {
			status, db = http.StatusServiceUnavailable, "unreachable"
		}
	}
	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":   state,
		"service":  h.serviceName,
		"database": db,
	})
}
