package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"transaction-summary-api/internal/api"
	"transaction-summary-api/internal/config"
	"transaction-summary-api/internal/database"
	"transaction-summary-api/internal/metrics"
	"transaction-summary-api/internal/services"
	"transaction-summary-api/pkg/logging"

	"github.com/gin-gonic/gin"
)

func main() {
	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to initialize config:", err)
	}

	// Initialize logging
	logging.InitLogging(cfg.LogLevel)

	// Initialize database
	store, err := database.Open(cfg)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer store.Close()

	// Summary cache is optional
	var cache services.SummaryCache = services.NoopSummaryCache{}
	if cfg.RedisURL != "" {
		rc, err := services.NewRedisSummaryCache(context.Background(), cfg.RedisURL, cfg.SummaryCacheTTL)
		if err != nil {
			log.Fatal("Failed to initialize Redis:", err)
		}
		cache = rc
		logging.Infof("Summary cache enabled (ttl=%s)", cfg.SummaryCacheTTL)
	} else {
		logging.Infof("REDIS_URL not set, summary cache disabled")
	}
	defer cache.Close()

	var rec *metrics.Recorder
	if cfg.MetricsEnabled {
		if rec, err = metrics.New(); err != nil {
			log.Fatal("Failed to initialize metrics:", err)
		}
	}

	// Set Gin mode
	gin.SetMode(cfg.Mode)

	// Create Gin engine
	r := gin.Default()

	// Setup routes
	api.SetupRoutes(r, api.Dependencies{
		Uploader:       services.NewIngestService(store, cache, rec, cfg.BatchSize),
		Summarizer:     services.NewSummaryService(store, cache, rec),
		Health:         store,
		Metrics:        rec,
		ServiceName:    cfg.ServiceName,
		MaxUploadBytes: cfg.MaxUploadBytes(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server
	go func() {
		logging.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Infof("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Errorf("Server forced to shutdown: %v", err)
	}
}
