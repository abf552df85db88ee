package middleware

import (
	"time"
	"transaction-summary-api/internal/metrics"

	"github.com/gin-gonic/gin"
)

// MetricsMiddleware observes request latency by method, matched route and status.
func MetricsMiddleware(rec *metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		rec.ObserveRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
