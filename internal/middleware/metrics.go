package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/brightpath-labs/engage-sync-api/internal/service"
)

// Metrics records per-route request counts and latency. Unmatched routes
// are reported under their raw path so 404 noise stays visible.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	if metricsSvc == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			route := c.FullPath()
			if route == "" {
				route = c.Request.URL.Path
			}
			metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
		}()
		c.Next()
	}
}
