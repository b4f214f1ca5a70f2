package middlewares

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/cafe-pos/utils"
)

// PrometheusMiddleware records latency per route template, not raw path.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		utils.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		utils.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
