package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"stockbook/internal/metrics"
	"stockbook/pkg/logger"
)

// Logger middleware logs HTTP requests with timing and status, and
// feeds the request duration histogram.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		metrics.RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Observe(latency.Seconds())

		log.WithContext(c.Request.Context()).Infow("http request",
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"status", status,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
			"error", c.Errors.ByType(gin.ErrorTypePrivate).String(),
		)
	}
}
