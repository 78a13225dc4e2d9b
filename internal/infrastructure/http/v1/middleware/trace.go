package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appctx "stockbook/internal/core/context"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderTraceID   = "X-Trace-ID"
)

// Trace middleware adds request tracing context.
// Incoming trace headers are honoured, missing ones generated.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		traceID := c.GetHeader(HeaderTraceID)
		if traceID == "" {
			traceID = uuid.New().String()
		}

		trace := &appctx.TraceContext{
			TraceID:   traceID,
			RequestID: requestID,
		}

		ctx := appctx.WithTrace(c.Request.Context(), trace)
		c.Request = c.Request.WithContext(ctx)

		c.Set("trace_id", traceID)
		c.Set("request_id", requestID)

		c.Header(HeaderRequestID, requestID)
		c.Header(HeaderTraceID, traceID)

		c.Next()
	}
}
