package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	logger "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Logger"
	metrics "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Metrics"
)

// Key types for request context
type contextKey string

const (
	RequestIDContextKey contextKey = "request_id"
	LoggerContextKey    contextKey = "request_logger"

	RequestIDHeader = "X-Request-ID"
)

// RequestID tags every request with an id, reusing the caller's X-Request-ID when present
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(string(RequestIDContextKey), id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestLogger logs each request through zerolog and records HTTP metrics
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqLog := log.WithRequestID(GetRequestIDFromGinContext(c))
		c.Set(string(LoggerContextKey), reqLog)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		duration := time.Since(start)
		metrics.ObserveHTTP(route, c.Request.Method, status, duration)

		event := reqLog.Logger.Info()
		if status >= 500 {
			event = reqLog.Logger.Error()
		} else if status >= 400 {
			event = reqLog.Logger.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("route", route).
			Int("status", status).
			Dur("latency", duration).
			Str("client_ip", c.ClientIP()).
			Msg("request handled")
	}
}

// GetRequestIDFromGinContext returns the request id set by RequestID
func GetRequestIDFromGinContext(c *gin.Context) string {
	if v, ok := c.Get(string(RequestIDContextKey)); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// GetLoggerFromGinContext returns the request-scoped logger, or fallback
func GetLoggerFromGinContext(c *gin.Context, fallback *logger.Logger) *logger.Logger {
	if v, ok := c.Get(string(LoggerContextKey)); ok {
		if l, ok := v.(*logger.Logger); ok {
			return l
		}
	}
	return fallback
}
