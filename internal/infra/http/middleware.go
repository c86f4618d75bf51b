package http

import (
	"time"

	"nftcate/internal/observability/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// requestLogger attaches a request-scoped zap logger and logs one line per request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		log := logger.L().With(logger.RequestID(requestID))
		c.Request = c.Request.WithContext(logger.ToContext(c.Request.Context(), log))

		var done func(int)
		if s.metrics != nil {
			done = s.metrics.RequestStarted(c.Request.Method, c.FullPath())
		}
		started := time.Now()
		c.Next()

		status := c.Writer.Status()
		if done != nil {
			done(status)
		}
		fields := []zap.Field{
			logger.Method(c.Request.Method),
			logger.Route(c.FullPath()),
			logger.Status(status),
			logger.ClientIP(c.ClientIP()),
			logger.Duration(time.Since(started)),
		}
		if principal, ok := getPrincipal(c); ok {
			fields = append(fields, logger.Subject(principal.Subject))
		}
		switch {
		case status >= 500:
			log.Error("request failed", fields...)
		case status >= 400:
			log.Warn("request rejected", fields...)
		default:
			log.Info("request served", fields...)
		}
	}
}
