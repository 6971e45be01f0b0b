package http

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const requestIDKey = "request_id"

// requestLogger tags each request with an id and logs its outcome. Paths are
// logged as route templates so nullifiers and credential ids stay out of logs.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		entry := s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"route":      route,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		})
		if c.Writer.Status() >= 500 {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request served")
	}
}
