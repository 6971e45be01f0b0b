package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const adminKeyHeader = "X-Admin-Key"

// requireAdmin guards registry and issuer routes. Without ADMIN_API_KEY the
// admin surface is closed.
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.adminAPIKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "admin api disabled"})
			return
		}
		key := strings.TrimSpace(c.GetHeader(adminKeyHeader))
		if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.adminAPIKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "admin key required"})
			return
		}
		c.Next()
	}
}
