// Package middleware provides the HTTP middlewares shared by the kiosk
// API: request logging, clerk authentication, and request metrics.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smartscale/kiosk/internal/auth"
)

const (
	// ClerkIDKey is the gin context key for the authenticated clerk ID.
	ClerkIDKey = "clerk_id"
	// ClerkNameKey is the gin context key for the authenticated clerk name.
	ClerkNameKey = "clerk_name"
)

// ClerkID extracts the authenticated clerk ID from the request context.
// Returns empty string if not set.
func ClerkID(c *gin.Context) string {
	id, _ := c.Get(ClerkIDKey)
	s, _ := id.(string)
	return s
}

// RequestLogger logs every request with method, path, status, and
// duration.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"clerk_id", ClerkID(c),
		}
		if status >= http.StatusInternalServerError {
			slog.Error("request failed", attrs...)
		} else if status >= http.StatusBadRequest {
			slog.Warn("request rejected", attrs...)
		} else {
			slog.Info("request", attrs...)
		}
	}
}

// RequireClerk validates the Bearer token and stores the clerk identity
// in the request context. Requests without a valid token get 401.
func RequireClerk(jwtManager *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrMissingToken.Error()})
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		if token == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header must use Bearer scheme"})
			return
		}

		claims, err := jwtManager.Validate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrInvalidToken.Error()})
			return
		}

		c.Set(ClerkIDKey, claims.ClerkID)
		c.Set(ClerkNameKey, claims.ClerkName)
		c.Next()
	}
}
