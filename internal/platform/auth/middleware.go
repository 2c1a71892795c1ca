package auth

import (
	"strings"

	httpPlatform "github.com/haloestate/leadpipe/internal/platform/http"
	"github.com/gin-gonic/gin"
)

// ServiceAuthMiddleware validates the bearer service token guarding the
// pipeline's admin kick endpoints and review endpoints.
func ServiceAuthMiddleware(tokenManager *ServiceTokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httpPlatform.RespondWithError(c, 401, "UNAUTHORIZED", "Authorization header required")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httpPlatform.RespondWithError(c, 401, "UNAUTHORIZED", "Invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := tokenManager.ValidateToken(parts[1])
		if err != nil {
			httpPlatform.RespondWithError(c, 401, "UNAUTHORIZED", "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set("service_subject", claims.Subject)
		c.Next()
	}
}

// GetServiceSubject extracts the calling service's subject from context.
func GetServiceSubject(c *gin.Context) (string, bool) {
	subject, exists := c.Get("service_subject")
	if !exists {
		return "", false
	}
	return subject.(string), true
}

// MustGetServiceSubject extracts the subject or writes a 401 response and
// reports failure, for handlers that cannot proceed without it.
func MustGetServiceSubject(c *gin.Context) (string, bool) {
	subject, exists := GetServiceSubject(c)
	if !exists {
		httpPlatform.RespondWithError(c, 401, "UNAUTHORIZED", "Authentication required")
		return "", false
	}
	return subject, true
}
