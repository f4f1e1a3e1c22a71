package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/slotwise/scheduling-service/pkg/jwt"
	"github.com/slotwise/scheduling-service/pkg/logger"
)

// Auth verifies the bearer token on every request and populates the gin
// context with the caller's identity. Grounded on auth-service's
// AuthMiddleware.RequireAuth, trimmed to verification only — this service
// trusts tokens issued elsewhere, it does not mint or refresh them.
func Auth(manager *jwt.Manager, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := jwt.ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if err != nil {
			respondUnauthorized(c, err.Error())
			return
		}

		claims, err := manager.ValidateAccessToken(token)
		if err != nil {
			log.Debug("token validation failed", "error", err)
			respondUnauthorized(c, err.Error())
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("userEmail", claims.Email)
		c.Set("userRole", claims.Role)
		c.Next()
	}
}

// RequireRole aborts with 403 unless the authenticated caller has one of
// the given roles. Must run after Auth.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := c.Get("userRole")
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "missing user context"})
			return
		}
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
	}
}

func respondUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}
