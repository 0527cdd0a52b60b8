package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kontax/green-ledger/internal/models"
)

// claimsKey is the gin context key holding the verified claims.
const claimsKey = "auth_claims"

// RequireAuth verifies the Bearer token and stores its claims in the
// request context.
func RequireAuth(tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := tokens.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireAdmin allows only admin users. Must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return requireRol(models.RolAdmin)
}

// RequireContador allows admins and contadores. Must run after RequireAuth.
func RequireContador() gin.HandlerFunc {
	return requireRol(models.RolAdmin, models.RolContador)
}

func requireRol(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := FromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		for _, rol := range roles {
			if claims.Rol == rol {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient rol"})
	}
}

// FromContext returns the verified claims set by RequireAuth.
func FromContext(c *gin.Context) (*Claims, bool) {
	value, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*Claims)
	return claims, ok
}

// CanAccessEntity reports whether the caller may query entityID's data.
// Admins see everything; other roles only their own entity.
func CanAccessEntity(claims *Claims, entityID string) bool {
	if claims.Rol == models.RolAdmin {
		return true
	}
	return claims.EntityID != nil && *claims.EntityID == entityID
}
