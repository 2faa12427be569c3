package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Middleware validates the bearer token on every protected route and
// stashes the resulting permission set in the gin context, following
// the teacher's AuthMiddleware shape minus the machine-token fallback
// (there is no machine-to-machine auth surface here).
type Middleware struct {
	jwt *JWTHandler
}

func NewMiddleware(jwt *JWTHandler) *Middleware {
	return &Middleware{jwt: jwt}
}

func (m *Middleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := m.jwt.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("username", claims.Username)
		c.Set("role", claims.Role)
		c.Set("permissions", PermissionsForRole(claims.Role))
		c.Next()
	}
}

func RequirePermission(required Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, exists := c.Get("permissions")
		if !exists {
			c.JSON(http.StatusForbidden, gin.H{"error": "no permissions found"})
			c.Abort()
			return
		}

		for _, p := range raw.([]Permission) {
			if p == required {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions", "required": string(required)})
		c.Abort()
	}
}
