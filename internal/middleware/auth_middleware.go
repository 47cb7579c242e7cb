// internal/middleware/auth_middleware.go
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"modelmart-service/internal/pkg/jwt"
	"modelmart-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthMiddleware struct {
	verifier *jwt.Verifier
}

func NewAuthMiddleware(verifier *jwt.Verifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
	}
}

// Auth is the base authentication middleware that validates JWT tokens
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing authorization token", nil)
			return
		}

		claims, err := m.verifier.Verify(token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", err)
			return
		}

		// Set caller context
		c.Set("identity_id", claims.IdentityID)
		c.Set("jti", claims.ID)
		c.Set("roles", claims.Roles)

		c.Next()
	}
}

// RequireRole middleware that requires the caller to have at least one of the
// specified roles. MUST be used after Auth() middleware
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		callerRoles := GetRoles(c)
		if len(callerRoles) == 0 {
			response.Error(c, http.StatusForbidden, "no roles found - authentication required", nil)
			return
		}

		hasRole := false
		for _, callerRole := range callerRoles {
			for _, requiredRole := range roles {
				if callerRole == requiredRole {
					hasRole = true
					break
				}
			}
			if hasRole {
				break
			}
		}

		if !hasRole {
			err := errors.New("caller does not have required role")
			response.Error(c, http.StatusForbidden, "insufficient permissions", err, map[string]interface{}{
				"required_roles": roles,
			})
			return
		}

		c.Next()
	}
}

// OperatorOnly returns middlewares for operator-only routes (Auth + RequireRole)
func (m *AuthMiddleware) OperatorOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireRole("operator", "admin"),
	}
}

// extractToken extracts Bearer token from Authorization header
func extractToken(c *gin.Context) string {
	// Try header first
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	// Fallback to query param, needed for websocket clients that cannot set headers
	token := c.Query("token")
	if token != "" {
		return token
	}

	return ""
}

// Helper function to get identity ID from context
func GetIdentityID(c *gin.Context) (int64, bool) {
	identityID, exists := c.Get("identity_id")
	if !exists {
		return 0, false
	}

	id, ok := identityID.(int64)
	return id, ok
}
