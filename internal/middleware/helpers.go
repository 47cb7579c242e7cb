// internal/middleware/helpers.go
package middleware

import "github.com/gin-gonic/gin"

// MustGetIdentityID gets identity ID from context or panics
func MustGetIdentityID(c *gin.Context) int64 {
	identityID, exists := GetIdentityID(c)
	if !exists {
		panic("identity_id not found in context")
	}
	return identityID
}

// GetRoles gets caller roles from context
func GetRoles(c *gin.Context) []string {
	roles, exists := c.Get("roles")
	if !exists {
		return []string{}
	}

	rolesList, ok := roles.([]string)
	if !ok {
		return []string{}
	}

	return rolesList
}

// HasRole checks if the caller has a specific role
func HasRole(c *gin.Context, role string) bool {
	for _, r := range GetRoles(c) {
		if r == role {
			return true
		}
	}
	return false
}

// IsAuthenticated checks if request is authenticated
func IsAuthenticated(c *gin.Context) bool {
	_, exists := c.Get("identity_id")
	return exists
}

// IsOperator checks if the caller may use operator surfaces
func IsOperator(c *gin.Context) bool {
	return HasRole(c, "operator") || HasRole(c, "admin")
}
