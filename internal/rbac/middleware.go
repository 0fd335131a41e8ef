package rbac

import (
	"net/http"

	"cally-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequireTenant enforces the multi-tenant invariant: tenant_id must exist in context.
// This does not validate membership; that belongs to the authorization layer once persistence exists.
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tid, err := auth.TenantID(c.Request.Context())
		if err != nil || tid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
			return
		}
		c.Next()
	}
}

// RequireAnyRole allows access if the caller has any of the provided roles.
// Rules:
// - super_admin bypasses all checks
// - support is a hidden role, and will be denied unless explicitly allowed
// - tenant isolation is enforced via RequireTenant (use it in the chain)
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}

		// super_admin bypasses all
		if IsSuperAdmin(role) {
			c.Next()
			return
		}

		// hidden roles are opt-in only
		if IsHiddenRole(role) {
			if _, ok := allowedSet[role]; !ok {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
				return
			}
		}

		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
