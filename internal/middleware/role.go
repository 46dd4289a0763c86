package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/releaselayer/backend/pkg/response"
)

// RequireOrgRole allows only callers whose role in the resolved organization is listed.
// Must run after the organization access middleware.
func RequireOrgRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{})
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		roleVal, ok := c.Get(ContextOrgRole)
		if !ok {
			response.Forbidden(c, "missing organization context")
			c.Abort()
			return
		}
		role, _ := roleVal.(string)
		if _, ok := allowed[role]; !ok {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}
