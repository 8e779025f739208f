package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/leozw/vessel-guardian/internal/tenant"
)

// Tenant resolves the tenant from verified claims only. Request parameters never
// select the tenant.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, exists := c.Get("claims")
		if !exists {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Claims not found"})
			c.Abort()
			return
		}
		claims, ok := raw.(*Claims)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Claims not found"})
			c.Abort()
			return
		}

		tid, err := tenant.Require(claims.Organization)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "Organization not found in token"})
			c.Abort()
			return
		}

		c.Set("tenant_id", string(tid))
		c.Request = c.Request.WithContext(tenant.WithTenant(c.Request.Context(), tid))

		c.Next()
	}
}
