package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wize-works/helpNINJA-sub004/utils"
)

type RoleMiddleware struct{}

func NewRoleMiddleware() *RoleMiddleware {
	return &RoleMiddleware{}
}

func (r *RoleMiddleware) RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetRole(c)
		if role == "" {
			utils.RespondWithUnauthorized(c, "User role not found")
			c.Abort()
			return
		}

		for _, allowedRole := range allowedRoles {
			if role == allowedRole {
				c.Next()
				return
			}
		}

		utils.RespondWithError(c, http.StatusForbidden, "forbidden", "Insufficient permissions", gin.H{
			"required_roles": allowedRoles,
			"user_role":      role,
		})
		c.Abort()
	}
}

func (r *RoleMiddleware) AdminGuard() gin.HandlerFunc {
	return r.RequireRole("superadmin", "admin")
}

func (r *RoleMiddleware) OperatorGuard() gin.HandlerFunc {
	return r.RequireRole("superadmin", "admin", "operator")
}

// RequireTenantAccess blocks a user from touching another tenant's
// resources. Superadmins pass through; everyone else must match the
// tenant in their claims against the one in the URL, when the URL
// names one.
func (r *RoleMiddleware) RequireTenantAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) == "superadmin" {
			c.Next()
			return
		}

		userTenantID := GetTenantID(c)
		if userTenantID == "" {
			utils.RespondWithForbidden(c, "Tenant ID required for this operation")
			c.Abort()
			return
		}

		requestedTenantID := c.Param("tenantId")
		if requestedTenantID == "" {
			requestedTenantID = c.Param("tenant_id")
		}
		if requestedTenantID != "" && requestedTenantID != userTenantID {
			utils.RespondWithForbidden(c, "Access denied to this tenant")
			c.Abort()
			return
		}

		c.Next()
	}
}
