package middleware

import (
	"crypto/subtle"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wize-works/helpNINJA-sub004/internal/config"
	"github.com/wize-works/helpNINJA-sub004/internal/database"
	"github.com/wize-works/helpNINJA-sub004/internal/logger"
	"github.com/wize-works/helpNINJA-sub004/models"
	"github.com/wize-works/helpNINJA-sub004/utils"
)

// WidgetAuthMiddleware verifies that a widget request really comes from
// a site registered to the tenant named in the URL.
type WidgetAuthMiddleware struct {
	config  *config.Config
	tenants *database.TenantStore
}

func NewWidgetAuthMiddleware(cfg *config.Config, tenants *database.TenantStore) *WidgetAuthMiddleware {
	return &WidgetAuthMiddleware{
		config:  cfg,
		tenants: tenants,
	}
}

// VerifyWidgetOrigin resolves the tenant from the :tenantId parameter
// and accepts the request when either the X-Embed-Secret header matches
// the tenant's embed secret or the Origin/Referer host matches one of
// its registered sites. The resolved tenant and site land in the gin
// context for the handler.
func (m *WidgetAuthMiddleware) VerifyWidgetOrigin() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.Param("tenantId")
		if tenantID == "" {
			tenantID = c.Param("tenant_id")
		}

		tenantOID, err := primitive.ObjectIDFromHex(tenantID)
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid tenant ID", nil)
			c.Abort()
			return
		}

		tenant, err := m.tenants.GetActive(c.Request.Context(), tenantOID)
		if err != nil {
			utils.RespondWithNotFound(c, "Tenant not found")
			c.Abort()
			return
		}

		origin := requestOriginHost(c)

		if secret := c.GetHeader("X-Embed-Secret"); secret != "" && tenant.EmbedSecret != "" {
			if subtle.ConstantTimeCompare([]byte(secret), []byte(tenant.EmbedSecret)) == 1 {
				m.attach(c, tenant, origin, nil)
				return
			}
			utils.RespondWithForbidden(c, "Invalid embed secret")
			c.Abort()
			return
		}

		if origin == "" {
			utils.RespondWithForbidden(c, "Origin verification required")
			c.Abort()
			return
		}

		site, ok := database.SiteForDomain(tenant, origin)
		if !ok {
			logger.Warn("Widget request from unregistered origin",
				"tenant_id", tenantID,
				"origin", origin,
				"ip", c.ClientIP(),
			)
			utils.RespondWithForbidden(c, "Origin not registered for this tenant")
			c.Abort()
			return
		}
		if !site.Verified && !m.config.WidgetAllowUnverifiedSites {
			utils.RespondWithForbidden(c, "Site is not verified")
			c.Abort()
			return
		}

		m.attach(c, tenant, origin, site)
	}
}

func (m *WidgetAuthMiddleware) attach(c *gin.Context, tenant *models.Tenant, origin string, site *models.Site) {
	c.Set("tenant", tenant)
	c.Set("tenant_id", tenant.ID.Hex())
	c.Set("widget_origin", origin)
	if site != nil {
		c.Set("site_id", site.ID)
	}
	c.Next()
}

// requestOriginHost extracts the embedding page's host from Origin or
// Referer.
func requestOriginHost(c *gin.Context) string {
	for _, header := range []string{"Origin", "Referer"} {
		value := c.GetHeader(header)
		if value == "" {
			continue
		}
		if host := hostFromURL(value); host != "" {
			return host
		}
	}
	return ""
}

func hostFromURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := parsed.Hostname()
	if host == "" {
		return ""
	}
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	if host == "127.0.0.1" {
		host = "localhost"
	}
	return host
}

// GetWidgetTenant retrieves the tenant resolved by VerifyWidgetOrigin.
func GetWidgetTenant(c *gin.Context) (*models.Tenant, bool) {
	value, exists := c.Get("tenant")
	if !exists {
		return nil, false
	}
	tenant, ok := value.(*models.Tenant)
	return tenant, ok
}
