package routes

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/wize-works/helpNINJA-sub004/internal/auth"
	"github.com/wize-works/helpNINJA-sub004/internal/config"
	"github.com/wize-works/helpNINJA-sub004/internal/database"
	"github.com/wize-works/helpNINJA-sub004/internal/logger"
	"github.com/wize-works/helpNINJA-sub004/middleware"
	"github.com/wize-works/helpNINJA-sub004/utils"
)

// SetupEmbedRoutes serves the public widget bootstrap: the JSON config
// the widget loads first, and the script tag tenants paste into their
// pages.
func SetupEmbedRoutes(router *gin.Engine, cfg *config.Config, tenants *database.TenantStore, rdb *redis.Client) {
	widgetAuth := middleware.NewWidgetAuthMiddleware(cfg, tenants)

	group := router.Group("/embed")
	group.Use(middleware.WidgetCORSMiddleware())

	// Bootstrap config: branding plus a short-lived visitor token the
	// widget presents on subsequent calls.
	group.GET("/bootstrap/:tenantId", widgetAuth.VerifyWidgetOrigin(), func(c *gin.Context) {
		tenant, ok := middleware.GetWidgetTenant(c)
		if !ok {
			utils.RespondWithInternalError(c, "Tenant resolution failed", nil)
			return
		}

		origin := c.GetString("widget_origin")
		visitorToken, err := auth.IssueVisitorToken(tenant.ID.Hex(), origin, rdb)
		if err != nil {
			logger.Error("Failed to issue visitor token", "tenant_id", tenant.ID.Hex(), "error", err)
			utils.RespondWithInternalError(c, "Failed to initialize widget session", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"tenant_id":       tenant.ID.Hex(),
			"name":            tenant.Name,
			"site_id":         c.GetString("site_id"),
			"visitor_token":   visitorToken,
			"logo_url":        tenant.Branding.LogoURL,
			"theme_color":     tenant.Branding.ThemeColor,
			"welcome_message": tenant.Branding.WelcomeMessage,
			"pre_questions":   tenant.Branding.PreQuestions,
		})
	})

	// The loader snippet tenants copy into their site. Served as
	// JavaScript so a bare script tag works.
	group.GET("/widget.js", func(c *gin.Context) {
		tenantID := c.Query("tenant")
		if tenantID == "" {
			c.String(http.StatusBadRequest, "// missing tenant parameter")
			return
		}

		script := fmt.Sprintf(`(function() {
  var base = %q;
  var tenant = %q;
  fetch(base + "/embed/bootstrap/" + tenant)
    .then(function(res) { return res.json(); })
    .then(function(cfg) {
      window.helpNINJA = { config: cfg, endpoint: base + "/widget/chat/" + tenant };
      var event = new CustomEvent("helpninja:ready", { detail: cfg });
      document.dispatchEvent(event);
    });
})();`, requestBaseURL(c), tenantID)

		c.Header("Cache-Control", "public, max-age=3600")
		c.Data(http.StatusOK, "application/javascript; charset=utf-8", []byte(script))
	})
}

func requestBaseURL(c *gin.Context) string {
	scheme := "https"
	if c.Request.TLS == nil && c.GetHeader("X-Forwarded-Proto") != "https" {
		scheme = "http"
	}
	return scheme + "://" + c.Request.Host
}
