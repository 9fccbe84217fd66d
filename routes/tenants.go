package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wize-works/helpNINJA-sub004/internal/config"
	"github.com/wize-works/helpNINJA-sub004/internal/database"
	"github.com/wize-works/helpNINJA-sub004/internal/logger"
	"github.com/wize-works/helpNINJA-sub004/middleware"
	"github.com/wize-works/helpNINJA-sub004/models"
	"github.com/wize-works/helpNINJA-sub004/utils"
)

// TenantDeps bundles the stores the tenant admin handlers need.
type TenantDeps struct {
	Config        *config.Config
	Tenants       *database.TenantStore
	Conversations *database.ConversationStore
	Rules         *database.RuleStore
	Users         *mongo.Collection
}

func SetupTenantRoutes(router *gin.Engine, deps TenantDeps, rdb *redis.Client) {
	authMW := middleware.NewAuthMiddleware(deps.Config, rdb)
	roles := middleware.NewRoleMiddleware()

	group := router.Group("/tenants")
	group.Use(authMW.RequireAuth())

	// Creating and listing tenants is platform-admin territory.
	group.POST("", roles.AdminGuard(), func(c *gin.Context) {
		var req models.CreateTenantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		embedSecret, err := utils.GenerateSecureRandomString(32)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to generate embed secret", nil)
			return
		}

		tokenLimit := req.TokenLimit
		if tokenLimit <= 0 {
			tokenLimit = deps.Config.DefaultTokenLimit
		}

		tenant := &models.Tenant{
			Name:           req.Name,
			Plan:           req.Plan,
			Branding:       req.Branding,
			TokenLimit:     tokenLimit,
			EmbedSecret:    embedSecret,
			EmbeddingModel: deps.Config.EmbeddingsModel,
			ContactEmail:   req.ContactEmail,
		}
		if err := deps.Tenants.Create(c.Request.Context(), tenant); err != nil {
			utils.RespondWithInternalError(c, "Failed to create tenant", nil)
			return
		}

		if req.InitialUser != nil {
			hashed, err := utils.HashPassword(req.InitialUser.Password, deps.Config.BcryptCost)
			if err == nil {
				now := time.Now()
				tenantID := tenant.ID
				_, err = deps.Users.InsertOne(c.Request.Context(), models.User{
					Username:     req.InitialUser.Username,
					Name:         req.InitialUser.Name,
					Email:        req.InitialUser.Email,
					PasswordHash: hashed,
					Role:         "operator",
					TenantID:     &tenantID,
					CreatedAt:    now,
					UpdatedAt:    now,
				})
			}
			if err != nil {
				logger.Error("Failed to create initial user", "tenant_id", tenant.ID.Hex(), "error", err)
			}
		}

		c.JSON(http.StatusCreated, tenant)
	})

	group.GET("", roles.AdminGuard(), func(c *gin.Context) {
		tenants, err := deps.Tenants.List(c.Request.Context())
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list tenants", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"tenants": tenants, "count": len(tenants)})
	})

	// Per-tenant routes: operators see their own tenant, admins any.
	scoped := group.Group("/:tenantId")
	scoped.Use(roles.OperatorGuard(), roles.RequireTenantAccess())

	scoped.GET("", func(c *gin.Context) {
		tenantID, err := primitive.ObjectIDFromHex(c.Param("tenantId"))
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid tenant ID", nil)
			return
		}

		tenant, err := deps.Tenants.Get(c.Request.Context(), tenantID)
		if err != nil {
			utils.RespondWithNotFound(c, "Tenant not found")
			return
		}
		c.JSON(http.StatusOK, tenant)
	})

	scoped.PUT("", func(c *gin.Context) {
		tenantID, err := primitive.ObjectIDFromHex(c.Param("tenantId"))
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid tenant ID", nil)
			return
		}

		var req models.UpdateTenantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		fields := bson.M{}
		if req.Name != nil {
			fields["name"] = *req.Name
		}
		if req.Plan != nil {
			fields["plan"] = *req.Plan
		}
		if req.Branding != nil {
			fields["branding"] = *req.Branding
		}
		if req.ContactEmail != nil {
			fields["contact_email"] = *req.ContactEmail
		}
		if req.EscalationEmails != nil {
			fields["escalation_emails"] = *req.EscalationEmails
		}
		// Only admins may change limits or suspend tenants.
		if middleware.GetRole(c) == "admin" || middleware.GetRole(c) == "superadmin" {
			if req.TokenLimit != nil {
				fields["token_limit"] = *req.TokenLimit
				// A raised limit restarts the alert ladder.
				fields["alert_level_sent"] = ""
			}
			if req.Status != nil {
				fields["status"] = *req.Status
			}
		}
		if len(fields) == 0 {
			utils.RespondWithBadRequest(c, "No fields to update", nil)
			return
		}

		if err := deps.Tenants.Update(c.Request.Context(), tenantID, fields); err != nil {
			if err == mongo.ErrNoDocuments {
				utils.RespondWithNotFound(c, "Tenant not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to update tenant", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Tenant updated"})
	})

	scoped.GET("/usage", func(c *gin.Context) {
		tenantID, err := primitive.ObjectIDFromHex(c.Param("tenantId"))
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid tenant ID", nil)
			return
		}

		tenant, err := deps.Tenants.Get(c.Request.Context(), tenantID)
		if err != nil {
			utils.RespondWithNotFound(c, "Tenant not found")
			return
		}

		messageCount, err := deps.Conversations.CountMessages(c.Request.Context(), tenantID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to compute usage", nil)
			return
		}
		escalationCount, err := deps.Rules.CountEscalations(c.Request.Context(), tenantID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to compute usage", nil)
			return
		}

		usagePct := 0.0
		if tenant.TokenLimit > 0 {
			usagePct = float64(tenant.TokenUsed) / float64(tenant.TokenLimit) * 100
		}

		c.JSON(http.StatusOK, models.TenantUsageStats{
			Tenant:           *tenant,
			UsagePercentage:  usagePct,
			LastActivity:     tenant.UpdatedAt,
			TotalMessages:    int(messageCount),
			TotalEscalations: int(escalationCount),
		})
	})

	scoped.POST("/sites", func(c *gin.Context) {
		tenantID, err := primitive.ObjectIDFromHex(c.Param("tenantId"))
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid tenant ID", nil)
			return
		}

		var req struct {
			Domain string `json:"domain" binding:"required,fqdn"`
			Name   string `json:"name,omitempty"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		site := models.Site{
			ID:     uuid.NewString(),
			Domain: req.Domain,
			Name:   req.Name,
		}
		if err := deps.Tenants.AddSite(c.Request.Context(), tenantID, site); err != nil {
			utils.RespondWithError(c, http.StatusConflict, "site_conflict", err.Error(), nil)
			return
		}
		c.JSON(http.StatusCreated, site)
	})

	scoped.POST("/sites/:siteId/verify", roles.AdminGuard(), func(c *gin.Context) {
		tenantID, err := primitive.ObjectIDFromHex(c.Param("tenantId"))
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid tenant ID", nil)
			return
		}

		if err := deps.Tenants.VerifySite(c.Request.Context(), tenantID, c.Param("siteId")); err != nil {
			utils.RespondWithNotFound(c, "Site not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Site verified"})
	})
}
