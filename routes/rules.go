package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wize-works/helpNINJA-sub004/internal/config"
	"github.com/wize-works/helpNINJA-sub004/internal/database"
	"github.com/wize-works/helpNINJA-sub004/internal/rules"
	"github.com/wize-works/helpNINJA-sub004/middleware"
	"github.com/wize-works/helpNINJA-sub004/models"
	"github.com/wize-works/helpNINJA-sub004/utils"
)

func SetupRuleRoutes(router *gin.Engine, cfg *config.Config, ruleStore *database.RuleStore, rdb *redis.Client) {
	authMW := middleware.NewAuthMiddleware(cfg, rdb)
	roles := middleware.NewRoleMiddleware()

	group := router.Group("/rules")
	group.Use(authMW.RequireAuth(), roles.OperatorGuard())

	group.POST("", func(c *gin.Context) {
		tenantID, ok := requestTenantID(c)
		if !ok {
			return
		}

		var req models.CreateRuleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		enabled := true
		if req.Enabled != nil {
			enabled = *req.Enabled
		}

		rule := &models.EscalationRule{
			TenantID:     tenantID,
			SiteID:       req.SiteID,
			Name:         req.Name,
			Enabled:      enabled,
			Predicate:    req.Predicate,
			Destinations: req.Destinations,
		}
		if err := ruleStore.Insert(c.Request.Context(), rule); err != nil {
			utils.RespondWithInternalError(c, "Failed to create rule", nil)
			return
		}
		c.JSON(http.StatusCreated, rule)
	})

	group.GET("", func(c *gin.Context) {
		tenantID, ok := requestTenantID(c)
		if !ok {
			return
		}

		list, err := ruleStore.List(c.Request.Context(), tenantID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list rules", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"rules": list, "count": len(list)})
	})

	group.GET("/:id", func(c *gin.Context) {
		tenantID, ok := requestTenantID(c)
		if !ok {
			return
		}
		ruleID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid rule ID", nil)
			return
		}

		rule, err := ruleStore.Get(c.Request.Context(), tenantID, ruleID)
		if err != nil {
			utils.RespondWithNotFound(c, "Rule not found")
			return
		}
		c.JSON(http.StatusOK, rule)
	})

	group.PUT("/:id", func(c *gin.Context) {
		tenantID, ok := requestTenantID(c)
		if !ok {
			return
		}
		ruleID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid rule ID", nil)
			return
		}

		var req models.UpdateRuleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		fields := bson.M{}
		if req.Name != nil {
			fields["name"] = *req.Name
		}
		if req.SiteID != nil {
			fields["site_id"] = *req.SiteID
		}
		if req.Enabled != nil {
			fields["enabled"] = *req.Enabled
		}
		if req.Predicate != nil {
			fields["predicate"] = *req.Predicate
		}
		if req.Destinations != nil {
			fields["destinations"] = *req.Destinations
		}
		if len(fields) == 0 {
			utils.RespondWithBadRequest(c, "No fields to update", nil)
			return
		}

		if err := ruleStore.Update(c.Request.Context(), tenantID, ruleID, fields); err != nil {
			if err == mongo.ErrNoDocuments {
				utils.RespondWithNotFound(c, "Rule not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to update rule", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Rule updated"})
	})

	group.DELETE("/:id", func(c *gin.Context) {
		tenantID, ok := requestTenantID(c)
		if !ok {
			return
		}
		ruleID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid rule ID", nil)
			return
		}

		if err := ruleStore.Delete(c.Request.Context(), tenantID, ruleID); err != nil {
			if err == mongo.ErrNoDocuments {
				utils.RespondWithNotFound(c, "Rule not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to delete rule", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Rule deleted"})
	})

	// Dry-run a predicate against an operator-supplied context. Nothing
	// is stored and no escalation fires; the response is the evaluation
	// outcome plus the full trace.
	group.POST("/test", func(c *gin.Context) {
		if _, ok := requestTenantID(c); !ok {
			return
		}

		var req models.TestRuleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		timestamp := time.Now()
		if req.Timestamp != nil {
			timestamp = *req.Timestamp
		}

		node := rules.Decode(req.Predicate)
		result := rules.Evaluate(node, rules.Context{
			Message:            req.Message,
			Confidence:         req.Confidence,
			Keywords:           req.Keywords,
			UserEmail:          req.UserEmail,
			Timestamp:          timestamp,
			SiteID:             req.SiteID,
			SessionDuration:    req.SessionDuration,
			IsOffHours:         req.IsOffHours,
			ConversationLength: req.ConversationLength,
			Custom:             req.Custom,
		})

		trace := make([]models.EscalationStep, 0, len(result.Trace))
		for _, step := range result.Trace {
			trace = append(trace, models.EscalationStep{
				Description: step.Description,
				Matched:     step.Matched,
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"matched": result.Matched,
			"trace":   trace,
		})
	})

	// Fired escalations, newest first.
	escalationGroup := router.Group("/escalations")
	escalationGroup.Use(authMW.RequireAuth(), roles.OperatorGuard())
	escalationGroup.GET("", func(c *gin.Context) {
		tenantID, ok := requestTenantID(c)
		if !ok {
			return
		}

		escalations, err := ruleStore.ListEscalations(c.Request.Context(), tenantID, 100)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list escalations", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"escalations": escalations, "count": len(escalations)})
	})
}
