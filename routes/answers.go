package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wize-works/helpNINJA-sub004/internal/config"
	"github.com/wize-works/helpNINJA-sub004/internal/database"
	"github.com/wize-works/helpNINJA-sub004/middleware"
	"github.com/wize-works/helpNINJA-sub004/models"
	"github.com/wize-works/helpNINJA-sub004/utils"
)

func SetupAnswerRoutes(router *gin.Engine, cfg *config.Config, answers *database.AnswerStore, rdb *redis.Client) {
	authMW := middleware.NewAuthMiddleware(cfg, rdb)
	roles := middleware.NewRoleMiddleware()

	group := router.Group("/answers")
	group.Use(authMW.RequireAuth(), roles.OperatorGuard())

	group.POST("", func(c *gin.Context) {
		tenantID, ok := requestTenantID(c)
		if !ok {
			return
		}

		var req models.CreateAnswerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		status := req.Status
		if status == "" {
			status = models.AnswerStatusActive
		}

		answer := &models.CuratedAnswer{
			TenantID: tenantID,
			SiteID:   req.SiteID,
			Question: req.Question,
			Answer:   req.Answer,
			Priority: req.Priority,
			Keywords: req.Keywords,
			Tags:     req.Tags,
			Status:   status,
		}
		if err := answers.Insert(c.Request.Context(), answer); err != nil {
			utils.RespondWithInternalError(c, "Failed to create answer", nil)
			return
		}
		c.JSON(http.StatusCreated, answer)
	})

	group.GET("", func(c *gin.Context) {
		tenantID, ok := requestTenantID(c)
		if !ok {
			return
		}

		list, err := answers.List(c.Request.Context(), tenantID, c.Query("site_id"))
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list answers", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"answers": list, "count": len(list)})
	})

	group.GET("/:id", func(c *gin.Context) {
		tenantID, ok := requestTenantID(c)
		if !ok {
			return
		}
		answerID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid answer ID", nil)
			return
		}

		answer, err := answers.Get(c.Request.Context(), tenantID, answerID)
		if err != nil {
			utils.RespondWithNotFound(c, "Answer not found")
			return
		}
		c.JSON(http.StatusOK, answer)
	})

	group.PUT("/:id", func(c *gin.Context) {
		tenantID, ok := requestTenantID(c)
		if !ok {
			return
		}
		answerID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid answer ID", nil)
			return
		}

		var req models.UpdateAnswerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		fields := bson.M{}
		if req.Question != nil {
			fields["question"] = *req.Question
		}
		if req.Answer != nil {
			fields["answer"] = *req.Answer
		}
		if req.Priority != nil {
			fields["priority"] = *req.Priority
		}
		if req.Keywords != nil {
			fields["keywords"] = *req.Keywords
		}
		if req.Tags != nil {
			fields["tags"] = *req.Tags
		}
		if req.SiteID != nil {
			fields["site_id"] = *req.SiteID
		}
		if req.Status != nil {
			fields["status"] = *req.Status
		}
		if len(fields) == 0 {
			utils.RespondWithBadRequest(c, "No fields to update", nil)
			return
		}

		if err := answers.Update(c.Request.Context(), tenantID, answerID, fields); err != nil {
			if err == mongo.ErrNoDocuments {
				utils.RespondWithNotFound(c, "Answer not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to update answer", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Answer updated"})
	})

	group.DELETE("/:id", func(c *gin.Context) {
		tenantID, ok := requestTenantID(c)
		if !ok {
			return
		}
		answerID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid answer ID", nil)
			return
		}

		if err := answers.Delete(c.Request.Context(), tenantID, answerID); err != nil {
			if err == mongo.ErrNoDocuments {
				utils.RespondWithNotFound(c, "Answer not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to delete answer", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Answer deleted"})
	})
}

// requestTenantID pulls the tenant from the caller's claims. Writes the
// error response itself so handlers can bail with a bare return.
func requestTenantID(c *gin.Context) (primitive.ObjectID, bool) {
	tenantID, err := primitive.ObjectIDFromHex(middleware.GetTenantID(c))
	if err != nil {
		utils.RespondWithForbidden(c, "No tenant associated with this account")
		return primitive.NilObjectID, false
	}
	return tenantID, true
}
