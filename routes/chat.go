package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wize-works/helpNINJA-sub004/internal/ai"
	"github.com/wize-works/helpNINJA-sub004/internal/config"
	"github.com/wize-works/helpNINJA-sub004/internal/database"
	"github.com/wize-works/helpNINJA-sub004/internal/logger"
	"github.com/wize-works/helpNINJA-sub004/internal/telemetry"
	"github.com/wize-works/helpNINJA-sub004/middleware"
	"github.com/wize-works/helpNINJA-sub004/models"
	"github.com/wize-works/helpNINJA-sub004/services"
	"github.com/wize-works/helpNINJA-sub004/utils"
)

// fallbackReply is what visitors see when resolution or generation
// fails. Raw error text never reaches the widget.
const fallbackReply = "I'm sorry, I couldn't find an answer to that right now. Please try rephrasing your question, or leave your email and our team will get back to you."

const maxCitations = 3

// ChatDeps bundles everything the chat handlers need.
type ChatDeps struct {
	Config        *config.Config
	Tenants       *database.TenantStore
	Conversations *database.ConversationStore
	Resolver      *services.AnswerResolver
	Gemini        *ai.GeminiClient
	Escalations   *services.EscalationService
	Metrics       *telemetry.Metrics
}

func SetupChatRoutes(router *gin.Engine, deps ChatDeps, rdb *redis.Client) {
	widgetAuth := middleware.NewWidgetAuthMiddleware(deps.Config, deps.Tenants)
	authMW := middleware.NewAuthMiddleware(deps.Config, rdb)

	// Public widget endpoint. CORS is open; the real gate is the
	// origin/embed-secret check in VerifyWidgetOrigin.
	widget := router.Group("/widget")
	widget.Use(middleware.WidgetCORSMiddleware())
	widget.Use(middleware.WidgetRateLimit(rdb, deps.Config))
	widget.POST("/chat/:tenantId", widgetAuth.VerifyWidgetOrigin(), func(c *gin.Context) {
		tenant, ok := middleware.GetWidgetTenant(c)
		if !ok {
			utils.RespondWithInternalError(c, "Tenant resolution failed", nil)
			return
		}

		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		siteID := c.GetString("site_id")
		if req.SiteID != "" {
			siteID = req.SiteID
		}

		answerChat(c, deps, tenant, &req, siteID, true)
	})

	// Authenticated playground endpoint for operators testing their
	// knowledge base.
	chat := router.Group("/chat")
	chat.Use(authMW.RequireAuth())
	chat.POST("/send", func(c *gin.Context) {
		tenantID, err := primitive.ObjectIDFromHex(middleware.GetTenantID(c))
		if err != nil {
			utils.RespondWithForbidden(c, "No tenant associated with this account")
			return
		}

		tenant, err := deps.Tenants.GetActive(c.Request.Context(), tenantID)
		if err != nil {
			utils.RespondWithNotFound(c, "Tenant not found or inactive")
			return
		}

		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		answerChat(c, deps, tenant, &req, req.SiteID, false)
	})

	chat.GET("/history/:conversationId", func(c *gin.Context) {
		tenantID, err := primitive.ObjectIDFromHex(middleware.GetTenantID(c))
		if err != nil {
			utils.RespondWithForbidden(c, "No tenant associated with this account")
			return
		}

		history, err := deps.Conversations.History(c.Request.Context(), tenantID, c.Param("conversationId"))
		if err != nil {
			utils.RespondWithNotFound(c, "Conversation not found")
			return
		}
		c.JSON(http.StatusOK, history)
	})

	chat.GET("/conversations", func(c *gin.Context) {
		tenantID, err := primitive.ObjectIDFromHex(middleware.GetTenantID(c))
		if err != nil {
			utils.RespondWithForbidden(c, "No tenant associated with this account")
			return
		}

		conversations, err := deps.Conversations.ListConversations(c.Request.Context(), tenantID, 100)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list conversations", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversations": conversations, "count": len(conversations)})
	})
}

// answerChat runs the full reply pipeline: resolve, pick or generate a
// reply, charge tokens, persist, evaluate escalation rules.
func answerChat(c *gin.Context, deps ChatDeps, tenant *models.Tenant, req *models.ChatRequest, siteID string, isWidget bool) {
	ctx := c.Request.Context()

	sessionKey := req.ConversationID
	if sessionKey == "" {
		sessionKey = uuid.NewString()
	}

	conversation, err := deps.Conversations.Touch(ctx, tenant.ID, siteID, sessionKey, req.UserEmail, req.UserName)
	if err != nil {
		logger.Error("Failed to touch conversation", "tenant_id", tenant.ID.Hex(), "error", err)
		utils.RespondWithInternalError(c, "Failed to start conversation", nil)
		return
	}

	reply, source, confidence, citations, tokens := resolveReply(ctx, deps, tenant, req.Message, siteID)

	if tokens > 0 {
		if err := deps.Tenants.ConsumeTokens(ctx, tenant.ID, tokens); err != nil {
			// The reply is already generated; serve it and let the
			// next request hit the limit check up front.
			logger.Warn("Token charge failed", "tenant_id", tenant.ID.Hex(), "tokens", tokens, "error", err)
		}
		deps.Metrics.RecordTokensUsed(int64(tokens), deps.Config.GeminiModel)
	}
	deps.Metrics.RecordResolution(source)

	message := &models.Message{
		TenantID:       tenant.ID,
		SiteID:         siteID,
		ConversationID: sessionKey,
		Message:        req.Message,
		Reply:          reply,
		AnswerSource:   source,
		Confidence:     confidence,
		Citations:      citations,
		TokenCost:      tokens,
		UserEmail:      req.UserEmail,
		UserName:       req.UserName,
		UserIP:         utils.GetClientIP(c.Request),
		UserAgent:      utils.GetUserAgent(c.Request),
		IsWidget:       isWidget,
	}
	if err := deps.Conversations.InsertMessage(ctx, message); err != nil {
		logger.Error("Failed to persist message", "tenant_id", tenant.ID.Hex(), "error", err)
	}

	// Rule evaluation must not add latency to the reply.
	go func(msg models.Message, conv models.Conversation, conf float64) {
		evalCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		mc := services.MessageContext{
			Message:            &msg,
			Conversation:       &conv,
			Confidence:         conf,
			SessionDurationSec: int(time.Since(conv.StartedAt).Seconds()),
		}
		if err := deps.Escalations.EvaluateMessage(evalCtx, mc); err != nil {
			logger.Error("Escalation evaluation failed", "tenant_id", msg.TenantID.Hex(), "error", err)
		}
	}(*message, *conversation, confidence)

	c.JSON(http.StatusOK, models.ChatResponse{
		Reply:          reply,
		AnswerSource:   source,
		Confidence:     confidence,
		Citations:      citations,
		ConversationID: sessionKey,
		TokensUsed:     tokens,
		Timestamp:      time.Now(),
	})
}

// resolveReply turns a question into reply text. A curated hit wins
// outright; otherwise retrieved passages ground a generated answer. Any
// failure along the way degrades to the fallback reply.
func resolveReply(ctx context.Context, deps ChatDeps, tenant *models.Tenant, question, siteID string) (reply, source string, confidence float64, citations []models.Citation, tokens int) {
	resolution, err := deps.Resolver.Resolve(ctx, services.ResolveInput{
		TenantID: tenant.ID,
		Query:    question,
		SiteID:   siteID,
	})
	if err != nil {
		logger.Error("Resolution failed", "tenant_id", tenant.ID.Hex(), "error", err)
		return fallbackReply, models.AnswerSourceFallback, 0, nil, 0
	}

	if len(resolution.CuratedAnswers) > 0 {
		return resolution.CuratedAnswers[0].Answer, models.AnswerSourceCurated, 1.0, nil, 0
	}

	if len(resolution.RAGResults) == 0 {
		return fallbackReply, models.AnswerSourceFallback, 0, nil, 0
	}

	if tenant.TokenLimit > 0 && tenant.TokenUsed >= tenant.TokenLimit {
		logger.Warn("Token budget exhausted, skipping generation", "tenant_id", tenant.ID.Hex())
		return fallbackReply, models.AnswerSourceFallback, 0, nil, 0
	}

	passages := make([]ai.GroundingPassage, 0, len(resolution.RAGResults))
	for _, result := range resolution.RAGResults {
		passages = append(passages, ai.GroundingPassage{
			Title: result.Title,
			URL:   result.URL,
			Text:  result.Snippet,
		})
	}

	generated, cost, err := deps.Gemini.GenerateGroundedAnswer(ctx, question, passages)
	if err != nil {
		logger.Error("Grounded generation failed", "tenant_id", tenant.ID.Hex(), "error", err)
		return fallbackReply, models.AnswerSourceFallback, 0, nil, 0
	}

	for i, result := range resolution.RAGResults {
		if i >= maxCitations {
			break
		}
		citations = append(citations, models.Citation{
			DocumentID: result.Chunk.DocumentID,
			Title:      result.Title,
			URL:        result.URL,
			Score:      result.Score,
		})
	}

	return generated, models.AnswerSourceRAG, resolution.Confidence(), citations, cost
}
