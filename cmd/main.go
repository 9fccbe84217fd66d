package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wize-works/helpNINJA-sub004/internal/ai"
	"github.com/wize-works/helpNINJA-sub004/internal/config"
	"github.com/wize-works/helpNINJA-sub004/internal/database"
	"github.com/wize-works/helpNINJA-sub004/internal/logger"
	"github.com/wize-works/helpNINJA-sub004/internal/queue"
	"github.com/wize-works/helpNINJA-sub004/internal/telemetry"
	"github.com/wize-works/helpNINJA-sub004/middleware"
	"github.com/wize-works/helpNINJA-sub004/routes"
	"github.com/wize-works/helpNINJA-sub004/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real deployments inject env vars directly
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("helpninja-api")
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
	} else {
		defer shutdownTracer()
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	tenantStore := database.NewTenantStore(db)
	answerStore := database.NewAnswerStore(db)
	documentStore := database.NewDocumentStore(mongoClient, db)
	vectorStore := database.NewVectorStore(db, cfg.VectorIndexName)
	ruleStore := database.NewRuleStore(db)
	conversationStore := database.NewConversationStore(db)
	crawlJobStore := database.NewCrawlJobStore(db)

	ctx := context.Background()
	embedder, err := ai.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingsModel, cfg.VectorDimensions)
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}
	defer embedder.Close()

	gemini, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTier)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer gemini.Close()

	queueClient := queue.NewClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer queueClient.Close()

	resolver := services.NewAnswerResolver(answerStore, vectorStore, embedder)
	emailSender := services.NewSMTPEmailSender(cfg)
	webhookSender := services.NewWebhookSender(time.Duration(cfg.WebhookTimeout) * time.Second)
	escalations := services.NewEscalationService(ruleStore, tenantStore, conversationStore, queueClient, emailSender, webhookSender)
	extractor := services.NewExtractor(cfg.MaxFileSize)

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	router.Use(middleware.RateLimitMiddleware(rdb, cfg))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().UTC()})
	})
	router.GET("/ready", func(c *gin.Context) {
		checkCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Ping(checkCtx, nil); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "mongo": err.Error()})
			return
		}
		if err := rdb.Ping(checkCtx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	routes.SetupAuthRoutes(router, cfg, db, rdb)
	routes.SetupChatRoutes(router, routes.ChatDeps{
		Config:        cfg,
		Tenants:       tenantStore,
		Conversations: conversationStore,
		Resolver:      resolver,
		Gemini:        gemini,
		Escalations:   escalations,
		Metrics:       metrics,
	}, rdb)
	routes.SetupAnswerRoutes(router, cfg, answerStore, rdb)
	routes.SetupRuleRoutes(router, cfg, ruleStore, rdb)
	routes.SetupDocumentRoutes(router, routes.DocumentDeps{
		Config:    cfg,
		Documents: documentStore,
		CrawlJobs: crawlJobStore,
		Extractor: extractor,
		Queue:     queueClient,
	}, rdb)
	routes.SetupEmbedRoutes(router, cfg, tenantStore, rdb)
	routes.SetupTenantRoutes(router, routes.TenantDeps{
		Config:        cfg,
		Tenants:       tenantStore,
		Conversations: conversationStore,
		Rules:         ruleStore,
		Users:         db.Collection("users"),
	}, rdb)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("API server listening", "port", cfg.Port, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Forced shutdown", "error", err)
	}
}
