package main

import (
	"context"
	"log"
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
	"github.com/wize-works/helpNINJA-sub004/services"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("helpninja-worker")
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
	} else {
		defer shutdownTracer()
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

	tenantStore := database.NewTenantStore(db)
	answerStore := database.NewAnswerStore(db)
	documentStore := database.NewDocumentStore(mongoClient, db)
	ruleStore := database.NewRuleStore(db)
	conversationStore := database.NewConversationStore(db)
	crawlJobStore := database.NewCrawlJobStore(db)

	ctx := context.Background()
	embedder, err := ai.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingsModel, cfg.VectorDimensions)
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}
	defer embedder.Close()

	queueClient := queue.NewClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer queueClient.Close()

	chunker := services.NewChunker(cfg.MaxChunkSize, cfg.ChunkOverlap)
	ingestion := services.NewIngestionService(documentStore, embedder, chunker)
	crawlSvc := services.NewCrawlService(documentStore, crawlJobStore, answerStore, queueClient, services.CrawlOptions{
		MaxPages:  cfg.CrawlMaxPages,
		MaxDepth:  cfg.CrawlMaxDepth,
		UserAgent: cfg.CrawlUserAgent,
		RenderJS:  cfg.CrawlJSRendering,
	})
	emailSender := services.NewSMTPEmailSender(cfg)
	webhookSender := services.NewWebhookSender(time.Duration(cfg.WebhookTimeout) * time.Second)
	escalations := services.NewEscalationService(ruleStore, tenantStore, conversationStore, queueClient, emailSender, webhookSender)

	cron := services.NewCronService(cfg, tenantStore, crawlJobStore, queueClient, emailSender)
	cron.Start()
	defer cron.Stop()

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"ingest":   3,
				"default":  1,
			},
		},
	)

	mux := asynq.NewServeMux()
	queue.NewTaskProcessor(ingestion, crawlSvc, escalations).Register(mux)

	go func() {
		logger.Info("Worker started", "queues", "critical,ingest,default")
		if err := srv.Run(mux); err != nil {
			log.Fatal("Worker failed:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker")
	srv.Shutdown()
}
