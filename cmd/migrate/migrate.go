package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/wize-works/helpNINJA-sub004/internal/config"
	"github.com/wize-works/helpNINJA-sub004/internal/database"
	"github.com/wize-works/helpNINJA-sub004/internal/queue"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Switching EMBEDDINGS_MODEL invalidates every stored vector: scores
// from different models are not comparable. This tool drops the stale
// chunks and queues the affected documents for re-ingestion under the
// new model.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: migrate <command>")
		fmt.Println("Commands:")
		fmt.Println("  rotate-embeddings  - Drop chunks embedded with a model other than EMBEDDINGS_MODEL and queue re-ingestion")
		fmt.Println("  verify-embeddings  - Report chunks whose model does not match EMBEDDINGS_MODEL")
		os.Exit(1)
	}
	command := os.Args[1]

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	client, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client.Disconnect(ctx)
	}()
	db := client.Database(cfg.DBName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	switch command {
	case "rotate-embeddings":
		documents := database.NewDocumentStore(client, db)
		docIDs, err := documents.DropChunksForModelMigration(ctx, cfg.EmbeddingsModel)
		if err != nil {
			log.Fatalf("Chunk rotation failed: %v", err)
		}
		if len(docIDs) == 0 {
			fmt.Printf("All chunks already use model %q, nothing to do\n", cfg.EmbeddingsModel)
			return
		}

		queueClient := queue.NewClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
		defer queueClient.Close()

		queued := 0
		for _, docID := range docIDs {
			tenantID, err := tenantForDocument(ctx, db, docID)
			if err != nil {
				log.Printf("Skipping %s: %v", docID.Hex(), err)
				continue
			}
			if err := queueClient.EnqueueIngestDocument(tenantID, docID.Hex()); err != nil {
				log.Printf("Failed to queue %s: %v", docID.Hex(), err)
				continue
			}
			queued++
		}
		fmt.Printf("Dropped stale chunks for %d documents, queued %d for re-ingestion under %q\n",
			len(docIDs), queued, cfg.EmbeddingsModel)

	case "verify-embeddings":
		stale, err := db.Collection("chunks").CountDocuments(ctx,
			bson.M{"embedding_model": bson.M{"$ne": cfg.EmbeddingsModel}})
		if err != nil {
			log.Fatalf("Verification failed: %v", err)
		}
		if stale == 0 {
			fmt.Printf("All chunks use model %q\n", cfg.EmbeddingsModel)
			return
		}
		fmt.Printf("%d chunks still embedded with a model other than %q, run rotate-embeddings\n",
			stale, cfg.EmbeddingsModel)
		os.Exit(1)

	default:
		log.Fatalf("Unknown command: %s", command)
	}
}

func tenantForDocument(ctx context.Context, db *mongo.Database, docID primitive.ObjectID) (string, error) {
	var doc struct {
		TenantID primitive.ObjectID `bson:"tenant_id"`
	}
	err := db.Collection("documents").FindOne(ctx, bson.M{"_id": docID}).Decode(&doc)
	if err != nil {
		return "", fmt.Errorf("look up document tenant: %w", err)
	}
	return doc.TenantID.Hex(), nil
}
