package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	// Create indexes
	err = createIndexes(client, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

func createIndexes(client *mongo.Client, dbName string) error {
	db := client.Database(dbName)
	ctx := context.Background()

	// Users collection indexes
	userIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "tenant_id", Value: 1}},
		},
	}
	if _, err := db.Collection("users").Indexes().CreateMany(ctx, userIndexes); err != nil {
		return err
	}

	// Tenants collection indexes
	tenantIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "embed_secret", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "sites.domain", Value: 1}},
		},
	}
	if _, err := db.Collection("tenants").Indexes().CreateMany(ctx, tenantIndexes); err != nil {
		return err
	}

	// Curated answers: resolver fetches active answers per tenant/site
	answerIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "site_id", Value: 1}}},
	}
	if _, err := db.Collection("answers").Indexes().CreateMany(ctx, answerIndexes); err != nil {
		return err
	}

	// Documents collection indexes
	documentIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "content_hash", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}
	if _, err := db.Collection("documents").Indexes().CreateMany(ctx, documentIndexes); err != nil {
		return err
	}

	// Document chunks: the fallback scan filters on tenant + embedding
	// model + dimensions, so that triple is indexed together
	chunkIndexes := []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "tenant_id", Value: 1},
			{Key: "embedding_model", Value: 1},
			{Key: "dimensions", Value: 1},
		}},
		{Keys: bson.D{{Key: "document_id", Value: 1}}},
	}
	if _, err := db.Collection("chunks").Indexes().CreateMany(ctx, chunkIndexes); err != nil {
		return err
	}

	// Escalation rules collection indexes
	ruleIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "enabled", Value: 1}}},
	}
	if _, err := db.Collection("rules").Indexes().CreateMany(ctx, ruleIndexes); err != nil {
		return err
	}

	// Escalations collection indexes
	escalationIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}
	if _, err := db.Collection("escalations").Indexes().CreateMany(ctx, escalationIndexes); err != nil {
		return err
	}

	// Conversations and messages collection indexes
	conversationIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "session_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "updated_at", Value: -1}}},
	}
	if _, err := db.Collection("conversations").Indexes().CreateMany(ctx, conversationIndexes); err != nil {
		return err
	}

	messageIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "timestamp", Value: 1}}},
	}
	if _, err := db.Collection("messages").Indexes().CreateMany(ctx, messageIndexes); err != nil {
		return err
	}

	return nil
}
