package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wize-works/helpNINJA-sub004/models"
)

// DocumentStore persists documents and their chunks.
type DocumentStore struct {
	client    *mongo.Client
	documents *mongo.Collection
	chunks    *mongo.Collection
}

func NewDocumentStore(client *mongo.Client, db *mongo.Database) *DocumentStore {
	return &DocumentStore{
		client:    client,
		documents: db.Collection("documents"),
		chunks:    db.Collection("chunks"),
	}
}

func (s *DocumentStore) Insert(ctx context.Context, doc *models.Document) error {
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = doc.CreatedAt
	result, err := s.documents.InsertOne(ctx, doc)
	if err != nil {
		return err
	}
	doc.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *DocumentStore) Get(ctx context.Context, tenantID, docID primitive.ObjectID) (*models.Document, error) {
	var doc models.Document
	err := s.documents.FindOne(ctx, bson.M{"_id": docID, "tenant_id": tenantID}).Decode(&doc)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *DocumentStore) List(ctx context.Context, tenantID primitive.ObjectID) ([]models.Document, error) {
	cursor, err := s.documents.Find(ctx, bson.M{"tenant_id": tenantID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	docs := make([]models.Document, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *DocumentStore) SetStatus(ctx context.Context, docID primitive.ObjectID, status, errMsg string) error {
	update := bson.M{"status": status, "updated_at": time.Now()}
	if errMsg != "" {
		update["error"] = errMsg
	}
	_, err := s.documents.UpdateOne(ctx, bson.M{"_id": docID}, bson.M{"$set": update})
	return err
}

// ReplaceChunks swaps a document's chunk set wholesale inside one
// transaction: delete everything, insert the new set, update the
// document row. A reader either sees the old chunks or the new ones,
// never a half-reindexed document with mixed embeddings.
func (s *DocumentStore) ReplaceChunks(ctx context.Context, doc *models.Document, chunks []models.DocumentChunk) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		if _, err := s.chunks.DeleteMany(sessCtx, bson.M{"document_id": doc.ID}); err != nil {
			return nil, fmt.Errorf("delete old chunks: %w", err)
		}

		if len(chunks) > 0 {
			rows := make([]interface{}, len(chunks))
			for i := range chunks {
				chunks[i].DocumentID = doc.ID
				chunks[i].TenantID = doc.TenantID
				chunks[i].SiteID = doc.SiteID
				chunks[i].CreatedAt = time.Now()
				rows[i] = chunks[i]
			}
			if _, err := s.chunks.InsertMany(sessCtx, rows); err != nil {
				return nil, fmt.Errorf("insert chunks: %w", err)
			}
		}

		totalTokens := 0
		for _, c := range chunks {
			totalTokens += c.TokenEstimate
		}
		_, err := s.documents.UpdateOne(sessCtx, bson.M{"_id": doc.ID}, bson.M{"$set": bson.M{
			"status":       models.DocumentStatusReady,
			"chunk_count":  len(chunks),
			"total_tokens": totalTokens,
			"error":        "",
			"updated_at":   time.Now(),
		}})
		return nil, err
	})
	return err
}

// UpsertCrawled stores a crawled page as a document keyed by its URL.
// Returns the document and whether its content changed since the last
// crawl; unchanged pages keep their status and chunks.
func (s *DocumentStore) UpsertCrawled(ctx context.Context, tenantID primitive.ObjectID, siteID string, page models.CrawledPage, contentHash string) (*models.Document, bool, error) {
	filter := bson.M{"tenant_id": tenantID, "source": models.DocumentSourceCrawl, "url": page.URL}

	var existing models.Document
	err := s.documents.FindOne(ctx, filter).Decode(&existing)
	if err == nil {
		if existing.ContentHash == contentHash && existing.Status == models.DocumentStatusReady {
			return &existing, false, nil
		}
		_, err = s.documents.UpdateOne(ctx, bson.M{"_id": existing.ID}, bson.M{"$set": bson.M{
			"title":        page.Title,
			"content":      page.Content,
			"content_hash": contentHash,
			"status":       models.DocumentStatusPending,
			"error":        "",
			"updated_at":   time.Now(),
		}})
		if err != nil {
			return nil, false, err
		}
		existing.Content = page.Content
		existing.ContentHash = contentHash
		existing.Status = models.DocumentStatusPending
		return &existing, true, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, false, err
	}

	doc := &models.Document{
		TenantID:    tenantID,
		SiteID:      siteID,
		Source:      models.DocumentSourceCrawl,
		URL:         page.URL,
		Title:       page.Title,
		Content:     page.Content,
		ContentHash: contentHash,
		Status:      models.DocumentStatusPending,
	}
	if err := s.Insert(ctx, doc); err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// ListPending returns documents awaiting ingestion for a tenant.
func (s *DocumentStore) ListPending(ctx context.Context, tenantID primitive.ObjectID) ([]models.Document, error) {
	cursor, err := s.documents.Find(ctx,
		bson.M{"tenant_id": tenantID, "status": models.DocumentStatusPending},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	docs := make([]models.Document, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Delete removes a document and all of its chunks.
func (s *DocumentStore) Delete(ctx context.Context, tenantID, docID primitive.ObjectID) error {
	if _, err := s.chunks.DeleteMany(ctx, bson.M{"document_id": docID, "tenant_id": tenantID}); err != nil {
		return err
	}
	_, err := s.documents.DeleteOne(ctx, bson.M{"_id": docID, "tenant_id": tenantID})
	return err
}

// DropChunksForModelMigration deletes every chunk not written under the
// given model, across all tenants. Run when the configured embedding
// model changes: vectors from different models are not comparable, so
// stale chunks are dropped and their documents queued for re-ingestion
// rather than ever served.
func (s *DocumentStore) DropChunksForModelMigration(ctx context.Context, currentModel string) ([]primitive.ObjectID, error) {
	cursor, err := s.chunks.Distinct(ctx, "document_id", bson.M{"embedding_model": bson.M{"$ne": currentModel}})
	if err != nil {
		return nil, err
	}

	var docIDs []primitive.ObjectID
	for _, raw := range cursor {
		if id, ok := raw.(primitive.ObjectID); ok {
			docIDs = append(docIDs, id)
		}
	}

	if _, err := s.chunks.DeleteMany(ctx, bson.M{"embedding_model": bson.M{"$ne": currentModel}}); err != nil {
		return nil, err
	}

	if len(docIDs) > 0 {
		_, err = s.documents.UpdateMany(ctx,
			bson.M{"_id": bson.M{"$in": docIDs}},
			bson.M{"$set": bson.M{"status": models.DocumentStatusPending, "chunk_count": 0, "updated_at": time.Now()}})
		if err != nil {
			return nil, err
		}
	}
	return docIDs, nil
}
