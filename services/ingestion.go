package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wize-works/helpNINJA-sub004/internal/logger"
	"github.com/wize-works/helpNINJA-sub004/models"
)

// DocumentRepo is the slice of document storage ingestion needs.
type DocumentRepo interface {
	Get(ctx context.Context, tenantID, docID primitive.ObjectID) (*models.Document, error)
	SetStatus(ctx context.Context, docID primitive.ObjectID, status, errMsg string) error
	ReplaceChunks(ctx context.Context, doc *models.Document, chunks []models.DocumentChunk) error
}

// IngestionService re-chunks and re-embeds a document's text, then
// swaps the chunk set atomically.
type IngestionService struct {
	documents DocumentRepo
	embedder  Embedder
	chunker   *Chunker
}

func NewIngestionService(documents DocumentRepo, embedder Embedder, chunker *Chunker) *IngestionService {
	return &IngestionService{
		documents: documents,
		embedder:  embedder,
		chunker:   chunker,
	}
}

// IngestDocument processes one document end to end. Re-running it on an
// unchanged document whose chunks already carry the current embedding
// model is a no-op.
func (s *IngestionService) IngestDocument(ctx context.Context, tenantID, documentID string) error {
	tracer := otel.Tracer("ingestion")
	ctx, span := tracer.Start(ctx, "ingestion.document")
	defer span.End()

	tenantOID, err := primitive.ObjectIDFromHex(tenantID)
	if err != nil {
		return fmt.Errorf("invalid tenant id: %w", err)
	}
	docOID, err := primitive.ObjectIDFromHex(documentID)
	if err != nil {
		return fmt.Errorf("invalid document id: %w", err)
	}

	doc, err := s.documents.Get(ctx, tenantOID, docOID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	span.SetAttributes(
		attribute.String("document.id", documentID),
		attribute.String("document.source", doc.Source),
	)

	if doc.Content == "" {
		if err := s.documents.SetStatus(ctx, docOID, models.DocumentStatusFailed, "no extracted content"); err != nil {
			logger.Error("Failed to mark document failed", "document_id", documentID, "error", err)
		}
		return fmt.Errorf("document %s has no extracted content", documentID)
	}

	hash := ContentHash(doc.Content)
	if doc.Status == models.DocumentStatusReady && doc.ContentHash == hash && doc.ChunkCount > 0 {
		// Unchanged content already indexed under some model; chunks
		// for a stale model are removed by the migration sweep, which
		// resets status to pending before re-enqueueing.
		logger.Debug("Document unchanged, skipping ingestion", "document_id", documentID)
		return nil
	}

	if err := s.documents.SetStatus(ctx, docOID, models.DocumentStatusProcessing, ""); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	start := time.Now()
	pieces := s.chunker.Split(doc.Content)
	span.SetAttributes(attribute.Int("ingestion.chunks", len(pieces)))

	chunks := make([]models.DocumentChunk, 0, len(pieces))
	for _, piece := range pieces {
		vector, err := s.embedder.Embed(ctx, piece.Text)
		if err != nil {
			if stErr := s.documents.SetStatus(ctx, docOID, models.DocumentStatusFailed, err.Error()); stErr != nil {
				logger.Error("Failed to mark document failed", "document_id", documentID, "error", stErr)
			}
			return fmt.Errorf("%w: embedding chunk %d: %v", ErrEmbeddingService, piece.Order, err)
		}

		chunks = append(chunks, models.DocumentChunk{
			Order:          piece.Order,
			Text:           piece.Text,
			TokenEstimate:  piece.TokenEstimate,
			Embedding:      vector,
			EmbeddingModel: s.embedder.Model(),
			Dimensions:     s.embedder.Dimensions(),
			SourceURL:      doc.URL,
			SourceTitle:    doc.Title,
		})
	}

	if err := s.documents.ReplaceChunks(ctx, doc, chunks); err != nil {
		if stErr := s.documents.SetStatus(ctx, docOID, models.DocumentStatusFailed, err.Error()); stErr != nil {
			logger.Error("Failed to mark document failed", "document_id", documentID, "error", stErr)
		}
		return fmt.Errorf("%w: replace chunks: %v", ErrStoreUnavailable, err)
	}

	logger.Info("Document ingested",
		"document_id", documentID,
		"chunks", len(chunks),
		"model", s.embedder.Model(),
		"duration", time.Since(start).String(),
	)
	return nil
}

// ContentHash fingerprints extracted text for change detection.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
