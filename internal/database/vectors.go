package database

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wize-works/helpNINJA-sub004/models"
	"github.com/wize-works/helpNINJA-sub004/services"
)

// VectorStore runs cosine similarity search over the chunks collection.
//
// Two query paths exist, mirroring how chunks are written: an Atlas
// $vectorSearch aggregation when a vector index is configured, and an
// in-process scoring pass otherwise. Both paths filter on tenant, site,
// embedding model and dimensionality inside the query, so a chunk
// written under a different model (or another tenant) is excluded
// before any score is computed.
type VectorStore struct {
	collection      *mongo.Collection
	vectorIndexName string // empty disables the Atlas path
}

func NewVectorStore(db *mongo.Database, vectorIndexName string) *VectorStore {
	return &VectorStore{
		collection:      db.Collection("chunks"),
		vectorIndexName: vectorIndexName,
	}
}

func (s *VectorStore) SimilaritySearch(ctx context.Context, tenantID primitive.ObjectID, siteID, model string, vector []float32, topK int) ([]services.ScoredChunk, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}

	if s.vectorIndexName != "" {
		return s.atlasSearch(ctx, tenantID, siteID, model, vector, topK)
	}
	return s.scanSearch(ctx, tenantID, siteID, model, vector, topK)
}

func (s *VectorStore) scopeFilter(tenantID primitive.ObjectID, siteID, model string, dims int) bson.M {
	filter := bson.M{
		"tenant_id":       tenantID,
		"embedding_model": model,
		"dimensions":      dims,
	}
	if siteID != "" {
		filter["$or"] = []bson.M{
			{"site_id": siteID},
			{"site_id": bson.M{"$in": []interface{}{nil, ""}}},
		}
	}
	return filter
}

// scanSearch scores every in-scope chunk in process. Fine for the
// corpus sizes a single tenant carries; the Atlas path takes over when
// an index exists.
func (s *VectorStore) scanSearch(ctx context.Context, tenantID primitive.ObjectID, siteID, model string, vector []float32, topK int) ([]services.ScoredChunk, error) {
	cursor, err := s.collection.Find(ctx, s.scopeFilter(tenantID, siteID, model, len(vector)))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var hits []services.ScoredChunk
	for cursor.Next(ctx) {
		var chunk models.DocumentChunk
		if err := cursor.Decode(&chunk); err != nil {
			return nil, err
		}
		if len(chunk.Embedding) != len(vector) {
			// dimensions field disagreed with the stored vector;
			// skip rather than compare garbage
			continue
		}
		hits = append(hits, services.ScoredChunk{
			Chunk: chunk,
			Score: CosineSimilarity(vector, chunk.Embedding),
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ID.Hex() < hits[j].Chunk.ID.Hex()
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// atlasSearch delegates ranking to the cluster's vector index. The
// index is built with cosine ops, matching how chunks are scored on the
// scan path.
func (s *VectorStore) atlasSearch(ctx context.Context, tenantID primitive.ObjectID, siteID, model string, vector []float32, topK int) ([]services.ScoredChunk, error) {
	queryVector := make([]float64, len(vector))
	for i, v := range vector {
		queryVector[i] = float64(v)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.M{
			"index":         s.vectorIndexName,
			"path":          "embedding",
			"queryVector":   queryVector,
			"numCandidates": topK * 10,
			"limit":         topK,
			"filter":        s.scopeFilter(tenantID, siteID, model, len(vector)),
		}}},
		{{Key: "$addFields", Value: bson.M{
			"search_score": bson.M{"$meta": "vectorSearchScore"},
		}}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var hits []services.ScoredChunk
	for cursor.Next(ctx) {
		var row struct {
			models.DocumentChunk `bson:",inline"`
			SearchScore          float64 `bson:"search_score"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		hits = append(hits, services.ScoredChunk{
			Chunk: row.DocumentChunk,
			Score: row.SearchScore,
		})
	}
	return hits, cursor.Err()
}

// CosineSimilarity returns the cosine of the angle between two vectors
// of equal length. Zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
