package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wize-works/helpNINJA-sub004/models"
)

type fakeAnswerStore struct {
	byTenant map[primitive.ObjectID][]models.CuratedAnswer
	err      error
}

func (f *fakeAnswerStore) FindActive(_ context.Context, tenantID primitive.ObjectID, siteID string) ([]models.CuratedAnswer, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.CuratedAnswer
	for _, a := range f.byTenant[tenantID] {
		if a.Status != models.AnswerStatusActive {
			continue
		}
		if siteID != "" && a.SiteID != "" && a.SiteID != siteID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

type fakeVectorStore struct {
	byTenant map[primitive.ObjectID][]ScoredChunk
	err      error
	gotModel string
}

func (f *fakeVectorStore) SimilaritySearch(_ context.Context, tenantID primitive.ObjectID, siteID, model string, _ []float32, topK int) ([]ScoredChunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.gotModel = model
	hits := f.byTenant[tenantID]
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeEmbedder) Model() string   { return "text-embedding-004" }
func (f *fakeEmbedder) Dimensions() int { return 3 }

func answer(tenant primitive.ObjectID, question string, priority int, keywords []string, createdAt time.Time) models.CuratedAnswer {
	return models.CuratedAnswer{
		ID:        primitive.NewObjectID(),
		TenantID:  tenant,
		Question:  question,
		Status:    models.AnswerStatusActive,
		Priority:  priority,
		Keywords:  keywords,
		CreatedAt: createdAt,
	}
}

func TestResolveRejectsEmptyQuery(t *testing.T) {
	r := NewAnswerResolver(&fakeAnswerStore{}, &fakeVectorStore{}, &fakeEmbedder{})

	_, err := r.Resolve(context.Background(), ResolveInput{
		TenantID: primitive.NewObjectID(),
		Query:    "   \t ",
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	_, err = r.Resolve(context.Background(), ResolveInput{Query: "hello"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero tenant, got %v", err)
	}
}

func TestResolveEmptyResultIsNotAnError(t *testing.T) {
	tenant := primitive.NewObjectID()
	r := NewAnswerResolver(
		&fakeAnswerStore{byTenant: map[primitive.ObjectID][]models.CuratedAnswer{}},
		&fakeVectorStore{byTenant: map[primitive.ObjectID][]ScoredChunk{}},
		&fakeEmbedder{},
	)

	resolution, err := r.Resolve(context.Background(), ResolveInput{TenantID: tenant, Query: "anything at all"})
	if err != nil {
		t.Fatalf("legitimately-empty result must not error: %v", err)
	}
	assert.Empty(t, resolution.CuratedAnswers)
	assert.Empty(t, resolution.RAGResults)
	assert.Equal(t, 0.0, resolution.Confidence())
}

func TestResolvePriorityOrdering(t *testing.T) {
	tenant := primitive.NewObjectID()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	low := answer(tenant, "How do refunds work?", 5, []string{"refund"}, base)
	high := answer(tenant, "Refund policy", 10, []string{"refund"}, base.Add(time.Hour))

	r := NewAnswerResolver(
		&fakeAnswerStore{byTenant: map[primitive.ObjectID][]models.CuratedAnswer{
			tenant: {low, high},
		}},
		&fakeVectorStore{byTenant: map[primitive.ObjectID][]ScoredChunk{}},
		&fakeEmbedder{},
	)

	resolution, err := r.Resolve(context.Background(), ResolveInput{TenantID: tenant, Query: "how do I get a refund"})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(resolution.CuratedAnswers) != 2 {
		t.Fatalf("expected both answers to match, got %d", len(resolution.CuratedAnswers))
	}
	if resolution.CuratedAnswers[0].Priority != 10 {
		t.Fatalf("priority 10 must rank before priority 5")
	}
	assert.Equal(t, 1.0, resolution.Confidence(), "curated hit is authoritative")
}

func TestResolveSpecificityBreaksPriorityTies(t *testing.T) {
	tenant := primitive.NewObjectID()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	oneKeyword := answer(tenant, "Billing", 5, []string{"invoice"}, base)
	twoKeywords := answer(tenant, "Billing details", 5, []string{"invoice", "charge"}, base.Add(time.Hour))

	r := NewAnswerResolver(
		&fakeAnswerStore{byTenant: map[primitive.ObjectID][]models.CuratedAnswer{
			tenant: {oneKeyword, twoKeywords},
		}},
		&fakeVectorStore{byTenant: map[primitive.ObjectID][]ScoredChunk{}},
		&fakeEmbedder{},
	)

	resolution, err := r.Resolve(context.Background(), ResolveInput{
		TenantID: tenant,
		Query:    "why is there a charge on my invoice",
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(resolution.CuratedAnswers) != 2 {
		t.Fatalf("expected both answers, got %d", len(resolution.CuratedAnswers))
	}
	assert.Equal(t, twoKeywords.ID, resolution.CuratedAnswers[0].ID,
		"more matching keywords should rank first at equal priority")
}

func TestResolveInactiveAnswersAreInvisible(t *testing.T) {
	tenant := primitive.NewObjectID()
	disabled := answer(tenant, "Refund policy", 10, []string{"refund"}, time.Now())
	disabled.Status = models.AnswerStatusInactive

	r := NewAnswerResolver(
		&fakeAnswerStore{byTenant: map[primitive.ObjectID][]models.CuratedAnswer{
			tenant: {disabled},
		}},
		&fakeVectorStore{byTenant: map[primitive.ObjectID][]ScoredChunk{}},
		&fakeEmbedder{},
	)

	resolution, err := r.Resolve(context.Background(), ResolveInput{TenantID: tenant, Query: "refund"})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	assert.Empty(t, resolution.CuratedAnswers)
}

func TestResolveTenantIsolation(t *testing.T) {
	tenantA := primitive.NewObjectID()
	tenantB := primitive.NewObjectID()

	chunkB := models.DocumentChunk{
		ID:       primitive.NewObjectID(),
		TenantID: tenantB,
		Text:     "tenant B's secret runbook",
	}

	r := NewAnswerResolver(
		&fakeAnswerStore{byTenant: map[primitive.ObjectID][]models.CuratedAnswer{
			tenantB: {answer(tenantB, "secret", 10, []string{"secret"}, time.Now())},
		}},
		&fakeVectorStore{byTenant: map[primitive.ObjectID][]ScoredChunk{
			tenantB: {{Chunk: chunkB, Score: 0.99}},
		}},
		&fakeEmbedder{},
	)

	resolution, err := r.Resolve(context.Background(), ResolveInput{TenantID: tenantA, Query: "secret"})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	assert.Empty(t, resolution.CuratedAnswers, "tenant A must never see tenant B's answers")
	assert.Empty(t, resolution.RAGResults, "tenant A must never see tenant B's chunks")
}

func TestResolveEmbeddingFailurePropagates(t *testing.T) {
	tenant := primitive.NewObjectID()
	r := NewAnswerResolver(
		&fakeAnswerStore{byTenant: map[primitive.ObjectID][]models.CuratedAnswer{}},
		&fakeVectorStore{byTenant: map[primitive.ObjectID][]ScoredChunk{}},
		&fakeEmbedder{err: errors.New("quota exhausted")},
	)

	_, err := r.Resolve(context.Background(), ResolveInput{TenantID: tenant, Query: "hello"})
	if !errors.Is(err, ErrEmbeddingService) {
		t.Fatalf("embedding failure must surface as ErrEmbeddingService, got %v", err)
	}
}

func TestResolveStoreFailurePropagates(t *testing.T) {
	tenant := primitive.NewObjectID()
	r := NewAnswerResolver(
		&fakeAnswerStore{err: errors.New("connection refused")},
		&fakeVectorStore{byTenant: map[primitive.ObjectID][]ScoredChunk{}},
		&fakeEmbedder{},
	)

	_, err := r.Resolve(context.Background(), ResolveInput{TenantID: tenant, Query: "hello"})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("store failure must surface as ErrStoreUnavailable, got %v", err)
	}
}

func TestResolveScoreTiesBrokenByChunkID(t *testing.T) {
	tenant := primitive.NewObjectID()

	idA, _ := primitive.ObjectIDFromHex("aaaaaaaaaaaaaaaaaaaaaaaa")
	idB, _ := primitive.ObjectIDFromHex("bbbbbbbbbbbbbbbbbbbbbbbb")

	hits := []ScoredChunk{
		{Chunk: models.DocumentChunk{ID: idB, Text: "b"}, Score: 0.8},
		{Chunk: models.DocumentChunk{ID: idA, Text: "a"}, Score: 0.8},
	}

	r := NewAnswerResolver(
		&fakeAnswerStore{byTenant: map[primitive.ObjectID][]models.CuratedAnswer{}},
		&fakeVectorStore{byTenant: map[primitive.ObjectID][]ScoredChunk{tenant: hits}},
		&fakeEmbedder{},
	)

	resolution, err := r.Resolve(context.Background(), ResolveInput{TenantID: tenant, Query: "anything"})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(resolution.RAGResults) != 2 {
		t.Fatalf("expected two results, got %d", len(resolution.RAGResults))
	}
	assert.Equal(t, idA, resolution.RAGResults[0].Chunk.ID, "equal scores order by chunk id")
	assert.InDelta(t, 0.8, resolution.Confidence(), 1e-9)
}

func TestResolveCapsMaxResults(t *testing.T) {
	tenant := primitive.NewObjectID()

	var hits []ScoredChunk
	for i := 0; i < 30; i++ {
		hits = append(hits, ScoredChunk{
			Chunk: models.DocumentChunk{ID: primitive.NewObjectID(), Text: "chunk"},
			Score: 0.9 - float64(i)*0.01,
		})
	}

	store := &fakeVectorStore{byTenant: map[primitive.ObjectID][]ScoredChunk{tenant: hits}}
	r := NewAnswerResolver(
		&fakeAnswerStore{byTenant: map[primitive.ObjectID][]models.CuratedAnswer{}},
		store, &fakeEmbedder{},
	)

	resolution, err := r.Resolve(context.Background(), ResolveInput{
		TenantID:   tenant,
		Query:      "anything",
		MaxResults: 100,
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(resolution.RAGResults) > MaxResultsCap {
		t.Fatalf("MaxResults must be capped at %d, got %d", MaxResultsCap, len(resolution.RAGResults))
	}
	assert.Equal(t, "text-embedding-004", store.gotModel,
		"similarity search must be scoped to the embedder's model")
}

func TestMakeSnippet(t *testing.T) {
	long := strings.Repeat("knowledge base content ", 40)
	snippet := makeSnippet(long, snippetLength)
	if len(snippet) > snippetLength+len("…") {
		t.Fatalf("snippet too long: %d", len(snippet))
	}
	if !strings.HasSuffix(snippet, "…") {
		t.Fatalf("truncated snippet should end with an ellipsis")
	}

	short := "short text"
	if makeSnippet(short, snippetLength) != short {
		t.Fatalf("short text should pass through untouched")
	}
}
