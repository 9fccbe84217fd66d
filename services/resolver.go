package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/wize-works/helpNINJA-sub004/models"
)

const (
	DefaultMaxResults = 6
	MaxResultsCap     = 12

	snippetLength = 280
)

// Embedder turns text into a vector. The model and its dimensionality
// are properties of the client, not arguments, so one resolver can
// never mix vectors from different models.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
	Dimensions() int
}

// AnswerStore serves the curated side of resolution.
type AnswerStore interface {
	FindActive(ctx context.Context, tenantID primitive.ObjectID, siteID string) ([]models.CuratedAnswer, error)
}

// ScoredChunk is one vector-store hit before snippet construction.
type ScoredChunk struct {
	Chunk models.DocumentChunk
	Score float64
}

// VectorStore serves the retrieval side of resolution. Implementations
// must filter by tenant (and site when given) inside the query, not on
// the returned rows, and must only compare vectors recorded under the
// given model.
type VectorStore interface {
	SimilaritySearch(ctx context.Context, tenantID primitive.ObjectID, siteID, model string, vector []float32, topK int) ([]ScoredChunk, error)
}

// RetrievalResult is one ranked passage with its citation data.
type RetrievalResult struct {
	Chunk   models.DocumentChunk `json:"chunk"`
	Score   float64              `json:"score"`
	Title   string               `json:"title"`
	URL     string               `json:"url,omitempty"`
	Snippet string               `json:"snippet"`
}

// Resolution is the outcome of one resolver call. Both lists may be
// empty; an empty resolution is a legitimate answer, not an error.
type Resolution struct {
	CuratedAnswers []models.CuratedAnswer `json:"curated_answers"`
	RAGResults     []RetrievalResult      `json:"rag_results"`
}

// Confidence collapses a resolution into the score the escalation
// rules consume: a curated hit is authoritative, a retrieval-backed
// answer carries its top similarity, and an empty resolution is zero.
func (r Resolution) Confidence() float64 {
	if len(r.CuratedAnswers) > 0 {
		return 1.0
	}
	if len(r.RAGResults) > 0 {
		return r.RAGResults[0].Score
	}
	return 0
}

type ResolveInput struct {
	TenantID   primitive.ObjectID
	Query      string
	MaxResults int
	SiteID     string
}

// AnswerResolver composes the curated-answer lookup with vector
// retrieval. It is stateless and read-only; persisting the resulting
// conversation is the caller's job.
type AnswerResolver struct {
	answers  AnswerStore
	vectors  VectorStore
	embedder Embedder
}

func NewAnswerResolver(answers AnswerStore, vectors VectorStore, embedder Embedder) *AnswerResolver {
	return &AnswerResolver{
		answers:  answers,
		vectors:  vectors,
		embedder: embedder,
	}
}

// Resolve returns curated answers and retrieved passages for a query,
// both ranked, both always computed. Curated lookup and retrieval hit
// independent stores, so they run concurrently; ctx cancellation stops
// both.
func (r *AnswerResolver) Resolve(ctx context.Context, in ResolveInput) (*Resolution, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidInput)
	}
	if in.TenantID.IsZero() {
		return nil, fmt.Errorf("%w: missing tenant id", ErrInvalidInput)
	}

	topK := in.MaxResults
	if topK <= 0 {
		topK = DefaultMaxResults
	}
	if topK > MaxResultsCap {
		topK = MaxResultsCap
	}

	tracer := otel.Tracer("answer-resolver")
	ctx, span := tracer.Start(ctx, "resolver.resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("resolver.tenant_id", in.TenantID.Hex()),
		attribute.Int("resolver.top_k", topK),
		attribute.Bool("resolver.site_scoped", in.SiteID != ""),
	)

	var (
		curated   []models.CuratedAnswer
		retrieved []RetrievalResult
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		answers, err := r.answers.FindActive(gctx, in.TenantID, in.SiteID)
		if err != nil {
			return fmt.Errorf("%w: curated lookup: %v", ErrStoreUnavailable, err)
		}
		curated = matchCuratedAnswers(answers, query)
		return nil
	})

	g.Go(func() error {
		vector, err := r.embedder.Embed(gctx, query)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrEmbeddingService, err)
		}

		hits, err := r.vectors.SimilaritySearch(gctx, in.TenantID, in.SiteID, r.embedder.Model(), vector, topK)
		if err != nil {
			return fmt.Errorf("%w: similarity search: %v", ErrStoreUnavailable, err)
		}
		retrieved = buildRetrievalResults(hits)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("resolver.curated_hits", len(curated)),
		attribute.Int("resolver.rag_hits", len(retrieved)),
	)

	return &Resolution{CuratedAnswers: curated, RAGResults: retrieved}, nil
}

type scoredAnswer struct {
	answer models.CuratedAnswer
	score  int
}

// matchCuratedAnswers does case-insensitive containment matching of the
// query against each answer's trigger question and keywords. Ordering
// is priority desc, then match specificity (matched keyword count)
// desc, then creation order; the sort is stable so identical inputs
// always rank identically.
func matchCuratedAnswers(answers []models.CuratedAnswer, query string) []models.CuratedAnswer {
	normalized := strings.ToLower(strings.TrimSpace(query))

	var scored []scoredAnswer
	for _, answer := range answers {
		if answer.Status != models.AnswerStatusActive {
			continue
		}

		score := 0
		for _, keyword := range answer.Keywords {
			kw := strings.ToLower(strings.TrimSpace(keyword))
			if kw != "" && strings.Contains(normalized, kw) {
				score++
			}
		}

		question := strings.ToLower(strings.TrimSpace(answer.Question))
		if question != "" && (strings.Contains(normalized, question) || strings.Contains(question, normalized)) {
			score++
		}

		if score > 0 {
			scored = append(scored, scoredAnswer{answer: answer, score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].answer.Priority != scored[j].answer.Priority {
			return scored[i].answer.Priority > scored[j].answer.Priority
		}
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].answer.CreatedAt.Before(scored[j].answer.CreatedAt)
	})

	matched := make([]models.CuratedAnswer, 0, len(scored))
	for _, s := range scored {
		matched = append(matched, s.answer)
	}
	return matched
}

// buildRetrievalResults re-sorts hits descending by score with chunk id
// as the tie-break, so floating-point ties cannot reorder results
// between runs.
func buildRetrievalResults(hits []ScoredChunk) []RetrievalResult {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ID.Hex() < hits[j].Chunk.ID.Hex()
	})

	results := make([]RetrievalResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, RetrievalResult{
			Chunk:   hit.Chunk,
			Score:   hit.Score,
			Title:   hit.Chunk.SourceTitle,
			URL:     hit.Chunk.SourceURL,
			Snippet: makeSnippet(hit.Chunk.Text, snippetLength),
		})
	}
	return results
}

// makeSnippet trims text to roughly max characters, breaking on a word
// boundary when one is close enough.
func makeSnippet(text string, max int) string {
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return text
	}

	cut := max
	for cut > max/2 && !unicode.IsSpace(rune(text[cut])) {
		cut--
	}
	if cut <= max/2 {
		cut = max
	}
	return strings.TrimSpace(text[:cut]) + "…"
}
