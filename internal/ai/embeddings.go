package ai

import (
	"context"
	"fmt"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// knownDimensions maps embedding models to their output width. A model
// missing here needs an explicit dimension in config.
var knownDimensions = map[string]int{
	"text-embedding-004":     768,
	"gemini-embedding-001":   3072,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
}

// GeminiEmbedder produces query/chunk vectors through the Google
// Generative AI API. One instance is constructed at startup and
// injected everywhere an embedding is needed; the model and its
// dimensionality are fixed for the instance's lifetime, so callers
// cannot accidentally mix vectors from different models.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
	dims   int
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string, dims int) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}
	if model == "" {
		model = "text-embedding-004"
	}
	if dims == 0 {
		known, ok := knownDimensions[model]
		if !ok {
			return nil, fmt.Errorf("unknown embedding model %q: set VECTOR_DIM explicitly", model)
		}
		dims = known
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return &GeminiEmbedder{client: client, model: model, dims: dims}, nil
}

// Embed returns the embedding vector for text. Transient provider
// failures are retried with backoff here; callers (the resolver in
// particular) treat any error from Embed as final.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vector []float32

	err := retry.Do(
		func() error {
			model := e.client.EmbeddingModel(e.model)
			resp, err := model.EmbedContent(ctx, genai.Text(text))
			if err != nil {
				return err
			}
			if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
				return fmt.Errorf("no embedding returned")
			}
			vector = resp.Embedding.Values
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	if len(vector) != e.dims {
		return nil, fmt.Errorf("embedding model %s returned %d dimensions, expected %d",
			e.model, len(vector), e.dims)
	}
	return vector, nil
}

func (e *GeminiEmbedder) Model() string   { return e.model }
func (e *GeminiEmbedder) Dimensions() int { return e.dims }

func (e *GeminiEmbedder) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
