package services

import "errors"

// Resolver failure taxonomy. Callers branch on these with errors.Is;
// the wrapped cause keeps the upstream detail for logs.
var (
	// ErrInvalidInput means the caller passed an empty query or tenant.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmbeddingService means the embedding call failed or timed out.
	// Retrieval failures are never reported as an empty result set:
	// "provider down" and "no relevant content" must stay
	// distinguishable.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrStoreUnavailable means the curated-answer or vector store
	// could not be queried. Retry and fallback policy belong to the
	// caller.
	ErrStoreUnavailable = errors.New("store unavailable")
)
