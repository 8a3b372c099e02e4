package domain

import "errors"

var (
	// ErrRetrieval indicates a candidate source failed to produce results.
	ErrRetrieval = errors.New("candidate retrieval failed")

	// ErrInvalidQuery indicates a query spec that cannot be executed.
	ErrInvalidQuery = errors.New("invalid query spec")

	// ErrRerankerUnavailable indicates the reranking backend could not score
	// the candidate pool.
	ErrRerankerUnavailable = errors.New("reranker unavailable")

	// ErrEmbeddingProvider indicates an upstream embedding API failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")

	// ErrEmbeddingDimMismatch indicates the provider returned a vector of an
	// unexpected dimensionality.
	ErrEmbeddingDimMismatch = errors.New("embedding dimension mismatch")
)
