package search

import (
	"context"

	"github.com/lexibase/passrank/internal/domain"
	"github.com/lexibase/passrank/internal/domain/search/filter"
)

// Source supplies the two independently scored candidate lists for one query.
// Both calls apply the filter in-store, return at most limit candidates, and
// pre-sort by their native score (rank descending, distance ascending).
type Source interface {
	LexicalSearch(ctx context.Context, query string, f filter.Filter, limit int) ([]domain.Candidate, error)

	SemanticSearch(ctx context.Context, embedding []float32, f filter.Filter, limit int) ([]domain.Candidate, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Reranker assigns a pairwise relevance score to each (query, text) pair.
// Scores align with texts by index. Higher is more relevant; the scale is
// model-defined but must be deterministic for identical inputs.
type Reranker interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}
