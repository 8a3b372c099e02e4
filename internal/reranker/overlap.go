// Package reranker provides the pairwise relevance scorers behind the
// pipeline's Reranker contract: a remote cross-encoder client and a
// deterministic token-overlap fallback.
package reranker

import (
	"context"
	"strings"
)

// Overlap scores (query, text) pairs by Jaccard similarity over lowercased
// whitespace tokens. Fully deterministic and dependency-free; serves as the
// degraded strategy when the cross-encoder is unavailable and as the scorer
// for model-free deployments and tests.
type Overlap struct{}

// NewOverlap creates the token-overlap scorer.
func NewOverlap() *Overlap {
	return &Overlap{}
}

// Score implements the reranker contract. Scores are in [0,1].
func (o *Overlap) Score(_ context.Context, query string, texts []string) ([]float64, error) {
	qs := tokenSet(query)
	scores := make([]float64, len(texts))
	for i, t := range texts {
		scores[i] = jaccard(qs, tokenSet(t))
	}
	return scores, nil
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
