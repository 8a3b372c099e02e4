package search

import (
	"math"

	"github.com/lexibase/passrank/internal/domain"
)

// selectMMR greedily picks up to k candidates by Maximal Marginal Relevance:
// adjusted = lambda*fused - (1-lambda)*maxSimToSelected, where the similarity
// term is the highest cosine similarity between the candidate's embedding and
// any already-selected embedding.
//
// Input must be pre-sorted by fused score descending; the top candidate seeds
// the selection. Ties on the adjusted score break by fused score, then by
// passage ID. When k meets or exceeds the pool, the pool is returned in fused
// order unchanged.
func selectMMR(cands []domain.ScoredCandidate, k int, lambda float64) []domain.ScoredCandidate {
	if k <= 0 || len(cands) == 0 {
		return nil
	}
	if k >= len(cands) {
		out := make([]domain.ScoredCandidate, len(cands))
		copy(out, cands)
		return out
	}

	selected := make([]domain.ScoredCandidate, 0, k)
	remaining := make([]domain.ScoredCandidate, len(cands)-1)
	copy(remaining, cands[1:])
	selected = append(selected, cands[0])

	// maxSim[i] tracks the highest similarity between remaining[i] and the
	// selected set; only the latest pick needs comparing each round.
	maxSim := make([]float64, len(remaining))
	for i := range remaining {
		maxSim[i] = cosineSimilarity(remaining[i].Embedding, selected[0].Embedding)
	}

	for len(selected) < k && len(remaining) > 0 {
		best := 0
		bestAdj := lambda*remaining[0].Fused - (1-lambda)*maxSim[0]
		for i := 1; i < len(remaining); i++ {
			adj := lambda*remaining[i].Fused - (1-lambda)*maxSim[i]
			if adj > bestAdj ||
				(adj == bestAdj && remaining[i].Fused > remaining[best].Fused) ||
				(adj == bestAdj && remaining[i].Fused == remaining[best].Fused && remaining[i].ID < remaining[best].ID) {
				best = i
				bestAdj = adj
			}
		}

		pick := remaining[best]
		selected = append(selected, pick)
		remaining = append(remaining[:best], remaining[best+1:]...)
		maxSim = append(maxSim[:best], maxSim[best+1:]...)

		for i := range remaining {
			if sim := cosineSimilarity(remaining[i].Embedding, pick.Embedding); sim > maxSim[i] {
				maxSim[i] = sim
			}
		}
	}

	return selected
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or empty vectors yield zero.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
