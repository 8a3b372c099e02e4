package search

import (
	"sort"

	"github.com/lexibase/passrank/internal/domain"
)

// fuseWeighted merges the lexical and semantic candidate lists into one set
// keyed by passage ID, computing fused = alpha*lexNorm + (1-alpha)*semNorm
// over the z-scored signals. Semantic scores are the negated distance, so
// larger is better for both signals before normalization.
//
// A candidate present in only one list contributes zero for the missing
// signal, i.e. the list average, not the worst possible value. Output is
// sorted by fused score descending, ties broken by passage ID ascending, and
// truncated to limit.
func fuseWeighted(lexical, semantic []domain.Candidate, alpha float64, limit int) []domain.ScoredCandidate {
	lexRaw := make([]float64, len(lexical))
	for i, c := range lexical {
		lexRaw[i] = c.Lexical
	}
	semRaw := make([]float64, len(semantic))
	for i, c := range semantic {
		semRaw[i] = -c.Distance
	}

	lexNorm := zScore(lexRaw)
	semNorm := zScore(semRaw)

	merged := make(map[string]*domain.ScoredCandidate, len(lexical)+len(semantic))
	order := make([]string, 0, len(lexical)+len(semantic))

	for i, c := range lexical {
		sc := &domain.ScoredCandidate{Candidate: c, LexNorm: lexNorm[i]}
		merged[c.ID] = sc
		order = append(order, c.ID)
	}

	for i, c := range semantic {
		if existing, ok := merged[c.ID]; ok {
			// Same passage surfaced by both searches: merge the signals.
			existing.Distance = c.Distance
			existing.HasSemantic = true
			existing.SemNorm = semNorm[i]
			if len(existing.Embedding) == 0 {
				existing.Embedding = c.Embedding
			}
			continue
		}
		sc := &domain.ScoredCandidate{Candidate: c, SemNorm: semNorm[i]}
		merged[c.ID] = sc
		order = append(order, c.ID)
	}

	out := make([]domain.ScoredCandidate, 0, len(merged))
	for _, id := range order {
		sc := merged[id]
		sc.Fused = alpha*sc.LexNorm + (1-alpha)*sc.SemNorm
		out = append(out, *sc)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Fused != out[j].Fused {
			return out[i].Fused > out[j].Fused
		}
		return out[i].ID < out[j].ID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
