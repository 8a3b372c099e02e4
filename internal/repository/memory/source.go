// Package memory implements the candidate Source over an in-process passage
// slice. It backs tests and storage-free deployments; scoring mirrors the
// Postgres source in spirit (heading terms weighted above body terms, cosine
// distance for the semantic signal) without claiming rank parity.
package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/lexibase/passrank/internal/domain"
	"github.com/lexibase/passrank/internal/domain/search/filter"
)

// headingWeight scores a term hit in the heading above one in the body.
const headingWeight = 2.0

// Source holds passages in memory.
type Source struct {
	mu       sync.RWMutex
	passages []domain.Passage
}

// New creates an empty in-memory source.
func New() *Source {
	return &Source{}
}

// Add appends passages to the corpus.
func (s *Source) Add(passages ...domain.Passage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passages = append(s.passages, passages...)
}

// Len returns the corpus size.
func (s *Source) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.passages)
}

// LexicalSearch scores passages by weighted term frequency over the query
// terms. Passages with no term overlap are not candidates.
func (s *Source) LexicalSearch(
	_ context.Context, query string, f filter.Filter, limit int,
) ([]domain.Candidate, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Candidate
	for _, p := range s.passages {
		if !f.Matches(p.Year, p.Category) {
			continue
		}
		score := lexicalScore(terms, p.Heading, p.Text)
		if score == 0 {
			continue
		}
		out = append(out, domain.Candidate{Passage: p, Lexical: score, HasLexical: true})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Lexical != out[j].Lexical {
			return out[i].Lexical > out[j].Lexical
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SemanticSearch ranks passages by cosine distance to the query embedding,
// nearest first. Passages without an embedding are not candidates.
func (s *Source) SemanticSearch(
	_ context.Context, embedding []float32, f filter.Filter, limit int,
) ([]domain.Candidate, error) {
	if len(embedding) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Candidate
	for _, p := range s.passages {
		if !f.Matches(p.Year, p.Category) || len(p.Embedding) == 0 {
			continue
		}
		dist := 1 - cosine(embedding, p.Embedding)
		out = append(out, domain.Candidate{Passage: p, Distance: dist, HasSemantic: true})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func lexicalScore(terms []string, heading, body string) float64 {
	headingTokens := strings.Fields(strings.ToLower(heading))
	bodyTokens := strings.Fields(strings.ToLower(body))

	var score float64
	for _, term := range terms {
		for _, t := range headingTokens {
			if t == term {
				score += headingWeight
			}
		}
		for _, t := range bodyTokens {
			if t == term {
				score++
			}
		}
	}
	return score
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
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
