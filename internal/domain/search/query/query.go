// Package query holds the validated per-query specification driving the
// retrieval pipeline.
package query

import (
	"fmt"

	"github.com/lexibase/passrank/internal/domain"
	"github.com/lexibase/passrank/internal/domain/search/filter"
)

// Budget defaults and limits.
const (
	MaxQueryLength = 4096

	DefaultPreK = 200
	DefaultMMRK = 20
	DefaultTopN = 10
	MaxPreK     = 1000
)

// Spec is a validated query specification. Budgets always satisfy
// topN <= mmrK <= preK after construction.
type Spec struct {
	query     string
	filters   filter.Filter
	preK      int
	mmrK      int
	topN      int
	threshold *float64
}

// New validates and normalizes query parameters. Zero budgets take the
// defaults; budgets violating the ordering invariant are clamped, never
// rejected. Negative budgets fail fast, before any retrieval is issued.
// An empty query is accepted: the pipeline answers it with an empty result.
func New(q string, f filter.Filter, preK, mmrK, topN int, threshold *float64) (Spec, error) {
	if len(q) > MaxQueryLength {
		return Spec{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrInvalidQuery, MaxQueryLength)
	}
	if preK < 0 || mmrK < 0 || topN < 0 {
		return Spec{}, fmt.Errorf(
			"%w: budgets must be non-negative (pre_k=%d, mmr_k=%d, top_n=%d)",
			domain.ErrInvalidQuery, preK, mmrK, topN,
		)
	}
	if preK == 0 {
		preK = DefaultPreK
	}
	if preK > MaxPreK {
		preK = MaxPreK
	}
	if mmrK == 0 {
		mmrK = DefaultMMRK
	}
	if topN == 0 {
		topN = DefaultTopN
	}
	// Clamp to final <= diversity pool <= initial pool.
	if mmrK > preK {
		mmrK = preK
	}
	if topN > mmrK {
		topN = mmrK
	}

	return Spec{
		query:     q,
		filters:   f,
		preK:      preK,
		mmrK:      mmrK,
		topN:      topN,
		threshold: threshold,
	}, nil
}

// Query returns the query text.
func (s *Spec) Query() string { return s.query }

// Filters returns the metadata constraints.
func (s *Spec) Filters() filter.Filter { return s.filters }

// PreK returns the initial candidate pool budget.
func (s *Spec) PreK() int { return s.preK }

// MMRK returns the diversity-selection pool budget.
func (s *Spec) MMRK() int { return s.mmrK }

// TopN returns the final result count budget.
func (s *Spec) TopN() int { return s.topN }

// Threshold returns the optional minimum reranker score, nil when unset.
func (s *Spec) Threshold() *float64 { return s.threshold }
