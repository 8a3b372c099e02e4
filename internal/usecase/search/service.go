// Package search implements the retrieval-and-reranking pipeline: score
// normalization, weighted fusion, MMR diversity selection, and cross-encoder
// reranking over candidates supplied by a swappable Source.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lexibase/passrank/internal/domain"
	"github.com/lexibase/passrank/internal/domain/search/query"
	"github.com/lexibase/passrank/internal/metrics"
)

// Fusion and diversity defaults.
const (
	DefaultAlpha  = 0.5
	DefaultLambda = 0.6
)

// Options holds the fusion and diversity trade-off weights.
type Options struct {
	// Alpha weighs the lexical signal in fusion; 1-Alpha weighs the semantic
	// signal. Zero value takes DefaultAlpha.
	Alpha *float64
	// Lambda weighs relevance against redundancy in MMR selection. Zero value
	// takes DefaultLambda.
	Lambda *float64
}

// Service drives the pipeline for one query at a time. It holds no per-query
// state: every Search call owns its data exclusively and discards it on
// return.
type Service struct {
	source   Source
	embed    Embedder
	reranker Reranker
	fallback Reranker
	alpha    float64
	lambda   float64
	logger   *zap.Logger
}

// New creates the pipeline service. Weights outside [0,1] are a configuration
// error and fail fast, before any query is accepted.
func New(source Source, embed Embedder, reranker Reranker, opts Options, logger *zap.Logger) (*Service, error) {
	alpha := DefaultAlpha
	if opts.Alpha != nil {
		alpha = *opts.Alpha
	}
	lambda := DefaultLambda
	if opts.Lambda != nil {
		lambda = *opts.Lambda
	}
	if alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("fusion alpha must be in [0,1], got %v", alpha)
	}
	if lambda < 0 || lambda > 1 {
		return nil, fmt.Errorf("mmr lambda must be in [0,1], got %v", lambda)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		source:   source,
		embed:    embed,
		reranker: reranker,
		alpha:    alpha,
		lambda:   lambda,
		logger:   logger,
	}, nil
}

// WithFallback sets the degraded reranker strategy used when the primary
// reranker fails. Without one, a primary failure fails the request.
func (s *Service) WithFallback(r Reranker) *Service {
	s.fallback = r
	return s
}

// Search runs the full pipeline for one query spec and returns the final
// ranked results, ordered by reranker score descending.
//
// An empty query or an empty candidate set yields an empty result, not an
// error. Upstream retrieval failures and reranker unavailability surface to
// the caller.
func (s *Service) Search(ctx context.Context, spec query.Spec) ([]domain.RankedResult, error) {
	if strings.TrimSpace(spec.Query()) == "" {
		return nil, nil
	}

	embRes, err := s.embed.Embed(ctx, spec.Query())
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	lex, sem, err := s.retrieve(ctx, spec, embRes.Embedding)
	if err != nil {
		return nil, err
	}
	metrics.ObserveSearchCandidates("lexical", len(lex))
	metrics.ObserveSearchCandidates("semantic", len(sem))

	if len(lex) == 0 && len(sem) == 0 {
		return nil, nil
	}

	fuseStart := time.Now()
	fused := fuseWeighted(lex, sem, s.alpha, spec.PreK())
	pool := selectMMR(fused, spec.MMRK(), s.lambda)
	metrics.ObserveSearchStage("fuse_mmr", time.Since(fuseStart))
	metrics.ObserveSearchCandidates("fused", len(fused))
	metrics.ObserveSearchCandidates("diversity_pool", len(pool))

	results, err := s.rerank(ctx, spec, pool)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("search pipeline completed",
		zap.Int("lexical", len(lex)),
		zap.Int("semantic", len(sem)),
		zap.Int("fused", len(fused)),
		zap.Int("pool", len(pool)),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// retrieve issues the lexical and semantic searches concurrently and joins
// both before fusion. Concurrency here is a latency optimization only; either
// failure fails the retrieval as a whole.
func (s *Service) retrieve(
	ctx context.Context, spec query.Spec, embedding []float32,
) (lex, sem []domain.Candidate, err error) {
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		res, lerr := s.source.LexicalSearch(gctx, spec.Query(), spec.Filters(), spec.PreK())
		if lerr != nil {
			return fmt.Errorf("lexical search: %w: %w", domain.ErrRetrieval, lerr)
		}
		lex = res
		return nil
	})
	g.Go(func() error {
		res, serr := s.source.SemanticSearch(gctx, embedding, spec.Filters(), spec.PreK())
		if serr != nil {
			return fmt.Errorf("semantic search: %w: %w", domain.ErrRetrieval, serr)
		}
		sem = res
		return nil
	})

	if err = g.Wait(); err != nil {
		return nil, nil, err
	}
	metrics.ObserveSearchStage("retrieve", time.Since(start))
	return lex, sem, nil
}

// rerank scores the diversity pool pairwise against the query, sorts by the
// reranker score descending (ties by passage ID for determinism), truncates
// to topN, and applies the optional hard threshold.
func (s *Service) rerank(
	ctx context.Context, spec query.Spec, pool []domain.ScoredCandidate,
) ([]domain.RankedResult, error) {
	if len(pool) == 0 {
		return nil, nil
	}

	texts := make([]string, len(pool))
	for i := range pool {
		texts[i] = pool[i].RerankText()
	}

	start := time.Now()
	scores, err := s.reranker.Score(ctx, spec.Query(), texts)
	if err != nil {
		if s.fallback == nil {
			return nil, fmt.Errorf("score candidates: %w: %w", domain.ErrRerankerUnavailable, err)
		}
		s.logger.Warn("primary reranker failed, degrading", zap.Error(err))
		scores, err = s.fallback.Score(ctx, spec.Query(), texts)
		if err != nil {
			return nil, fmt.Errorf("fallback score: %w: %w", domain.ErrRerankerUnavailable, err)
		}
	}
	metrics.ObserveSearchStage("rerank", time.Since(start))

	if len(scores) != len(pool) {
		return nil, fmt.Errorf(
			"%w: got %d scores for %d candidates", domain.ErrRerankerUnavailable, len(scores), len(pool),
		)
	}

	ranked := make([]domain.RankedResult, len(pool))
	for i := range pool {
		ranked[i] = domain.RankedResult{ScoredCandidate: pool[i], Rerank: scores[i]}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Rerank != ranked[j].Rerank {
			return ranked[i].Rerank > ranked[j].Rerank
		}
		return ranked[i].ID < ranked[j].ID
	})

	if len(ranked) > spec.TopN() {
		ranked = ranked[:spec.TopN()]
	}

	if t := spec.Threshold(); t != nil {
		kept := ranked[:0]
		for _, r := range ranked {
			if r.Rerank >= *t {
				kept = append(kept, r)
			}
		}
		ranked = kept
	}

	return ranked, nil
}
