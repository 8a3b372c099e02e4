package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lexibase/passrank/internal/domain"
	"github.com/lexibase/passrank/internal/metrics"
)

const crossEncoderProvider = "cross_encoder"

// CrossEncoderConfig holds settings for the remote cross-encoder client.
type CrossEncoderConfig struct {
	// BaseURL of a TEI-compatible reranking service exposing POST /rerank.
	BaseURL string
	Model   string
	Timeout time.Duration
	// MaxRequestsPerSec throttles calls to the scoring service. Zero disables
	// the limiter.
	MaxRequestsPerSec float64
	Logger            *zap.Logger
}

// CrossEncoder scores (query, text) pairs against a remote cross-encoder
// model behind a TEI-style /rerank endpoint. Calls go through a circuit
// breaker and an optional rate limiter; every failure wraps
// domain.ErrRerankerUnavailable so the orchestrator can decide between
// failing and degrading.
type CrossEncoder struct {
	client  *http.Client
	baseURL string
	model   string
	breaker *gobreaker.CircuitBreaker[[]float64]
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewCrossEncoder creates the remote cross-encoder client.
func NewCrossEncoder(cfg CrossEncoderConfig) *CrossEncoder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.MaxRequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxRequestsPerSec), 1)
	}

	breaker := gobreaker.NewCircuitBreaker[[]float64](gobreaker.Settings{
		Name:    "reranker",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("reranker breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &CrossEncoder{
		client:  &http.Client{Timeout: timeout},
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		breaker: breaker,
		limiter: limiter,
		logger:  logger,
	}
}

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
	Model string   `json:"model,omitempty"`
}

type rerankEntry struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Score implements the reranker contract.
func (c *CrossEncoder) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("reranker rate limiter: %w: %w", domain.ErrRerankerUnavailable, err)
		}
	}

	start := time.Now()
	scores, err := c.breaker.Execute(func() ([]float64, error) {
		return c.score(ctx, query, texts)
	})
	if err != nil {
		metrics.RerankRequestsTotal.WithLabelValues(crossEncoderProvider, "error").Inc()
		return nil, fmt.Errorf("cross-encoder rerank: %w: %w", domain.ErrRerankerUnavailable, err)
	}

	metrics.RerankRequestsTotal.WithLabelValues(crossEncoderProvider, "success").Inc()
	metrics.RerankRequestDuration.WithLabelValues(crossEncoderProvider).Observe(time.Since(start).Seconds())
	return scores, nil
}

func (c *CrossEncoder) score(ctx context.Context, query string, texts []string) ([]float64, error) {
	body, err := json.Marshal(rerankRequest{Query: query, Texts: texts, Model: c.model})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rerank API status %d: %s", resp.StatusCode, snippet)
	}

	var entries []rerankEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	if len(entries) != len(texts) {
		return nil, fmt.Errorf("rerank API returned %d scores for %d texts", len(entries), len(texts))
	}

	// The API returns entries sorted by score; realign to input order.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Index < entries[j].Index })
	scores := make([]float64, len(texts))
	for i, e := range entries {
		if e.Index != i {
			return nil, fmt.Errorf("rerank API returned invalid index %d", e.Index)
		}
		scores[i] = e.Score
	}
	return scores, nil
}

// HealthCheck probes the scoring service.
func (c *CrossEncoder) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("reranker health: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reranker health status %d", resp.StatusCode)
	}
	return nil
}
