// Package httpapi exposes the search pipeline over a small chi-routed HTTP
// surface: POST /search, GET /healthz, GET /metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lexibase/passrank/internal/domain"
	"github.com/lexibase/passrank/internal/domain/search/filter"
	"github.com/lexibase/passrank/internal/domain/search/query"
	"github.com/lexibase/passrank/internal/version"
)

// SearchService is the consumer contract over the pipeline.
type SearchService interface {
	Search(ctx context.Context, spec query.Spec) ([]domain.RankedResult, error)
}

// Pinger reports backing store connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires the search pipeline to HTTP handlers.
type Server struct {
	search SearchService
	pinger Pinger
	logger *zap.Logger
}

// NewServer creates the HTTP API server. pinger may be nil when no backing
// store participates in health checks.
func NewServer(search SearchService, pinger Pinger, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{search: search, pinger: pinger, logger: logger}
}

// Register mounts the API routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Post("/search", s.handleSearch)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
}

type filterParams struct {
	Year     *int   `json:"year,omitempty"`
	Category string `json:"category,omitempty"`
}

type searchRequest struct {
	Query     string        `json:"query"`
	Filters   *filterParams `json:"filters,omitempty"`
	PreK      int           `json:"pre_k,omitempty"`
	MMRK      int           `json:"mmr_k,omitempty"`
	TopN      int           `json:"top_n,omitempty"`
	Threshold *float64      `json:"threshold,omitempty"`
}

type rankedResult struct {
	ID         string  `json:"id"`
	DocID      string  `json:"doc_id"`
	Title      string  `json:"title"`
	Heading    string  `json:"heading,omitempty"`
	Text       string  `json:"text"`
	ParentText string  `json:"parent_text"`
	Year       int     `json:"year,omitempty"`
	Category   string  `json:"category,omitempty"`
	Lexical    float64 `json:"lex"`
	Distance   float64 `json:"distance"`
	LexNorm    float64 `json:"lex_norm"`
	SemNorm    float64 `json:"sem_norm"`
	Fused      float64 `json:"fused"`
	Rerank     float64 `json:"rerank"`
}

type searchResponse struct {
	Results []rankedResult `json:"results"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}

	var f filter.Filter
	if req.Filters != nil {
		f = filter.New(req.Filters.Year, req.Filters.Category)
	}

	spec, err := query.New(req.Query, f, req.PreK, req.MMRK, req.TopN, req.Threshold)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}

	results, err := s.search.Search(r.Context(), spec)
	if err != nil {
		s.handleSearchError(w, err)
		return
	}

	resp := searchResponse{Results: make([]rankedResult, 0, len(results))}
	for i := range results {
		resp.Results = append(resp.Results, toRanked(&results[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrRetrieval):
		writeError(w, http.StatusBadGateway, "retrieval_failed", err.Error())
	case errors.Is(err, domain.ErrEmbeddingProvider), errors.Is(err, domain.ErrEmbeddingDimMismatch):
		writeError(w, http.StatusBadGateway, "embedding_failed", err.Error())
	case errors.Is(err, domain.ErrRerankerUnavailable):
		writeError(w, http.StatusServiceUnavailable, "reranker_unavailable", err.Error())
	case errors.Is(err, domain.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
	default:
		s.logger.Error("search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "degraded",
				"version": version.Version,
				"error":   err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func toRanked(r *domain.RankedResult) rankedResult {
	return rankedResult{
		ID:         r.ID,
		DocID:      r.DocID,
		Title:      r.Title,
		Heading:    r.Heading,
		Text:       r.Text,
		ParentText: r.ContextText(),
		Year:       r.Year,
		Category:   r.Category,
		Lexical:    r.Lexical,
		Distance:   r.Distance,
		LexNorm:    r.LexNorm,
		SemNorm:    r.SemNorm,
		Fused:      r.Fused,
		Rerank:     r.Rerank,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
