// Package metrics holds the Prometheus instrumentation for the search
// pipeline and HTTP surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	searchStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "passrank",
			Name:      "search_stage_duration_seconds",
			Help:      "Duration of each pipeline stage",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"stage"}, // retrieve / fuse_mmr / rerank
	)

	searchCandidates = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "passrank",
			Name:      "search_candidates",
			Help:      "Candidate counts entering and leaving pipeline stages",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100, 200, 500, 1000},
		},
		[]string{"stage"},
	)

	// RerankRequestsTotal counts remote reranker invocations by outcome.
	RerankRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "passrank",
			Name:      "rerank_requests_total",
			Help:      "Total number of reranker model requests",
		},
		[]string{"provider", "status"},
	)

	// RerankRequestDuration times remote reranker invocations.
	RerankRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "passrank",
			Name:      "rerank_request_duration_seconds",
			Help:      "Reranker model request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider"},
	)
)

// ObserveSearchStage records the wall time of one pipeline stage.
func ObserveSearchStage(stage string, d time.Duration) {
	searchStageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveSearchCandidates records a candidate count at a pipeline stage.
func ObserveSearchCandidates(stage string, n int) {
	searchCandidates.WithLabelValues(stage).Observe(float64(n))
}

var searchMetricsRegistered bool

// RegisterSearchMetrics registers pipeline metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(searchStageDuration)
	prometheus.MustRegister(searchCandidates)
	prometheus.MustRegister(RerankRequestsTotal)
	prometheus.MustRegister(RerankRequestDuration)
	searchMetricsRegistered = true
}
