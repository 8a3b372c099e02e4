package search

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/lexibase/passrank/internal/domain"
	"github.com/lexibase/passrank/internal/domain/search/filter"
	"github.com/lexibase/passrank/internal/domain/search/query"
)

// --- Mocks ---

type mockSource struct {
	lexResults []domain.Candidate
	lexErr     error
	semResults []domain.Candidate
	semErr     error
	lexCalled  bool
	semCalled  bool
	lastLimit  int
}

func (m *mockSource) LexicalSearch(
	_ context.Context, _ string, _ filter.Filter, limit int,
) ([]domain.Candidate, error) {
	m.lexCalled = true
	m.lastLimit = limit
	return m.lexResults, m.lexErr
}

func (m *mockSource) SemanticSearch(
	_ context.Context, _ []float32, _ filter.Filter, limit int,
) ([]domain.Candidate, error) {
	m.semCalled = true
	return m.semResults, m.semErr
}

type mockEmbedder struct {
	vec    []float32
	err    error
	called bool
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.called = true
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec}, nil
}

type mockReranker struct {
	scores []float64
	err    error
	// scoreFn overrides the canned response when set.
	scoreFn func(texts []string) []float64
	calls   int
}

func (m *mockReranker) Score(_ context.Context, _ string, texts []string) ([]float64, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.scoreFn != nil {
		return m.scoreFn(texts), nil
	}
	return m.scores, nil
}

// descendingScorer assigns scores that decrease with input position, keeping
// relative order stable regardless of pool size.
func descendingScorer(texts []string) []float64 {
	out := make([]float64, len(texts))
	for i := range texts {
		out[i] = float64(len(texts) - i)
	}
	return out
}

func makeSpec(t *testing.T, q string, preK, mmrK, topN int, threshold *float64) query.Spec {
	t.Helper()
	spec, err := query.New(q, filter.Filter{}, preK, mmrK, topN, threshold)
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}
	return spec
}

func newService(t *testing.T, src Source, emb Embedder, rr Reranker) *Service {
	t.Helper()
	svc, err := New(src, emb, rr, Options{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

// corpusCandidates builds n lexical and n semantic candidates with overlap
// shared IDs between them.
func corpusCandidates(n, overlap int) (lex, sem []domain.Candidate) {
	for i := 0; i < n; i++ {
		lex = append(lex, domain.Candidate{
			Passage: domain.Passage{
				ID:       fmt.Sprintf("lex-%03d", i),
				Text:     fmt.Sprintf("lexical passage %d", i),
				Category: "legal",
				Embedding: []float32{
					float32(i) / float32(n), 1 - float32(i)/float32(n),
				},
			},
			Lexical:    1 - float64(i)/float64(n),
			HasLexical: true,
		})
	}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("sem-%03d", i)
		if i < overlap {
			id = fmt.Sprintf("lex-%03d", i)
		}
		sem = append(sem, domain.Candidate{
			Passage: domain.Passage{
				ID:       id,
				Text:     fmt.Sprintf("semantic passage %d", i),
				Category: "legal",
				Embedding: []float32{
					1 - float32(i)/float32(n), float32(i) / float32(n),
				},
			},
			Distance:    float64(i) / float64(n),
			HasSemantic: true,
		})
	}
	return lex, sem
}

// --- Tests ---

func TestSearch_EndToEnd(t *testing.T) {
	lex, sem := corpusCandidates(50, 10)
	src := &mockSource{lexResults: lex, semResults: sem}
	emb := &mockEmbedder{vec: []float32{0.5, 0.5}}
	rr := &mockReranker{scoreFn: descendingScorer}
	svc := newService(t, src, emb, rr)

	spec := makeSpec(t, "statute of limitations", 200, 20, 8, nil)
	results, err := svc.Search(context.Background(), spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != 8 {
		t.Fatalf("expected 8 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Rerank > results[i-1].Rerank {
			t.Errorf("results not sorted by rerank score at index %d", i)
		}
	}
	seen := map[string]bool{}
	for _, r := range results {
		if seen[r.ID] {
			t.Errorf("duplicate result %s", r.ID)
		}
		seen[r.ID] = true
		if r.Category != "legal" {
			t.Errorf("unexpected category %q on %s", r.Category, r.ID)
		}
	}
	if !src.lexCalled || !src.semCalled || !emb.called {
		t.Error("expected both searches and the embedder to be called")
	}
	if rr.calls != 1 {
		t.Errorf("expected a single reranker call, got %d", rr.calls)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	src := &mockSource{}
	svc := newService(t, src, &mockEmbedder{}, &mockReranker{})

	spec := makeSpec(t, "   ", 0, 0, 0, nil)
	results, err := svc.Search(context.Background(), spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty results, got %d", len(results))
	}
	if src.lexCalled || src.semCalled {
		t.Error("no retrieval should happen for a blank query")
	}
}

func TestSearch_EmptyCorpus(t *testing.T) {
	src := &mockSource{}
	rr := &mockReranker{}
	svc := newService(t, src, &mockEmbedder{vec: []float32{1}}, rr)

	spec := makeSpec(t, "anything", 0, 0, 0, nil)
	results, err := svc.Search(context.Background(), spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty results, got %d", len(results))
	}
	if rr.calls != 0 {
		t.Error("reranker should not run on an empty pool")
	}
}

func TestSearch_ThresholdFilters(t *testing.T) {
	lex, sem := corpusCandidates(10, 0)
	src := &mockSource{lexResults: lex, semResults: sem}
	rr := &mockReranker{scoreFn: func(texts []string) []float64 {
		out := make([]float64, len(texts))
		for i := range texts {
			if i < 3 {
				out[i] = 0.9
			} else {
				out[i] = 0.1
			}
		}
		return out
	}}
	svc := newService(t, src, &mockEmbedder{vec: []float32{1, 0}}, rr)

	threshold := 0.5
	spec := makeSpec(t, "anything", 0, 0, 0, &threshold)
	results, err := svc.Search(context.Background(), spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results above threshold, got %d", len(results))
	}
	for _, r := range results {
		if r.Rerank < threshold {
			t.Errorf("result %s below threshold: %f", r.ID, r.Rerank)
		}
	}
}

func TestSearch_ThresholdAboveMaxYieldsEmpty(t *testing.T) {
	lex, sem := corpusCandidates(10, 0)
	src := &mockSource{lexResults: lex, semResults: sem}
	rr := &mockReranker{scoreFn: func(texts []string) []float64 {
		out := make([]float64, len(texts))
		for i := range texts {
			out[i] = 0.4
		}
		return out
	}}
	svc := newService(t, src, &mockEmbedder{vec: []float32{1, 0}}, rr)

	threshold := 0.41
	spec := makeSpec(t, "anything", 0, 0, 0, &threshold)
	results, err := svc.Search(context.Background(), spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results above threshold, got %d", len(results))
	}
}

func TestSearch_RetrievalErrorPropagates(t *testing.T) {
	src := &mockSource{lexErr: errors.New("connection refused")}
	svc := newService(t, src, &mockEmbedder{vec: []float32{1}}, &mockReranker{})

	spec := makeSpec(t, "anything", 0, 0, 0, nil)
	_, err := svc.Search(context.Background(), spec)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, domain.ErrRetrieval) {
		t.Errorf("expected ErrRetrieval, got %v", err)
	}
}

func TestSearch_EmbedErrorPropagates(t *testing.T) {
	emb := &mockEmbedder{err: fmt.Errorf("%w: timeout", domain.ErrEmbeddingProvider)}
	svc := newService(t, &mockSource{}, emb, &mockReranker{})

	spec := makeSpec(t, "anything", 0, 0, 0, nil)
	_, err := svc.Search(context.Background(), spec)
	if !errors.Is(err, domain.ErrEmbeddingProvider) {
		t.Errorf("expected ErrEmbeddingProvider, got %v", err)
	}
}

func TestSearch_RerankerFailureWithoutFallback(t *testing.T) {
	lex, sem := corpusCandidates(5, 0)
	src := &mockSource{lexResults: lex, semResults: sem}
	rr := &mockReranker{err: errors.New("model server down")}
	svc := newService(t, src, &mockEmbedder{vec: []float32{1, 0}}, rr)

	spec := makeSpec(t, "anything", 0, 0, 0, nil)
	_, err := svc.Search(context.Background(), spec)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, domain.ErrRerankerUnavailable) {
		t.Errorf("expected ErrRerankerUnavailable, got %v", err)
	}
}

func TestSearch_RerankerFailureDegradesToFallback(t *testing.T) {
	lex, sem := corpusCandidates(5, 0)
	src := &mockSource{lexResults: lex, semResults: sem}
	primary := &mockReranker{err: errors.New("model server down")}
	fallback := &mockReranker{scoreFn: descendingScorer}
	svc := newService(t, src, &mockEmbedder{vec: []float32{1, 0}}, primary).WithFallback(fallback)

	spec := makeSpec(t, "anything", 0, 0, 0, nil)
	results, err := svc.Search(context.Background(), spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected degraded results")
	}
	if fallback.calls != 1 {
		t.Errorf("expected fallback to score once, got %d calls", fallback.calls)
	}
}

func TestSearch_RerankerScoreCountMismatch(t *testing.T) {
	lex, sem := corpusCandidates(5, 0)
	src := &mockSource{lexResults: lex, semResults: sem}
	rr := &mockReranker{scores: []float64{1.0}}
	svc := newService(t, src, &mockEmbedder{vec: []float32{1, 0}}, rr)

	spec := makeSpec(t, "anything", 0, 0, 0, nil)
	_, err := svc.Search(context.Background(), spec)
	if !errors.Is(err, domain.ErrRerankerUnavailable) {
		t.Errorf("expected ErrRerankerUnavailable on count mismatch, got %v", err)
	}
}

func TestSearch_Idempotent(t *testing.T) {
	lex, sem := corpusCandidates(30, 5)
	src := &mockSource{lexResults: lex, semResults: sem}
	rr := &mockReranker{scoreFn: descendingScorer}
	svc := newService(t, src, &mockEmbedder{vec: []float32{0.3, 0.7}}, rr)

	spec := makeSpec(t, "anything", 0, 0, 0, nil)
	first, err := svc.Search(context.Background(), spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := svc.Search(context.Background(), spec)
		if err != nil {
			t.Fatalf("unexpected error on repeat: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatal("identical inputs must produce identical rankings")
		}
	}
}

func TestSearch_PassesPreKAsLimit(t *testing.T) {
	src := &mockSource{}
	svc := newService(t, src, &mockEmbedder{vec: []float32{1}}, &mockReranker{})

	spec := makeSpec(t, "anything", 50, 10, 5, nil)
	if _, err := svc.Search(context.Background(), spec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.lastLimit != 50 {
		t.Errorf("expected retrieval limit 50, got %d", src.lastLimit)
	}
}

func TestNew_RejectsInvalidWeights(t *testing.T) {
	bad := 1.5
	_, err := New(&mockSource{}, &mockEmbedder{}, &mockReranker{}, Options{Alpha: &bad}, nil)
	if err == nil {
		t.Error("expected error for alpha > 1")
	}
	neg := -0.1
	_, err = New(&mockSource{}, &mockEmbedder{}, &mockReranker{}, Options{Lambda: &neg}, nil)
	if err == nil {
		t.Error("expected error for negative lambda")
	}
}
