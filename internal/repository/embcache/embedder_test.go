package embcache

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/lexibase/passrank/internal/db"
	"github.com/lexibase/passrank/internal/domain"
)

type fakeStore struct {
	data   map[string][]byte
	getErr error
	setErr error
	sets   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string][]byte{}}
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = value
	return nil
}

type countingEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (c *countingEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	c.calls++
	if c.err != nil {
		return domain.EmbeddingResult{}, c.err
	}
	return domain.EmbeddingResult{Embedding: c.vec, PromptTokens: 3, TotalTokens: 3}, nil
}

func TestCachedEmbedder_MissThenHit(t *testing.T) {
	store := newFakeStore()
	inner := &countingEmbedder{vec: []float32{0.1, 0.2, 0.3}}
	ce := New(inner, store, time.Hour, nil)

	first, err := ce.Embed(context.Background(), "query text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected inner call on miss, got %d", inner.calls)
	}
	if store.sets != 1 {
		t.Errorf("expected write-through on miss, got %d sets", store.sets)
	}

	second, err := ce.Embed(context.Background(), "query text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("hit should not call inner embedder, got %d calls", inner.calls)
	}
	if !reflect.DeepEqual(first.Embedding, second.Embedding) {
		t.Error("cached embedding differs from original")
	}
	if second.PromptTokens != 0 || second.TotalTokens != 0 {
		t.Errorf("hit should report zero token usage, got %d/%d", second.PromptTokens, second.TotalTokens)
	}
}

func TestCachedEmbedder_StoreErrorDegradesToMiss(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("connection refused")
	inner := &countingEmbedder{vec: []float32{1}}
	ce := New(inner, store, time.Hour, nil)

	res, err := ce.Embed(context.Background(), "query text")
	if err != nil {
		t.Fatalf("cache failure must not fail the request: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected fallthrough to inner embedder, got %d calls", inner.calls)
	}
	if len(res.Embedding) != 1 {
		t.Errorf("unexpected embedding %v", res.Embedding)
	}
}

func TestCachedEmbedder_SetErrorIsNonFatal(t *testing.T) {
	store := newFakeStore()
	store.setErr = errors.New("read-only replica")
	inner := &countingEmbedder{vec: []float32{1}}
	ce := New(inner, store, time.Hour, nil)

	if _, err := ce.Embed(context.Background(), "query text"); err != nil {
		t.Fatalf("set failure must not fail the request: %v", err)
	}
}

func TestCachedEmbedder_MalformedEntryIgnored(t *testing.T) {
	store := newFakeStore()
	store.data[cacheKey("query text")] = []byte{1, 2, 3} // not a multiple of 4
	inner := &countingEmbedder{vec: []float32{0.5, 0.5}}
	ce := New(inner, store, time.Hour, nil)

	res, err := ce.Embed(context.Background(), "query text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("malformed entry should be treated as a miss, got %d calls", inner.calls)
	}
	if !reflect.DeepEqual(res.Embedding, []float32{0.5, 0.5}) {
		t.Errorf("unexpected embedding %v", res.Embedding)
	}
}

func TestCachedEmbedder_InnerErrorPropagates(t *testing.T) {
	store := newFakeStore()
	inner := &countingEmbedder{err: errors.New("provider down")}
	ce := New(inner, store, time.Hour, nil)

	if _, err := ce.Embed(context.Background(), "query text"); err == nil {
		t.Fatal("expected error from inner embedder")
	}
	if store.sets != 0 {
		t.Errorf("failed embedding must not be cached, got %d sets", store.sets)
	}
}

func TestVectorCodec_RoundTrip(t *testing.T) {
	in := []float32{0.25, -1.5, 3.75, 0}
	out, err := decodeVector(encodeVector(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch: %v vs %v", in, out)
	}
}
