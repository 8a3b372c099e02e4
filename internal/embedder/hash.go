// Package embedder provides the model-free embedding implementation used for
// dependency-light deployments and tests.
package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand"

	"github.com/lexibase/passrank/internal/domain"
)

// Hash derives a deterministic pseudo-embedding from the text itself: the
// sha256 digest seeds a Gaussian vector which is then L2-normalized. Identical
// text always embeds to the identical vector; similar text does not embed to
// similar vectors, so this is a stand-in for real models, not an
// approximation of them.
type Hash struct {
	dim int
}

// NewHash creates a hash embedder producing vectors of the given dimension.
func NewHash(dim int) *Hash {
	return &Hash{dim: dim}
}

// Embed implements domain.Embedder. It never fails and consumes no tokens.
func (h *Hash) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	sum := sha256.Sum256([]byte(text))
	seed := int64(binary.BigEndian.Uint64(sum[:8]))
	rng := rand.New(rand.NewSource(seed))

	vec := make([]float32, h.dim)
	var norm float64
	for i := range vec {
		v := rng.NormFloat64()
		vec[i] = float32(v)
		norm += v * v
	}

	norm = math.Sqrt(norm) + 1e-9
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}

	return domain.EmbeddingResult{Embedding: vec}, nil
}
