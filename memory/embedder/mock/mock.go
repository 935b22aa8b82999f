// Package mock provides a deterministic embedder for tests and offline use.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Embedder generates deterministic embeddings without a model. Each word
// hashes to a pseudo-random unit direction and the text embeds as the
// normalized sum, so texts sharing words score higher cosine similarity.
// Not semantically meaningful, but stable and overlap-sensitive, which is
// what tests need.
type Embedder struct {
	dimensions int
}

// New creates a mock embedder with the default 384 dimensions, matching
// all-MiniLM-L6-v2 so mock and ONNX embedders are interchangeable.
func New() *Embedder {
	return NewWithDimensions(384)
}

// NewWithDimensions creates a mock embedder with a custom vector size.
func NewWithDimensions(dims int) *Embedder {
	return &Embedder{dimensions: dims}
}

// Embed converts text to a deterministic embedding.
func (m *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embedding := make([]float32, m.dimensions)

	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		words = []string{""}
	}

	for _, word := range words {
		h := fnv.New64a()
		h.Write([]byte(word))
		seed := h.Sum64()

		for i := 0; i < m.dimensions; i++ {
			// LCG advance per dimension.
			seed = seed*6364136223846793005 + 1442695040888963407
			embedding[i] += float32(int64(seed)) / float32(math.MaxInt64)
		}
	}

	return normalize(embedding), nil
}

// Dimensions returns the embedding size.
func (m *Embedder) Dimensions() int {
	return m.dimensions
}

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}
