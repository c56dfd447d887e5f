// Package hash provides a deterministic, dependency-free embedder: text is
// hashed and expanded into a pseudo-random unit vector. Nearby meanings do
// not land nearby, so it is no substitute for a real model, but it keeps the
// index fully operational in environments without a model available and
// gives tests reproducible vectors.
package hash

import (
	"context"
	"hash/fnv"
	"math"
)

// ModelName is recorded on memories embedded by this fallback.
const ModelName = "hash-fallback-v1"

// DefaultDimensions matches the module's model of record so hash-embedded
// and model-embedded records can share one vector table.
const DefaultDimensions = 384

// Embedder generates deterministic embeddings from an FNV-1a seed expanded
// by a linear congruential generator.
type Embedder struct {
	dimensions int
}

// New creates a hash embedder; a non-positive dims applies DefaultDimensions.
func New(dims int) *Embedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &Embedder{dimensions: dims}
}

// Embed produces the unit-normalized pseudo-random vector for text.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	out := make([]float32, e.dimensions)
	var norm float64
	for i := range out {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float32(int64(seed)) / float32(math.MaxInt64)
		out[i] = v
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		out[0] = 1
		return out, nil
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range out {
		out[i] *= inv
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int { return e.dimensions }

// Model returns ModelName.
func (e *Embedder) Model() string { return ModelName }

// Close is a no-op; the embedder holds no resources.
func (e *Embedder) Close() error { return nil }
