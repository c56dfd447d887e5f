package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// Cached decorates an Embedder with an in-process ristretto cache keyed by
// the content hash, so repeated indexing and retry passes over unchanged
// text skip the model entirely.
type Cached struct {
	embedder Embedder
	cache    *ristretto.Cache
}

// DefaultCacheBudget bounds the cache cost in bytes (~16 MiB of vectors).
const DefaultCacheBudget = 16 << 20

// NewCached wraps embedder with a cache of at most budget bytes of vectors.
// A non-positive budget applies DefaultCacheBudget.
func NewCached(embedder Embedder, budget int64) (*Cached, error) {
	if budget <= 0 {
		budget = DefaultCacheBudget
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: budget / 64,
		MaxCost:     budget,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("embed: create cache: %w", err)
	}
	return &Cached{embedder: embedder, cache: cache}, nil
}

// ContentHash returns the cache key for text under the given model.
func ContentHash(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Embed serves from cache when possible, otherwise delegates and caches the
// result. Cache admission failures are ignored; the embedding is returned
// regardless.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := ContentHash(c.embedder.Model(), text)
	if hit, ok := c.cache.Get(key); ok {
		if vec, ok := hit.([]float32); ok {
			return vec, nil
		}
	}
	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, vec, int64(len(vec)*4))
	return vec, nil
}

// Dimensions returns the wrapped embedder's vector size.
func (c *Cached) Dimensions() int { return c.embedder.Dimensions() }

// Model returns the wrapped embedder's model identifier.
func (c *Cached) Model() string { return c.embedder.Model() }

// Metrics exposes cache hit/miss counters for machine-readable tooling output.
func (c *Cached) Metrics() *ristretto.Metrics { return c.cache.Metrics }

// Close releases the cache and the wrapped embedder.
func (c *Cached) Close() error {
	c.cache.Close()
	return c.embedder.Close()
}

var _ Embedder = (*Cached)(nil)
