package embed

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/viant/memindex/vector"
)

// MaxContentChars is the default truncation bound applied before encoding.
const MaxContentChars = 2000

// Embedder converts text into a fixed-dimension vector. Implementations are
// expected to return unit-normalized vectors; Generator validates the norm.
type Embedder interface {
	// Embed encodes text. Callers pass prepared, non-blank text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int

	// Model identifies the embedding model for record bookkeeping.
	Model() string

	// Close releases model resources.
	Close() error
}

// Truncate cuts text to at most maxChars Unicode codepoints. Truncation
// never splits a multibyte sequence because it operates on runes.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars])
}

// Generator applies the embedding-generation contract on top of an Embedder:
// blank input yields (nil, nil) as "nothing to index", oversized input is
// truncated, and the output norm is checked. Model load failures surface as
// errors; translating them into retry bookkeeping is the caller's job.
type Generator struct {
	embedder Embedder
	maxChars int
}

// GeneratorOption customizes a Generator.
type GeneratorOption func(*Generator)

// WithMaxChars overrides the truncation bound.
func WithMaxChars(n int) GeneratorOption { return func(g *Generator) { g.maxChars = n } }

// NewGenerator wraps embedder with the text-preparation contract.
func NewGenerator(embedder Embedder, opts ...GeneratorOption) *Generator {
	g := &Generator{embedder: embedder, maxChars: MaxContentChars}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate encodes text. Nil is returned without error for empty or
// whitespace-only input; callers must treat that as "nothing to index".
func (g *Generator) Generate(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	out, err := g.embedder.Embed(ctx, Truncate(text, g.maxChars))
	if err != nil {
		return nil, err
	}
	if len(out) != g.embedder.Dimensions() {
		return nil, fmt.Errorf("embed: model returned %d dimensions, want %d", len(out), g.embedder.Dimensions())
	}
	if err := vector.ValidateUnitNorm(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Embedder exposes the wrapped embedder, e.g. to reach cache metrics.
func (g *Generator) Embedder() Embedder { return g.embedder }

// Dimensions returns the wrapped embedder's vector size.
func (g *Generator) Dimensions() int { return g.embedder.Dimensions() }

// Model returns the wrapped embedder's model identifier.
func (g *Generator) Model() string { return g.embedder.Model() }

// Close releases the wrapped embedder.
func (g *Generator) Close() error { return g.embedder.Close() }

// Lazy defers model loading until the first Embed call and then reuses the
// loaded instance for the handle's lifetime. Bulk callers share one handle
// instead of paying the model-load cost per item.
type Lazy struct {
	open  func() (Embedder, error)
	dims  int
	model string

	once     sync.Once
	embedder Embedder
	err      error
}

// NewLazy builds a lazy handle. dims and model describe the embedder that
// open will produce so they are reportable before the first load.
func NewLazy(dims int, model string, open func() (Embedder, error)) *Lazy {
	return &Lazy{open: open, dims: dims, model: model}
}

func (l *Lazy) load() (Embedder, error) {
	l.once.Do(func() {
		l.embedder, l.err = l.open()
		if l.err == nil && l.embedder.Dimensions() != l.dims {
			l.err = fmt.Errorf("embed: lazy embedder has %d dimensions, want %d", l.embedder.Dimensions(), l.dims)
		}
	})
	return l.embedder, l.err
}

// Embed loads the model on first use and delegates.
func (l *Lazy) Embed(ctx context.Context, text string) ([]float32, error) {
	embedder, err := l.load()
	if err != nil {
		return nil, err
	}
	return embedder.Embed(ctx, text)
}

// Dimensions returns the declared vector size.
func (l *Lazy) Dimensions() int { return l.dims }

// Model returns the declared model identifier.
func (l *Lazy) Model() string { return l.model }

// Close releases the loaded embedder, if any. It synchronizes with a
// concurrent first Embed through the same once; closing a never-used handle
// marks it unloadable instead of racing the open.
func (l *Lazy) Close() error {
	l.once.Do(func() {
		l.err = fmt.Errorf("embed: embedder closed before first use")
	})
	if l.embedder != nil {
		return l.embedder.Close()
	}
	return nil
}

var _ Embedder = (*Lazy)(nil)
