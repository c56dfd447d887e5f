package memory

import (
	"context"
	"log/slog"
	"strings"

	"github.com/viant/memindex/embed"
	"github.com/viant/memindex/store"
	"github.com/viant/memindex/trigger"
)

// Index exposes the query contract consumed by the orchestration layer.
type Index struct {
	store     *store.Store
	generator *embed.Generator
	logger    *slog.Logger
}

// Option customizes an Index.
type Option func(*Index)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(x *Index) { x.logger = l } }

// New wires the generator and store into the facade.
func New(s *store.Store, generator *embed.Generator, opts ...Option) *Index {
	x := &Index{store: s, generator: generator, logger: slog.Default()}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Store exposes the underlying store for administrative tooling.
func (x *Index) Store() *store.Store { return x.store }

// Generator exposes the shared embedding generator so batch collaborators
// (retry manager, bulk indexing) reuse one loaded model.
func (x *Index) Generator() *embed.Generator { return x.generator }

// ContentParams describes one fragment to index. Title and TriggerPhrases
// are derived from Content when absent.
type ContentParams struct {
	SpecFolder       string
	FilePath         string
	AnchorID         string
	Title            string
	Content          string
	TriggerPhrases   []string
	ImportanceWeight *float64
}

// IndexContent embeds the fragment and stores metadata and vector in
// lock-step. Blank content still creates (or updates) the metadata record,
// in pending status, so nothing is silently dropped.
func (x *Index) IndexContent(ctx context.Context, params ContentParams) (int64, error) {
	title := params.Title
	if title == "" {
		title = deriveTitle(params.Content)
	}
	phrases := params.TriggerPhrases
	if phrases == nil {
		phrases = trigger.Extract(params.Content, trigger.DefaultMaxPhrases)
	}
	embedding, err := x.generator.Generate(ctx, params.Content)
	if err != nil {
		return 0, err
	}
	return x.store.IndexMemory(ctx, store.IndexParams{
		SpecFolder:       params.SpecFolder,
		FilePath:         params.FilePath,
		AnchorID:         params.AnchorID,
		Title:            title,
		TriggerPhrases:   phrases,
		ImportanceWeight: params.ImportanceWeight,
		EmbeddingModel:   x.generator.Model(),
		Embedding:        embedding,
	})
}

// Result is one ranked search hit in the shape the orchestration layer
// consumes.
type Result struct {
	ID             int64
	Title          string
	SpecFolder     string
	FilePath       string
	AnchorID       string
	Similarity     float64
	TriggerPhrases []string
}

// SearchOptions narrows and bounds a search.
type SearchOptions struct {
	SpecFolder    string
	Limit         int
	MinSimilarity float64
}

// Search embeds the query text and returns the closest fragments by
// meaning. A blank query returns no results.
func (x *Index) Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error) {
	queryVector, err := x.generator.Generate(ctx, query)
	if err != nil {
		return nil, err
	}
	if queryVector == nil {
		return nil, nil
	}
	hits, err := x.store.VectorSearch(ctx, queryVector, store.SearchOptions{
		Limit:         opts.Limit,
		SpecFolder:    opts.SpecFolder,
		MinSimilarity: opts.MinSimilarity,
	})
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, toResult(&hit.MemoryRecord, hit.Similarity))
	}
	return results, nil
}

// MultiConceptSearch embeds each concept and returns records close to all
// of them. Concepts that embed to nothing (blank strings) are a validation
// error at the store layer via the concept-count bound.
func (x *Index) MultiConceptSearch(ctx context.Context, concepts []string, opts SearchOptions, minSimilarity *float64) ([]store.ConceptSearchResult, error) {
	vectors := make([][]float32, 0, len(concepts))
	for _, concept := range concepts {
		v, err := x.generator.Generate(ctx, concept)
		if err != nil {
			return nil, err
		}
		if v != nil {
			vectors = append(vectors, v)
		}
	}
	return x.store.MultiConceptSearch(ctx, vectors, store.MultiConceptOptions{
		Limit:         opts.Limit,
		SpecFolder:    opts.SpecFolder,
		MinSimilarity: minSimilarity,
	})
}

// Load resolves a record by spec folder and optional anchor.
func (x *Index) Load(ctx context.Context, specFolder, anchorID string) (*store.MemoryRecord, bool, error) {
	return x.store.Load(ctx, specFolder, anchorID)
}

// TriggerMatch pairs a record with the phrases of it that occurred in the
// probed text.
type TriggerMatch struct {
	Record  *store.MemoryRecord
	Matched []string
}

// MatchTriggers is the fast candidate path: it matches stored trigger
// phrases against text without any embedding call, most matches first.
func (x *Index) MatchTriggers(ctx context.Context, text, specFolder string) ([]TriggerMatch, error) {
	records, err := x.store.List(ctx, specFolder)
	if err != nil {
		return nil, err
	}
	var matches []TriggerMatch
	for _, record := range records {
		matched := trigger.Match(text, record.TriggerPhrases)
		if len(matched) == 0 {
			continue
		}
		matches = append(matches, TriggerMatch{Record: record, Matched: matched})
	}
	// Most matched phrases first; insertion (id) order breaks ties.
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && len(matches[j].Matched) > len(matches[j-1].Matched); j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}
	return matches, nil
}

func toResult(record *store.MemoryRecord, similarity float64) Result {
	return Result{
		ID:             record.ID,
		Title:          record.Title,
		SpecFolder:     record.SpecFolder,
		FilePath:       record.FilePath,
		AnchorID:       record.AnchorID,
		Similarity:     similarity,
		TriggerPhrases: record.TriggerPhrases,
	}
}

func deriveTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if line != "" {
			return embed.Truncate(line, 120)
		}
	}
	return ""
}
