package store

import (
	"context"
	"fmt"

	"github.com/viant/memindex/vector"
)

const (
	// DefaultLimit caps search results when the caller does not set one.
	DefaultLimit = 10

	// MinConcepts and MaxConcepts bound MultiConceptSearch input.
	MinConcepts = 2
	MaxConcepts = 5

	// DefaultMultiMinSimilarity is the per-concept threshold applied when a
	// multi-concept search does not specify one.
	DefaultMultiMinSimilarity = 50.0
)

// SearchOptions tunes VectorSearch. The zero value means: default limit,
// all spec folders, no similarity floor.
type SearchOptions struct {
	Limit         int
	SpecFolder    string
	MinSimilarity float64
}

// MultiConceptOptions tunes MultiConceptSearch. A nil MinSimilarity applies
// DefaultMultiMinSimilarity.
type MultiConceptOptions struct {
	Limit         int
	SpecFolder    string
	MinSimilarity *float64
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

// VectorSearch ranks success records by cosine distance to queryVector.
// minSimilarity converts to a maximum-distance threshold filtered inside the
// backend scan, before sorting. In degraded mode the result is empty, never
// an error.
func (s *Store) VectorSearch(ctx context.Context, queryVector []float32, opts SearchOptions) ([]SearchResult, error) {
	if queryVector == nil {
		return nil, fmt.Errorf("%w: query vector is required", ErrValidation)
	}
	if err := s.checkDimension(queryVector); err != nil {
		return nil, err
	}
	if opts.MinSimilarity < 0 || opts.MinSimilarity > 100 {
		return nil, fmt.Errorf("%w: minSimilarity %v outside [0,100]", ErrValidation, opts.MinSimilarity)
	}
	maxDistance := vector.MaxDistance(opts.MinSimilarity)
	candidates, err := s.backend.Scan(ctx, [][]float32{queryVector}, opts.SpecFolder, maxDistance, normalizeLimit(opts.Limit))
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, len(candidates))
	for _, c := range candidates {
		record, ok, err := s.Get(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		results = append(results, SearchResult{
			MemoryRecord: *record,
			Distance:     c.Distances[0],
			Similarity:   vector.Similarity(c.Distances[0]),
		})
	}
	return results, nil
}

// MultiConceptSearch ranks records that are close to every one of the
// concept vectors: a candidate qualifies only when each per-concept distance
// is within the threshold (logical AND, not average-then-threshold), and
// qualifying records are ordered by mean distance. Results carry the full
// per-concept similarity breakdown.
func (s *Store) MultiConceptSearch(ctx context.Context, conceptVectors [][]float32, opts MultiConceptOptions) ([]ConceptSearchResult, error) {
	if len(conceptVectors) < MinConcepts || len(conceptVectors) > MaxConcepts {
		return nil, fmt.Errorf("%w: concept count %d outside [%d,%d]", ErrValidation, len(conceptVectors), MinConcepts, MaxConcepts)
	}
	for i, c := range conceptVectors {
		if c == nil {
			return nil, fmt.Errorf("%w: concept %d is nil", ErrValidation, i)
		}
		if err := s.checkDimension(c); err != nil {
			return nil, err
		}
	}
	minSimilarity := DefaultMultiMinSimilarity
	if opts.MinSimilarity != nil {
		minSimilarity = *opts.MinSimilarity
	}
	if minSimilarity < 0 || minSimilarity > 100 {
		return nil, fmt.Errorf("%w: minSimilarity %v outside [0,100]", ErrValidation, minSimilarity)
	}
	maxDistance := vector.MaxDistance(minSimilarity)
	candidates, err := s.backend.Scan(ctx, conceptVectors, opts.SpecFolder, maxDistance, normalizeLimit(opts.Limit))
	if err != nil {
		return nil, err
	}
	results := make([]ConceptSearchResult, 0, len(candidates))
	for _, c := range candidates {
		record, ok, err := s.Get(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		r := ConceptSearchResult{
			MemoryRecord: *record,
			Distances:    c.Distances,
			Similarities: make([]float64, len(c.Distances)),
		}
		var sum float64
		for i, d := range c.Distances {
			r.Similarities[i] = vector.Similarity(d)
			sum += d
		}
		r.MeanDistance = sum / float64(len(c.Distances))
		r.AvgSimilarity = vector.Similarity(r.MeanDistance)
		results = append(results, r)
	}
	return results, nil
}
