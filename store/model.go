package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status enumerates the embedding lifecycle states of a MemoryRecord.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusRetry   Status = "retry"
	StatusFailed  Status = "failed"
)

// DefaultImportance is applied when a record is indexed without an explicit
// importance weight.
const DefaultImportance = 0.5

// MemoryRecord is the metadata row for one indexed text fragment. A record
// with EmbeddingStatus == StatusSuccess always has exactly one vector row
// under the same ID.
type MemoryRecord struct {
	ID               int64
	SpecFolder       string
	FilePath         string
	AnchorID         string
	Title            string
	TriggerPhrases   []string
	ImportanceWeight float64

	CreatedAt time.Time
	UpdatedAt time.Time

	EmbeddingModel       string
	EmbeddingGeneratedAt *time.Time
	EmbeddingStatus      Status
	RetryCount           int
	LastRetryAt          *time.Time
	FailureReason        string
}

// Key returns the composite logical key of the record.
func (r *MemoryRecord) Key() (specFolder, filePath, anchorID string) {
	return r.SpecFolder, r.FilePath, r.AnchorID
}

// IndexParams carries the inputs of Store.IndexMemory. AnchorID, Title,
// TriggerPhrases, ImportanceWeight, and Embedding are optional.
type IndexParams struct {
	SpecFolder       string
	FilePath         string
	AnchorID         string
	Title            string
	TriggerPhrases   []string
	ImportanceWeight *float64
	EmbeddingModel   string
	Embedding        []float32
}

// UpdateParams carries a partial update for Store.UpdateMemory. Nil fields
// are left unchanged; a non-nil Embedding replaces any existing vector row.
type UpdateParams struct {
	Title            *string
	TriggerPhrases   []string
	ImportanceWeight *float64
	EmbeddingModel   string
	Embedding        []float32
}

// SearchResult is one ranked hit from VectorSearch.
type SearchResult struct {
	MemoryRecord
	Distance   float64
	Similarity float64
}

// ConceptSearchResult is one ranked hit from MultiConceptSearch. Distances
// and Similarities are parallel to the concept vectors of the query so
// callers can explain why the record matched.
type ConceptSearchResult struct {
	MemoryRecord
	Distances     []float64
	Similarities  []float64
	MeanDistance  float64
	AvgSimilarity float64
}

func encodePhrases(phrases []string) (string, error) {
	if phrases == nil {
		phrases = []string{}
	}
	b, err := json.Marshal(phrases)
	if err != nil {
		return "", fmt.Errorf("store: encode trigger phrases: %w", err)
	}
	return string(b), nil
}

func decodePhrases(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var phrases []string
	if err := json.Unmarshal([]byte(raw), &phrases); err != nil {
		return nil, fmt.Errorf("store: decode trigger phrases: %w", err)
	}
	return phrases, nil
}
