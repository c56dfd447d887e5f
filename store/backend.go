package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/viant/memindex/vector"
)

// Candidate is one row produced by a backend scan: the record id plus one
// cosine distance per concept vector, ordered as the concepts were supplied.
type Candidate struct {
	ID        int64
	Distances []float64
}

// Backend abstracts the vector-similarity capability of the store. The
// SQLite implementation keeps vectors in the memory_vectors table and scans
// them with the vec_cosine_distance SQL function; the no-op implementation
// serves degraded mode where every scan is empty and vector writes are
// skipped so records stay pending. Vector deletes go through direct SQL in
// the store because they must happen even when the capability is absent.
type Backend interface {
	// Available reports whether vector similarity is usable. When false,
	// new records are stored with pending status and searches return empty.
	Available() bool

	// InsertVector writes the vector row for id inside the caller's transaction.
	InsertVector(ctx context.Context, tx *sql.Tx, id int64, embedding []float32) error

	// Scan returns candidates whose distance to every concept vector is at
	// most maxDistance, ordered ascending by mean distance, at most limit
	// rows. Only records with success status participate; specFolder narrows
	// the scan when non-empty.
	Scan(ctx context.Context, concepts [][]float32, specFolder string, maxDistance float64, limit int) ([]Candidate, error)
}

// SQLiteBackend scans embeddings with the vec_cosine_distance scalar
// function so threshold filtering happens inside SQLite before ranking.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend probes the database for the vec_cosine_distance function
// and returns a working backend, or an error when the capability is missing.
func NewSQLiteBackend(ctx context.Context, db *sql.DB) (*SQLiteBackend, error) {
	if db == nil {
		return nil, fmt.Errorf("store: db is nil")
	}
	probe, err := vector.EncodeEmbedding([]float32{1, 0})
	if err != nil {
		return nil, err
	}
	var d float64
	if err := db.QueryRowContext(ctx, `SELECT vec_cosine_distance(?, ?)`, probe, probe).Scan(&d); err != nil {
		return nil, fmt.Errorf("store: vector capability probe: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

// Available always reports true for a constructed SQLite backend.
func (b *SQLiteBackend) Available() bool { return true }

// InsertVector encodes the embedding and writes it under id.
func (b *SQLiteBackend) InsertVector(ctx context.Context, tx *sql.Tx, id int64, embedding []float32) error {
	blob, err := vector.EncodeEmbedding(embedding)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO memory_vectors(id, embedding) VALUES(?, ?)`, id, blob); err != nil {
		return fmt.Errorf("store: insert vector %d: %w", id, err)
	}
	return nil
}

// Scan builds one SQL statement with a distance column per concept. The
// per-concept threshold is applied in the outer WHERE so every returned
// candidate satisfies all concepts, and ranking uses the mean distance.
func (b *SQLiteBackend) Scan(ctx context.Context, concepts [][]float32, specFolder string, maxDistance float64, limit int) ([]Candidate, error) {
	if len(concepts) == 0 {
		return nil, nil
	}
	var (
		distCols []string
		sumExpr  []string
		args     []interface{}
	)
	for i, c := range concepts {
		blob, err := vector.EncodeEmbedding(c)
		if err != nil {
			return nil, err
		}
		col := fmt.Sprintf("d%d", i)
		distCols = append(distCols, fmt.Sprintf("vec_cosine_distance(v.embedding, ?) AS %s", col))
		sumExpr = append(sumExpr, col)
		args = append(args, blob)
	}
	args = append(args, specFolder, specFolder)

	query := fmt.Sprintf(`SELECT id, %s FROM (
    SELECT m.id AS id, %s
    FROM memories m JOIN memory_vectors v ON v.id = m.id
    WHERE m.embedding_status = 'success' AND (? = '' OR m.spec_folder = ?)
)`, strings.Join(sumExpr, ", "), strings.Join(distCols, ", "))

	var conds []string
	for _, col := range sumExpr {
		conds = append(conds, fmt.Sprintf("%s <= ?", col))
		args = append(args, maxDistance)
	}
	query += " WHERE " + strings.Join(conds, " AND ")
	query += fmt.Sprintf(" ORDER BY (%s) / %d.0 ASC LIMIT ?", strings.Join(sumExpr, " + "), len(concepts))
	args = append(args, limit)

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: vector scan: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		c := Candidate{Distances: make([]float64, len(concepts))}
		dest := make([]interface{}, 0, len(concepts)+1)
		dest = append(dest, &c.ID)
		for i := range c.Distances {
			dest = append(dest, &c.Distances[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("store: scan candidate: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// NoopBackend is the degraded-mode backend: vector writes are skipped and
// scans return empty results. The first scan logs a single warning so the
// missing capability is visible without flooding logs.
type NoopBackend struct {
	logger   *slog.Logger
	warnOnce sync.Once
}

// NewNoopBackend creates a degraded backend that logs through logger.
func NewNoopBackend(logger *slog.Logger) *NoopBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopBackend{logger: logger}
}

// Available always reports false.
func (b *NoopBackend) Available() bool { return false }

// InsertVector is a no-op; the owning record keeps pending status.
func (b *NoopBackend) InsertVector(context.Context, *sql.Tx, int64, []float32) error { return nil }

// Scan returns no candidates and warns once about the degraded mode.
func (b *NoopBackend) Scan(context.Context, [][]float32, string, float64, int) ([]Candidate, error) {
	b.warnOnce.Do(func() {
		b.logger.Warn("vector backend unavailable; searches return empty results")
	})
	return nil, nil
}

var (
	_ Backend = (*SQLiteBackend)(nil)
	_ Backend = (*NoopBackend)(nil)
)
