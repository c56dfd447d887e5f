package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Store coordinates the memories table and the vector backend. All mutating
// operations run inside one transaction so the two structures never diverge.
type Store struct {
	db      *sql.DB
	backend Backend
	dim     int
	logger  *slog.Logger
	now     func() time.Time
}

// Option customizes Store construction.
type Option func(*Store)

// WithBackend overrides backend selection; tests use it to force degraded mode.
func WithBackend(b Backend) Option { return func(s *Store) { s.backend = b } }

// WithDimensions sets the embedding dimension enforced at write and query
// time. The default is 384.
func WithDimensions(dim int) Option { return func(s *Store) { s.dim = dim } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// DefaultDimensions is the embedding dimension of the module's model of
// record (all-MiniLM-L6-v2).
const DefaultDimensions = 384

// New creates a Store over db. Schema setup is idempotent. When no backend
// is supplied, New probes the vector capability and falls back to the
// degraded no-op backend instead of failing: the metadata table keeps
// working, new records stay pending, and searches return empty.
func New(db *sql.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("store: db is nil")
	}
	if err := EnsureSchema(db); err != nil {
		return nil, err
	}
	s := &Store{db: db, dim: DefaultDimensions, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.backend == nil {
		backend, err := NewSQLiteBackend(context.Background(), db)
		if err != nil {
			s.logger.Warn("vector capability unavailable, store degrades to metadata-only", "error", err)
			s.backend = NewNoopBackend(s.logger)
		} else {
			s.backend = backend
		}
	}
	return s, nil
}

// Backend exposes the active backend, mainly so callers can report health.
func (s *Store) Backend() Backend { return s.backend }

// Dimensions returns the enforced embedding dimension.
func (s *Store) Dimensions() int { return s.dim }

func (s *Store) checkDimension(embedding []float32) error {
	if embedding != nil && len(embedding) != s.dim {
		return fmt.Errorf("%w: embedding dimension %d, want %d", ErrValidation, len(embedding), s.dim)
	}
	return nil
}

// IndexMemory inserts a new record, or updates the existing one when the
// composite key (specFolder, filePath, anchorID) is already indexed. The
// metadata insert and the vector insert commit together or not at all.
// It returns the id of the affected record.
func (s *Store) IndexMemory(ctx context.Context, params IndexParams) (int64, error) {
	if params.SpecFolder == "" || params.FilePath == "" {
		return 0, fmt.Errorf("%w: specFolder and filePath are required", ErrValidation)
	}
	if err := s.checkDimension(params.Embedding); err != nil {
		return 0, err
	}
	weight := DefaultImportance
	if params.ImportanceWeight != nil {
		weight = *params.ImportanceWeight
	}
	if weight < 0 || weight > 1 {
		return 0, fmt.Errorf("%w: importance weight %v outside [0,1]", ErrValidation, weight)
	}

	if existing, ok, err := s.GetByPath(ctx, params.SpecFolder, params.FilePath, params.AnchorID); err != nil {
		return 0, err
	} else if ok {
		update := UpdateParams{
			TriggerPhrases:   params.TriggerPhrases,
			ImportanceWeight: params.ImportanceWeight,
			EmbeddingModel:   params.EmbeddingModel,
			Embedding:        params.Embedding,
		}
		if params.Title != "" {
			update.Title = &params.Title
		}
		if err := s.UpdateMemory(ctx, existing.ID, update); err != nil {
			return 0, err
		}
		return existing.ID, nil
	}

	phrases, err := encodePhrases(params.TriggerPhrases)
	if err != nil {
		return 0, err
	}
	status := StatusPending
	if params.Embedding != nil && s.backend.Available() {
		status = StatusSuccess
	}
	now := s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin index tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var generatedAt interface{}
	if status == StatusSuccess {
		generatedAt = now
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO memories(
        spec_folder, file_path, anchor_id, title, trigger_phrases, importance_weight,
        created_at, updated_at, embedding_model, embedding_generated_at, embedding_status)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		params.SpecFolder, params.FilePath, params.AnchorID, params.Title, phrases, weight,
		now, now, params.EmbeddingModel, generatedAt, string(status))
	if err != nil {
		return 0, fmt.Errorf("store: insert memory: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: memory id: %w", err)
	}
	if status == StatusSuccess {
		if err := s.backend.InsertVector(ctx, tx, id, params.Embedding); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit index tx: %w", err)
	}
	return id, nil
}

// UpdateMemory merges a partial update into the record with the given id.
// A supplied embedding replaces the existing vector row: delete then insert
// under the same id, in the same transaction as the metadata update. The
// vector table does not support resizing an entry in place.
func (s *Store) UpdateMemory(ctx context.Context, id int64, params UpdateParams) error {
	if err := s.checkDimension(params.Embedding); err != nil {
		return err
	}
	if params.ImportanceWeight != nil && (*params.ImportanceWeight < 0 || *params.ImportanceWeight > 1) {
		return fmt.Errorf("%w: importance weight %v outside [0,1]", ErrValidation, *params.ImportanceWeight)
	}

	sets := []string{"updated_at = ?"}
	args := []interface{}{s.now().UTC()}
	if params.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *params.Title)
	}
	if params.TriggerPhrases != nil {
		phrases, err := encodePhrases(params.TriggerPhrases)
		if err != nil {
			return err
		}
		sets = append(sets, "trigger_phrases = ?")
		args = append(args, phrases)
	}
	if params.ImportanceWeight != nil {
		sets = append(sets, "importance_weight = ?")
		args = append(args, *params.ImportanceWeight)
	}
	if params.Embedding != nil {
		if s.backend.Available() {
			sets = append(sets, "embedding_status = ?", "embedding_generated_at = ?", "retry_count = 0", "failure_reason = ''")
			args = append(args, string(StatusSuccess), s.now().UTC())
		} else {
			sets = append(sets, "embedding_status = ?")
			args = append(args, string(StatusPending))
		}
		if params.EmbeddingModel != "" {
			sets = append(sets, "embedding_model = ?")
			args = append(args, params.EmbeddingModel)
		}
	}
	args = append(args, id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin update tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, "UPDATE memories SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("store: update memory %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update memory %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if params.Embedding != nil {
		// Direct SQL delete: a degraded backend must not leave a stale vector
		// row behind a record that just dropped back to pending.
		if err := deleteVectorInTx(ctx, tx, id); err != nil {
			return err
		}
		if s.backend.Available() {
			if err := s.backend.InsertVector(ctx, tx, id, params.Embedding); err != nil {
				return err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit update tx: %w", err)
	}
	return nil
}

// DeleteMemory removes the vector row and the metadata row for id in one
// transaction. It reports whether a record was actually removed.
func (s *Store) DeleteMemory(ctx context.Context, id int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("store: begin delete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	removed, err := deleteInTx(ctx, tx, id)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("store: commit delete tx: %w", err)
	}
	return removed, nil
}

// DeleteMemoryByPath deletes the record addressed by the composite key.
func (s *Store) DeleteMemoryByPath(ctx context.Context, specFolder, filePath, anchorID string) (bool, error) {
	record, ok, err := s.GetByPath(ctx, specFolder, filePath, anchorID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return s.DeleteMemory(ctx, record.ID)
}

// deleteVectorInTx removes the vector row for id with direct SQL, independent
// of backend availability.
func deleteVectorInTx(ctx context.Context, tx *sql.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_vectors WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete vector %d: %w", id, err)
	}
	return nil
}

// deleteInTx removes vector then metadata for id inside tx: vector first so a
// rollback can never leave an orphan vector behind a missing record.
func deleteInTx(ctx context.Context, tx *sql.Tx, id int64) (bool, error) {
	if err := deleteVectorInTx(ctx, tx, id); err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("store: delete memory %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: delete memory %d: %w", id, err)
	}
	return affected > 0, nil
}

const recordColumns = `id, spec_folder, file_path, anchor_id, title, trigger_phrases,
    importance_weight, created_at, updated_at, embedding_model, embedding_generated_at,
    embedding_status, retry_count, last_retry_at, failure_reason`

func scanRecord(row interface{ Scan(...interface{}) error }) (*MemoryRecord, error) {
	var (
		r           MemoryRecord
		phrases     string
		status      string
		generatedAt sql.NullTime
		lastRetryAt sql.NullTime
	)
	err := row.Scan(&r.ID, &r.SpecFolder, &r.FilePath, &r.AnchorID, &r.Title, &phrases,
		&r.ImportanceWeight, &r.CreatedAt, &r.UpdatedAt, &r.EmbeddingModel, &generatedAt,
		&status, &r.RetryCount, &lastRetryAt, &r.FailureReason)
	if err != nil {
		return nil, err
	}
	r.EmbeddingStatus = Status(status)
	if generatedAt.Valid {
		t := generatedAt.Time
		r.EmbeddingGeneratedAt = &t
	}
	if lastRetryAt.Valid {
		t := lastRetryAt.Time
		r.LastRetryAt = &t
	}
	if r.TriggerPhrases, err = decodePhrases(phrases); err != nil {
		return nil, err
	}
	return &r, nil
}

// Get returns the record with the given id, reporting absence as a value.
func (s *Store) Get(ctx context.Context, id int64) (*MemoryRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM memories WHERE id = ?`, id)
	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: get memory %d: %w", id, err)
	}
	return record, true, nil
}

// GetByPath returns the record addressed by the composite key.
func (s *Store) GetByPath(ctx context.Context, specFolder, filePath, anchorID string) (*MemoryRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM memories
        WHERE spec_folder = ? AND file_path = ? AND anchor_id = ?`, specFolder, filePath, anchorID)
	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: get memory by path: %w", err)
	}
	return record, true, nil
}

// Load resolves the query-contract lookup: a specific anchor within a spec
// folder, or the most recently updated record of the folder when no anchor
// is given.
func (s *Store) Load(ctx context.Context, specFolder, anchorID string) (*MemoryRecord, bool, error) {
	if specFolder == "" {
		return nil, false, fmt.Errorf("%w: specFolder is required", ErrValidation)
	}
	query := `SELECT ` + recordColumns + ` FROM memories WHERE spec_folder = ?`
	args := []interface{}{specFolder}
	if anchorID != "" {
		query += ` AND anchor_id = ?`
		args = append(args, anchorID)
	}
	query += ` ORDER BY updated_at DESC LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: load %s: %w", specFolder, err)
	}
	return record, true, nil
}

// List returns all records, ordered by id. It backs trigger matching and the
// CLI manifest output; result sets are expected to stay small.
func (s *Store) List(ctx context.Context, specFolder string) ([]*MemoryRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM memories`
	var args []interface{}
	if specFolder != "" {
		query += ` WHERE spec_folder = ?`
		args = append(args, specFolder)
	}
	query += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list memories: %w", err)
	}
	defer rows.Close()
	var out []*MemoryRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list memories: %w", err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}
