package store

import (
	"context"
	"fmt"
	"time"
)

// ListRetryQueue returns every record awaiting another embedding attempt:
// status pending or retry, fewest prior attempts first, oldest attempt first
// within the same count. No limit is applied here; the retry manager filters
// backoff eligibility against its clock and bounds the batch afterwards, so
// a deferred record can never crowd an eligible one out of a pass.
func (s *Store) ListRetryQueue(ctx context.Context) ([]*MemoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM memories
        WHERE embedding_status IN ('pending','retry')
        ORDER BY retry_count ASC, COALESCE(last_retry_at, created_at) ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list retry queue: %w", err)
	}
	defer rows.Close()
	var out []*MemoryRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list retry queue: %w", err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// ListFailed returns permanently failed records, oldest first.
func (s *Store) ListFailed(ctx context.Context) ([]*MemoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM memories
        WHERE embedding_status = 'failed' ORDER BY COALESCE(last_retry_at, updated_at) ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list failed: %w", err)
	}
	defer rows.Close()
	var out []*MemoryRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list failed: %w", err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// MarkEmbedded records a successful embedding attempt: the record transitions
// to success and its vector row is replaced, both in one transaction.
func (s *Store) MarkEmbedded(ctx context.Context, id int64, model string, embedding []float32, at time.Time) error {
	if err := s.checkDimension(embedding); err != nil {
		return err
	}
	if embedding == nil {
		return fmt.Errorf("%w: embedding is required", ErrValidation)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin embed tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE memories SET
        embedding_status = 'success', embedding_model = ?, embedding_generated_at = ?,
        failure_reason = '', updated_at = ? WHERE id = ?`, model, at.UTC(), at.UTC(), id)
	if err != nil {
		return fmt.Errorf("store: mark embedded %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: mark embedded %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err := deleteVectorInTx(ctx, tx, id); err != nil {
		return err
	}
	if s.backend.Available() {
		if err := s.backend.InsertVector(ctx, tx, id, embedding); err != nil {
			return err
		}
	} else {
		// No vector capability: the success transition would violate the
		// lock-step invariant, keep the record pending instead.
		if _, err := tx.ExecContext(ctx, `UPDATE memories SET embedding_status = 'pending' WHERE id = ?`, id); err != nil {
			return fmt.Errorf("store: mark embedded %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// MarkRetryFailure records a failed attempt and applies the bounded-retry
// transition: below maxRetries the record goes (back) to retry with an
// incremented count; at the bound it becomes failed with the reason
// preserved. It returns the resulting status.
func (s *Store) MarkRetryFailure(ctx context.Context, id int64, reason string, maxRetries int, at time.Time) (Status, error) {
	record, ok, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	newCount := record.RetryCount + 1
	status := StatusRetry
	if newCount >= maxRetries {
		status = StatusFailed
	}
	_, err = s.db.ExecContext(ctx, `UPDATE memories SET
        embedding_status = ?, retry_count = ?, last_retry_at = ?, failure_reason = ?, updated_at = ?
        WHERE id = ?`, string(status), newCount, at.UTC(), reason, at.UTC(), id)
	if err != nil {
		return "", fmt.Errorf("store: mark retry failure %d: %w", id, err)
	}
	return status, nil
}

// ResetForRetry moves a failed record back into the retry queue with a clean
// slate. It only acts on records currently failed and reports false
// otherwise, so mid-flight records are never silently resurrected.
func (s *Store) ResetForRetry(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE memories SET
        embedding_status = 'retry', retry_count = 0, failure_reason = '', last_retry_at = NULL, updated_at = ?
        WHERE id = ? AND embedding_status = 'failed'`, s.now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("store: reset for retry %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: reset for retry %d: %w", id, err)
	}
	return affected > 0, nil
}
