package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
)

// MissingFile identifies a record whose backing source file no longer exists.
type MissingFile struct {
	ID       int64
	FilePath string
}

// IntegrityReport describes the synchronization state of the two storage
// structures and, when a base path was supplied, of the backing files.
type IntegrityReport struct {
	MemoryCount     int
	VectorCount     int
	OrphanedVectors []int64       // vector rows without a memory row
	MissingVectors  []int64       // success records without a vector row
	MissingFiles    []MissingFile // records whose file_path no longer resolves
}

// Healthy reports whether no violations were detected.
func (r *IntegrityReport) Healthy() bool {
	return len(r.OrphanedVectors) == 0 && len(r.MissingVectors) == 0 && len(r.MissingFiles) == 0
}

// CleanupReport summarizes an orphan cleanup run.
type CleanupReport struct {
	MemoriesBefore int
	MemoriesAfter  int
	VectorsBefore  int
	VectorsAfter   int
	RemovedIDs     []int64
}

// Stats counts records per embedding status plus vector rows.
type Stats struct {
	Total      int
	ByStatus   map[Status]int
	VectorRows int
}

// VerifyIntegrity reports orphaned vectors and missing vectors without
// touching the filesystem.
func (s *Store) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	return s.verify(ctx, "")
}

// VerifyIntegrityWithPaths additionally checks that every record's file_path
// still resolves to an existing file under basePath (absolute file paths are
// checked as-is).
func (s *Store) VerifyIntegrityWithPaths(ctx context.Context, basePath string) (*IntegrityReport, error) {
	if basePath == "" {
		return nil, fmt.Errorf("%w: basePath is required", ErrValidation)
	}
	return s.verify(ctx, basePath)
}

func (s *Store) verify(ctx context.Context, basePath string) (*IntegrityReport, error) {
	report := &IntegrityReport{}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&report.MemoryCount); err != nil {
		return nil, fmt.Errorf("store: count memories: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_vectors`).Scan(&report.VectorCount); err != nil {
		return nil, fmt.Errorf("store: count vectors: %w", err)
	}

	orphans, err := collectIDs(ctx, s.db, `SELECT v.id FROM memory_vectors v
        LEFT JOIN memories m ON m.id = v.id WHERE m.id IS NULL ORDER BY v.id`)
	if err != nil {
		return nil, fmt.Errorf("store: orphaned vectors: %w", err)
	}
	report.OrphanedVectors = orphans

	missing, err := collectIDs(ctx, s.db, `SELECT m.id FROM memories m
        LEFT JOIN memory_vectors v ON v.id = m.id
        WHERE m.embedding_status = 'success' AND v.id IS NULL ORDER BY m.id`)
	if err != nil {
		return nil, fmt.Errorf("store: missing vectors: %w", err)
	}
	report.MissingVectors = missing

	if basePath != "" {
		rows, err := s.db.QueryContext(ctx, `SELECT id, file_path FROM memories ORDER BY id`)
		if err != nil {
			return nil, fmt.Errorf("store: list file paths: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var mf MissingFile
			if err := rows.Scan(&mf.ID, &mf.FilePath); err != nil {
				return nil, fmt.Errorf("store: scan file path: %w", err)
			}
			if !fileExists(basePath, mf.FilePath) {
				report.MissingFiles = append(report.MissingFiles, mf)
			}
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return report, nil
}

// CleanupOrphans removes records whose backing file is confirmed missing on
// disk, deleting the vector row then the metadata row per record inside one
// transaction. It reports before/after totals and the removed ids.
func (s *Store) CleanupOrphans(ctx context.Context, basePath string) (*CleanupReport, error) {
	report, err := s.VerifyIntegrityWithPaths(ctx, basePath)
	if err != nil {
		return nil, err
	}
	out := &CleanupReport{
		MemoriesBefore: report.MemoryCount,
		VectorsBefore:  report.VectorCount,
	}
	if len(report.MissingFiles) > 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("store: begin cleanup tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		for _, mf := range report.MissingFiles {
			removed, err := deleteInTx(ctx, tx, mf.ID)
			if err != nil {
				return nil, err
			}
			if removed {
				out.RemovedIDs = append(out.RemovedIDs, mf.ID)
			}
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("store: commit cleanup tx: %w", err)
		}
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&out.MemoriesAfter); err != nil {
		return nil, fmt.Errorf("store: count memories: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_vectors`).Scan(&out.VectorsAfter); err != nil {
		return nil, fmt.Errorf("store: count vectors: %w", err)
	}
	return out, nil
}

// RepairIntegrity fixes structural violations between the two tables:
// orphaned vector rows are dropped and success records lacking a vector are
// demoted to pending so the retry queue re-drives their embedding. It
// returns the number of repairs applied.
func (s *Store) RepairIntegrity(ctx context.Context) (int, error) {
	report, err := s.VerifyIntegrity(ctx)
	if err != nil {
		return 0, err
	}
	if report.Healthy() {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin repair tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	repairs := 0
	for _, id := range report.OrphanedVectors {
		if _, err := tx.ExecContext(ctx, `DELETE FROM memory_vectors WHERE id = ?`, id); err != nil {
			return 0, fmt.Errorf("store: drop orphaned vector %d: %w", id, err)
		}
		repairs++
	}
	for _, id := range report.MissingVectors {
		if _, err := tx.ExecContext(ctx, `UPDATE memories SET embedding_status = 'pending', updated_at = ? WHERE id = ?`,
			s.now().UTC(), id); err != nil {
			return 0, fmt.Errorf("store: demote memory %d: %w", id, err)
		}
		repairs++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit repair tx: %w", err)
	}
	return repairs, nil
}

// CollectStats counts records per status plus vector rows.
func (s *Store) CollectStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByStatus: make(map[Status]int)}
	rows, err := s.db.QueryContext(ctx, `SELECT embedding_status, COUNT(*) FROM memories GROUP BY embedding_status`)
	if err != nil {
		return nil, fmt.Errorf("store: stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("store: stats: %w", err)
		}
		stats.ByStatus[Status(status)] = n
		stats.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_vectors`).Scan(&stats.VectorRows); err != nil {
		return nil, fmt.Errorf("store: stats: %w", err)
	}
	return stats, nil
}

func collectIDs(ctx context.Context, db *sql.DB, query string) ([]int64, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func fileExists(basePath, filePath string) bool {
	resolved := filePath
	if !filepath.IsAbs(filePath) {
		resolved = filepath.Join(basePath, filePath)
	}
	info, err := os.Stat(resolved)
	return err == nil && !info.IsDir()
}
