package engine

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

// Open opens a SQLite database using the modernc.org/sqlite driver with WAL
// journaling, a busy timeout, and foreign keys enabled.
//
// For file-based databases, pass a path like "./index.sqlite"; the parent
// directory is created when missing and the database file is restricted to
// owner read/write. For in-memory databases, pass ":memory:".
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("engine: empty dsn")
	}
	memory := dsn == ":memory:" || strings.HasPrefix(dsn, "file::memory:")
	if !memory {
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("engine: create db directory: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", dsn+pragmaSuffix(dsn))
	if err != nil {
		return nil, fmt.Errorf("engine: open sqlite: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// churn between the metadata and vector writes of one transaction.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("engine: ping: %w", err)
	}
	if !memory {
		if err := os.Chmod(dsn, 0o600); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("engine: restrict db permissions: %w", err)
		}
	}
	return db, nil
}

func pragmaSuffix(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
}
