package store

import (
	"database/sql"
	"fmt"
)

// anchor_id stores '' for "absent" so the composite uniqueness constraint
// applies; SQLite treats NULLs in a UNIQUE index as distinct.
const memoriesSchema = `
CREATE TABLE IF NOT EXISTS memories (
    id                     INTEGER PRIMARY KEY AUTOINCREMENT,
    spec_folder            TEXT NOT NULL,
    file_path              TEXT NOT NULL,
    anchor_id              TEXT NOT NULL DEFAULT '',
    title                  TEXT NOT NULL DEFAULT '',
    trigger_phrases        TEXT NOT NULL DEFAULT '[]',
    importance_weight      REAL NOT NULL DEFAULT 0.5
                           CHECK (importance_weight >= 0.0 AND importance_weight <= 1.0),
    created_at             TIMESTAMP NOT NULL,
    updated_at             TIMESTAMP NOT NULL,
    embedding_model        TEXT NOT NULL DEFAULT '',
    embedding_generated_at TIMESTAMP,
    embedding_status       TEXT NOT NULL DEFAULT 'pending'
                           CHECK (embedding_status IN ('pending','success','retry','failed')),
    retry_count            INTEGER NOT NULL DEFAULT 0,
    last_retry_at          TIMESTAMP,
    failure_reason         TEXT NOT NULL DEFAULT '',
    UNIQUE (spec_folder, file_path, anchor_id)
);
CREATE INDEX IF NOT EXISTS idx_memories_status ON memories(embedding_status);
CREATE INDEX IF NOT EXISTS idx_memories_spec_folder ON memories(spec_folder);
`

const vectorsSchema = `
CREATE TABLE IF NOT EXISTS memory_vectors (
    id        INTEGER PRIMARY KEY,
    embedding BLOB NOT NULL
);
`

// EnsureSchema creates both index tables in the provided database when they
// do not already exist. Calling it on an initialized database is a no-op.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(memoriesSchema); err != nil {
		return fmt.Errorf("store: create memories schema: %w", err)
	}
	if _, err := db.Exec(vectorsSchema); err != nil {
		return fmt.Errorf("store: create memory_vectors schema: %w", err)
	}
	return nil
}
