package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/viant/memindex/store"
)

// TestBulkIndex verifies readable files are indexed, blank files count as
// pending, and unreadable files are reported without aborting the batch.
func TestBulkIndex(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()
	base := t.TempDir()

	if err := os.MkdirAll(filepath.Join(base, "auth"), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	files := map[string]string{
		"auth/login.md":  "# Login\n\nSession token issuance.",
		"auth/logout.md": "# Logout\n\nToken revocation.",
		"auth/empty.md":  "   \n",
	}
	for path, content := range files {
		if err := os.WriteFile(filepath.Join(base, path), []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile(%s) failed: %v", path, err)
		}
	}

	entries := []FileEntry{
		{SpecFolder: "auth", FilePath: "auth/login.md", AnchorID: "login"},
		{SpecFolder: "auth", FilePath: "auth/logout.md", AnchorID: "logout"},
		{SpecFolder: "auth", FilePath: "auth/empty.md", AnchorID: "empty"},
		{SpecFolder: "auth", FilePath: "auth/absent.md", AnchorID: "absent"},
	}
	result, err := x.BulkIndex(ctx, base, entries, 2)
	if err != nil {
		t.Fatalf("BulkIndex failed: %v", err)
	}
	if result.Indexed != 2 {
		t.Errorf("indexed = %d, want 2", result.Indexed)
	}
	if result.Pending != 1 {
		t.Errorf("pending = %d, want 1", result.Pending)
	}
	if len(result.Failures) != 1 || result.Failures[0].FilePath != "auth/absent.md" {
		t.Errorf("failures = %v, want just auth/absent.md", result.Failures)
	}

	record, ok, err := x.Load(ctx, "auth", "login")
	if err != nil || !ok {
		t.Fatalf("Load(login) failed: ok=%v err=%v", ok, err)
	}
	if record.Title != "Login" {
		t.Errorf("title = %q, want Login", record.Title)
	}
}

// TestBulkIndexCanceledContext verifies cancellation surfaces as an error
// after draining in-flight reads.
func TestBulkIndexCanceledContext(t *testing.T) {
	x := newTestIndex(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entries := []FileEntry{{SpecFolder: "auth", FilePath: "auth/a.md"}}
	if _, err := x.BulkIndex(ctx, t.TempDir(), entries, 2); err == nil {
		t.Fatalf("BulkIndex with canceled context succeeded, want error")
	}
}

// TestBulkIndexEmpty verifies an empty manifest yields an empty result.
func TestBulkIndexEmpty(t *testing.T) {
	x := newTestIndex(t)
	result, err := x.BulkIndex(context.Background(), t.TempDir(), nil, 2)
	if err != nil {
		t.Fatalf("BulkIndex(empty) failed: %v", err)
	}
	if result.Indexed != 0 || result.Pending != 0 || len(result.Failures) != 0 {
		t.Errorf("result = %+v, want empty", result)
	}
}

// TestBulkResultTally verifies the per-entry accounting: a lookup error lands
// in Failures, never in the indexed count, and pending is derived from the
// record's embedding status.
func TestBulkResultTally(t *testing.T) {
	r := &BulkResult{}

	r.tally("auth/a.md", &store.MemoryRecord{EmbeddingStatus: store.StatusSuccess}, true, nil)
	if r.Indexed != 1 {
		t.Errorf("indexed = %d, want 1 after success record", r.Indexed)
	}
	r.tally("auth/b.md", &store.MemoryRecord{EmbeddingStatus: store.StatusPending}, true, nil)
	if r.Pending != 1 {
		t.Errorf("pending = %d, want 1 after pending record", r.Pending)
	}
	r.tally("auth/c.md", nil, false, errors.New("database is closed"))
	if r.Indexed != 1 || r.Pending != 1 {
		t.Errorf("counts = %d indexed %d pending, want unchanged after lookup error", r.Indexed, r.Pending)
	}
	if len(r.Failures) != 1 || r.Failures[0].FilePath != "auth/c.md" {
		t.Fatalf("failures = %+v, want just auth/c.md", r.Failures)
	}
}
