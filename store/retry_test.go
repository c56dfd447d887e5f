package store

import (
	"context"
	"testing"
	"time"
)

// TestListRetryQueueOrdering verifies the queue prefers fewer prior attempts
// and that success and failed records never appear in it.
func TestListRetryQueueOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fresh, err := s.IndexMemory(ctx, IndexParams{SpecFolder: "auth", FilePath: "fresh.md"})
	if err != nil {
		t.Fatalf("IndexMemory(fresh) failed: %v", err)
	}
	worn, err := s.IndexMemory(ctx, IndexParams{SpecFolder: "auth", FilePath: "worn.md"})
	if err != nil {
		t.Fatalf("IndexMemory(worn) failed: %v", err)
	}
	if _, err := s.IndexMemory(ctx, IndexParams{
		SpecFolder: "auth", FilePath: "done.md", Embedding: []float32{1, 0, 0, 0},
	}); err != nil {
		t.Fatalf("IndexMemory(done) failed: %v", err)
	}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := s.MarkRetryFailure(ctx, worn, "embed: boom", 3, now); err != nil {
		t.Fatalf("MarkRetryFailure failed: %v", err)
	}

	queue, err := s.ListRetryQueue(ctx)
	if err != nil {
		t.Fatalf("ListRetryQueue failed: %v", err)
	}
	if len(queue) != 2 {
		t.Fatalf("queue length = %d, want 2", len(queue))
	}
	if queue[0].ID != fresh || queue[1].ID != worn {
		t.Errorf("queue order = [%d %d], want [fresh worn] = [%d %d]",
			queue[0].ID, queue[1].ID, fresh, worn)
	}
}

// TestMarkRetryFailureTransitions walks a record through the bounded retry
// state machine: two failures keep it retrying, the third makes it failed.
func TestMarkRetryFailureTransitions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	id, err := s.IndexMemory(ctx, IndexParams{SpecFolder: "auth", FilePath: "a.md"})
	if err != nil {
		t.Fatalf("IndexMemory failed: %v", err)
	}

	for attempt := 1; attempt <= 3; attempt++ {
		want := StatusRetry
		if attempt == 3 {
			want = StatusFailed
		}
		status, err := s.MarkRetryFailure(ctx, id, "embed: boom", 3, now)
		if err != nil {
			t.Fatalf("MarkRetryFailure attempt %d failed: %v", attempt, err)
		}
		if status != want {
			t.Fatalf("attempt %d status = %s, want %s", attempt, status, want)
		}
		record, _, err := s.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if record.RetryCount != attempt {
			t.Errorf("attempt %d retry count = %d, want %d", attempt, record.RetryCount, attempt)
		}
		if record.FailureReason != "embed: boom" {
			t.Errorf("failure reason = %q, want embed: boom", record.FailureReason)
		}
		if record.LastRetryAt == nil {
			t.Errorf("attempt %d last retry at is nil", attempt)
		}
	}

	failed, err := s.ListFailed(ctx)
	if err != nil {
		t.Fatalf("ListFailed failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != id {
		t.Errorf("failed list = %v, want just %d", failed, id)
	}
}

// TestMarkEmbedded verifies a successful retry installs the vector and the
// success status atomically and clears the failure reason.
func TestMarkEmbedded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	id, err := s.IndexMemory(ctx, IndexParams{SpecFolder: "auth", FilePath: "a.md"})
	if err != nil {
		t.Fatalf("IndexMemory failed: %v", err)
	}
	if _, err := s.MarkRetryFailure(ctx, id, "embed: boom", 3, now); err != nil {
		t.Fatalf("MarkRetryFailure failed: %v", err)
	}
	if err := s.MarkEmbedded(ctx, id, "test-model", []float32{1, 0, 0, 0}, now.Add(time.Minute)); err != nil {
		t.Fatalf("MarkEmbedded failed: %v", err)
	}

	record, _, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if record.EmbeddingStatus != StatusSuccess {
		t.Errorf("status = %s, want success", record.EmbeddingStatus)
	}
	if record.FailureReason != "" {
		t.Errorf("failure reason = %q, want empty", record.FailureReason)
	}
	if record.EmbeddingModel != "test-model" {
		t.Errorf("model = %q, want test-model", record.EmbeddingModel)
	}
	if got := countRows(t, s, "memory_vectors"); got != 1 {
		t.Errorf("vector rows = %d, want 1", got)
	}
}

// TestMarkEmbeddedDegraded verifies that without vector capability the record
// stays pending rather than claiming success it cannot back with a vector.
func TestMarkEmbeddedDegraded(t *testing.T) {
	s := newTestStore(t, WithBackend(NewNoopBackend(nil)))
	ctx := context.Background()

	id, err := s.IndexMemory(ctx, IndexParams{SpecFolder: "auth", FilePath: "a.md"})
	if err != nil {
		t.Fatalf("IndexMemory failed: %v", err)
	}
	if err := s.MarkEmbedded(ctx, id, "test-model", []float32{1, 0, 0, 0}, time.Now()); err != nil {
		t.Fatalf("MarkEmbedded failed: %v", err)
	}
	record, _, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if record.EmbeddingStatus != StatusPending {
		t.Errorf("status = %s, want pending in degraded mode", record.EmbeddingStatus)
	}
}

// TestMarkEmbeddedDegradedRemovesVector verifies the demote path deletes a
// pre-existing vector row even though the backend cannot perform vector
// writes. A pending record must never keep a vector behind.
func TestMarkEmbeddedDegradedRemovesVector(t *testing.T) {
	s := newTestStore(t, WithBackend(NewNoopBackend(nil)))
	ctx := context.Background()

	id, err := s.IndexMemory(ctx, IndexParams{SpecFolder: "auth", FilePath: "a.md"})
	if err != nil {
		t.Fatalf("IndexMemory failed: %v", err)
	}
	if _, err := s.db.Exec(`INSERT INTO memory_vectors(id, embedding) VALUES (?, x'0000803f')`, id); err != nil {
		t.Fatalf("plant vector row failed: %v", err)
	}
	if err := s.MarkEmbedded(ctx, id, "test-model", []float32{1, 0, 0, 0}, time.Now()); err != nil {
		t.Fatalf("MarkEmbedded failed: %v", err)
	}
	record, _, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if record.EmbeddingStatus != StatusPending {
		t.Errorf("status = %s, want pending in degraded mode", record.EmbeddingStatus)
	}
	if got := countRows(t, s, "memory_vectors"); got != 0 {
		t.Errorf("vector rows = %d, want 0 after degraded demote", got)
	}
}

// TestResetForRetry verifies only failed records can be reset, and the reset
// clears their retry history.
func TestResetForRetry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	id, err := s.IndexMemory(ctx, IndexParams{SpecFolder: "auth", FilePath: "a.md"})
	if err != nil {
		t.Fatalf("IndexMemory failed: %v", err)
	}

	// Pending record: reset must refuse.
	ok, err := s.ResetForRetry(ctx, id)
	if err != nil {
		t.Fatalf("ResetForRetry(pending) failed: %v", err)
	}
	if ok {
		t.Fatalf("ResetForRetry(pending) reported true")
	}

	for i := 0; i < 3; i++ {
		if _, err := s.MarkRetryFailure(ctx, id, "embed: boom", 3, now); err != nil {
			t.Fatalf("MarkRetryFailure failed: %v", err)
		}
	}
	ok, err = s.ResetForRetry(ctx, id)
	if err != nil {
		t.Fatalf("ResetForRetry(failed) failed: %v", err)
	}
	if !ok {
		t.Fatalf("ResetForRetry(failed) reported false")
	}
	record, _, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if record.EmbeddingStatus != StatusRetry {
		t.Errorf("status = %s, want retry", record.EmbeddingStatus)
	}
	if record.RetryCount != 0 || record.FailureReason != "" || record.LastRetryAt != nil {
		t.Errorf("retry history not cleared: count=%d reason=%q lastRetryAt=%v",
			record.RetryCount, record.FailureReason, record.LastRetryAt)
	}
}
