package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/viant/memindex/embed"
	"github.com/viant/memindex/embed/hash"
	"github.com/viant/memindex/engine"
	"github.com/viant/memindex/store"
)

const testDims = 8

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	if err := engine.RegisterVectorFunctions(nil); err != nil {
		t.Fatalf("RegisterVectorFunctions failed: %v", err)
	}
	db, err := engine.Open(":memory:")
	if err != nil {
		t.Fatalf("engine.Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	s, err := store.New(db, store.WithDimensions(testDims))
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}
	return New(s, embed.NewGenerator(hash.New(testDims)))
}

// TestIndexContentDerivations verifies the title comes from the first
// heading line and trigger phrases are extracted when not supplied.
func TestIndexContentDerivations(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	id, err := x.IndexContent(ctx, ContentParams{
		SpecFolder: "auth",
		FilePath:   "auth/login.md",
		AnchorID:   "login",
		Content:    "\n## Session Token Lifecycle\n\nThe session token is rotated on every login request.",
	})
	if err != nil {
		t.Fatalf("IndexContent failed: %v", err)
	}
	record, ok, err := x.Load(ctx, "auth", "login")
	if err != nil || !ok {
		t.Fatalf("Load failed: ok=%v err=%v", ok, err)
	}
	if record.ID != id {
		t.Errorf("loaded id = %d, want %d", record.ID, id)
	}
	if record.Title != "Session Token Lifecycle" {
		t.Errorf("title = %q, want derived heading", record.Title)
	}
	if len(record.TriggerPhrases) == 0 {
		t.Errorf("no trigger phrases derived")
	}
	if record.EmbeddingStatus != store.StatusSuccess {
		t.Errorf("status = %s, want success", record.EmbeddingStatus)
	}
	if record.EmbeddingModel != hash.ModelName {
		t.Errorf("model = %q, want %q", record.EmbeddingModel, hash.ModelName)
	}
}

// TestIndexContentBlank verifies blank content still records metadata, in
// pending status.
func TestIndexContentBlank(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	id, err := x.IndexContent(ctx, ContentParams{
		SpecFolder: "auth", FilePath: "auth/empty.md", Content: "   \n",
	})
	if err != nil {
		t.Fatalf("IndexContent failed: %v", err)
	}
	record, ok, err := x.Store().Get(ctx, id)
	if err != nil || !ok {
		t.Fatalf("Get failed: ok=%v err=%v", ok, err)
	}
	if record.EmbeddingStatus != store.StatusPending {
		t.Errorf("status = %s, want pending for blank content", record.EmbeddingStatus)
	}
}

// TestSearchFindsIndexedContent verifies a query identical to indexed
// content comes back as the top hit at full similarity; the hash embedder
// makes this exact.
func TestSearchFindsIndexedContent(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	content := "Retry backoff schedule for failed embeddings."
	if _, err := x.IndexContent(ctx, ContentParams{
		SpecFolder: "infra", FilePath: "infra/retry.md", Content: content,
	}); err != nil {
		t.Fatalf("IndexContent(retry) failed: %v", err)
	}
	if _, err := x.IndexContent(ctx, ContentParams{
		SpecFolder: "infra", FilePath: "infra/other.md", Content: "Completely unrelated notes.",
	}); err != nil {
		t.Fatalf("IndexContent(other) failed: %v", err)
	}

	results, err := x.Search(ctx, content, SearchOptions{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatalf("Search returned no results")
	}
	if results[0].FilePath != "infra/retry.md" {
		t.Errorf("top hit = %s, want infra/retry.md", results[0].FilePath)
	}
	if results[0].Similarity != 100 {
		t.Errorf("top similarity = %v, want 100", results[0].Similarity)
	}
}

// TestSearchBlankQuery verifies a blank query returns nothing, not an error.
func TestSearchBlankQuery(t *testing.T) {
	x := newTestIndex(t)
	results, err := x.Search(context.Background(), "   ", SearchOptions{})
	if err != nil {
		t.Fatalf("Search(blank) failed: %v", err)
	}
	if results != nil {
		t.Errorf("Search(blank) = %v, want nil", results)
	}
}

// TestMultiConceptSearchFacade verifies blank concepts are dropped before
// the arity check and matching content ranks.
func TestMultiConceptSearchFacade(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	// One real concept plus one blank: arity falls below the minimum.
	if _, err := x.MultiConceptSearch(ctx, []string{"auth", "  "}, SearchOptions{}, nil); !errors.Is(err, store.ErrValidation) {
		t.Errorf("blank concept err = %v, want ErrValidation", err)
	}

	if _, err := x.IndexContent(ctx, ContentParams{
		SpecFolder: "auth", FilePath: "auth/login.md", Content: "login",
	}); err != nil {
		t.Fatalf("IndexContent failed: %v", err)
	}
	// Identical concepts hit the record at distance 0 on both.
	minSim := 90.0
	results, err := x.MultiConceptSearch(ctx, []string{"login", "login"}, SearchOptions{}, &minSim)
	if err != nil {
		t.Fatalf("MultiConceptSearch failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("MultiConceptSearch returned %d results, want 1", len(results))
	}
	if results[0].AvgSimilarity != 100 {
		t.Errorf("avg similarity = %v, want 100", results[0].AvgSimilarity)
	}
}

// TestMatchTriggers verifies trigger matching ranks records by how many of
// their phrases occur in the probed text.
func TestMatchTriggers(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	if _, err := x.IndexContent(ctx, ContentParams{
		SpecFolder: "auth", FilePath: "auth/login.md", Content: "login",
		TriggerPhrases: []string{"session token", "login"},
	}); err != nil {
		t.Fatalf("IndexContent(login) failed: %v", err)
	}
	if _, err := x.IndexContent(ctx, ContentParams{
		SpecFolder: "auth", FilePath: "auth/billing.md", Content: "billing",
		TriggerPhrases: []string{"invoice"},
	}); err != nil {
		t.Fatalf("IndexContent(billing) failed: %v", err)
	}

	matches, err := x.MatchTriggers(ctx, "The login flow issues a session token and an invoice.", "auth")
	if err != nil {
		t.Fatalf("MatchTriggers failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches = %d, want 2", len(matches))
	}
	if matches[0].Record.FilePath != "auth/login.md" || len(matches[0].Matched) != 2 {
		t.Errorf("top match = %s with %v, want auth/login.md with both phrases",
			matches[0].Record.FilePath, matches[0].Matched)
	}

	matches, err = x.MatchTriggers(ctx, "nothing relevant here", "auth")
	if err != nil {
		t.Fatalf("MatchTriggers(no hits) failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("matches = %v, want none", matches)
	}
}
