package hash

import (
	"context"
	"testing"

	"github.com/viant/memindex/vector"
)

// TestEmbedDeterministic verifies identical text always yields identical
// vectors and different text yields different ones.
func TestEmbedDeterministic(t *testing.T) {
	e := New(8)
	ctx := context.Background()

	a, err := e.Embed(ctx, "some text")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	b, err := e.Embed(ctx, "some text")
	if err != nil {
		t.Fatalf("repeat Embed failed: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vector differs at %d: %v vs %v", i, a[i], b[i])
		}
	}

	c, err := e.Embed(ctx, "other text")
	if err != nil {
		t.Fatalf("Embed(other) failed: %v", err)
	}
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Errorf("different texts produced identical vectors")
	}
}

// TestEmbedUnitNorm verifies output vectors are unit-normalized, including
// for empty input.
func TestEmbedUnitNorm(t *testing.T) {
	e := New(16)
	for _, text := range []string{"", "a", "a longer piece of text"} {
		out, err := e.Embed(context.Background(), text)
		if err != nil {
			t.Fatalf("Embed(%q) failed: %v", text, err)
		}
		if len(out) != 16 {
			t.Fatalf("Embed(%q) length = %d, want 16", text, len(out))
		}
		if err := vector.ValidateUnitNorm(out); err != nil {
			t.Errorf("Embed(%q) not unit norm: %v", text, err)
		}
	}
}

// TestNewDefaultDimensions verifies the non-positive dims fallback.
func TestNewDefaultDimensions(t *testing.T) {
	if got := New(0).Dimensions(); got != DefaultDimensions {
		t.Errorf("New(0).Dimensions() = %d, want %d", got, DefaultDimensions)
	}
	if got := New(12).Dimensions(); got != 12 {
		t.Errorf("New(12).Dimensions() = %d, want 12", got)
	}
	if New(0).Model() != ModelName {
		t.Errorf("Model() = %q, want %q", New(0).Model(), ModelName)
	}
}
