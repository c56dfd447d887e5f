package trigger

import (
	"strings"
	"testing"
)

// TestExtractBasics verifies stopwords and short words are dropped and a
// repeated bigram outranks its unigrams and absorbs them.
func TestExtractBasics(t *testing.T) {
	content := "The session token is issued at login. A session token expires. Renew the session token."
	phrases := Extract(content, 4)
	if len(phrases) == 0 {
		t.Fatalf("Extract returned no phrases")
	}
	if phrases[0] != "session token" {
		t.Errorf("top phrase = %q, want %q", phrases[0], "session token")
	}
	for _, p := range phrases {
		if p == "session" || p == "token" {
			t.Errorf("unigram %q survived despite its bigram being selected", p)
		}
		if p == "the" || p == "is" || p == "at" {
			t.Errorf("stopword or short word %q extracted", p)
		}
	}
}

// TestExtractEmptyAndLimit verifies empty content and the phrase cap.
func TestExtractEmptyAndLimit(t *testing.T) {
	if got := Extract("", 8); got != nil {
		t.Errorf("Extract(empty) = %v, want nil", got)
	}
	if got := Extract("the and for was", 8); got != nil {
		t.Errorf("Extract(stopwords only) = %v, want nil", got)
	}

	content := strings.Repeat("alpha bravo charlie delta echo foxtrot golf hotel india juliet ", 2)
	phrases := Extract(content, 3)
	if len(phrases) > 3 {
		t.Errorf("Extract returned %d phrases, want at most 3", len(phrases))
	}
	// Zero max applies the default cap.
	phrases = Extract(content, 0)
	if len(phrases) > DefaultMaxPhrases {
		t.Errorf("Extract(max 0) returned %d phrases, want at most %d", len(phrases), DefaultMaxPhrases)
	}
}

// TestExtractDeterministic verifies repeated extraction yields the same
// ordered result.
func TestExtractDeterministic(t *testing.T) {
	content := "retry backoff schedule retries failed embeddings with escalating backoff"
	first := Extract(content, 8)
	for i := 0; i < 5; i++ {
		again := Extract(content, 8)
		if len(again) != len(first) {
			t.Fatalf("run %d returned %d phrases, want %d", i, len(again), len(first))
		}
		for j := range first {
			if again[j] != first[j] {
				t.Fatalf("run %d phrase %d = %q, want %q", i, j, again[j], first[j])
			}
		}
	}
}

// TestMatchWordBoundaries verifies matching is case-insensitive and never
// matches inside a longer word.
func TestMatchWordBoundaries(t *testing.T) {
	phrases := []string{"auth", "session token", "login"}

	matched := Match("The Session Token is checked during AUTH.", phrases)
	if len(matched) != 2 {
		t.Fatalf("matched = %v, want [auth, session token]", matched)
	}
	if matched[0] != "auth" || matched[1] != "session token" {
		t.Errorf("matched = %v, want stored order [auth, session token]", matched)
	}

	// "authorization" must not match the phrase "auth".
	if matched := Match("authorization header parsing", phrases); len(matched) != 0 {
		t.Errorf("Match(substring) = %v, want none", matched)
	}

	if matched := Match("", phrases); matched != nil {
		t.Errorf("Match(empty text) = %v, want nil", matched)
	}
	if matched := Match("anything", nil); matched != nil {
		t.Errorf("Match(no phrases) = %v, want nil", matched)
	}
}
