package trigger

import (
	"sort"
	"strings"
	"unicode"
)

// DefaultMaxPhrases bounds Extract output when the caller passes no limit.
const DefaultMaxPhrases = 8

// minWordLen drops tokens too short to be meaningful on their own.
const minWordLen = 3

// Extract returns up to max short phrases ranked by frequency, bigrams
// weighted above unigrams. Output order is deterministic: score descending,
// first appearance in the text as the tie-break.
func Extract(content string, max int) []string {
	if max <= 0 {
		max = DefaultMaxPhrases
	}
	words := tokenize(content)
	if len(words) == 0 {
		return nil
	}

	type scored struct {
		phrase string
		score  int
		first  int
	}
	seen := map[string]*scored{}
	var order []*scored

	note := func(phrase string, weight, pos int) {
		if entry, ok := seen[phrase]; ok {
			entry.score += weight
			return
		}
		entry := &scored{phrase: phrase, score: weight, first: pos}
		seen[phrase] = entry
		order = append(order, entry)
	}

	for i, w := range words {
		if keep(w) {
			note(w, 1, i)
		}
		if i+1 < len(words) && keep(w) && keep(words[i+1]) {
			note(w+" "+words[i+1], 3, i)
		}
	}

	sort.SliceStable(order, func(a, b int) bool {
		if order[a].score != order[b].score {
			return order[a].score > order[b].score
		}
		return order[a].first < order[b].first
	})

	// Drop unigrams already covered by a selected bigram.
	var out []string
	covered := map[string]bool{}
	for _, entry := range order {
		if len(out) >= max {
			break
		}
		if !strings.Contains(entry.phrase, " ") && covered[entry.phrase] {
			continue
		}
		out = append(out, entry.phrase)
		for _, part := range strings.Fields(entry.phrase) {
			covered[part] = true
		}
	}
	return out
}

// Match reports which of the stored phrases occur in text, preserving the
// stored order. Matching is case-insensitive on word boundaries.
func Match(text string, phrases []string) []string {
	if text == "" || len(phrases) == 0 {
		return nil
	}
	haystack := " " + strings.Join(tokenize(text), " ") + " "
	var matched []string
	for _, phrase := range phrases {
		needle := strings.Join(tokenize(phrase), " ")
		if needle == "" {
			continue
		}
		if strings.Contains(haystack, " "+needle+" ") {
			matched = append(matched, phrase)
		}
	}
	return matched
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func keep(word string) bool {
	return len(word) >= minWordLen && !stopwords[word]
}
