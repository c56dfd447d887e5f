// Package trigger extracts short keyword phrases from free text and matches
// stored phrases against incoming text. Extraction is a deterministic
// frequency heuristic over stopword-filtered unigrams and bigrams: cheap,
// side-effect free, and stable for identical input. Phrase quality affects
// relevance only, never index integrity, so a higher-quality external
// extractor may supplement this one but is never required.
package trigger
