// Package embed defines the embedding generator used by the memory index:
// the Embedder interface over concrete model backends (ONNX MiniLM behind
// the onnx build tag, a deterministic hash embedder as the always-available
// fallback), a Generator enforcing the text contract (blank input yields no
// vector, long input is truncated on a rune boundary, output is
// unit-normalized), a Lazy handle that loads model state on first use, and a
// ristretto-backed content cache.
package embed
