// Package memory is the orchestration-facing surface of the semantic index:
// it wires the embedding generator, the synchronized store, and the trigger
// extractor into the operations callers actually invoke: index a piece of
// content, search by meaning, load a record, match trigger phrases without
// paying for an embedding, and bulk-index files with bounded concurrency
// while the single loaded model instance stays serialized.
package memory
