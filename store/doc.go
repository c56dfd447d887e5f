// Package store implements the synchronized metadata+vector store at the
// heart of the memory index. One relational table (memories) holds record
// metadata and one vector table (memory_vectors) holds embeddings keyed by
// the same id; every mutating operation keeps the two in lock-step inside a
// single transaction. The package also hosts the query engine: single-vector
// search and multi-concept AND search with per-concept thresholds, both
// pushing the distance filter into SQL via the vec_cosine_distance scalar
// function. When the vector capability is unavailable the store degrades to
// metadata-only operation instead of failing.
package store
