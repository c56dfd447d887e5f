// Package vector defines the embedding value helpers shared by this module:
//   - Embedding encoding to/from SQLite BLOBs (little-endian float32)
//   - Cosine distance and magnitude built on github.com/viant/vec
//   - Unit-norm validation for generated embeddings
//   - Distance/similarity conversions used by the query engine
package vector
