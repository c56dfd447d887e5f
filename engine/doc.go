// Package engine provides helpers for working with the modernc.org/sqlite
// driver in this module: opening index databases with the right pragmas and
// file permissions, and registering the vec_cosine_distance SQL scalar
// function used for similarity pushdown. It intentionally keeps a thin
// surface so other packages can share the same driver instance.
package engine
