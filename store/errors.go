package store

import "errors"

var (
	// ErrValidation marks malformed caller input: missing required keys,
	// wrong vector dimension, concept count outside the allowed range.
	// Validation failures are never retried.
	ErrValidation = errors.New("store: validation error")

	// ErrNotFound is returned by operations that require the referenced
	// record to exist (e.g. UpdateMemory). Delete and lookup operations
	// report absence as a value instead.
	ErrNotFound = errors.New("store: record not found")
)
