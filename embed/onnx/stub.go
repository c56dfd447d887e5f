//go:build !onnx

package onnx

import (
	"context"
	"fmt"
)

// Embedder is unavailable without the onnx build tag.
type Embedder struct{}

// New reports that the ONNX backend was not compiled in.
func New(Config) (*Embedder, error) {
	return nil, fmt.Errorf("onnx: built without the onnx tag; rebuild with -tags onnx or use another embedder")
}

// Embed never runs on the stub.
func (e *Embedder) Embed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("onnx: embedder unavailable")
}

// Dimensions returns 0 on the stub.
func (e *Embedder) Dimensions() int { return 0 }

// Model returns the model of record the real backend would load.
func (e *Embedder) Model() string { return DefaultModel }

// Close is a no-op.
func (e *Embedder) Close() error { return nil }
