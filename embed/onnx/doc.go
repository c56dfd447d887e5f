// Package onnx embeds text with a local MiniLM-family model through ONNX
// Runtime. The real implementation is behind the onnx build tag because it
// needs the onnxruntime shared library at run time; without the tag New
// returns an error and callers fall back to another embedder.
package onnx
