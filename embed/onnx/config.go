package onnx

import "fmt"

// DefaultModel is the module's embedding model of record.
const DefaultModel = "all-MiniLM-L6-v2"

// Config describes the model files and shape of an ONNX embedder.
type Config struct {
	// ModelPath locates the .onnx model file.
	ModelPath string

	// TokenizerPath locates the tokenizer.json vocabulary.
	TokenizerPath string

	// LibraryPath optionally locates the onnxruntime shared library.
	LibraryPath string

	// Model names the model for record bookkeeping; defaults to DefaultModel.
	Model string

	// Dimensions is the embedding vector size; defaults to 384.
	Dimensions int

	// MaxSequence is the token window including [CLS]/[SEP]; defaults to 128.
	MaxSequence int
}

func (c *Config) validate() error {
	if c.ModelPath == "" {
		return fmt.Errorf("onnx: ModelPath is required")
	}
	if c.TokenizerPath == "" {
		return fmt.Errorf("onnx: TokenizerPath is required")
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Dimensions <= 0 {
		c.Dimensions = 384
	}
	if c.MaxSequence <= 0 {
		c.MaxSequence = 128
	}
	return nil
}
