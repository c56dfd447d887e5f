// Package config loads the index configuration from an optional YAML file
// with environment-variable overrides, and assembles the configured
// embedder stack.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/viant/memindex/embed"
	"github.com/viant/memindex/embed/hash"
	"github.com/viant/memindex/embed/onnx"
)

// Config carries every tunable of the index engine. YAML keys mirror the
// field names; MEMINDEX_* environment variables override the file.
type Config struct {
	DBPath   string `yaml:"db_path"`
	BasePath string `yaml:"base_path"`

	Embedder        string `yaml:"embedder"` // "onnx" or "hash"
	Dimensions      int    `yaml:"dimensions"`
	ModelName       string `yaml:"model_name"`
	ModelPath       string `yaml:"model_path"`
	TokenizerPath   string `yaml:"tokenizer_path"`
	LibraryPath     string `yaml:"library_path"`
	MaxContentChars int    `yaml:"max_content_chars"`
	CacheBudget     int64  `yaml:"cache_budget"`

	MaxRetries     int   `yaml:"max_retries"`
	BackoffMinutes []int `yaml:"backoff_minutes"`
}

// Default returns the built-in configuration: hash embedder, 384 dimensions,
// a local database file, and the 1/5/15-minute backoff schedule.
func Default() *Config {
	return &Config{
		DBPath:          "memindex.sqlite",
		Embedder:        "hash",
		Dimensions:      384,
		ModelName:       onnx.DefaultModel,
		MaxContentChars: embed.MaxContentChars,
		CacheBudget:     embed.DefaultCacheBudget,
		MaxRetries:      3,
		BackoffMinutes:  []int{1, 5, 15},
	}
}

// Load reads path when non-empty, then applies environment overrides.
// A missing explicit file is an error; an empty path means defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	envStr("MEMINDEX_DB", &c.DBPath)
	envStr("MEMINDEX_BASE", &c.BasePath)
	envStr("MEMINDEX_EMBEDDER", &c.Embedder)
	envInt("MEMINDEX_DIMENSIONS", &c.Dimensions)
	envStr("MEMINDEX_MODEL_NAME", &c.ModelName)
	envStr("MEMINDEX_MODEL_PATH", &c.ModelPath)
	envStr("MEMINDEX_TOKENIZER_PATH", &c.TokenizerPath)
	envStr("MEMINDEX_LIBRARY_PATH", &c.LibraryPath)
	envInt("MEMINDEX_MAX_RETRIES", &c.MaxRetries)
}

func (c *Config) validate() error {
	if c.Dimensions <= 0 {
		return fmt.Errorf("config: dimensions must be positive, got %d", c.Dimensions)
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("config: max_retries must be positive, got %d", c.MaxRetries)
	}
	switch c.Embedder {
	case "onnx", "hash":
	default:
		return fmt.Errorf("config: unknown embedder %q (want onnx or hash)", c.Embedder)
	}
	if len(c.BackoffMinutes) == 0 {
		c.BackoffMinutes = []int{1, 5, 15}
	}
	return nil
}

// Backoff converts the schedule to durations.
func (c *Config) Backoff() []time.Duration {
	out := make([]time.Duration, len(c.BackoffMinutes))
	for i, minutes := range c.BackoffMinutes {
		out[i] = time.Duration(minutes) * time.Minute
	}
	return out
}

// NewEmbedder assembles the configured embedder: lazy model loading so bulk
// callers pay the load cost once, wrapped in the ristretto content cache.
func (c *Config) NewEmbedder() (embed.Embedder, error) {
	var base embed.Embedder
	switch c.Embedder {
	case "onnx":
		cfg := onnx.Config{
			ModelPath:     c.ModelPath,
			TokenizerPath: c.TokenizerPath,
			LibraryPath:   c.LibraryPath,
			Model:         c.ModelName,
			Dimensions:    c.Dimensions,
		}
		base = embed.NewLazy(c.Dimensions, c.ModelName, func() (embed.Embedder, error) {
			embedder, err := onnx.New(cfg)
			if err != nil {
				return nil, err
			}
			return embedder, nil
		})
	default:
		base = hash.New(c.Dimensions)
	}
	return embed.NewCached(base, c.CacheBudget)
}

// NewGenerator assembles the full generator contract over NewEmbedder.
func (c *Config) NewGenerator() (*embed.Generator, error) {
	embedder, err := c.NewEmbedder()
	if err != nil {
		return nil, err
	}
	return embed.NewGenerator(embedder, embed.WithMaxChars(c.MaxContentChars)), nil
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
