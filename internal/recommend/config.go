// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package recommend

import (
	"fmt"
	"runtime"
)

// Similarity methods.
const (
	MethodCosine       = "cosine"
	MethodCooccurrence = "cooccurrence"
)

// Config contains configuration for the recommendation engine.
type Config struct {
	// Method selects the similarity measure: "cosine" or "cooccurrence".
	Method string `koanf:"method" validate:"oneof=cosine cooccurrence"`

	// TopK is the maximum number of neighbors emitted per product.
	TopK int `koanf:"top_k" validate:"min=1"`

	// MinScore drops neighbors scoring below this value. Zero keeps every
	// neighbor, including those with no shared transactions.
	MinScore float64 `koanf:"min_score" validate:"min=0"`

	// Workers bounds the pairwise similarity worker pool.
	Workers int `koanf:"workers" validate:"min=0"`
}

// DefaultConfig returns the default recommendation configuration.
func DefaultConfig() Config {
	return Config{
		Method:   MethodCosine,
		TopK:     5,
		MinScore: 0,
		Workers:  runtime.NumCPU(),
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Method != MethodCosine && c.Method != MethodCooccurrence {
		return fmt.Errorf("unknown similarity method %q", c.Method)
	}
	if c.TopK < 1 {
		return fmt.Errorf("top_k must be at least 1, got %d", c.TopK)
	}
	if c.MinScore < 0 {
		return fmt.Errorf("min_score must be non-negative, got %v", c.MinScore)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Workers)
	}
	return nil
}

func (c *Config) workers() int {
	if c.Workers <= 0 {
		return 1
	}
	return c.Workers
}
