// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/roastery/internal/models"
)

// Result is the output of one engine build.
type Result struct {
	Method          string
	Items           []string
	Transactions    int
	NonZero         int
	Recommendations []models.Recommendation
	Duration        time.Duration
}

// Engine builds the item-to-item recommendation list for a transaction table.
// An Engine holds no per-run state and is safe for concurrent use.
type Engine struct {
	config Config
	logger zerolog.Logger
}

// NewEngine creates a new recommendation engine.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg Config, logger zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Engine{
		config: cfg,
		logger: logger.With().Str("component", "recommend").Logger(),
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Build rebuilds the incidence matrix and similarity matrix from scratch and
// ranks the top-K neighbors of every product.
func (e *Engine) Build(ctx context.Context, table *models.TransactionTable) (*Result, error) {
	start := time.Now()

	m, err := BuildIncidenceMatrix(table, models.FieldTransactionID, models.FieldProductID)
	if err != nil {
		return nil, err
	}
	e.logger.Debug().
		Int("transactions", len(m.Transactions)).
		Int("items", len(m.Items)).
		Int("non_zero", m.NonZero()).
		Msg("Incidence matrix built")

	var sim *SimilarityMatrix
	switch e.config.Method {
	case MethodCooccurrence:
		sim, err = BuildCooccurrence(ctx, m, e.config.workers())
	default:
		sim, err = BuildItemSimilarity(ctx, m, e.config.workers())
	}
	if err != nil {
		return nil, fmt.Errorf("build %s matrix: %w", e.config.Method, err)
	}

	recs, err := TopKNeighbors(sim, m.Items, e.config.TopK)
	if err != nil {
		return nil, err
	}
	recs = e.applyMinScore(recs)

	result := &Result{
		Method:          e.config.Method,
		Items:           m.Items,
		Transactions:    len(m.Transactions),
		NonZero:         m.NonZero(),
		Recommendations: recs,
		Duration:        time.Since(start),
	}
	e.logger.Info().
		Str("method", result.Method).
		Int("items", len(result.Items)).
		Int("recommendations", len(recs)).
		Dur("duration", result.Duration).
		Msg("Recommendations built")
	return result, nil
}

// applyMinScore drops neighbors below the configured floor and renumbers
// ranks so they stay contiguous per source.
func (e *Engine) applyMinScore(recs []models.Recommendation) []models.Recommendation {
	if e.config.MinScore <= 0 {
		return recs
	}
	out := recs[:0]
	rank := 0
	prev := ""
	for _, r := range recs {
		if r.SourceID != prev {
			prev = r.SourceID
			rank = 0
		}
		if r.Score < e.config.MinScore {
			continue
		}
		rank++
		r.Rank = rank
		out = append(out, r)
	}
	return out
}
