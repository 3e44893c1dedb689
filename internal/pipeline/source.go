// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package pipeline

import (
	"context"

	"github.com/tomtom215/roastery/internal/models"
)

// Source produces the raw transaction table of a run.
// *database.Loader implements Source.
type Source interface {
	Name() string
	Load(ctx context.Context) (*models.TransactionTable, error)
}

// StaticSource serves a fixed table.
type StaticSource struct {
	Label string
	Table *models.TransactionTable
}

// Name returns the source label.
func (s *StaticSource) Name() string {
	if s.Label == "" {
		return "static"
	}
	return s.Label
}

// Load returns the table.
func (s *StaticSource) Load(ctx context.Context) (*models.TransactionTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Table, nil
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (*models.TransactionTable, error)

// Name returns "func".
func (f SourceFunc) Name() string { return "func" }

// Load calls f.
func (f SourceFunc) Load(ctx context.Context) (*models.TransactionTable, error) { return f(ctx) }
