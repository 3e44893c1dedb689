// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/tomtom215/roastery/internal/artifact"
	"github.com/tomtom215/roastery/internal/config"
	"github.com/tomtom215/roastery/internal/database"
	"github.com/tomtom215/roastery/internal/logging"
	"github.com/tomtom215/roastery/internal/pipeline"
)

// components are the long-lived resources shared by run and serve.
type components struct {
	db        *database.DB
	loader    *database.Loader
	ledger    *artifact.Ledger
	snapshots *artifact.SnapshotStore
	closers   []io.Closer
}

// openComponents opens DuckDB, the source loader and, when enabled, the
// ledger and snapshot store. On error everything opened so far is closed.
func openComponents(cfg *config.Config) (c *components, err error) {
	c = &components{}
	defer func() {
		if err != nil {
			c.Close()
			c = nil
		}
	}()

	c.db, err = database.Open(database.Config{
		MemoryLimit: cfg.Source.MemoryLimit,
		Threads:     cfg.Source.Threads,
	})
	if err != nil {
		return c, fmt.Errorf("open duckdb: %w", err)
	}
	c.closers = append(c.closers, c.db)
	logging.Info().Msg("DuckDB initialized")

	c.loader, err = database.NewLoader(c.db, database.Source{
		Path:   cfg.Source.Path,
		Format: cfg.Source.Format,
		Table:  cfg.Source.Table,
	})
	if err != nil {
		return c, fmt.Errorf("create loader: %w", err)
	}

	if cfg.Ledger.Enabled {
		lc := cfg.Ledger.Artifact()
		lc.Path = cfg.LedgerPath()
		c.ledger, err = artifact.OpenLedger(lc)
		if err != nil {
			return c, fmt.Errorf("open ledger: %w", err)
		}
		c.closers = append(c.closers, c.ledger)
		logging.Info().Str("path", lc.Path).Msg("Ledger opened")

		c.snapshots, err = artifact.NewSnapshotStore(cfg.SnapshotDir())
		if err != nil {
			return c, fmt.Errorf("open snapshot store: %w", err)
		}
	}
	return c, nil
}

// orchestrator builds the pipeline over source with the optional stores.
func (c *components) orchestrator(cfg *config.Config, source pipeline.Source, opts ...pipeline.Option) (*pipeline.Orchestrator, error) {
	if c.ledger != nil {
		opts = append(opts, pipeline.WithLedger(c.ledger))
	}
	if c.snapshots != nil {
		opts = append(opts, pipeline.WithSnapshots(c.snapshots))
	}
	return pipeline.New(cfg, source, opts...)
}

// Close closes resources in reverse order of opening.
func (c *components) Close() {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		logging.Error().Err(err).Msg("Error closing resources")
	}
}
