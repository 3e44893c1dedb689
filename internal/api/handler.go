// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package api

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/roastery/internal/artifact"
	"github.com/tomtom215/roastery/internal/cache"
	"github.com/tomtom215/roastery/internal/events"
	"github.com/tomtom215/roastery/internal/logging"
)

// RunHistory is the ledger view used by the runs endpoints.
type RunHistory interface {
	LatestRun(ctx context.Context) (artifact.RunRecord, error)
	Runs(ctx context.Context, limit int) ([]artifact.RunRecord, error)
}

// Trigger requests a pipeline run.
type Trigger interface {
	Trigger() error
}

// RunStatus reports whether a run is executing.
type RunStatus interface {
	Running() bool
}

// Pinger checks a backing connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds what the handlers read from. Only Store is required.
type Dependencies struct {
	Store   *artifact.Store
	Ledger  RunHistory
	Trigger Trigger
	Status  RunStatus
	DB      Pinger
	Cache   *cache.Cache
	Version string
}

// Handler implements the API endpoints.
type Handler struct {
	store     *artifact.Store
	ledger    RunHistory
	trigger   Trigger
	status    RunStatus
	db        Pinger
	cache     *cache.Cache
	version   string
	startTime time.Time
}

// NewHandler creates a handler. A nil Cache gets a private one with a
// five-minute TTL.
func NewHandler(deps Dependencies) (*Handler, error) {
	if deps.Store == nil {
		return nil, errors.New("api: artifact store is required")
	}
	c := deps.Cache
	if c == nil {
		c = cache.New(5 * time.Minute)
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	return &Handler{
		store:     deps.Store,
		ledger:    deps.Ledger,
		trigger:   deps.Trigger,
		status:    deps.Status,
		db:        deps.DB,
		cache:     c,
		version:   version,
		startTime: time.Now(),
	}, nil
}

// InvalidateCache drops every cached artifact.
func (h *Handler) InvalidateCache() {
	h.cache.Clear()
}

// InvalidateOnRun is an events.Bus run handler that clears the cache when
// a run finishes.
func (h *Handler) InvalidateOnRun(ctx context.Context, e *events.RunEvent) error {
	h.InvalidateCache()
	logging.Ctx(ctx).Debug().
		Str("run_id", e.RunID).
		Str("status", e.Status).
		Msg("API cache cleared after run")
	return nil
}

// cached returns the value under key or loads and stores it.
func cached[T any](h *Handler, key string, load func() (T, error)) (T, bool, error) {
	if v, ok := h.cache.Get(key); ok {
		if t, ok := v.(T); ok {
			return t, true, nil
		}
	}
	v, err := load()
	if err != nil {
		var zero T
		return zero, false, err
	}
	h.cache.Set(key, v)
	return v, false, nil
}
