// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package pipeline

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/roastery/internal/logging"
	"github.com/tomtom215/roastery/internal/metrics"
	"github.com/tomtom215/roastery/internal/models"
)

// BreakerConfig configures BreakerSource.
type BreakerConfig struct {
	// Failures is the number of consecutive load failures that opens the
	// circuit.
	Failures uint32

	// Timeout is how long the circuit stays open before a trial load.
	Timeout time.Duration
}

// BreakerSource guards a Source with a circuit breaker so a broken export
// is not re-read on every scheduled run. While the circuit is open Load
// fails fast with gobreaker.ErrOpenState.
type BreakerSource struct {
	source Source
	cb     *gobreaker.CircuitBreaker[*models.TransactionTable]
	name   string
}

// NewBreakerSource wraps source.
func NewBreakerSource(source Source, cfg BreakerConfig) *BreakerSource {
	if cfg.Failures == 0 {
		cfg.Failures = 3
	}
	name := "source"
	metrics.RecordBreakerState(name, stateToInt(gobreaker.StateClosed))

	cb := gobreaker.NewCircuitBreaker[*models.TransactionTable](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state transition")
			metrics.RecordBreakerState(name, stateToInt(to))
		},
	})

	return &BreakerSource{source: source, cb: cb, name: name}
}

// Name returns the wrapped source's name.
func (b *BreakerSource) Name() string {
	return b.source.Name()
}

// State returns the breaker state.
func (b *BreakerSource) State() gobreaker.State {
	return b.cb.State()
}

// Load loads through the breaker. Context cancellation is not counted as a
// source failure.
func (b *BreakerSource) Load(ctx context.Context) (*models.TransactionTable, error) {
	var cancelled bool
	table, err := b.cb.Execute(func() (*models.TransactionTable, error) {
		t, err := b.source.Load(ctx)
		if err != nil && ctx.Err() != nil {
			cancelled = true
			return nil, nil
		}
		return t, err
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordBreakerRequest(b.name, "rejected")
		return nil, err
	case err != nil:
		metrics.RecordBreakerRequest(b.name, "failure")
		return nil, err
	case cancelled:
		return nil, ctx.Err()
	}
	metrics.RecordBreakerRequest(b.name, "success")
	return table, nil
}

// stateToInt maps breaker states to the gauge encoding: 0 closed,
// 1 half-open, 2 open.
func stateToInt(s gobreaker.State) int {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return -1
}
