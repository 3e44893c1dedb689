// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/roastery/internal/models"
)

func TestBreakerSource_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	errDown := errors.New("export missing")
	var calls atomic.Int32
	src := SourceFunc(func(context.Context) (*models.TransactionTable, error) {
		calls.Add(1)
		return nil, errDown
	})
	b := NewBreakerSource(src, BreakerConfig{Failures: 2, Timeout: time.Hour})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := b.Load(ctx); !errors.Is(err, errDown) {
			t.Fatalf("Load() #%d error = %v, want %v", i, err, errDown)
		}
	}
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("State() = %v, want open", b.State())
	}
	if _, err := b.Load(ctx); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Load() with open circuit error = %v, want ErrOpenState", err)
	}
	if calls.Load() != 2 {
		t.Errorf("source called %d times, want 2", calls.Load())
	}
}

func TestBreakerSource_CancellationDoesNotTrip(t *testing.T) {
	t.Parallel()

	src := SourceFunc(func(ctx context.Context) (*models.TransactionTable, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	b := NewBreakerSource(src, BreakerConfig{Failures: 1, Timeout: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Load(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Load() error = %v, want context.Canceled", err)
	}
	if b.State() != gobreaker.StateClosed {
		t.Errorf("State() = %v, want closed", b.State())
	}
}

func TestBreakerSource_PassesThrough(t *testing.T) {
	t.Parallel()

	table := testTable(true)
	b := NewBreakerSource(&StaticSource{Label: "csv", Table: table}, BreakerConfig{})
	got, err := b.Load(context.Background())
	if err != nil || got != table {
		t.Fatalf("Load() = %v, %v", got, err)
	}
	if b.Name() != "csv" {
		t.Errorf("Name() = %q", b.Name())
	}
}
