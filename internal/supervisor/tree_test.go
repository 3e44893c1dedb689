// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/roastery/internal/logging"
)

// blockingService runs until its context is cancelled.
type blockingService struct {
	name    string
	started atomic.Bool
}

func (s *blockingService) Serve(ctx context.Context) error {
	s.started.Store(true)
	<-ctx.Done()
	return ctx.Err()
}

func (s *blockingService) String() string { return s.name }

func testLogger() *slog.Logger {
	return logging.NewSlogLogger("supervisor-test")
}

func TestNewSupervisorTree_Defaults(t *testing.T) {
	t.Parallel()

	tree, err := NewSupervisorTree(testLogger(), TreeConfig{})
	if err != nil {
		t.Fatalf("NewSupervisorTree() error = %v", err)
	}
	want := DefaultTreeConfig()
	if tree.config != want {
		t.Errorf("config = %+v, want %+v", tree.config, want)
	}
	if tree.root == nil || tree.pipeline == nil || tree.api == nil {
		t.Error("supervisor layers not created")
	}
}

func TestNewSupervisorTree_NilLogger(t *testing.T) {
	t.Parallel()

	tree, err := NewSupervisorTree(nil, DefaultTreeConfig())
	if err != nil {
		t.Fatalf("NewSupervisorTree(nil) error = %v", err)
	}
	if tree.logger == nil {
		t.Error("logger = nil, want slog.Default()")
	}
}

func TestSupervisorTree_ServeAndStop(t *testing.T) {
	t.Parallel()

	tree, err := NewSupervisorTree(testLogger(), TreeConfig{ShutdownTimeout: time.Second})
	if err != nil {
		t.Fatalf("NewSupervisorTree() error = %v", err)
	}

	pipelineSvc := &blockingService{name: "pipeline"}
	apiSvc := &blockingService{name: "api"}
	tree.AddPipelineService(pipelineSvc)
	tree.AddAPIService(apiSvc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- tree.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !(pipelineSvc.started.Load() && apiSvc.started.Load()) {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("services did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want nil or context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not stop")
	}
}
