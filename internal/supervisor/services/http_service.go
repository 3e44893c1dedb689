// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPServer is the part of *http.Server the API service drives.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// defaultGrace bounds shutdown when serve mode passes no timeout.
const defaultGrace = 10 * time.Second

// APIService serves the artifact API until its context ends, then drains
// in-flight requests for at most grace.
type APIService struct {
	srv   HTTPServer
	grace time.Duration
}

// NewAPIService wraps srv for the API layer of the supervisor tree.
func NewAPIService(srv HTTPServer, grace time.Duration) *APIService {
	if grace <= 0 {
		grace = defaultGrace
	}
	return &APIService{srv: srv, grace: grace}
}

// Serve implements suture.Service. A listen failure is returned as is so
// the API layer restarts the service with backoff.
func (s *APIService) Serve(ctx context.Context) error {
	served := make(chan error, 1)
	go func() { served <- s.srv.ListenAndServe() }()

	select {
	case err := <-served:
		return serveErr(err)
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.grace)
	defer cancel()
	if err := s.srv.Shutdown(stopCtx); err != nil {
		return fmt.Errorf("stop api: %w", err)
	}
	if err := serveErr(<-served); err != nil {
		return err
	}
	return ctx.Err()
}

func serveErr(err error) error {
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("serve api: %w", err)
}

func (s *APIService) String() string { return "api" }
