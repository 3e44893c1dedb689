// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package services

import (
	"context"
	"errors"
)

// EventHandler is a blocking event consumer such as *events.Handler.
type EventHandler interface {
	Run(ctx context.Context) error
}

// EventHandlerService runs an EventHandler under supervision.
type EventHandlerService struct {
	handler EventHandler
	name    string
}

// NewEventHandlerService wraps handler.
func NewEventHandlerService(name string, handler EventHandler) *EventHandlerService {
	return &EventHandlerService{handler: handler, name: name}
}

// Serve implements suture.Service. A handler that returns while ctx is
// still live is reported as an error so the supervisor restarts it.
func (s *EventHandlerService) Serve(ctx context.Context) error {
	err := s.handler.Run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil {
		return errors.New(s.name + ": handler stopped unexpectedly")
	}
	return err
}

// String implements fmt.Stringer.
func (s *EventHandlerService) String() string {
	return s.name
}
