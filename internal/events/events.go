// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Topics.
const (
	TopicStage = "roastery.stage"
	TopicRun   = "roastery.run"
)

// Stage and run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
	StatusPartial   = "partial"
)

// ErrInvalidEvent is returned when an event is missing required fields.
var ErrInvalidEvent = errors.New("invalid event")

// StageEvent reports the outcome of one stage.
type StageEvent struct {
	EventID    string        `json:"event_id"`
	RunID      string        `json:"run_id"`
	Stage      string        `json:"stage"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// Validate checks required fields.
func (e *StageEvent) Validate() error {
	switch {
	case e.RunID == "":
		return fmt.Errorf("%w: run_id is required", ErrInvalidEvent)
	case e.Stage == "":
		return fmt.Errorf("%w: stage is required", ErrInvalidEvent)
	case e.Status == "":
		return fmt.Errorf("%w: status is required", ErrInvalidEvent)
	}
	return nil
}

// RunEvent reports a finished run.
type RunEvent struct {
	EventID    string            `json:"event_id"`
	RunID      string            `json:"run_id"`
	Status     string            `json:"status"`
	Completed  []string          `json:"completed"`
	Failed     map[string]string `json:"failed,omitempty"`
	Reused     []string          `json:"reused,omitempty"`
	FinishedAt time.Time         `json:"finished_at"`
}

// Validate checks required fields.
func (e *RunEvent) Validate() error {
	switch {
	case e.RunID == "":
		return fmt.Errorf("%w: run_id is required", ErrInvalidEvent)
	case e.Status == "":
		return fmt.Errorf("%w: status is required", ErrInvalidEvent)
	}
	return nil
}

type validatable interface {
	Validate() error
}

// encode validates v, fills a missing event ID and returns the JSON payload.
func encode(v validatable, id *string) ([]byte, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if *id == "" {
		*id = uuid.New().String()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// DecodeStage parses a StageEvent payload.
func DecodeStage(data []byte) (*StageEvent, error) {
	var e StageEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal stage event: %w", err)
	}
	return &e, nil
}

// DecodeRun parses a RunEvent payload.
func DecodeRun(data []byte) (*RunEvent, error) {
	var e RunEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal run event: %w", err)
	}
	return &e, nil
}
