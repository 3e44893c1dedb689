// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRunInProgress is returned when Run is called while another run of
	// the same orchestrator is active.
	ErrRunInProgress = errors.New("a pipeline run is already in progress")

	// ErrNoLabels is returned by the churn branch when the source has no
	// churn_flag column.
	ErrNoLabels = errors.New("churn labels unavailable")
)

// StageFailure records why a stage failed.
type StageFailure struct {
	Stage Stage
	Err   error
}

func (f StageFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Stage, f.Err)
}

func (f StageFailure) Unwrap() error { return f.Err }

// PanicError wraps a value recovered from a panicking stage.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// RunError aggregates the failures of one run.
type RunError struct {
	RunID    string
	Failures []StageFailure
}

func (e *RunError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("run %s: %d stage(s) failed: %s", e.RunID, len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes every stage error to errors.Is and errors.As.
func (e *RunError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// Failed reports whether stage is among the failures.
func (e *RunError) Failed(stage Stage) bool {
	for _, f := range e.Failures {
		if f.Stage == stage {
			return true
		}
	}
	return false
}
