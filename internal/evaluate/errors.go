// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package evaluate

import (
	"errors"
	"fmt"
)

var (
	// ErrLengthMismatch indicates paired series of different lengths.
	ErrLengthMismatch = errors.New("series length mismatch")

	// ErrEmptySeries indicates a series with no observations.
	ErrEmptySeries = errors.New("empty series")

	// ErrNonBinaryLabel indicates a label other than 0 or 1.
	ErrNonBinaryLabel = errors.New("label is not binary")

	// ErrNonFinite indicates a NaN or infinite input value.
	ErrNonFinite = errors.New("non-finite value")

	// ErrInvalidK indicates a cutoff below 1.
	ErrInvalidK = errors.New("k must be at least 1")
)

// LengthError names the two series whose lengths differ.
type LengthError struct {
	Op       string
	TrueLen  int
	PredLen  int
	PredName string
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("%s: y_true has %d values, %s has %d", e.Op, e.TrueLen, e.PredName, e.PredLen)
}

func (e *LengthError) Unwrap() error { return ErrLengthMismatch }
