// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package artifact

import (
	"errors"
	"fmt"
)

var (
	// ErrChecksumMismatch is returned when a file's content no longer
	// matches the checksum recorded for it.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrNonFinite is returned when a table cell is NaN or infinite.
	ErrNonFinite = errors.New("non-finite value")

	// ErrInvalidName is returned for artifact names that are empty or
	// contain path separators.
	ErrInvalidName = errors.New("invalid artifact name")

	// ErrNotFound is returned when an artifact, snapshot or ledger record
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrLedgerClosed is returned by operations on a closed ledger.
	ErrLedgerClosed = errors.New("ledger is closed")
)

// CellError describes a cell that could not be formatted.
type CellError struct {
	Table  string
	Row    int
	Column string
	Err    error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("artifact %s: row %d column %q: %v", e.Table, e.Row, e.Column, e.Err)
}

func (e *CellError) Unwrap() error {
	return e.Err
}
