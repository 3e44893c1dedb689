// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package database

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tomtom215/roastery/internal/logging"
	"github.com/tomtom215/roastery/internal/models"
)

var (
	// ErrUnknownFormat is returned when the source format cannot be
	// determined from the configuration or the file extension.
	ErrUnknownFormat = errors.New("unknown source format")

	// ErrClosed is returned when loading through a closed DB.
	ErrClosed = errors.New("database is closed")
)

// MissingColumnsError names required columns the source lacks.
type MissingColumnsError struct {
	Source  string
	Missing []models.Field
}

func (e *MissingColumnsError) Error() string {
	names := make([]string, len(e.Missing))
	for i, f := range e.Missing {
		names[i] = string(f)
	}
	return fmt.Sprintf("source %s is missing required columns: %s", e.Source, strings.Join(names, ", "))
}

// closeWithLog closes a resource and logs any error.
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}

// closeQuietly closes a resource in error paths where the close error is
// not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close() //nolint:errcheck // best-effort cleanup
	}
}
