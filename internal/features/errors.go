// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package features

import (
	"errors"
	"fmt"

	"github.com/tomtom215/roastery/internal/models"
)

var (
	// ErrMissingKey is wrapped by every *ConfigError caused by an absent key column.
	ErrMissingKey = errors.New("required key column missing")

	// ErrInvalidParameter is wrapped by every *ConfigError caused by a bad argument.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrColumnUnavailable is wrapped by every *MissingColumnError.
	ErrColumnUnavailable = errors.New("optional column unavailable")
)

// ConfigError is a fatal configuration error naming the offending field.
type ConfigError struct {
	Op     string
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func missingKey(op string, f models.Field) error {
	return &ConfigError{Op: op, Field: string(f), Reason: "column not present in input", Err: ErrMissingKey}
}

func invalidParam(op, name, reason string) error {
	return &ConfigError{Op: op, Field: name, Reason: reason, Err: ErrInvalidParameter}
}

// MissingColumnError reports that a feature cannot be computed because an
// optional column is absent.
type MissingColumnError struct {
	Op    string
	Field models.Field
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: column %q not present in input", e.Op, e.Field)
}

func (e *MissingColumnError) Unwrap() error { return ErrColumnUnavailable }

// requireKey checks that f is a key column present in the table.
func requireKey(op string, table *models.TransactionTable, f models.Field) error {
	if !table.Columns.Has(f) {
		return missingKey(op, f)
	}
	var sample models.Transaction
	if _, ok := sample.Key(f); !ok {
		return invalidParam(op, string(f), "not a key column")
	}
	return nil
}

// requireValue checks that f is a numeric column present in the table.
func requireValue(op string, table *models.TransactionTable, f models.Field) error {
	var sample models.Transaction
	if _, ok := sample.Value(f); !ok {
		return invalidParam(op, string(f), "not a numeric column")
	}
	if !table.Columns.Has(f) {
		return &MissingColumnError{Op: op, Field: f}
	}
	return nil
}
