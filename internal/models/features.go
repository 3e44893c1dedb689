// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package models

import (
	"slices"
	"time"
)

// FeatureRow is one transaction line of the feature table. Values is aligned
// with FeatureTable.Columns.
type FeatureRow struct {
	TransactionID string
	ProductID     string
	StoreLocation string
	Timestamp     time.Time
	Label         int
	Values        []float64
}

// FeatureTable is the numeric feature matrix built from a transaction table.
type FeatureTable struct {
	Columns  []string
	Rows     []FeatureRow
	HasLabel bool
}

// ColumnIndex returns the position of a named column, or -1.
func (ft *FeatureTable) ColumnIndex(name string) int {
	return slices.Index(ft.Columns, name)
}

// Column returns a copy of the named column.
func (ft *FeatureTable) Column(name string) ([]float64, bool) {
	idx := ft.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]float64, len(ft.Rows))
	for i := range ft.Rows {
		out[i] = ft.Rows[i].Values[idx]
	}
	return out, true
}

// Matrix returns the row-major numeric matrix of all columns.
func (ft *FeatureTable) Matrix() [][]float64 {
	out := make([][]float64, len(ft.Rows))
	for i := range ft.Rows {
		out[i] = slices.Clone(ft.Rows[i].Values)
	}
	return out
}

// Labels returns the churn label of every row.
func (ft *FeatureTable) Labels() []int {
	out := make([]int, len(ft.Rows))
	for i := range ft.Rows {
		out[i] = ft.Rows[i].Label
	}
	return out
}
