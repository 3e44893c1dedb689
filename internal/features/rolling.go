// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package features

import (
	"github.com/tomtom215/roastery/internal/models"
)

// RollingRow is the trailing mean ending at one record. Periods is the number
// of observations in the window; Ready is false when Periods < minPeriods, in
// which case Mean is 0.
type RollingRow struct {
	Index   int
	Group   string
	Mean    float64
	Periods int
	Ready   bool
}

// RollingMean computes a per-group trailing mean of valueKey over the last
// window records (by timestamp). Partial windows at the start of a group
// still produce a value once at least minPeriods observations are available.
func RollingMean(table *models.TransactionTable, groupKey, valueKey models.Field, window, minPeriods int) ([]RollingRow, error) {
	const op = "rolling_mean"
	if err := requireKey(op, table, groupKey); err != nil {
		return nil, err
	}
	if !table.Columns.Has(models.FieldTimestamp) {
		return nil, missingKey(op, models.FieldTimestamp)
	}
	if err := requireValue(op, table, valueKey); err != nil {
		return nil, err
	}
	if window < 1 {
		return nil, invalidParam(op, "window", "must be at least 1")
	}
	if minPeriods < 1 || minPeriods > window {
		return nil, invalidParam(op, "min_periods", "must be between 1 and window")
	}

	order, groups := groupedOrder(table.Records, groupKey)
	rows := make([]RollingRow, 0, len(order))

	groupStart := 0
	for pos, idx := range order {
		if pos > 0 && groups[idx] != groups[order[pos-1]] {
			groupStart = pos
		}

		periods := min(pos-groupStart+1, window)
		row := RollingRow{Index: idx, Group: groups[idx], Periods: periods}
		if periods >= minPeriods {
			row.Ready = true
			row.Mean = windowMean(table.Records, order, pos, periods, valueKey)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// windowMean sums the window ending at order[end] from scratch.
func windowMean(records []models.Transaction, order []int, end, periods int, valueKey models.Field) float64 {
	var s float64
	for k := end - periods + 1; k <= end; k++ {
		v, _ := records[order[k]].Value(valueKey)
		s += v
	}
	return s / float64(periods)
}
