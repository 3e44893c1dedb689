// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package features

import (
	"time"

	"github.com/tomtom215/roastery/internal/models"
)

// GrowthRow is one input record augmented with its lagged revenue growth.
// Index is the record's position in the input table.
type GrowthRow struct {
	Index         int
	Group         string
	TransactionID string
	Timestamp     time.Time
	Revenue       float64
	Lag           float64
	HasLag        bool
	Growth        float64
}

// ComputeRevenueGrowth sorts records by time within each group, lags revenue
// by window periods and derives growth = (current - lag) / lag. Growth is 0
// when no prior period exists or when the lagged revenue is 0.
//
// Rows are returned in (group, timestamp, transaction id) order; Index
// recovers the input order.
func ComputeRevenueGrowth(table *models.TransactionTable, groupKey models.Field, window int) ([]GrowthRow, error) {
	const op = "compute_revenue_growth"
	if err := requireKey(op, table, groupKey); err != nil {
		return nil, err
	}
	if !table.Columns.Has(models.FieldTimestamp) {
		return nil, missingKey(op, models.FieldTimestamp)
	}
	if window < 1 {
		return nil, invalidParam(op, "window", "must be at least 1")
	}

	order, groups := groupedOrder(table.Records, groupKey)
	rows := make([]GrowthRow, 0, len(order))

	groupStart := 0
	for pos, idx := range order {
		if pos > 0 && groups[idx] != groups[order[pos-1]] {
			groupStart = pos
		}
		rec := &table.Records[idx]
		row := GrowthRow{
			Index:         idx,
			Group:         groups[idx],
			TransactionID: rec.TransactionID,
			Timestamp:     rec.Timestamp,
			Revenue:       rec.Revenue,
		}
		if pos-window >= groupStart {
			row.Lag = table.Records[order[pos-window]].Revenue
			row.HasLag = true
			row.Growth = growthRatio(row.Revenue, row.Lag)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func growthRatio(current, lag float64) float64 {
	if lag == 0 {
		return 0
	}
	return (current - lag) / lag
}
