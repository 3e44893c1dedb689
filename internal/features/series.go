// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package features

import (
	"time"

	"github.com/tomtom215/roastery/internal/models"
)

// DailyRevenue sums revenue per UTC calendar day. The series is contiguous
// from the first to the last day; days without sales are 0 and not Observed.
func DailyRevenue(table *models.TransactionTable) ([]models.SeriesPoint, error) {
	const op = "daily_revenue"
	if table == nil {
		return nil, invalidParam(op, "records", "table is nil")
	}
	if !table.Columns.Has(models.FieldTimestamp) {
		return nil, missingKey(op, models.FieldTimestamp)
	}
	if table.Len() == 0 {
		return nil, nil
	}

	sums := make(map[time.Time]float64)
	var first, last time.Time
	for i := range table.Records {
		r := &table.Records[i]
		day := truncateDay(r.Timestamp)
		sums[day] += r.Revenue
		if first.IsZero() || day.Before(first) {
			first = day
		}
		if day.After(last) {
			last = day
		}
	}

	days := int(last.Sub(first)/(24*time.Hour)) + 1
	out := make([]models.SeriesPoint, days)
	for i := range out {
		day := first.AddDate(0, 0, i)
		v, ok := sums[day]
		out[i] = models.SeriesPoint{Timestamp: day, Value: v, Observed: ok}
	}
	return out, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
