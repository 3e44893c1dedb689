// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package features

import (
	"time"

	"github.com/tomtom215/roastery/internal/models"
)

// CalendarRow holds the calendar fields of one record. DayOfWeek counts from
// Monday = 0 to Sunday = 6.
type CalendarRow struct {
	DayOfWeek int
	Month     int
	Day       int
	IsWeekend bool
}

// AddCalendarFeatures derives calendar fields from each record's timestamp.
// The result is aligned with the input records.
func AddCalendarFeatures(table *models.TransactionTable, timeKey models.Field) ([]CalendarRow, error) {
	const op = "add_calendar_features"
	if timeKey != models.FieldTimestamp {
		return nil, invalidParam(op, string(timeKey), "not a timestamp column")
	}
	if !table.Columns.Has(timeKey) {
		return nil, &MissingColumnError{Op: op, Field: timeKey}
	}

	rows := make([]CalendarRow, len(table.Records))
	for i := range table.Records {
		rows[i] = calendarOf(table.Records[i].Timestamp)
	}
	return rows, nil
}

func calendarOf(ts time.Time) CalendarRow {
	wd := ts.Weekday()
	return CalendarRow{
		DayOfWeek: (int(wd) + 6) % 7,
		Month:     int(ts.Month()),
		Day:       ts.Day(),
		IsWeekend: wd == time.Saturday || wd == time.Sunday,
	}
}
