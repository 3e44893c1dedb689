// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package features

import (
	"testing"
	"time"

	"github.com/tomtom215/roastery/internal/models"
)

func TestCalendarOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ts      time.Time
		dow     int
		weekend bool
	}{
		{"monday", time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC), 0, false},
		{"friday", time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC), 4, false},
		{"saturday", time.Date(2024, 1, 6, 8, 0, 0, 0, time.UTC), 5, true},
		{"sunday", time.Date(2024, 1, 7, 8, 0, 0, 0, time.UTC), 6, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := calendarOf(tt.ts)
			if got.DayOfWeek != tt.dow || got.IsWeekend != tt.weekend {
				t.Errorf("calendarOf(%s) = %+v", tt.ts.Format(time.DateOnly), got)
			}
			if got.Month != 1 || got.Day != tt.ts.Day() {
				t.Errorf("month/day = %d/%d", got.Month, got.Day)
			}
		})
	}
}

func TestAddCalendarFeatures(t *testing.T) {
	t.Parallel()

	table := sampleTable()
	rows, err := AddCalendarFeatures(table, models.FieldTimestamp)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != table.Len() {
		t.Fatalf("got %d rows, want %d", len(rows), table.Len())
	}
	// t4 is 2024-01-06, a Saturday.
	if !rows[3].IsWeekend || rows[3].DayOfWeek != 5 {
		t.Errorf("row 3 = %+v, want Saturday", rows[3])
	}

	if _, err := AddCalendarFeatures(table, models.FieldStoreLocation); err == nil {
		t.Error("expected an error for a non-timestamp column")
	}
}
