// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package features

import (
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/roastery/internal/models"
)

func TestDailyRevenue(t *testing.T) {
	t.Parallel()

	series, err := DailyRevenue(sampleTable())
	if err != nil {
		t.Fatalf("DailyRevenue() error = %v", err)
	}

	want := []float64{6, 5, 3, 0, 0, 10, 0, 10}
	observed := []bool{true, true, true, false, false, true, false, true}
	if len(series) != len(want) {
		t.Fatalf("len = %d, want %d", len(series), len(want))
	}
	for i, p := range series {
		wantDay := time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC)
		if !p.Timestamp.Equal(wantDay) {
			t.Errorf("series[%d].Timestamp = %v, want %v", i, p.Timestamp, wantDay)
		}
		if p.Value != want[i] {
			t.Errorf("series[%d].Value = %v, want %v", i, p.Value, want[i])
		}
		if p.Observed != observed[i] {
			t.Errorf("series[%d].Observed = %v, want %v", i, p.Observed, observed[i])
		}
	}
}

func TestDailyRevenue_Edges(t *testing.T) {
	t.Parallel()

	empty := models.NewTransactionTable(allColumns(), nil)
	series, err := DailyRevenue(empty)
	if err != nil || len(series) != 0 {
		t.Errorf("DailyRevenue(empty) = %v, %v", series, err)
	}

	if _, err := DailyRevenue(nil); err == nil {
		t.Error("DailyRevenue(nil) should fail")
	}

	noTime := models.NewTransactionTable(models.NewColumnSet(models.FieldTransactionID), nil)
	if _, err := DailyRevenue(noTime); !errors.Is(err, ErrMissingKey) {
		t.Errorf("DailyRevenue(no timestamp) error = %v, want ErrMissingKey", err)
	}
}
