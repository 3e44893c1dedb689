// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package artifact

import (
	"context"
	"errors"
	"testing"
	"time"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := OpenLedger(LedgerConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("OpenLedger() error = %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLedger_StageRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := openTestLedger(t)

	if _, err := l.Stage(ctx, "FEATURES_BUILT"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Stage() before record error = %v, want ErrNotFound", err)
	}
	unchanged, err := l.Unchanged(ctx, "FEATURES_BUILT", "abc")
	if err != nil || unchanged {
		t.Errorf("Unchanged() on empty ledger = %v, %v", unchanged, err)
	}

	rec := StageRecord{
		Stage:       "FEATURES_BUILT",
		Fingerprint: "abc",
		RunID:       "run-1",
		Artifacts:   []Entry{{Name: "features.csv", Rows: 3, Checksum: "ff"}},
		CompletedAt: time.Now().UTC(),
	}
	if err := l.RecordStage(ctx, rec); err != nil {
		t.Fatalf("RecordStage() error = %v", err)
	}

	got, err := l.Stage(ctx, "FEATURES_BUILT")
	if err != nil {
		t.Fatal(err)
	}
	if got.RunID != "run-1" || len(got.Artifacts) != 1 || got.Artifacts[0].Name != "features.csv" {
		t.Errorf("Stage() = %+v", got)
	}

	tests := []struct {
		fingerprint string
		want        bool
	}{
		{"abc", true},
		{"abd", false},
	}
	for _, tt := range tests {
		got, err := l.Unchanged(ctx, "FEATURES_BUILT", tt.fingerprint)
		if err != nil || got != tt.want {
			t.Errorf("Unchanged(%q) = %v, %v; want %v", tt.fingerprint, got, err, tt.want)
		}
	}

	if err := l.RecordStage(ctx, StageRecord{}); err == nil {
		t.Error("RecordStage() without a stage name should fail")
	}
}

func TestLedger_Runs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := openTestLedger(t)

	if _, err := l.LatestRun(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("LatestRun() on empty ledger error = %v, want ErrNotFound", err)
	}

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3"} {
		run := RunRecord{
			RunID:     id,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			Status:    "succeeded",
			Completed: []string{"RAW_LOADED"},
			Report:    map[string]float64{"forecast_rmse": float64(i)},
		}
		if err := l.RecordRun(ctx, run); err != nil {
			t.Fatalf("RecordRun(%s) error = %v", id, err)
		}
	}

	latest, err := l.LatestRun(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if latest.RunID != "r3" || latest.Report["forecast_rmse"] != 2 {
		t.Errorf("LatestRun() = %+v", latest)
	}

	runs, err := l.Runs(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].RunID != "r3" || runs[1].RunID != "r2" {
		t.Errorf("Runs(2) = %+v", runs)
	}
	all, err := l.Runs(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Errorf("Runs(0) = %d runs, %v", len(all), err)
	}
}

func TestLedger_Reopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	l, err := OpenLedger(LedgerConfig{Path: dir, SyncWrites: true})
	if err != nil {
		t.Fatal(err)
	}
	if err := l.RecordStage(ctx, StageRecord{Stage: "RECS_BUILT", Fingerprint: "fp"}); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if err := l.RecordStage(ctx, StageRecord{Stage: "RECS_BUILT"}); !errors.Is(err, ErrLedgerClosed) {
		t.Errorf("RecordStage() after Close error = %v, want ErrLedgerClosed", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	reopened, err := OpenLedger(LedgerConfig{Path: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if ok, err := reopened.Unchanged(ctx, "RECS_BUILT", "fp"); err != nil || !ok {
		t.Errorf("Unchanged() after reopen = %v, %v", ok, err)
	}
}

func TestLedger_InMemory(t *testing.T) {
	t.Parallel()

	l, err := OpenLedger(LedgerConfig{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	if err := l.RunGC(); err != nil {
		t.Errorf("RunGC() error = %v", err)
	}
	if _, err := OpenLedger(LedgerConfig{}); err == nil {
		t.Error("OpenLedger() without a path should fail")
	}
}
