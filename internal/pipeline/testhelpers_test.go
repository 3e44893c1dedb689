// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/roastery/internal/config"
	"github.com/tomtom215/roastery/internal/events"
	"github.com/tomtom215/roastery/internal/models"
)

var (
	testProducts   = []string{"espresso", "latte", "croissant", "muffin", "tea"}
	testStores     = []string{"astoria", "hells_kitchen", "lower_manhattan"}
	testCategories = map[string]string{
		"espresso":  "coffee",
		"latte":     "coffee",
		"croissant": "bakery",
		"muffin":    "bakery",
		"tea":       "tea",
	}
)

// testTable has 14 days of two-line baskets across three stores.
func testTable(withLabels bool) *models.TransactionTable {
	var recs []models.Transaction
	for d := 0; d < 14; d++ {
		for b, store := range testStores {
			txid := fmt.Sprintf("t%02d-%d", d, b)
			ts := time.Date(2024, 3, 1+d, 8+b, 0, 0, 0, time.UTC)
			for line := 0; line < 2; line++ {
				p := testProducts[(d+b+line)%len(testProducts)]
				rec := models.Transaction{
					TransactionID:   txid,
					ProductID:       p,
					ProductCategory: testCategories[p],
					StoreLocation:   store,
					Timestamp:       ts.Add(time.Duration(line) * time.Minute),
					Quantity:        float64(1 + b),
					UnitPrice:       3.5 - float64(line),
				}
				if withLabels {
					rec.ChurnFlag = (d + b) % 2
				}
				recs = append(recs, rec)
			}
		}
	}

	cols := slices.Concat(models.RequiredFields, []models.Field{models.FieldProductCategory})
	if withLabels {
		cols = append(cols, models.FieldChurnFlag)
	}
	return models.NewTransactionTable(models.NewColumnSet(cols...), recs)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Source.Path = "memory"
	cfg.Artifacts.Dir = t.TempDir()
	cfg.Evaluate.HoldoutFraction = 0
	cfg.Forecast.Horizon = 7
	cfg.Pipeline.Timeout = time.Minute
	cfg.Churn.Forest.Trees = 5
	cfg.Churn.Tune.Trees = []int{5}
	cfg.Churn.Tune.MaxDepth = []int{2, 4}
	cfg.Churn.Tune.MinSplit = []int{2}
	return cfg
}

func newTestOrchestrator(t *testing.T, cfg *config.Config, src Source, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := New(cfg, src, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o
}

func staticSource(withLabels bool) *StaticSource {
	return &StaticSource{Label: "test", Table: testTable(withLabels)}
}

type failingClassifier struct{}

var errFitFailed = errors.New("fit exploded")

func (failingClassifier) Name() string { return "broken" }

func (failingClassifier) Fit(context.Context, [][]float64, []int) error { return errFitFailed }

func (failingClassifier) Predict([][]float64) ([]int, error) { return nil, errFitFailed }

func (failingClassifier) PredictScore([][]float64) ([]float64, error) { return nil, errFitFailed }

type panickingForecaster struct{}

func (panickingForecaster) Name() string { return "panicky" }

func (panickingForecaster) Fit(context.Context, []models.SeriesPoint) error {
	panic("forecaster blew up")
}

func (panickingForecaster) Forecast(int) ([]models.ForecastPoint, error) { return nil, nil }

type recordingPublisher struct {
	mu     sync.Mutex
	stages []events.StageEvent
	runs   []events.RunEvent
}

func (p *recordingPublisher) PublishStage(_ context.Context, e events.StageEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stages = append(p.stages, e)
	return nil
}

func (p *recordingPublisher) PublishRun(_ context.Context, e events.RunEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs = append(p.runs, e)
	return nil
}

func entryChecksum(t *testing.T, rep *RunReport, name string) string {
	t.Helper()
	for _, e := range rep.Artifacts {
		if e.Name == name {
			return e.Checksum
		}
	}
	t.Fatalf("artifact %s not in report", name)
	return ""
}
