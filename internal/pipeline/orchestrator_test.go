// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/roastery/internal/artifact"
	"github.com/tomtom215/roastery/internal/features"
	"github.com/tomtom215/roastery/internal/modeling"
	"github.com/tomtom215/roastery/internal/models"
)

func TestOrchestrator_RunAllStages(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	o := newTestOrchestrator(t, cfg, staticSource(true))

	rep, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rep.Status() != RunSucceeded {
		t.Errorf("Status() = %q, want %q", rep.Status(), RunSucceeded)
	}
	if !slices.Equal(rep.Completed, Stages) {
		t.Errorf("Completed = %v, want %v", rep.Completed, Stages)
	}
	if rep.RunID == "" || rep.Source != "test" {
		t.Errorf("RunID = %q, Source = %q", rep.RunID, rep.Source)
	}

	for _, name := range []string{
		ArtifactFeatures,
		ChurnArtifact(modeling.ModelLogisticRegression),
		ChurnArtifact(modeling.ModelRandomForest),
		HyperparamsArtifact(modeling.ModelRandomForest),
		ArtifactForecast,
		ArtifactRecommendations,
		ArtifactMetrics,
		artifact.ManifestName,
	} {
		if _, err := os.Stat(filepath.Join(cfg.Artifacts.Dir, name)); err != nil {
			t.Errorf("artifact %s: %v", name, err)
		}
	}

	for _, key := range []string{
		"churn_lr_accuracy", "churn_lr_f1", "churn_rf_accuracy",
		"forecast_rmse", "forecast_mae", "forecast_mape",
		"recs_coverage",
	} {
		if _, ok := rep.Report[key]; !ok {
			t.Errorf("report missing %s", key)
		}
	}
	if _, ok := rep.Report["recs_precision_at_k"]; ok {
		t.Error("precision reported without a holdout")
	}

	m, err := o.Store().ReadManifest(context.Background())
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	if m.RunID != rep.RunID {
		t.Errorf("manifest RunID = %q, want %q", m.RunID, rep.RunID)
	}
	if !slices.Contains(m.Completed, StageReportExported.String()) {
		t.Errorf("manifest Completed = %v", m.Completed)
	}
	if err := o.Store().VerifyManifest(context.Background(), m); err != nil {
		t.Errorf("VerifyManifest() error = %v", err)
	}

	metricsTable, err := o.Store().ReadTable(context.Background(), ArtifactMetrics)
	if err != nil {
		t.Fatalf("ReadTable(metrics) error = %v", err)
	}
	parsed, err := ParseReport(metricsTable)
	if err != nil {
		t.Fatalf("ParseReport() error = %v", err)
	}
	if len(parsed) != len(rep.Report) {
		t.Errorf("metrics.csv has %d metrics, report has %d", len(parsed), len(rep.Report))
	}

	forecast, err := o.Store().ReadTable(context.Background(), ArtifactForecast)
	if err != nil {
		t.Fatalf("ReadTable(forecast) error = %v", err)
	}
	if forecast.Len() != 14+7 {
		t.Errorf("forecast rows = %d, want 21", forecast.Len())
	}
}

func TestOrchestrator_HoldoutEvaluatesRecommendations(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Evaluate.HoldoutFraction = 0.3
	cfg.Churn.Enabled = false
	cfg.Forecast.Enabled = false
	o := newTestOrchestrator(t, cfg, staticSource(true))

	rep, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, key := range []string{"recs_precision_at_k", "recs_recall_at_k", "recs_evaluated_items", "recs_coverage"} {
		if _, ok := rep.Report[key]; !ok {
			t.Errorf("report missing %s", key)
		}
	}
	if !slices.Equal(rep.Skipped, []Stage{StageChurnTrained, StageForecastBuilt}) {
		t.Errorf("Skipped = %v", rep.Skipped)
	}
	if rep.Status() != RunSucceeded {
		t.Errorf("Status() = %q", rep.Status())
	}
}

func TestOrchestrator_BranchFailuresAreIsolated(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Churn.Models = []string{"lr"}
	o := newTestOrchestrator(t, cfg, staticSource(true),
		WithClassifierFactory(func(string) (modeling.Classifier, error) { return failingClassifier{}, nil }),
		WithForecasterFactory(func() modeling.Forecaster { return panickingForecaster{} }),
	)

	rep, err := o.Run(context.Background())
	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("Run() error = %v, want *RunError", err)
	}
	if len(runErr.Failures) != 2 || !runErr.Failed(StageChurnTrained) || !runErr.Failed(StageForecastBuilt) {
		t.Fatalf("failures = %v", runErr.Failures)
	}
	if !errors.Is(err, errFitFailed) {
		t.Error("RunError does not wrap the classifier error")
	}
	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Error("RunError does not carry the recovered panic")
	}

	if rep.Status() != RunPartial {
		t.Errorf("Status() = %q, want %q", rep.Status(), RunPartial)
	}
	for _, s := range []Stage{StageRawLoaded, StageFeaturesBuilt, StageRecsBuilt, StageEvaluated, StageReportExported} {
		if !slices.Contains(rep.Completed, s) {
			t.Errorf("%s not completed", s)
		}
	}
	if _, ok := rep.Report["recs_coverage"]; !ok {
		t.Error("sibling branch metrics missing")
	}
	for key := range rep.Report {
		if strings.HasPrefix(key, "churn") || strings.HasPrefix(key, "forecast") {
			t.Errorf("failed branch produced metric %s", key)
		}
	}
	if _, err := os.Stat(filepath.Join(cfg.Artifacts.Dir, ArtifactForecast)); !os.IsNotExist(err) {
		t.Errorf("forecast.csv exists after a failed branch: %v", err)
	}

	m, err := o.Store().ReadManifest(context.Background())
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	if _, ok := m.Failed[StageChurnTrained.String()]; !ok {
		t.Errorf("manifest Failed = %v", m.Failed)
	}
}

func TestOrchestrator_SourceFailure(t *testing.T) {
	t.Parallel()

	errDown := errors.New("source offline")
	cfg := testConfig(t)
	o := newTestOrchestrator(t, cfg, SourceFunc(func(context.Context) (*models.TransactionTable, error) {
		return nil, errDown
	}))

	rep, err := o.Run(context.Background())
	if !errors.Is(err, errDown) {
		t.Fatalf("Run() error = %v, want %v", err, errDown)
	}
	if rep.Status() != RunFailed {
		t.Errorf("Status() = %q, want %q", rep.Status(), RunFailed)
	}
	wantSkipped := []Stage{StageFeaturesBuilt, StageChurnTrained, StageForecastBuilt, StageRecsBuilt, StageEvaluated}
	if !slices.Equal(rep.Skipped, wantSkipped) {
		t.Errorf("Skipped = %v, want %v", rep.Skipped, wantSkipped)
	}
	if !slices.Equal(rep.Completed, []Stage{StageReportExported}) {
		t.Errorf("Completed = %v", rep.Completed)
	}
}

func TestOrchestrator_MissingLabelsFailOnlyChurn(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	o := newTestOrchestrator(t, cfg, staticSource(false))

	rep, err := o.Run(context.Background())
	if !errors.Is(err, ErrNoLabels) {
		t.Fatalf("Run() error = %v, want ErrNoLabels", err)
	}
	var cfgErr *features.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != string(models.FieldChurnFlag) {
		t.Errorf("error %v is not a ConfigError naming churn_flag", err)
	}
	if len(rep.Failed) != 1 {
		t.Errorf("Failed = %v", rep.Failed)
	}
}

func TestOrchestrator_Deterministic(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	o := newTestOrchestrator(t, cfg, staticSource(true))

	first, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	second, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if first.RunID == second.RunID {
		t.Error("runs share a run id")
	}

	for _, name := range []string{
		ArtifactFeatures,
		ChurnArtifact(modeling.ModelLogisticRegression),
		ChurnArtifact(modeling.ModelRandomForest),
		ArtifactForecast,
		ArtifactRecommendations,
		ArtifactMetrics,
	} {
		if a, b := entryChecksum(t, first, name), entryChecksum(t, second, name); a != b {
			t.Errorf("%s differs between runs: %s != %s", name, a, b)
		}
	}
	for stage, fp := range first.Fingerprints {
		if second.Fingerprints[stage] != fp {
			t.Errorf("fingerprint of %s changed", stage)
		}
	}
}

func TestOrchestrator_ReusesUnchangedFeatures(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	ledger, err := artifact.OpenLedger(artifact.LedgerConfig{InMemory: true})
	if err != nil {
		t.Fatalf("OpenLedger() error = %v", err)
	}
	t.Cleanup(func() { _ = ledger.Close() })
	snaps, err := artifact.NewSnapshotStore(cfg.SnapshotDir())
	if err != nil {
		t.Fatalf("NewSnapshotStore() error = %v", err)
	}
	o := newTestOrchestrator(t, cfg, staticSource(true), WithLedger(ledger), WithSnapshots(snaps))
	ctx := context.Background()

	first, err := o.Run(ctx)
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if len(first.Reused) != 0 {
		t.Errorf("first run reused %v", first.Reused)
	}

	second, err := o.Run(ctx)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if !slices.Equal(second.Reused, []Stage{StageFeaturesBuilt}) {
		t.Errorf("second run Reused = %v", second.Reused)
	}
	if entryChecksum(t, first, ArtifactMetrics) != entryChecksum(t, second, ArtifactMetrics) {
		t.Error("metrics differ after reusing features")
	}

	latest, err := ledger.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun() error = %v", err)
	}
	if latest.RunID != second.RunID || latest.Status != RunSucceeded {
		t.Errorf("LatestRun() = %+v", latest)
	}

	// A tampered artifact forces a rebuild.
	if err := os.WriteFile(filepath.Join(cfg.Artifacts.Dir, ArtifactFeatures), []byte("x\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	third, err := o.Run(ctx)
	if err != nil {
		t.Fatalf("third Run() error = %v", err)
	}
	if len(third.Reused) != 0 {
		t.Errorf("third run Reused = %v", third.Reused)
	}
	if entryChecksum(t, first, ArtifactFeatures) != entryChecksum(t, third, ArtifactFeatures) {
		t.Error("rebuilt features differ from the original build")
	}
}

func TestOrchestrator_PublishesEvents(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Forecast.Enabled = false
	pub := &recordingPublisher{}
	o := newTestOrchestrator(t, cfg, staticSource(true), WithPublisher(pub))

	rep, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.stages) != len(Stages) {
		t.Errorf("stage events = %d, want %d", len(pub.stages), len(Stages))
	}
	skipped := 0
	for _, e := range pub.stages {
		if e.RunID != rep.RunID {
			t.Errorf("stage event run id = %q", e.RunID)
		}
		if e.Status == "skipped" {
			skipped++
		}
	}
	if skipped != 1 {
		t.Errorf("skipped stage events = %d, want 1", skipped)
	}
	if len(pub.runs) != 1 || pub.runs[0].Status != RunSucceeded {
		t.Errorf("run events = %+v", pub.runs)
	}
}

func TestOrchestrator_RejectsConcurrentRuns(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	table := testTable(true)
	src := SourceFunc(func(ctx context.Context) (*models.TransactionTable, error) {
		close(started)
		<-release
		return table, nil
	})
	cfg := testConfig(t)
	cfg.Churn.Enabled = false
	cfg.Forecast.Enabled = false
	o := newTestOrchestrator(t, cfg, src)

	done := make(chan error, 1)
	go func() {
		_, err := o.Run(context.Background())
		done <- err
	}()

	<-started
	if !o.Running() {
		t.Error("Running() = false during a run")
	}
	if _, err := o.Run(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("concurrent Run() error = %v, want ErrRunInProgress", err)
	}
	close(release)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("first Run() error = %v", err)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("first run did not finish")
	}
	if o.Running() {
		t.Error("Running() = true after the run")
	}
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	if _, err := New(nil, staticSource(true)); err == nil {
		t.Error("New(nil config) should fail")
	}
	if _, err := New(cfg, nil); err == nil {
		t.Error("New(nil source) should fail")
	}

	bad := testConfig(t)
	bad.Recommend.TopK = 0
	if _, err := New(bad, staticSource(true)); err == nil {
		t.Error("New() with invalid recommend config should fail")
	}
}

func TestOrchestrator_ForecastMetricsSkipClosedDays(t *testing.T) {
	t.Parallel()

	table := testTable(true)
	closed := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	kept := table.Records[:0:0]
	for _, r := range table.Records {
		if !r.Timestamp.Truncate(24 * time.Hour).Equal(closed) {
			kept = append(kept, r)
		}
	}
	src := &StaticSource{Label: "test", Table: models.NewTransactionTable(table.Columns, kept)}

	cfg := testConfig(t)
	cfg.Churn.Enabled = false
	o := newTestOrchestrator(t, cfg, src)

	rep, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	mape, ok := rep.Report["forecast_mape"]
	if !ok {
		t.Fatal("report missing forecast_mape")
	}
	if mape < 0 || mape > 1000 {
		t.Errorf("forecast_mape = %v, want a percentage over trading days", mape)
	}
}

func TestObservedPairs(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	series := []models.SeriesPoint{
		{Timestamp: day, Value: 10, Observed: true},
		{Timestamp: day.AddDate(0, 0, 1), Value: 0},
		{Timestamp: day.AddDate(0, 0, 2), Value: 8, Observed: true},
	}
	points := []models.ForecastPoint{{Yhat: 9}, {Yhat: 4}, {Yhat: 7}, {Yhat: 6}}

	yTrue, yPred := observedPairs(series, points)
	if !slices.Equal(yTrue, []float64{10, 8}) || !slices.Equal(yPred, []float64{9, 7}) {
		t.Errorf("observedPairs() = %v, %v, want [10 8], [9 7]", yTrue, yPred)
	}
}

func TestOrchestrator_TunedForestWritesSearch(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Churn.Models = []string{modeling.ModelRandomForest}
	o := newTestOrchestrator(t, cfg, staticSource(true))

	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(cfg.Artifacts.Dir, HyperparamsArtifact(modeling.ModelRandomForest)))
	if err != nil {
		t.Fatalf("read hyperparams: %v", err)
	}
	var res modeling.TuneResult
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatalf("decode hyperparams: %v", err)
	}
	if len(res.Trials) != 2 || res.Best.Trees != 5 || !slices.Contains([]int{2, 4}, res.Best.MaxDepth) {
		t.Errorf("search = %+v, want 2 trials over the configured grid", res)
	}

	cfg.Churn.Tune.Enabled = false
	o = newTestOrchestrator(t, cfg, staticSource(true))
	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run() without tuning error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Artifacts.Dir, HyperparamsArtifact(modeling.ModelRandomForest))); !os.IsNotExist(err) {
		t.Errorf("hyperparams left behind after tuning was disabled: %v", err)
	}
}

func TestOrchestrator_FailedBranchRemovesStaleArtifacts(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	first := newTestOrchestrator(t, cfg, staticSource(true))
	if _, err := first.Run(context.Background()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	cfg.Churn.Enabled = false
	second := newTestOrchestrator(t, cfg, staticSource(true),
		WithForecasterFactory(func() modeling.Forecaster { return panickingForecaster{} }),
	)
	rep, err := second.Run(context.Background())
	if err == nil {
		t.Fatal("Run() with a panicking forecaster should fail")
	}
	if rep.Status() != RunPartial {
		t.Errorf("Status() = %q, want %q", rep.Status(), RunPartial)
	}

	for _, name := range []string{
		ArtifactForecast,
		ChurnArtifact(modeling.ModelLogisticRegression),
		ChurnArtifact(modeling.ModelRandomForest),
		HyperparamsArtifact(modeling.ModelRandomForest),
	} {
		if _, err := os.Stat(filepath.Join(cfg.Artifacts.Dir, name)); !os.IsNotExist(err) {
			t.Errorf("%s from the previous run still present: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(cfg.Artifacts.Dir, ArtifactRecommendations)); err != nil {
		t.Errorf("recommendations: %v", err)
	}

	m, err := second.Store().ReadManifest(context.Background())
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	if err := second.Store().VerifyManifest(context.Background(), m); err != nil {
		t.Errorf("VerifyManifest() error = %v", err)
	}
}
