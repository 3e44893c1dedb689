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
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/roastery/internal/artifact"
	"github.com/tomtom215/roastery/internal/config"
	"github.com/tomtom215/roastery/internal/events"
	"github.com/tomtom215/roastery/internal/logging"
	"github.com/tomtom215/roastery/internal/metrics"
	"github.com/tomtom215/roastery/internal/modeling"
	"github.com/tomtom215/roastery/internal/models"
	"github.com/tomtom215/roastery/internal/recommend"
)

// Publisher receives lifecycle events. *events.Bus implements it.
type Publisher interface {
	PublishStage(ctx context.Context, e events.StageEvent) error
	PublishRun(ctx context.Context, e events.RunEvent) error
}

// ClassifierFactory returns a fresh, unfitted churn classifier by name.
type ClassifierFactory func(name string) (modeling.Classifier, error)

// ForecasterFactory returns a fresh, unfitted revenue forecaster.
type ForecasterFactory func() modeling.Forecaster

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLedger records stage and run outcomes in l.
func WithLedger(l *artifact.Ledger) Option {
	return func(o *Orchestrator) { o.ledger = l }
}

// WithSnapshots stores feature tables in s for reuse by later runs.
func WithSnapshots(s *artifact.SnapshotStore) Option {
	return func(o *Orchestrator) { o.snapshots = s }
}

// WithPublisher publishes stage and run events to p.
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithClassifierFactory replaces the churn model constructor. Models from a
// custom factory are never grid-searched.
func WithClassifierFactory(f ClassifierFactory) Option {
	return func(o *Orchestrator) {
		o.newClassifier = f
		o.tuneForest = false
	}
}

// WithForecasterFactory replaces the forecaster constructor.
func WithForecasterFactory(f ForecasterFactory) Option {
	return func(o *Orchestrator) { o.newForecaster = f }
}

const snapshotFeatures = "features"

// Orchestrator runs the pipeline. Its configuration is fixed at
// construction; runs never mutate it.
type Orchestrator struct {
	cfg    config.Config
	source Source
	store  *artifact.Store
	engine *recommend.Engine

	ledger        *artifact.Ledger
	snapshots     *artifact.SnapshotStore
	publisher     Publisher
	newClassifier ClassifierFactory
	newForecaster ForecasterFactory
	tuneForest    bool

	running atomic.Bool
}

// New creates an orchestrator from a validated configuration. cfg is copied.
func New(cfg *config.Config, source Source, opts ...Option) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if source == nil {
		return nil, errors.New("nil source")
	}

	c := *cfg
	c.Features.Requested = slices.Clone(cfg.Features.Requested)
	c.Churn.Models = slices.Clone(cfg.Churn.Models)
	c.Server.CORSOrigins = slices.Clone(cfg.Server.CORSOrigins)

	store, err := artifact.NewStore(c.Artifacts.Dir)
	if err != nil {
		return nil, fmt.Errorf("open artifact store: %w", err)
	}
	engine, err := recommend.NewEngine(c.Recommend, logging.Logger())
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:    c,
		source: source,
		store:  store,
		engine: engine,
	}
	classifierCfg := c.Churn.ClassifierConfig()
	o.newClassifier = func(name string) (modeling.Classifier, error) {
		return modeling.NewClassifier(name, classifierCfg)
	}
	o.tuneForest = c.Churn.Tune.Enabled
	holt := c.Forecast.Holt
	o.newForecaster = func() modeling.Forecaster {
		return modeling.NewHoltForecaster(holt)
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Store returns the artifact store the orchestrator writes to.
func (o *Orchestrator) Store() *artifact.Store {
	return o.store
}

// Running reports whether a run is in progress.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

type stageOutput struct {
	fingerprint string
	artifacts   []artifact.Entry
	reused      bool
}

// Run executes every stage once. The report is returned even when stages
// fail; the error is then a *RunError. Concurrent calls fail with
// ErrRunInProgress.
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer o.running.Store(false)

	runID := logging.GenerateRunID()
	ctx = logging.ContextWithRunID(ctx, runID)
	if o.cfg.Pipeline.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Pipeline.Timeout)
		defer cancel()
	}

	run := newRunState(runID, o.source.Name(), time.Now().UTC())
	logging.Ctx(ctx).Info().Str("source", o.source.Name()).Msg("Pipeline run started")

	var table *models.TransactionTable
	err := o.execute(ctx, run, StageRawLoaded, func(ctx context.Context) (stageOutput, error) {
		var err error
		table, err = o.source.Load(ctx)
		if err != nil {
			return stageOutput{}, fmt.Errorf("load %s: %w", o.source.Name(), err)
		}
		if table == nil {
			return stageOutput{}, fmt.Errorf("load %s: no table returned", o.source.Name())
		}
		return stageOutput{fingerprint: fingerprintTable(table)}, nil
	})
	if err != nil {
		run.skip(StageFeaturesBuilt, StageChurnTrained, StageForecastBuilt, StageRecsBuilt, StageEvaluated)
		return o.finish(ctx, run)
	}

	var ft *models.FeatureTable
	err = o.execute(ctx, run, StageFeaturesBuilt, func(ctx context.Context) (stageOutput, error) {
		var out stageOutput
		var err error
		ft, out, err = o.buildFeatures(ctx, table, run.fingerprint(StageRawLoaded))
		return out, err
	})
	if err != nil {
		run.skip(StageChurnTrained, StageForecastBuilt, StageRecsBuilt, StageEvaluated)
		return o.finish(ctx, run)
	}

	branches := o.runBranches(ctx, run, table, ft)

	_ = o.execute(ctx, run, StageEvaluated, func(ctx context.Context) (stageOutput, error) {
		return o.evaluate(ctx, run, branches)
	})

	return o.finish(ctx, run)
}

// execute runs one stage, converting panics into failures, and records its
// outcome in the run, the metrics, the ledger and the event stream.
func (o *Orchestrator) execute(ctx context.Context, run *runState, stage Stage, fn func(context.Context) (stageOutput, error)) error {
	ctx = logging.ContextWithStage(ctx, stage.String())
	start := time.Now()

	out, err := safeCall(ctx, fn)
	duration := time.Since(start)

	status := metrics.StatusSucceeded
	switch {
	case err != nil:
		status = metrics.StatusFailed
		if stage.IsBranch() {
			out.artifacts = nil
			o.removeBranchArtifacts(ctx, stage)
		}
		run.fail(stage, err, out)
		logging.Ctx(ctx).Error().Err(err).Dur("duration", duration).Msg("Stage failed")
	case out.reused:
		status = metrics.StatusSkipped
		run.complete(stage, out)
		logging.Ctx(ctx).Info().Dur("duration", duration).Msg("Stage reused stored output")
	default:
		run.complete(stage, out)
		logging.Ctx(ctx).Info().
			Dur("duration", duration).
			Int("artifacts", len(out.artifacts)).
			Msg("Stage completed")
	}

	metrics.RecordStage(stage.String(), status, duration)
	for _, e := range out.artifacts {
		metrics.RecordArtifact(e.Name, e.SizeBytes)
	}

	if err == nil && !out.reused && o.ledger != nil {
		rec := artifact.StageRecord{
			Stage:       stage.String(),
			Fingerprint: out.fingerprint,
			RunID:       run.id(),
			Artifacts:   out.artifacts,
			CompletedAt: time.Now().UTC(),
		}
		if lerr := o.ledger.RecordStage(context.WithoutCancel(ctx), rec); lerr != nil {
			logging.Ctx(ctx).Warn().Err(lerr).Msg("Failed to record stage in ledger")
		}
	}

	o.publishStage(ctx, run.id(), stage, status, err, duration)
	return err
}

func safeCall(ctx context.Context, fn func(context.Context) (stageOutput, error)) (out stageOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return fn(ctx)
}

// skipStage records a disabled stage.
func (o *Orchestrator) skipStage(ctx context.Context, run *runState, stage Stage, reason string) {
	run.skip(stage)
	o.removeBranchArtifacts(ctx, stage)
	metrics.RecordStage(stage.String(), metrics.StatusSkipped, 0)
	logging.Ctx(ctx).Info().Str("stage", stage.String()).Str("reason", reason).Msg("Stage skipped")
	o.publishStage(ctx, run.id(), stage, metrics.StatusSkipped, nil, 0)
}

func (o *Orchestrator) write(ctx context.Context, stage Stage, t *artifact.Table) (artifact.Entry, error) {
	entry, err := o.store.WriteTable(ctx, t)
	if err != nil {
		return artifact.Entry{}, fmt.Errorf("write %s: %w", t.Name, err)
	}
	entry.Stage = stage.String()
	return entry, nil
}

type branchOutcomes struct {
	churn    *churnOutcome
	forecast *forecastOutcome
	recs     *recsOutcome
}

// runBranches runs the three model branches concurrently. Branch errors are
// recorded in run and never cancel siblings.
func (o *Orchestrator) runBranches(ctx context.Context, run *runState, table *models.TransactionTable, ft *models.FeatureTable) branchOutcomes {
	var out branchOutcomes
	var g errgroup.Group

	if o.cfg.Churn.Enabled {
		g.Go(func() error {
			_ = o.execute(ctx, run, StageChurnTrained, func(ctx context.Context) (stageOutput, error) {
				var so stageOutput
				var err error
				out.churn, so, err = o.trainChurn(ctx, ft, run.fingerprint(StageFeaturesBuilt))
				return so, err
			})
			return nil
		})
	} else {
		o.skipStage(ctx, run, StageChurnTrained, "churn.enabled is false")
	}

	if o.cfg.Forecast.Enabled {
		g.Go(func() error {
			_ = o.execute(ctx, run, StageForecastBuilt, func(ctx context.Context) (stageOutput, error) {
				var so stageOutput
				var err error
				out.forecast, so, err = o.buildForecast(ctx, table, run.fingerprint(StageRawLoaded))
				return so, err
			})
			return nil
		})
	} else {
		o.skipStage(ctx, run, StageForecastBuilt, "forecast.enabled is false")
	}

	g.Go(func() error {
		_ = o.execute(ctx, run, StageRecsBuilt, func(ctx context.Context) (stageOutput, error) {
			var so stageOutput
			var err error
			out.recs, so, err = o.buildRecommendations(ctx, table, run.fingerprint(StageRawLoaded))
			return so, err
		})
		return nil
	})

	_ = g.Wait()
	return out
}

// finish exports the manifest and records the run. It runs detached from
// ctx cancellation so a timed-out run is still described on disk.
func (o *Orchestrator) finish(ctx context.Context, run *runState) (*RunReport, error) {
	ctx = context.WithoutCancel(ctx)

	_ = o.execute(ctx, run, StageReportExported, func(ctx context.Context) (stageOutput, error) {
		return o.exportManifest(ctx, run)
	})

	rep := run.snapshot()
	rep.FinishedAt = time.Now().UTC()

	if o.ledger != nil {
		if err := o.ledger.RecordRun(ctx, rep.Record()); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Failed to record run in ledger")
		}
	}
	metrics.RecordRun(len(rep.Failed), rep.FinishedAt)
	o.publishRun(ctx, rep)

	logging.Ctx(ctx).Info().
		Str("status", rep.Status()).
		Strs("completed", rep.CompletedNames()).
		Int("failed", len(rep.Failed)).
		Dur("duration", rep.FinishedAt.Sub(rep.StartedAt)).
		Msg("Pipeline run finished")
	return rep, rep.Err()
}

func (o *Orchestrator) exportManifest(ctx context.Context, run *runState) (stageOutput, error) {
	rep := run.snapshot()
	completed := append(rep.CompletedNames(), StageReportExported.String())
	m := &artifact.Manifest{
		RunID:        rep.RunID,
		CreatedAt:    time.Now().UTC(),
		Completed:    completed,
		Failed:       rep.FailedStages(),
		Fingerprints: rep.Fingerprints,
		Artifacts:    rep.Artifacts,
	}
	entry, err := o.store.WriteManifest(ctx, m)
	if err != nil {
		return stageOutput{}, fmt.Errorf("write manifest: %w", err)
	}
	entry.Stage = StageReportExported.String()
	return stageOutput{artifacts: []artifact.Entry{entry}}, nil
}

func (o *Orchestrator) publishStage(ctx context.Context, runID string, stage Stage, status string, err error, d time.Duration) {
	if o.publisher == nil {
		return
	}
	e := events.StageEvent{
		RunID:      runID,
		Stage:      stage.String(),
		Status:     status,
		Duration:   d,
		OccurredAt: time.Now().UTC(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	if perr := o.publisher.PublishStage(context.WithoutCancel(ctx), e); perr != nil {
		logging.Ctx(ctx).Warn().Err(perr).Msg("Failed to publish stage event")
	}
}

func (o *Orchestrator) publishRun(ctx context.Context, rep *RunReport) {
	if o.publisher == nil {
		return
	}
	e := events.RunEvent{
		RunID:      rep.RunID,
		Status:     rep.Status(),
		Completed:  rep.CompletedNames(),
		Failed:     rep.FailedStages(),
		Reused:     stageNames(rep.Reused),
		FinishedAt: rep.FinishedAt,
	}
	if err := o.publisher.PublishRun(ctx, e); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to publish run event")
	}
}
