// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/roastery/internal/artifact"
	"github.com/tomtom215/roastery/internal/evaluate"
	"github.com/tomtom215/roastery/internal/features"
	"github.com/tomtom215/roastery/internal/logging"
	"github.com/tomtom215/roastery/internal/metrics"
	"github.com/tomtom215/roastery/internal/modeling"
	"github.com/tomtom215/roastery/internal/models"
	"github.com/tomtom215/roastery/internal/recommend"
)

type churnOutcome struct {
	labels []int
	models []churnModel
}

type churnModel struct {
	name   string
	preds  []int
	scores []float64
}

type forecastOutcome struct {
	series []models.SeriesPoint
	points []models.ForecastPoint
}

type recsOutcome struct {
	result *recommend.Result
	truth  map[string][]string
}

// buildFeatures builds the feature table or reuses the stored one when the
// raw input and feature configuration are unchanged.
func (o *Orchestrator) buildFeatures(ctx context.Context, table *models.TransactionTable, rawFP string) (*models.FeatureTable, stageOutput, error) {
	fp, err := fingerprint(rawFP, o.cfg.Features)
	if err != nil {
		return nil, stageOutput{}, err
	}

	if ft, entries, ok := o.reuseFeatures(ctx, fp); ok {
		return ft, stageOutput{fingerprint: fp, artifacts: entries, reused: true}, nil
	}

	res, err := features.BuildFeatureMatrix(table, o.cfg.Features.Requested, o.cfg.Features.Options())
	if err != nil {
		return nil, stageOutput{}, err
	}
	log := logging.Ctx(ctx)
	log.Debug().
		Strs("applied", res.Applied).
		Strs("ignored", res.Ignored).
		Int("columns", len(res.Table.Columns)).
		Int("rows", len(res.Table.Rows)).
		Msg("Feature matrix built")
	for _, s := range res.Skipped {
		log.Warn().Str("feature", s.Name).Str("missing", string(s.Missing)).Msg("Feature skipped")
	}

	entry, err := o.write(ctx, StageFeaturesBuilt, featuresTable(res.Table))
	if err != nil {
		return nil, stageOutput{}, err
	}

	if o.snapshots != nil {
		if _, err := o.snapshots.Save(ctx, snapshotFeatures, fp, res.Table); err != nil {
			log.Warn().Err(err).Msg("Failed to save feature snapshot")
		} else if _, err := o.snapshots.Prune(ctx, snapshotFeatures, o.cfg.Artifacts.KeepSnapshots); err != nil {
			log.Warn().Err(err).Msg("Failed to prune feature snapshots")
		}
	}
	return res.Table, stageOutput{fingerprint: fp, artifacts: []artifact.Entry{entry}}, nil
}

// reuseFeatures returns the stored feature table when the ledger shows the
// same fingerprint, the recorded artifacts are intact and a snapshot with
// that fingerprint exists.
func (o *Orchestrator) reuseFeatures(ctx context.Context, fp string) (*models.FeatureTable, []artifact.Entry, bool) {
	if !o.cfg.Pipeline.SkipUnchanged || o.ledger == nil || o.snapshots == nil {
		return nil, nil, false
	}
	log := logging.Ctx(ctx)

	unchanged, err := o.ledger.Unchanged(ctx, StageFeaturesBuilt.String(), fp)
	if err != nil || !unchanged {
		return nil, nil, false
	}
	rec, err := o.ledger.Stage(ctx, StageFeaturesBuilt.String())
	if err != nil {
		return nil, nil, false
	}
	for _, e := range rec.Artifacts {
		if err := o.store.Verify(ctx, e); err != nil {
			log.Info().Err(err).Str("artifact", e.Name).Msg("Stored artifact changed, rebuilding features")
			return nil, nil, false
		}
	}

	var ft models.FeatureTable
	meta, err := o.snapshots.Load(ctx, snapshotFeatures, 0, &ft)
	if err != nil {
		if !errors.Is(err, artifact.ErrNotFound) {
			log.Warn().Err(err).Msg("Failed to load feature snapshot")
		}
		return nil, nil, false
	}
	if meta.Fingerprint != fp {
		return nil, nil, false
	}
	return &ft, rec.Artifacts, true
}

// trainChurn fits every configured churn model on the feature table and
// writes its predictions.
func (o *Orchestrator) trainChurn(ctx context.Context, ft *models.FeatureTable, featFP string) (*churnOutcome, stageOutput, error) {
	fp, err := fingerprint(featFP, o.cfg.Churn)
	if err != nil {
		return nil, stageOutput{}, err
	}
	out := stageOutput{fingerprint: fp}
	if !ft.HasLabel {
		return nil, out, &features.ConfigError{
			Op:     "train_churn",
			Field:  string(models.FieldChurnFlag),
			Reason: "label column not present in input",
			Err:    ErrNoLabels,
		}
	}

	x := ft.Matrix()
	labels := ft.Labels()
	outcome := &churnOutcome{labels: labels}

	for _, name := range o.cfg.Churn.Models {
		clf, tuned, err := o.churnClassifier(ctx, name, x, labels)
		if err != nil {
			return nil, out, err
		}
		if tuned != nil {
			out.artifacts = append(out.artifacts, *tuned)
		}
		if err := clf.Fit(ctx, x, labels); err != nil {
			return nil, out, fmt.Errorf("fit %s: %w", name, err)
		}
		preds, err := clf.Predict(x)
		if err != nil {
			return nil, out, fmt.Errorf("predict %s: %w", name, err)
		}
		scores, err := clf.PredictScore(x)
		if err != nil {
			return nil, out, fmt.Errorf("score %s: %w", name, err)
		}

		rows := make([]models.Prediction, len(preds))
		for i := range preds {
			rows[i] = models.Prediction{
				TransactionID: ft.Rows[i].TransactionID,
				Prediction:    preds[i],
				Score:         scores[i],
			}
		}
		entry, err := o.write(ctx, StageChurnTrained, predictionsTable(name, rows))
		if err != nil {
			return nil, out, err
		}
		out.artifacts = append(out.artifacts, entry)
		outcome.models = append(outcome.models, churnModel{name: name, preds: preds, scores: scores})

		logging.Ctx(ctx).Debug().Str("model", name).Int("rows", len(preds)).Msg("Churn model trained")
	}
	return outcome, out, nil
}

// churnClassifier returns the unfitted classifier for name. With tuning on,
// the random forest takes the best grid candidate and the search is written
// as an artifact; when no candidate can be scored the configured forest is
// used.
func (o *Orchestrator) churnClassifier(ctx context.Context, name string, x [][]float64, labels []int) (modeling.Classifier, *artifact.Entry, error) {
	if name != modeling.ModelRandomForest || !o.tuneForest {
		if name == modeling.ModelRandomForest {
			o.removeStale(ctx, HyperparamsArtifact(name))
		}
		clf, err := o.newClassifier(name)
		return clf, nil, err
	}

	log := logging.Ctx(ctx)
	res, err := modeling.TuneForest(ctx, x, labels, o.cfg.Churn.Forest, o.cfg.Churn.Tune)
	if errors.Is(err, modeling.ErrNotTunable) {
		log.Warn().Err(err).Msg("Random forest tuning skipped, using configured parameters")
		o.removeStale(ctx, HyperparamsArtifact(name))
		clf, err := o.newClassifier(name)
		return clf, nil, err
	}
	if err != nil {
		return nil, nil, fmt.Errorf("tune %s: %w", name, err)
	}

	entry, err := o.store.WriteJSON(ctx, HyperparamsArtifact(name), res)
	if err != nil {
		return nil, nil, fmt.Errorf("write %s: %w", HyperparamsArtifact(name), err)
	}
	entry.Stage = StageChurnTrained.String()
	log.Info().
		Int("trees", res.Best.Trees).
		Int("max_depth", res.Best.MaxDepth).
		Int("min_split", res.Best.MinSplit).
		Float64("mean_roc_auc", res.AUC).
		Msg("Random forest tuned")
	return modeling.NewRandomForest(res.Best), &entry, nil
}

// buildForecast fits the forecaster on daily revenue and writes the fitted
// history followed by the horizon.
func (o *Orchestrator) buildForecast(ctx context.Context, table *models.TransactionTable, rawFP string) (*forecastOutcome, stageOutput, error) {
	fp, err := fingerprint(rawFP, o.cfg.Forecast)
	if err != nil {
		return nil, stageOutput{}, err
	}
	out := stageOutput{fingerprint: fp}

	series, err := features.DailyRevenue(table)
	if err != nil {
		return nil, out, err
	}
	f := o.newForecaster()
	if err := f.Fit(ctx, series); err != nil {
		return nil, out, fmt.Errorf("fit forecaster: %w", err)
	}
	points, err := f.Forecast(o.cfg.Forecast.Horizon)
	if err != nil {
		return nil, out, fmt.Errorf("forecast: %w", err)
	}

	entry, err := o.write(ctx, StageForecastBuilt, forecastTable(points))
	if err != nil {
		return nil, out, err
	}
	out.artifacts = []artifact.Entry{entry}
	logging.Ctx(ctx).Debug().
		Int("history_days", len(series)).
		Int("horizon", o.cfg.Forecast.Horizon).
		Msg("Revenue forecast built")
	return &forecastOutcome{series: series, points: points}, out, nil
}

// buildRecommendations builds item-to-item recommendations, on the training
// split when a holdout is configured.
func (o *Orchestrator) buildRecommendations(ctx context.Context, table *models.TransactionTable, rawFP string) (*recsOutcome, stageOutput, error) {
	fp, err := fingerprint(rawFP, o.cfg.Recommend, o.cfg.Evaluate.HoldoutFraction)
	if err != nil {
		return nil, stageOutput{}, err
	}
	out := stageOutput{fingerprint: fp}

	train, holdout := recommend.SplitHoldout(table, o.cfg.Evaluate.HoldoutFraction)
	res, err := o.engine.Build(ctx, train)
	if err != nil {
		return nil, out, err
	}

	entry, err := o.write(ctx, StageRecsBuilt, recommendationsTable(res.Recommendations))
	if err != nil {
		return nil, out, err
	}
	out.artifacts = []artifact.Entry{entry}
	metrics.RecordRecommendations(len(res.Recommendations))

	outcome := &recsOutcome{result: res}
	if holdout != nil && holdout.Len() > 0 {
		outcome.truth = recommend.GroundTruth(holdout)
	}
	return outcome, out, nil
}

// evaluate scores every branch that succeeded and writes metrics.csv. An
// evaluation error for one branch does not drop the others' metrics; the
// stage fails after the report is written.
func (o *Orchestrator) evaluate(ctx context.Context, run *runState, b branchOutcomes) (stageOutput, error) {
	fp, err := fingerprint(
		run.fingerprint(StageChurnTrained)+run.fingerprint(StageForecastBuilt)+run.fingerprint(StageRecsBuilt),
		o.cfg.Evaluate,
	)
	if err != nil {
		return stageOutput{}, err
	}
	out := stageOutput{fingerprint: fp}

	var reports []evaluate.Report
	var errs []error

	if b.churn != nil {
		for _, m := range b.churn.models {
			cm, err := evaluate.EvaluateClassification(b.churn.labels, m.preds, m.scores)
			if err != nil {
				errs = append(errs, fmt.Errorf("churn %s: %w", m.name, err))
				continue
			}
			if cm.Degenerate != "" {
				logging.Ctx(ctx).Warn().Str("model", m.name).Str("degenerate", cm.Degenerate).Msg("Classification metrics degenerate")
			}
			reports = append(reports, cm.Report("churn_"+m.name))
		}
	}

	if b.forecast != nil {
		yTrue, yPred := observedPairs(b.forecast.series, b.forecast.points)
		fm, err := evaluate.EvaluateForecast(yTrue, yPred)
		if err != nil {
			errs = append(errs, fmt.Errorf("forecast: %w", err))
		} else {
			reports = append(reports, fm.Report("forecast"))
		}
	}

	if b.recs != nil {
		res := b.recs.result
		if b.recs.truth != nil {
			rm, err := evaluate.EvaluateRecommendations(res.Recommendations, b.recs.truth, o.cfg.Evaluate.K)
			if err != nil {
				errs = append(errs, fmt.Errorf("recommendations: %w", err))
			} else {
				reports = append(reports, rm.Report("recs"))
			}
		}
		reports = append(reports, evaluate.Report{
			"recs_coverage": evaluate.RecommendationCoverage(res.Recommendations, res.Items),
		})
	}

	report := evaluate.MergeReports(reports...)
	entry, err := o.write(ctx, StageEvaluated, metricsTable(report))
	if err != nil {
		return out, errors.Join(append(errs, err)...)
	}
	out.artifacts = []artifact.Entry{entry}
	run.setReport(report)
	metrics.RecordReport(report)

	return out, errors.Join(errs...)
}

// observedPairs pairs the fitted values with the days that had sales.
// Zero-filled days are not true zeros and stay out of the error metrics.
func observedPairs(series []models.SeriesPoint, points []models.ForecastPoint) (yTrue, yPred []float64) {
	for i, p := range series {
		if !p.Observed || i >= len(points) {
			continue
		}
		yTrue = append(yTrue, p.Value)
		yPred = append(yPred, points[i].Yhat)
	}
	return yTrue, yPred
}
