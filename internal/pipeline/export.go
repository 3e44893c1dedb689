// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/tomtom215/roastery/internal/artifact"
	"github.com/tomtom215/roastery/internal/evaluate"
	"github.com/tomtom215/roastery/internal/logging"
	"github.com/tomtom215/roastery/internal/modeling"
	"github.com/tomtom215/roastery/internal/models"
)

// Artifact names.
const (
	ArtifactFeatures        = "features.csv"
	ArtifactForecast        = "forecast.csv"
	ArtifactRecommendations = "recommendations.csv"
	ArtifactMetrics         = "metrics.csv"
)

// ChurnArtifact returns the predictions artifact name of a churn model.
func ChurnArtifact(model string) string {
	return "churn_" + model + "_predictions.csv"
}

// HyperparamsArtifact returns the tuning result artifact name of a churn
// model.
func HyperparamsArtifact(model string) string {
	return "hyperparams_" + model + ".json"
}

// branchArtifacts lists the files a branch stage owns.
func branchArtifacts(stage Stage) []string {
	switch stage {
	case StageChurnTrained:
		// Every known model, so one dropped from churn.models is cleared too.
		return []string{
			ChurnArtifact(modeling.ModelLogisticRegression),
			ChurnArtifact(modeling.ModelRandomForest),
			HyperparamsArtifact(modeling.ModelRandomForest),
		}
	case StageForecastBuilt:
		return []string{ArtifactForecast}
	case StageRecsBuilt:
		return []string{ArtifactRecommendations}
	}
	return nil
}

// removeBranchArtifacts deletes what an earlier run left for a branch that
// failed or is disabled, so readers never pair it with the new metrics.
func (o *Orchestrator) removeBranchArtifacts(ctx context.Context, stage Stage) {
	for _, name := range branchArtifacts(stage) {
		o.removeStale(ctx, name)
	}
}

func (o *Orchestrator) removeStale(ctx context.Context, name string) {
	if err := o.store.Remove(context.WithoutCancel(ctx), name); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("artifact", name).Msg("Failed to remove stale artifact")
	}
}

func featuresTable(ft *models.FeatureTable) *artifact.Table {
	header := []string{"transaction_id", "product_id", "store_location", "transaction_date"}
	if ft.HasLabel {
		header = append(header, "churn_flag")
	}
	header = append(header, ft.Columns...)

	t := artifact.NewTable(ArtifactFeatures, header...)
	row := make([]any, 0, len(header))
	for i := range ft.Rows {
		r := &ft.Rows[i]
		row = append(row[:0], r.TransactionID, r.ProductID, r.StoreLocation, r.Timestamp)
		if ft.HasLabel {
			row = append(row, r.Label)
		}
		for _, v := range r.Values {
			row = append(row, v)
		}
		t.Append(row...)
	}
	return t
}

func predictionsTable(model string, preds []models.Prediction) *artifact.Table {
	t := artifact.NewTable(ChurnArtifact(model), "transaction_id", "prediction", "score")
	for _, p := range preds {
		t.Append(p.TransactionID, p.Prediction, p.Score)
	}
	return t
}

func forecastTable(points []models.ForecastPoint) *artifact.Table {
	t := artifact.NewTable(ArtifactForecast, "ds", "yhat", "yhat_lower", "yhat_upper")
	for _, p := range points {
		t.Append(p.Timestamp, p.Yhat, p.YhatLower, p.YhatUpper)
	}
	return t
}

func recommendationsTable(recs []models.Recommendation) *artifact.Table {
	t := artifact.NewTable(ArtifactRecommendations, "source_id", "target_id", "score", "rank")
	for _, r := range recs {
		t.Append(r.SourceID, r.TargetID, r.Score, r.Rank)
	}
	return t
}

func metricsTable(report evaluate.Report) *artifact.Table {
	t := artifact.NewTable(ArtifactMetrics, "metric", "value")
	for _, k := range report.Keys() {
		t.Append(k, report[k])
	}
	return t
}

// ParseReport reads a metrics.csv table back into a report.
func ParseReport(t *artifact.Table) (evaluate.Report, error) {
	mi, vi := t.ColumnIndex("metric"), t.ColumnIndex("value")
	if mi < 0 || vi < 0 {
		return nil, fmt.Errorf("artifact %s: metric and value columns are required", t.Name)
	}
	out := make(evaluate.Report, len(t.Rows))
	for i, row := range t.Rows {
		v, err := strconv.ParseFloat(row[vi], 64)
		if err != nil {
			return nil, &artifact.CellError{Table: t.Name, Row: i + 1, Column: "value", Err: err}
		}
		out[row[mi]] = v
	}
	return out, nil
}

func sortedStages(stages []Stage) []Stage {
	out := slices.Clone(stages)
	slices.SortFunc(out, func(a, b Stage) int {
		return slices.Index(Stages, a) - slices.Index(Stages, b)
	})
	return out
}
