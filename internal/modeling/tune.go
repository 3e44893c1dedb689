// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package modeling

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"

	"github.com/tomtom215/roastery/internal/evaluate"
)

// ErrNotTunable is returned when no grid candidate produced a defined
// ROC-AUC on any fold.
var ErrNotTunable = errors.New("no tuning candidate could be scored")

// TuneTrial is the cross-validated score of one grid candidate.
type TuneTrial struct {
	Config ForestConfig `json:"params"`
	AUC    float64      `json:"mean_roc_auc"`
	Folds  int          `json:"scored_folds"`
}

// TuneResult is the outcome of TuneForest. Trials are in grid order.
type TuneResult struct {
	Best   ForestConfig `json:"best_params"`
	AUC    float64      `json:"best_mean_roc_auc"`
	Folds  int          `json:"folds"`
	Trials []TuneTrial  `json:"trials"`
}

// TuneForest grid-searches Trees, MaxDepth and MinSplit around base using
// stratified k-fold cross-validation scored by mean ROC-AUC. Folds whose
// validation labels hold a single class are not scored. Ties keep the
// earlier candidate, so the result is deterministic for a given seed.
func TuneForest(ctx context.Context, features [][]float64, labels []int, base ForestConfig, grid TuneConfig) (TuneResult, error) {
	if _, err := checkMatrix(features); err != nil {
		return TuneResult{}, fmt.Errorf("tune forest: %w", err)
	}
	if err := checkLabels(labels, len(features)); err != nil {
		return TuneResult{}, fmt.Errorf("tune forest: %w", err)
	}
	k := grid.Folds
	if k < 2 {
		k = DefaultTuneConfig().Folds
	}
	if len(labels) < k {
		return TuneResult{}, fmt.Errorf("tune forest: %w: %d rows for %d folds", ErrInsufficientData, len(labels), k)
	}

	folds := stratifiedFolds(labels, k, base.Seed)
	res := TuneResult{Folds: k}
	found := false
	for _, cfg := range gridCandidates(base, grid) {
		trial, err := crossValidate(ctx, features, labels, folds, cfg)
		if err != nil {
			return TuneResult{}, err
		}
		res.Trials = append(res.Trials, trial)
		if trial.Folds > 0 && (!found || trial.AUC > res.AUC) {
			res.Best, res.AUC, found = cfg, trial.AUC, true
		}
	}
	if !found {
		return res, ErrNotTunable
	}
	return res, nil
}

func crossValidate(ctx context.Context, features [][]float64, labels []int, folds [][]int, cfg ForestConfig) (TuneTrial, error) {
	trial := TuneTrial{Config: cfg}
	var sum float64
	for _, val := range folds {
		if contextCancelled(ctx) {
			return trial, ctx.Err()
		}
		trainX, trainY, valX, valY := splitRows(features, labels, val)

		rf := NewRandomForest(cfg)
		if err := rf.Fit(ctx, trainX, trainY); err != nil {
			return trial, fmt.Errorf("tune forest: %w", err)
		}
		scores, err := rf.PredictScore(valX)
		if err != nil {
			return trial, fmt.Errorf("tune forest: %w", err)
		}
		m, err := evaluate.EvaluateClassification(valY, threshold(scores, rf.config.Threshold), scores)
		if err != nil {
			return trial, fmt.Errorf("tune forest: %w", err)
		}
		if !m.AUCDefined {
			continue
		}
		sum += m.ROCAUC
		trial.Folds++
	}
	if trial.Folds > 0 {
		trial.AUC = sum / float64(trial.Folds)
	}
	return trial, nil
}

// gridCandidates expands the grid in Trees, MaxDepth, MinSplit order.
func gridCandidates(base ForestConfig, grid TuneConfig) []ForestConfig {
	orBase := func(values []int, v int) []int {
		if len(values) == 0 {
			return []int{v}
		}
		return values
	}
	base = NewRandomForest(base).config

	var out []ForestConfig
	for _, trees := range orBase(grid.Trees, base.Trees) {
		for _, depth := range orBase(grid.MaxDepth, base.MaxDepth) {
			for _, split := range orBase(grid.MinSplit, base.MinSplit) {
				cfg := base
				cfg.Trees, cfg.MaxDepth, cfg.MinSplit = trees, depth, split
				out = append(out, cfg)
			}
		}
	}
	return out
}

// stratifiedFolds shuffles each class with seed and deals its rows round
// robin, so every fold keeps roughly the overall class ratio. Each fold
// holds validation row indexes in ascending order.
func stratifiedFolds(labels []int, k int, seed int64) [][]int {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible folds
	folds := make([][]int, k)
	next := 0
	for class := 0; class <= 1; class++ {
		var rows []int
		for i, y := range labels {
			if y == class {
				rows = append(rows, i)
			}
		}
		rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		for _, r := range rows {
			folds[next%k] = append(folds[next%k], r)
			next++
		}
	}
	for _, f := range folds {
		slices.Sort(f)
	}
	return folds
}

func splitRows(features [][]float64, labels []int, val []int) (trainX [][]float64, trainY []int, valX [][]float64, valY []int) {
	inVal := make([]bool, len(labels))
	for _, i := range val {
		inVal[i] = true
	}
	for i := range labels {
		if inVal[i] {
			valX = append(valX, features[i])
			valY = append(valY, labels[i])
		} else {
			trainX = append(trainX, features[i])
			trainY = append(trainY, labels[i])
		}
	}
	return trainX, trainY, valX, valY
}
