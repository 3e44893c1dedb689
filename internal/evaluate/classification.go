// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package evaluate

import (
	"cmp"
	"fmt"
	"slices"
)

// DegenerateSingleClass marks a label set containing only one class.
const DegenerateSingleClass = "single_class"

// ClassificationMetrics holds binary classification metrics. ROCAUC is only
// meaningful when AUCDefined is true.
type ClassificationMetrics struct {
	Accuracy   float64
	F1         float64
	ROCAUC     float64
	AUCDefined bool
	Degenerate string
	N          int
	Positives  int
}

// EvaluateClassification returns accuracy, F1 (positive class 1) and ROC-AUC.
// ROC-AUC is computed from scores when given, otherwise from the hard
// predictions. When yTrue holds one class only, the AUC is reported as
// undefined. F1 is 1 when neither the truth nor the predictions contain a
// positive, since every prediction is then correct.
func EvaluateClassification(yTrue, yPred []int, scores []float64) (ClassificationMetrics, error) {
	const op = "evaluate_classification"
	if len(yTrue) != len(yPred) {
		return ClassificationMetrics{}, &LengthError{Op: op, TrueLen: len(yTrue), PredLen: len(yPred), PredName: "y_pred"}
	}
	if scores != nil && len(scores) != len(yTrue) {
		return ClassificationMetrics{}, &LengthError{Op: op, TrueLen: len(yTrue), PredLen: len(scores), PredName: "scores"}
	}
	if len(yTrue) == 0 {
		return ClassificationMetrics{}, fmt.Errorf("%s: %w", op, ErrEmptySeries)
	}
	if scores != nil && !allFinite(scores) {
		return ClassificationMetrics{}, fmt.Errorf("%s: %w", op, ErrNonFinite)
	}

	var tp, fp, fn, correct, positives int
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		if (t != 0 && t != 1) || (p != 0 && p != 1) {
			return ClassificationMetrics{}, fmt.Errorf("%s: index %d: %w", op, i, ErrNonBinaryLabel)
		}
		if t == p {
			correct++
		}
		switch {
		case t == 1 && p == 1:
			tp++
		case t == 0 && p == 1:
			fp++
		case t == 1 && p == 0:
			fn++
		}
		positives += t
	}

	m := ClassificationMetrics{
		Accuracy:  float64(correct) / float64(len(yTrue)),
		N:         len(yTrue),
		Positives: positives,
	}
	if denom := 2*tp + fp + fn; denom > 0 {
		m.F1 = float64(2*tp) / float64(denom)
	} else {
		m.F1 = 1
	}

	if positives == 0 || positives == len(yTrue) {
		m.Degenerate = DegenerateSingleClass
		return m, nil
	}

	if scores == nil {
		scores = make([]float64, len(yPred))
		for i, p := range yPred {
			scores[i] = float64(p)
		}
	}
	m.ROCAUC = rocAUC(yTrue, scores, positives)
	m.AUCDefined = true
	return m, nil
}

// rocAUC computes the Mann-Whitney rank statistic with tied scores assigned
// their average rank.
func rocAUC(yTrue []int, scores []float64, positives int) float64 {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(scores[a], scores[b])
	})

	var rankSum float64
	for i := 0; i < len(order); {
		j := i
		for j+1 < len(order) && scores[order[j+1]] == scores[order[i]] {
			j++
		}
		avgRank := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			if yTrue[order[k]] == 1 {
				rankSum += avgRank
			}
		}
		i = j + 1
	}

	p := float64(positives)
	neg := float64(len(yTrue) - positives)
	return (rankSum - p*(p+1)/2) / (p * neg)
}

// Report returns the metrics under the given namespace. The roc_auc key is
// omitted when the AUC is undefined.
func (m ClassificationMetrics) Report(namespace string) Report {
	r := Report{
		"accuracy":        m.Accuracy,
		"f1":              m.F1,
		"roc_auc_defined": 0,
		"positive_rate":   float64(m.Positives) / float64(max(m.N, 1)),
	}
	if m.AUCDefined {
		r["roc_auc"] = m.ROCAUC
		r["roc_auc_defined"] = 1
	}
	return Namespace(namespace, r)
}
