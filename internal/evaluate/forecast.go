// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package evaluate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// MAPEEpsilon is added to the true value in the MAPE denominator.
const MAPEEpsilon = 1e-9

// ForecastMetrics holds point-forecast error metrics. MAPE is a percentage.
type ForecastMetrics struct {
	RMSE float64
	MAE  float64
	MAPE float64
	N    int
}

// EvaluateForecast returns RMSE, MAE and MAPE for index-aligned series.
func EvaluateForecast(yTrue, yPred []float64) (ForecastMetrics, error) {
	const op = "evaluate_forecast"
	if len(yTrue) != len(yPred) {
		return ForecastMetrics{}, &LengthError{Op: op, TrueLen: len(yTrue), PredLen: len(yPred), PredName: "y_pred"}
	}
	if len(yTrue) == 0 {
		return ForecastMetrics{}, fmt.Errorf("%s: %w", op, ErrEmptySeries)
	}
	if !allFinite(yTrue) || !allFinite(yPred) {
		return ForecastMetrics{}, fmt.Errorf("%s: %w", op, ErrNonFinite)
	}

	n := float64(len(yTrue))
	var ape float64
	for i := range yTrue {
		ape += math.Abs((yTrue[i] - yPred[i]) / (yTrue[i] + MAPEEpsilon))
	}

	return ForecastMetrics{
		RMSE: floats.Distance(yTrue, yPred, 2) / math.Sqrt(n),
		MAE:  floats.Distance(yTrue, yPred, 1) / n,
		MAPE: ape / n * 100,
		N:    len(yTrue),
	}, nil
}

// Report returns the metrics under the given namespace.
func (m ForecastMetrics) Report(namespace string) Report {
	return Namespace(namespace, Report{
		"rmse": m.RMSE,
		"mae":  m.MAE,
		"mape": m.MAPE,
	})
}

func allFinite(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
