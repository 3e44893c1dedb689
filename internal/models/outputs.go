// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package models

import "time"

// Recommendation is one ranked neighbor of a source product.
type Recommendation struct {
	SourceID string  `json:"source_id"`
	TargetID string  `json:"target_id"`
	Score    float64 `json:"score"`
	Rank     int     `json:"rank"`
}

// Prediction is one churn classifier output row.
type Prediction struct {
	TransactionID string  `json:"transaction_id"`
	Prediction    int     `json:"prediction"`
	Score         float64 `json:"score"`
}

// SeriesPoint is one observation of a univariate daily series. Observed is
// false for days filled in with 0 because nothing was recorded.
type SeriesPoint struct {
	Timestamp time.Time `json:"ds"`
	Value     float64   `json:"y"`
	Observed  bool      `json:"observed"`
}

// ForecastPoint is one forecaster output row. Historical is true for fitted
// values over the training range.
type ForecastPoint struct {
	Timestamp  time.Time `json:"ds"`
	Yhat       float64   `json:"yhat"`
	YhatLower  float64   `json:"yhat_lower"`
	YhatUpper  float64   `json:"yhat_upper"`
	Historical bool      `json:"historical"`
}
