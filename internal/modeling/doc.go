// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

// Package modeling defines the capability interfaces the pipeline uses to fit
// and apply models, and the adapters that implement them.
//
// # Interfaces
//
//   - Classifier: Fit(features, labels), Predict(features) and
//     PredictScore(features) for the churn branch.
//   - Forecaster: Fit(series) and Forecast(horizon) for the revenue branch.
//
// The pipeline depends only on these interfaces. A fitted adapter is its own
// model handle; calling Predict or Forecast before a successful Fit returns
// ErrNotFitted.
//
// # Adapters
//
//   - LogisticRegression: standardized batch gradient descent with L2
//     regularization on gonum matrices.
//   - RandomForest: bagged shallow decision trees with a fixed seed.
//   - HoltForecaster: Holt linear trend on weekly-deseasonalized daily values,
//     with prediction intervals from the residual standard deviation.
//
// All adapters are deterministic for a given configuration and input.
//
// # Thread Safety
//
// Fitting acquires an exclusive lock while prediction uses a shared lock, so
// a fitted model can serve concurrent Predict calls.
package modeling
