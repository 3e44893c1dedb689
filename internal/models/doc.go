// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

/*
Package models defines the data structures shared across Roastery packages.

Key types:

  - Transaction and TransactionTable: the cleaned point-of-sale input. Revenue
    is always recomputed from quantity and unit price by Normalize.
  - Field and ColumnSet: named columns and the set of columns a loaded source
    actually provided, used by the feature engine to skip optional features.
  - FeatureTable: the per-transaction numeric feature matrix.
  - Recommendation, Prediction and ForecastPoint: branch outputs.
  - APIResponse, APIError and Metadata: the HTTP response envelope.

Everything in this package is a plain value type. Tables are treated as
read-only once a pipeline stage publishes them.
*/
package models
