// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

/*
Package features turns a cleaned transaction table into numeric features.

Every function in this package is pure: it reads a *models.TransactionTable,
never mutates it, and returns new values whose order is fully determined by
explicit sort keys (group, timestamp, transaction id, input position). Running
any of them twice on the same input yields identical output.

Operations:

  - ComputeRevenueGrowth: per-group lagged revenue growth ratio.
  - ComputeCategoryMix: per-entity category share of a value column, pivoted.
  - AddCalendarFeatures: day of week, month, day of month and weekend flag.
  - RollingMean: per-group trailing mean with a minimum-periods floor.
  - BuildFeatureMatrix: composes the above into a models.FeatureTable.

Error policy:

A required grouping key that the table does not carry is a *ConfigError and
aborts the call. A feature whose optional input column is absent returns a
*MissingColumnError; BuildFeatureMatrix turns that into a skipped feature
listed in BuildResult.Skipped instead of failing. Requested feature names
that are not recognized are listed in BuildResult.Ignored and logged.
*/
package features
