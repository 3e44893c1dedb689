// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

// Package pipeline orchestrates one batch run from raw transactions to the
// exported metric report.
//
// # Stages
//
//	RAW_LOADED -> FEATURES_BUILT -> { CHURN_TRAINED | FORECAST_BUILT | RECS_BUILT } -> EVALUATED -> REPORT_EXPORTED
//
// RAW_LOADED and FEATURES_BUILT are prerequisites: when either fails the
// branches do not run. The three branch stages run concurrently on the same
// read-only feature table. A failing branch (error, panic or artifact write
// failure) stops only itself; its siblings finish and EVALUATED scores
// whatever branches succeeded. REPORT_EXPORTED always runs and writes
// manifest.json describing the run.
//
// # Artifacts
//
// Every stage writes its outputs through artifact.Store, which replaces files
// atomically. Artifacts written by one run:
//
//	features.csv                   FEATURES_BUILT
//	churn_<model>_predictions.csv  CHURN_TRAINED, one per configured model
//	forecast.csv                   FORECAST_BUILT
//	recommendations.csv            RECS_BUILT
//	metrics.csv                    EVALUATED
//	manifest.json                  REPORT_EXPORTED
//
// # Fingerprints
//
// Each stage fingerprints its inputs with sha256 over a canonical encoding
// of the upstream fingerprint and the stage's configuration. With a ledger
// and snapshot store attached and pipeline.skip_unchanged set, an unchanged
// FEATURES_BUILT fingerprint reuses the stored feature table instead of
// rebuilding it.
//
// # Failures
//
// Run returns a *RunError listing every StageFailure alongside the
// RunReport. The report is always returned, even for failed runs.
package pipeline
