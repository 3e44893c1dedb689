// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

// Package evaluate computes quality metrics for the forecast, churn and
// recommendation branches and merges them into one flat report.
//
// Input errors (mismatched series lengths, empty series, non-binary labels,
// non-finite values) are returned as errors and abort the evaluation of the
// affected branch. Degenerate inputs are handled with fixed fallbacks and
// flags instead:
//
//   - MAPE divides by |true + 1e-9|, so a zero true value contributes a very
//     large finite term rather than being dropped or producing infinity.
//   - ROC-AUC is left out of the report when the true labels contain a single
//     class; the <namespace>_roc_auc_defined key is 0 in that case.
//   - Precision@k and recall@k are macro-averaged only over items that have
//     both recommendations and ground truth.
package evaluate
