// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package evaluate

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/tomtom215/roastery/internal/models"
)

// RankingMetrics holds macro-averaged top-k quality. Defined is false when
// no item had both recommendations and ground truth.
type RankingMetrics struct {
	PrecisionAtK   float64
	RecallAtK      float64
	EvaluatedItems int
	K              int
	Defined        bool
}

// EvaluateRecommendations compares the first k recommendations of every
// source product against its ground-truth set. Precision is the share of the
// (at most k) recommended items that are relevant, recall the share of
// relevant items recommended. Items with an empty prediction or ground-truth
// set are excluded from the average.
func EvaluateRecommendations(recs []models.Recommendation, groundTruth map[string][]string, k int) (RankingMetrics, error) {
	if k < 1 {
		return RankingMetrics{}, fmt.Errorf("evaluate_recommendations: %w", ErrInvalidK)
	}

	predicted := topKBySource(recs, k)

	items := make([]string, 0, len(groundTruth))
	for id := range groundTruth {
		items = append(items, id)
	}
	slices.Sort(items)

	m := RankingMetrics{K: k}
	var precisionSum, recallSum float64
	for _, id := range items {
		preds := predicted[id]
		truth := groundTruth[id]
		if len(preds) == 0 || len(truth) == 0 {
			continue
		}
		relevant := make(map[string]struct{}, len(truth))
		for _, t := range truth {
			relevant[t] = struct{}{}
		}
		hits := 0
		for _, p := range preds {
			if _, ok := relevant[p]; ok {
				hits++
			}
		}
		precisionSum += float64(hits) / float64(len(preds))
		recallSum += float64(hits) / float64(len(relevant))
		m.EvaluatedItems++
	}

	if m.EvaluatedItems > 0 {
		m.PrecisionAtK = precisionSum / float64(m.EvaluatedItems)
		m.RecallAtK = recallSum / float64(m.EvaluatedItems)
		m.Defined = true
	}
	return m, nil
}

// topKBySource groups recommendations by source and keeps the k best ranked
// distinct targets.
func topKBySource(recs []models.Recommendation, k int) map[string][]string {
	sorted := slices.Clone(recs)
	slices.SortStableFunc(sorted, func(a, b models.Recommendation) int {
		if c := cmp.Compare(a.SourceID, b.SourceID); c != 0 {
			return c
		}
		return cmp.Compare(a.Rank, b.Rank)
	})

	out := make(map[string][]string)
	for _, r := range sorted {
		if len(out[r.SourceID]) >= k || slices.Contains(out[r.SourceID], r.TargetID) {
			continue
		}
		out[r.SourceID] = append(out[r.SourceID], r.TargetID)
	}
	return out
}

// RecommendationCoverage returns the share of catalog products that receive
// at least one recommendation. An empty catalog has coverage 0.
func RecommendationCoverage(recs []models.Recommendation, catalog []string) float64 {
	if len(catalog) == 0 {
		return 0
	}
	inCatalog := make(map[string]struct{}, len(catalog))
	for _, id := range catalog {
		inCatalog[id] = struct{}{}
	}
	covered := make(map[string]struct{})
	for _, r := range recs {
		if _, ok := inCatalog[r.SourceID]; ok {
			covered[r.SourceID] = struct{}{}
		}
	}
	return float64(len(covered)) / float64(len(inCatalog))
}

// Report returns the metrics under the given namespace.
func (m RankingMetrics) Report(namespace string) Report {
	return Namespace(namespace, Report{
		"precision_at_k":  m.PrecisionAtK,
		"recall_at_k":     m.RecallAtK,
		"evaluated_items": float64(m.EvaluatedItems),
		"k":               float64(m.K),
	})
}
