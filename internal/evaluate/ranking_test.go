// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package evaluate

import (
	"errors"
	"math"
	"testing"

	"github.com/tomtom215/roastery/internal/models"
)

func rec(src, dst string, rank int) models.Recommendation {
	return models.Recommendation{SourceID: src, TargetID: dst, Rank: rank, Score: 1 / float64(rank)}
}

func TestEvaluateRecommendations(t *testing.T) {
	t.Parallel()

	recs := []models.Recommendation{
		rec("a", "b", 1), rec("a", "c", 2), rec("a", "d", 3),
		rec("b", "a", 1), rec("b", "x", 2),
		rec("c", "a", 1),
	}
	truth := map[string][]string{
		"a": {"b", "e"},      // hits b: precision 1/2 at k=2, recall 1/2
		"b": {"a", "c", "x"}, // hits a, x: precision 2/2, recall 2/3
		"c": {},              // empty truth: excluded
		"z": {"a"},           // no predictions: excluded
	}

	m, err := EvaluateRecommendations(recs, truth, 2)
	if err != nil {
		t.Fatal(err)
	}
	if m.EvaluatedItems != 2 || !m.Defined {
		t.Fatalf("EvaluatedItems = %d, Defined = %v", m.EvaluatedItems, m.Defined)
	}
	wantP := (0.5 + 1.0) / 2
	wantR := (0.5 + 2.0/3.0) / 2
	if math.Abs(m.PrecisionAtK-wantP) > 1e-12 {
		t.Errorf("PrecisionAtK = %v, want %v", m.PrecisionAtK, wantP)
	}
	if math.Abs(m.RecallAtK-wantR) > 1e-12 {
		t.Errorf("RecallAtK = %v, want %v", m.RecallAtK, wantR)
	}
}

func TestEvaluateRecommendations_RankOrderNotInputOrder(t *testing.T) {
	t.Parallel()

	recs := []models.Recommendation{rec("a", "z", 2), rec("a", "b", 1)}
	m, err := EvaluateRecommendations(recs, map[string][]string{"a": {"b"}}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if m.PrecisionAtK != 1 || m.RecallAtK != 1 {
		t.Errorf("expected rank 1 target b to be used, got %+v", m)
	}
}

func TestEvaluateRecommendations_NothingEvaluable(t *testing.T) {
	t.Parallel()

	m, err := EvaluateRecommendations(nil, map[string][]string{"a": {"b"}}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if m.Defined || m.PrecisionAtK != 0 || m.RecallAtK != 0 {
		t.Errorf("expected undefined zero metrics, got %+v", m)
	}

	if _, err := EvaluateRecommendations(nil, nil, 0); !errors.Is(err, ErrInvalidK) {
		t.Errorf("error = %v, want ErrInvalidK", err)
	}
}

func TestRecommendationCoverage(t *testing.T) {
	t.Parallel()

	recs := []models.Recommendation{rec("a", "b", 1), rec("a", "c", 2), rec("b", "a", 1), rec("q", "a", 1)}
	if got := RecommendationCoverage(recs, []string{"a", "b", "c", "d"}); got != 0.5 {
		t.Errorf("coverage = %v, want 0.5", got)
	}
	if got := RecommendationCoverage(recs, nil); got != 0 {
		t.Errorf("empty catalog coverage = %v, want 0", got)
	}
}
