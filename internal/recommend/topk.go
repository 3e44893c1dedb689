// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package recommend

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/tomtom215/roastery/internal/models"
)

type neighbor struct {
	id    string
	score float64
}

// TopKNeighbors selects the k highest-scoring other items for every item.
// The diagonal is treated as negative infinity and never emitted. Neighbors
// are ordered by descending score, then ascending neighbor id. Sources are
// emitted in the order of itemIDs, which must be aligned with the matrix.
// A k larger than the number of other items is clamped.
func TopKNeighbors(sim *SimilarityMatrix, itemIDs []string, k int) ([]models.Recommendation, error) {
	n := sim.Size()
	if len(itemIDs) != n {
		return nil, fmt.Errorf("top_k_neighbors: %d item ids for a %dx%d matrix", len(itemIDs), n, n)
	}
	if k < 1 {
		return nil, fmt.Errorf("top_k_neighbors: k must be at least 1, got %d", k)
	}
	limit := min(k, n-1)
	if limit <= 0 {
		return nil, nil
	}

	out := make([]models.Recommendation, 0, n*limit)
	candidates := make([]neighbor, 0, n)
	for i := 0; i < n; i++ {
		candidates = candidates[:0]
		for j := 0; j < n; j++ {
			score := sim.At(i, j)
			if i == j {
				score = math.Inf(-1)
			}
			if math.IsInf(score, -1) || math.IsNaN(score) {
				continue
			}
			candidates = append(candidates, neighbor{id: itemIDs[j], score: score})
		}

		slices.SortFunc(candidates, func(a, b neighbor) int {
			if c := cmp.Compare(b.score, a.score); c != 0 {
				return c
			}
			return cmp.Compare(a.id, b.id)
		})

		for rank, nb := range candidates[:min(limit, len(candidates))] {
			out = append(out, models.Recommendation{
				SourceID: itemIDs[i],
				TargetID: nb.id,
				Score:    nb.score,
				Rank:     rank + 1,
			})
		}
	}
	return out, nil
}
