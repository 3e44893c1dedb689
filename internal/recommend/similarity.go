// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package recommend

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"
)

// SimilarityMatrix is a dense square item x item score matrix stored row-major.
type SimilarityMatrix struct {
	Items  []string
	Values []float64
}

func newSimilarityMatrix(items []string) *SimilarityMatrix {
	n := len(items)
	return &SimilarityMatrix{Items: items, Values: make([]float64, n*n)}
}

// Size returns the number of items.
func (s *SimilarityMatrix) Size() int { return len(s.Items) }

// At returns the score between items i and j.
func (s *SimilarityMatrix) At(i, j int) float64 {
	return s.Values[i*len(s.Items)+j]
}

func (s *SimilarityMatrix) set(i, j int, v float64) {
	s.Values[i*len(s.Items)+j] = v
}

// BuildItemSimilarity computes pairwise cosine similarity between the item
// column vectors of m. For binary vectors this is |A ∩ B| / sqrt(|A| |B|).
// The result is symmetric and its diagonal is 1 for every item that appears
// in at least one transaction.
func BuildItemSimilarity(ctx context.Context, m *IncidenceMatrix, workers int) (*SimilarityMatrix, error) {
	return pairwise(ctx, m, workers, func(shared, na, nb int) float64 {
		if na == 0 || nb == 0 {
			return 0
		}
		return float64(shared) / math.Sqrt(float64(na)*float64(nb))
	}, true)
}

// BuildCooccurrence computes incidenceᵀ · incidence: the number of
// transactions shared by each pair of items. The diagonal is zero.
func BuildCooccurrence(ctx context.Context, m *IncidenceMatrix, workers int) (*SimilarityMatrix, error) {
	return pairwise(ctx, m, workers, func(shared, _, _ int) float64 {
		return float64(shared)
	}, false)
}

// pairwise fills the upper triangle of a score matrix and mirrors it. Rows
// are distributed over workers; row i writes cells (i, j) and (j, i) for
// j > i only, so workers never touch the same cell.
func pairwise(ctx context.Context, m *IncidenceMatrix, workers int, score func(shared, na, nb int) float64, unitDiagonal bool) (*SimilarityMatrix, error) {
	sim := newSimilarityMatrix(m.Items)
	n := len(m.Items)
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a := m.Columns[i]
			if unitDiagonal && len(a) > 0 {
				sim.set(i, i, 1)
			}
			for j := i + 1; j < n; j++ {
				b := m.Columns[j]
				v := score(intersectSorted(a, b), len(a), len(b))
				sim.set(i, j, v)
				sim.set(j, i, v)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sim, nil
}

// intersectSorted counts the common elements of two ascending slices.
func intersectSorted(a, b []int) int {
	count := 0
	for i, j := 0, 0; i < len(a) && j < len(b); {
		switch {
		case a[i] == b[j]:
			count++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return count
}
