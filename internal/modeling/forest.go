// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package modeling

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"math/rand"
	"slices"
)

// RandomForest is an ensemble of shallow decision trees, each fitted on a
// bootstrap sample and a random subset of features. The seed makes fitting
// reproducible.
type RandomForest struct {
	baseModel
	config ForestConfig

	width int
	trees []*treeNode
}

type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	value     float64
	leaf      bool
}

func (n *treeNode) predict(row []float64) float64 {
	for !n.leaf {
		if row[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

// NewRandomForest creates an unfitted forest.
func NewRandomForest(cfg ForestConfig) *RandomForest {
	def := DefaultClassifierConfig().Forest
	if cfg.Trees <= 0 {
		cfg.Trees = def.Trees
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	if cfg.MinLeaf <= 0 {
		cfg.MinLeaf = def.MinLeaf
	}
	if cfg.MinSplit < 2 {
		cfg.MinSplit = def.MinSplit
	}
	if cfg.MaxSamples <= 0 {
		cfg.MaxSamples = def.MaxSamples
	}
	if cfg.Threshold <= 0 || cfg.Threshold >= 1 {
		cfg.Threshold = def.Threshold
	}
	return &RandomForest{
		baseModel: newBaseModel(ModelRandomForest),
		config:    cfg,
	}
}

// Fit grows the forest.
func (rf *RandomForest) Fit(ctx context.Context, features [][]float64, labels []int) error {
	rf.acquireFitLock()
	defer rf.releaseFitLock()

	width, err := checkMatrix(features)
	if err != nil {
		return fmt.Errorf("random forest fit: %w", err)
	}
	if err := checkLabels(labels, len(features)); err != nil {
		return fmt.Errorf("random forest fit: %w", err)
	}

	rng := rand.New(rand.NewSource(rf.config.Seed)) //nolint:gosec // reproducible sampling, not security
	sampleSize := min(len(features), rf.config.MaxSamples)
	featuresPerSplit := max(1, int(math.Sqrt(float64(width))))
	weights := [2]float64{1, 1}
	if rf.config.Balanced {
		weights = classWeights(labels)
	}

	trees := make([]*treeNode, 0, rf.config.Trees)
	for t := 0; t < rf.config.Trees; t++ {
		if contextCancelled(ctx) {
			return ctx.Err()
		}
		sample := make([]int, sampleSize)
		for i := range sample {
			sample[i] = rng.Intn(len(features))
		}
		g := &treeGrower{
			x:        features,
			y:        labels,
			weight:   weights,
			rng:      rng,
			width:    width,
			perSplit: featuresPerSplit,
			maxDepth: rf.config.MaxDepth,
			minLeaf:  rf.config.MinLeaf,
			minSplit: rf.config.MinSplit,
		}
		trees = append(trees, g.grow(sample, 0))
	}

	rf.width = width
	rf.trees = trees
	rf.markFitted()
	return nil
}

// PredictScore returns the mean positive-class share of the leaves reached.
func (rf *RandomForest) PredictScore(features [][]float64) ([]float64, error) {
	rf.acquirePredictLock()
	defer rf.releasePredictLock()

	if !rf.fitted {
		return nil, ErrNotFitted
	}
	if len(features) == 0 {
		return []float64{}, nil
	}
	width, err := checkMatrix(features)
	if err != nil {
		return nil, err
	}
	if width != rf.width {
		return nil, fmt.Errorf("%w: %d columns, model has %d", ErrDimensionMismatch, width, rf.width)
	}

	scores := make([]float64, len(features))
	for i, row := range features {
		var s float64
		for _, tree := range rf.trees {
			s += tree.predict(row)
		}
		scores[i] = s / float64(len(rf.trees))
	}
	return scores, nil
}

// Predict returns 1 where the score reaches the configured threshold.
func (rf *RandomForest) Predict(features [][]float64) ([]int, error) {
	scores, err := rf.PredictScore(features)
	if err != nil {
		return nil, err
	}
	return threshold(scores, rf.config.Threshold), nil
}

type treeGrower struct {
	x        [][]float64
	y        []int
	weight   [2]float64
	rng      *rand.Rand
	width    int
	perSplit int
	maxDepth int
	minLeaf  int
	minSplit int
}

func (g *treeGrower) grow(idx []int, depth int) *treeNode {
	positives := 0
	var posW, totW float64
	for _, i := range idx {
		w := g.weight[g.y[i]]
		positives += g.y[i]
		posW += w * float64(g.y[i])
		totW += w
	}
	leaf := &treeNode{leaf: true, value: posW / totW}
	if depth >= g.maxDepth || positives == 0 || positives == len(idx) ||
		len(idx) < g.minSplit || len(idx) < 2*g.minLeaf {
		return leaf
	}

	feature, thr, ok := g.bestSplit(idx, posW, totW)
	if !ok {
		return leaf
	}

	var left, right []int
	for _, i := range idx {
		if g.x[i][feature] <= thr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &treeNode{
		feature:   feature,
		threshold: thr,
		left:      g.grow(left, depth+1),
		right:     g.grow(right, depth+1),
	}
}

// bestSplit scans a random subset of features for the threshold with the
// lowest weighted Gini impurity.
func (g *treeGrower) bestSplit(idx []int, posW, totW float64) (int, float64, bool) {
	candidates := g.rng.Perm(g.width)[:g.perSplit]
	slices.Sort(candidates)

	bestScore := gini(posW, totW)
	bestFeature, bestThr, found := 0, 0.0, false

	sorted := slices.Clone(idx)
	n := len(sorted)
	for _, f := range candidates {
		slices.SortStableFunc(sorted, func(a, b int) int {
			return cmp.Compare(g.x[a][f], g.x[b][f])
		})

		var leftPosW, leftW float64
		for k := 0; k < n-1; k++ {
			y := g.y[sorted[k]]
			leftW += g.weight[y]
			leftPosW += g.weight[y] * float64(y)
			leftN := k + 1
			if leftN < g.minLeaf || n-leftN < g.minLeaf {
				continue
			}
			cur, next := g.x[sorted[k]][f], g.x[sorted[k+1]][f]
			if cur == next {
				continue
			}
			rightW := totW - leftW
			score := (leftW*gini(leftPosW, leftW) + rightW*gini(posW-leftPosW, rightW)) / totW
			if score < bestScore-1e-12 {
				bestScore = score
				bestFeature = f
				bestThr = cur + (next-cur)/2
				found = true
			}
		}
	}
	return bestFeature, bestThr, found
}

// gini is the impurity of a node with positive weight pos out of total.
func gini(pos, total float64) float64 {
	if total <= 0 {
		return 0
	}
	p := pos / total
	return 2 * p * (1 - p)
}

// classWeights returns n / (2 * n_c) per class, so both classes carry the
// same total weight. A missing class keeps weight 1.
func classWeights(labels []int) [2]float64 {
	var counts [2]int
	for _, y := range labels {
		if y == 0 || y == 1 {
			counts[y]++
		}
	}
	w := [2]float64{1, 1}
	for c, n := range counts {
		if n > 0 {
			w[c] = float64(len(labels)) / float64(2*n)
		}
	}
	return w
}
