// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package modeling

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// LogisticRegression is an L2-regularized logistic regression fitted by
// batch gradient descent on standardized features. With Balanced set, each
// class contributes equally to the loss.
type LogisticRegression struct {
	baseModel
	config LogisticConfig

	mean    []float64
	scale   []float64
	weights *mat.VecDense
	bias    float64
}

// NewLogisticRegression creates an unfitted logistic regression.
func NewLogisticRegression(cfg LogisticConfig) *LogisticRegression {
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.1
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = 500
	}
	if cfg.Threshold <= 0 || cfg.Threshold >= 1 {
		cfg.Threshold = 0.5
	}
	return &LogisticRegression{
		baseModel: newBaseModel(ModelLogisticRegression),
		config:    cfg,
	}
}

// Fit trains the model.
func (lr *LogisticRegression) Fit(ctx context.Context, features [][]float64, labels []int) error {
	lr.acquireFitLock()
	defer lr.releaseFitLock()

	width, err := checkMatrix(features)
	if err != nil {
		return fmt.Errorf("logistic regression fit: %w", err)
	}
	if err := checkLabels(labels, len(features)); err != nil {
		return fmt.Errorf("logistic regression fit: %w", err)
	}

	n := len(features)
	mean, scale := standardization(features, width)
	x := mat.NewDense(n, width, nil)
	y := mat.NewVecDense(n, nil)
	for i, row := range features {
		for j, v := range row {
			x.Set(i, j, (v-mean[j])/scale[j])
		}
		y.SetVec(i, float64(labels[i]))
	}

	w := mat.NewVecDense(width, nil)
	var bias float64
	z := mat.NewVecDense(n, nil)
	residual := mat.NewVecDense(n, nil)
	grad := mat.NewVecDense(width, nil)
	invN := 1 / float64(n)
	weights := [2]float64{1, 1}
	if lr.config.Balanced {
		weights = classWeights(labels)
	}

	for iter := 0; iter < lr.config.Iterations; iter++ {
		if iter%50 == 0 && contextCancelled(ctx) {
			return ctx.Err()
		}

		z.MulVec(x, w)
		for i := 0; i < n; i++ {
			residual.SetVec(i, weights[labels[i]]*(sigmoid(z.AtVec(i)+bias)-y.AtVec(i)))
		}

		grad.MulVec(x.T(), residual)
		grad.ScaleVec(invN, grad)
		grad.AddScaledVec(grad, lr.config.L2, w)

		w.AddScaledVec(w, -lr.config.LearningRate, grad)
		bias -= lr.config.LearningRate * mat.Sum(residual) * invN
	}

	lr.mean, lr.scale = mean, scale
	lr.weights = w
	lr.bias = bias
	lr.markFitted()
	return nil
}

// PredictScore returns P(label = 1) for each row.
func (lr *LogisticRegression) PredictScore(features [][]float64) ([]float64, error) {
	lr.acquirePredictLock()
	defer lr.releasePredictLock()

	if !lr.fitted {
		return nil, ErrNotFitted
	}
	if len(features) == 0 {
		return []float64{}, nil
	}
	width, err := checkMatrix(features)
	if err != nil {
		return nil, err
	}
	if width != lr.weights.Len() {
		return nil, fmt.Errorf("%w: %d columns, model has %d", ErrDimensionMismatch, width, lr.weights.Len())
	}

	scores := make([]float64, len(features))
	for i, row := range features {
		z := lr.bias
		for j, v := range row {
			z += lr.weights.AtVec(j) * (v - lr.mean[j]) / lr.scale[j]
		}
		scores[i] = sigmoid(z)
	}
	return scores, nil
}

// Predict returns 1 where the score reaches the configured threshold.
func (lr *LogisticRegression) Predict(features [][]float64) ([]int, error) {
	scores, err := lr.PredictScore(features)
	if err != nil {
		return nil, err
	}
	return threshold(scores, lr.config.Threshold), nil
}

// Coefficients returns the fitted weights on the standardized scale.
func (lr *LogisticRegression) Coefficients() ([]float64, float64) {
	lr.acquirePredictLock()
	defer lr.releasePredictLock()
	if lr.weights == nil {
		return nil, 0
	}
	return mat.Col(nil, 0, lr.weights), lr.bias
}

// standardization returns per-column mean and standard deviation. Constant
// columns get a scale of 1.
func standardization(features [][]float64, width int) (mean, scale []float64) {
	mean = make([]float64, width)
	scale = make([]float64, width)
	col := make([]float64, len(features))
	for j := 0; j < width; j++ {
		for i, row := range features {
			col[i] = row[j]
		}
		m, sd := stat.PopMeanStdDev(col, nil)
		mean[j] = m
		if sd == 0 || math.IsNaN(sd) {
			sd = 1
		}
		scale[j] = sd
	}
	return mean, scale
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func threshold(scores []float64, t float64) []int {
	out := make([]int, len(scores))
	for i, s := range scores {
		if s >= t {
			out[i] = 1
		}
	}
	return out
}
