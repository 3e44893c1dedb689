// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package modeling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/roastery/internal/models"
)

var (
	// ErrNotFitted is returned when predicting with an unfitted model.
	ErrNotFitted = errors.New("model not fitted")

	// ErrInsufficientData is returned when there is nothing to fit on.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrDimensionMismatch is returned when feature widths or lengths disagree.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInvalidLabel is returned when a training label is not 0 or 1.
	ErrInvalidLabel = errors.New("label must be 0 or 1")
)

// Classifier is a binary classifier.
type Classifier interface {
	// Name returns the short identifier used in artifact and metric names.
	Name() string

	// Fit trains the classifier on row-major features and 0/1 labels.
	Fit(ctx context.Context, features [][]float64, labels []int) error

	// Predict returns hard 0/1 predictions.
	Predict(features [][]float64) ([]int, error)

	// PredictScore returns the probability of the positive class.
	PredictScore(features [][]float64) ([]float64, error)
}

// Forecaster is a univariate daily forecaster.
type Forecaster interface {
	Name() string

	// Fit trains on a series ordered by timestamp.
	Fit(ctx context.Context, series []models.SeriesPoint) error

	// Forecast returns fitted values for the training range followed by
	// horizon future points.
	Forecast(horizon int) ([]models.ForecastPoint, error)
}

// baseModel provides the fit state shared by every adapter.
type baseModel struct {
	name         string
	fitted       bool
	version      int
	lastFittedAt time.Time
	mu           sync.RWMutex
}

func newBaseModel(name string) baseModel {
	return baseModel{name: name}
}

// Name returns the model identifier.
func (b *baseModel) Name() string {
	return b.name
}

// IsFitted returns whether the model has been fitted.
func (b *baseModel) IsFitted() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.fitted
}

// Version returns how many times the model has been fitted.
func (b *baseModel) Version() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

// markFitted must be called while holding the fit lock.
func (b *baseModel) markFitted() {
	b.fitted = true
	b.version++
	b.lastFittedAt = time.Now()
}

func (b *baseModel) acquireFitLock() { b.mu.Lock() }

func (b *baseModel) releaseFitLock() { b.mu.Unlock() }

func (b *baseModel) acquirePredictLock() { b.mu.RLock() }

func (b *baseModel) releasePredictLock() { b.mu.RUnlock() }

// checkMatrix validates a row-major feature matrix and returns its width.
func checkMatrix(features [][]float64) (int, error) {
	if len(features) == 0 {
		return 0, ErrInsufficientData
	}
	width := len(features[0])
	if width == 0 {
		return 0, fmt.Errorf("%w: zero feature columns", ErrInsufficientData)
	}
	for i, row := range features {
		if len(row) != width {
			return 0, fmt.Errorf("%w: row %d has %d columns, want %d", ErrDimensionMismatch, i, len(row), width)
		}
	}
	return width, nil
}

// checkLabels validates binary labels against the row count.
func checkLabels(labels []int, rows int) error {
	if len(labels) != rows {
		return fmt.Errorf("%w: %d rows, %d labels", ErrDimensionMismatch, rows, len(labels))
	}
	for i, y := range labels {
		if y != 0 && y != 1 {
			return fmt.Errorf("%w: row %d has %d", ErrInvalidLabel, i, y)
		}
	}
	return nil
}

func contextCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// NewClassifier returns the classifier registered under name.
func NewClassifier(name string, cfg ClassifierConfig) (Classifier, error) {
	switch name {
	case ModelLogisticRegression:
		return NewLogisticRegression(cfg.Logistic), nil
	case ModelRandomForest:
		return NewRandomForest(cfg.Forest), nil
	}
	return nil, fmt.Errorf("unknown classifier %q", name)
}
