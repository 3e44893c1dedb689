// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package modeling

// Classifier names.
const (
	ModelLogisticRegression = "lr"
	ModelRandomForest       = "rf"
)

// ClassifierConfig groups the configuration of every classifier adapter.
type ClassifierConfig struct {
	Logistic LogisticConfig `koanf:"logistic"`
	Forest   ForestConfig   `koanf:"forest"`
}

// LogisticConfig configures LogisticRegression.
type LogisticConfig struct {
	LearningRate float64 `koanf:"learning_rate" validate:"gt=0"`
	Iterations   int     `koanf:"iterations" validate:"min=1"`
	L2           float64 `koanf:"l2" validate:"min=0"`
	Threshold    float64 `koanf:"threshold" validate:"gt=0,lt=1"`
	Balanced     bool    `koanf:"balanced"`
}

// ForestConfig configures RandomForest.
type ForestConfig struct {
	Trees      int     `koanf:"trees" json:"trees" validate:"min=1"`
	MaxDepth   int     `koanf:"max_depth" json:"max_depth" validate:"min=1"`
	MinLeaf    int     `koanf:"min_leaf" json:"min_leaf" validate:"min=1"`
	MinSplit   int     `koanf:"min_split" json:"min_split" validate:"min=2"`
	MaxSamples int     `koanf:"max_samples" json:"max_samples" validate:"min=1"`
	Seed       int64   `koanf:"seed" json:"seed"`
	Threshold  float64 `koanf:"threshold" json:"threshold" validate:"gt=0,lt=1"`
	Balanced   bool    `koanf:"balanced" json:"balanced"`
}

// TuneConfig configures the random forest grid search. Empty candidate
// lists keep the base ForestConfig value.
type TuneConfig struct {
	Enabled  bool  `koanf:"enabled"`
	Trees    []int `koanf:"trees" validate:"dive,min=1"`
	MaxDepth []int `koanf:"max_depth" validate:"dive,min=1"`
	MinSplit []int `koanf:"min_split" validate:"dive,min=2"`
	Folds    int   `koanf:"folds" validate:"min=2"`
}

// ForecastConfig configures HoltForecaster.
type ForecastConfig struct {
	// Alpha is the level smoothing factor in (0, 1].
	Alpha float64 `koanf:"alpha" validate:"gt=0,lte=1"`

	// Beta is the trend smoothing factor in [0, 1].
	Beta float64 `koanf:"beta" validate:"min=0,lte=1"`

	// SeasonLength is the number of periods in one seasonal cycle. Seasonal
	// adjustment is applied once two full cycles are available.
	SeasonLength int `koanf:"season_length" validate:"min=1"`

	// IntervalWidth is the coverage of the prediction interval.
	IntervalWidth float64 `koanf:"interval_width" validate:"gt=0,lt=1"`
}

// DefaultClassifierConfig returns the default classifier configuration.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		Logistic: LogisticConfig{
			LearningRate: 0.1,
			Iterations:   500,
			L2:           0.001,
			Threshold:    0.5,
			Balanced:     true,
		},
		Forest: ForestConfig{
			Trees:      50,
			MaxDepth:   4,
			MinLeaf:    5,
			MinSplit:   2,
			MaxSamples: 20000,
			Seed:       42,
			Threshold:  0.5,
			Balanced:   true,
		},
	}
}

// DefaultTuneConfig returns the default grid: 12 candidates over 3
// stratified folds.
func DefaultTuneConfig() TuneConfig {
	return TuneConfig{
		Enabled:  true,
		Trees:    []int{50, 100},
		MaxDepth: []int{4, 6, 10},
		MinSplit: []int{2, 5},
		Folds:    3,
	}
}

// DefaultForecastConfig returns the default forecaster configuration.
func DefaultForecastConfig() ForecastConfig {
	return ForecastConfig{
		Alpha:         0.3,
		Beta:          0.1,
		SeasonLength:  7,
		IntervalWidth: 0.8,
	}
}
