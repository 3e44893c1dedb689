// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package modeling

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/tomtom215/roastery/internal/models"
)

// ModelHolt is the forecaster identifier.
const ModelHolt = "holt"

// HoltForecaster fits Holt's linear trend method to a daily series after
// removing an additive seasonal profile.
type HoltForecaster struct {
	baseModel
	config ForecastConfig

	history  []models.SeriesPoint
	values   []float64
	seasonal []float64
	level    float64
	trend    float64
	sigma    float64
	step     time.Duration
}

// NewHoltForecaster creates an unfitted forecaster.
func NewHoltForecaster(cfg ForecastConfig) *HoltForecaster {
	def := DefaultForecastConfig()
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = def.Alpha
	}
	if cfg.Beta < 0 || cfg.Beta > 1 {
		cfg.Beta = def.Beta
	}
	if cfg.SeasonLength <= 0 {
		cfg.SeasonLength = def.SeasonLength
	}
	if cfg.IntervalWidth <= 0 || cfg.IntervalWidth >= 1 {
		cfg.IntervalWidth = def.IntervalWidth
	}
	return &HoltForecaster{
		baseModel: newBaseModel(ModelHolt),
		config:    cfg,
	}
}

// Fit trains on an evenly spaced series ordered by timestamp.
func (h *HoltForecaster) Fit(ctx context.Context, series []models.SeriesPoint) error {
	h.acquireFitLock()
	defer h.releaseFitLock()

	if len(series) == 0 {
		return fmt.Errorf("holt fit: %w", ErrInsufficientData)
	}
	if contextCancelled(ctx) {
		return ctx.Err()
	}
	for i := 1; i < len(series); i++ {
		if !series[i].Timestamp.After(series[i-1].Timestamp) {
			return fmt.Errorf("holt fit: series not strictly increasing at index %d", i)
		}
	}

	y := make([]float64, len(series))
	for i, p := range series {
		y[i] = p.Value
	}
	seasonal := seasonalProfile(y, h.config.SeasonLength)

	adjusted := make([]float64, len(y))
	for i := range y {
		adjusted[i] = y[i] - seasonal[i%len(seasonal)]
	}

	level := adjusted[0]
	trend := 0.0
	if len(adjusted) > 1 {
		trend = adjusted[1] - adjusted[0]
	}

	fitted := make([]float64, len(y))
	fitted[0] = y[0]
	residuals := make([]float64, 0, len(y))
	for t := 1; t < len(y); t++ {
		forecast := level + trend
		fitted[t] = forecast + seasonal[t%len(seasonal)]
		residuals = append(residuals, y[t]-fitted[t])

		prevLevel := level
		level = h.config.Alpha*adjusted[t] + (1-h.config.Alpha)*(level+trend)
		trend = h.config.Beta*(level-prevLevel) + (1-h.config.Beta)*trend
	}

	sigma := 0.0
	if len(residuals) > 1 {
		sigma = stat.StdDev(residuals, nil)
	}

	step := 24 * time.Hour
	if len(series) > 1 {
		step = series[1].Timestamp.Sub(series[0].Timestamp)
	}

	h.history = append([]models.SeriesPoint(nil), series...)
	h.values = fitted
	h.seasonal = seasonal
	h.level, h.trend, h.sigma = level, trend, sigma
	h.step = step
	h.markFitted()
	return nil
}

// Forecast returns the fitted history followed by horizon future points.
// Intervals widen with the square root of the steps ahead.
func (h *HoltForecaster) Forecast(horizon int) ([]models.ForecastPoint, error) {
	h.acquirePredictLock()
	defer h.releasePredictLock()

	if !h.fitted {
		return nil, ErrNotFitted
	}
	if horizon < 0 {
		return nil, fmt.Errorf("holt forecast: negative horizon %d", horizon)
	}

	z := distuv.UnitNormal.Quantile(0.5 + h.config.IntervalWidth/2)
	n := len(h.history)
	out := make([]models.ForecastPoint, 0, n+horizon)

	for i, p := range h.history {
		half := z * h.sigma
		out = append(out, models.ForecastPoint{
			Timestamp:  p.Timestamp,
			Yhat:       h.values[i],
			YhatLower:  h.values[i] - half,
			YhatUpper:  h.values[i] + half,
			Historical: true,
		})
	}

	last := h.history[n-1].Timestamp
	for step := 1; step <= horizon; step++ {
		t := n - 1 + step
		yhat := h.level + float64(step)*h.trend + h.seasonal[t%len(h.seasonal)]
		half := z * h.sigma * math.Sqrt(float64(step))
		out = append(out, models.ForecastPoint{
			Timestamp: last.Add(time.Duration(step) * h.step),
			Yhat:      yhat,
			YhatLower: yhat - half,
			YhatUpper: yhat + half,
		})
	}
	return out, nil
}

// seasonalProfile returns additive seasonal offsets by position in the cycle,
// or a single zero offset when fewer than two full cycles are available.
func seasonalProfile(y []float64, season int) []float64 {
	if season < 2 || len(y) < 2*season {
		return []float64{0}
	}
	mean := stat.Mean(y, nil)
	sums := make([]float64, season)
	counts := make([]float64, season)
	for i, v := range y {
		sums[i%season] += v
		counts[i%season]++
	}
	profile := make([]float64, season)
	for s := range profile {
		profile[s] = sums[s]/counts[s] - mean
	}
	return profile
}
