// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package features

import (
	"errors"
	"slices"

	"github.com/tomtom215/roastery/internal/logging"
	"github.com/tomtom215/roastery/internal/models"
)

// Feature names accepted by BuildFeatureMatrix.
const (
	FeatureCalendar    = "calendar"
	FeatureGrowth      = "growth"
	FeatureCategoryMix = "category_mix"
	FeatureRollingMean = "rolling_mean"
)

// AllFeatures lists every known feature in the order columns are emitted.
var AllFeatures = []string{FeatureCalendar, FeatureGrowth, FeatureRollingMean, FeatureCategoryMix}

// Base columns are always present in a feature table.
var baseColumns = []string{"transaction_qty", "unit_price", "revenue"}

// Options parameterizes BuildFeatureMatrix.
type Options struct {
	GroupKey          models.Field
	GrowthLag         int
	RollingWindow     int
	RollingMinPeriods int
}

// DefaultOptions groups by store with a one-period lag and a seven-record
// rolling window.
func DefaultOptions() Options {
	return Options{
		GroupKey:          models.FieldStoreLocation,
		GrowthLag:         1,
		RollingWindow:     7,
		RollingMinPeriods: 1,
	}
}

// SkippedFeature is a requested feature whose input column was absent.
type SkippedFeature struct {
	Name    string       `json:"name"`
	Missing models.Field `json:"missing"`
}

// BuildResult is the output of BuildFeatureMatrix.
type BuildResult struct {
	Table   *models.FeatureTable
	Applied []string
	Skipped []SkippedFeature
	Ignored []string
}

// BuildFeatureMatrix composes the requested features into a feature table
// with one row per input record, in input order. An empty request selects
// every feature. Category mix is computed per group entity and broadcast
// onto each of the entity's rows as mix_<category> columns.
func BuildFeatureMatrix(table *models.TransactionTable, requested []string, opts Options) (*BuildResult, error) {
	const op = "build_feature_matrix"
	if table == nil {
		return nil, invalidParam(op, "records", "table is nil")
	}

	wanted, ignored := resolveRequested(requested)
	if len(ignored) > 0 {
		logging.Warn().Strs("ignored", ignored).Msg("Ignoring unknown feature names")
	}
	for _, name := range wanted {
		if name != FeatureCalendar {
			if err := requireKey(op, table, opts.GroupKey); err != nil {
				return nil, err
			}
			break
		}
	}

	n := len(table.Records)
	result := &BuildResult{Ignored: ignored}
	columns := slices.Clone(baseColumns)
	values := make([][]float64, n)
	for i := range table.Records {
		rec := &table.Records[i]
		values[i] = []float64{rec.Quantity, rec.UnitPrice, rec.Revenue}
	}

	skip := func(name string, err error) error {
		var mce *MissingColumnError
		if errors.As(err, &mce) {
			result.Skipped = append(result.Skipped, SkippedFeature{Name: name, Missing: mce.Field})
			logging.Info().Str("feature", name).Str("missing", string(mce.Field)).Msg("Skipping feature with absent input column")
			return nil
		}
		return err
	}

	for _, name := range wanted {
		var err error
		switch name {
		case FeatureCalendar:
			err = appendCalendar(table, &columns, values)
		case FeatureGrowth:
			err = appendGrowth(table, opts, &columns, values)
		case FeatureRollingMean:
			err = appendRolling(table, opts, &columns, values)
		case FeatureCategoryMix:
			err = appendCategoryMix(table, opts, &columns, values)
		}
		if err != nil {
			if err = skip(name, err); err != nil {
				return nil, err
			}
			continue
		}
		result.Applied = append(result.Applied, name)
	}

	ft := &models.FeatureTable{
		Columns:  columns,
		Rows:     make([]models.FeatureRow, n),
		HasLabel: table.Columns.Has(models.FieldChurnFlag),
	}
	for i := range table.Records {
		rec := &table.Records[i]
		ft.Rows[i] = models.FeatureRow{
			TransactionID: rec.TransactionID,
			ProductID:     rec.ProductID,
			StoreLocation: rec.StoreLocation,
			Timestamp:     rec.Timestamp,
			Label:         rec.ChurnFlag,
			Values:        values[i],
		}
	}
	result.Table = ft
	return result, nil
}

// resolveRequested returns the known requested features in emission order
// and the unknown names in request order.
func resolveRequested(requested []string) (wanted, ignored []string) {
	if len(requested) == 0 {
		return slices.Clone(AllFeatures), nil
	}
	for _, name := range AllFeatures {
		if slices.Contains(requested, name) {
			wanted = append(wanted, name)
		}
	}
	for _, name := range requested {
		if !slices.Contains(AllFeatures, name) && !slices.Contains(ignored, name) {
			ignored = append(ignored, name)
		}
	}
	return wanted, ignored
}

func appendCalendar(table *models.TransactionTable, columns *[]string, values [][]float64) error {
	rows, err := AddCalendarFeatures(table, models.FieldTimestamp)
	if err != nil {
		return err
	}
	*columns = append(*columns, "dow", "month", "day", "is_weekend")
	for i, r := range rows {
		weekend := 0.0
		if r.IsWeekend {
			weekend = 1
		}
		values[i] = append(values[i], float64(r.DayOfWeek), float64(r.Month), float64(r.Day), weekend)
	}
	return nil
}

func appendGrowth(table *models.TransactionTable, opts Options, columns *[]string, values [][]float64) error {
	rows, err := ComputeRevenueGrowth(table, opts.GroupKey, opts.GrowthLag)
	if err != nil {
		return err
	}
	growth := make([]float64, len(values))
	for _, r := range rows {
		growth[r.Index] = r.Growth
	}
	*columns = append(*columns, "revenue_growth")
	for i := range values {
		values[i] = append(values[i], growth[i])
	}
	return nil
}

func appendRolling(table *models.TransactionTable, opts Options, columns *[]string, values [][]float64) error {
	rows, err := RollingMean(table, opts.GroupKey, models.FieldRevenue, opts.RollingWindow, opts.RollingMinPeriods)
	if err != nil {
		return err
	}
	means := make([]float64, len(values))
	for _, r := range rows {
		means[r.Index] = r.Mean
	}
	*columns = append(*columns, "revenue_rolling_mean")
	for i := range values {
		values[i] = append(values[i], means[i])
	}
	return nil
}

func appendCategoryMix(table *models.TransactionTable, opts Options, columns *[]string, values [][]float64) error {
	mix, err := ComputeCategoryMix(table, opts.GroupKey, models.FieldProductCategory, models.FieldRevenue)
	if err != nil {
		return err
	}
	for _, c := range mix.Categories {
		*columns = append(*columns, "mix_"+c)
	}
	for i := range table.Records {
		entity, _ := table.Records[i].Key(opts.GroupKey)
		ratios, _ := mix.Row(entity)
		values[i] = append(values[i], ratios...)
	}
	return nil
}
