// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package features

import (
	"slices"

	"github.com/tomtom215/roastery/internal/models"
)

// CategoryMix is a pivot of per-entity category shares. Ratios[i][j] is the
// share of Entities[i]'s total value that falls in Categories[j].
type CategoryMix struct {
	Entities   []string
	Categories []string
	Ratios     [][]float64

	index map[string]int
}

// Row returns the ratios of one entity.
func (m *CategoryMix) Row(entity string) ([]float64, bool) {
	i, ok := m.index[entity]
	if !ok {
		return nil, false
	}
	return m.Ratios[i], true
}

// ComputeCategoryMix aggregates valueKey by (entity, category) and by entity,
// and divides the two. The pivot has one row per distinct entity and one
// column per distinct category observed anywhere in the table, both sorted
// ascending. Combinations with no records are 0, and an entity whose total is
// 0 has all-zero ratios.
func ComputeCategoryMix(table *models.TransactionTable, entityKey, categoryKey, valueKey models.Field) (*CategoryMix, error) {
	const op = "compute_category_mix"
	if err := requireKey(op, table, entityKey); err != nil {
		return nil, err
	}
	if !table.Columns.Has(categoryKey) {
		return nil, &MissingColumnError{Op: op, Field: categoryKey}
	}
	if err := requireValue(op, table, valueKey); err != nil {
		return nil, err
	}

	type cell struct{ entity, category string }
	byCell := make(map[cell]float64)
	byEntity := make(map[string]float64)
	categorySet := make(map[string]struct{})

	for i := range table.Records {
		rec := &table.Records[i]
		entity, _ := rec.Key(entityKey)
		category, _ := rec.Key(categoryKey)
		value, _ := rec.Value(valueKey)
		byCell[cell{entity, category}] += value
		byEntity[entity] += value
		categorySet[category] = struct{}{}
	}

	entities := make([]string, 0, len(byEntity))
	for e := range byEntity {
		entities = append(entities, e)
	}
	slices.Sort(entities)
	categories := make([]string, 0, len(categorySet))
	for c := range categorySet {
		categories = append(categories, c)
	}
	slices.Sort(categories)

	mix := &CategoryMix{
		Entities:   entities,
		Categories: categories,
		Ratios:     make([][]float64, len(entities)),
		index:      make(map[string]int, len(entities)),
	}
	for i, e := range entities {
		mix.index[e] = i
		row := make([]float64, len(categories))
		total := byEntity[e]
		if total != 0 {
			for j, c := range categories {
				row[j] = byCell[cell{e, c}] / total
			}
		}
		mix.Ratios[i] = row
	}
	return mix, nil
}
