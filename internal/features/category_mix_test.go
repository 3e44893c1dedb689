// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package features

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/tomtom215/roastery/internal/models"
)

func TestComputeCategoryMix(t *testing.T) {
	t.Parallel()

	mix, err := ComputeCategoryMix(sampleTable(), models.FieldStoreLocation, models.FieldProductCategory, models.FieldRevenue)
	if err != nil {
		t.Fatalf("ComputeCategoryMix() error = %v", err)
	}

	if !slices.Equal(mix.Entities, []string{"s1", "s2"}) {
		t.Errorf("Entities = %v", mix.Entities)
	}
	if !slices.Equal(mix.Categories, []string{"bakery", "coffee", "tea"}) {
		t.Errorf("Categories = %v", mix.Categories)
	}

	// s1: coffee 6+3, tea 5 -> total 14. s2: bakery 10, coffee 0, tea 10 -> total 20.
	s1, _ := mix.Row("s1")
	wantS1 := []float64{0, 9.0 / 14.0, 5.0 / 14.0}
	s2, _ := mix.Row("s2")
	wantS2 := []float64{0.5, 0, 0.5}
	for j := range wantS1 {
		if math.Abs(s1[j]-wantS1[j]) > 1e-12 {
			t.Errorf("s1[%d] = %v, want %v", j, s1[j], wantS1[j])
		}
		if math.Abs(s2[j]-wantS2[j]) > 1e-12 {
			t.Errorf("s2[%d] = %v, want %v", j, s2[j], wantS2[j])
		}
	}
}

func TestComputeCategoryMix_RowsSumToOneOrZero(t *testing.T) {
	t.Parallel()

	table := models.NewTransactionTable(allColumns(), []models.Transaction{
		{TransactionID: "a", ProductCategory: "x", StoreLocation: "s1", Quantity: 3, UnitPrice: 0.1},
		{TransactionID: "b", ProductCategory: "y", StoreLocation: "s1", Quantity: 7, UnitPrice: 0.3},
		{TransactionID: "c", ProductCategory: "z", StoreLocation: "s1", Quantity: 1, UnitPrice: 1.7},
		{TransactionID: "d", ProductCategory: "x", StoreLocation: "s2", Quantity: 0, UnitPrice: 4},
		{TransactionID: "e", ProductCategory: "y", StoreLocation: "s3", Quantity: 2, UnitPrice: 1},
	})

	mix, err := ComputeCategoryMix(table, models.FieldStoreLocation, models.FieldProductCategory, models.FieldRevenue)
	if err != nil {
		t.Fatal(err)
	}
	if len(mix.Ratios) != 3 || len(mix.Categories) != 3 {
		t.Fatalf("pivot shape = %dx%d, want 3x3", len(mix.Ratios), len(mix.Categories))
	}

	for i, row := range mix.Ratios {
		sum := 0.0
		allZero := true
		for _, v := range row {
			sum += v
			if v != 0 {
				allZero = false
			}
		}
		if mix.Entities[i] == "s2" {
			if !allZero {
				t.Errorf("zero-revenue store must have all-zero ratios, got %v", row)
			}
			continue
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("store %s ratios sum to %v", mix.Entities[i], sum)
		}
	}
}

func TestComputeCategoryMix_MissingColumns(t *testing.T) {
	t.Parallel()

	noCategory := models.NewTransactionTable(models.NewColumnSet(models.RequiredFields...), nil)
	_, err := ComputeCategoryMix(noCategory, models.FieldStoreLocation, models.FieldProductCategory, models.FieldRevenue)
	var mce *MissingColumnError
	if !errors.As(err, &mce) || mce.Field != models.FieldProductCategory {
		t.Errorf("expected MissingColumnError for product_category, got %v", err)
	}

	noStore := models.NewTransactionTable(models.NewColumnSet(models.FieldProductCategory), nil)
	_, err = ComputeCategoryMix(noStore, models.FieldStoreLocation, models.FieldProductCategory, models.FieldRevenue)
	if !errors.Is(err, ErrMissingKey) {
		t.Errorf("expected ErrMissingKey, got %v", err)
	}
}
