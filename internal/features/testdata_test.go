// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package features

import (
	"slices"
	"time"

	"github.com/tomtom215/roastery/internal/models"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 9, 0, 0, 0, time.UTC)
}

func allColumns() models.ColumnSet {
	return models.NewColumnSet(slices.Concat(models.RequiredFields, []models.Field{models.FieldProductCategory, models.FieldChurnFlag})...)
}

// sampleTable has two stores, three categories and records deliberately out
// of time order.
func sampleTable() *models.TransactionTable {
	return models.NewTransactionTable(allColumns(), []models.Transaction{
		{TransactionID: "t3", ProductID: "p1", ProductCategory: "coffee", StoreLocation: "s1", Timestamp: day(3), Quantity: 1, UnitPrice: 3},
		{TransactionID: "t1", ProductID: "p1", ProductCategory: "coffee", StoreLocation: "s1", Timestamp: day(1), Quantity: 2, UnitPrice: 3},
		{TransactionID: "t2", ProductID: "p2", ProductCategory: "tea", StoreLocation: "s1", Timestamp: day(2), Quantity: 1, UnitPrice: 5, ChurnFlag: 1},
		{TransactionID: "t4", ProductID: "p3", ProductCategory: "bakery", StoreLocation: "s2", Timestamp: day(6), Quantity: 4, UnitPrice: 2.5},
		{TransactionID: "t5", ProductID: "p1", ProductCategory: "coffee", StoreLocation: "s2", Timestamp: day(7), Quantity: 0, UnitPrice: 3},
		{TransactionID: "t6", ProductID: "p2", ProductCategory: "tea", StoreLocation: "s2", Timestamp: day(8), Quantity: 2, UnitPrice: 5},
	})
}
