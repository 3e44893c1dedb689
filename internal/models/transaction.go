// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package models

import (
	"slices"
	"time"
)

// Field names a column of the transaction table. The values match the
// lowercased column names of the raw export.
type Field string

const (
	FieldTransactionID   Field = "transaction_id"
	FieldProductID       Field = "product_id"
	FieldProductCategory Field = "product_category"
	FieldStoreLocation   Field = "store_location"
	FieldTimestamp       Field = "transaction_date"
	FieldQuantity        Field = "transaction_qty"
	FieldUnitPrice       Field = "unit_price"
	FieldRevenue         Field = "revenue"
	FieldChurnFlag       Field = "churn_flag"
)

// RequiredFields are the columns every source must provide.
var RequiredFields = []Field{
	FieldTransactionID,
	FieldProductID,
	FieldStoreLocation,
	FieldTimestamp,
	FieldQuantity,
	FieldUnitPrice,
}

// Transaction is one sale event.
type Transaction struct {
	TransactionID   string    `json:"transaction_id"`
	ProductID       string    `json:"product_id"`
	ProductCategory string    `json:"product_category,omitempty"`
	StoreLocation   string    `json:"store_location"`
	Timestamp       time.Time `json:"transaction_date"`
	Quantity        float64   `json:"transaction_qty"`
	UnitPrice       float64   `json:"unit_price"`
	Revenue         float64   `json:"revenue"`
	ChurnFlag       int       `json:"churn_flag,omitempty"`
}

// Normalize recomputes Revenue from Quantity and UnitPrice. Revenue supplied
// by a source is never trusted.
func (t *Transaction) Normalize() {
	t.Revenue = t.Quantity * t.UnitPrice
}

// Key returns the string value of a key column.
func (t *Transaction) Key(f Field) (string, bool) {
	switch f {
	case FieldTransactionID:
		return t.TransactionID, true
	case FieldProductID:
		return t.ProductID, true
	case FieldProductCategory:
		return t.ProductCategory, true
	case FieldStoreLocation:
		return t.StoreLocation, true
	}
	return "", false
}

// Value returns the numeric value of a measure column.
func (t *Transaction) Value(f Field) (float64, bool) {
	switch f {
	case FieldQuantity:
		return t.Quantity, true
	case FieldUnitPrice:
		return t.UnitPrice, true
	case FieldRevenue:
		return t.Revenue, true
	case FieldChurnFlag:
		return float64(t.ChurnFlag), true
	}
	return 0, false
}

// ColumnSet is the set of columns a source provided.
type ColumnSet []Field

// NewColumnSet returns a sorted, de-duplicated column set.
func NewColumnSet(fields ...Field) ColumnSet {
	cs := slices.Clone(fields)
	slices.Sort(cs)
	return slices.Compact(cs)
}

// Has reports whether f is present.
func (cs ColumnSet) Has(f Field) bool {
	_, found := slices.BinarySearch(cs, f)
	return found
}

// Missing returns the fields of want that are not present, in input order.
func (cs ColumnSet) Missing(want ...Field) []Field {
	var missing []Field
	for _, f := range want {
		if !cs.Has(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// TransactionTable is the cleaned input consumed by the pipeline core.
type TransactionTable struct {
	Columns ColumnSet
	Records []Transaction
}

// NewTransactionTable normalizes every record and returns a table. Revenue is
// always present because it is derived.
func NewTransactionTable(columns ColumnSet, records []Transaction) *TransactionTable {
	out := make([]Transaction, len(records))
	copy(out, records)
	for i := range out {
		out[i].Normalize()
	}
	cols := append(slices.Clone(columns), FieldRevenue)
	return &TransactionTable{Columns: NewColumnSet(cols...), Records: out}
}

// Len returns the number of records.
func (t *TransactionTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}
