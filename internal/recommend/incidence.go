// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package recommend

import (
	"fmt"
	"slices"

	"github.com/tomtom215/roastery/internal/models"
)

// IncidenceMatrix is a sparse binary transaction x item matrix. Only non-zero
// entries are stored: Rows[t] holds the ascending item indices present in
// transaction Transactions[t], and Columns[i] holds the ascending transaction
// indices that contain item Items[i].
type IncidenceMatrix struct {
	Transactions []string
	Items        []string
	Rows         [][]int
	Columns      [][]int

	itemIndex map[string]int
}

// ItemIndex returns the column index of an item id.
func (m *IncidenceMatrix) ItemIndex(id string) (int, bool) {
	i, ok := m.itemIndex[id]
	return i, ok
}

// At reports whether item i appears in transaction t.
func (m *IncidenceMatrix) At(t, i int) bool {
	_, found := slices.BinarySearch(m.Rows[t], i)
	return found
}

// NonZero returns the number of stored entries.
func (m *IncidenceMatrix) NonZero() int {
	n := 0
	for _, r := range m.Rows {
		n += len(r)
	}
	return n
}

// BuildIncidenceMatrix constructs the transaction x item incidence structure.
// Transactions and items are both indexed in first-seen order. Repeated
// (transaction, item) pairs collapse to a single entry.
func BuildIncidenceMatrix(table *models.TransactionTable, transactionKey, itemKey models.Field) (*IncidenceMatrix, error) {
	for _, f := range []models.Field{transactionKey, itemKey} {
		if !table.Columns.Has(f) {
			return nil, fmt.Errorf("build incidence matrix: column %q not present in input", f)
		}
	}

	m := &IncidenceMatrix{itemIndex: make(map[string]int)}
	txIndex := make(map[string]int)

	for i := range table.Records {
		rec := &table.Records[i]
		txID, ok := rec.Key(transactionKey)
		if !ok {
			return nil, fmt.Errorf("build incidence matrix: %q is not a key column", transactionKey)
		}
		itemID, ok := rec.Key(itemKey)
		if !ok {
			return nil, fmt.Errorf("build incidence matrix: %q is not a key column", itemKey)
		}

		t, seen := txIndex[txID]
		if !seen {
			t = len(m.Transactions)
			txIndex[txID] = t
			m.Transactions = append(m.Transactions, txID)
			m.Rows = append(m.Rows, nil)
		}
		item, seen := m.itemIndex[itemID]
		if !seen {
			item = len(m.Items)
			m.itemIndex[itemID] = item
			m.Items = append(m.Items, itemID)
			m.Columns = append(m.Columns, nil)
		}

		pos, found := slices.BinarySearch(m.Rows[t], item)
		if found {
			continue
		}
		m.Rows[t] = slices.Insert(m.Rows[t], pos, item)
		m.Columns[item] = append(m.Columns[item], t)
	}

	// Transactions are visited in record order, which is not necessarily
	// ascending transaction index once a transaction reappears later.
	for _, col := range m.Columns {
		slices.Sort(col)
	}
	return m, nil
}
