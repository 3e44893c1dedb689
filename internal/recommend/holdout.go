// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package recommend

import (
	"hash/fnv"
	"slices"

	"github.com/tomtom215/roastery/internal/models"
)

const holdoutBuckets = 10000

// SplitHoldout assigns whole transactions to a training or holdout table by
// hashing the transaction id, so the split is stable across runs and never
// separates the lines of one basket. A fraction <= 0 returns the input table
// as training data and a nil holdout.
func SplitHoldout(table *models.TransactionTable, fraction float64) (train, holdout *models.TransactionTable) {
	if fraction <= 0 {
		return table, nil
	}
	cut := uint64(fraction * holdoutBuckets)

	var trainRecs, holdRecs []models.Transaction
	for i := range table.Records {
		if holdoutBucket(table.Records[i].TransactionID) < cut {
			holdRecs = append(holdRecs, table.Records[i])
		} else {
			trainRecs = append(trainRecs, table.Records[i])
		}
	}
	return &models.TransactionTable{Columns: table.Columns, Records: trainRecs},
		&models.TransactionTable{Columns: table.Columns, Records: holdRecs}
}

func holdoutBucket(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64() % holdoutBuckets
}

// GroundTruth returns, for every product in the given baskets, the sorted set
// of other products bought in the same transaction.
func GroundTruth(table *models.TransactionTable) map[string][]string {
	truth := make(map[string][]string)
	if table == nil {
		return truth
	}

	baskets := make(map[string][]string)
	var order []string
	for i := range table.Records {
		rec := &table.Records[i]
		if _, ok := baskets[rec.TransactionID]; !ok {
			order = append(order, rec.TransactionID)
		}
		if !slices.Contains(baskets[rec.TransactionID], rec.ProductID) {
			baskets[rec.TransactionID] = append(baskets[rec.TransactionID], rec.ProductID)
		}
	}

	for _, tx := range order {
		items := baskets[tx]
		for _, a := range items {
			if _, ok := truth[a]; !ok {
				truth[a] = []string{}
			}
			for _, b := range items {
				if a != b {
					truth[a] = append(truth[a], b)
				}
			}
		}
	}
	for id, related := range truth {
		slices.Sort(related)
		truth[id] = slices.Compact(related)
	}
	return truth
}
