// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package features

import (
	"cmp"
	"slices"

	"github.com/tomtom215/roastery/internal/models"
)

// groupedOrder returns input positions sorted by (group, timestamp,
// transaction id, position) and the group value of each position.
func groupedOrder(records []models.Transaction, groupKey models.Field) ([]int, []string) {
	groups := make([]string, len(records))
	order := make([]int, len(records))
	for i := range records {
		groups[i], _ = records[i].Key(groupKey)
		order[i] = i
	}

	slices.SortFunc(order, func(a, b int) int {
		if c := cmp.Compare(groups[a], groups[b]); c != 0 {
			return c
		}
		if c := records[a].Timestamp.Compare(records[b].Timestamp); c != 0 {
			return c
		}
		if c := cmp.Compare(records[a].TransactionID, records[b].TransactionID); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return order, groups
}
