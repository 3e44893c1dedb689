// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package evaluate

import (
	"maps"
	"slices"
)

// Report is a flat mapping from metric name to value.
type Report map[string]float64

// Namespace returns a copy of r with every key prefixed by "<prefix>_".
// An empty prefix returns a plain copy.
func Namespace(prefix string, r Report) Report {
	out := make(Report, len(r))
	for k, v := range r {
		if prefix != "" {
			k = prefix + "_" + k
		}
		out[k] = v
	}
	return out
}

// MergeReports returns the union of reports. On a key collision the later
// report wins; keys unique to any report are always kept.
func MergeReports(reports ...Report) Report {
	out := make(Report)
	for _, r := range reports {
		maps.Copy(out, r)
	}
	return out
}

// Keys returns the metric names in ascending order.
func (r Report) Keys() []string {
	return slices.Sorted(maps.Keys(r))
}
