// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

// Package recommend builds item-to-item product recommendations from baskets.
//
// # Pipeline
//
// A run is rebuilt from scratch every time:
//
//  1. BuildIncidenceMatrix turns transactions into a sparse transaction x item
//     binary matrix. Items are indexed in first-seen order.
//  2. BuildItemSimilarity computes cosine similarity between item columns, or
//     BuildCooccurrence counts shared transactions (AᵗA with a zero diagonal).
//  3. TopKNeighbors keeps the k best neighbors of every item. The diagonal is
//     forced to negative infinity so an item never recommends itself, and ties
//     are broken by ascending neighbor id.
//
// Engine wires the three steps together according to Config.
//
// # Determinism
//
// Similarity values are computed from sorted sparse rows, so the same input
// always yields the same matrix. Pairwise work is split over a bounded worker
// pool where each worker owns a disjoint set of upper-triangle rows; no two
// workers ever write the same cell.
//
// # Evaluation support
//
// SplitHoldout deterministically assigns whole transactions to a training or
// holdout set, and GroundTruth derives the co-purchased items of each product
// from the holdout baskets.
package recommend
