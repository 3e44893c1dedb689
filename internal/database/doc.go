// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

// Package database loads raw transactions through an embedded DuckDB.
//
// # Overview
//
// DuckDB reads the raw export directly: CSV files through read_csv_auto and
// DuckDB database files by attaching them read-only. Cleaning happens in SQL
// before rows reach Go:
//
//   - column names are trimmed, lowercased and spaces become underscores
//   - rows without a transaction id or a parseable date are dropped
//   - transaction_date and an optional transaction_time are combined
//   - quantities, prices and churn flags are cast, missing values become 0
//
// Revenue in the source is ignored; models.NewTransactionTable recomputes it.
//
// # Data Quality
//
// Every load records LoadStats (raw rows, dropped rows, duplicate ids,
// non-positive quantities or prices) and logs them. They are informational
// and never fail a load.
//
// # Connections
//
// A DB holds one in-memory DuckDB instance. Each load runs on a dedicated
// connection so the attach/detach of a database file never leaks into
// another load.
package database
