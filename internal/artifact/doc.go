// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

// Package artifact persists pipeline outputs.
//
// The package has three parts:
//
//   - Store writes CSV tables under the artifact directory. Every write goes
//     to a temporary file in the same directory and is renamed into place,
//     so a failed write never leaves a partial artifact behind. Tables reject
//     NaN and Inf cells before anything touches the disk.
//   - Snapshots are gob-encoded, gzip-compressed copies of in-memory values
//     (the feature table) with a SHA-256 checksum and versioned file names.
//   - Ledger records, per stage, the fingerprint of the inputs a stage last
//     ran on together with the checksums of what it wrote. It is backed by
//     BadgerDB and also keeps a short history of runs.
//
// # Manifest
//
// Each run ends with manifest.json listing every artifact written, its row
// count, size and checksum. Verify re-reads the files and reports
// ErrChecksumMismatch when a file changed after the run.
//
// # Thread Safety
//
// Store and Ledger are safe for concurrent use. Distinct stages write
// distinct artifact names, so concurrent branches never contend for a file.
package artifact
