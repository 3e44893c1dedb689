// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

// Package main is the entry point for the roastery command.
//
// Roastery turns a point-of-sale transaction export into analytics
// artifacts: an engineered feature table, churn predictions, a daily
// revenue forecast, product-to-product recommendations and an evaluation
// report.
//
// # Commands
//
//	roastery run      execute the pipeline once and exit
//	roastery serve    re-run on a schedule and serve the artifacts over HTTP
//	roastery version  print build information
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Command line flags
//   - Environment variables (SOURCE_PATH, ARTIFACTS_DIR, LOG_LEVEL, ...)
//   - Config file (CONFIG_PATH, ./config.yaml or /etc/roastery/config.yaml)
//   - Built-in defaults
//
// # Exit Codes
//
// run exits 0 when every stage succeeds, 2 when the run is partial (a
// branch failed but features were built), and 1 otherwise.
//
// # Example Usage
//
//	roastery run --source coffee_sales.csv --artifacts ./out
//	roastery serve --source sales.duckdb --table transactions
package main

import (
	"errors"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		os.Exit(1)
	}
}
