// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

/*
Package config loads the pipeline configuration.

Configuration is loaded once at startup and passed down by value. Nothing in
the pipeline reads global settings.

# Configuration Sources

Three layers are merged with koanf, later layers winning:

 1. Defaults from defaultConfig()
 2. A YAML file: CONFIG_PATH, or the first of DefaultConfigPaths that exists
 3. Environment variables listed in envMappings

# Environment Variables

Source and artifacts:
  - ROASTERY_SOURCE_PATH: raw transactions (CSV or DuckDB file)
  - ROASTERY_SOURCE_FORMAT: auto, csv or duckdb (default: auto)
  - ARTIFACT_DIR: output directory (default: ./artifacts)
  - LEDGER_ENABLED, LEDGER_PATH: stage ledger (default: enabled, ./artifacts/.ledger)

Pipeline:
  - FEATURES_REQUESTED: comma-separated feature names
  - RECOMMEND_METHOD: cosine or cooccurrence (default: cosine)
  - RECOMMEND_TOP_K: neighbors per product (default: 5)
  - CHURN_MODELS: comma-separated classifier names (default: lr,rf)
  - FORECAST_HORIZON: days to forecast (default: 30)
  - EVALUATE_K, HOLDOUT_FRACTION: ranking evaluation settings
  - PIPELINE_INTERVAL: re-run interval in serve mode (default: 1h)

Logging and serving:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER
  - HTTP_HOST, HTTP_PORT, CORS_ORIGINS
  - METRICS_ENABLED

# Validation

Validate runs the struct tags through the validation package first and then
the cross-field rules that tags cannot express.

# Example

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}
	logging.Init(cfg.Logging.LoggerConfig())
*/
package config
