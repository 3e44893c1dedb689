// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

/*
Package metrics provides Prometheus instrumentation for the pipeline.

Collectors are package-level and registered with the default registry
through promauto, so any package can record without plumbing. The HTTP
API exposes them on /metrics in serve mode.

# Available Metrics

Pipeline:
  - roastery_stage_duration_seconds{stage}: stage wall time
  - roastery_stage_runs_total{stage,status}: status is succeeded, failed or skipped
  - roastery_branch_failures_total{stage}: isolated branch failures
  - roastery_runs_total{status}: completed runs
  - roastery_last_success_timestamp_seconds: end of the last fully successful run
  - roastery_report_value{metric}: latest value of every report key

Data:
  - roastery_rows_loaded: rows in the last raw table
  - roastery_recommendations_emitted: recommendation rows in the last run
  - roastery_artifact_bytes{artifact}: size of the last written artifact
  - duckdb_query_duration_seconds{operation}

Serving:
  - roastery_api_requests_total{method,route,status}
  - roastery_api_request_duration_seconds{method,route}
  - circuit_breaker_state{name}, circuit_breaker_requests_total{name,result}
  - roastery_triggers_total{result}: manual run triggers, accepted or limited
*/
package metrics
