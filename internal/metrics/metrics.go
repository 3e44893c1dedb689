// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package metrics

import (
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

var (
	// Pipeline Metrics
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roastery_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"stage"},
	)

	StageRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roastery_stage_runs_total",
			Help: "Total number of stage executions by outcome",
		},
		[]string{"stage", "status"},
	)

	BranchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roastery_branch_failures_total",
			Help: "Total number of isolated branch failures",
		},
		[]string{"stage"},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roastery_runs_total",
			Help: "Total number of pipeline runs by outcome",
		},
		[]string{"status"},
	)

	LastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roastery_last_success_timestamp_seconds",
			Help: "Unix time of the last run without failed stages",
		},
	)

	ReportValue = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "roastery_report_value",
			Help: "Latest value of each evaluation report key",
		},
		[]string{"metric"},
	)

	// Data Metrics
	RowsLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roastery_rows_loaded",
			Help: "Number of transactions in the last loaded raw table",
		},
	)

	RecommendationsEmitted = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roastery_recommendations_emitted",
			Help: "Number of recommendation rows produced by the last run",
		},
	)

	ArtifactBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "roastery_artifact_bytes",
			Help: "Size of the last written artifact in bytes",
		},
		[]string{"artifact"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roastery_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roastery_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	TriggersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roastery_triggers_total",
			Help: "Manually triggered runs by result",
		},
		[]string{"result"}, // "accepted", "coalesced", "rate_limited"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)
)

// RecordStage records one stage execution.
func RecordStage(stage, status string, duration time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	StageRuns.WithLabelValues(stage, status).Inc()
	if status == StatusFailed {
		BranchFailures.WithLabelValues(stage).Inc()
	}
}

// RecordRun records the outcome of a run. A run without failed stages also
// moves the last-success gauge.
func RecordRun(failedStages int, finishedAt time.Time) {
	if failedStages == 0 {
		RunsTotal.WithLabelValues(StatusSucceeded).Inc()
		LastSuccess.Set(float64(finishedAt.Unix()))
		return
	}
	RunsTotal.WithLabelValues(StatusFailed).Inc()
}

// RecordReport mirrors a metric report. Keys absent from the new report are
// removed so the gauge vector never shows stale values.
func RecordReport(report map[string]float64) {
	ReportValue.Reset()
	for _, key := range slices.Sorted(maps.Keys(report)) {
		ReportValue.WithLabelValues(key).Set(report[key])
	}
}

// RecordRowsLoaded sets the raw table size.
func RecordRowsLoaded(n int) {
	RowsLoaded.Set(float64(n))
}

// RecordRecommendations sets the number of emitted recommendation rows.
func RecordRecommendations(n int) {
	RecommendationsEmitted.Set(float64(n))
}

// RecordArtifact sets the size of a written artifact.
func RecordArtifact(name string, sizeBytes int64) {
	ArtifactBytes.WithLabelValues(name).Set(float64(sizeBytes))
}

// RecordDBQuery records a DuckDB query.
func RecordDBQuery(operation string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordAPIRequest records an API request.
func RecordAPIRequest(method, route string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordTrigger records a manual trigger attempt.
func RecordTrigger(result string) {
	TriggersTotal.WithLabelValues(result).Inc()
}

// RecordBreakerState sets the circuit breaker state gauge.
func RecordBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordBreakerRequest counts a call through a circuit breaker.
func RecordBreakerRequest(name, result string) {
	CircuitBreakerRequests.WithLabelValues(name, result).Inc()
}
