// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

/*
Package api serves the artifacts of the latest pipeline run over HTTP.

The API is read-only apart from the run trigger. Every response uses the
models.APIResponse envelope.

# Endpoints

	GET  /api/v1/health                        liveness and pipeline status
	GET  /api/v1/report                        metrics.csv as a flat map
	GET  /api/v1/runs                          run history from the ledger
	GET  /api/v1/runs/latest                   latest run (ledger or manifest)
	POST /api/v1/runs                          trigger a run (202, 409, 429)
	GET  /api/v1/forecast?days=N               forecast.csv rows
	GET  /api/v1/recommendations/{productID}   neighbors of one product
	GET  /metrics                              Prometheus exposition

# Middleware

Requests pass through a correlation ID middleware (X-Request-ID), chi's
RealIP and Recoverer, go-chi/cors, a per-IP go-chi/httprate limiter, and a
Prometheus request recorder keyed by route pattern.

# Caching

Decoded artifacts are kept in a cache.Cache. A run.completed event from the
events bus clears it; see Handler.InvalidateOnRun.
*/
package api
