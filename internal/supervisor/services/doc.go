// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

/*
Package services provides suture.Service wrappers for serve mode.

Each wrapper implements suture.Service and fmt.Stringer:

	type Service interface {
	    Serve(ctx context.Context) error
	}

# Available Services

PipelineService:
  - Runs the pipeline on start (optional) and then on a fixed interval
  - Accepts manual triggers, rate limited with golang.org/x/time/rate
  - Keeps the report of the most recent run

EventHandlerService:
  - Runs an events.Handler (for example the API cache invalidator)

APIService:
  - Serves the artifact API and drains it on shutdown
*/
package services
