// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

/*
Package supervisor runs the long-lived services of "roastery serve" under a
suture v4 supervisor tree.

# Overview

	RootSupervisor ("roastery")
	├── PipelineSupervisor ("pipeline-layer")
	│   ├── PipelineService      scheduled and triggered runs
	│   └── EventHandlerService  API cache invalidation on run events
	└── APISupervisor ("api-layer")
	    └── APIService

A crash in the scheduler restarts only the pipeline layer; the API keeps
serving the artifacts of the last completed run.

# Logging

Supervisor events (service start, failure, restart, backoff) are logged
through sutureslog, bridged to the global zerolog logger with
logging.NewSlogLogger.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddPipelineService(services.NewPipelineService(orch, cfg, logging.Logger()))
	tree.AddAPIService(services.NewAPIService(server, 10*time.Second))
	return tree.Serve(ctx)
*/
package supervisor
