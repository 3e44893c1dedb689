// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

/*
Package logging provides the process-wide zerolog logger used by every
Roastery component.

The logger is initialized once from the logging section of the loaded
configuration and is then read through package-level helpers:

	logging.Init(logging.Config{Level: "info", Format: "console"})
	logging.Info().Str("stage", "features_built").Msg("Stage completed")

Pipeline code logs through a run-scoped context so every line emitted while a
run is in flight carries the run identifier and, inside a branch, the stage
name:

	ctx = logging.ContextWithRunID(ctx, logging.GenerateRunID())
	ctx = logging.ContextWithStage(ctx, "recs_built")
	logging.Ctx(ctx).Info().Int("items", n).Msg("Similarity matrix built")

Libraries that only speak log/slog (the supervisor's sutureslog handler) are
bridged with NewSlogLogger, which forwards slog records to zerolog.
*/
package logging
