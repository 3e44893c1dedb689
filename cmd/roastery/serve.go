// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomtom215/roastery/internal/api"
	"github.com/tomtom215/roastery/internal/cache"
	"github.com/tomtom215/roastery/internal/config"
	"github.com/tomtom215/roastery/internal/events"
	"github.com/tomtom215/roastery/internal/logging"
	"github.com/tomtom215/roastery/internal/pipeline"
	"github.com/tomtom215/roastery/internal/supervisor"
	"github.com/tomtom215/roastery/internal/supervisor/services"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline on a schedule and serve its artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	cmd.Flags().String("host", "", "HTTP listen host")
	cmd.Flags().Int("port", 0, "HTTP listen port")
	cmd.Flags().Duration("interval", 0, "time between scheduled runs (0 disables the schedule)")
	cmd.Flags().Bool("skip-unchanged", true, "reuse features when the input is unchanged (needs the ledger)")
	cmd.Flags().Bool("ledger", true, "record stage fingerprints and runs in the ledger")
	return cmd
}

//nolint:gocyclo // sequential wiring of the supervisor tree
func serve(ctx context.Context, cfg *config.Config) error {
	logging.Info().
		Str("source", cfg.Source.Path).
		Str("artifacts", cfg.Artifacts.Dir).
		Dur("interval", cfg.Pipeline.Interval).
		Msg("Starting roastery with supervisor tree")

	comps, err := openComponents(cfg)
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	defer comps.Close()

	bus := events.NewBus(events.DefaultBusConfig(), nil)
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	source := pipeline.NewBreakerSource(comps.loader, pipeline.BreakerConfig{
		Failures: cfg.Pipeline.BreakerFailures,
		Timeout:  cfg.Pipeline.BreakerTimeout,
	})
	orch, err := comps.orchestrator(cfg, source, pipeline.WithPublisher(bus))
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), treeCfg)
	if err != nil {
		return &exitError{code: 1, err: fmt.Errorf("create supervisor tree: %w", err)}
	}

	pipelineSvc := services.NewPipelineService(orch, services.PipelineServiceConfig{
		RunOnStart:      cfg.Pipeline.RunOnStart,
		Interval:        cfg.Pipeline.Interval,
		TriggerInterval: cfg.Pipeline.TriggerInterval,
	}, logging.Logger())
	tree.AddPipelineService(pipelineSvc)

	respCache := cache.New(cfg.Server.CacheTTL)
	defer respCache.Stop()

	deps := api.Dependencies{
		Store:   orch.Store(),
		Trigger: pipelineSvc,
		Status:  orch,
		DB:      comps.db,
		Cache:   respCache,
		Version: Version,
	}
	// Assigned only when open: a nil *Ledger in the interface is not nil.
	if comps.ledger != nil {
		deps.Ledger = comps.ledger
	}
	handler, err := api.NewHandler(deps)
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	tree.AddPipelineService(services.NewEventHandlerService("cache-invalidator", bus.RunHandler(handler.InvalidateOnRun)))

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           api.NewRouter(handler, api.RouterConfigFrom(cfg)),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	tree.AddAPIService(services.NewAPIService(httpServer, cfg.Server.ShutdownTimeout))

	logging.Info().Str("addr", httpServer.Addr).Msg("HTTP server configured")

	err = tree.Serve(ctx)
	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return &exitError{code: 1, err: err}
	}
	logging.Info().Msg("Shutdown complete")
	return nil
}
