// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/roastery/internal/metrics"
	"github.com/tomtom215/roastery/internal/pipeline"
)

// ErrTriggerRateLimited is returned when manual triggers arrive faster than
// the configured trigger interval.
var ErrTriggerRateLimited = errors.New("pipeline trigger rate limited")

// Trigger results recorded in metrics.
const (
	triggerAccepted    = "accepted"
	triggerCoalesced   = "coalesced"
	triggerRateLimited = "rate_limited"
)

// PipelineRunner runs the pipeline once. *pipeline.Orchestrator implements it.
type PipelineRunner interface {
	Run(ctx context.Context) (*pipeline.RunReport, error)
}

// PipelineServiceConfig holds the scheduling configuration.
type PipelineServiceConfig struct {
	// RunOnStart runs the pipeline as soon as the service starts.
	RunOnStart bool

	// Interval is the time between scheduled runs. Zero disables the
	// schedule; runs then happen only on trigger.
	Interval time.Duration

	// TriggerInterval is the minimum spacing of manual triggers.
	TriggerInterval time.Duration
}

// PipelineService schedules pipeline runs for serve mode.
type PipelineService struct {
	runner   PipelineRunner
	config   PipelineServiceConfig
	logger   zerolog.Logger
	limiter  *rate.Limiter
	triggers chan struct{}
	name     string

	mu   sync.RWMutex
	last *pipeline.RunReport
}

// NewPipelineService creates the service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewPipelineService(runner PipelineRunner, cfg PipelineServiceConfig, logger zerolog.Logger) *PipelineService {
	limit := rate.Inf
	if cfg.TriggerInterval > 0 {
		limit = rate.Every(cfg.TriggerInterval)
	}
	return &PipelineService{
		runner:   runner,
		config:   cfg,
		logger:   logger.With().Str("service", "pipeline").Logger(),
		limiter:  rate.NewLimiter(limit, 1),
		triggers: make(chan struct{}, 1),
		name:     "pipeline-service",
	}
}

// Trigger requests a run. A trigger that arrives while another is pending
// is merged with it.
func (s *PipelineService) Trigger() error {
	if !s.limiter.Allow() {
		metrics.RecordTrigger(triggerRateLimited)
		return ErrTriggerRateLimited
	}
	select {
	case s.triggers <- struct{}{}:
		metrics.RecordTrigger(triggerAccepted)
	default:
		metrics.RecordTrigger(triggerCoalesced)
	}
	return nil
}

// LastReport returns the report of the most recent run, or nil.
func (s *PipelineService) LastReport() *pipeline.RunReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Serve implements suture.Service.
func (s *PipelineService) Serve(ctx context.Context) error {
	s.logger.Info().
		Bool("run_on_start", s.config.RunOnStart).
		Dur("interval", s.config.Interval).
		Msg("Pipeline service starting")

	if s.config.RunOnStart {
		s.run(ctx, "startup")
	}

	var tick <-chan time.Time
	if s.config.Interval > 0 {
		ticker := time.NewTicker(s.config.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Pipeline service shutting down")
			return ctx.Err()
		case <-tick:
			s.run(ctx, "schedule")
		case <-s.triggers:
			s.run(ctx, "trigger")
		}
	}
}

// run executes one pipeline run. Run failures are logged, never returned,
// so a bad input does not restart the service.
func (s *PipelineService) run(ctx context.Context, reason string) {
	start := time.Now()
	rep, err := s.runner.Run(ctx)
	if rep != nil {
		s.mu.Lock()
		s.last = rep
		s.mu.Unlock()
	}

	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		s.logger.Debug().Str("reason", reason).Msg("Pipeline run already in progress")
	case err != nil:
		s.logger.Warn().Err(err).Str("reason", reason).Dur("duration", time.Since(start)).Msg("Pipeline run finished with failures")
	default:
		s.logger.Info().
			Str("reason", reason).
			Str("run_id", rep.RunID).
			Dur("duration", time.Since(start)).
			Msg("Pipeline run succeeded")
	}
}

// String implements fmt.Stringer.
func (s *PipelineService) String() string {
	return s.name
}
