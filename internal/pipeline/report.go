// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package pipeline

import (
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/roastery/internal/artifact"
	"github.com/tomtom215/roastery/internal/evaluate"
)

// Run statuses.
const (
	RunSucceeded = "succeeded"
	RunPartial   = "partial"
	RunFailed    = "failed"
)

// RunReport describes one pipeline run.
type RunReport struct {
	RunID      string
	Source     string
	StartedAt  time.Time
	FinishedAt time.Time

	// Completed lists stages that finished, including reused ones.
	Completed []Stage
	// Reused lists completed stages whose stored output was reused.
	Reused []Stage
	// Skipped lists stages that were disabled or never reached.
	Skipped []Stage
	Failed  []StageFailure

	Report       evaluate.Report
	Artifacts    []artifact.Entry
	Fingerprints map[string]string
}

// Status summarizes the run. A run whose prerequisite stages failed is
// "failed"; a run with only branch or evaluation failures is "partial".
func (r *RunReport) Status() string {
	if len(r.Failed) == 0 {
		return RunSucceeded
	}
	for _, f := range r.Failed {
		if f.Stage == StageRawLoaded || f.Stage == StageFeaturesBuilt {
			return RunFailed
		}
	}
	return RunPartial
}

// Err returns a *RunError when any stage failed.
func (r *RunReport) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return &RunError{RunID: r.RunID, Failures: slices.Clone(r.Failed)}
}

// CompletedNames returns completed stage names.
func (r *RunReport) CompletedNames() []string {
	return stageNames(r.Completed)
}

func stageNames(stages []Stage) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = s.String()
	}
	return out
}

// FailedStages maps failed stage names to their error text.
func (r *RunReport) FailedStages() map[string]string {
	if len(r.Failed) == 0 {
		return nil
	}
	out := make(map[string]string, len(r.Failed))
	for _, f := range r.Failed {
		out[f.Stage.String()] = f.Err.Error()
	}
	return out
}

// Record converts the report into a ledger run record.
func (r *RunReport) Record() artifact.RunRecord {
	return artifact.RunRecord{
		RunID:      r.RunID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Status:     r.Status(),
		Completed:  r.CompletedNames(),
		Failed:     r.FailedStages(),
		Report:     maps.Clone(r.Report),
	}
}

// runState accumulates stage outcomes. Branch goroutines write to it
// concurrently.
type runState struct {
	mu     sync.Mutex
	report RunReport
}

func newRunState(runID, source string, started time.Time) *runState {
	return &runState{report: RunReport{
		RunID:        runID,
		Source:       source,
		StartedAt:    started,
		Fingerprints: make(map[string]string),
	}}
}

func (s *runState) id() string {
	return s.report.RunID
}

func (s *runState) complete(stage Stage, out stageOutput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.Completed = append(s.report.Completed, stage)
	if out.reused {
		s.report.Reused = append(s.report.Reused, stage)
	}
	s.addLocked(stage, out)
}

func (s *runState) fail(stage Stage, err error, out stageOutput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.Failed = append(s.report.Failed, StageFailure{Stage: stage, Err: err})
	s.addLocked(stage, out)
}

func (s *runState) skip(stages ...Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.Skipped = append(s.report.Skipped, stages...)
}

func (s *runState) addLocked(stage Stage, out stageOutput) {
	if out.fingerprint != "" {
		s.report.Fingerprints[stage.String()] = out.fingerprint
	}
	s.report.Artifacts = append(s.report.Artifacts, out.artifacts...)
}

func (s *runState) setReport(r evaluate.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.Report = r
}

func (s *runState) fingerprint(stage Stage) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report.Fingerprints[stage.String()]
}

// snapshot returns a copy with stage lists in execution order.
func (s *runState) snapshot() *RunReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.report
	r.Completed = sortedStages(r.Completed)
	r.Reused = sortedStages(r.Reused)
	r.Skipped = sortedStages(r.Skipped)
	r.Failed = slices.Clone(r.Failed)
	slices.SortStableFunc(r.Failed, func(a, b StageFailure) int {
		return slices.Index(Stages, a.Stage) - slices.Index(Stages, b.Stage)
	})
	r.Artifacts = slices.Clone(r.Artifacts)
	slices.SortFunc(r.Artifacts, func(a, b artifact.Entry) int {
		return strings.Compare(a.Name, b.Name)
	})
	r.Report = maps.Clone(r.Report)
	r.Fingerprints = maps.Clone(r.Fingerprints)
	return &r
}
