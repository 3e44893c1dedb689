// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/roastery/internal/logging"
	"github.com/tomtom215/roastery/internal/pipeline"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	var printReport bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			comps, err := openComponents(cfg)
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			defer comps.Close()

			orch, err := comps.orchestrator(cfg, comps.loader)
			if err != nil {
				return &exitError{code: 1, err: err}
			}

			rep, runErr := orch.Run(ctx)
			if rep == nil {
				return &exitError{code: 1, err: runErr}
			}
			if printReport {
				if err := writeReport(cmd, rep); err != nil {
					return err
				}
			}
			return exitForReport(rep, runErr)
		},
	}

	cmd.Flags().BoolVar(&printReport, "print-report", false, "print the run report as JSON to stdout")
	cmd.Flags().Bool("skip-unchanged", true, "reuse features when the input is unchanged (needs the ledger)")
	cmd.Flags().Bool("ledger", true, "record stage fingerprints and runs in the ledger")
	cmd.Flags().Duration("timeout", 0, "abort the run after this long")
	return cmd
}

// runSummary is the JSON printed by --print-report.
type runSummary struct {
	RunID      string             `json:"run_id"`
	Status     string             `json:"status"`
	Source     string             `json:"source"`
	DurationMS int64              `json:"duration_ms"`
	Completed  []string           `json:"completed_stages"`
	Reused     []string           `json:"reused_stages,omitempty"`
	Failed     map[string]string  `json:"failed_stages,omitempty"`
	Report     map[string]float64 `json:"report"`
}

func writeReport(cmd *cobra.Command, rep *pipeline.RunReport) error {
	reused := make([]string, len(rep.Reused))
	for i, s := range rep.Reused {
		reused[i] = s.String()
	}
	data, err := json.MarshalIndent(runSummary{
		RunID:      rep.RunID,
		Status:     rep.Status(),
		Source:     rep.Source,
		DurationMS: rep.FinishedAt.Sub(rep.StartedAt).Milliseconds(),
		Completed:  rep.CompletedNames(),
		Reused:     reused,
		Failed:     rep.FailedStages(),
		Report:     rep.Report,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

// exitForReport maps the run status to the process exit code.
func exitForReport(rep *pipeline.RunReport, runErr error) error {
	log := logging.Info().
		Str("run_id", rep.RunID).
		Str("status", rep.Status()).
		Dur("duration", rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond))

	switch rep.Status() {
	case pipeline.RunSucceeded:
		log.Msg("Pipeline finished")
		return nil
	case pipeline.RunPartial:
		log.Msg("Pipeline finished with failed branches")
		return &exitError{code: 2, err: runErr}
	default:
		log.Msg("Pipeline failed")
		if runErr == nil {
			runErr = fmt.Errorf("run %s failed", rep.RunID)
		}
		return &exitError{code: 1, err: runErr}
	}
}

