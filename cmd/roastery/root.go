// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tomtom215/roastery/internal/config"
	"github.com/tomtom215/roastery/internal/logging"
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// globalFlags are shared by run and serve.
type globalFlags struct {
	configPath string
	source     string
	format     string
	table      string
	artifacts  string
	logLevel   string
	logFormat  string
}

// flagOverrides maps flag names to koanf paths.
var flagOverrides = map[string]string{
	"source":     "source.path",
	"format":     "source.format",
	"table":      "source.table",
	"artifacts":  "artifacts.dir",
	"log-level":  "logging.level",
	"log-format": "logging.format",

	"skip-unchanged": "pipeline.skip_unchanged",
	"ledger":         "ledger.enabled",
	"timeout":        "pipeline.timeout",

	"host":     "server.host",
	"port":     "server.port",
	"interval": "pipeline.interval",
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "roastery",
		Short: "Point-of-sale analytics pipeline",
		Long: `roastery - point-of-sale analytics pipeline
  - engineered features, churn models, revenue forecast
  - item-to-item recommendations and an evaluation report`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (overrides CONFIG_PATH)")
	pf.StringVar(&flags.source, "source", "", "transaction CSV or DuckDB file")
	pf.StringVar(&flags.format, "format", "", "source format: auto, csv or duckdb")
	pf.StringVar(&flags.table, "table", "", "table to read from a DuckDB source")
	pf.StringVar(&flags.artifacts, "artifacts", "", "artifact output directory")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format: json or console")

	root.AddCommand(newRunCmd(flags))
	root.AddCommand(newServeCmd(flags))
	root.AddCommand(newVersionCmd())
	return root
}

// overrides collects the flags that were set on the command line.
func overrides(fs *pflag.FlagSet) map[string]any {
	out := make(map[string]any)
	fs.Visit(func(f *pflag.Flag) {
		if path, ok := flagOverrides[f.Name]; ok {
			out[path] = f.Value.String()
		}
	})
	return out
}

// loadConfig loads the configuration with flag overrides and initializes
// logging from it.
func loadConfig(cmd *cobra.Command, flags *globalFlags) (*config.Config, error) {
	if flags.configPath != "" {
		if err := os.Setenv(config.ConfigPathEnvVar, flags.configPath); err != nil {
			return nil, fmt.Errorf("set %s: %w", config.ConfigPathEnvVar, err)
		}
	}

	cfg, err := config.LoadWithOverrides(overrides(cmd.Flags()))
	if err != nil {
		return nil, &exitError{code: 1, err: err}
	}

	logging.Init(cfg.Logging.LoggerConfig())
	return cfg, nil
}
