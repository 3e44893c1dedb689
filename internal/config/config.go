// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package config

import (
	"path/filepath"
	"time"

	"github.com/tomtom215/roastery/internal/artifact"
	"github.com/tomtom215/roastery/internal/features"
	"github.com/tomtom215/roastery/internal/logging"
	"github.com/tomtom215/roastery/internal/modeling"
	"github.com/tomtom215/roastery/internal/models"
	"github.com/tomtom215/roastery/internal/recommend"
)

// Config holds the complete pipeline configuration.
type Config struct {
	Source    SourceConfig     `koanf:"source"`
	Features  FeaturesConfig   `koanf:"features"`
	Recommend recommend.Config `koanf:"recommend"`
	Churn     ChurnConfig      `koanf:"churn"`
	Forecast  ForecastConfig   `koanf:"forecast"`
	Evaluate  EvaluateConfig   `koanf:"evaluate"`
	Artifacts ArtifactsConfig  `koanf:"artifacts"`
	Ledger    LedgerConfig     `koanf:"ledger"`
	Pipeline  PipelineConfig   `koanf:"pipeline"`
	Logging   LoggingConfig    `koanf:"logging"`
	Server    ServerConfig     `koanf:"server"`
	Metrics   MetricsConfig    `koanf:"metrics"`
}

// Source formats.
const (
	FormatAuto   = "auto"
	FormatCSV    = "csv"
	FormatDuckDB = "duckdb"
)

// SourceConfig describes where raw transactions come from.
type SourceConfig struct {
	// Path is a CSV file or a DuckDB database file.
	Path string `koanf:"path" validate:"required"`

	// Format selects the reader. "auto" decides by file extension.
	Format string `koanf:"format" validate:"oneof=auto csv duckdb"`

	// Table is the table read from a DuckDB database.
	Table string `koanf:"table" validate:"required"`

	// MemoryLimit is passed to DuckDB as memory_limit, e.g. "1GB".
	MemoryLimit string `koanf:"memory_limit"`

	// Threads caps DuckDB worker threads. 0 uses the DuckDB default.
	Threads int `koanf:"threads" validate:"min=0"`
}

// FeaturesConfig configures the feature engine.
type FeaturesConfig struct {
	// Requested lists feature names in build order. Unknown names are
	// ignored and reported.
	Requested []string `koanf:"requested"`

	GroupKey          string `koanf:"group_key" validate:"required"`
	GrowthLag         int    `koanf:"growth_lag" validate:"min=1"`
	RollingWindow     int    `koanf:"rolling_window" validate:"min=1"`
	RollingMinPeriods int    `koanf:"rolling_min_periods" validate:"min=1"`
}

// Options converts the section into feature engine options.
func (c FeaturesConfig) Options() features.Options {
	return features.Options{
		GroupKey:          models.Field(c.GroupKey),
		GrowthLag:         c.GrowthLag,
		RollingWindow:     c.RollingWindow,
		RollingMinPeriods: c.RollingMinPeriods,
	}
}

// ChurnConfig configures the churn branch.
type ChurnConfig struct {
	Enabled bool `koanf:"enabled"`

	// Models lists classifier names; each gets its own artifact and metric
	// namespace.
	Models []string `koanf:"models" validate:"dive,oneof=lr rf"`

	Logistic modeling.LogisticConfig `koanf:"logistic"`
	Forest   modeling.ForestConfig   `koanf:"forest"`

	// Tune grid-searches the random forest before the final fit.
	Tune modeling.TuneConfig `koanf:"tune"`
}

// ClassifierConfig returns the adapter configuration.
func (c ChurnConfig) ClassifierConfig() modeling.ClassifierConfig {
	return modeling.ClassifierConfig{Logistic: c.Logistic, Forest: c.Forest}
}

// ForecastConfig configures the forecast branch.
type ForecastConfig struct {
	Enabled bool `koanf:"enabled"`

	// Horizon is the number of days forecast past the last observed day.
	Horizon int `koanf:"horizon" validate:"min=0,max=3650"`

	Holt modeling.ForecastConfig `koanf:"holt"`
}

// EvaluateConfig configures the evaluation stage.
type EvaluateConfig struct {
	// K is the cut-off for precision@k and recall@k.
	K int `koanf:"k" validate:"min=1"`

	// HoldoutFraction is the share of transactions held out as ranking
	// ground truth. Zero disables holdout evaluation and only coverage is
	// reported.
	HoldoutFraction float64 `koanf:"holdout_fraction" validate:"min=0,lt=1"`
}

// ArtifactsConfig configures artifact output.
type ArtifactsConfig struct {
	Dir string `koanf:"dir" validate:"required"`

	// SnapshotDir holds feature table snapshots. Defaults to Dir/.snapshots.
	SnapshotDir string `koanf:"snapshot_dir"`

	// KeepSnapshots is the number of snapshot versions kept per name.
	KeepSnapshots int `koanf:"keep_snapshots" validate:"min=1"`
}

// LedgerConfig configures the stage ledger.
type LedgerConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Path       string        `koanf:"path"`
	SyncWrites bool          `koanf:"sync_writes"`
	RunTTL     time.Duration `koanf:"run_ttl" validate:"min=0"`
}

// Artifact returns the ledger configuration for artifact.OpenLedger.
func (c LedgerConfig) Artifact() artifact.LedgerConfig {
	return artifact.LedgerConfig{
		Path:       c.Path,
		SyncWrites: c.SyncWrites,
		RunTTL:     c.RunTTL,
	}
}

// PipelineConfig configures orchestration and serve-mode scheduling.
type PipelineConfig struct {
	// SkipUnchanged reuses the feature snapshot when the raw table
	// fingerprint matches the ledger.
	SkipUnchanged bool `koanf:"skip_unchanged"`

	// Timeout bounds a single run. Zero means no limit.
	Timeout time.Duration `koanf:"timeout" validate:"min=0"`

	// Interval is the re-run period in serve mode. Zero disables
	// scheduled runs.
	Interval time.Duration `koanf:"interval" validate:"min=0"`

	// RunOnStart triggers a run as soon as serve mode starts.
	RunOnStart bool `koanf:"run_on_start"`

	// TriggerInterval is the minimum spacing of manually triggered runs.
	TriggerInterval time.Duration `koanf:"trigger_interval" validate:"min=0"`

	// BreakerFailures consecutive source failures open the circuit.
	BreakerFailures uint32 `koanf:"breaker_failures" validate:"min=1"`

	// BreakerTimeout is how long the circuit stays open.
	BreakerTimeout time.Duration `koanf:"breaker_timeout" validate:"min=0"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level, checked with logging.ValidLevel.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format" validate:"oneof=json console"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}

// LoggerConfig converts the section for logging.Init.
func (c LoggingConfig) LoggerConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Level
	cfg.Format = c.Format
	cfg.Caller = c.Caller
	return cfg
}

// ServerConfig configures the HTTP API in serve mode.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=0"`
	CORSOrigins     []string      `koanf:"cors_origins"`

	// RateLimitRequests per RateLimitWindow per client IP.
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"min=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"min=0"`

	// CacheTTL bounds how long report responses are served from memory.
	// Completed runs clear the cache regardless.
	CacheTTL time.Duration `koanf:"cache_ttl" validate:"min=0"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// SnapshotDir returns the effective snapshot directory.
func (c *Config) SnapshotDir() string {
	if c.Artifacts.SnapshotDir != "" {
		return c.Artifacts.SnapshotDir
	}
	return filepath.Join(c.Artifacts.Dir, ".snapshots")
}

// LedgerPath returns the effective ledger directory.
func (c *Config) LedgerPath() string {
	if c.Ledger.Path != "" {
		return c.Ledger.Path
	}
	return filepath.Join(c.Artifacts.Dir, ".ledger")
}
