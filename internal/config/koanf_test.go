// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/roastery/internal/validation"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Source.Format != FormatAuto || cfg.Source.Table != "sales" {
		t.Errorf("Source = %+v", cfg.Source)
	}
	if cfg.Forecast.Horizon != 30 {
		t.Errorf("Forecast.Horizon = %d, want 30", cfg.Forecast.Horizon)
	}
	if cfg.Recommend.Method != "cosine" || cfg.Recommend.TopK != 5 {
		t.Errorf("Recommend = %+v", cfg.Recommend)
	}
	if !slices.Equal(cfg.Churn.Models, []string{"lr", "rf"}) {
		t.Errorf("Churn.Models = %v", cfg.Churn.Models)
	}
	if !cfg.Churn.Tune.Enabled || cfg.Churn.Tune.Folds != 3 || !cfg.Churn.Forest.Balanced || !cfg.Churn.Logistic.Balanced {
		t.Errorf("Churn tuning defaults = %+v, forest balanced %v", cfg.Churn.Tune, cfg.Churn.Forest.Balanced)
	}
	if cfg.Features.RollingWindow != 7 || cfg.Features.GroupKey != "store_location" {
		t.Errorf("Features = %+v", cfg.Features)
	}
	if cfg.Pipeline.Interval != time.Hour {
		t.Errorf("Pipeline.Interval = %v, want 1h", cfg.Pipeline.Interval)
	}

	// Defaults are valid once a source is set.
	cfg.Source.Path = "sales.csv"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults error = %v", err)
	}
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("CONFIG_PATH wins", func(t *testing.T) {
		path := filepath.Join(dir, "custom.yaml")
		if err := os.WriteFile(path, []byte("source: {}\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		t.Setenv(ConfigPathEnvVar, path)
		if got := findConfigFile(); got != path {
			t.Errorf("findConfigFile() = %q, want %q", got, path)
		}
	})

	t.Run("missing CONFIG_PATH falls back", func(t *testing.T) {
		t.Setenv(ConfigPathEnvVar, filepath.Join(dir, "missing.yaml"))
		if got := findConfigFile(); got != "" {
			t.Errorf("findConfigFile() = %q, want empty", got)
		}
	})
}

func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"ROASTERY_SOURCE_PATH": "source.path",
		"ARTIFACT_DIR":         "artifacts.dir",
		"LOG_LEVEL":            "logging.level",
		"FORECAST_HORIZON":     "forecast.horizon",
		"CHURN_RF_TUNE":        "churn.tune.enabled",
		"HOME":                 "",
	}
	for key, want := range tests {
		if got := envTransformFunc(key); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "none.yaml"))
	t.Setenv("ROASTERY_SOURCE_PATH", "/data/sales.csv")
	t.Setenv("ARTIFACT_DIR", "/tmp/out")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("FORECAST_HORIZON", "14")
	t.Setenv("CHURN_MODELS", "rf, lr")
	t.Setenv("PIPELINE_INTERVAL", "15m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source.Path != "/data/sales.csv" || cfg.Artifacts.Dir != "/tmp/out" {
		t.Errorf("paths = %q, %q", cfg.Source.Path, cfg.Artifacts.Dir)
	}
	if cfg.Logging.Level != "debug" || cfg.Forecast.Horizon != 14 {
		t.Errorf("level %q horizon %d", cfg.Logging.Level, cfg.Forecast.Horizon)
	}
	if !slices.Equal(cfg.Churn.Models, []string{"rf", "lr"}) {
		t.Errorf("Churn.Models = %v", cfg.Churn.Models)
	}
	if cfg.Pipeline.Interval != 15*time.Minute {
		t.Errorf("Pipeline.Interval = %v", cfg.Pipeline.Interval)
	}
	if cfg.LedgerPath() != filepath.Join("/tmp/out", ".ledger") || cfg.SnapshotDir() != filepath.Join("/tmp/out", ".snapshots") {
		t.Errorf("derived paths = %q, %q", cfg.LedgerPath(), cfg.SnapshotDir())
	}
	// Untouched defaults survive.
	if cfg.Recommend.TopK != 5 || cfg.Server.Port != 8642 {
		t.Errorf("defaults lost: top_k %d port %d", cfg.Recommend.TopK, cfg.Server.Port)
	}
}

func TestLoad_FileThenEnvThenOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roastery.yaml")
	content := `
source:
  path: "from-file.csv"
recommend:
  method: cooccurrence
  top_k: 10
forecast:
  horizon: 7
logging:
  level: warn
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("FORECAST_HORIZON", "21")

	cfg, err := LoadWithOverrides(map[string]any{"logging.level": "error"})
	if err != nil {
		t.Fatalf("LoadWithOverrides() error = %v", err)
	}
	if cfg.Source.Path != "from-file.csv" || cfg.Recommend.Method != "cooccurrence" || cfg.Recommend.TopK != 10 {
		t.Errorf("file values not applied: %+v %+v", cfg.Source, cfg.Recommend)
	}
	if cfg.Forecast.Horizon != 21 {
		t.Errorf("env should override file: horizon = %d", cfg.Forecast.Horizon)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("override should win: level = %q", cfg.Logging.Level)
	}
}

func TestLoad_MissingSourceFails(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "none.yaml"))
	t.Setenv("ROASTERY_SOURCE_PATH", "")

	_, err := Load()
	var verr *validation.RequestValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Load() error = %v, want a validation error", err)
	}
	if !slices.Contains(verr.Fields(), "source.path") {
		t.Errorf("failing fields = %v, want source.path", verr.Fields())
	}
}

func TestValidate_CrossField(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"min periods above window", func(c *Config) { c.Features.RollingMinPeriods = 9 }, "rolling_min_periods"},
		{"k above top_k", func(c *Config) { c.Evaluate.K = 6 }, "evaluate.k"},
		{"no churn models", func(c *Config) { c.Churn.Models = nil }, "churn.models"},
		{"duplicate churn model", func(c *Config) { c.Churn.Models = []string{"lr", "lr"} }, "twice"},
		{"unknown churn model", func(c *Config) { c.Churn.Models = []string{"svm"} }, "churn.models[0]"},
		{"single tuning fold", func(c *Config) { c.Churn.Tune.Folds = 1 }, "churn.tune.folds"},
		{"metrics path", func(c *Config) { c.Metrics.Path = "metrics" }, "metrics.path"},
		{"bad method", func(c *Config) { c.Recommend.Method = "jaccard" }, "recommend.method"},
		{"holdout fraction", func(c *Config) { c.Evaluate.HoldoutFraction = 1 }, "evaluate.holdout_fraction"},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"log level is case-insensitive", func(c *Config) { c.Logging.Level = "WARNING" }, ""},
		{"churn disabled skips model checks", func(c *Config) { c.Churn.Enabled = false; c.Churn.Models = nil }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Source.Path = "sales.csv"
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
