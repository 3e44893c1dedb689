// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/roastery/internal/features"
	"github.com/tomtom215/roastery/internal/modeling"
	"github.com/tomtom215/roastery/internal/recommend"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"roastery.yaml",
	"roastery.yml",
	"config.yaml",
	"/etc/roastery/config.yaml",
}

// Default returns the built-in configuration without reading files or the
// environment. Source.Path is empty, so it does not validate as is.
func Default() *Config {
	return defaultConfig()
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	feat := features.DefaultOptions()
	classifiers := modeling.DefaultClassifierConfig()
	return &Config{
		Source: SourceConfig{
			Path:   "",
			Format: FormatAuto,
			Table:  "sales",
		},
		Features: FeaturesConfig{
			Requested:         slices.Clone(features.AllFeatures),
			GroupKey:          string(feat.GroupKey),
			GrowthLag:         feat.GrowthLag,
			RollingWindow:     feat.RollingWindow,
			RollingMinPeriods: feat.RollingMinPeriods,
		},
		Recommend: recommend.DefaultConfig(),
		Churn: ChurnConfig{
			Enabled:  true,
			Models:   []string{modeling.ModelLogisticRegression, modeling.ModelRandomForest},
			Logistic: classifiers.Logistic,
			Forest:   classifiers.Forest,
			Tune:     modeling.DefaultTuneConfig(),
		},
		Forecast: ForecastConfig{
			Enabled: true,
			Horizon: 30,
			Holt:    modeling.DefaultForecastConfig(),
		},
		Evaluate: EvaluateConfig{
			K:               5,
			HoldoutFraction: 0.2,
		},
		Artifacts: ArtifactsConfig{
			Dir:           "./artifacts",
			KeepSnapshots: 3,
		},
		Ledger: LedgerConfig{
			Enabled:    true,
			SyncWrites: true,
			RunTTL:     30 * 24 * time.Hour,
		},
		Pipeline: PipelineConfig{
			SkipUnchanged:   true,
			Timeout:         30 * time.Minute,
			Interval:        time.Hour,
			RunOnStart:      true,
			TriggerInterval: time.Minute,
			BreakerFailures: 3,
			BreakerTimeout:  5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Server: ServerConfig{
			Host:              "127.0.0.1",
			Port:              8642,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
			CacheTTL:          5 * time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load reads the configuration with the default layers.
func Load() (*Config, error) {
	return LoadWithOverrides(nil)
}

// LoadWithOverrides reads defaults, the config file and the environment,
// then applies overrides (koanf paths such as "source.path") on top. The
// command line uses overrides for its flags.
func LoadWithOverrides(overrides map[string]any) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	for path, value := range overrides {
		if err := k.Set(path, value); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns CONFIG_PATH when it exists, else the first
// default path that exists, else "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated strings when set from
// the environment.
var sliceConfigPaths = []string{
	"features.requested",
	"churn.models",
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
// Variables not listed are ignored.
var envMappings = map[string]string{
	"roastery_source_path":   "source.path",
	"roastery_source_format": "source.format",
	"roastery_source_table":  "source.table",
	"duckdb_memory_limit":    "source.memory_limit",
	"duckdb_threads":         "source.threads",

	"features_requested":  "features.requested",
	"features_group_key":  "features.group_key",
	"rolling_window":      "features.rolling_window",
	"rolling_min_periods": "features.rolling_min_periods",

	"recommend_method":    "recommend.method",
	"recommend_top_k":     "recommend.top_k",
	"recommend_min_score": "recommend.min_score",
	"recommend_workers":   "recommend.workers",

	"churn_enabled":   "churn.enabled",
	"churn_models":    "churn.models",
	"churn_rf_trees":  "churn.forest.trees",
	"churn_rf_seed":   "churn.forest.seed",
	"churn_rf_tune":   "churn.tune.enabled",
	"churn_lr_epochs": "churn.logistic.iterations",

	"forecast_enabled":        "forecast.enabled",
	"forecast_horizon":        "forecast.horizon",
	"forecast_interval_width": "forecast.holt.interval_width",

	"evaluate_k":       "evaluate.k",
	"holdout_fraction": "evaluate.holdout_fraction",

	"artifact_dir":   "artifacts.dir",
	"snapshot_dir":   "artifacts.snapshot_dir",
	"ledger_enabled": "ledger.enabled",
	"ledger_path":    "ledger.path",

	"pipeline_skip_unchanged":   "pipeline.skip_unchanged",
	"pipeline_timeout":          "pipeline.timeout",
	"pipeline_interval":         "pipeline.interval",
	"pipeline_run_on_start":     "pipeline.run_on_start",
	"pipeline_trigger_interval": "pipeline.trigger_interval",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"http_host":         "server.host",
	"http_port":         "server.port",
	"cors_origins":      "server.cors_origins",
	"rate_limit_reqs":   "server.rate_limit_requests",
	"rate_limit_window": "server.rate_limit_window",
	"cache_ttl":         "server.cache_ttl",

	"metrics_enabled": "metrics.enabled",
	"metrics_path":    "metrics.path",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
