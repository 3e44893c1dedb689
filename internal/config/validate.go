// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package config

import (
	"fmt"
	"strings"

	"github.com/tomtom215/roastery/internal/logging"
	"github.com/tomtom215/roastery/internal/validation"
)

// Validate checks struct tags first and then cross-field rules.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	validators := []func() error{
		c.validateFeatures,
		c.validateRecommend,
		c.validateChurn,
		c.validateServer,
		c.validateLogging,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateFeatures() error {
	if c.Features.RollingMinPeriods > c.Features.RollingWindow {
		return fmt.Errorf("features.rolling_min_periods (%d) must not exceed features.rolling_window (%d)",
			c.Features.RollingMinPeriods, c.Features.RollingWindow)
	}
	return nil
}

func (c *Config) validateRecommend() error {
	if err := c.Recommend.Validate(); err != nil {
		return fmt.Errorf("recommend: %w", err)
	}
	if c.Evaluate.K > c.Recommend.TopK {
		return fmt.Errorf("evaluate.k (%d) must not exceed recommend.top_k (%d)", c.Evaluate.K, c.Recommend.TopK)
	}
	return nil
}

func (c *Config) validateChurn() error {
	if !c.Churn.Enabled {
		return nil
	}
	if len(c.Churn.Models) == 0 {
		return fmt.Errorf("churn.models must list at least one model when churn.enabled=true")
	}
	seen := make(map[string]bool, len(c.Churn.Models))
	for _, name := range c.Churn.Models {
		if seen[name] {
			return fmt.Errorf("churn.models lists %q twice", name)
		}
		seen[name] = true
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", c.Metrics.Path)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level %q is not a known level", c.Logging.Level)
	}
	return nil
}
