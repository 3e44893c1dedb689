// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestGenerateRunID(t *testing.T) {
	t.Parallel()

	id := GenerateRunID()
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("expected a valid UUID, got %q: %v", id, err)
	}
	if id == GenerateRunID() {
		t.Error("expected distinct run IDs")
	}
}

func TestGenerateCorrelationID(t *testing.T) {
	t.Parallel()

	if got := len(GenerateCorrelationID()); got != 8 {
		t.Errorf("expected 8 characters, got %d", got)
	}
}

func TestContextValues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if RunIDFromContext(ctx) != "" || StageFromContext(ctx) != "" || CorrelationIDFromContext(ctx) != "" {
		t.Fatal("expected empty values on a bare context")
	}

	ctx = ContextWithRunID(ctx, "run-1")
	ctx = ContextWithStage(ctx, "recs_built")
	ctx = ContextWithCorrelationID(ctx, "abcd1234")

	if got := RunIDFromContext(ctx); got != "run-1" {
		t.Errorf("run id = %q", got)
	}
	if got := StageFromContext(ctx); got != "recs_built" {
		t.Errorf("stage = %q", got)
	}
	if got := CorrelationIDFromContext(ctx); got != "abcd1234" {
		t.Errorf("correlation id = %q", got)
	}
}

func TestCtx(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Output: &buf})
	defer Init(DefaultConfig())

	ctx := ContextWithStage(ContextWithRunID(context.Background(), "run-42"), "forecast_built")
	Ctx(ctx).Info().Msg("fitted")

	out := buf.String()
	for _, want := range []string{`"run_id":"run-42"`, `"stage":"forecast_built"`, "fitted"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in output, got: %s", want, out)
		}
	}
	if strings.Contains(out, "correlation_id") {
		t.Errorf("unexpected correlation_id in output: %s", out)
	}
}
