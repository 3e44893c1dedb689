// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package validation

import (
	"slices"
	"strings"
	"testing"
)

type nestedSection struct {
	Ratio float64 `koanf:"ratio" validate:"gt=0,lt=1"`
}

type sample struct {
	Name   string        `koanf:"name" validate:"required"`
	Limit  int           `query:"limit" validate:"min=1,max=100"`
	Method string        `validate:"oneof=cosine cooccurrence"`
	Nested nestedSection `koanf:"nested"`
}

func validSample() sample {
	return sample{Name: "x", Limit: 10, Method: "cosine", Nested: nestedSection{Ratio: 0.5}}
}

func TestGetValidator_Singleton(t *testing.T) {
	t.Parallel()

	if GetValidator() != GetValidator() {
		t.Error("GetValidator() should return the same instance")
	}
}

func TestValidateStruct(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(*sample)
		wantField string
		wantTag   string
		wantMsg   string
	}{
		{"valid", func(*sample) {}, "", "", ""},
		{"required", func(s *sample) { s.Name = "" }, "name", "required", "name is required"},
		{"max", func(s *sample) { s.Limit = 500 }, "limit", "max", "limit must be at most 100"},
		{"min", func(s *sample) { s.Limit = 0 }, "limit", "min", "limit must be at least 1"},
		{"oneof", func(s *sample) { s.Method = "jaccard" }, "Method", "oneof", "Method must be one of: cosine cooccurrence"},
		{"nested", func(s *sample) { s.Nested.Ratio = 1 }, "nested.ratio", "lt", "nested.ratio must be less than 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := validSample()
			tt.mutate(&s)
			verr := ValidateStruct(&s)
			if tt.wantTag == "" {
				if verr != nil {
					t.Fatalf("ValidateStruct() = %v, want nil", verr)
				}
				return
			}
			if verr == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			errs := verr.Errors()
			if len(errs) != 1 {
				t.Fatalf("got %d errors: %v", len(errs), verr)
			}
			if errs[0].Namespace != tt.wantField || errs[0].Tag != tt.wantTag {
				t.Errorf("error = %+v, want field %q tag %q", errs[0], tt.wantField, tt.wantTag)
			}
			if errs[0].Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", errs[0].Message, tt.wantMsg)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	t.Parallel()

	single := validSample()
	single.Name = ""
	apiErr := ValidateStruct(&single).ToAPIError()
	if apiErr.Code != ErrorCode || apiErr.Details["field"] != "name" {
		t.Errorf("single ToAPIError() = %+v", apiErr)
	}

	multi := validSample()
	multi.Name = ""
	multi.Limit = 0
	verr := ValidateStruct(&multi)
	apiErr = verr.ToAPIError()
	if !strings.Contains(apiErr.Message, "name is required") || !strings.Contains(apiErr.Message, "limit must be at least 1") {
		t.Errorf("multi message = %q", apiErr.Message)
	}
	fields, ok := apiErr.Details["fields"].([]map[string]any)
	if !ok || len(fields) != 2 {
		t.Errorf("multi details = %#v", apiErr.Details)
	}
	if got := verr.Fields(); !slices.Equal(got, []string{"name", "limit"}) {
		t.Errorf("Fields() = %v", got)
	}

	empty := &RequestValidationError{}
	if empty.Error() != "validation failed" || empty.ToAPIError().Code != ErrorCode {
		t.Error("empty RequestValidationError should still render")
	}
}
