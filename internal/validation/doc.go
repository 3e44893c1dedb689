// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

// Package validation wraps go-playground/validator v10 with a shared
// validator instance and readable error messages.
//
// It is used for two things: struct tags on the configuration sections
// (checked by config.Validate before any cross-field rules) and query
// parameters of the HTTP API, where failures are turned into a
// VALIDATION_ERROR response.
//
// Example:
//
//	type forecastQuery struct {
//	    Days int `validate:"min=0,max=3650"`
//	}
//
//	if verr := validation.ValidateStruct(&q); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//	    return
//	}
package validation
