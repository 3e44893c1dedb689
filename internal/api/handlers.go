// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/roastery/internal/artifact"
	"github.com/tomtom215/roastery/internal/cache"
	"github.com/tomtom215/roastery/internal/evaluate"
	"github.com/tomtom215/roastery/internal/models"
	"github.com/tomtom215/roastery/internal/pipeline"
	"github.com/tomtom215/roastery/internal/supervisor/services"
	"github.com/tomtom215/roastery/internal/validation"
)

const (
	keyReport          = "report"
	keyForecast        = "forecast"
	keyRecommendations = "recommendations"

	defaultRecLimit = 10
	defaultRunLimit = 20
)

var errUnknownProduct = errors.New("unknown product")

// HealthStatus is the body of GET /api/v1/health.
type HealthStatus struct {
	Status            string     `json:"status"`
	Version           string     `json:"version"`
	UptimeSeconds     float64    `json:"uptime_seconds"`
	DatabaseConnected *bool      `json:"database_connected,omitempty"`
	PipelineRunning   bool       `json:"pipeline_running"`
	LastRunID         string     `json:"last_run_id,omitempty"`
	LastRunStatus     string     `json:"last_run_status,omitempty"`
	LastRunAt         *time.Time `json:"last_run_at,omitempty"`
	CacheHitRate      float64    `json:"cache_hit_rate"`
}

// TriggerResponse is the body of POST /api/v1/runs.
type TriggerResponse struct {
	Accepted bool `json:"accepted"`
}

type recommendationsQuery struct {
	ProductID string `query:"product_id" validate:"required,max=256"`
	Limit     int    `query:"limit" validate:"min=1,max=100"`
}

type forecastQuery struct {
	Days int `query:"days" validate:"min=0,max=3650"`
}

type runsQuery struct {
	Limit int `query:"limit" validate:"min=1,max=500"`
}

// Health handles GET /api/v1/health. The status is "degraded" when the
// database does not answer or the latest run failed outright.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{
		Status:        "healthy",
		Version:       h.version,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		CacheHitRate:  h.cache.HitRate(),
	}
	if h.status != nil {
		health.PipelineRunning = h.status.Running()
	}
	if h.db != nil {
		ok := h.db.Ping(r.Context()) == nil
		health.DatabaseConnected = &ok
		if !ok {
			health.Status = "degraded"
		}
	}
	if run, err := h.latestRun(r.Context()); err == nil {
		health.LastRunID = run.RunID
		health.LastRunStatus = run.Status
		if !run.FinishedAt.IsZero() {
			at := run.FinishedAt
			health.LastRunAt = &at
		}
		if run.Status == pipeline.RunFailed {
			health.Status = "degraded"
		}
	}

	respondData(w, r, http.StatusOK, health, models.Metadata{RunID: health.LastRunID})
}

// Report handles GET /api/v1/report.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	report, hit, err := cached(h, keyReport, func() (evaluate.Report, error) {
		t, err := h.store.ReadTable(r.Context(), pipeline.ArtifactMetrics)
		if err != nil {
			return nil, err
		}
		return pipeline.ParseReport(t)
	})
	if err != nil {
		h.respondArtifactError(w, r, pipeline.ArtifactMetrics, err)
		return
	}
	respondData(w, r, http.StatusOK, report, models.Metadata{Cached: hit})
}

// LatestRun handles GET /api/v1/runs/latest. Without a ledger the run is
// rebuilt from manifest.json.
func (h *Handler) LatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.latestRun(r.Context())
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			respondError(w, r, http.StatusNotFound, ErrCodeNotReady, "No run has completed yet", nil)
			return
		}
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to read run history", err)
		return
	}
	respondData(w, r, http.StatusOK, run, models.Metadata{RunID: run.RunID})
}

// Runs handles GET /api/v1/runs?limit=N.
func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	q := runsQuery{Limit: defaultRunLimit}
	if !parseQuery(w, r, func() error {
		return parseIntQuery(r, "limit", &q.Limit)
	}, &q) {
		return
	}
	if h.ledger == nil {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Run history requires the ledger", nil)
		return
	}
	runs, err := h.ledger.Runs(r.Context(), q.Limit)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to read run history", err)
		return
	}
	if runs == nil {
		runs = []artifact.RunRecord{}
	}
	respondData(w, r, http.StatusOK, runs, models.Metadata{})
}

// TriggerRun handles POST /api/v1/runs.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeUnavailable, "Runs cannot be triggered in this mode", nil)
		return
	}
	if h.status != nil && h.status.Running() {
		respondError(w, r, http.StatusConflict, ErrCodeConflict, "A run is already in progress", nil)
		return
	}
	if err := h.trigger.Trigger(); err != nil {
		if errors.Is(err, services.ErrTriggerRateLimited) {
			respondError(w, r, http.StatusTooManyRequests, ErrCodeRateLimited, "Runs are triggered too often", nil)
			return
		}
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to trigger run", err)
		return
	}
	respondData(w, r, http.StatusAccepted, TriggerResponse{Accepted: true}, models.Metadata{})
}

// Forecast handles GET /api/v1/forecast?days=N. days limits the response
// to the last N rows; 0 returns all of them.
func (h *Handler) Forecast(w http.ResponseWriter, r *http.Request) {
	var q forecastQuery
	if !parseQuery(w, r, func() error {
		return parseIntQuery(r, "days", &q.Days)
	}, &q) {
		return
	}

	points, hit, err := cached(h, keyForecast, func() ([]models.ForecastPoint, error) {
		t, err := h.store.ReadTable(r.Context(), pipeline.ArtifactForecast)
		if err != nil {
			return nil, err
		}
		return parseForecast(t)
	})
	if err != nil {
		h.respondArtifactError(w, r, pipeline.ArtifactForecast, err)
		return
	}
	if q.Days > 0 && q.Days < len(points) {
		points = points[len(points)-q.Days:]
	}
	respondData(w, r, http.StatusOK, points, models.Metadata{Cached: hit})
}

// Recommendations handles GET /api/v1/recommendations/{productID}.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	q := recommendationsQuery{
		ProductID: chi.URLParam(r, "productID"),
		Limit:     defaultRecLimit,
	}
	if !parseQuery(w, r, func() error {
		return parseIntQuery(r, "limit", &q.Limit)
	}, &q) {
		return
	}

	key := cache.GenerateKey(keyRecommendations, map[string]any{"product": q.ProductID, "limit": q.Limit})
	recs, hit, err := cached(h, key, func() ([]models.Recommendation, error) {
		t, err := h.store.ReadTable(r.Context(), pipeline.ArtifactRecommendations)
		if err != nil {
			return nil, err
		}
		bySource, err := parseRecommendations(t)
		if err != nil {
			return nil, err
		}
		recs, ok := bySource[q.ProductID]
		if !ok {
			return nil, errUnknownProduct
		}
		return recs[:min(len(recs), q.Limit)], nil
	})
	if errors.Is(err, errUnknownProduct) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Unknown product: "+q.ProductID, nil)
		return
	}
	if err != nil {
		h.respondArtifactError(w, r, pipeline.ArtifactRecommendations, err)
		return
	}
	respondData(w, r, http.StatusOK, recs, models.Metadata{Cached: hit})
}

func (h *Handler) latestRun(ctx context.Context) (artifact.RunRecord, error) {
	if h.ledger != nil {
		return h.ledger.LatestRun(ctx)
	}
	m, err := h.store.ReadManifest(ctx)
	if err != nil {
		return artifact.RunRecord{}, err
	}
	status := pipeline.RunSucceeded
	if len(m.Failed) > 0 {
		status = pipeline.RunPartial
		if m.Failed[string(pipeline.StageRawLoaded)] != "" || m.Failed[string(pipeline.StageFeaturesBuilt)] != "" {
			status = pipeline.RunFailed
		}
	}
	return artifact.RunRecord{
		RunID:      m.RunID,
		FinishedAt: m.CreatedAt,
		Status:     status,
		Completed:  m.Completed,
		Failed:     m.Failed,
	}, nil
}

func (h *Handler) respondArtifactError(w http.ResponseWriter, r *http.Request, name string, err error) {
	if errors.Is(err, artifact.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotReady, name+" has not been produced yet", nil)
		return
	}
	respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to read "+name, err)
}

// parseQuery runs parse, then validates q. It writes the error response
// and returns false on failure.
func parseQuery(w http.ResponseWriter, r *http.Request, parse func() error, q any) bool {
	if err := parse(); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, err.Error(), nil)
		return false
	}
	if verr := validation.ValidateStruct(q); verr != nil {
		respondAPIError(w, http.StatusBadRequest, verr.ToAPIError())
		return false
	}
	return true
}

// parseIntQuery sets *dst from the named query parameter when present.
func parseIntQuery(r *http.Request, name string, dst *int) error {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%s must be an integer", name)
	}
	*dst = v
	return nil
}

func parseForecast(t *artifact.Table) ([]models.ForecastPoint, error) {
	cols, err := columnIndexes(t, "ds", "yhat", "yhat_lower", "yhat_upper")
	if err != nil {
		return nil, err
	}
	out := make([]models.ForecastPoint, 0, len(t.Rows))
	for i, row := range t.Rows {
		ts, err := parseTimestamp(row[cols[0]])
		if err != nil {
			return nil, &artifact.CellError{Table: t.Name, Row: i + 1, Column: "ds", Err: err}
		}
		var vals [3]float64
		for j := range vals {
			if vals[j], err = strconv.ParseFloat(row[cols[j+1]], 64); err != nil {
				return nil, &artifact.CellError{Table: t.Name, Row: i + 1, Column: t.Header[cols[j+1]], Err: err}
			}
		}
		out = append(out, models.ForecastPoint{
			Timestamp: ts,
			Yhat:      vals[0],
			YhatLower: vals[1],
			YhatUpper: vals[2],
		})
	}
	return out, nil
}

func parseRecommendations(t *artifact.Table) (map[string][]models.Recommendation, error) {
	cols, err := columnIndexes(t, "source_id", "target_id", "score", "rank")
	if err != nil {
		return nil, err
	}
	out := make(map[string][]models.Recommendation)
	for i, row := range t.Rows {
		score, err := strconv.ParseFloat(row[cols[2]], 64)
		if err != nil {
			return nil, &artifact.CellError{Table: t.Name, Row: i + 1, Column: "score", Err: err}
		}
		rank, err := strconv.Atoi(row[cols[3]])
		if err != nil {
			return nil, &artifact.CellError{Table: t.Name, Row: i + 1, Column: "rank", Err: err}
		}
		src := row[cols[0]]
		out[src] = append(out[src], models.Recommendation{
			SourceID: src,
			TargetID: row[cols[1]],
			Score:    score,
			Rank:     rank,
		})
	}
	for _, recs := range out {
		slices.SortStableFunc(recs, func(a, b models.Recommendation) int {
			return a.Rank - b.Rank
		})
	}
	return out, nil
}

func columnIndexes(t *artifact.Table, names ...string) ([]int, error) {
	idx := make([]int, len(names))
	for i, n := range names {
		idx[i] = t.ColumnIndex(n)
		if idx[i] < 0 {
			return nil, fmt.Errorf("artifact %s: missing column %q", t.Name, n)
		}
	}
	return idx, nil
}

// parseTimestamp accepts the two date formats artifact tables write.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
