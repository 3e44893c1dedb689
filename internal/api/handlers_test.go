// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/roastery/internal/artifact"
	"github.com/tomtom215/roastery/internal/cache"
	"github.com/tomtom215/roastery/internal/events"
	"github.com/tomtom215/roastery/internal/models"
	"github.com/tomtom215/roastery/internal/pipeline"
	"github.com/tomtom215/roastery/internal/supervisor/services"
)

type envelope struct {
	Status   string           `json:"status"`
	Data     json.RawMessage  `json:"data"`
	Metadata models.Metadata  `json:"metadata"`
	Error    *models.APIError `json:"error"`
}

type fakeLedger struct {
	runs []artifact.RunRecord
	err  error
}

func (f *fakeLedger) LatestRun(context.Context) (artifact.RunRecord, error) {
	if f.err != nil {
		return artifact.RunRecord{}, f.err
	}
	if len(f.runs) == 0 {
		return artifact.RunRecord{}, artifact.ErrNotFound
	}
	return f.runs[0], nil
}

func (f *fakeLedger) Runs(_ context.Context, limit int) ([]artifact.RunRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

type fakeTrigger struct {
	err   error
	calls atomic.Int32
}

func (f *fakeTrigger) Trigger() error {
	f.calls.Add(1)
	return f.err
}

type fakeStatus bool

func (f fakeStatus) Running() bool { return bool(f) }

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func newTestHandler(t *testing.T, deps Dependencies) (*Handler, *artifact.Store) {
	t.Helper()
	store, err := artifact.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	deps.Store = store
	if deps.Cache == nil {
		c := cache.New(time.Minute)
		t.Cleanup(c.Stop)
		deps.Cache = c
	}
	h, err := NewHandler(deps)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	return h, store
}

func writeTable(t *testing.T, store *artifact.Store, name string, header []string, rows ...[]any) {
	t.Helper()
	tbl := artifact.NewTable(name, header...)
	for _, r := range rows {
		tbl.Append(r...)
	}
	if _, err := store.WriteTable(context.Background(), tbl); err != nil {
		t.Fatalf("WriteTable(%s) error = %v", name, err)
	}
}

func serve(t *testing.T, h *Handler, method, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	router := NewRouter(h, RouterConfig{CORSOrigins: []string{"*"}})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s %s: %v (body %q)", method, target, err, rec.Body.String())
	}
	return rec, env
}

func TestNewHandler_RequiresStore(t *testing.T) {
	t.Parallel()

	if _, err := NewHandler(Dependencies{}); err == nil {
		t.Error("NewHandler() without store error = nil")
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		deps       Dependencies
		manifest   *artifact.Manifest
		wantStatus string
		wantDB     *bool
		wantRun    string
	}{
		{
			name:       "no runs yet",
			wantStatus: "healthy",
		},
		{
			name:       "database down",
			deps:       Dependencies{DB: fakePinger{err: errors.New("closed")}},
			wantStatus: "degraded",
			wantDB:     new(bool),
		},
		{
			name: "manifest with failed features",
			manifest: &artifact.Manifest{
				RunID:     "run-1",
				CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
				Completed: []string{"RAW_LOADED", "REPORT_EXPORTED"},
				Failed:    map[string]string{"FEATURES_BUILT": "boom"},
			},
			wantStatus: "degraded",
			wantRun:    pipeline.RunFailed,
		},
		{
			name: "ledger succeeded run",
			deps: Dependencies{
				Ledger: &fakeLedger{runs: []artifact.RunRecord{{RunID: "run-9", Status: pipeline.RunSucceeded}}},
				Status: fakeStatus(true),
			},
			wantStatus: "healthy",
			wantRun:    pipeline.RunSucceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, store := newTestHandler(t, tt.deps)
			if tt.manifest != nil {
				if _, err := store.WriteManifest(context.Background(), tt.manifest); err != nil {
					t.Fatalf("WriteManifest() error = %v", err)
				}
			}

			rec, env := serve(t, h, http.MethodGet, "/api/v1/health")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			var health HealthStatus
			if err := json.Unmarshal(env.Data, &health); err != nil {
				t.Fatalf("decode health: %v", err)
			}
			if health.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", health.Status, tt.wantStatus)
			}
			if tt.wantDB != nil && (health.DatabaseConnected == nil || *health.DatabaseConnected != *tt.wantDB) {
				t.Errorf("DatabaseConnected = %v, want %v", health.DatabaseConnected, *tt.wantDB)
			}
			if health.LastRunStatus != tt.wantRun {
				t.Errorf("LastRunStatus = %q, want %q", health.LastRunStatus, tt.wantRun)
			}
			if health.Version != "dev" {
				t.Errorf("Version = %q, want dev", health.Version)
			}
		})
	}
}

func TestReport_CacheAndInvalidate(t *testing.T) {
	t.Parallel()

	h, store := newTestHandler(t, Dependencies{})

	rec, env := serve(t, h, http.MethodGet, "/api/v1/report")
	if rec.Code != http.StatusNotFound || env.Error == nil || env.Error.Code != ErrCodeNotReady {
		t.Fatalf("before run: status %d, error %+v; want 404 NOT_READY", rec.Code, env.Error)
	}

	header := []string{"metric", "value"}
	writeTable(t, store, pipeline.ArtifactMetrics, header, []any{"forecast_mae", 1.5}, []any{"recs_coverage", 0.25})

	_, env = serve(t, h, http.MethodGet, "/api/v1/report")
	var report map[string]float64
	if err := json.Unmarshal(env.Data, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report["forecast_mae"] != 1.5 || report["recs_coverage"] != 0.25 {
		t.Errorf("report = %v", report)
	}
	if env.Metadata.Cached {
		t.Error("first read reported cached")
	}

	writeTable(t, store, pipeline.ArtifactMetrics, header, []any{"forecast_mae", 2.0})
	_, env = serve(t, h, http.MethodGet, "/api/v1/report")
	if !env.Metadata.Cached {
		t.Error("second read was not served from cache")
	}

	if err := h.InvalidateOnRun(context.Background(), &events.RunEvent{RunID: "r", Status: events.StatusSucceeded}); err != nil {
		t.Fatalf("InvalidateOnRun() error = %v", err)
	}
	_, env = serve(t, h, http.MethodGet, "/api/v1/report")
	report = nil
	if err := json.Unmarshal(env.Data, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report["forecast_mae"] != 2.0 {
		t.Errorf("after invalidation forecast_mae = %v, want 2", report["forecast_mae"])
	}
}

func TestRecommendations(t *testing.T) {
	t.Parallel()

	h, store := newTestHandler(t, Dependencies{})
	writeTable(t, store, pipeline.ArtifactRecommendations,
		[]string{"source_id", "target_id", "score", "rank"},
		[]any{"A", "C", 0.5, 2},
		[]any{"A", "B", 0.9, 1},
		[]any{"A", "D", 0.1, 3},
		[]any{"B", "A", 0.9, 1},
	)

	tests := []struct {
		name       string
		target     string
		wantCode   int
		wantErr    string
		wantTarget []string
	}{
		{name: "ranked", target: "/api/v1/recommendations/A", wantCode: 200, wantTarget: []string{"B", "C", "D"}},
		{name: "limit", target: "/api/v1/recommendations/A?limit=2", wantCode: 200, wantTarget: []string{"B", "C"}},
		{name: "unknown product", target: "/api/v1/recommendations/Z", wantCode: 404, wantErr: ErrCodeNotFound},
		{name: "zero limit", target: "/api/v1/recommendations/A?limit=0", wantCode: 400, wantErr: ErrCodeValidation},
		{name: "limit too large", target: "/api/v1/recommendations/A?limit=1000", wantCode: 400, wantErr: ErrCodeValidation},
		{name: "non-numeric limit", target: "/api/v1/recommendations/A?limit=abc", wantCode: 400, wantErr: ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec, env := serve(t, h, http.MethodGet, tt.target)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantErr != "" {
				if env.Error == nil || env.Error.Code != tt.wantErr {
					t.Errorf("error = %+v, want code %s", env.Error, tt.wantErr)
				}
				return
			}
			var recs []models.Recommendation
			if err := json.Unmarshal(env.Data, &recs); err != nil {
				t.Fatalf("decode: %v", err)
			}
			got := make([]string, len(recs))
			for i, r := range recs {
				got[i] = r.TargetID
			}
			if strings.Join(got, ",") != strings.Join(tt.wantTarget, ",") {
				t.Errorf("targets = %v, want %v", got, tt.wantTarget)
			}
		})
	}
}

func TestRecommendations_CacheKeyedByProductAndLimit(t *testing.T) {
	t.Parallel()

	h, store := newTestHandler(t, Dependencies{})
	writeTable(t, store, pipeline.ArtifactRecommendations,
		[]string{"source_id", "target_id", "score", "rank"},
		[]any{"A", "B", 0.9, 1},
		[]any{"A", "C", 0.5, 2},
		[]any{"B", "A", 0.9, 1},
	)

	steps := []struct {
		target     string
		wantCached bool
		wantLen    int
	}{
		{"/api/v1/recommendations/A?limit=1", false, 1},
		{"/api/v1/recommendations/A?limit=1", true, 1},
		{"/api/v1/recommendations/A?limit=2", false, 2},
		{"/api/v1/recommendations/B?limit=1", false, 1},
		{"/api/v1/recommendations/A?limit=2", true, 2},
	}
	for i, st := range steps {
		rec, env := serve(t, h, http.MethodGet, st.target)
		if rec.Code != http.StatusOK {
			t.Fatalf("step %d: status = %d", i, rec.Code)
		}
		var recs []models.Recommendation
		if err := json.Unmarshal(env.Data, &recs); err != nil {
			t.Fatalf("step %d: decode: %v", i, err)
		}
		if env.Metadata.Cached != st.wantCached || len(recs) != st.wantLen {
			t.Errorf("step %d %s: cached %v len %d, want %v and %d",
				i, st.target, env.Metadata.Cached, len(recs), st.wantCached, st.wantLen)
		}
	}

	_, env := serve(t, h, http.MethodGet, "/api/v1/health")
	var health HealthStatus
	if err := json.Unmarshal(env.Data, &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.CacheHitRate != 0.4 {
		t.Errorf("CacheHitRate = %v, want 0.4 after 2 hits in 5 lookups", health.CacheHitRate)
	}
}

func TestForecast(t *testing.T) {
	t.Parallel()

	h, store := newTestHandler(t, Dependencies{})
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([][]any, 5)
	for i := range rows {
		v := float64(i)
		rows[i] = []any{day.AddDate(0, 0, i), v, v - 1, v + 1}
	}
	writeTable(t, store, pipeline.ArtifactForecast, []string{"ds", "yhat", "yhat_lower", "yhat_upper"}, rows...)

	_, env := serve(t, h, http.MethodGet, "/api/v1/forecast?days=2")
	var points []models.ForecastPoint
	if err := json.Unmarshal(env.Data, &points); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("len = %d, want 2", len(points))
	}
	if !points[0].Timestamp.Equal(day.AddDate(0, 0, 3)) || points[1].Yhat != 4 || points[1].YhatUpper != 5 {
		t.Errorf("points = %+v", points)
	}

	_, env = serve(t, h, http.MethodGet, "/api/v1/forecast")
	points = nil
	if err := json.Unmarshal(env.Data, &points); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(points) != 5 {
		t.Errorf("len = %d, want 5", len(points))
	}

	rec, _ := serve(t, h, http.MethodGet, "/api/v1/forecast?days=-1")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("days=-1 status = %d, want 400", rec.Code)
	}
}

func TestTriggerRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		deps     Dependencies
		wantCode int
	}{
		{name: "no trigger", wantCode: http.StatusServiceUnavailable},
		{name: "accepted", deps: Dependencies{Trigger: &fakeTrigger{}}, wantCode: http.StatusAccepted},
		{name: "running", deps: Dependencies{Trigger: &fakeTrigger{}, Status: fakeStatus(true)}, wantCode: http.StatusConflict},
		{
			name:     "rate limited",
			deps:     Dependencies{Trigger: &fakeTrigger{err: services.ErrTriggerRateLimited}},
			wantCode: http.StatusTooManyRequests,
		},
		{
			name:     "other error",
			deps:     Dependencies{Trigger: &fakeTrigger{err: errors.New("boom")}},
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, _ := newTestHandler(t, tt.deps)
			rec, _ := serve(t, h, http.MethodPost, "/api/v1/runs")
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestRuns(t *testing.T) {
	t.Parallel()

	ledger := &fakeLedger{runs: []artifact.RunRecord{
		{RunID: "run-3", Status: pipeline.RunSucceeded},
		{RunID: "run-2", Status: pipeline.RunPartial},
		{RunID: "run-1", Status: pipeline.RunFailed},
	}}
	h, _ := newTestHandler(t, Dependencies{Ledger: ledger})

	_, env := serve(t, h, http.MethodGet, "/api/v1/runs?limit=2")
	var runs []artifact.RunRecord
	if err := json.Unmarshal(env.Data, &runs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "run-3" {
		t.Errorf("runs = %+v", runs)
	}

	rec, env := serve(t, h, http.MethodGet, "/api/v1/runs/latest")
	if rec.Code != http.StatusOK || env.Metadata.RunID != "run-3" {
		t.Errorf("latest: status %d, run %q", rec.Code, env.Metadata.RunID)
	}

	noLedger, _ := newTestHandler(t, Dependencies{})
	if rec, _ := serve(t, noLedger, http.MethodGet, "/api/v1/runs"); rec.Code != http.StatusNotFound {
		t.Errorf("without ledger status = %d, want 404", rec.Code)
	}
	if rec, env := serve(t, noLedger, http.MethodGet, "/api/v1/runs/latest"); rec.Code != http.StatusNotFound || env.Error.Code != ErrCodeNotReady {
		t.Errorf("latest without runs: status %d, error %+v", rec.Code, env.Error)
	}
}
