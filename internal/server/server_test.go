package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/joseph-ayodele/foodtruck-pipeline/internal/async"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/cleanup"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/export"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/jobs"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/metrics"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/pipeline"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/repository"
)

const secret = "s3cret"

func init() { gin.SetMode(gin.TestMode) }

type fakeRunner struct {
	limit   int
	summary pipeline.Summary
	err     error
}

func (f *fakeRunner) ProcessPending(_ context.Context, limit int) (pipeline.Summary, error) {
	f.limit = limit
	return f.summary, f.err
}

type fakeCleaner struct {
	opts cleanup.Options
	res  *cleanup.Result
	err  error
}

func (f *fakeCleaner) RunFullCleanup(_ context.Context, opts cleanup.Options) (*cleanup.Result, error) {
	f.opts = opts
	return f.res, f.err
}

type fakeExporter struct{ opts export.Options }

func (f *fakeExporter) ExportTrucksXLSX(_ context.Context, opts export.Options) ([]byte, error) {
	f.opts = opts
	return []byte("PK"), nil
}

type fakeQueue struct{ jobs []async.Job }

func (f *fakeQueue) Enqueue(_ context.Context, job async.Job) error {
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeQueue) Shutdown(context.Context) {}

type harness struct {
	router  *gin.Engine
	jobs    *jobs.Service
	runner  *fakeRunner
	cleaner *fakeCleaner
	export  *fakeExporter
	queue   *fakeQueue
	metrics *metrics.Metrics
	pingErr error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := repository.Open(context.Background(), repository.Config{
		Driver: repository.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "server.db"),
	}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { repository.Close(db, nil) })
	if err := repository.RunMigrations(db, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	h := &harness{
		jobs:    jobs.NewService(repository.NewScrapingJobRepository(db, nil), jobs.DefaultBackoff, nil, nil),
		runner:  &fakeRunner{summary: pipeline.Summary{Processed: 2, Succeeded: 1, Failed: 1, Errors: []string{"job x: boom"}, RemainingJobs: 3}},
		cleaner: &fakeCleaner{res: &cleanup.Result{TotalProcessed: 4, DryRun: true, Duration: 1500 * time.Millisecond}},
		export:  &fakeExporter{},
		queue:   &fakeQueue{},
		metrics: metrics.New(),
	}
	h.router = NewRouter(Deps{
		CronSecret: secret,
		Jobs:       h.jobs,
		Pipeline:   h.runner,
		Cleanup:    h.cleaner,
		Export:     h.export,
		Queue:      h.queue,
		Metrics:    h.metrics,
		Ping:       func(context.Context) error { return h.pingErr },
	})
	return h
}

func (h *harness) do(t *testing.T, method, path, auth, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if auth != "" {
		r.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, r)

	var out map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s: %v", w.Body.String(), err)
		}
	}
	return w, out
}

func TestProcessJobsRequiresBearer(t *testing.T) {
	h := newHarness(t)
	for _, auth := range []string{"", "Bearer wrong", "Basic " + secret, secret} {
		w, body := h.do(t, http.MethodPost, "/api/process-jobs", auth, "")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("auth %q: status = %d, want 401", auth, w.Code)
		}
		if body["error"] != "Unauthorized" {
			t.Fatalf("auth %q: body = %v", auth, body)
		}
	}
	if h.runner.limit != 0 {
		t.Fatalf("runner called without auth")
	}
}

func TestEmptySecretRejectsEverything(t *testing.T) {
	r := NewRouter(Deps{Jobs: newHarness(t).jobs, Pipeline: &fakeRunner{}})
	req := httptest.NewRequest(http.MethodPost, "/api/process-jobs", nil)
	req.Header.Set("Authorization", "Bearer ")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestProcessJobs(t *testing.T) {
	h := newHarness(t)
	w, body := h.do(t, http.MethodPost, "/api/process-jobs?limit=3", "Bearer "+secret, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if h.runner.limit != 3 {
		t.Fatalf("limit = %d, want 3", h.runner.limit)
	}
	want := map[string]any{
		"success": true,
		"message": "Job processing completed",
		"data": map[string]any{
			"processed":         float64(2),
			"succeeded":         float64(1),
			"failed":            float64(1),
			"skipped":           float64(0),
			"errors":            []any{"job x: boom"},
			"remaining_jobs":    float64(3),
			"execution_time_ms": float64(0),
		},
	}
	if diff := cmp.Diff(want, body); diff != "" {
		t.Fatalf("body mismatch (-want +got):\n%s", diff)
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Fatalf("request id header missing")
	}
}

func TestProcessJobsBatchFailure(t *testing.T) {
	h := newHarness(t)
	h.runner.err = errors.New("list pending: db down")
	w, body := h.do(t, http.MethodPost, "/api/process-jobs", "Bearer "+secret, "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if body["success"] != false || body["error"] != "list pending: db down" {
		t.Fatalf("body = %v", body)
	}
	if data, ok := body["data"].(map[string]any); !ok || data["processed"] != float64(2) {
		t.Fatalf("partial summary missing: %v", body)
	}
}

func TestProcessJobsBadLimitUsesDefault(t *testing.T) {
	for _, q := range []string{"-1", "0", "abc"} {
		h := newHarness(t)
		h.runner.limit = 99
		w, body := h.do(t, http.MethodPost, "/api/process-jobs?limit="+q, "Bearer "+secret, "")
		if w.Code != http.StatusOK || body["success"] != true {
			t.Fatalf("limit=%s: status = %d body=%s", q, w.Code, w.Body.String())
		}
		if h.runner.limit != 0 {
			t.Errorf("limit=%s: runner got %d, want the default 0", q, h.runner.limit)
		}
	}
}

func TestJobsEndpoints(t *testing.T) {
	h := newHarness(t)
	auth := "Bearer " + secret

	w, body := h.do(t, http.MethodPost, "/api/jobs", auth, `{"job_type":"website_scrape","target_url":"https://tacobus.example","priority":5}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", w.Code, w.Body.String())
	}
	data := body["data"].(map[string]any)
	if data["status"] != "pending" || data["max_retries"] != float64(3) {
		t.Fatalf("created = %v", data)
	}

	if len(h.queue.jobs) != 0 {
		t.Fatalf("job queued without process_now")
	}

	w, body = h.do(t, http.MethodPost, "/api/jobs", auth, `{"job_type":"social_media_scrape","target_handle":"tacobus","platform":"instagram","process_now":true}`)
	if w.Code != http.StatusCreated || body["message"] != "Job created and queued" {
		t.Fatalf("queued create = %d %v", w.Code, body)
	}
	if len(h.queue.jobs) != 1 || h.queue.jobs[0].JobID.String() != body["data"].(map[string]any)["id"] {
		t.Fatalf("queue = %v", h.queue.jobs)
	}

	if w, _ := h.do(t, http.MethodPost, "/api/jobs", auth, `{"target_url":"https://x.example"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing job_type status = %d, want 400", w.Code)
	}
	if w, _ := h.do(t, http.MethodPost, "/api/jobs", auth, `{not json`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json status = %d, want 400", w.Code)
	}

	w, body = h.do(t, http.MethodGet, "/api/process-jobs", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("pending status = %d", w.Code)
	}
	if got := body["data"].(map[string]any)["pending_jobs"]; got != float64(2) {
		t.Fatalf("pending_jobs = %v, want 2", got)
	}

	w, body = h.do(t, http.MethodGet, "/api/jobs?status=pending", auth, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	listed := body["data"].(map[string]any)
	if n := len(listed["jobs"].([]any)); n != 2 {
		t.Fatalf("jobs = %d, want 2", n)
	}
	if got := listed["counts"].(map[string]any)["pending"]; got != float64(2) {
		t.Fatalf("pending count = %v", got)
	}

	if w, _ := h.do(t, http.MethodGet, "/api/jobs?status=bogus", auth, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad status filter = %d, want 400", w.Code)
	}
}

func TestCleanupEndpoint(t *testing.T) {
	h := newHarness(t)
	auth := "Bearer " + secret

	w, body := h.do(t, http.MethodPost, "/api/cleanup", auth, `{"dry_run":true,"batch_size":10,"operations":["Normalize_Phone"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	want := cleanup.Options{BatchSize: 10, DryRun: true, Operations: []cleanup.OperationType{cleanup.NormalizePhone}}
	if diff := cmp.Diff(want, h.cleaner.opts); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
	data := body["data"].(map[string]any)
	if body["message"] != "Cleanup preview completed" || data["total_processed"] != float64(4) || data["duration_ms"] != float64(1500) {
		t.Fatalf("body = %v", body)
	}

	if w, _ := h.do(t, http.MethodPost, "/api/cleanup", auth, `{"operations":["vacuum"]}`); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown op status = %d, want 400", w.Code)
	}

	w, _ = h.do(t, http.MethodPost, "/api/cleanup", auth, "")
	if w.Code != http.StatusOK {
		t.Fatalf("empty body status = %d", w.Code)
	}
	if diff := cmp.Diff(cleanup.AllOperations, h.cleaner.opts.Operations); diff != "" {
		t.Fatalf("default operations mismatch:\n%s", diff)
	}

	h.cleaner.err = context.Canceled
	if w, _ := h.do(t, http.MethodPost, "/api/cleanup", auth, ""); w.Code != http.StatusInternalServerError {
		t.Fatalf("failed run status = %d, want 500", w.Code)
	}
}

func TestExportEndpoint(t *testing.T) {
	h := newHarness(t)
	w, _ := h.do(t, http.MethodGet, "/api/export/trucks.xlsx?min_score=0.5&include_inactive=true", "Bearer "+secret, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get("Content-Type") != xlsxContentType || !bytes.Equal(w.Body.Bytes(), []byte("PK")) {
		t.Fatalf("unexpected response %q %q", w.Header().Get("Content-Type"), w.Body.String())
	}
	if diff := cmp.Diff(export.Options{MinScore: 0.5, IncludeInactive: true}, h.export.opts); diff != "" {
		t.Fatalf("options mismatch:\n%s", diff)
	}
	if w, _ := h.do(t, http.MethodGet, "/api/export/trucks.xlsx?min_score=2", "Bearer "+secret, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad min_score status = %d", w.Code)
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	h := newHarness(t)
	if w, body := h.do(t, http.MethodGet, "/healthz", "", ""); w.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz = %d %v", w.Code, body)
	}
	h.pingErr = errors.New("db gone")
	if w, _ := h.do(t, http.MethodGet, "/healthz", "", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("healthz with failing ping = %d, want 503", w.Code)
	}

	if got := testutil.ToFloat64(h.metrics.HTTPRequests.WithLabelValues("/healthz", "200")); got != 1 {
		t.Fatalf("healthz 200 count = %v, want 1", got)
	}
	w, _ := h.do(t, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "foodtruck_http_requests_total") {
		t.Fatalf("metrics body missing counter: %d", w.Code)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	h := newHarness(t)
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.Header.Set(requestIDHeader, "req-42")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, r)
	if got := w.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("request id = %q, want req-42", got)
	}
}
