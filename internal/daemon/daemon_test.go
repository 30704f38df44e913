package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"linksort/internal/config"
	"linksort/internal/jobstate"
	"linksort/internal/logging"
	"linksort/internal/organize"
)

type blockingRunner struct{ started atomic.Int32 }

func (r *blockingRunner) Run(ctx context.Context) error {
	r.started.Add(1)
	<-ctx.Done()
	return nil
}

type jobsStub struct {
	recovered int
	status    organize.Status
}

func (j *jobsStub) Recover(context.Context) (bool, error) {
	j.recovered++
	return true, nil
}

func (j *jobsStub) Status(context.Context) (organize.Status, error) {
	return j.status, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	dir := t.TempDir()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	return &cfg
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testConfig(t)
	runner := &blockingRunner{}
	jobs := &jobsStub{}
	d, err := New(cfg, runner, jobs, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if jobs.recovered != 1 {
		t.Fatalf("expected recovery check on start, got %d", jobs.recovered)
	}
	if !d.Status(ctx).Running {
		t.Fatal("expected daemon to report running")
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	other, _ := New(cfg, &blockingRunner{}, &jobsStub{}, logging.NewNop())
	if err := other.Start(ctx); err == nil {
		other.Stop()
		t.Fatal("expected second instance to be refused by the lock")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	deadline := time.Now().Add(time.Second)
	for runner.started.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if runner.started.Load() != 1 {
		t.Fatal("expected scheduler loop to have run")
	}

	// The lock is free again.
	if err := other.Start(ctx); err != nil {
		t.Fatalf("expected restart after stop, got %v", err)
	}
	other.Stop()
}

func TestStatusEndpointRequiresToken(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Bind = "127.0.0.1:0"
	cfg.Metrics.Token = "secret"
	next := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
	jobs := &jobsStub{status: organize.Status{
		State: &jobstate.State{
			JobID:    "job-1",
			Phase:    jobstate.PhaseBatchArmed,
			Items:    []string{"a", "b", "c"},
			Cursor:   2,
			Taxonomy: []string{"News", "Unclassified"},
		},
		NextWake: next,
		Armed:    true,
	}}
	d, err := New(cfg, &blockingRunner{}, jobs, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	handler := d.server.routes()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var payload statusPayload
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Job == nil || payload.Job.Cursor != 2 || payload.Job.Total != 3 || payload.Job.TaxonomySize != 2 {
		t.Fatalf("unexpected job payload %+v", payload.Job)
	}
	if payload.Job.NextWake == nil || !payload.Job.NextWake.Equal(next) {
		t.Fatalf("expected next wake %s, got %v", next, payload.Job.NextWake)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected stopped daemon to be unhealthy, got %d", w.Code)
	}
}
