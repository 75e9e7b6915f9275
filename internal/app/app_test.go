package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/joseph-ayodele/foodtruck-pipeline/internal/common"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/jobs"
)

func sqliteConfig(t *testing.T) *common.Config {
	t.Helper()
	cfg := common.DefaultConfig()
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = filepath.Join(t.TempDir(), "app.db")
	return cfg
}

func TestNewWiresServices(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, sqliteConfig(t), nil, Options{Migrate: true})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()

	if a.Orchestrator != nil || a.Usage != nil {
		t.Fatalf("pipeline built without being requested")
	}
	if err := a.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	job, err := a.Jobs.CreateJob(ctx, jobs.JobSpec{JobType: "website_scrape", TargetURL: "https://tacobus.example"})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	n, err := a.Jobs.PendingCount(ctx)
	if err != nil || n != 1 {
		t.Fatalf("pending = %d, %v; want 1 (job %s)", n, err, job.ID)
	}
	if c, err := a.Trucks.Count(ctx); err != nil || c != 0 {
		t.Fatalf("trucks = %d, %v", c, err)
	}
}

func TestNewPipelineRequiresKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	_, err := New(context.Background(), sqliteConfig(t), nil, Options{Migrate: true, Pipeline: true})
	if err == nil {
		t.Fatal("expected missing key error")
	}
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "CONFIG_ERROR" {
		t.Fatalf("err = %v, want CONFIG_ERROR", err)
	}
}

func TestNewBadDriverFails(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Database.Driver = "postgres"
	cfg.Database.DSN = "::not a dsn::"
	if _, err := New(context.Background(), cfg, nil, Options{}); !errors.Is(err, common.ErrDatabase) {
		t.Fatalf("err = %v, want ErrDatabase", err)
	}
}
