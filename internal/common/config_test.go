package common

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "truck.toml")
	toml := `
[database]
driver = "sqlite"
dsn = "file-from-toml.db"

[pipeline]
batch_limit = 7
job_timeout_seconds = 4
denied_domains = ["allevents.in"]

[cleanup.region]
min_lat = 40.0
max_lat = 41.0
min_lng = -75.0
max_lng = -73.0
`
	if err := os.WriteFile(path, []byte(toml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DB_URL", "file-from-env.db")
	t.Setenv("PIPELINE_CONCURRENCY", "3")
	t.Setenv("PIPELINE_DENIED_DOMAINS", "example.org, ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "file-from-env.db" {
		t.Fatalf("unexpected database config: %+v", cfg.Database)
	}
	if cfg.Pipeline.BatchLimit != 7 || cfg.Pipeline.Concurrency != 3 || cfg.Pipeline.JobTimeout != 4*time.Second {
		t.Fatalf("unexpected pipeline config: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.BatchBudget != 9*time.Second {
		t.Fatalf("default batch budget lost: %v", cfg.Pipeline.BatchBudget)
	}
	if got := cfg.Pipeline.DeniedDomains; len(got) != 2 || got[0] != "allevents.in" || got[1] != "example.org" {
		t.Fatalf("unexpected denied domains: %v", got)
	}
	if !cfg.Cleanup.Region.Contains(40.7, -74.0) || cfg.Cleanup.Region.Contains(32.7, -79.9) {
		t.Fatalf("region not loaded from file: %+v", cfg.Cleanup.Region)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	var appErr *AppError
	if err := cfg.Validate(); !errors.As(err, &appErr) || appErr.Code != "CONFIG_ERROR" {
		t.Fatalf("missing DSN should fail with CONFIG_ERROR, got %v", err)
	}
	cfg.Database.DSN = "postgres://localhost/trucks"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := cfg.ValidateServer(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("missing CRON_SECRET should fail, got %v", err)
	}
	cfg.Server.CronSecret = "s3cret"
	if err := cfg.ValidateServer(); err != nil {
		t.Fatalf("validate server: %v", err)
	}
	if err := cfg.ValidatePipeline(); err == nil {
		t.Fatal("missing GEMINI_API_KEY should fail")
	}
	cfg.Database.Driver = "mysql"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unsupported driver accepted")
	}
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("missing .env should be ignored: %v", err)
	}
}
