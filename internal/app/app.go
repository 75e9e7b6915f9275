// Package app wires configuration into the services shared by truckd and
// truckctl.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/foodtruck-pipeline/internal/cleanup"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/common"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/dedup"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/export"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/jobs"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/llm"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/llm/gemini"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/metrics"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/pipeline"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/repository"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/scraper"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/trucks"
)

// App holds the wired services. Orchestrator and Usage are nil unless the
// pipeline was requested.
type App struct {
	Config       *common.Config
	Logger       *slog.Logger
	DB           *repository.DB
	Metrics      *metrics.Metrics
	Jobs         *jobs.Service
	Trucks       *trucks.Service
	Dedup        *dedup.Service
	Cleanup      *cleanup.Service
	Export       *export.Service
	Usage        llm.UsageTracker
	Orchestrator *pipeline.Orchestrator

	redis *goredis.Client
}

// Options selects the optional parts to build.
type Options struct {
	Pipeline bool // LLM, scrapers and orchestrator
	Migrate  bool // apply migrations after connecting
}

// New opens the database and builds the services.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := repository.Open(ctx, repository.Config{
		Driver:           cfg.Database.Driver,
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, common.NewAppError("DB_ERROR", "open database", errors.Join(common.ErrDatabase, err))
	}
	a := &App{Config: cfg, Logger: logger, DB: db, Metrics: metrics.New()}

	if err := repository.HealthCheck(ctx, db, cfg.Database.DialTimeout, logger); err != nil {
		a.Close()
		return nil, common.NewAppError("DB_ERROR", "database health check", errors.Join(common.ErrDatabase, err))
	}
	if opts.Migrate || cfg.Database.MigrateOnStart {
		if err := repository.RunMigrations(db, logger); err != nil {
			a.Close()
			return nil, err
		}
	}

	backoff := jobs.Backoff{Base: cfg.Pipeline.RetryBackoff, Max: jobs.DefaultBackoff.Max}
	a.Jobs = jobs.NewService(repository.NewScrapingJobRepository(db, logger), backoff, nil, logger)
	a.Trucks = trucks.NewService(repository.NewFoodTruckRepository(db, logger), nil, nil, logger)
	a.Dedup = dedup.NewService(a.Trucks, logger)
	a.Cleanup = cleanup.NewService(a.Trucks, a.Dedup, cfg.Cleanup.Region, a.Metrics, logger)
	a.Export = export.NewService(a.Trucks, logger)

	if opts.Pipeline {
		if err := a.buildPipeline(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *App) buildPipeline(ctx context.Context) error {
	cfg := a.Config
	if err := cfg.ValidatePipeline(); err != nil {
		return err
	}

	usage, err := a.usageTracker(ctx)
	if err != nil {
		return err
	}
	a.Usage = usage

	gen, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:            cfg.LLM.APIKey,
		Model:             cfg.LLM.Model,
		Temperature:       cfg.LLM.Temperature,
		Timeout:           cfg.LLM.Timeout,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
	}, a.Logger)
	if err != nil {
		return common.NewAppError("LLM_ERROR", "init gemini client", err)
	}

	a.Orchestrator = pipeline.NewOrchestrator(
		a.Logger,
		pipeline.Config{
			JobTimeout:    cfg.Pipeline.JobTimeout,
			BatchBudget:   cfg.Pipeline.BatchBudget,
			BatchLimit:    cfg.Pipeline.BatchLimit,
			Concurrency:   cfg.Pipeline.Concurrency,
			RequeueFailed: cfg.Pipeline.RequeueFailed,
		},
		a.Jobs,
		a.scraper(),
		pipeline.NewExtractStage(a.Logger, gen, usage, a.Metrics),
		a.Trucks,
		a.Dedup,
		pipeline.NewDenylist(cfg.Pipeline.DeniedDomains...),
		a.Metrics,
		nil,
	)
	return nil
}

// scraper prefers Firecrawl when a key is configured and falls back to a
// direct fetch.
func (a *App) scraper() scraper.Scraper {
	cfg := a.Config.Scraper
	direct := scraper.NewDirect(cfg.Timeout, cfg.UserAgent, a.Logger)
	if cfg.FirecrawlAPIKey == "" {
		a.Logger.Info("scraper.direct_only")
		return direct
	}
	fc := scraper.NewFirecrawl(scraper.FirecrawlConfig{
		APIKey:  cfg.FirecrawlAPIKey,
		BaseURL: cfg.FirecrawlBaseURL,
		Timeout: cfg.Timeout,
	}, nil, a.Logger)
	return scraper.NewFallback(a.Logger, fc, direct)
}

// usageTracker returns a Redis backed tracker when REDIS_ADDR is set, and an
// in-process one otherwise.
func (a *App) usageTracker(ctx context.Context) (llm.UsageTracker, error) {
	limits := llm.UsageLimits{
		DailyRequests: a.Config.LLM.DailyRequestLimit,
		DailyTokens:   a.Config.LLM.DailyTokenLimit,
		TokenBuffer:   a.Config.LLM.TokenBuffer,
	}
	rc := a.Config.Redis
	if rc.Addr == "" {
		a.Logger.Warn("llm.usage.memory", "reason", "REDIS_ADDR not set; limits are per process")
		return llm.NewMemoryUsageTracker(limits, nil), nil
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        rc.Addr,
		Password:    rc.Password,
		DB:          rc.DB,
		DialTimeout: rc.DialTimeout,
	})
	pingCtx, cancel := context.WithTimeout(ctx, max(rc.DialTimeout, time.Second))
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, common.NewAppError("REDIS_ERROR", fmt.Sprintf("ping %s", rc.Addr), err)
	}
	a.redis = rdb
	a.Logger.Info("llm.usage.redis", "addr", rc.Addr)
	return llm.NewRedisUsageTracker(rdb, limits, "", nil), nil
}

// Ping checks the database, for health endpoints.
func (a *App) Ping(ctx context.Context) error {
	return repository.HealthCheck(ctx, a.DB, 2*time.Second, a.Logger)
}

// Close releases the connections opened by New.
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.Warn("redis.close.failed", "err", err)
		}
	}
	repository.Close(a.DB, a.Logger)
}
