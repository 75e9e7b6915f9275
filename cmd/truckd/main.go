package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/foodtruck-pipeline/internal/app"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/async"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/common"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/ingest"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/logging"
	svc "github.com/joseph-ayodele/foodtruck-pipeline/internal/server"
)

func main() {
	if err := common.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg, err := common.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger, logCloser := logging.New(cfg.Log, logging.Options{Service: "truckd"})
	defer logCloser.Close()
	slog.SetDefault(logger)

	if err := cfg.ValidateServer(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, app.Options{Pipeline: true})
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	queue := async.NewProcessorQueue(a.Orchestrator, logger,
		async.WithWorkers(cfg.Pipeline.Concurrency),
		async.WithQueueSize(128),
		async.WithProcessTimeout(cfg.Pipeline.JobTimeout+5*time.Second),
	)

	// HTTP trigger surface
	gin.SetMode(gin.ReleaseMode)
	router := svc.NewRouter(svc.Deps{
		Logger:     logger,
		CronSecret: cfg.Server.CronSecret,
		Jobs:       a.Jobs,
		Pipeline:   a.Orchestrator,
		Cleanup:    a.Cleanup,
		Export:     a.Export,
		Queue:      queue,
		Ping:       a.Ping,
		Metrics:    a.Metrics,
	})
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("truckd http listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			stop()
		}
	}()

	// gRPC health for orchestrators and grpcurl
	var grpcServer *grpc.Server
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
			os.Exit(1)
		}
		grpcServer = grpc.NewServer()
		healthServer := health.NewServer()
		grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
		reflection.Register(grpcServer)

		logger.Info("truckd grpc health listening", "addr", cfg.Server.GRPCAddr)
		go func() {
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC serve error", "error", err)
				stop()
			}
		}()
	}

	if cfg.Server.ScheduleInterval > 0 {
		go schedule(ctx, cfg.Server.ScheduleInterval, a, logger)
	}

	if cfg.Server.SeedDir != "" {
		importer := ingest.NewImporter(a.Jobs, logger)
		go func() {
			err := importer.Watch(ctx, ingest.WatchConfig{
				Roots:       []string{cfg.Server.SeedDir},
				InitialScan: true,
				Debounce:    500 * time.Millisecond,
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("seed watcher stopped", "dir", cfg.Server.SeedDir, "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	queue.Shutdown(shutdownCtx)
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
}

// schedule drains pending jobs every interval, in place of an external cron.
// Runs never overlap.
func schedule(ctx context.Context, every time.Duration, a *app.App, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	logger.Info("schedule.start", "interval", every.String())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summary, err := a.Orchestrator.ProcessPending(ctx, 0)
			if err != nil {
				logger.Error("schedule.batch.failed", "err", err, "processed", summary.Processed)
				continue
			}
			if summary.Processed > 0 {
				logger.Info("schedule.batch.done",
					"processed", summary.Processed,
					"succeeded", summary.Succeeded,
					"failed", summary.Failed,
					"remaining_jobs", summary.RemainingJobs,
				)
			}
		}
	}
}
