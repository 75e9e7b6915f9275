// Package server exposes the pipeline trigger, cleanup and job intake over
// HTTP with gin.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/foodtruck-pipeline/internal/async"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/cleanup"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/common"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/entity"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/export"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/jobs"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/metrics"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/pipeline"
)

const requestIDHeader = "X-Request-ID"

// BatchRunner drains pending jobs.
type BatchRunner interface {
	ProcessPending(ctx context.Context, limit int) (pipeline.Summary, error)
}

// Cleaner runs a cleanup pass over stored records.
type Cleaner interface {
	RunFullCleanup(ctx context.Context, opts cleanup.Options) (*cleanup.Result, error)
}

// JobStore is the job intake and reporting surface.
type JobStore interface {
	CreateJob(ctx context.Context, spec jobs.JobSpec) (*entity.ScrapingJob, error)
	ListJobs(ctx context.Context, status string, limit int) ([]*entity.ScrapingJob, error)
	PendingCount(ctx context.Context) (int, error)
	Counts(ctx context.Context) (map[string]int, error)
}

// Exporter renders the catalogue workbook.
type Exporter interface {
	ExportTrucksXLSX(ctx context.Context, opts export.Options) ([]byte, error)
}

// Deps wires the HTTP surface. Jobs is required. Pipeline, Cleanup and Export
// may be nil, in which case their routes are not mounted.
type Deps struct {
	Logger     *slog.Logger
	CronSecret string
	Jobs       JobStore
	Pipeline   BatchRunner
	Cleanup    Cleaner
	Export     Exporter
	Queue      async.Queue
	Ping       func(ctx context.Context) error
	Metrics    *metrics.Metrics
}

// envelope is the body of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func respondOK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

func respondError(c *gin.Context, err error, message string) {
	c.JSON(common.HTTPStatus(err), envelope{Success: false, Message: message, Error: err.Error()})
}

// NewRouter builds the gin engine.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog(d.Logger, d.Metrics))

	router.GET("/healthz", healthz(d.Ping))
	if d.Metrics != nil {
		router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	api := router.Group("/api")
	api.GET("/process-jobs", pendingStatus(d.Jobs, d.Logger))

	protected := api.Group("")
	protected.Use(requireCron(d.CronSecret, d.Logger))
	if d.Pipeline != nil {
		protected.POST("/process-jobs", processJobs(d.Pipeline, d.Logger))
	}
	if d.Cleanup != nil {
		protected.POST("/cleanup", runCleanup(d.Cleanup, d.Logger))
	}
	protected.POST("/jobs", createJob(d.Jobs, d.Queue, d.Logger))
	protected.GET("/jobs", listJobs(d.Jobs, d.Logger))
	if d.Export != nil {
		protected.GET("/export/trucks.xlsx", exportTrucks(d.Export, d.Logger))
	}
	return router
}

// requestID propagates X-Request-ID, minting one when absent.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header(requestIDHeader, rid)
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), rid))
		c.Next()
	}
}

func accessLog(logger *slog.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		m.ObserveHTTP(route, status)
		common.LoggerFrom(c.Request.Context(), logger).Debug("http.request",
			"method", c.Request.Method,
			"route", route,
			"status", status,
		)
	}
}

// requireCron checks the bearer token against secret. An empty secret
// rejects every request.
func requireCron(secret string, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok || secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			common.LoggerFrom(c.Request.Context(), logger).Warn("http.unauthorized", "route", c.FullPath())
			c.AbortWithStatusJSON(http.StatusUnauthorized, envelope{Success: false, Error: "Unauthorized"})
			return
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:]), true
	}
	return "", false
}

func healthz(ping func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping != nil {
			if err := ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// bindOptional decodes a JSON body when one was sent.
func bindOptional(c *gin.Context, dst any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return common.NewAppError("BAD_REQUEST", "invalid JSON body", errors.Join(common.ErrInvalidInput, err))
	}
	return nil
}
