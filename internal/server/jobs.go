package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/foodtruck-pipeline/internal/async"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/common"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/jobs"
)

const maxListLimit = 500

// processJobs runs one batch. A batch-level failure responds 500 with the
// partial summary in the body.
func processJobs(runner BatchRunner, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := common.LoggerFrom(ctx, logger)

		// the trigger answers 200, 401 or 500 only; a bad limit falls back
		// to the configured batch size
		limit, err := queryInt(c, "limit", 0)
		if err != nil {
			log.Warn("http.process_jobs.bad_limit", "limit", c.Query("limit"), "err", err)
			limit = 0
		}

		summary, err := runner.ProcessPending(ctx, limit)
		if err != nil {
			log.Error("http.process_jobs.failed", "err", err, "processed", summary.Processed)
			c.JSON(http.StatusInternalServerError, envelope{
				Success: false,
				Message: "Job processing failed",
				Error:   err.Error(),
				Data:    summary,
			})
			return
		}
		log.Info("http.process_jobs.ok",
			"processed", summary.Processed,
			"succeeded", summary.Succeeded,
			"failed", summary.Failed,
			"remaining_jobs", summary.RemainingJobs,
		)
		respondOK(c, "Job processing completed", summary)
	}
}

func pendingStatus(store JobStore, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := store.PendingCount(c.Request.Context())
		if err != nil {
			common.LoggerFrom(c.Request.Context(), logger).Error("http.pending.failed", "err", err)
			respondError(c, err, "Could not count pending jobs")
			return
		}
		respondOK(c, "Job processor endpoint", gin.H{
			"pending_jobs": n,
			"info":         "Use POST with proper authorization to process pending jobs",
		})
	}
}

type createJobRequest struct {
	JobType      string     `json:"job_type"`
	TargetURL    string     `json:"target_url"`
	TargetHandle string     `json:"target_handle"`
	Platform     string     `json:"platform"`
	Priority     int        `json:"priority"`
	MaxRetries   int        `json:"max_retries"`
	ScheduledAt  *time.Time `json:"scheduled_at"`
	ProcessNow   bool       `json:"process_now"`
}

// createJob stores a pending job. With process_now and a queue it is also
// handed to a background worker.
func createJob(store JobStore, queue async.Queue, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createJobRequest
		if err := bindOptional(c, &req); err != nil {
			respondError(c, err, "Invalid job")
			return
		}
		spec := jobs.JobSpec{
			JobType:      req.JobType,
			TargetURL:    req.TargetURL,
			TargetHandle: req.TargetHandle,
			Platform:     req.Platform,
			Priority:     req.Priority,
			MaxRetries:   req.MaxRetries,
		}
		if req.ScheduledAt != nil {
			spec.ScheduledAt = req.ScheduledAt.UTC()
		}
		job, err := store.CreateJob(c.Request.Context(), spec)
		if err != nil {
			respondError(c, err, "Invalid job")
			return
		}
		log := common.LoggerFrom(c.Request.Context(), logger)
		log.Info("http.job.created", "job_id", job.ID, "job_type", job.JobType)

		msg := "Job created"
		if req.ProcessNow && queue != nil {
			if err := queue.Enqueue(c.Request.Context(), async.Job{JobID: job.ID}); err != nil {
				log.Warn("http.job.enqueue.failed", "job_id", job.ID, "err", err)
			} else {
				msg = "Job created and queued"
			}
		}
		c.JSON(http.StatusCreated, envelope{Success: true, Message: msg, Data: job})
	}
}

func listJobs(store JobStore, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		limit, err := queryInt(c, "limit", 50)
		if err != nil {
			respondError(c, err, "Could not list jobs")
			return
		}
		limit = min(limit, maxListLimit)

		list, err := store.ListJobs(ctx, strings.TrimSpace(c.Query("status")), limit)
		if err != nil {
			respondError(c, err, "Could not list jobs")
			return
		}
		counts, err := store.Counts(ctx)
		if err != nil {
			common.LoggerFrom(ctx, logger).Error("http.jobs.counts.failed", "err", err)
			respondError(c, err, "Could not list jobs")
			return
		}
		respondOK(c, "", gin.H{"jobs": list, "counts": counts})
	}
}

// queryInt reads a positive integer query parameter, returning def when absent.
func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, common.NewValidationError(name, raw, "must be a positive integer")
	}
	return n, nil
}
