package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/foodtruck-pipeline/internal/cleanup"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/common"
)

type cleanupRequest struct {
	DryRun     bool     `json:"dry_run"`
	BatchSize  int      `json:"batch_size"`
	Operations []string `json:"operations"`
}

type cleanupResponse struct {
	*cleanup.Result
	DurationMs int64 `json:"duration_ms"`
}

func runCleanup(svc Cleaner, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var req cleanupRequest
		if err := bindOptional(c, &req); err != nil {
			respondError(c, err, "Cleanup failed")
			return
		}
		if req.BatchSize < 0 {
			respondError(c, common.NewValidationError("batch_size", req.BatchSize, "must not be negative"), "Cleanup failed")
			return
		}
		ops, err := cleanup.ParseOperations(req.Operations)
		if err != nil {
			respondError(c, err, "Cleanup failed")
			return
		}

		res, err := svc.RunFullCleanup(ctx, cleanup.Options{
			BatchSize:  req.BatchSize,
			DryRun:     req.DryRun,
			Operations: ops,
		})
		if err != nil {
			common.LoggerFrom(ctx, logger).Error("http.cleanup.failed", "err", err)
			body := envelope{Success: false, Message: "Cleanup failed", Error: err.Error()}
			if res != nil {
				body.Data = cleanupResponse{Result: res, DurationMs: res.Duration.Milliseconds()}
			}
			c.JSON(common.HTTPStatus(err), body)
			return
		}
		msg := "Cleanup completed"
		if res.DryRun {
			msg = "Cleanup preview completed"
		}
		respondOK(c, msg, cleanupResponse{Result: res, DurationMs: res.Duration.Milliseconds()})
	}
}
