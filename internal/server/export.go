package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/foodtruck-pipeline/internal/common"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/export"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func exportTrucks(svc Exporter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		opts := export.Options{IncludeInactive: c.Query("include_inactive") == "true"}
		if raw := strings.TrimSpace(c.Query("min_score")); raw != "" {
			score, err := strconv.ParseFloat(raw, 64)
			if err != nil || score < 0 || score > 1 {
				respondError(c, common.NewValidationError("min_score", raw, "must be between 0 and 1"), "Export failed")
				return
			}
			opts.MinScore = score
		}

		xlsx, err := svc.ExportTrucksXLSX(ctx, opts)
		if err != nil {
			common.LoggerFrom(ctx, logger).Error("export.xlsx.failed", "err", err)
			respondError(c, err, "Export failed")
			return
		}
		name := fmt.Sprintf("food-trucks-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, name))
		c.Data(http.StatusOK, xlsxContentType, xlsx)
	}
}
