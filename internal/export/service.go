package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/foodtruck-pipeline/internal/entity"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/quality"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/trucks"
)

const (
	trucksSheet = "Trucks"
	issuesSheet = "Quality Issues"
	pageSize    = 200
)

// Options filters the exported records.
type Options struct {
	MinScore        float64 // only records scoring at least this
	IncludeInactive bool
}

// Service produces XLSX bytes of the food truck catalogue.
type Service struct {
	trucks *trucks.Service
	logger *slog.Logger
}

func NewService(truckSvc *trucks.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{trucks: truckSvc, logger: logger}
}

// ExportTrucksXLSX returns a workbook with one row per truck and one row per
// quality issue.
func (s *Service) ExportTrucksXLSX(ctx context.Context, opts Options) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", trucksSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(issuesSheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(trucksSheet)
	f.SetActiveSheet(activeIndex)

	writeRow(f, trucksSheet, 1, []any{
		"ID", "Name", "Address", "City", "Phone", "Website",
		"Cuisine", "Price Range", "Quality Score", "Quality", "Verification",
		"Last Scraped", "Sources",
	})
	writeRow(f, issuesSheet, 1, []any{"Truck ID", "Name", "Issue"})

	truckRow, issueRow, total := 2, 2, 0
	cursor := uuid.Nil
	for {
		page, err := s.trucks.ListAfter(ctx, cursor, pageSize)
		if err != nil {
			return nil, fmt.Errorf("query trucks: %w", err)
		}
		if len(page) == 0 {
			break
		}
		cursor = page[len(page)-1].ID

		for _, t := range page {
			if (!t.IsActive && !opts.IncludeInactive) || t.DataQualityScore < opts.MinScore {
				continue
			}
			total++
			a := s.trucks.Assess(t)
			writeRow(f, trucksSheet, truckRow, truckCells(t, a))
			truckRow++
			for _, issue := range a.Issues {
				writeRow(f, issuesSheet, issueRow, []any{t.ID.String(), t.Name, issue})
				issueRow++
			}
		}
		if len(page) < pageSize {
			break
		}
	}

	_ = f.SetColWidth(trucksSheet, "A", "A", 38) // id
	_ = f.SetColWidth(trucksSheet, "B", "B", 28) // name
	_ = f.SetColWidth(trucksSheet, "C", "C", 40) // address
	_ = f.SetColWidth(trucksSheet, "D", "H", 16)
	_ = f.SetColWidth(trucksSheet, "M", "M", 60) // sources
	_ = f.SetColWidth(issuesSheet, "A", "A", 38)
	_ = f.SetColWidth(issuesSheet, "B", "B", 28)
	_ = f.SetColWidth(issuesSheet, "C", "C", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", total,
		"issues", issueRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truckCells(t *entity.FoodTruck, a quality.Assessment) []any {
	var address, city string
	if loc := t.CurrentLocation; loc != nil {
		address, city = loc.Address, loc.City
	}
	scraped := ""
	if t.LastScrapedAt != nil {
		scraped = t.LastScrapedAt.UTC().Format("2006-01-02")
	}
	return []any{
		t.ID.String(),
		t.Name,
		truncate(address, 140),
		city,
		t.ContactInfo.Phone,
		t.ContactInfo.Website,
		strings.Join(t.CuisineType, ", "),
		t.PriceRange,
		t.DataQualityScore,
		string(a.Category()),
		t.VerificationStatus,
		scraped,
		strings.Join(t.SourceURLs, "\n"),
	}
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
