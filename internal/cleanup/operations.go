package cleanup

import (
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/foodtruck-pipeline/internal/common"
)

// OperationType names one cleanup pass.
type OperationType string

const (
	RemovePlaceholders  OperationType = "remove_placeholders"
	NormalizePhone      OperationType = "normalize_phone"
	FixCoordinates      OperationType = "fix_coordinates"
	UpdateQualityScores OperationType = "update_quality_scores"
	MergeDuplicates     OperationType = "merge_duplicates"
)

// AllOperations is the default set, in run order.
var AllOperations = []OperationType{
	RemovePlaceholders,
	NormalizePhone,
	FixCoordinates,
	UpdateQualityScores,
	MergeDuplicates,
}

// Description returns the operator-facing label of the pass.
func (t OperationType) Description() string {
	switch t {
	case RemovePlaceholders:
		return "Remove placeholder and mock data values"
	case NormalizePhone:
		return "Normalize phone numbers to consistent format"
	case FixCoordinates:
		return "Fix invalid GPS coordinates"
	case UpdateQualityScores:
		return "Recalculate data quality scores"
	case MergeDuplicates:
		return "Identify and merge duplicate truck entries"
	}
	return "Unknown operation"
}

// ParseOperations converts names to operation types. Empty input selects
// AllOperations.
func ParseOperations(names []string) ([]OperationType, error) {
	if len(names) == 0 {
		return AllOperations, nil
	}
	out := make([]OperationType, 0, len(names))
	seen := map[OperationType]bool{}
	for _, n := range names {
		op := OperationType(strings.ToLower(strings.TrimSpace(n)))
		if op.Description() == "Unknown operation" {
			return nil, common.NewValidationError("operations", n, fmt.Sprintf("unknown operation; must be one of %s", joinOps(AllOperations)))
		}
		if !seen[op] {
			seen[op] = true
			out = append(out, op)
		}
	}
	return out, nil
}

func joinOps(ops []OperationType) string {
	s := make([]string, len(ops))
	for i, op := range ops {
		s[i] = string(op)
	}
	return strings.Join(s, ", ")
}

// Options controls one cleanup run.
type Options struct {
	BatchSize  int // default 50
	DryRun     bool
	Operations []OperationType // default AllOperations
}

// Operation reports one pass, summed over every page.
type Operation struct {
	Type          OperationType `json:"type"`
	Description   string        `json:"description"`
	AffectedCount int           `json:"affected_count"`
	SuccessCount  int           `json:"success_count"`
	ErrorCount    int           `json:"error_count"`
	Errors        []string      `json:"errors"`
}

func (o *Operation) fail(format string, args ...any) {
	o.ErrorCount++
	o.Errors = append(o.Errors, fmt.Sprintf(format, args...))
}

type Summary struct {
	TrucksImproved          int `json:"trucks_improved"`
	DuplicatesRemoved       int `json:"duplicates_removed"`
	PlaceholdersRemoved     int `json:"placeholders_removed"`
	QualityScoreImprovement int `json:"quality_score_improvement"`
}

// Result reports a whole cleanup run.
type Result struct {
	TotalProcessed int           `json:"total_processed"`
	Operations     []Operation   `json:"operations"`
	Summary        Summary       `json:"summary"`
	Duration       time.Duration `json:"duration"`
	DryRun         bool          `json:"dry_run"`
}

// Operation returns the report for t, or nil when t did not run.
func (r *Result) Operation(t OperationType) *Operation {
	for i := range r.Operations {
		if r.Operations[i].Type == t {
			return &r.Operations[i]
		}
	}
	return nil
}
