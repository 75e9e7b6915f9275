// Package cleanup repairs stored food truck records in id-ordered batches.
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/foodtruck-pipeline/internal/common"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/dedup"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/entity"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/metrics"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/trucks"
)

const (
	DefaultBatchSize = 50
	// ScoreEpsilon is the smallest score change worth a write.
	ScoreEpsilon = 0.001
)

type Service struct {
	trucks  *trucks.Service
	dedup   *dedup.Service
	region  common.RegionBounds
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(truckSvc *trucks.Service, dedupSvc *dedup.Service, region common.RegionBounds, m *metrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		trucks:  truckSvc,
		dedup:   dedupSvc,
		region:  region,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// runState is shared by every page of one run.
type runState struct {
	dryRun    bool
	processed map[uuid.UUID]bool // visited by the merge pass
	removed   map[uuid.UUID]bool // merged away
	improved  map[uuid.UUID]bool
}

// RunFullCleanup pages through every record by id and applies the selected
// operations to each page in order. A failed write is recorded on its
// operation and the run continues; a failed page read ends the run and is
// returned with the partial result.
func (s *Service) RunFullCleanup(ctx context.Context, opts Options) (*Result, error) {
	start := s.now()
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	ops := opts.Operations
	if len(ops) == 0 {
		ops = AllOperations
	}

	res := &Result{DryRun: opts.DryRun, Operations: make([]Operation, len(ops))}
	for i, op := range ops {
		res.Operations[i] = Operation{Type: op, Description: op.Description(), Errors: []string{}}
	}
	st := &runState{
		dryRun:    opts.DryRun,
		processed: map[uuid.UUID]bool{},
		removed:   map[uuid.UUID]bool{},
		improved:  map[uuid.UUID]bool{},
	}
	s.logger.Info("cleanup.start", "dry_run", opts.DryRun, "batch_size", opts.BatchSize, "operations", ops)

	var runErr error
	cursor := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		page, err := s.trucks.ListAfter(ctx, cursor, opts.BatchSize)
		if err != nil {
			runErr = fmt.Errorf("list trucks after %s: %w", cursor, err)
			break
		}
		if len(page) == 0 {
			break
		}
		cursor = page[len(page)-1].ID

		live := page[:0:0]
		for _, t := range page {
			if !st.removed[t.ID] {
				live = append(live, t)
			}
		}
		res.TotalProcessed += len(live)
		for i, op := range ops {
			s.runOperation(ctx, op, live, &res.Operations[i], st)
		}
		s.logger.Debug("cleanup.page", "size", len(page), "cursor", cursor)
		if len(page) < opts.BatchSize {
			break
		}
	}

	s.finish(res, st, start)
	s.logger.Info("cleanup.done",
		"dry_run", res.DryRun,
		"total_processed", res.TotalProcessed,
		"trucks_improved", res.Summary.TrucksImproved,
		"duplicates_removed", res.Summary.DuplicatesRemoved,
		"elapsed_ms", res.Duration.Milliseconds(),
		"err", runErr,
	)
	return res, runErr
}

func (s *Service) finish(res *Result, st *runState, start time.Time) {
	for id := range st.improved {
		if !st.removed[id] {
			res.Summary.TrucksImproved++
		}
	}
	if op := res.Operation(MergeDuplicates); op != nil {
		res.Summary.DuplicatesRemoved = op.SuccessCount
	}
	if op := res.Operation(RemovePlaceholders); op != nil {
		res.Summary.PlaceholdersRemoved = op.SuccessCount
	}
	if op := res.Operation(UpdateQualityScores); op != nil {
		res.Summary.QualityScoreImprovement = op.SuccessCount
	}
	if !res.DryRun {
		for _, op := range res.Operations {
			s.metrics.ObserveCleanup(string(op.Type), op.SuccessCount)
		}
	}
	res.Duration = s.now().Sub(start)
}

func (s *Service) runOperation(ctx context.Context, op OperationType, page []*entity.FoodTruck, rep *Operation, st *runState) {
	for i, t := range page {
		if st.removed[t.ID] {
			continue
		}
		if op == MergeDuplicates {
			s.mergeOne(ctx, page, i, rep, st)
			continue
		}

		var fixed *entity.FoodTruck
		switch op {
		case RemovePlaceholders:
			fixed = stripPlaceholders(t)
		case NormalizePhone:
			fixed = normalizePhone(t)
		case FixCoordinates:
			fixed = fixCoordinates(t, s.region)
		case UpdateQualityScores:
			if a := s.trucks.Assess(t); math.Abs(a.Score-t.DataQualityScore) > ScoreEpsilon {
				fixed = clone(t)
			}
		}
		if fixed == nil {
			continue
		}

		rep.AffectedCount++
		if st.dryRun {
			// stand in for the rescoring write so later passes see the same record
			fixed.NormalizedName = dedup.NormalizeName(fixed.Name)
			fixed.DataQualityScore = s.trucks.Assess(fixed).Score
			page[i] = fixed
			rep.SuccessCount++
			st.improved[t.ID] = true
			continue
		}
		stored, err := s.trucks.Update(ctx, fixed)
		if err != nil {
			rep.fail("truck %s: %v", t.ID, err)
			s.logger.Warn("cleanup.update.failed", "operation", op, "truck_id", t.ID, "err", err)
			continue
		}
		page[i] = stored
		rep.SuccessCount++
		st.improved[t.ID] = true
	}
}

// mergeOne merges page[i] with its best high confidence duplicate. The higher
// scoring record survives; the older one wins a tie.
func (s *Service) mergeOne(ctx context.Context, page []*entity.FoodTruck, i int, rep *Operation, st *runState) {
	t := page[i]
	if st.processed[t.ID] {
		return
	}
	st.processed[t.ID] = true

	check, err := s.dedup.CheckForDuplicates(ctx, t)
	if err != nil {
		rep.fail("truck %s: %v", t.ID, err)
		return
	}
	if !check.IsDuplicate || check.Confidence != dedup.ConfidenceHigh || st.removed[check.BestMatch.ID] {
		return
	}

	survivor, loser := Survivor(t, check.BestMatch)
	st.processed[check.BestMatch.ID] = true
	rep.AffectedCount++
	if st.dryRun {
		rep.SuccessCount++
		st.removed[loser.ID] = true
		st.improved[survivor.ID] = true
		return
	}

	merged, err := s.dedup.MergeDuplicates(ctx, survivor.ID, loser.ID)
	if err != nil {
		rep.fail("merge %s and %s: %v", t.ID, check.BestMatch.ID, err)
		return
	}
	rep.SuccessCount++
	st.removed[loser.ID] = true
	st.improved[survivor.ID] = true
	for j := range page {
		if page[j].ID == merged.ID {
			page[j] = merged
		}
	}
}

// Survivor orders two duplicates into the record to keep and the one to
// fold into it.
func Survivor(a, b *entity.FoodTruck) (keep, drop *entity.FoodTruck) {
	switch {
	case a.DataQualityScore > b.DataQualityScore:
		return a, b
	case b.DataQualityScore > a.DataQualityScore:
		return b, a
	case a.CreatedAt.Before(b.CreatedAt):
		return a, b
	case b.CreatedAt.Before(a.CreatedAt):
		return b, a
	case a.ID.String() <= b.ID.String():
		return a, b
	}
	return b, a
}
