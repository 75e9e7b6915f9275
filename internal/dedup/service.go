package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/foodtruck-pipeline/internal/entity"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/repository"
)

// Decision thresholds on the overall similarity score.
const (
	DuplicateThreshold = 0.8
	ReviewThreshold    = 0.6
)

// Confidence cutoffs for a duplicate decision.
const (
	HighConfidence   = 0.95
	MediumConfidence = 0.85
)

// Candidate pool bounds.
const (
	PoolLimit     = 50
	PoolRadiusDeg = 0.01
)

type Action string

const (
	ActionCreate       Action = "create"
	ActionMerge        Action = "merge"
	ActionManualReview Action = "manual_review"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ConfidenceFor buckets an overall similarity score.
func ConfidenceFor(score float64) Confidence {
	switch {
	case score >= HighConfidence:
		return ConfidenceHigh
	case score >= MediumConfidence:
		return ConfidenceMedium
	}
	return ConfidenceLow
}

// CheckResult is the outcome of a duplicate check. BestMatch and Similarity
// are nil when the pool was empty.
type CheckResult struct {
	IsDuplicate bool
	Action      Action
	BestMatch   *entity.FoodTruck
	Similarity  *SimilarityResult
	Confidence  Confidence
}

// Store is the storage the service needs. Writes return the record as
// stored.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.FoodTruck, error)
	Candidates(ctx context.Context, q repository.CandidateQuery) ([]*entity.FoodTruck, error)
	Update(ctx context.Context, t *entity.FoodTruck) (*entity.FoodTruck, error)
	ReplaceAndDelete(ctx context.Context, merged *entity.FoodTruck, sourceID uuid.UUID) (*entity.FoodTruck, error)
}

// MergeError reports a merge that was abandoned before anything was written.
type MergeError struct {
	TargetID uuid.UUID
	SourceID uuid.UUID
	Cause    error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge %s into %s: %v", e.SourceID, e.TargetID, e.Cause)
}

func (e *MergeError) Unwrap() error { return e.Cause }

// Retryable is false: the same ids will fail the same way.
func (e *MergeError) Retryable() bool { return false }

var errSelfMerge = errors.New("cannot merge a record into itself")

// Service detects and merges duplicate food truck records.
type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// poolQuery bounds the comparison set: same first name word, or within
// PoolRadiusDeg of the candidate's coordinates.
func poolQuery(c *entity.FoodTruck) repository.CandidateQuery {
	key := c.NormalizedName
	if key == "" {
		key = NormalizeName(c.Name)
	}
	q := repository.CandidateQuery{ExcludeID: c.ID, Limit: PoolLimit}
	if words := strings.Fields(key); len(words) > 0 {
		q.NamePrefix = words[0]
	}
	if c.CurrentLocation.HasCoordinates() {
		q.Lat, q.Lng = c.CurrentLocation.Lat, c.CurrentLocation.Lng
		q.RadiusDeg = PoolRadiusDeg
	}
	return q
}

// CheckForDuplicates compares candidate against its pool and returns the best
// match with the action it calls for.
func (s *Service) CheckForDuplicates(ctx context.Context, candidate *entity.FoodTruck) (CheckResult, error) {
	pool, err := s.store.Candidates(ctx, poolQuery(candidate))
	if err != nil {
		s.logger.Error("dedup.pool.failed", "name", candidate.Name, "err", err)
		return CheckResult{}, fmt.Errorf("load duplicate candidates: %w", err)
	}

	res := CheckResult{Action: ActionCreate, Confidence: ConfidenceLow}
	for _, existing := range pool {
		if existing.ID == candidate.ID {
			continue
		}
		sim := Similarity(candidate, existing)
		if res.Similarity == nil || sim.Overall > res.Similarity.Overall {
			res.BestMatch, res.Similarity = existing, &sim
		}
	}
	if res.Similarity == nil {
		s.logger.Debug("dedup.check.no_candidates", "name", candidate.Name)
		return res, nil
	}

	score := res.Similarity.Overall
	res.Confidence = ConfidenceFor(score)
	switch {
	case score >= DuplicateThreshold:
		res.IsDuplicate, res.Action = true, ActionMerge
	case score >= ReviewThreshold:
		res.Action = ActionManualReview
	}
	s.logger.Info("dedup.check",
		"name", candidate.Name,
		"pool", len(pool),
		"best_id", res.BestMatch.ID,
		"similarity", score,
		"action", res.Action,
		"matched", res.Similarity.MatchedFields,
	)
	return res, nil
}

// MergeDuplicates folds source into target, writes the result to target and
// deletes source in one transaction.
func (s *Service) MergeDuplicates(ctx context.Context, targetID, sourceID uuid.UUID) (*entity.FoodTruck, error) {
	if targetID == sourceID {
		return nil, &MergeError{TargetID: targetID, SourceID: sourceID, Cause: errSelfMerge}
	}
	target, err := s.store.GetByID(ctx, targetID)
	if err != nil {
		return nil, &MergeError{TargetID: targetID, SourceID: sourceID, Cause: err}
	}
	source, err := s.store.GetByID(ctx, sourceID)
	if err != nil {
		return nil, &MergeError{TargetID: targetID, SourceID: sourceID, Cause: err}
	}

	merged, err := s.store.ReplaceAndDelete(ctx, MergeRecords(target, source), sourceID)
	if err != nil {
		s.logger.Error("dedup.merge.failed", "target_id", targetID, "source_id", sourceID, "err", err)
		return nil, fmt.Errorf("merge %s into %s: %w", sourceID, targetID, err)
	}
	s.logger.Info("dedup.merge", "target_id", targetID, "source_id", sourceID, "quality_score", merged.DataQualityScore)
	return merged, nil
}

// MergeCandidate folds a record that was never stored into targetID.
func (s *Service) MergeCandidate(ctx context.Context, targetID uuid.UUID, candidate *entity.FoodTruck) (*entity.FoodTruck, error) {
	target, err := s.store.GetByID(ctx, targetID)
	if err != nil {
		return nil, &MergeError{TargetID: targetID, SourceID: candidate.ID, Cause: err}
	}
	merged, err := s.store.Update(ctx, MergeRecords(target, candidate))
	if err != nil {
		s.logger.Error("dedup.merge_candidate.failed", "target_id", targetID, "err", err)
		return nil, fmt.Errorf("merge candidate into %s: %w", targetID, err)
	}
	s.logger.Info("dedup.merge_candidate", "target_id", targetID, "name", candidate.Name)
	return merged, nil
}
