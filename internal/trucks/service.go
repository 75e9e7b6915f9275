package trucks

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/foodtruck-pipeline/constants"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/dedup"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/entity"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/quality"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/repository"
)

// Service is the write path for food truck records. Every write re-derives
// the lookup key and the quality score; neither is taken from the caller.
type Service struct {
	repo     repository.FoodTruckRepository
	assessor *quality.Assessor
	now      func() time.Time
	logger   *slog.Logger
}

var _ dedup.Store = (*Service)(nil)

func NewService(repo repository.FoodTruckRepository, assessor *quality.Assessor, now func() time.Time, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	if assessor == nil {
		assessor = quality.NewAssessor(now)
	}
	return &Service{repo: repo, assessor: assessor, now: now, logger: logger}
}

// prepare stamps derived fields on t before it is written.
func (s *Service) prepare(t *entity.FoodTruck) quality.Assessment {
	now := s.now().UTC()
	t.NormalizedName = dedup.NormalizeName(t.Name)
	if t.VerificationStatus == "" {
		t.VerificationStatus = string(constants.VerificationPending)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	a := s.assessor.Assess(t)
	t.DataQualityScore = a.Score
	return a
}

// Assess scores t without writing it.
func (s *Service) Assess(t *entity.FoodTruck) quality.Assessment {
	return s.assessor.Assess(t)
}

func (s *Service) Insert(ctx context.Context, t *entity.FoodTruck) (*entity.FoodTruck, error) {
	a := s.prepare(t)
	if err := s.repo.Insert(ctx, t); err != nil {
		return nil, err
	}
	s.logger.Info("trucks.insert",
		"truck_id", t.ID,
		"name", t.Name,
		"quality_score", t.DataQualityScore,
		"category", a.Category(),
		"issues", len(a.Issues),
	)
	return t, nil
}

func (s *Service) Update(ctx context.Context, t *entity.FoodTruck) (*entity.FoodTruck, error) {
	s.prepare(t)
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	s.logger.Debug("trucks.update", "truck_id", t.ID, "quality_score", t.DataQualityScore)
	return t, nil
}

// ReplaceAndDelete writes merged and removes sourceID atomically.
func (s *Service) ReplaceAndDelete(ctx context.Context, merged *entity.FoodTruck, sourceID uuid.UUID) (*entity.FoodTruck, error) {
	s.prepare(merged)
	if err := s.repo.ReplaceAndDelete(ctx, merged, sourceID); err != nil {
		return nil, err
	}
	return merged, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*entity.FoodTruck, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Candidates(ctx context.Context, q repository.CandidateQuery) ([]*entity.FoodTruck, error) {
	return s.repo.Candidates(ctx, q)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("trucks.delete", "truck_id", id)
	return nil
}

func (s *Service) List(ctx context.Context, opts repository.ListOptions) ([]*entity.FoodTruck, error) {
	return s.repo.List(ctx, opts)
}

func (s *Service) ListAfter(ctx context.Context, after uuid.UUID, limit int) ([]*entity.FoodTruck, error) {
	return s.repo.ListAfter(ctx, after, limit)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
