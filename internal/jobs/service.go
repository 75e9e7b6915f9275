package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/foodtruck-pipeline/constants"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/common"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/entity"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/repository"
)

const maxErrorMessage = 1000

// transitions lists, per status, the statuses it may move to.
var transitions = map[constants.JobStatus][]constants.JobStatus{
	constants.JobStatusPending: {constants.JobStatusRunning},
	constants.JobStatusRunning: {constants.JobStatusCompleted, constants.JobStatusFailed},
	constants.JobStatusFailed:  {constants.JobStatusPending},
}

// CanTransition reports whether from -> to is part of the job lifecycle.
// failed -> pending additionally needs retries left.
func CanTransition(from, to constants.JobStatus) bool {
	return slices.Contains(transitions[from], to)
}

// JobSpec describes a job to create.
type JobSpec struct {
	JobType      string
	TargetURL    string
	TargetHandle string
	Platform     string
	Priority     int
	MaxRetries   int // zero means constants.DefaultMaxRetries
	ScheduledAt  time.Time
}

// Patch carries the optional columns a transition may set.
type Patch struct {
	ErrorMessage  string
	DataCollected map[string]any
	ScheduledAt   *time.Time
}

// Service owns the scraping job lifecycle.
type Service struct {
	repo    repository.ScrapingJobRepository
	backoff Backoff
	now     func() time.Time
	logger  *slog.Logger
}

func NewService(repo repository.ScrapingJobRepository, backoff Backoff, now func() time.Time, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	if backoff.Base <= 0 {
		backoff = DefaultBackoff
	}
	return &Service{repo: repo, backoff: backoff, now: now, logger: logger}
}

func validateSpec(spec JobSpec) error {
	platforms := make([]string, 0, len(constants.Platforms))
	for p := range constants.Platforms {
		platforms = append(platforms, p)
	}
	slices.Sort(platforms)

	v := common.NewValidator()
	v.Field("job_type", spec.JobType, common.Required, jobTypeRule)
	v.Check(strings.TrimSpace(spec.TargetURL) != "" || strings.TrimSpace(spec.TargetHandle) != "",
		"target", nil, "target_url or target_handle is required")
	v.Field("target_url", spec.TargetURL, common.HTTPURL)
	v.Field("platform", constants.NormalizePlatform(spec.Platform), common.OneOf(platforms...))
	v.Check(spec.TargetHandle == "" || spec.TargetURL != "" || spec.Platform != "",
		"platform", spec.Platform, "required with target_handle")
	v.Field("max_retries", spec.MaxRetries, maxRetriesRule)
	return v.Error()
}

// CreateJob inserts a pending job.
func (s *Service) CreateJob(ctx context.Context, spec JobSpec) (*entity.ScrapingJob, error) {
	if err := validateSpec(spec); err != nil {
		s.logger.Warn("jobs.create.invalid", "job_type", spec.JobType, "err", err)
		return nil, err
	}
	now := s.now().UTC()
	j := &entity.ScrapingJob{
		ID:           uuid.New(),
		JobType:      spec.JobType,
		TargetURL:    strings.TrimSpace(spec.TargetURL),
		TargetHandle: strings.TrimSpace(spec.TargetHandle),
		Platform:     constants.NormalizePlatform(spec.Platform),
		Status:       string(constants.JobStatusPending),
		Priority:     spec.Priority,
		MaxRetries:   spec.MaxRetries,
		ScheduledAt:  spec.ScheduledAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if j.MaxRetries == 0 {
		j.MaxRetries = constants.DefaultMaxRetries
	}
	if j.ScheduledAt.IsZero() {
		j.ScheduledAt = now
	}
	if err := s.repo.Insert(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*entity.ScrapingJob, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateStatus moves a job to status. The write is conditional on the status
// read here, so a concurrent change surfaces as an InvalidTransitionError.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status constants.JobStatus, patch Patch) (*entity.ScrapingJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := constants.JobStatus(job.Status)
	if !CanTransition(from, status) {
		s.logger.Error("jobs.transition.invalid", "job_id", id, "from", from, "to", status)
		return nil, &InvalidTransitionError{JobID: id, From: from, To: status}
	}
	if from == constants.JobStatusFailed && job.RetriesExhausted() {
		s.logger.Warn("jobs.transition.exhausted", "job_id", id, "retry_count", job.RetryCount, "max_retries", job.MaxRetries)
		return nil, &InvalidTransitionError{JobID: id, From: from, To: status, Reason: "retries exhausted"}
	}

	now := s.now().UTC()
	sp := repository.StatusPatch{
		ScheduledAt:        patch.ScheduledAt,
		DataCollected:      patch.DataCollected,
		RequireRetriesLeft: from == constants.JobStatusFailed,
	}
	switch status {
	case constants.JobStatusRunning:
		sp.StartedAt = &now
	case constants.JobStatusCompleted:
		sp.CompletedAt = &now
	}
	if patch.ErrorMessage != "" {
		msg := truncate(patch.ErrorMessage, maxErrorMessage)
		sp.ErrorMessage = &msg
	}

	ok, err := s.repo.UpdateStatus(ctx, id, string(from), string(status), sp, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Warn("jobs.transition.lost", "job_id", id, "from", from, "to", status)
		return nil, &InvalidTransitionError{JobID: id, From: from, To: status, Reason: "status changed concurrently"}
	}
	s.logger.Info("jobs.transition", "job_id", id, "from", from, "to", status)
	return s.repo.GetByID(ctx, id)
}

// Claim moves a pending job to running. A false result means another
// worker got there first.
func (s *Service) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	now := s.now().UTC()
	ok, err := s.repo.UpdateStatus(ctx, id, string(constants.JobStatusPending), string(constants.JobStatusRunning),
		repository.StatusPatch{StartedAt: &now}, now)
	if err != nil {
		return false, err
	}
	if ok {
		s.logger.Info("jobs.transition", "job_id", id, "from", constants.JobStatusPending, "to", constants.JobStatusRunning)
	}
	return ok, nil
}

// Complete finishes a running job with its result data.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, data map[string]any) (*entity.ScrapingJob, error) {
	return s.UpdateStatus(ctx, id, constants.JobStatusCompleted, Patch{DataCollected: data})
}

// IncrementRetryCount adds one retry unless the job is already at its bound.
// It reports whether the count changed.
func (s *Service) IncrementRetryCount(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.repo.IncrementRetryCount(ctx, id, s.now().UTC())
}

// MarkFailed fails a running job with cause. Retryable causes use up one
// retry; anything else exhausts the budget so the job is never requeued.
func (s *Service) MarkFailed(ctx context.Context, id uuid.UUID, cause error) (*entity.ScrapingJob, error) {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	if _, err := s.UpdateStatus(ctx, id, constants.JobStatusFailed, Patch{ErrorMessage: msg}); err != nil {
		return nil, err
	}

	retryable := common.IsRetryable(cause)
	if retryable {
		if _, err := s.repo.IncrementRetryCount(ctx, id, s.now().UTC()); err != nil {
			return nil, err
		}
	} else if err := s.repo.ExhaustRetries(ctx, id, s.now().UTC()); err != nil {
		return nil, err
	}
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Warn("jobs.failed",
		"job_id", id,
		"retryable", retryable,
		"retry_count", job.RetryCount,
		"max_retries", job.MaxRetries,
		"err", msg,
	)
	return job, nil
}

// Requeue puts a failed job with retries left back to pending, scheduled
// after the backoff for its retry count.
func (s *Service) Requeue(ctx context.Context, id uuid.UUID) (*entity.ScrapingJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next := s.now().UTC().Add(s.backoff.Delay(job.RetryCount))
	return s.UpdateStatus(ctx, id, constants.JobStatusPending, Patch{ScheduledAt: &next})
}

// RequeueFailed requeues up to limit failed jobs that have retries left and
// returns how many were requeued.
func (s *Service) RequeueFailed(ctx context.Context, limit int) (int, error) {
	failed, err := s.repo.ListByStatus(ctx, string(constants.JobStatusFailed), 0)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, j := range failed {
		if limit > 0 && n >= limit {
			break
		}
		if j.RetriesExhausted() {
			continue
		}
		if _, err := s.Requeue(ctx, j.ID); err != nil {
			s.logger.Warn("jobs.requeue.skipped", "job_id", j.ID, "err", err)
			continue
		}
		n++
	}
	if n > 0 {
		s.logger.Info("jobs.requeue", "count", n)
	}
	return n, nil
}

// NextPending returns due pending jobs in drain order.
func (s *Service) NextPending(ctx context.Context, limit int) ([]*entity.ScrapingJob, error) {
	return s.repo.NextPending(ctx, s.now().UTC(), limit)
}

// ListJobs lists jobs with status, or all jobs when status is empty.
func (s *Service) ListJobs(ctx context.Context, status string, limit int) ([]*entity.ScrapingJob, error) {
	if status != "" && !constants.JobStatus(status).Valid() {
		return nil, common.NewValidationError("status", status, fmt.Sprintf("must be one of %s", strings.Join(constants.JobStatuses, ", ")))
	}
	return s.repo.ListByStatus(ctx, status, limit)
}

// PendingCount returns how many jobs are waiting, due or not.
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	return s.repo.Count(ctx, string(constants.JobStatusPending))
}

// Counts returns the number of jobs per status.
func (s *Service) Counts(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int, len(constants.JobStatuses))
	for _, st := range constants.JobStatuses {
		n, err := s.repo.Count(ctx, st)
		if err != nil {
			return nil, err
		}
		out[st] = n
	}
	return out, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
