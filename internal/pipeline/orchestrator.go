package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/foodtruck-pipeline/constants"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/async"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/common"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/dedup"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/entity"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/jobs"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/metrics"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/scraper"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/trucks"
)

// Config holds the orchestrator budgets.
type Config struct {
	JobTimeout    time.Duration // default 5s
	BatchBudget   time.Duration // default 9s
	BatchLimit    int           // default 5
	Concurrency   int           // default 1
	RequeueFailed bool          // requeue failed jobs before each batch
}

// Job outcomes, also used as metric labels.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// JobOutcome reports what happened to one job.
type JobOutcome struct {
	JobID   uuid.UUID
	Outcome string
	Action  dedup.Action
	TruckID uuid.UUID
	Reason  string
	Err     error
	Elapsed time.Duration
}

// Summary reports one batch.
type Summary struct {
	Processed       int      `json:"processed"`
	Succeeded       int      `json:"succeeded"`
	Failed          int      `json:"failed"`
	Skipped         int      `json:"skipped"`
	Errors          []string `json:"errors"`
	RemainingJobs   int      `json:"remaining_jobs"`
	ExecutionTimeMs int64    `json:"execution_time_ms"`
}

func (s *Summary) add(o JobOutcome) {
	s.Processed++
	switch o.Outcome {
	case OutcomeSucceeded:
		s.Succeeded++
	case OutcomeSkipped:
		s.Skipped++
	default:
		s.Failed++
		if o.Err != nil {
			s.Errors = append(s.Errors, fmt.Sprintf("job %s: %v", o.JobID, o.Err))
		}
	}
}

// Orchestrator drains pending scraping jobs: scrape, extract, validate, score,
// de-duplicate and store.
type Orchestrator struct {
	Logger   *slog.Logger
	Cfg      Config
	Jobs     *jobs.Service
	Scraper  scraper.Scraper
	Extract  *ExtractStage
	Trucks   *trucks.Service
	Dedup    *dedup.Service
	Denylist *Denylist
	Metrics  *metrics.Metrics
	now      func() time.Time
}

func NewOrchestrator(
	logger *slog.Logger,
	cfg Config,
	jobSvc *jobs.Service,
	sc scraper.Scraper,
	ex *ExtractStage,
	truckSvc *trucks.Service,
	dedupSvc *dedup.Service,
	deny *Denylist,
	m *metrics.Metrics,
	now func() time.Time,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Second
	}
	if cfg.BatchBudget <= 0 {
		cfg.BatchBudget = 9 * time.Second
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 5
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if deny == nil {
		deny = NewDenylist()
	}
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		Logger:   logger,
		Cfg:      cfg,
		Jobs:     jobSvc,
		Scraper:  sc,
		Extract:  ex,
		Trucks:   truckSvc,
		Dedup:    dedupSvc,
		Denylist: deny,
		Metrics:  m,
		now:      now,
	}
}

// ProcessPending runs up to limit due jobs within the batch budget. Job
// failures are recorded on the job and in the summary; only a failure to read
// the queue is returned.
func (o *Orchestrator) ProcessPending(ctx context.Context, limit int) (Summary, error) {
	budget := async.NewBudget(o.Cfg.BatchBudget, o.now)
	summary := Summary{Errors: []string{}}
	defer func() {
		summary.ExecutionTimeMs = budget.Elapsed().Milliseconds()
		o.Metrics.ObserveBatch(budget.Elapsed(), summary.RemainingJobs)
	}()

	if limit <= 0 {
		limit = o.Cfg.BatchLimit
	}
	if o.Cfg.RequeueFailed {
		if _, err := o.Jobs.RequeueFailed(ctx, limit); err != nil {
			o.Logger.Warn("pipeline.batch.requeue_failed", "err", err)
		}
	}

	pending, err := o.Jobs.NextPending(ctx, limit)
	if err != nil {
		o.Logger.Error("pipeline.batch.fetch_failed", "err", err)
		return summary, fmt.Errorf("fetch pending jobs: %w", err)
	}
	o.Logger.Info("pipeline.batch.start", "pending", len(pending), "limit", limit, "concurrency", o.Cfg.Concurrency)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(o.Cfg.Concurrency)
	for _, job := range pending {
		if budget.Exhausted() {
			o.Logger.Warn("pipeline.batch.budget_exhausted", "elapsed_ms", budget.Elapsed().Milliseconds())
			break
		}
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			timeout := min(o.Cfg.JobTimeout, budget.Remaining())
			if timeout <= 0 {
				return nil
			}
			out := o.runJob(ctx, job, timeout)
			mu.Lock()
			summary.add(out)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if n, err := o.Jobs.PendingCount(ctx); err != nil {
		o.Logger.Warn("pipeline.batch.count_failed", "err", err)
	} else {
		summary.RemainingJobs = n
	}
	o.Logger.Info("pipeline.batch.done",
		"processed", summary.Processed,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"remaining", summary.RemainingJobs,
		"elapsed_ms", budget.Elapsed().Milliseconds(),
	)
	return summary, nil
}

// ProcessJob claims and runs one job under the job timeout.
func (o *Orchestrator) ProcessJob(ctx context.Context, job *entity.ScrapingJob) JobOutcome {
	return o.runJob(ctx, job, o.Cfg.JobTimeout)
}

// ProcessJobByID loads and runs one job. It returns the job's failure, if any.
func (o *Orchestrator) ProcessJobByID(ctx context.Context, id uuid.UUID) error {
	job, err := o.Jobs.GetJob(ctx, id)
	if err != nil {
		return err
	}
	out := o.ProcessJob(ctx, job)
	if out.Outcome == OutcomeFailed {
		return out.Err
	}
	return nil
}

var _ async.JobProcessor = (*Orchestrator)(nil)

type jobResult struct {
	data    map[string]any
	action  dedup.Action
	truckID uuid.UUID
	reason  string
}

func (o *Orchestrator) runJob(ctx context.Context, job *entity.ScrapingJob, timeout time.Duration) JobOutcome {
	start := o.now()
	ctx = common.WithJobID(ctx, job.ID.String())
	logger := common.LoggerFrom(ctx, o.Logger)
	out := JobOutcome{JobID: job.ID}
	defer func() {
		out.Elapsed = o.now().Sub(start)
		o.Metrics.ObserveJob(out.Outcome, out.Elapsed)
	}()

	claimed, err := o.Jobs.Claim(ctx, job.ID)
	if err != nil {
		out.Outcome, out.Err = OutcomeFailed, fmt.Errorf("claim: %w", err)
		logger.Error("pipeline.job.claim_failed", "err", err)
		return out
	}
	if !claimed {
		out.Outcome, out.Reason = OutcomeSkipped, "claimed elsewhere"
		logger.Info("pipeline.job.claim_lost")
		return out
	}
	logger.Info("pipeline.job.start", "job_type", job.JobType, "target", job.Target(), "retry_count", job.RetryCount)

	res := async.Run(ctx, timeout, func(ctx context.Context) (*jobResult, error) {
		return o.process(ctx, job)
	})

	var cause error
	switch res.Outcome {
	case async.Ok:
		if _, err := o.Jobs.Complete(ctx, job.ID, res.Value.data); err != nil {
			out.Outcome, out.Err = OutcomeFailed, fmt.Errorf("complete: %w", err)
			logger.Error("pipeline.job.complete_failed", "err", err)
			return out
		}
		out.Outcome = OutcomeSucceeded
		if res.Value.reason != "" {
			out.Outcome = OutcomeSkipped
		}
		out.Action, out.TruckID, out.Reason = res.Value.action, res.Value.truckID, res.Value.reason
		logger.Info("pipeline.job.done",
			"outcome", out.Outcome,
			"action", out.Action,
			"truck_id", out.TruckID,
			"reason", out.Reason,
			"elapsed_ms", res.Elapsed.Milliseconds(),
		)
		return out
	case async.TimedOut:
		cause = fmt.Errorf("job timed out after %s: %w", timeout, async.ErrTimedOut)
	default:
		cause = res.Err
	}

	out.Outcome, out.Err = OutcomeFailed, cause
	// the job context may already be dead; the state update must still land
	failCtx := context.WithoutCancel(ctx)
	if _, err := o.Jobs.MarkFailed(failCtx, job.ID, cause); err != nil {
		logger.Error("pipeline.job.mark_failed", "err", err, "cause", cause)
		out.Err = errors.Join(cause, err)
	}
	logger.Warn("pipeline.job.failed", "outcome", res.Outcome.String(), "err", cause)
	return out
}

// process runs the scrape-to-store chain for a claimed job.
func (o *Orchestrator) process(ctx context.Context, job *entity.ScrapingJob) (*jobResult, error) {
	logger := common.LoggerFrom(ctx, o.Logger)
	target := scraper.Target{URL: job.TargetURL, Handle: job.TargetHandle, Platform: job.Platform}
	targetURL, err := scraper.ResolveURL(target)
	if err != nil {
		return nil, common.NewValidationError("target", job.Target(), err.Error())
	}
	allowSocial := constants.JobType(job.JobType).IsSocial() || job.TargetHandle != ""

	if reason, denied := o.Denylist.Check(targetURL, allowSocial); denied {
		return skipped(reason, targetURL), nil
	}

	page, err := o.Scraper.Scrape(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("scrape %s: %w", targetURL, err)
	}
	if page == nil || !page.Success {
		msg := "no content"
		if page != nil && page.Error != "" {
			msg = page.Error
		}
		return nil, fmt.Errorf("scrape %s: %s", targetURL, msg)
	}
	sourceURL := targetURL
	if page.Metadata.SourceURL != "" {
		sourceURL = page.Metadata.SourceURL
	}
	if reason, denied := o.Denylist.Check(sourceURL, allowSocial); denied {
		return skipped(reason, sourceURL), nil
	}

	ex, err := o.Extract.Run(ctx, page.Content(), sourceURL)
	if err != nil {
		return nil, err
	}
	name, placeholder, err := resolveName(ex.Candidate, sourceURL)
	if err != nil {
		logger.Info("pipeline.job.discarded", "source_url", sourceURL, "err", err)
		return nil, err
	}

	truck := buildTruck(ex.Candidate, name, placeholder, sourceURL, o.now().UTC())
	check, err := o.Dedup.CheckForDuplicates(ctx, truck)
	if err != nil {
		return nil, fmt.Errorf("duplicate check: %w", err)
	}
	o.Metrics.ObserveDedup(string(check.Action))

	data := map[string]any{
		"action":     string(check.Action),
		"source_url": sourceURL,
		"similarity": 0.0,
	}
	if check.Similarity != nil {
		data["similarity"] = check.Similarity.Overall
	}

	var stored *entity.FoodTruck
	if check.Action == dedup.ActionMerge {
		stored, err = o.Dedup.MergeCandidate(ctx, check.BestMatch.ID, truck)
	} else {
		stored, err = o.Trucks.Insert(ctx, truck)
		if check.Action == dedup.ActionManualReview && check.BestMatch != nil {
			data["possible_duplicate_of"] = check.BestMatch.ID.String()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("store truck: %w", err)
	}
	data["truck_id"] = stored.ID.String()
	data["quality_score"] = stored.DataQualityScore
	if placeholder {
		data["placeholder_name"] = true
	}
	if len(ex.Notes) > 0 {
		data["normalization_notes"] = len(ex.Notes)
	}
	return &jobResult{data: data, action: check.Action, truckID: stored.ID}, nil
}

func skipped(reason, url string) *jobResult {
	return &jobResult{
		reason: reason,
		data:   map[string]any{"skipped_reason": reason, "url": url},
	}
}
