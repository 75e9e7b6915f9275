package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/foodtruck-pipeline/internal/common"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/entity"
)

const scrapingJobsTable = "scraping_jobs"

var jobColumns = []string{
	"id", "job_type", "target_url", "target_handle", "platform", "status",
	"priority", "retry_count", "max_retries", "scheduled_at", "started_at",
	"completed_at", "error_message", "data_collected", "created_at", "updated_at",
}

// StatusPatch carries the columns written alongside a status change. Nil
// fields are left untouched.
type StatusPatch struct {
	StartedAt     *time.Time
	CompletedAt   *time.Time
	ScheduledAt   *time.Time
	ErrorMessage  *string
	DataCollected map[string]any
	// RequireRetriesLeft adds retry_count < max_retries to the guard.
	RequireRetriesLeft bool
}

type ScrapingJobRepository interface {
	Insert(ctx context.Context, j *entity.ScrapingJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.ScrapingJob, error)
	// UpdateStatus moves id from one status to another only if it is still in
	// from. It reports whether the row changed.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string, patch StatusPatch, now time.Time) (bool, error)
	// ListByStatus lists jobs in drain order; an empty status lists all.
	ListByStatus(ctx context.Context, status string, limit int) ([]*entity.ScrapingJob, error)
	NextPending(ctx context.Context, now time.Time, limit int) ([]*entity.ScrapingJob, error)
	// IncrementRetryCount adds one unless the job is at max_retries. It
	// reports whether the count changed.
	IncrementRetryCount(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	// ExhaustRetries sets retry_count to max_retries.
	ExhaustRetries(ctx context.Context, id uuid.UUID, now time.Time) error
	// Count counts jobs in status; an empty status counts all.
	Count(ctx context.Context, status string) (int, error)
}

type scrapingJobRepo struct {
	db  *DB
	log *slog.Logger
}

func NewScrapingJobRepository(db *DB, log *slog.Logger) ScrapingJobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &scrapingJobRepo{db: db, log: log}
}

func scanJob(row rowScanner) (*entity.ScrapingJob, error) {
	var (
		j                             entity.ScrapingJob
		scheduled, started, completed timeColumn
		createdAt, updatedAt          timeColumn
	)
	err := row.Scan(
		&j.ID, &j.JobType, &j.TargetURL, &j.TargetHandle, &j.Platform, &j.Status,
		&j.Priority, &j.RetryCount, &j.MaxRetries, &scheduled, &started,
		&completed, &j.ErrorMessage, jsonColumn{&j.DataCollected}, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	j.ScheduledAt = scheduled.t
	j.StartedAt = started.ptr()
	j.CompletedAt = completed.ptr()
	j.CreatedAt = createdAt.t
	j.UpdatedAt = updatedAt.t
	if len(j.DataCollected) == 0 {
		j.DataCollected = nil
	}
	return &j, nil
}

func (r *scrapingJobRepo) Insert(ctx context.Context, j *entity.ScrapingJob) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	data := j.DataCollected
	if data == nil {
		data = map[string]any{}
	}
	enc, err := encodeJSON(data)
	if err != nil {
		return err
	}
	query, args := r.db.builder().Insert(scrapingJobsTable).Columns(jobColumns...).Values(
		j.ID, j.JobType, j.TargetURL, j.TargetHandle, j.Platform, j.Status,
		j.Priority, j.RetryCount, j.MaxRetries, dbTime(j.ScheduledAt), dbTimePtr(j.StartedAt),
		dbTimePtr(j.CompletedAt), j.ErrorMessage, enc, dbTime(j.CreatedAt), dbTime(j.UpdatedAt),
	).Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.log.Error("scraping_job insert failed", "job_id", j.ID, "err", err)
		return dbErr("insert scraping job", err)
	}
	r.log.Info("scraping_job created", "job_id", j.ID, "job_type", j.JobType, "priority", j.Priority)
	return nil
}

func (r *scrapingJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.ScrapingJob, error) {
	b := r.db.builder()
	query, args := b.Select(jobColumns...).From(b.Table(scrapingJobsTable)).Where(entsql.EQ("id", id)).Query()
	j, err := scanJob(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.WrapError(common.ErrNotFound, "scraping job "+id.String())
	}
	if err != nil {
		return nil, dbErr("get scraping job", err)
	}
	return j, nil
}

func (r *scrapingJobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string, patch StatusPatch, now time.Time) (bool, error) {
	u := r.db.builder().Update(scrapingJobsTable).
		Set("status", to).
		Set("updated_at", dbTime(now))
	if patch.StartedAt != nil {
		u.Set("started_at", dbTime(*patch.StartedAt))
	}
	if patch.CompletedAt != nil {
		u.Set("completed_at", dbTime(*patch.CompletedAt))
	}
	if patch.ScheduledAt != nil {
		u.Set("scheduled_at", dbTime(*patch.ScheduledAt))
	}
	if patch.ErrorMessage != nil {
		u.Set("error_message", *patch.ErrorMessage)
	}
	if patch.DataCollected != nil {
		enc, err := encodeJSON(patch.DataCollected)
		if err != nil {
			return false, err
		}
		u.Set("data_collected", enc)
	}
	guard := entsql.And(entsql.EQ("id", id), entsql.EQ("status", from))
	if patch.RequireRetriesLeft {
		guard = entsql.And(guard, entsql.ColumnsLT("retry_count", "max_retries"))
	}
	query, args := u.Where(guard).Query()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.log.Error("scraping_job status update failed", "job_id", id, "from", from, "to", to, "err", err)
		return false, dbErr("update scraping job status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dbErr("update scraping job status", err)
	}
	return n == 1, nil
}

func (r *scrapingJobRepo) ListByStatus(ctx context.Context, status string, limit int) ([]*entity.ScrapingJob, error) {
	b := r.db.builder()
	sel := b.Select(jobColumns...).From(b.Table(scrapingJobsTable)).
		OrderBy(entsql.Desc("priority"), "scheduled_at", "id")
	if status != "" {
		sel.Where(entsql.EQ("status", status))
	}
	if limit > 0 {
		sel.Limit(limit)
	}
	return r.queryJobs(ctx, sel)
}

func (r *scrapingJobRepo) NextPending(ctx context.Context, now time.Time, limit int) ([]*entity.ScrapingJob, error) {
	b := r.db.builder()
	sel := b.Select(jobColumns...).From(b.Table(scrapingJobsTable)).
		Where(entsql.And(
			entsql.EQ("status", "pending"),
			entsql.LTE("scheduled_at", dbTime(now)),
		)).
		OrderBy(entsql.Desc("priority"), "scheduled_at", "id")
	if limit > 0 {
		sel.Limit(limit)
	}
	return r.queryJobs(ctx, sel)
}

func (r *scrapingJobRepo) IncrementRetryCount(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	query, args := r.db.builder().Update(scrapingJobsTable).
		Add("retry_count", 1).
		Set("updated_at", dbTime(now)).
		Where(entsql.And(entsql.EQ("id", id), entsql.ColumnsLT("retry_count", "max_retries"))).
		Query()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, dbErr("increment retry count", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dbErr("increment retry count", err)
	}
	return n == 1, nil
}

func (r *scrapingJobRepo) ExhaustRetries(ctx context.Context, id uuid.UUID, now time.Time) error {
	query, args := r.db.builder().Update(scrapingJobsTable).
		Set("retry_count", entsql.Expr("max_retries")).
		Set("updated_at", dbTime(now)).
		Where(entsql.EQ("id", id)).
		Query()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return dbErr("exhaust retries", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return common.WrapError(common.ErrNotFound, "scraping job "+id.String())
	}
	return nil
}

func (r *scrapingJobRepo) Count(ctx context.Context, status string) (int, error) {
	b := r.db.builder()
	sel := b.Select(entsql.Count("*")).From(b.Table(scrapingJobsTable))
	if status != "" {
		sel.Where(entsql.EQ("status", status))
	}
	query, args := sel.Query()
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, dbErr("count scraping jobs", err)
	}
	return n, nil
}

func (r *scrapingJobRepo) queryJobs(ctx context.Context, sel *entsql.Selector) ([]*entity.ScrapingJob, error) {
	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbErr("query scraping jobs", err)
	}
	defer rows.Close()
	var out []*entity.ScrapingJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, dbErr("scan scraping job", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("query scraping jobs", err)
	}
	return out, nil
}
