package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/foodtruck-pipeline/constants"
)

// ScrapingJob represents one unit of scrape-and-extract work.
type ScrapingJob struct {
	ID            uuid.UUID      `json:"id"`
	JobType       string         `json:"job_type"`
	TargetURL     string         `json:"target_url,omitempty"`
	TargetHandle  string         `json:"target_handle,omitempty"`
	Platform      string         `json:"platform,omitempty"`
	Status        string         `json:"status"`
	Priority      int            `json:"priority"`
	RetryCount    int            `json:"retry_count"`
	MaxRetries    int            `json:"max_retries"`
	ScheduledAt   time.Time      `json:"scheduled_at"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	DataCollected map[string]any `json:"data_collected,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// RetriesExhausted reports whether the job has used its whole retry budget.
func (j *ScrapingJob) RetriesExhausted() bool {
	return j.RetryCount >= j.MaxRetries
}

// IsTerminal reports whether the job must not be re-run automatically.
func (j *ScrapingJob) IsTerminal() bool {
	switch j.Status {
	case string(constants.JobStatusCompleted):
		return true
	case string(constants.JobStatusFailed):
		return j.RetriesExhausted()
	}
	return false
}

// Target returns the url or handle the job points at.
func (j *ScrapingJob) Target() string {
	if j.TargetURL != "" {
		return j.TargetURL
	}
	return j.TargetHandle
}
