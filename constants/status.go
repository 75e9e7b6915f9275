package constants

// JobStatus is the canonical status for rows in scraping_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusPending   JobStatus = "pending"   // waiting to be claimed
	JobStatusRunning   JobStatus = "running"   // claimed by an orchestrator
	JobStatusCompleted JobStatus = "completed" // terminal
	JobStatusFailed    JobStatus = "failed"    // terminal once retries are exhausted
)

// JobStatuses lists every job status, in lifecycle order.
var JobStatuses = []string{
	string(JobStatusPending),
	string(JobStatusRunning),
	string(JobStatusCompleted),
	string(JobStatusFailed),
}

// Valid reports whether s is a known job status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// VerificationStatus tracks whether a food truck record has been reviewed.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationFlagged  VerificationStatus = "flagged"
)

// VerificationStatuses lists every verification status.
var VerificationStatuses = []string{
	string(VerificationPending),
	string(VerificationVerified),
	string(VerificationFlagged),
}

// DefaultMaxRetries is applied to jobs created without an explicit bound.
const DefaultMaxRetries = 3
