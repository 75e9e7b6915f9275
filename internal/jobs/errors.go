package jobs

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/foodtruck-pipeline/constants"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/common"
)

// InvalidTransitionError is returned for a status change the lifecycle does
// not allow, or one that lost a race with another writer.
type InvalidTransitionError struct {
	JobID  uuid.UUID
	From   constants.JobStatus
	To     constants.JobStatus
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("job %s: invalid transition %s -> %s", e.JobID, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidTransitionError) Unwrap() error { return common.ErrInvalidInput }

func (e *InvalidTransitionError) Retryable() bool { return false }
