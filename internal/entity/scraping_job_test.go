package entity

import (
	"testing"

	"github.com/joseph-ayodele/foodtruck-pipeline/constants"
)

func TestScrapingJobIsTerminal(t *testing.T) {
	cases := []struct {
		status     constants.JobStatus
		retry, max int
		want       bool
	}{
		{constants.JobStatusPending, 0, 3, false},
		{constants.JobStatusRunning, 3, 3, false},
		{constants.JobStatusCompleted, 0, 3, true},
		{constants.JobStatusFailed, 1, 3, false},
		{constants.JobStatusFailed, 3, 3, true},
	}
	for _, tc := range cases {
		j := &ScrapingJob{Status: string(tc.status), RetryCount: tc.retry, MaxRetries: tc.max}
		if got := j.IsTerminal(); got != tc.want {
			t.Errorf("%s %d/%d: IsTerminal = %v, want %v", tc.status, tc.retry, tc.max, got, tc.want)
		}
	}
}
