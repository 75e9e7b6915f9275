package jobs

import "time"

// Backoff spaces out requeued jobs: Base after the first failure, doubling
// per retry, never more than Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

var DefaultBackoff = Backoff{Base: 30 * time.Second, Max: time.Hour}

// Delay returns the wait before attempt number retry (1-based).
func (b Backoff) Delay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	d := b.Base
	for i := 1; i < retry; i++ {
		d *= 2
		if d >= b.Max {
			return b.Max
		}
	}
	if d > b.Max {
		return b.Max
	}
	return d
}
