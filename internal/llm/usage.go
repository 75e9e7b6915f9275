package llm

import (
	"context"
	"sync"
	"time"
)

// EstimateTokens approximates the token count of s at four bytes per token.
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// UsageLimits bounds daily LLM consumption.
type UsageLimits struct {
	DailyRequests int
	DailyTokens   int
	TokenBuffer   int // headroom kept below DailyTokens
}

// Usage is the consumption recorded for one UTC day.
type Usage struct {
	Day      string `json:"day"`
	Requests int    `json:"requests"`
	Tokens   int    `json:"tokens"`
}

// UsageCheck is the answer to "may I spend this much now".
type UsageCheck struct {
	Allowed           bool   `json:"allowed"`
	Reason            string `json:"reason,omitempty"`
	Usage             Usage  `json:"usage"`
	RemainingRequests int    `json:"remaining_requests"`
	RemainingTokens   int    `json:"remaining_tokens"`
}

// UsageTracker records LLM consumption keyed by day. Implementations are
// injected so tests and processes never share hidden counters.
type UsageTracker interface {
	Check(ctx context.Context, estimatedTokens int) (UsageCheck, error)
	Record(ctx context.Context, tokens int) error
	Current(ctx context.Context) (Usage, error)
}

// DayKey formats t as the UTC day used to bucket usage.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func evaluate(limits UsageLimits, u Usage, estimatedTokens int) UsageCheck {
	c := UsageCheck{
		Allowed:           true,
		Usage:             u,
		RemainingRequests: max(0, limits.DailyRequests-u.Requests),
		RemainingTokens:   max(0, limits.DailyTokens-u.Tokens),
	}
	switch {
	case limits.DailyRequests > 0 && u.Requests+1 > limits.DailyRequests:
		c.Allowed = false
		c.Reason = "daily request limit reached"
	case limits.DailyTokens > 0 && u.Tokens+estimatedTokens+limits.TokenBuffer > limits.DailyTokens:
		c.Allowed = false
		c.Reason = "daily token limit would be exceeded"
	}
	return c
}

// MemoryUsageTracker keeps counters in process memory and resets them when
// the UTC day changes.
type MemoryUsageTracker struct {
	mu     sync.Mutex
	limits UsageLimits
	now    func() time.Time
	usage  Usage
}

func NewMemoryUsageTracker(limits UsageLimits, now func() time.Time) *MemoryUsageTracker {
	if now == nil {
		now = time.Now
	}
	return &MemoryUsageTracker{limits: limits, now: now}
}

func (t *MemoryUsageTracker) rollover() {
	if day := DayKey(t.now()); t.usage.Day != day {
		t.usage = Usage{Day: day}
	}
}

func (t *MemoryUsageTracker) Check(_ context.Context, estimatedTokens int) (UsageCheck, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	return evaluate(t.limits, t.usage, estimatedTokens), nil
}

func (t *MemoryUsageTracker) Record(_ context.Context, tokens int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	t.usage.Requests++
	t.usage.Tokens += tokens
	return nil
}

func (t *MemoryUsageTracker) Current(_ context.Context) (Usage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	return t.usage, nil
}
