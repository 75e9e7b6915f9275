package async

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Outcome discriminates the result of a deadline-bounded unit of work.
type Outcome int

const (
	Ok Outcome = iota
	TimedOut
	Err
)

func (o Outcome) String() string {
	switch o {
	case Ok:
		return "ok"
	case TimedOut:
		return "timed_out"
	case Err:
		return "error"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// ErrTimedOut is returned by Result.Error for TimedOut results.
var ErrTimedOut = errors.New("deadline exceeded")

// Result is what Run hands back. Value is only meaningful for Ok.
type Result[T any] struct {
	Outcome Outcome
	Value   T
	Err     error
	Elapsed time.Duration
}

// Error returns nil for Ok results.
func (r Result[T]) Error() error {
	switch r.Outcome {
	case Ok:
		return nil
	case TimedOut:
		return ErrTimedOut
	}
	return r.Err
}

// Run races fn against timeout. fn receives a context carrying the deadline so
// cooperative work can stop early; work that ignores it keeps running in the
// background and its eventual result is dropped. A non-positive timeout only
// inherits the parent deadline.
func Run[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) Result[T] {
	start := time.Now()
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	type done struct {
		v   T
		err error
	}
	ch := make(chan done, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				var zero T
				ch <- done{v: zero, err: fmt.Errorf("panic: %v", p)}
			}
		}()
		v, err := fn(ctx)
		ch <- done{v: v, err: err}
	}()

	select {
	case d := <-ch:
		res := Result[T]{Value: d.v, Err: d.err, Elapsed: time.Since(start)}
		switch {
		case d.err == nil:
			res.Outcome = Ok
		case errors.Is(d.err, context.DeadlineExceeded) && ctx.Err() != nil:
			res.Outcome = TimedOut
		default:
			res.Outcome = Err
		}
		return res
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result[T]{Outcome: TimedOut, Value: zero, Err: ctx.Err(), Elapsed: time.Since(start)}
		}
		return Result[T]{Outcome: Err, Value: zero, Err: ctx.Err(), Elapsed: time.Since(start)}
	}
}

// Budget is a wall-clock allowance shared by a sequence of steps.
type Budget struct {
	start time.Time
	limit time.Duration
	now   func() time.Time
}

// NewBudget starts a budget of limit measured with now.
func NewBudget(limit time.Duration, now func() time.Time) *Budget {
	if now == nil {
		now = time.Now
	}
	return &Budget{start: now(), limit: limit, now: now}
}

// Elapsed returns the time spent so far.
func (b *Budget) Elapsed() time.Duration { return b.now().Sub(b.start) }

// Remaining returns what is left, never negative.
func (b *Budget) Remaining() time.Duration {
	if r := b.limit - b.Elapsed(); r > 0 {
		return r
	}
	return 0
}

// Exhausted reports whether the budget has been used up.
func (b *Budget) Exhausted() bool { return b.Remaining() == 0 }
