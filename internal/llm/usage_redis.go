package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisUsageTracker shares daily counters between processes through Redis.
type RedisUsageTracker struct {
	rdb    goredis.Cmdable
	limits UsageLimits
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisUsageTracker(rdb goredis.Cmdable, limits UsageLimits, prefix string, now func() time.Time) *RedisUsageTracker {
	if prefix == "" {
		prefix = "llm:usage"
	}
	if now == nil {
		now = time.Now
	}
	return &RedisUsageTracker{rdb: rdb, limits: limits, prefix: prefix, ttl: 48 * time.Hour, now: now}
}

func (t *RedisUsageTracker) keys(day string) (string, string) {
	return fmt.Sprintf("%s:%s:requests", t.prefix, day), fmt.Sprintf("%s:%s:tokens", t.prefix, day)
}

func (t *RedisUsageTracker) Current(ctx context.Context) (Usage, error) {
	day := DayKey(t.now())
	reqKey, tokKey := t.keys(day)
	var reqCmd, tokCmd *goredis.StringCmd
	_, err := t.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		reqCmd = pipe.Get(ctx, reqKey)
		tokCmd = pipe.Get(ctx, tokKey)
		return nil
	})
	if err != nil && !errors.Is(err, goredis.Nil) {
		return Usage{}, fmt.Errorf("read usage: %w", err)
	}
	reqs, err := intOrZero(reqCmd)
	if err != nil {
		return Usage{}, err
	}
	toks, err := intOrZero(tokCmd)
	if err != nil {
		return Usage{}, err
	}
	return Usage{Day: day, Requests: reqs, Tokens: toks}, nil
}

func (t *RedisUsageTracker) Check(ctx context.Context, estimatedTokens int) (UsageCheck, error) {
	u, err := t.Current(ctx)
	if err != nil {
		return UsageCheck{}, err
	}
	return evaluate(t.limits, u, estimatedTokens), nil
}

// Record increments both counters in one MULTI so they cannot drift apart.
func (t *RedisUsageTracker) Record(ctx context.Context, tokens int) error {
	reqKey, tokKey := t.keys(DayKey(t.now()))
	_, err := t.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Incr(ctx, reqKey)
		pipe.IncrBy(ctx, tokKey, int64(tokens))
		pipe.Expire(ctx, reqKey, t.ttl)
		pipe.Expire(ctx, tokKey, t.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

func intOrZero(cmd *goredis.StringCmd) (int, error) {
	if cmd == nil {
		return 0, nil
	}
	n, err := cmd.Int()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read usage counter: %w", err)
	}
	return n, nil
}
