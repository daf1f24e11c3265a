package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/oshokin/fwmeta/internal/logger"
)

// Policy bounds how a task is attempted.
type Policy struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int
	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration
	// TimeLimit is the deadline of each attempt, zero means none.
	TimeLimit time.Duration
}

var (
	// RegenerateRemotePolicy applies to a single remote build.
	//nolint:gochecknoglobals // Read-only defaults.
	RegenerateRemotePolicy = Policy{MaxRetries: 3, RetryDelay: 5 * time.Second, TimeLimit: 60 * time.Second}
	// RegenerateAllPolicy applies to the sweep over every remote.
	//nolint:gochecknoglobals // Read-only defaults.
	RegenerateAllPolicy = Policy{MaxRetries: 3, RetryDelay: 10 * time.Second, TimeLimit: 60 * time.Second}
)

// Run calls fn until it succeeds or the policy is exhausted. Each attempt
// gets its own deadline; cancelling ctx stops retrying.
func Run(ctx context.Context, name string, policy Policy, fn func(ctx context.Context) error) error {
	ctx = logger.WithKV(ctx, "task", name)

	attempts := policy.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var err error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err = runAttempt(ctx, policy.TimeLimit, fn); err == nil {
			return nil
		}

		if ctx.Err() != nil {
			break
		}

		logger.WarnKV(ctx, "Task attempt failed", "attempt", attempt, "attempts", attempts, "error", err)

		if attempt == attempts {
			break
		}

		timer := time.NewTimer(policy.RetryDelay)

		select {
		case <-ctx.Done():
			timer.Stop()

			return fmt.Errorf("task %s: %w", name, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("task %s: %w", name, err)
}

func runAttempt(ctx context.Context, limit time.Duration, fn func(ctx context.Context) error) error {
	if limit <= 0 {
		return fn(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	return fn(attemptCtx)
}
