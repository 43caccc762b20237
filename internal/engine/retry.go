package engine

import (
	"context"
	"time"

	"github.com/rendis/evoflow/pkg/schema"
)

// ComputeBackoff returns the wait before the next attempt after a failed
// attempt (1-based): backoffMs * 2^(attempt-1). Deterministic, no jitter.
func ComputeBackoff(policy *schema.RetryPolicy, attempt int) time.Duration {
	if policy == nil || policy.BackoffMs <= 0 || attempt < 1 {
		return 0
	}
	return time.Duration(policy.BackoffMs<<(attempt-1)) * time.Millisecond
}

// MaxAttempts returns the effective attempt count for a policy. A nil policy
// or a non-positive max means a single attempt.
func MaxAttempts(policy *schema.RetryPolicy) int {
	if policy == nil || policy.MaxAttempts < 1 {
		return 1
	}
	return policy.MaxAttempts
}

// WaitForBackoff sleeps for the given duration or until the context is done.
// Returns a CANCELLED error when interrupted.
func WaitForBackoff(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return schema.NewError(schema.ErrCodeCancelled, "backoff interrupted").
			WithCause(ctx.Err())
	}
}
