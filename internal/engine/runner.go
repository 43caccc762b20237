package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/rendis/evoflow/internal/logging"
	"github.com/rendis/evoflow/internal/streaming"
	"github.com/rendis/evoflow/pkg/schema"
)

// StepRunner executes a single workflow step: executor lookup, circuit check,
// timeout enforcement and retries. The workflow state machine drives it once
// per step it decides to run.
type StepRunner struct {
	registry *ExecutorRegistry
	breaker  *CircuitBreaker
	hub      streaming.TelemetryHub
	hooks    HookSink
	logger   *slog.Logger
}

// NewStepRunner creates a step runner. breaker, hub and hooks may be nil.
func NewStepRunner(registry *ExecutorRegistry, breaker *CircuitBreaker, hub streaming.TelemetryHub, hooks HookSink, logger *slog.Logger) *StepRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &StepRunner{
		registry: registry,
		breaker:  breaker,
		hub:      hub,
		hooks:    IsolateHooks(hooks, logger),
		logger:   logger,
	}
}

// Run executes the step against the given scope and returns its result.
// DurationMs covers the whole attempt sequence including backoff waits.
//
// Failure classes:
//   - NO_EXECUTOR: no executor for the step type. Reported without consuming
//     any attempt; the workflow layer treats it as fatal.
//   - CIRCUIT_OPEN: the breaker rejected the step type. No attempts made.
//   - TIMEOUT_ERROR: an attempt exceeded the step timeout. Retryable.
//   - anything else from the executor: retryable.
func (r *StepRunner) Run(ctx context.Context, wctx *WorkflowContext, step schema.WorkflowStep, scope map[string]any) schema.StepResult {
	start := time.Now()
	ctx = logging.WithStepID(ctx, step.ID)

	executor, err := r.registry.Get(step.Type)
	if err != nil {
		return r.fail(ctx, wctx, step, start, 0, asFlowError(err, step.ID))
	}

	if err := r.breaker.Allow(step.Type); err != nil {
		return r.fail(ctx, wctx, step, start, 0, asFlowError(err, step.ID))
	}

	r.publish(ctx, wctx, step.ID, schema.EventStepStart, map[string]any{"type": step.Type})
	r.hooks.Invoke(ctx, schema.HookStepBefore, HookPayload{
		WorkflowID:  wctx.WorkflowID,
		ExecutionID: wctx.ExecutionID,
		StepID:      step.ID,
	})

	maxAttempts := MaxAttempts(step.Retry)

	var lastErr *schema.FlowError
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		output, attemptErr := r.attempt(ctx, executor, step, scope)
		if attemptErr == nil {
			r.breaker.RecordSuccess(step.Type)
			result := schema.StepResult{
				StepID:     step.ID,
				Status:     schema.StepStatusSuccess,
				Output:     output,
				DurationMs: time.Since(start).Milliseconds(),
			}
			r.publish(ctx, wctx, step.ID, schema.EventStepComplete, map[string]any{
				"attempts":    attempt,
				"duration_ms": result.DurationMs,
			})
			r.hooks.Invoke(ctx, schema.HookStepAfter, HookPayload{
				WorkflowID:  wctx.WorkflowID,
				ExecutionID: wctx.ExecutionID,
				StepID:      step.ID,
				Attempt:     attempt,
			})
			return result
		}

		lastErr = asFlowError(attemptErr, step.ID)
		r.breaker.RecordFailure(step.Type)
		r.logger.WarnContext(ctx, "step attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.String("error", lastErr.Error()),
		)
		r.publish(ctx, wctx, step.ID, schema.EventStepError, map[string]any{
			"attempt": attempt,
			"error":   lastErr.Message,
			"code":    lastErr.Code,
		})

		// Cancellation is not retryable.
		if lastErr.Code == schema.ErrCodeCancelled {
			break
		}

		if attempt < maxAttempts {
			if err := WaitForBackoff(ctx, ComputeBackoff(step.Retry, attempt)); err != nil {
				lastErr = asFlowError(err, step.ID)
				break
			}
		}
	}

	return r.fail(ctx, wctx, step, start, maxAttempts, lastErr)
}

// attempt runs the executor once, racing it against the step timeout. The
// losing executor goroutine is not cancelled; it finishes into a buffered
// channel and its result is discarded.
func (r *StepRunner) attempt(ctx context.Context, executor StepExecutor, step schema.WorkflowStep, scope map[string]any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, schema.NewError(schema.ErrCodeCancelled, "execution cancelled").
			WithCause(err)
	}

	if step.TimeoutMs <= 0 {
		return executor.Execute(ctx, step, scope)
	}

	type outcome struct {
		output any
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		out, err := executor.Execute(ctx, step, scope)
		done <- outcome{output: out, err: err}
	}()

	timer := time.NewTimer(time.Duration(step.TimeoutMs) * time.Millisecond)
	defer timer.Stop()

	select {
	case o := <-done:
		return o.output, o.err
	case <-timer.C:
		return nil, schema.NewErrorf(schema.ErrCodeTimeout,
			"step timed out after %dms", step.TimeoutMs)
	case <-ctx.Done():
		return nil, schema.NewError(schema.ErrCodeCancelled, "execution cancelled").
			WithCause(ctx.Err())
	}
}

func (r *StepRunner) fail(ctx context.Context, wctx *WorkflowContext, step schema.WorkflowStep, start time.Time, attempts int, ferr *schema.FlowError) schema.StepResult {
	result := schema.StepResult{
		StepID:     step.ID,
		Status:     schema.StepStatusFailure,
		Error:      ferr,
		DurationMs: time.Since(start).Milliseconds(),
	}

	r.publish(ctx, wctx, step.ID, schema.EventStepError, map[string]any{
		"error":    ferr.Message,
		"code":     ferr.Code,
		"attempts": attempts,
		"final":    true,
	})
	r.hooks.Invoke(ctx, schema.HookStepAfter, HookPayload{
		WorkflowID:  wctx.WorkflowID,
		ExecutionID: wctx.ExecutionID,
		StepID:      step.ID,
		Attempt:     attempts,
		Err:         ferr,
	})
	return result
}

func (r *StepRunner) publish(ctx context.Context, wctx *WorkflowContext, stepID, eventType string, payload map[string]any) {
	if r.hub == nil {
		return
	}
	_ = r.hub.Publish(ctx, streaming.TelemetryEvent{
		ExecutionID: wctx.ExecutionID,
		WorkflowID:  wctx.WorkflowID,
		StepID:      stepID,
		EventType:   eventType,
		Payload:     payload,
	})
}

// asFlowError coerces any error into a *FlowError tagged with the step ID.
func asFlowError(err error, stepID string) *schema.FlowError {
	if ferr, ok := err.(*schema.FlowError); ok {
		if ferr.StepID == "" {
			ferr.StepID = stepID
		}
		return ferr
	}
	return schema.NewError(schema.ErrCodeExecution, err.Error()).
		WithStep(stepID).
		WithCause(err)
}
