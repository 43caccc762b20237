package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/rendis/evoflow/internal/expressions"
	"github.com/rendis/evoflow/internal/logging"
	"github.com/rendis/evoflow/internal/streaming"
	"github.com/rendis/evoflow/pkg/schema"
)

// Suggester scores a finished execution and emits improvement suggestions.
// Wired to the evaluator registry when the workflow configures optimization.
type Suggester interface {
	Suggest(ctx context.Context, def *schema.WorkflowDefinition, result *schema.WorkflowExecutionResult) []schema.Suggestion
}

// RunRecorder archives finished executions. Archive failures are logged and
// never affect the execution result.
type RunRecorder interface {
	SaveRun(ctx context.Context, result *schema.WorkflowExecutionResult) error
}

// WorkflowEngine executes workflow definitions. Steps run sequentially in
// list order; on_success and on_error redirect the cursor within the list.
type WorkflowEngine struct {
	store      *ContextStore
	runner     *StepRunner
	conditions *expressions.ConditionEvaluator
	hub        streaming.TelemetryHub
	hooks      HookSink
	suggester  Suggester
	recorder   RunRecorder
	logger     *slog.Logger
}

// NewWorkflowEngine assembles a workflow engine. hub, hooks and suggester may
// be nil.
func NewWorkflowEngine(store *ContextStore, runner *StepRunner, conditions *expressions.ConditionEvaluator, hub streaming.TelemetryHub, hooks HookSink, suggester Suggester, logger *slog.Logger) *WorkflowEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkflowEngine{
		store:      store,
		runner:     runner,
		conditions: conditions,
		hub:        hub,
		hooks:      IsolateHooks(hooks, logger),
		suggester:  suggester,
		logger:     logger,
	}
}

// SetRecorder attaches a run recorder for archiving finished executions.
func (e *WorkflowEngine) SetRecorder(recorder RunRecorder) {
	e.recorder = recorder
}

// SetSuggester attaches a suggester for post-run scoring.
func (e *WorkflowEngine) SetSuggester(suggester Suggester) {
	e.suggester = suggester
}

// Contexts exposes the execution context store for cancellation and
// inspection tools.
func (e *WorkflowEngine) Contexts() *ContextStore {
	return e.store
}

// Execute runs a workflow definition to completion and returns the execution
// result. The result is returned even when the workflow fails; the error
// return is reserved for infrastructure problems, not step failures.
func (e *WorkflowEngine) Execute(ctx context.Context, def *schema.WorkflowDefinition) (*schema.WorkflowExecutionResult, error) {
	wctx := e.store.Create(def.ID, def.Variables)
	defer e.store.Remove(wctx.ExecutionID)

	ctx = logging.WithWorkflowID(ctx, def.ID)
	ctx = logging.WithExecutionID(ctx, wctx.ExecutionID)

	wctx.MarkRunning()
	e.publish(ctx, wctx, "", schema.EventWorkflowStart, map[string]any{"steps": len(def.Steps)})
	e.hooks.Invoke(ctx, schema.HookWorkflowBefore, HookPayload{
		WorkflowID:  def.ID,
		ExecutionID: wctx.ExecutionID,
	})

	e.runSteps(ctx, wctx, def)

	result := e.assembleResult(ctx, wctx, def)

	e.publish(ctx, wctx, "", schema.EventWorkflowComplete, map[string]any{
		"status":      string(result.Status),
		"duration_ms": result.DurationMs,
	})
	e.hooks.Invoke(ctx, schema.HookWorkflowAfter, HookPayload{
		WorkflowID:  def.ID,
		ExecutionID: wctx.ExecutionID,
		Data:        map[string]any{"status": string(result.Status)},
	})

	if e.recorder != nil {
		if err := e.recorder.SaveRun(ctx, result); err != nil {
			e.logger.ErrorContext(ctx, "archiving run failed",
				slog.String("error", err.Error()))
		}
	}

	return result, nil
}

// Cancel cancels a running execution by ID and announces the cancellation on
// the hub. The execution loop notices the flipped status on its next step.
func (e *WorkflowEngine) Cancel(executionID string) error {
	wctx, err := e.store.Get(executionID)
	if err != nil {
		return err
	}
	if err := e.store.Cancel(executionID); err != nil {
		return err
	}
	e.publish(context.Background(), wctx, "", schema.EventWorkflowCancelled, nil)
	return nil
}

// runSteps drives the sequential cursor over the step list until it walks off
// the end, a failure stops the run, or the execution is cancelled.
func (e *WorkflowEngine) runSteps(ctx context.Context, wctx *WorkflowContext, def *schema.WorkflowDefinition) {
	i := 0
	for i >= 0 && i < len(def.Steps) {
		if ctx.Err() != nil {
			wctx.Cancel()
		}
		if wctx.Status() == schema.ExecutionStatusCancelled {
			return
		}

		step := def.Steps[i]
		scope := expressions.BuildScope(wctx.Variables(), wctx.StepOutputs(), def.ID, wctx.ExecutionID)

		skipped, serr := e.shouldSkip(ctx, step, scope)
		if serr != nil {
			i = e.handleFailure(ctx, wctx, def, i, schema.StepResult{
				StepID: step.ID,
				Status: schema.StepStatusFailure,
				Error:  asFlowError(serr, step.ID),
			})
			continue
		}
		if skipped {
			wctx.AppendResult(schema.StepResult{StepID: step.ID, Status: schema.StepStatusSkipped})
			e.publish(ctx, wctx, step.ID, schema.EventStepComplete, map[string]any{"skipped": true})
			i++
			continue
		}

		result := e.runner.Run(ctx, wctx, step, scope)

		if result.Status == schema.StepStatusSuccess {
			wctx.AppendResult(result)
			wctx.SetStepOutput(step.ID, result.Output)
			if exportAs, _ := step.Config["export_as"].(string); exportAs != "" {
				wctx.SetVariable(exportAs, result.Output)
			}
			i = e.nextOnSuccess(def, i, step)
			continue
		}

		i = e.handleFailure(ctx, wctx, def, i, result)
	}
}

// shouldSkip evaluates skip_if and condition for a step. skip_if true skips;
// condition false skips. Expression errors fail the step.
func (e *WorkflowEngine) shouldSkip(ctx context.Context, step schema.WorkflowStep, scope map[string]any) (bool, error) {
	if step.SkipIf != "" {
		skip, err := e.conditions.EvaluateBool(ctx, step.SkipIf, scope)
		if err != nil {
			return false, err
		}
		if skip {
			return true, nil
		}
	}
	if step.Condition != "" {
		run, err := e.conditions.EvaluateBool(ctx, step.Condition, scope)
		if err != nil {
			return false, err
		}
		if !run {
			return true, nil
		}
	}
	return false, nil
}

// nextOnSuccess resolves the cursor after a successful step. on_success jumps
// are forward-only; a missing or backward target falls through to the next
// step in list order.
func (e *WorkflowEngine) nextOnSuccess(def *schema.WorkflowDefinition, current int, step schema.WorkflowStep) int {
	if step.OnSuccess == "" {
		return current + 1
	}
	target := def.StepIndex(step.OnSuccess)
	if target <= current {
		e.logger.Warn("ignoring on_success jump to non-forward target",
			slog.String("step_id", step.ID),
			slog.String("target", step.OnSuccess),
		)
		return current + 1
	}
	return target
}

// handleFailure records a failed step result and resolves what happens next:
// a fatal error or missing on_error stops the workflow (returns -1), an
// on_error branch moves the cursor to the handler step and the run continues.
func (e *WorkflowEngine) handleFailure(ctx context.Context, wctx *WorkflowContext, def *schema.WorkflowDefinition, current int, result schema.StepResult) int {
	wctx.AppendResult(result)
	step := def.Steps[current]

	fatal := result.Error != nil && result.Error.Code == schema.ErrCodeNoExecutor
	if fatal || step.OnError == "" {
		wctx.MarkFailed()
		return -1
	}

	target := def.StepIndex(step.OnError)
	if target < 0 {
		e.logger.ErrorContext(ctx, "on_error target not found",
			slog.String("step_id", step.ID),
			slog.String("target", step.OnError),
		)
		wctx.MarkFailed()
		return -1
	}

	e.logger.InfoContext(ctx, "branching to error handler",
		slog.String("step_id", step.ID),
		slog.String("handler", step.OnError),
	)
	return target
}

// assembleResult finalizes the execution status and builds the result,
// attaching suggestions when a suggester is wired. The terminal status is
// derived from the recorded results: any failure means failed, even when an
// on_error branch let the run continue to the end.
func (e *WorkflowEngine) assembleResult(ctx context.Context, wctx *WorkflowContext, def *schema.WorkflowDefinition) *schema.WorkflowExecutionResult {
	anyFailed := false
	for _, r := range wctx.Results() {
		if r.Status == schema.StepStatusFailure {
			anyFailed = true
			break
		}
	}
	if anyFailed {
		wctx.MarkFailed()
	} else {
		wctx.MarkCompleted()
	}

	completedAt := time.Now()
	result := &schema.WorkflowExecutionResult{
		WorkflowID:  def.ID,
		ExecutionID: wctx.ExecutionID,
		Status:      wctx.Status(),
		Steps:       wctx.Results(),
		DurationMs:  completedAt.Sub(wctx.StartedAt).Milliseconds(),
		StartedAt:   wctx.StartedAt,
		CompletedAt: &completedAt,
	}
	result.Metrics = summarizeMetrics(result.Steps, result.DurationMs)

	if e.suggester != nil {
		result.Suggestions = e.suggester.Suggest(ctx, def, result)
	}
	return result
}

// summarizeMetrics aggregates per-step outcomes into workflow-level metrics.
func summarizeMetrics(steps []schema.StepResult, durationMs int64) map[string]float64 {
	var succeeded, failed, skipped float64
	for _, s := range steps {
		switch s.Status {
		case schema.StepStatusSuccess:
			succeeded++
		case schema.StepStatusFailure:
			failed++
		case schema.StepStatusSkipped:
			skipped++
		}
	}
	metrics := map[string]float64{
		"steps_total":     float64(len(steps)),
		"steps_succeeded": succeeded,
		"steps_failed":    failed,
		"steps_skipped":   skipped,
		"duration_ms":     float64(durationMs),
	}
	if executed := succeeded + failed; executed > 0 {
		metrics["success_rate"] = succeeded / executed
	}
	return metrics
}

func (e *WorkflowEngine) publish(ctx context.Context, wctx *WorkflowContext, stepID, eventType string, payload map[string]any) {
	if e.hub == nil {
		return
	}
	_ = e.hub.Publish(ctx, streaming.TelemetryEvent{
		ExecutionID: wctx.ExecutionID,
		WorkflowID:  wctx.WorkflowID,
		StepID:      stepID,
		EventType:   eventType,
		Payload:     payload,
	})
}
