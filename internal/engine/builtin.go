package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rendis/evoflow/internal/expressions"
	"github.com/rendis/evoflow/pkg/schema"
)

// NoopExecutor handles "noop" steps: it returns the configured output, or nil.
// Useful as a placeholder while authoring workflows and in tests.
type NoopExecutor struct{}

func (NoopExecutor) Type() string { return "noop" }

func (NoopExecutor) Execute(_ context.Context, step schema.WorkflowStep, _ map[string]any) (any, error) {
	return step.Config["output"], nil
}

// TransformExecutor handles "transform" steps: it evaluates the configured
// expression against the workflow scope and returns the result.
type TransformExecutor struct {
	engine *expressions.ExprEngine
}

// NewTransformExecutor creates a transform executor with its own compile cache.
func NewTransformExecutor() *TransformExecutor {
	return &TransformExecutor{engine: expressions.NewExprEngine()}
}

func (*TransformExecutor) Type() string { return "transform" }

func (e *TransformExecutor) Execute(ctx context.Context, step schema.WorkflowStep, scope map[string]any) (any, error) {
	expression, _ := step.Config["expression"].(string)
	if strings.TrimSpace(expression) == "" {
		return nil, schema.NewError(schema.ErrCodeValidation,
			"transform step requires a non-empty 'expression' config")
	}
	return e.engine.Evaluate(ctx, expression, scope)
}

// DelayExecutor handles "delay" steps: it sleeps for the configured duration,
// honoring context cancellation.
type DelayExecutor struct{}

func (DelayExecutor) Type() string { return "delay" }

func (DelayExecutor) Execute(ctx context.Context, step schema.WorkflowStep, _ map[string]any) (any, error) {
	ms := NumberFromConfig(step.Config, "duration_ms", 0)
	if ms <= 0 {
		return nil, nil
	}

	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C:
		return map[string]any{"slept_ms": ms}, nil
	case <-ctx.Done():
		return nil, schema.NewError(schema.ErrCodeCancelled, "delay interrupted").
			WithCause(ctx.Err())
	}
}

// Completer produces a completion for a prompt. The production wiring points
// this at a real model endpoint; tests and the optimizer's synthetic runs use
// EchoCompleter.
type Completer func(ctx context.Context, prompt string, params map[string]any) (string, error)

// EchoCompleter is a deterministic stand-in completer that reflects the
// prompt back. It keeps agent workflows runnable without a model backend.
func EchoCompleter(_ context.Context, prompt string, _ map[string]any) (string, error) {
	return fmt.Sprintf("echo: %s", prompt), nil
}

// AgentExecutor handles "agent" steps: it sends the configured prompt to the
// injected completer. Tuning parameters (temperature, max_tokens, top_p) pass
// through in params so the completer and the optimizer see the same knobs.
type AgentExecutor struct {
	complete Completer
}

// NewAgentExecutor creates an agent executor. A nil completer falls back to
// EchoCompleter.
func NewAgentExecutor(complete Completer) *AgentExecutor {
	if complete == nil {
		complete = EchoCompleter
	}
	return &AgentExecutor{complete: complete}
}

func (*AgentExecutor) Type() string { return "agent" }

func (e *AgentExecutor) Execute(ctx context.Context, step schema.WorkflowStep, _ map[string]any) (any, error) {
	prompt, _ := step.Config["prompt"].(string)
	if strings.TrimSpace(prompt) == "" {
		return nil, schema.NewError(schema.ErrCodeValidation,
			"agent step requires a non-empty 'prompt' config")
	}

	params := make(map[string]any)
	for _, key := range []string{"temperature", "max_tokens", "top_p", "model"} {
		if v, ok := step.Config[key]; ok {
			params[key] = v
		}
	}

	out, err := e.complete(ctx, prompt, params)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeExecution, "agent completion failed").
			WithCause(err)
	}
	return map[string]any{"response": out}, nil
}

// RegisterBuiltins registers the built-in executors on the registry.
func RegisterBuiltins(registry *ExecutorRegistry, complete Completer) {
	registry.Register(NoopExecutor{})
	registry.Register(NewTransformExecutor())
	registry.Register(DelayExecutor{})
	registry.Register(NewAgentExecutor(complete))
}

// NumberFromConfig reads a numeric config value, accepting the numeric types
// JSON decoding and hand-built maps produce.
func NumberFromConfig(config map[string]any, key string, fallback float64) float64 {
	v, ok := config[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return fallback
	}
}
