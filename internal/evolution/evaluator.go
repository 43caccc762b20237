package evolution

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"github.com/rendis/evoflow/internal/engine"
	"github.com/rendis/evoflow/internal/expressions"
	"github.com/rendis/evoflow/internal/streaming"
	"github.com/rendis/evoflow/pkg/schema"
)

// EvaluatorRegistry holds the fitness evaluators available to optimization
// runs. It also implements engine.Suggester so finished executions can be
// scored for improvement suggestions.
type EvaluatorRegistry struct {
	mu         sync.RWMutex
	evaluators map[string]schema.Evaluator

	hub    streaming.TelemetryHub
	logger *slog.Logger
}

// NewEvaluatorRegistry creates an evaluator registry. hub may be nil.
func NewEvaluatorRegistry(hub streaming.TelemetryHub, logger *slog.Logger) *EvaluatorRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &EvaluatorRegistry{
		evaluators: make(map[string]schema.Evaluator),
		hub:        hub,
		logger:     logger,
	}
}

// Register adds an evaluator, replacing any previous one with the same ID,
// and announces it on the hub.
func (r *EvaluatorRegistry) Register(ev schema.Evaluator) {
	r.mu.Lock()
	r.evaluators[ev.ID()] = ev
	r.mu.Unlock()

	if r.hub != nil {
		_ = r.hub.Publish(context.Background(), streaming.TelemetryEvent{
			EventType: schema.EventEvaluatorRegistered,
			Payload:   map[string]any{"id": ev.ID(), "name": ev.Name()},
		})
	}
}

// Get returns the evaluator with the given ID.
func (r *EvaluatorRegistry) Get(id string) (schema.Evaluator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ev, ok := r.evaluators[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound,
			"evaluator '%s' not registered", id)
	}
	return ev, nil
}

// IDs returns the registered evaluator IDs, sorted.
func (r *EvaluatorRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.evaluators))
	for id := range r.evaluators {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Evaluate runs the named evaluators against an execution result and merges
// their scores per evaluator. Evaluator errors are logged and yield no scores
// for that evaluator rather than failing the whole evaluation.
func (r *EvaluatorRegistry) Evaluate(ctx context.Context, ids []string, result *schema.WorkflowExecutionResult) map[string]map[string]float64 {
	scores := make(map[string]map[string]float64, len(ids))
	for _, id := range ids {
		ev, err := r.Get(id)
		if err != nil {
			r.logger.WarnContext(ctx, "skipping unknown evaluator", slog.String("evaluator", id))
			continue
		}

		objectiveScores, err := ev.Evaluate(ctx, result)
		if err != nil {
			r.logger.ErrorContext(ctx, "evaluator failed",
				slog.String("evaluator", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		scores[id] = objectiveScores

		if r.hub != nil {
			_ = r.hub.Publish(ctx, streaming.TelemetryEvent{
				ExecutionID: result.ExecutionID,
				WorkflowID:  result.WorkflowID,
				EventType:   schema.EventEvaluationScores,
				Payload:     map[string]any{"evaluator": id, "scores": objectiveScores},
			})
		}
	}
	return scores
}

// Suggest implements engine.Suggester: it scores the result with the
// evaluators the workflow's optimization config names and turns low scores
// into suggestions. Workflows without optimization config yield none.
func (r *EvaluatorRegistry) Suggest(ctx context.Context, def *schema.WorkflowDefinition, result *schema.WorkflowExecutionResult) []schema.Suggestion {
	if def.Optimization == nil || len(def.Optimization.Evaluators) == 0 {
		return nil
	}
	scores := r.Evaluate(ctx, def.Optimization.Evaluators, result)
	return engine.GenerateSuggestions(scores, engine.SuggestionThreshold)
}

var _ engine.Suggester = (*EvaluatorRegistry)(nil)

// JQEvaluator scores execution results with jq expressions, one per
// objective. The execution result is JSON-encoded and handed to each
// expression as input; each must produce a number.
type JQEvaluator struct {
	id          string
	name        string
	expressions map[string]string
	engine      *expressions.GoJQEngine
}

// NewJQEvaluator creates a jq-backed evaluator. objectiveExprs maps objective
// names to jq expressions.
func NewJQEvaluator(id, name string, objectiveExprs map[string]string) *JQEvaluator {
	return &JQEvaluator{
		id:          id,
		name:        name,
		expressions: objectiveExprs,
		engine:      expressions.NewGoJQEngine(),
	}
}

func (e *JQEvaluator) ID() string   { return e.id }
func (e *JQEvaluator) Name() string { return e.name }

func (e *JQEvaluator) Evaluate(ctx context.Context, result *schema.WorkflowExecutionResult) (map[string]float64, error) {
	input, err := resultToMap(result)
	if err != nil {
		return nil, err
	}

	scores := make(map[string]float64, len(e.expressions))
	for objective, expression := range e.expressions {
		out, err := e.engine.Evaluate(ctx, expression, input)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeEvaluation,
				"objective '%s': %s", objective, err.Error()).WithCause(err)
		}
		score, ok := numericValue(out)
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeEvaluation,
				"objective '%s': expression %q produced non-numeric %T", objective, expression, out)
		}
		scores[objective] = score
	}
	return scores, nil
}

// resultToMap round-trips the result through JSON so jq sees the same shape
// API clients do.
func resultToMap(result *schema.WorkflowExecutionResult) (map[string]any, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeEvaluation, "encode execution result").
			WithCause(err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, schema.NewError(schema.ErrCodeEvaluation, "decode execution result").
			WithCause(err)
	}
	return m, nil
}

// DurationEvaluator scores the minimize_duration objective, normalized to
// higher-is-better: 1/(1+seconds). An instant run scores 1; score decays
// toward 0 as duration grows.
type DurationEvaluator struct{}

func (DurationEvaluator) ID() string   { return "duration" }
func (DurationEvaluator) Name() string { return "Execution duration" }

func (DurationEvaluator) Evaluate(_ context.Context, result *schema.WorkflowExecutionResult) (map[string]float64, error) {
	seconds := float64(result.DurationMs) / 1000.0
	return map[string]float64{
		"minimize_duration": 1.0 / (1.0 + seconds),
	}, nil
}

// SuccessRateEvaluator scores the success_rate objective as the fraction of
// executed (non-skipped) steps that succeeded. An empty result scores 0.
type SuccessRateEvaluator struct{}

func (SuccessRateEvaluator) ID() string   { return "success-rate" }
func (SuccessRateEvaluator) Name() string { return "Step success rate" }

func (SuccessRateEvaluator) Evaluate(_ context.Context, result *schema.WorkflowExecutionResult) (map[string]float64, error) {
	var succeeded, executed float64
	for _, s := range result.Steps {
		switch s.Status {
		case schema.StepStatusSuccess:
			succeeded++
			executed++
		case schema.StepStatusFailure:
			executed++
		}
	}
	score := 0.0
	if executed > 0 {
		score = succeeded / executed
	}
	return map[string]float64{"success_rate": score}, nil
}

// RegisterBuiltins registers the built-in evaluators.
func (r *EvaluatorRegistry) RegisterBuiltins() {
	r.Register(DurationEvaluator{})
	r.Register(SuccessRateEvaluator{})
}
