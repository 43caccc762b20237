package expressions

import (
	"context"
	"strings"

	"github.com/rendis/evoflow/pkg/schema"
)

// celPrefix routes a condition string to the CEL engine instead of Expr.
const celPrefix = "cel:"

// ConditionEvaluator evaluates skip_if and condition expressions on workflow
// steps. Expressions use the Expr grammar by default, restricted to
// boolean-typed results; a "cel:" prefix selects the CEL engine. Both engines
// see the same scope.
type ConditionEvaluator struct {
	exprEngine *ExprEngine
	celEngine  *CELEngine
}

// NewConditionEvaluator creates a condition evaluator backed by both engines.
func NewConditionEvaluator() (*ConditionEvaluator, error) {
	celEngine, err := NewCELEngine()
	if err != nil {
		return nil, err
	}
	return &ConditionEvaluator{
		exprEngine: NewBoolExprEngine(),
		celEngine:  celEngine,
	}, nil
}

// EvaluateBool evaluates a condition expression against the scope and coerces
// the result to a boolean. Evaluation errors and non-boolean results are
// returned as VALIDATION_ERROR so callers can fail the step rather than guess.
func (c *ConditionEvaluator) EvaluateBool(ctx context.Context, expression string, scope map[string]any) (bool, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return false, schema.NewError(schema.ErrCodeValidation, "empty condition expression")
	}

	var (
		out any
		err error
	)
	if rest, ok := strings.CutPrefix(expression, celPrefix); ok {
		out, err = c.celEngine.Evaluate(ctx, strings.TrimSpace(rest), scope)
	} else {
		out, err = c.exprEngine.Evaluate(ctx, expression, scope)
	}
	if err != nil {
		if ferr, ok := err.(*schema.FlowError); ok && ferr.Code == schema.ErrCodeValidation {
			return false, ferr
		}
		return false, schema.NewErrorf(schema.ErrCodeValidation,
			"condition %q failed: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	b, ok := out.(bool)
	if !ok {
		return false, schema.NewErrorf(schema.ErrCodeValidation,
			"condition %q did not evaluate to a boolean (got %T)", expression, out).
			WithDetails(map[string]any{"expression": expression})
	}
	return b, nil
}

// BuildScope assembles the evaluation scope for a step's condition from the
// current execution state. Step outputs are keyed by step ID under "steps";
// context variables appear both under "variables" and flattened at the top
// level for ergonomic Expr conditions like `retries < 3`.
func BuildScope(variables map[string]any, stepOutputs map[string]any, workflowID, executionID string) map[string]any {
	scope := make(map[string]any, len(variables)+3)
	for k, v := range variables {
		scope[k] = v
	}
	scope["variables"] = variables
	scope["steps"] = stepOutputs
	scope["workflow"] = map[string]any{
		"workflow_id":  workflowID,
		"execution_id": executionID,
	}
	return scope
}
