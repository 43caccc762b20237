package expressions

import (
	"context"
	"testing"

	"github.com/rendis/evoflow/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEvaluator(t *testing.T) *ConditionEvaluator {
	t.Helper()
	ev, err := NewConditionEvaluator()
	require.NoError(t, err)
	return ev
}

func TestEvaluateBoolExpr(t *testing.T) {
	ev := newEvaluator(t)
	scope := BuildScope(map[string]any{"retries": 2, "env": "prod"}, nil, "wf", "ex")

	tests := []struct {
		name       string
		expression string
		want       bool
	}{
		{name: "comparison true", expression: "retries < 3", want: true},
		{name: "comparison false", expression: "retries > 3", want: false},
		{name: "string equality", expression: `env == "prod"`, want: true},
		{name: "boolean logic", expression: `retries < 3 && env == "prod"`, want: true},
		{name: "nested scope access", expression: `variables.retries == 2`, want: true},
		{name: "workflow metadata", expression: `workflow.workflow_id == "wf"`, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ev.EvaluateBool(context.Background(), tt.expression, scope)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateBoolCELPrefix(t *testing.T) {
	ev := newEvaluator(t)
	scope := BuildScope(map[string]any{"score": 0.8}, map[string]any{
		"fetch": map[string]any{"status": "ok"},
	}, "wf", "ex")

	got, err := ev.EvaluateBool(context.Background(), "cel: variables.score > 0.5", scope)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = ev.EvaluateBool(context.Background(), `cel: steps["fetch"].status == "ok"`, scope)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluateBoolNonBoolean(t *testing.T) {
	ev := newEvaluator(t)
	scope := BuildScope(map[string]any{"n": 5}, nil, "wf", "ex")

	_, err := ev.EvaluateBool(context.Background(), "n + 1", scope)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, err.(*schema.FlowError).Code)
}

func TestEvaluateBoolRejectsNonBooleanGrammar(t *testing.T) {
	ev := newEvaluator(t)

	// A provably non-boolean expression is rejected before it ever runs.
	_, err := ev.EvaluateBool(context.Background(), "1 + 2", nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, err.(*schema.FlowError).Code)
}

func TestBoolExprEngineTypedOutput(t *testing.T) {
	engine := NewBoolExprEngine()
	scope := map[string]any{"n": 5}

	out, err := engine.Evaluate(context.Background(), "n > 3", scope)
	require.NoError(t, err)
	assert.Equal(t, true, out)

	_, err = engine.Evaluate(context.Background(), `"not a bool"`, scope)
	require.Error(t, err)
}

func TestEvaluateBoolEmptyExpression(t *testing.T) {
	ev := newEvaluator(t)
	_, err := ev.EvaluateBool(context.Background(), "   ", nil)
	require.Error(t, err)
}

func TestGoJQEngineProjections(t *testing.T) {
	engine := NewGoJQEngine()
	data := map[string]any{
		"duration_ms": 1500.0,
		"steps": []any{
			map[string]any{"status": "success"},
			map[string]any{"status": "failure"},
		},
	}

	out, err := engine.Evaluate(context.Background(), ".duration_ms / 1000", data)
	require.NoError(t, err)
	assert.Equal(t, 1.5, out)

	out, err = engine.Evaluate(context.Background(),
		`[.steps[] | select(.status == "success")] | length`, data)
	require.NoError(t, err)
	assert.Equal(t, 1, out)
}

func TestGoJQEngineParseError(t *testing.T) {
	engine := NewGoJQEngine()
	_, err := engine.Evaluate(context.Background(), ".steps[", nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, err.(*schema.FlowError).Code)
}

func TestExprEngineCompileCache(t *testing.T) {
	engine := NewExprEngine()
	data := map[string]any{"x": 1}

	for i := 0; i < 3; i++ {
		out, err := engine.Evaluate(context.Background(), "x + 1", data)
		require.NoError(t, err)
		assert.Equal(t, 2, out)
	}
}
