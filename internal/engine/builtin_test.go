package engine

import (
	"context"
	"testing"

	"github.com/rendis/evoflow/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopExecutor(t *testing.T) {
	out, err := NoopExecutor{}.Execute(context.Background(), schema.WorkflowStep{
		Config: map[string]any{"output": "fixed"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "fixed", out)
}

func TestTransformExecutor(t *testing.T) {
	ex := NewTransformExecutor()

	out, err := ex.Execute(context.Background(), schema.WorkflowStep{
		Config: map[string]any{"expression": "a + b"},
	}, map[string]any{"a": 2, "b": 3})
	require.NoError(t, err)
	assert.Equal(t, 5, out)

	_, err = ex.Execute(context.Background(), schema.WorkflowStep{
		Config: map[string]any{"expression": "  "},
	}, nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, err.(*schema.FlowError).Code)
}

func TestAgentExecutorUsesCompleter(t *testing.T) {
	var gotPrompt string
	var gotParams map[string]any
	ex := NewAgentExecutor(func(_ context.Context, prompt string, params map[string]any) (string, error) {
		gotPrompt = prompt
		gotParams = params
		return "answer", nil
	})

	out, err := ex.Execute(context.Background(), schema.WorkflowStep{
		Config: map[string]any{
			"prompt":      "What is up?",
			"temperature": 0.5,
			"irrelevant":  "ignored",
		},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "What is up?", gotPrompt)
	assert.Equal(t, 0.5, gotParams["temperature"])
	assert.NotContains(t, gotParams, "irrelevant")
	assert.Equal(t, map[string]any{"response": "answer"}, out)
}

func TestAgentExecutorRequiresPrompt(t *testing.T) {
	ex := NewAgentExecutor(nil)
	_, err := ex.Execute(context.Background(), schema.WorkflowStep{Config: map[string]any{}}, nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, err.(*schema.FlowError).Code)
}

func TestNumberFromConfig(t *testing.T) {
	config := map[string]any{
		"float": 1.5,
		"int":   3,
		"text":  "nope",
	}
	assert.Equal(t, 1.5, NumberFromConfig(config, "float", 0))
	assert.Equal(t, 3.0, NumberFromConfig(config, "int", 0))
	assert.Equal(t, 9.0, NumberFromConfig(config, "text", 9))
	assert.Equal(t, 9.0, NumberFromConfig(config, "missing", 9))
}
