package validation

import (
	"testing"

	"github.com/rendis/evoflow/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDefinitionJSON() []byte {
	return []byte(`{
		"id": "wf",
		"steps": [
			{"id": "a", "type": "noop"},
			{"id": "b", "type": "agent", "config": {"prompt": "hi"},
			 "retry": {"max_attempts": 3, "backoff_ms": 100}}
		],
		"optimization": {
			"population_size": 6,
			"max_generations": 10,
			"mutation_rate": 0.3,
			"crossover_rate": 0.7,
			"elite_count": 1
		}
	}`)
}

func TestParseAndValidateAcceptsValidDefinition(t *testing.T) {
	def, result := ParseAndValidate(validDefinitionJSON())

	require.True(t, result.Valid(), "unexpected errors: %v", result.Errors)
	require.NotNil(t, def)
	assert.Equal(t, "wf", def.ID)
	assert.Len(t, def.Steps, 2)
	assert.Equal(t, 3, def.Steps[1].Retry.MaxAttempts)
}

func TestParseAndValidateRejectsMalformedJSON(t *testing.T) {
	def, result := ParseAndValidate([]byte(`{"id": `))
	assert.Nil(t, def)
	assert.False(t, result.Valid())
}

func TestValidateStructure(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "missing id", raw: `{"steps": [{"id": "a", "type": "noop"}]}`},
		{name: "empty steps", raw: `{"id": "wf", "steps": []}`},
		{name: "step without type", raw: `{"id": "wf", "steps": [{"id": "a"}]}`},
		{name: "negative retry attempts", raw: `{"id": "wf", "steps": [{"id": "a", "type": "noop", "retry": {"max_attempts": 0}}]}`},
		{name: "mutation rate above one", raw: `{"id": "wf", "steps": [{"id": "a", "type": "noop"}], "optimization": {"mutation_rate": 1.5}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateStructure([]byte(tt.raw))
			assert.False(t, result.Valid())
		})
	}
}

func TestValidateSemanticsDuplicateStepIDs(t *testing.T) {
	result := ValidateSemantics(&schema.WorkflowDefinition{
		ID: "wf",
		Steps: []schema.WorkflowStep{
			{ID: "a", Type: "noop"},
			{ID: "a", Type: "noop"},
		},
	})

	require.False(t, result.Valid())
	assert.Equal(t, "DUPLICATE_ID", result.Errors[0].Code)
}

func TestValidateSemanticsJumpTargets(t *testing.T) {
	tests := []struct {
		name  string
		steps []schema.WorkflowStep
		code  string
	}{
		{
			name: "unknown on_success target",
			steps: []schema.WorkflowStep{
				{ID: "a", Type: "noop", OnSuccess: "ghost"},
			},
			code: "UNKNOWN_TARGET",
		},
		{
			name: "backward on_success jump",
			steps: []schema.WorkflowStep{
				{ID: "a", Type: "noop"},
				{ID: "b", Type: "noop", OnSuccess: "a"},
			},
			code: "BACKWARD_JUMP",
		},
		{
			name: "unknown on_error target",
			steps: []schema.WorkflowStep{
				{ID: "a", Type: "noop", OnError: "ghost"},
			},
			code: "UNKNOWN_TARGET",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateSemantics(&schema.WorkflowDefinition{ID: "wf", Steps: tt.steps})
			require.False(t, result.Valid())
			assert.Equal(t, tt.code, result.Errors[0].Code)
		})
	}
}

func TestValidateSemanticsOptimizationBounds(t *testing.T) {
	result := ValidateSemantics(&schema.WorkflowDefinition{
		ID:    "wf",
		Steps: []schema.WorkflowStep{{ID: "a", Type: "noop"}},
		Optimization: &schema.OptimizationConfig{
			PopulationSize: 4,
			EliteCount:     4,
			MutationRate:   0.5,
			CrossoverRate:  0.5,
		},
	})

	require.False(t, result.Valid())
	assert.Equal(t, "INVALID_OPTIMIZATION", result.Errors[0].Code)
}

func TestValidateSemanticsUnknownDependencyIsWarning(t *testing.T) {
	result := ValidateSemantics(&schema.WorkflowDefinition{
		ID: "wf",
		Steps: []schema.WorkflowStep{
			{ID: "a", Type: "noop", DependsOn: []string{"ghost"}},
		},
	})

	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "UNKNOWN_DEPENDENCY", result.Warnings[0].Code)
}
