package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSuggestions(t *testing.T) {
	scores := map[string]map[string]float64{
		"quality": {
			"accuracy":     0.9,
			"completeness": 0.5,
		},
		"speed": {
			"minimize_duration": 0.69,
		},
	}

	suggestions := GenerateSuggestions(scores, SuggestionThreshold)

	require.Len(t, suggestions, 2)
	// Sorted by evaluator, then objective.
	assert.Equal(t, "quality", suggestions[0].Evaluator)
	assert.Equal(t, "completeness", suggestions[0].Objective)
	assert.Equal(t, 0.5, suggestions[0].Score)
	assert.Equal(t, "speed", suggestions[1].Evaluator)
	assert.Equal(t, "minimize_duration", suggestions[1].Objective)
	assert.Contains(t, suggestions[1].Message, "minimize_duration")
}

func TestGenerateSuggestionsAllAboveThreshold(t *testing.T) {
	scores := map[string]map[string]float64{
		"quality": {"accuracy": 0.7, "completeness": 0.95},
	}
	assert.Empty(t, GenerateSuggestions(scores, SuggestionThreshold))
}

func TestGenerateSuggestionsDefaultThreshold(t *testing.T) {
	scores := map[string]map[string]float64{
		"quality": {"accuracy": 0.6},
	}
	suggestions := GenerateSuggestions(scores, 0)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "accuracy", suggestions[0].Objective)
}
