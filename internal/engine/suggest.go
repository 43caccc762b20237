package engine

import (
	"fmt"
	"sort"

	"github.com/rendis/evoflow/pkg/schema"
)

// SuggestionThreshold is the score below which an objective yields an
// improvement suggestion.
const SuggestionThreshold = 0.7

// GenerateSuggestions turns evaluator scores into improvement suggestions.
// Every objective scoring below the threshold produces one suggestion. The
// input maps evaluator ID to its per-objective scores; output is sorted by
// evaluator then objective for deterministic results.
func GenerateSuggestions(scores map[string]map[string]float64, threshold float64) []schema.Suggestion {
	if threshold <= 0 {
		threshold = SuggestionThreshold
	}

	var suggestions []schema.Suggestion
	for evaluator, objectives := range scores {
		for objective, score := range objectives {
			if score >= threshold {
				continue
			}
			suggestions = append(suggestions, schema.Suggestion{
				Evaluator: evaluator,
				Objective: objective,
				Score:     score,
				Message: fmt.Sprintf(
					"evaluator '%s' scored objective '%s' at %.2f, below the %.2f threshold",
					evaluator, objective, score, threshold),
			})
		}
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Evaluator != suggestions[j].Evaluator {
			return suggestions[i].Evaluator < suggestions[j].Evaluator
		}
		return suggestions[i].Objective < suggestions[j].Objective
	})
	return suggestions
}
