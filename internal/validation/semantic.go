package validation

import (
	"fmt"

	"github.com/rendis/evoflow/pkg/schema"
)

// ValidateSemantics applies the cross-reference rules JSON Schema cannot
// express: unique step IDs, resolvable jump targets, sane retry and
// optimization parameters.
func ValidateSemantics(def *schema.WorkflowDefinition) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	if def.ID == "" {
		result.AddError("/id", "MISSING_ID", "workflow id is required")
	}
	if len(def.Steps) == 0 {
		result.AddError("/steps", "NO_STEPS", "workflow has no steps")
	}

	ids := make(map[string]int, len(def.Steps))
	for i, step := range def.Steps {
		path := fmt.Sprintf("/steps/%d", i)
		if step.ID == "" {
			result.AddError(path+"/id", "MISSING_ID", "step id is required")
			continue
		}
		if prev, dup := ids[step.ID]; dup {
			result.AddError(path+"/id", "DUPLICATE_ID",
				fmt.Sprintf("step id '%s' already used at index %d", step.ID, prev))
		}
		ids[step.ID] = i
	}

	for i, step := range def.Steps {
		path := fmt.Sprintf("/steps/%d", i)

		if step.OnSuccess != "" {
			target, ok := ids[step.OnSuccess]
			switch {
			case !ok:
				result.AddError(path+"/on_success", "UNKNOWN_TARGET",
					fmt.Sprintf("on_success target '%s' does not exist", step.OnSuccess))
			case target <= i:
				result.AddError(path+"/on_success", "BACKWARD_JUMP",
					fmt.Sprintf("on_success target '%s' is not a forward step", step.OnSuccess))
			}
		}
		if step.OnError != "" {
			if _, ok := ids[step.OnError]; !ok {
				result.AddError(path+"/on_error", "UNKNOWN_TARGET",
					fmt.Sprintf("on_error target '%s' does not exist", step.OnError))
			}
		}
		for _, dep := range step.DependsOn {
			if _, ok := ids[dep]; !ok {
				result.AddWarning(path+"/depends_on", "UNKNOWN_DEPENDENCY",
					fmt.Sprintf("depends_on references unknown step '%s'", dep))
			}
		}

		if step.Retry != nil {
			if step.Retry.MaxAttempts < 1 {
				result.AddError(path+"/retry/max_attempts", "INVALID_RETRY",
					"max_attempts must be at least 1")
			}
			if step.Retry.BackoffMs < 0 {
				result.AddError(path+"/retry/backoff_ms", "INVALID_RETRY",
					"backoff_ms cannot be negative")
			}
		}
		if step.TimeoutMs < 0 {
			result.AddError(path+"/timeout_ms", "INVALID_TIMEOUT",
				"timeout_ms cannot be negative")
		}
	}

	if def.Optimization != nil {
		validateOptimization(def.Optimization, result)
	}
	return result
}

func validateOptimization(cfg *schema.OptimizationConfig, result *schema.ValidationResult) {
	const path = "/optimization"

	if cfg.PopulationSize < 0 {
		result.AddError(path+"/population_size", "INVALID_OPTIMIZATION",
			"population_size cannot be negative")
	}
	if cfg.PopulationSize == 1 {
		result.AddError(path+"/population_size", "INVALID_OPTIMIZATION",
			"population_size must be at least 2")
	}
	if cfg.MutationRate < 0 || cfg.MutationRate > 1 {
		result.AddError(path+"/mutation_rate", "INVALID_OPTIMIZATION",
			"mutation_rate must be within [0, 1]")
	}
	if cfg.CrossoverRate < 0 || cfg.CrossoverRate > 1 {
		result.AddError(path+"/crossover_rate", "INVALID_OPTIMIZATION",
			"crossover_rate must be within [0, 1]")
	}
	if cfg.EliteCount < 0 {
		result.AddError(path+"/elite_count", "INVALID_OPTIMIZATION",
			"elite_count cannot be negative")
	}
	if cfg.PopulationSize > 0 && cfg.EliteCount >= cfg.PopulationSize {
		result.AddError(path+"/elite_count", "INVALID_OPTIMIZATION",
			"elite_count must be smaller than population_size")
	}
	if c := cfg.Constraints; c != nil {
		if c.MinSuccessRate < 0 || c.MinSuccessRate > 1 {
			result.AddError(path+"/constraints/min_success_rate", "INVALID_OPTIMIZATION",
				"min_success_rate must be within [0, 1]")
		}
	}
}
