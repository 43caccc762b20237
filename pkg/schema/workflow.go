package schema

// WorkflowDefinition is the caller-provided description of a workflow.
// It is read-only during execution; the optimizer treats a deep copy of it
// as an evolvable genome.
type WorkflowDefinition struct {
	ID           string              `json:"id"`
	Name         string              `json:"name,omitempty"`
	Steps        []WorkflowStep      `json:"steps"`
	Variables    map[string]any      `json:"variables,omitempty"`
	Optimization *OptimizationConfig `json:"optimization,omitempty"`
	Metadata     map[string]any      `json:"metadata,omitempty"`
}

// WorkflowStep describes a single step in a workflow.
type WorkflowStep struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`                 // dispatch key for a registered StepExecutor
	Config    map[string]any `json:"config,omitempty"`     // executor-specific configuration
	DependsOn []string       `json:"depends_on,omitempty"` // informational; execution order is list order
	Steps     []WorkflowStep `json:"steps,omitempty"`      // nested steps (informational)
	OnSuccess string         `json:"on_success,omitempty"` // step ID to jump forward to on success
	OnError   string         `json:"on_error,omitempty"`   // step ID to branch to on failure
	Condition string         `json:"condition,omitempty"`  // run only if this expression is true
	SkipIf    string         `json:"skip_if,omitempty"`    // skip if this expression is true
	Retry     *RetryPolicy   `json:"retry,omitempty"`
	TimeoutMs int64          `json:"timeout_ms,omitempty"`
}

// RetryPolicy configures retry behavior for a step. Backoff is deterministic
// exponential: backoff_ms * 2^(attempt-1), no jitter.
type RetryPolicy struct {
	MaxAttempts int   `json:"max_attempts"`
	BackoffMs   int64 `json:"backoff_ms,omitempty"`
}

// OptimizationConfig parameterizes an evolutionary optimization run.
type OptimizationConfig struct {
	PopulationSize int          `json:"population_size"`
	MaxGenerations int          `json:"max_generations"`
	MutationRate   float64      `json:"mutation_rate"`
	CrossoverRate  float64      `json:"crossover_rate"`
	EliteCount     int          `json:"elite_count"`
	Objectives     []string     `json:"objectives,omitempty"` // objective names tracked in fitness maps
	Evaluators     []string     `json:"evaluators,omitempty"` // evaluator IDs to invoke per asset
	Constraints    *Constraints `json:"constraints,omitempty"`
}

// Constraints are optional hard limits applied during optimization.
type Constraints struct {
	MaxDurationMs  int64   `json:"max_duration_ms,omitempty"`
	MaxCost        float64 `json:"max_cost,omitempty"`
	MinSuccessRate float64 `json:"min_success_rate,omitempty"`
}

// Clone returns a deep copy of the definition. Mutation and crossover
// strategies operate on clones only; the base definition is never edited.
func (d *WorkflowDefinition) Clone() *WorkflowDefinition {
	if d == nil {
		return nil
	}
	cp := &WorkflowDefinition{
		ID:        d.ID,
		Name:      d.Name,
		Variables: CopyMap(d.Variables),
		Metadata:  CopyMap(d.Metadata),
	}
	if d.Steps != nil {
		cp.Steps = make([]WorkflowStep, len(d.Steps))
		for i := range d.Steps {
			cp.Steps[i] = d.Steps[i].Clone()
		}
	}
	if d.Optimization != nil {
		oc := *d.Optimization
		oc.Objectives = append([]string(nil), d.Optimization.Objectives...)
		oc.Evaluators = append([]string(nil), d.Optimization.Evaluators...)
		if d.Optimization.Constraints != nil {
			c := *d.Optimization.Constraints
			oc.Constraints = &c
		}
		cp.Optimization = &oc
	}
	return cp
}

// Clone returns a deep copy of the step.
func (s WorkflowStep) Clone() WorkflowStep {
	cp := s
	cp.Config = CopyMap(s.Config)
	cp.DependsOn = append([]string(nil), s.DependsOn...)
	if s.Retry != nil {
		r := *s.Retry
		cp.Retry = &r
	}
	if s.Steps != nil {
		cp.Steps = make([]WorkflowStep, len(s.Steps))
		for i := range s.Steps {
			cp.Steps[i] = s.Steps[i].Clone()
		}
	}
	return cp
}

// StepIndex returns the index of the step with the given ID, or -1.
func (d *WorkflowDefinition) StepIndex(stepID string) int {
	for i := range d.Steps {
		if d.Steps[i].ID == stepID {
			return i
		}
	}
	return -1
}

// CopyMap creates a deep copy of a map[string]any.
func CopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = CopyValue(v)
	}
	return cp
}

// CopyValue recursively deep-copies a value. Handles maps, slices, and
// primitives (which are inherently immutable).
func CopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CopyMap(val)
	case []any:
		cp := make([]any, len(val))
		for i, item := range val {
			cp[i] = CopyValue(item)
		}
		return cp
	default:
		return v
	}
}
