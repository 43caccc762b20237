package evolution

import (
	"math/rand"
	"sync"

	"github.com/rendis/evoflow/pkg/schema"
)

// MutationStrategy produces a modified clone of a genome. Implementations
// must never edit the input; they clone first.
type MutationStrategy interface {
	ID() string
	Mutate(rng *rand.Rand, genome *schema.WorkflowDefinition) *schema.WorkflowDefinition
}

// CrossoverStrategy combines two parent genomes into one child genome.
type CrossoverStrategy interface {
	ID() string
	Crossover(rng *rand.Rand, a, b *schema.WorkflowDefinition) *schema.WorkflowDefinition
}

// SelectionStrategy picks one parent from the population.
type SelectionStrategy interface {
	ID() string
	Select(rng *rand.Rand, population []*schema.EvoAsset) *schema.EvoAsset
}

type weightedMutation struct {
	strategy MutationStrategy
	weight   float64
}

// StrategyRegistry holds the mutation and crossover strategies available to
// an optimization run. Mutations are drawn by weight; a draw that lands in
// no bucket (all weights zero) falls back to the first registered strategy.
type StrategyRegistry struct {
	mu        sync.RWMutex
	mutations []weightedMutation
	crossover CrossoverStrategy
	selection SelectionStrategy
}

// NewStrategyRegistry creates an empty strategy registry.
func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{}
}

// DefaultStrategyRegistry returns a registry preloaded with the built-in
// strategies: prompt directive and tuning perturbation mutations at equal
// weight, and single-point step splice crossover.
func DefaultStrategyRegistry() *StrategyRegistry {
	r := NewStrategyRegistry()
	r.RegisterMutation(PromptDirectiveMutation{}, 1)
	r.RegisterMutation(TuningPerturbationMutation{}, 1)
	r.SetCrossover(StepSpliceCrossover{})
	r.SetSelection(TournamentSelection{})
	return r
}

// RegisterMutation adds a mutation strategy with the given draw weight.
// Non-positive weights register the strategy but never draw it.
func (r *StrategyRegistry) RegisterMutation(strategy MutationStrategy, weight float64) {
	r.mu.Lock()
	r.mutations = append(r.mutations, weightedMutation{strategy: strategy, weight: weight})
	r.mu.Unlock()
}

// SetCrossover sets the crossover strategy.
func (r *StrategyRegistry) SetCrossover(strategy CrossoverStrategy) {
	r.mu.Lock()
	r.crossover = strategy
	r.mu.Unlock()
}

// SetSelection sets the parent selection strategy.
func (r *StrategyRegistry) SetSelection(strategy SelectionStrategy) {
	r.mu.Lock()
	r.selection = strategy
	r.mu.Unlock()
}

// Selection returns the registered selection strategy, defaulting to
// tournament selection when none is set.
func (r *StrategyRegistry) Selection() SelectionStrategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.selection == nil {
		return TournamentSelection{}
	}
	return r.selection
}

// MutationIDs returns the registered mutation strategy IDs in registration
// order.
func (r *StrategyRegistry) MutationIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.mutations))
	for _, m := range r.mutations {
		ids = append(ids, m.strategy.ID())
	}
	return ids
}

// DrawMutation picks a mutation strategy proportionally to weight.
// Returns nil when no strategies are registered.
func (r *StrategyRegistry) DrawMutation(rng *rand.Rand) MutationStrategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.mutations) == 0 {
		return nil
	}

	total := 0.0
	for _, m := range r.mutations {
		if m.weight > 0 {
			total += m.weight
		}
	}
	if total <= 0 {
		return r.mutations[0].strategy
	}

	draw := rng.Float64() * total
	for _, m := range r.mutations {
		if m.weight <= 0 {
			continue
		}
		draw -= m.weight
		if draw < 0 {
			return m.strategy
		}
	}
	return r.mutations[0].strategy
}

// Crossover returns the registered crossover strategy, or nil.
func (r *StrategyRegistry) Crossover() CrossoverStrategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.crossover
}

// tournamentSize is how many candidates each parent selection compares.
const tournamentSize = 3

// TournamentSelection picks the best of tournamentSize members drawn
// uniformly with replacement, compared by aggregate fitness.
type TournamentSelection struct{}

func (TournamentSelection) ID() string { return "tournament" }

func (TournamentSelection) Select(rng *rand.Rand, population []*schema.EvoAsset) *schema.EvoAsset {
	if len(population) == 0 {
		return nil
	}

	best := population[rng.Intn(len(population))]
	for i := 1; i < tournamentSize; i++ {
		candidate := population[rng.Intn(len(population))]
		if candidate.AggregateFitness() > best.AggregateFitness() {
			best = candidate
		}
	}
	return best
}

// promptDirectives are the stylistic instructions the prompt mutation can
// append to an agent step's prompt.
var promptDirectives = []string{
	"Be concise.",
	"Think step by step.",
	"Answer in bullet points.",
	"Cite your sources.",
	"Use a formal tone.",
	"Explain your reasoning before the answer.",
	"Limit the answer to three sentences.",
}

// PromptDirectiveMutation appends a random stylistic directive to the prompt
// of a randomly chosen agent step. Genomes without agent steps are returned
// as an unmodified clone.
type PromptDirectiveMutation struct{}

func (PromptDirectiveMutation) ID() string { return "prompt-directive" }

func (PromptDirectiveMutation) Mutate(rng *rand.Rand, genome *schema.WorkflowDefinition) *schema.WorkflowDefinition {
	child := genome.Clone()

	var candidates []int
	for i, step := range child.Steps {
		if step.Type != "agent" {
			continue
		}
		if prompt, _ := step.Config["prompt"].(string); prompt != "" {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return child
	}

	idx := candidates[rng.Intn(len(candidates))]
	directive := promptDirectives[rng.Intn(len(promptDirectives))]
	prompt := child.Steps[idx].Config["prompt"].(string)
	child.Steps[idx].Config["prompt"] = prompt + " " + directive
	return child
}

// tunableKeys are the numeric config knobs the tuning mutation may perturb,
// with clamping bounds. A zero max means unbounded above.
var tunableKeys = []struct {
	key      string
	min, max float64
	integer  bool
}{
	{key: "temperature", min: 0, max: 2},
	{key: "top_p", min: 0, max: 1},
	{key: "max_tokens", min: 1, integer: true},
	{key: "duration_ms", min: 0, integer: true},
}

// TuningPerturbationMutation multiplies one numeric config value of a random
// step by a factor drawn from [0.8, 1.2], clamped to the knob's bounds.
// Genomes without tunable values are returned as an unmodified clone.
type TuningPerturbationMutation struct{}

func (TuningPerturbationMutation) ID() string { return "tuning-perturbation" }

func (TuningPerturbationMutation) Mutate(rng *rand.Rand, genome *schema.WorkflowDefinition) *schema.WorkflowDefinition {
	child := genome.Clone()

	type target struct {
		step int
		knob int
	}
	var candidates []target
	for i, step := range child.Steps {
		for k, knob := range tunableKeys {
			if _, ok := numericValue(step.Config[knob.key]); ok {
				candidates = append(candidates, target{step: i, knob: k})
			}
		}
	}
	if len(candidates) == 0 {
		return child
	}

	t := candidates[rng.Intn(len(candidates))]
	knob := tunableKeys[t.knob]
	value, _ := numericValue(child.Steps[t.step].Config[knob.key])

	factor := 0.8 + rng.Float64()*0.4
	value *= factor
	if value < knob.min {
		value = knob.min
	}
	if knob.max > 0 && value > knob.max {
		value = knob.max
	}

	if knob.integer {
		child.Steps[t.step].Config[knob.key] = int(value + 0.5)
	} else {
		child.Steps[t.step].Config[knob.key] = value
	}
	return child
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// StepSpliceCrossover builds a child by taking a prefix of one parent's step
// list and the suffix of the other, splitting at a random point. Variables
// merge with the first parent winning conflicts.
type StepSpliceCrossover struct{}

func (StepSpliceCrossover) ID() string { return "step-splice" }

func (StepSpliceCrossover) Crossover(rng *rand.Rand, a, b *schema.WorkflowDefinition) *schema.WorkflowDefinition {
	child := a.Clone()
	bc := b.Clone()

	if len(child.Steps) == 0 || len(bc.Steps) == 0 {
		return child
	}

	cut := rng.Intn(len(child.Steps) + 1)
	if cut > len(bc.Steps) {
		cut = len(bc.Steps)
	}
	child.Steps = append(child.Steps[:cut], bc.Steps[cut:]...)

	// Splicing can duplicate step IDs; keep the first occurrence.
	seen := make(map[string]bool, len(child.Steps))
	deduped := child.Steps[:0]
	for _, step := range child.Steps {
		if seen[step.ID] {
			continue
		}
		seen[step.ID] = true
		deduped = append(deduped, step)
	}
	child.Steps = deduped

	for k, v := range bc.Variables {
		if _, ok := child.Variables[k]; !ok {
			if child.Variables == nil {
				child.Variables = make(map[string]any)
			}
			child.Variables[k] = v
		}
	}
	return child
}
