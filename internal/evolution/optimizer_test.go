package evolution

import (
	"context"
	"math/rand"
	"testing"

	"github.com/rendis/evoflow/internal/engine"
	"github.com/rendis/evoflow/internal/expressions"
	"github.com/rendis/evoflow/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOptimizer(t *testing.T) *Optimizer {
	t.Helper()

	registry := engine.NewExecutorRegistry()
	engine.RegisterBuiltins(registry, nil)

	conditions, err := expressions.NewConditionEvaluator()
	require.NoError(t, err)

	runner := engine.NewStepRunner(registry, nil, nil, nil, nil)
	eng := engine.NewWorkflowEngine(engine.NewContextStore(), runner, conditions, nil, nil, nil, nil)

	evaluators := NewEvaluatorRegistry(nil, nil)
	evaluators.RegisterBuiltins()

	opt := NewOptimizer(eng, evaluators, DefaultStrategyRegistry(), nil, nil)
	opt.Parallelism = 2
	opt.Seed = 42
	return opt
}

func optimizableWorkflow() *schema.WorkflowDefinition {
	return &schema.WorkflowDefinition{
		ID: "wf",
		Steps: []schema.WorkflowStep{
			{ID: "draft", Type: "agent", Config: map[string]any{
				"prompt":      "Write a short summary.",
				"temperature": 0.7,
			}},
			{ID: "finish", Type: "noop"},
		},
		Optimization: &schema.OptimizationConfig{
			PopulationSize: 4,
			MaxGenerations: 8,
			MutationRate:   0.5,
			CrossoverRate:  0.5,
			EliteCount:     1,
			Objectives:     []string{"success_rate", "minimize_duration"},
			Evaluators:     []string{"success-rate", "duration"},
		},
	}
}

func TestInitPopulationKeepsBaseInSlotZero(t *testing.T) {
	opt := newTestOptimizer(t)
	def := optimizableWorkflow()
	rng := rand.New(rand.NewSource(1))

	population := opt.initPopulation(rng, def, 4)

	require.Len(t, population, 4)
	base := population[0]
	assert.Equal(t, 0, base.Generation)
	assert.Empty(t, base.ParentIDs)
	assert.Equal(t, "Write a short summary.", base.Genome.Steps[0].Config["prompt"])

	for _, member := range population[1:] {
		assert.Equal(t, []string{base.ID}, member.ParentIDs)
	}
}

func TestOptimizeConvergesAndReturnsFront(t *testing.T) {
	opt := newTestOptimizer(t)
	def := optimizableWorkflow()

	result, err := opt.Optimize(context.Background(), def)
	require.NoError(t, err)

	// Every candidate executes identically well, so the best scores plateau
	// immediately and the variance window trips at generation 5.
	assert.Equal(t, 5, result.Generations)
	assert.Equal(t, 4, result.PopulationSize)
	assert.NotEmpty(t, result.ParetoFront)
	assert.Len(t, result.History, result.Generations)

	for _, member := range result.ParetoFront {
		assert.NotEmpty(t, member.Fitness)
		assert.InDelta(t, 1.0, member.Score("success_rate"), 1e-9)
	}
}

func TestOptimizeSingleGenerationBudget(t *testing.T) {
	opt := newTestOptimizer(t)
	def := optimizableWorkflow()
	def.Optimization.MaxGenerations = 1

	result, err := opt.Optimize(context.Background(), def)
	require.NoError(t, err)

	// One generation evaluated, one history entry, and a front drawn from the
	// full population of 4; no convergence is possible inside the budget.
	assert.Equal(t, 1, result.Generations)
	require.Len(t, result.History, 1)
	assert.Equal(t, 1, result.History[0].Generation)
	assert.Equal(t, 4, result.PopulationSize)
	require.NotEmpty(t, result.ParetoFront)
	assert.LessOrEqual(t, len(result.ParetoFront), 4)
	for _, member := range result.ParetoFront {
		assert.NotEmpty(t, member.Fitness)
	}
}

func TestOptimizeRequiresConfig(t *testing.T) {
	opt := newTestOptimizer(t)

	_, err := opt.Optimize(context.Background(), &schema.WorkflowDefinition{
		ID:    "wf",
		Steps: []schema.WorkflowStep{{ID: "a", Type: "noop"}},
	})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, err.(*schema.FlowError).Code)
}

func TestOptimizeRejectsEliteCountAtPopulationSize(t *testing.T) {
	opt := newTestOptimizer(t)
	def := optimizableWorkflow()
	def.Optimization.EliteCount = 4

	_, err := opt.Optimize(context.Background(), def)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, err.(*schema.FlowError).Code)
}

func TestBreedCarriesElites(t *testing.T) {
	opt := newTestOptimizer(t)
	cfg := &schema.OptimizationConfig{
		PopulationSize: 4,
		EliteCount:     2,
		MutationRate:   0.5,
		CrossoverRate:  0.5,
	}
	def := optimizableWorkflow()
	rng := rand.New(rand.NewSource(9))

	population := []*schema.EvoAsset{
		NewBaseAsset(def),
		NewBaseAsset(def),
		NewBaseAsset(def),
		NewBaseAsset(def),
	}
	population[0].Fitness = map[string]float64{"accuracy": 0.2}
	population[1].Fitness = map[string]float64{"accuracy": 0.9}
	population[2].Fitness = map[string]float64{"accuracy": 0.6}
	population[3].Fitness = map[string]float64{"accuracy": 0.4}

	next := opt.breed(rng, cfg, population, 3)

	require.Len(t, next, 4)
	// Elites ranked by aggregate fitness, carried with their scores.
	assert.Equal(t, population[1].ID, next[0].ID)
	assert.Equal(t, population[2].ID, next[1].ID)
	assert.Equal(t, 0.9, next[0].Score("accuracy"))
	assert.Equal(t, 4, next[0].Generation)

	// Offspring start unevaluated in the next generation.
	for _, child := range next[2:] {
		assert.Empty(t, child.Fitness)
		assert.Equal(t, 4, child.Generation)
		assert.NotEmpty(t, child.ParentIDs)
	}
}

func TestViolatesConstraints(t *testing.T) {
	result := &schema.WorkflowExecutionResult{
		DurationMs: 5000,
		Metrics:    map[string]float64{"success_rate": 0.5, "cost": 2.0},
	}

	assert.False(t, violatesConstraints(nil, result))
	assert.True(t, violatesConstraints(&schema.Constraints{MaxDurationMs: 1000}, result))
	assert.False(t, violatesConstraints(&schema.Constraints{MaxDurationMs: 10_000}, result))
	assert.True(t, violatesConstraints(&schema.Constraints{MinSuccessRate: 0.8}, result))
	assert.True(t, violatesConstraints(&schema.Constraints{MaxCost: 1.0}, result))
}
