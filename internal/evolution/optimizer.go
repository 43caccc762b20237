package evolution

import (
	"context"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rendis/evoflow/internal/engine"
	"github.com/rendis/evoflow/internal/streaming"
	"github.com/rendis/evoflow/pkg/schema"
)

// Optimization defaults applied when the config leaves a knob unset.
const (
	defaultPopulationSize = 10
	defaultMaxGenerations = 20
	defaultMutationRate   = 0.3
	defaultCrossoverRate  = 0.7
	defaultEliteCount     = 2
)

// Optimizer evolves workflow definitions against multi-objective fitness.
// Each candidate genome is executed through the workflow engine and scored
// by the configured evaluators; selection, crossover and mutation breed the
// next generation until convergence or the generation cap.
type Optimizer struct {
	engine     *engine.WorkflowEngine
	evaluators *EvaluatorRegistry
	strategies *StrategyRegistry
	hub        streaming.TelemetryHub
	logger     *slog.Logger

	// Parallelism bounds concurrent fitness evaluations per generation.
	Parallelism int
	// Seed fixes the random source for reproducible runs. Zero seeds from
	// the clock.
	Seed int64
}

// NewOptimizer creates an optimizer. hub may be nil.
func NewOptimizer(eng *engine.WorkflowEngine, evaluators *EvaluatorRegistry, strategies *StrategyRegistry, hub streaming.TelemetryHub, logger *slog.Logger) *Optimizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Optimizer{
		engine:      eng,
		evaluators:  evaluators,
		strategies:  strategies,
		hub:         hub,
		logger:      logger,
		Parallelism: 4,
	}
}

// Optimize runs the evolutionary loop for the definition's optimization
// config and returns the Pareto front of the final population.
func (o *Optimizer) Optimize(ctx context.Context, def *schema.WorkflowDefinition) (*schema.OptimizationResult, error) {
	cfg, err := o.effectiveConfig(def)
	if err != nil {
		return nil, err
	}

	seed := o.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	start := time.Now()
	o.publish(ctx, def.ID, schema.EventOptimizationStart, map[string]any{
		"population_size": cfg.PopulationSize,
		"max_generations": cfg.MaxGenerations,
		"objectives":      cfg.Objectives,
	})

	population := o.initPopulation(rng, def, cfg.PopulationSize)

	objectives := cfg.Objectives
	var tracker *ConvergenceTracker
	generations := 0

	for gen := 1; gen <= cfg.MaxGenerations; gen++ {
		if err := ctx.Err(); err != nil {
			return nil, schema.NewError(schema.ErrCodeCancelled, "optimization cancelled").
				WithCause(err)
		}

		if err := o.evaluatePopulation(ctx, cfg, population); err != nil {
			return nil, err
		}

		// Objectives left unset in the config are discovered from the first
		// generation's fitness keys.
		if len(objectives) == 0 {
			objectives = collectObjectives(population)
		}
		if tracker == nil {
			tracker = NewConvergenceTracker(objectives)
		}

		record := tracker.Record(gen, population)
		generations = gen
		o.publish(ctx, def.ID, schema.EventOptimizationGeneration, map[string]any{
			"generation": gen,
			"best":       record.Best,
			"average":    record.Average,
		})
		o.publish(ctx, def.ID, schema.EventGenerationComplete, map[string]any{
			"generation": gen,
		})
		o.logger.InfoContext(ctx, "generation evaluated",
			slog.Int("generation", gen),
			slog.Any("best", record.Best),
		)

		if tracker.Converged() {
			o.logger.InfoContext(ctx, "optimization converged",
				slog.Int("generation", gen))
			break
		}
		if gen < cfg.MaxGenerations {
			population = o.breed(rng, cfg, population, gen)
		}
	}

	result := &schema.OptimizationResult{
		ParetoFront:    ParetoFront(population, objectives),
		Generations:    generations,
		PopulationSize: cfg.PopulationSize,
		DurationMs:     time.Since(start).Milliseconds(),
	}
	if tracker != nil {
		result.History = tracker.History()
	}

	o.publish(ctx, def.ID, schema.EventOptimizationComplete, map[string]any{
		"generations": result.Generations,
		"front_size":  len(result.ParetoFront),
		"duration_ms": result.DurationMs,
	})
	return result, nil
}

// effectiveConfig validates the optimization config and fills defaults.
func (o *Optimizer) effectiveConfig(def *schema.WorkflowDefinition) (*schema.OptimizationConfig, error) {
	if def.Optimization == nil {
		return nil, schema.NewError(schema.ErrCodeValidation,
			"workflow has no optimization config")
	}

	cfg := *def.Optimization
	if cfg.PopulationSize <= 0 {
		cfg.PopulationSize = defaultPopulationSize
	}
	if cfg.MaxGenerations <= 0 {
		cfg.MaxGenerations = defaultMaxGenerations
	}
	if cfg.MutationRate <= 0 {
		cfg.MutationRate = defaultMutationRate
	}
	if cfg.CrossoverRate <= 0 {
		cfg.CrossoverRate = defaultCrossoverRate
	}
	if cfg.EliteCount <= 0 {
		cfg.EliteCount = defaultEliteCount
	}
	if cfg.EliteCount >= cfg.PopulationSize {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"elite_count %d must be smaller than population_size %d",
			cfg.EliteCount, cfg.PopulationSize)
	}
	if len(cfg.Evaluators) == 0 {
		cfg.Evaluators = o.evaluators.IDs()
	}
	if len(cfg.Evaluators) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation,
			"no evaluators configured or registered")
	}
	return &cfg, nil
}

// initPopulation seeds generation 0: the unmodified base genome in slot 0
// and mutated variants in the rest.
func (o *Optimizer) initPopulation(rng *rand.Rand, def *schema.WorkflowDefinition, size int) []*schema.EvoAsset {
	base := NewBaseAsset(def)
	population := make([]*schema.EvoAsset, 0, size)
	population = append(population, base)

	for len(population) < size {
		genome := base.Genome.Clone()
		if m := o.strategies.DrawMutation(rng); m != nil {
			genome = m.Mutate(rng, base.Genome)
		}
		population = append(population, NewChildAsset(genome, 0, base))
	}
	return population
}

// evaluatePopulation executes and scores every member concurrently, then
// waits on the pool barrier before returning. Per-asset failures zero that
// asset's fitness instead of aborting the run.
func (o *Optimizer) evaluatePopulation(ctx context.Context, cfg *schema.OptimizationConfig, population []*schema.EvoAsset) error {
	pool := engine.NewWorkerPool(o.Parallelism)

	var mu sync.Mutex
	for _, asset := range population {
		if len(asset.Fitness) > 0 {
			// Elites carry fitness from the generation that scored them.
			continue
		}
		a := asset
		err := pool.Submit(ctx, func() {
			fitness := o.evaluateAsset(ctx, cfg, a)
			mu.Lock()
			a.Fitness = fitness
			mu.Unlock()
		})
		if err != nil {
			pool.Wait()
			return err
		}
	}

	pool.Wait()
	return nil
}

// evaluateAsset runs one genome through the engine and merges the configured
// evaluators' scores into a single fitness map.
func (o *Optimizer) evaluateAsset(ctx context.Context, cfg *schema.OptimizationConfig, asset *schema.EvoAsset) map[string]float64 {
	result, err := o.engine.Execute(ctx, asset.Genome)
	if err != nil {
		o.logger.ErrorContext(ctx, "candidate execution failed",
			slog.String("asset_id", asset.ID),
			slog.String("error", err.Error()),
		)
		return map[string]float64{}
	}

	scores := o.evaluators.Evaluate(ctx, cfg.Evaluators, result)

	fitness := make(map[string]float64)
	for _, objectiveScores := range scores {
		for objective, score := range objectiveScores {
			fitness[objective] = score
		}
	}

	if violatesConstraints(cfg.Constraints, result) {
		for objective := range fitness {
			fitness[objective] = 0
		}
	}
	return fitness
}

// violatesConstraints checks the hard limits against an execution result.
func violatesConstraints(c *schema.Constraints, result *schema.WorkflowExecutionResult) bool {
	if c == nil {
		return false
	}
	if c.MaxDurationMs > 0 && result.DurationMs > c.MaxDurationMs {
		return true
	}
	if c.MaxCost > 0 && result.Metrics["cost"] > c.MaxCost {
		return true
	}
	if c.MinSuccessRate > 0 && result.Metrics["success_rate"] < c.MinSuccessRate {
		return true
	}
	return false
}

// breed builds the next generation: the top elites by mean aggregate fitness
// carry over unchanged, the rest are offspring from tournament-selected
// parents via crossover and mutation.
func (o *Optimizer) breed(rng *rand.Rand, cfg *schema.OptimizationConfig, population []*schema.EvoAsset, generation int) []*schema.EvoAsset {
	ranked := make([]*schema.EvoAsset, len(population))
	copy(ranked, population)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].AggregateFitness() > ranked[j].AggregateFitness()
	})

	next := make([]*schema.EvoAsset, 0, cfg.PopulationSize)
	for i := 0; i < cfg.EliteCount && i < len(ranked); i++ {
		next = append(next, CloneAsset(ranked[i], generation+1))
	}

	crossover := o.strategies.Crossover()
	selection := o.strategies.Selection()
	for len(next) < cfg.PopulationSize {
		parentA := selection.Select(rng, population)
		parentB := selection.Select(rng, population)

		var genome *schema.WorkflowDefinition
		parents := []*schema.EvoAsset{parentA}
		if crossover != nil && rng.Float64() < cfg.CrossoverRate {
			genome = crossover.Crossover(rng, parentA.Genome, parentB.Genome)
			parents = append(parents, parentB)
		} else {
			genome = parentA.Genome.Clone()
		}

		if m := o.strategies.DrawMutation(rng); m != nil && rng.Float64() < cfg.MutationRate {
			genome = m.Mutate(rng, genome)
		}

		next = append(next, NewChildAsset(genome, generation+1, parents...))
	}
	return next
}

// collectObjectives returns the sorted union of fitness keys across the
// population.
func collectObjectives(population []*schema.EvoAsset) []string {
	set := make(map[string]bool)
	for _, asset := range population {
		for objective := range asset.Fitness {
			set[objective] = true
		}
	}
	objectives := make([]string, 0, len(set))
	for objective := range set {
		objectives = append(objectives, objective)
	}
	sort.Strings(objectives)
	return objectives
}

func (o *Optimizer) publish(ctx context.Context, workflowID, eventType string, payload map[string]any) {
	if o.hub == nil {
		return
	}
	_ = o.hub.Publish(ctx, streaming.TelemetryEvent{
		WorkflowID: workflowID,
		EventType:  eventType,
		Payload:    payload,
	})
}
