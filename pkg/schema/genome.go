package schema

import (
	"context"
	"time"
)

// AssetType tags what kind of genome an EvoAsset carries.
type AssetType string

const (
	AssetTypeWorkflow   AssetType = "workflow"
	AssetTypeAgent      AssetType = "agent"
	AssetTypeStepConfig AssetType = "step-config"
)

// EvoAsset is one member of an optimization population: a genome (workflow
// variant) plus its multi-objective fitness and lineage. The genome payload
// is immutable once created; mutation produces a new asset, never edits in
// place. Fitness is the only field written after creation, and only by the
// evaluation phase of the generation that owns the asset.
type EvoAsset struct {
	ID         string              `json:"id"`
	Type       AssetType           `json:"type"`
	Genome     *WorkflowDefinition `json:"genome"`
	Fitness    map[string]float64  `json:"fitness,omitempty"`
	Generation int                 `json:"generation"`
	ParentIDs  []string            `json:"parent_ids,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

// Score returns the asset's score for an objective. Missing objectives score
// 0, implicitly worst-case under uniform maximization.
func (a *EvoAsset) Score(objective string) float64 {
	return a.Fitness[objective]
}

// AggregateFitness is the unweighted mean of all objective scores, used for
// elite ranking and tournament comparison. An unevaluated asset scores 0.
func (a *EvoAsset) AggregateFitness() float64 {
	if len(a.Fitness) == 0 {
		return 0
	}
	var sum float64
	for _, v := range a.Fitness {
		sum += v
	}
	return sum / float64(len(a.Fitness))
}

// GenerationRecord captures per-objective best and average fitness for one
// generation; the sequence of records is the convergence history.
type GenerationRecord struct {
	Generation int                `json:"generation"`
	Best       map[string]float64 `json:"best"`
	Average    map[string]float64 `json:"average"`
}

// OptimizationResult is returned by the optimizer.
type OptimizationResult struct {
	ParetoFront    []*EvoAsset        `json:"pareto_front"`
	Generations    int                `json:"generations"`
	PopulationSize int                `json:"population_size"`
	History        []GenerationRecord `json:"history"`
	DurationMs     int64              `json:"duration_ms"`
}

// Evaluator scores an execution result against one or more objectives.
// Scores are higher-is-better for every objective, including objectives
// named with a minimize_ prefix; evaluators normalize before emitting
// (e.g. minimize_duration -> 1/(1+seconds)). Evaluators must tolerate a
// synthetic (empty-step) execution result: the optimizer scores genomes
// that have never actually run.
type Evaluator interface {
	ID() string
	Name() string
	Evaluate(ctx context.Context, result *WorkflowExecutionResult) (map[string]float64, error)
}
