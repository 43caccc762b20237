package evolution

import (
	"time"

	"github.com/google/uuid"
	"github.com/rendis/evoflow/pkg/schema"
)

// NewBaseAsset wraps the original workflow definition as generation-0
// population member. The base always occupies slot 0 of the initial
// population so the optimizer can never lose the unmodified configuration.
func NewBaseAsset(def *schema.WorkflowDefinition) *schema.EvoAsset {
	return &schema.EvoAsset{
		ID:         uuid.NewString(),
		Type:       schema.AssetTypeWorkflow,
		Genome:     def.Clone(),
		Generation: 0,
		CreatedAt:  time.Now(),
	}
}

// NewChildAsset creates an offspring asset from the given genome. Fitness is
// left empty; the next evaluation phase fills it in.
func NewChildAsset(genome *schema.WorkflowDefinition, generation int, parents ...*schema.EvoAsset) *schema.EvoAsset {
	parentIDs := make([]string, 0, len(parents))
	for _, p := range parents {
		parentIDs = append(parentIDs, p.ID)
	}
	return &schema.EvoAsset{
		ID:         uuid.NewString(),
		Type:       schema.AssetTypeWorkflow,
		Genome:     genome,
		Generation: generation,
		ParentIDs:  parentIDs,
		CreatedAt:  time.Now(),
	}
}

// CloneAsset copies an asset into the next generation unchanged. Used for
// elite carry-over; fitness travels with the clone so elites are not
// re-evaluated.
func CloneAsset(a *schema.EvoAsset, generation int) *schema.EvoAsset {
	fitness := make(map[string]float64, len(a.Fitness))
	for k, v := range a.Fitness {
		fitness[k] = v
	}
	return &schema.EvoAsset{
		ID:         a.ID,
		Type:       a.Type,
		Genome:     a.Genome,
		Fitness:    fitness,
		Generation: generation,
		ParentIDs:  a.ParentIDs,
		CreatedAt:  a.CreatedAt,
	}
}
