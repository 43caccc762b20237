package evolution

import (
	"testing"

	"github.com/rendis/evoflow/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populationWithBest(score float64) []*schema.EvoAsset {
	return []*schema.EvoAsset{
		asset("a", map[string]float64{"accuracy": score}),
		asset("b", map[string]float64{"accuracy": score / 2}),
	}
}

func TestConvergenceNeedsFullWindow(t *testing.T) {
	tracker := NewConvergenceTracker([]string{"accuracy"})

	for gen := 1; gen <= 4; gen++ {
		tracker.Record(gen, populationWithBest(0.8))
		assert.False(t, tracker.Converged(), "generation %d", gen)
	}

	tracker.Record(5, populationWithBest(0.8))
	assert.True(t, tracker.Converged())
}

func TestConvergenceDetectsPlateau(t *testing.T) {
	tracker := NewConvergenceTracker([]string{"accuracy"})

	// Improving phase, then plateau.
	scores := []float64{0.2, 0.5, 0.8, 0.8, 0.8, 0.8, 0.8, 0.8}
	converged := false
	for gen, score := range scores {
		tracker.Record(gen+1, populationWithBest(score))
		if tracker.Converged() {
			converged = true
			break
		}
	}
	assert.True(t, converged)
}

func TestConvergenceRejectsMovingBest(t *testing.T) {
	tracker := NewConvergenceTracker([]string{"accuracy"})

	for gen, score := range []float64{0.1, 0.3, 0.5, 0.7, 0.9} {
		tracker.Record(gen+1, populationWithBest(score))
	}
	assert.False(t, tracker.Converged())
}

func TestConvergenceChecksEveryObjective(t *testing.T) {
	tracker := NewConvergenceTracker([]string{"accuracy", "speed"})

	for gen := 1; gen <= 5; gen++ {
		tracker.Record(gen, []*schema.EvoAsset{
			asset("a", map[string]float64{
				"accuracy": 0.8,
				"speed":    float64(gen) * 0.2,
			}),
		})
	}
	// Accuracy is flat but speed keeps moving.
	assert.False(t, tracker.Converged())
}

func TestRecordComputesBestAndAverage(t *testing.T) {
	tracker := NewConvergenceTracker([]string{"accuracy"})

	record := tracker.Record(1, []*schema.EvoAsset{
		asset("a", map[string]float64{"accuracy": 0.9}),
		asset("b", map[string]float64{"accuracy": 0.5}),
		asset("c", nil),
	})

	assert.Equal(t, 0.9, record.Best["accuracy"])
	assert.InDelta(t, (0.9+0.5)/3, record.Average["accuracy"], 1e-9)

	history := tracker.History()
	require.Len(t, history, 1)
	assert.Equal(t, 1, history[0].Generation)
}
