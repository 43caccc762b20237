package evolution

import "github.com/rendis/evoflow/pkg/schema"

const (
	// convergenceWindow is how many trailing generations the variance check
	// covers.
	convergenceWindow = 5
	// convergenceEpsilon is the per-objective variance threshold for the best
	// scores within the window.
	convergenceEpsilon = 0.01
)

// ConvergenceTracker accumulates per-generation fitness statistics and
// detects when the best scores have stopped moving.
type ConvergenceTracker struct {
	objectives []string
	history    []schema.GenerationRecord
}

// NewConvergenceTracker creates a tracker for the given objectives.
func NewConvergenceTracker(objectives []string) *ConvergenceTracker {
	return &ConvergenceTracker{objectives: objectives}
}

// Record computes best and average scores per objective for the generation
// and appends them to the history.
func (t *ConvergenceTracker) Record(generation int, population []*schema.EvoAsset) schema.GenerationRecord {
	record := schema.GenerationRecord{
		Generation: generation,
		Best:       make(map[string]float64, len(t.objectives)),
		Average:    make(map[string]float64, len(t.objectives)),
	}

	for _, obj := range t.objectives {
		best := 0.0
		sum := 0.0
		for i, asset := range population {
			score := asset.Score(obj)
			sum += score
			if i == 0 || score > best {
				best = score
			}
		}
		record.Best[obj] = best
		if len(population) > 0 {
			record.Average[obj] = sum / float64(len(population))
		}
	}

	t.history = append(t.history, record)
	return record
}

// History returns the recorded generation statistics in order.
func (t *ConvergenceTracker) History() []schema.GenerationRecord {
	out := make([]schema.GenerationRecord, len(t.history))
	copy(out, t.history)
	return out
}

// Converged reports whether the best score of every objective has variance
// at or below the epsilon over the trailing window. Fewer than window
// generations recorded means not converged.
func (t *ConvergenceTracker) Converged() bool {
	if len(t.history) < convergenceWindow {
		return false
	}

	window := t.history[len(t.history)-convergenceWindow:]
	for _, obj := range t.objectives {
		if variance(window, obj) > convergenceEpsilon {
			return false
		}
	}
	return true
}

// variance is the population variance of an objective's best score across
// the given records.
func variance(records []schema.GenerationRecord, objective string) float64 {
	n := float64(len(records))
	mean := 0.0
	for _, r := range records {
		mean += r.Best[objective]
	}
	mean /= n

	v := 0.0
	for _, r := range records {
		d := r.Best[objective] - mean
		v += d * d
	}
	return v / n
}
