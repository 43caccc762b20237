package evolution

import "github.com/rendis/evoflow/pkg/schema"

// Dominates reports whether a Pareto-dominates b over the given objectives:
// a is at least as good on every objective and strictly better on at least
// one. Missing objective scores count as 0.
func Dominates(a, b *schema.EvoAsset, objectives []string) bool {
	strictlyBetter := false
	for _, obj := range objectives {
		as, bs := a.Score(obj), b.Score(obj)
		if as < bs {
			return false
		}
		if as > bs {
			strictlyBetter = true
		}
	}
	return strictlyBetter
}

// ParetoFront returns the non-dominated members of the population over the
// given objectives. Input order is preserved among front members.
func ParetoFront(population []*schema.EvoAsset, objectives []string) []*schema.EvoAsset {
	var front []*schema.EvoAsset
	for i, candidate := range population {
		dominated := false
		for j, other := range population {
			if i == j {
				continue
			}
			if Dominates(other, candidate, objectives) {
				dominated = true
				break
			}
		}
		if !dominated {
			front = append(front, candidate)
		}
	}
	return front
}
