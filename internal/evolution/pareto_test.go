package evolution

import (
	"testing"

	"github.com/rendis/evoflow/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func asset(id string, fitness map[string]float64) *schema.EvoAsset {
	return &schema.EvoAsset{ID: id, Fitness: fitness}
}

func TestDominates(t *testing.T) {
	objectives := []string{"accuracy", "speed"}

	tests := []struct {
		name string
		a, b *schema.EvoAsset
		want bool
	}{
		{
			name: "better on all",
			a:    asset("a", map[string]float64{"accuracy": 0.9, "speed": 0.8}),
			b:    asset("b", map[string]float64{"accuracy": 0.5, "speed": 0.4}),
			want: true,
		},
		{
			name: "equal on one better on other",
			a:    asset("a", map[string]float64{"accuracy": 0.9, "speed": 0.8}),
			b:    asset("b", map[string]float64{"accuracy": 0.9, "speed": 0.4}),
			want: true,
		},
		{
			name: "identical never dominates",
			a:    asset("a", map[string]float64{"accuracy": 0.9, "speed": 0.8}),
			b:    asset("b", map[string]float64{"accuracy": 0.9, "speed": 0.8}),
			want: false,
		},
		{
			name: "tradeoff does not dominate",
			a:    asset("a", map[string]float64{"accuracy": 0.9, "speed": 0.2}),
			b:    asset("b", map[string]float64{"accuracy": 0.5, "speed": 0.8}),
			want: false,
		},
		{
			name: "missing objective counts as zero",
			a:    asset("a", map[string]float64{"accuracy": 0.9, "speed": 0.1}),
			b:    asset("b", map[string]float64{"accuracy": 0.5}),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Dominates(tt.a, tt.b, objectives))
		})
	}
}

func TestParetoFront(t *testing.T) {
	objectives := []string{"accuracy", "speed"}
	population := []*schema.EvoAsset{
		asset("balanced", map[string]float64{"accuracy": 0.7, "speed": 0.7}),
		asset("accurate", map[string]float64{"accuracy": 0.9, "speed": 0.3}),
		asset("fast", map[string]float64{"accuracy": 0.3, "speed": 0.9}),
		asset("dominated", map[string]float64{"accuracy": 0.5, "speed": 0.5}),
	}

	front := ParetoFront(population, objectives)

	require.Len(t, front, 3)
	ids := []string{front[0].ID, front[1].ID, front[2].ID}
	assert.Equal(t, []string{"balanced", "accurate", "fast"}, ids)
}

func TestParetoFrontSingleMember(t *testing.T) {
	population := []*schema.EvoAsset{
		asset("only", map[string]float64{"accuracy": 0.1}),
	}
	front := ParetoFront(population, []string{"accuracy"})
	require.Len(t, front, 1)
	assert.Equal(t, "only", front[0].ID)
}
