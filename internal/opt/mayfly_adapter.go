package opt

import (
	"log/slog"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// mayfly v0.1.0 rejects smaller populations
const minMayflyPopulation = 20

// MayflyAdapter wraps the external Mayfly library to conform to our Optimizer interface
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
}

// NewMayfly creates a new Mayfly optimizer adapter
func NewMayfly(maxIters, popSize int, seed int64) Optimizer {
	if popSize < minMayflyPopulation {
		popSize = minMayflyPopulation
	}
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
	}
}

// Run executes the Mayfly optimization using the external library.
// The library only takes scalar bounds, so the search runs in the unit cube
// and every position is mapped onto the per-dimension box before evaluation.
func (m *MayflyAdapter) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	toBox := func(u []float64) []float64 {
		x := make([]float64, dim)
		for j := 0; j < dim; j++ {
			x[j] = lower[j] + clamp(u[j], 0, 1)*(upper[j]-lower[j])
		}
		return x
	}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = func(u []float64) float64 {
		return eval(toBox(u))
	}
	config.ProblemSize = dim
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize
	config.LowerBound = 0
	config.UpperBound = 1
	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		// Fall back to the lower corner, which the caller re-evaluates anyway
		slog.Warn("Mayfly optimization failed", "error", err)
		x := append([]float64(nil), lower[:dim]...)
		return x, eval(x)
	}

	return toBox(result.GlobalBest.Position), result.GlobalBest.Cost
}
