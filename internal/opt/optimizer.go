package opt

import (
	"math"
	"math/rand"
)

// Optimizer defines a continuous box-constrained minimizer
type Optimizer interface {
	// Run executes the optimization
	// eval: objective function to minimize
	// lower, upper: per-dimension bounds
	// dim: dimensionality of parameter space
	// Returns: best parameters and best cost
	Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64)
}

func clamp(val, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, val))
}

// uniformPoint draws a point uniformly inside the box
func uniformPoint(rng *rand.Rand, lower, upper []float64, dim int) []float64 {
	x := make([]float64, dim)
	for j := 0; j < dim; j++ {
		x[j] = lower[j] + rng.Float64()*(upper[j]-lower[j])
	}
	return x
}
