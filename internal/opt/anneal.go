package opt

import (
	"math"
	"math/rand"
)

// Visiting parameter and restart ratio of generalized simulated annealing
const (
	annealVisit        = 2.62
	annealRestartRatio = 2e-5
)

// Annealing is a generalized simulated annealing minimizer with a
// heavy-tailed visiting distribution and reannealing restarts
type Annealing struct {
	maxIters    int
	initialTemp float64
	seed        int64
}

// NewAnnealing creates an annealing optimizer. maxIters counts temperature
// steps; every step visits each dimension once.
func NewAnnealing(maxIters int, seed int64) Optimizer {
	return &Annealing{
		maxIters:    maxIters,
		initialTemp: 5230,
		seed:        seed,
	}
}

// temperature follows the Tsallis schedule for step k (1-based)
func (a *Annealing) temperature(k int) float64 {
	t1 := math.Exp((annealVisit-1)*math.Log(2)) - 1
	t2 := math.Exp((annealVisit-1)*math.Log(float64(k)+1)) - 1
	return a.initialTemp * t1 / t2
}

// visit draws a Cauchy-like step scaled by the relative temperature
func (a *Annealing) visit(rng *rand.Rand, temp, span float64) float64 {
	scale := math.Sqrt(temp/a.initialTemp) * span
	return scale * math.Tan(math.Pi*(rng.Float64()-0.5))
}

// Run keeps the current point and the best point seen; uphill moves are
// accepted with a probability that shrinks with the temperature.
func (a *Annealing) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	rng := rand.New(rand.NewSource(a.seed))

	current := uniformPoint(rng, lower, upper, dim)
	currentCost := eval(current)
	best := append([]float64(nil), current...)
	bestCost := currentCost

	candidate := make([]float64, dim)
	k := 1
	for iter := 0; iter < a.maxIters; iter++ {
		temp := a.temperature(k)
		if temp < a.initialTemp*annealRestartRatio {
			// Reanneal from the best point
			k = 1
			temp = a.temperature(k)
			copy(current, best)
			currentCost = bestCost
		}

		for j := 0; j < dim; j++ {
			copy(candidate, current)
			candidate[j] = clamp(current[j]+a.visit(rng, temp, upper[j]-lower[j]), lower[j], upper[j])

			f := eval(candidate)
			if a.accept(rng, currentCost, f, temp) {
				copy(current, candidate)
				currentCost = f
			}
			if f < bestCost {
				copy(best, candidate)
				bestCost = f
			}
		}
		k++
	}

	return best, bestCost
}

// accept applies the Metropolis rule on the relative cost increase
func (a *Annealing) accept(rng *rand.Rand, current, next, temp float64) bool {
	if next <= current {
		return true
	}
	delta := (next - current) / math.Max(1, math.Abs(current))
	return rng.Float64() < math.Exp(-delta*a.initialTemp/temp)
}
