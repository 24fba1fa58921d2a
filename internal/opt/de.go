package opt

import "math/rand"

// DifferentialEvolution implements the classic rand/1/bin scheme
type DifferentialEvolution struct {
	maxIters  int
	popSize   int
	mutation  float64 // F
	crossover float64 // CR
	seed      int64
}

// NewDifferentialEvolution creates a DE optimizer with F=0.8 and CR=0.7
func NewDifferentialEvolution(maxIters, popSize int, seed int64) Optimizer {
	if popSize < 4 {
		popSize = 4
	}
	return &DifferentialEvolution{
		maxIters:  maxIters,
		popSize:   popSize,
		mutation:  0.8,
		crossover: 0.7,
		seed:      seed,
	}
}

// Run evaluates popSize*(maxIters+1) points. A trial replaces its target when
// it is no worse, so plateaus can still be crossed.
func (de *DifferentialEvolution) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	rng := rand.New(rand.NewSource(de.seed))

	pop := make([][]float64, de.popSize)
	cost := make([]float64, de.popSize)
	best := 0
	for i := range pop {
		pop[i] = uniformPoint(rng, lower, upper, dim)
		cost[i] = eval(pop[i])
		if cost[i] < cost[best] {
			best = i
		}
	}

	trial := make([]float64, dim)
	for iter := 0; iter < de.maxIters; iter++ {
		for i := range pop {
			a, b, c := de.pick(rng, i)
			jrand := rng.Intn(dim)
			for j := 0; j < dim; j++ {
				if j == jrand || rng.Float64() < de.crossover {
					v := pop[a][j] + de.mutation*(pop[b][j]-pop[c][j])
					trial[j] = clamp(v, lower[j], upper[j])
				} else {
					trial[j] = pop[i][j]
				}
			}

			f := eval(trial)
			if f <= cost[i] {
				copy(pop[i], trial)
				cost[i] = f
				if f < cost[best] {
					best = i
				}
			}
		}
	}

	return append([]float64(nil), pop[best]...), cost[best]
}

// pick returns three distinct population indices, all different from i
func (de *DifferentialEvolution) pick(rng *rand.Rand, i int) (int, int, int) {
	var idx [3]int
	for n := 0; n < 3; {
		r := rng.Intn(de.popSize)
		if r == i {
			continue
		}
		dup := false
		for k := 0; k < n; k++ {
			if idx[k] == r {
				dup = true
				break
			}
		}
		if !dup {
			idx[n] = r
			n++
		}
	}
	return idx[0], idx[1], idx[2]
}
