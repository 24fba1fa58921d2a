package opt

import (
	"math"
	"testing"
)

func TestDifferentialEvolutionOnSphere(t *testing.T) {
	optimizer := NewDifferentialEvolution(150, 20, 42)

	lower := []float64{-10, -10, -10}
	upper := []float64{10, 10, 10}

	best, cost := optimizer.Run(sphere, lower, upper, 3)
	if len(best) != 3 {
		t.Fatalf("Expected 3 parameters, got %d", len(best))
	}
	if cost > 0.01 {
		t.Errorf("Expected cost near 0, got %f", cost)
	}
	if got := sphere(best); got != cost {
		t.Errorf("Returned cost %f does not match parameters (%f)", cost, got)
	}
}

func TestDifferentialEvolutionStaysInBounds(t *testing.T) {
	optimizer := NewDifferentialEvolution(30, 10, 3)

	lower := []float64{0, 0}
	upper := []float64{0.5, 4}

	violations := 0
	eval := func(x []float64) float64 {
		for i, v := range x {
			if v < lower[i] || v > upper[i] {
				violations++
			}
		}
		return shifted(x)
	}

	best, _ := optimizer.Run(eval, lower, upper, 2)
	if violations != 0 {
		t.Errorf("Evaluated %d out-of-bounds points", violations)
	}
	// The first coordinate is pinned against its upper bound
	if math.Abs(best[0]-0.5) > 0.05 {
		t.Errorf("Expected x0 near 0.5, got %f", best[0])
	}
}

func TestDifferentialEvolutionEvaluationCount(t *testing.T) {
	optimizer := NewDifferentialEvolution(5, 8, 1)
	calls := 0
	optimizer.Run(func(x []float64) float64 {
		calls++
		return sphere(x)
	}, []float64{-1}, []float64{1}, 1)

	if calls != 8*(5+1) {
		t.Errorf("Expected %d evaluations, got %d", 8*6, calls)
	}
}

func TestDifferentialEvolutionDeterministic(t *testing.T) {
	lower := []float64{-5, -5}
	upper := []float64{5, 5}

	best1, cost1 := NewDifferentialEvolution(20, 10, 99).Run(shifted, lower, upper, 2)
	best2, cost2 := NewDifferentialEvolution(20, 10, 99).Run(shifted, lower, upper, 2)

	if cost1 != cost2 || best1[0] != best2[0] || best1[1] != best2[1] {
		t.Errorf("Non-deterministic: %v/%f vs %v/%f", best1, cost1, best2, cost2)
	}
}
