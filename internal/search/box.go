package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/cwbudde/pipesizer/internal/network"
	"github.com/cwbudde/pipesizer/internal/opt"
)

// StochasticBox relaxes the size indices to the continuous box
// [0, upper_i] and hands the problem to a continuous optimizer. Candidates
// are rounded to the nearest index; infeasible ones score Penalty.
type StochasticBox struct {
	Algorithm Algorithm
	Optimizer opt.Optimizer
}

// Name returns the configured algorithm
func (s *StochasticBox) Name() Algorithm {
	return s.Algorithm
}

// round maps a continuous point onto the nearest valid assignment
func round(v []float64, upper []int) network.Assignment {
	x := make(network.Assignment, len(v))
	for i, f := range v {
		idx := int(math.Round(f))
		if idx < 0 {
			idx = 0
		}
		if idx > upper[i] {
			idx = upper[i]
		}
		x[i] = idx
	}
	return x
}

// Run optimizes and re-verifies the rounded optimum. The optimizer cannot be
// interrupted, so after an oracle failure or cancellation the remaining
// evaluations return Penalty without touching the oracle.
func (s *StochasticBox) Run(ctx context.Context, m *network.Model) (network.Assignment, error) {
	dim := m.Dimension()
	upper := m.Upper()
	lower := make([]float64, dim)
	box := make([]float64, dim)
	for i, u := range upper {
		box[i] = float64(u)
	}

	// Distinct continuous points often round to the same assignment
	seen := make(map[string]float64)
	var evalErr error
	evals := 0
	objective := func(v []float64) float64 {
		if evalErr != nil {
			return Penalty
		}
		if err := ctx.Err(); err != nil {
			evalErr = err
			return Penalty
		}
		x := round(v, upper)
		key := fmt.Sprint([]int(x))
		if f, ok := seen[key]; ok {
			return f
		}

		evals++
		if err := m.SetAssignment(x); err != nil {
			evalErr = err
			return Penalty
		}
		ok, err := m.CheckFeasible()
		if err != nil {
			evalErr = err
			return Penalty
		}
		f := Penalty
		if ok {
			f = m.Cost()
		}
		seen[key] = f
		return f
	}

	best, bestCost := s.Optimizer.Run(objective, lower, box, dim)
	if evalErr != nil {
		return nil, evalErr
	}
	slog.Info("Relaxed optimization complete",
		"algorithm", s.Algorithm,
		"best_cost", bestCost,
		"distinct_assignments", evals,
	)

	x := round(best, upper)
	if err := m.SetAssignment(x); err != nil {
		return nil, err
	}
	ok, err := m.CheckFeasible()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &network.InfeasibleError{Strategy: string(s.Algorithm)}
	}
	return x, nil
}
