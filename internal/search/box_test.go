package search

import (
	"context"
	"errors"
	"testing"

	"github.com/cwbudde/pipesizer/internal/network"
	"github.com/cwbudde/pipesizer/internal/opt"
)

// fixedPoint evaluates the given points and reports the cheapest
type fixedPoint struct {
	points [][]float64
	costs  []float64
}

func (f *fixedPoint) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	var best []float64
	bestCost := Penalty * 10
	for _, p := range f.points {
		c := eval(p)
		f.costs = append(f.costs, c)
		if c <= bestCost {
			best, bestCost = p, c
		}
	}
	return best, bestCost
}

func TestStochasticBoxRoundsAndClamps(t *testing.T) {
	m := newModel(t, bothAtLeast(12), 1, 100, 100)
	fp := &fixedPoint{points: [][]float64{{-0.7, 0.2}, {1.4, 0.6}, {2.9, 1.2}}}

	x, err := (&StochasticBox{Algorithm: "fixed", Optimizer: fp}).Run(context.Background(), m)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !equal(x, network.Assignment{1, 1}) {
		t.Errorf("Expected [1 1], got %v", x)
	}
	if fp.costs[0] != Penalty {
		t.Errorf("Infeasible candidate should score Penalty, got %g", fp.costs[0])
	}
	if fp.costs[1] != 300 || fp.costs[2] != 350 {
		t.Errorf("Unexpected feasible costs %v", fp.costs)
	}
}

func TestStochasticBoxReverifiesOptimum(t *testing.T) {
	m := newModel(t, bothAtLeast(12), 1, 100, 100)
	fp := &fixedPoint{points: [][]float64{{0, 0}}}

	_, err := (&StochasticBox{Algorithm: "fixed", Optimizer: fp}).Run(context.Background(), m)
	if !errors.Is(err, network.ErrNoSolution) {
		t.Fatalf("Expected ErrNoSolution, got %v", err)
	}
}

func TestStochasticBoxCachesRoundedAssignments(t *testing.T) {
	m := newModel(t, bothAtLeast(12), 1, 100, 100)
	fp := &fixedPoint{points: [][]float64{{1.1, 1.2}, {0.9, 0.8}, {1.0, 1.0}}}

	if _, err := (&StochasticBox{Algorithm: "fixed", Optimizer: fp}).Run(context.Background(), m); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// One evaluation plus the final re-verification
	if got := m.Stats().Feasible; got != 2 {
		t.Errorf("Expected 2 feasibility checks, got %d", got)
	}
}

func TestStochasticBoxWithDifferentialEvolution(t *testing.T) {
	m := newModel(t, bothAtLeast(12), 1, 100, 100)
	s := &StochasticBox{
		Algorithm: DifferentialEvolution,
		Optimizer: opt.NewDifferentialEvolution(30, 10, 1),
	}

	x, err := s.Run(context.Background(), m)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !equal(x, network.Assignment{1, 1}) {
		t.Errorf("Expected [1 1], got %v", x)
	}
}

func TestStochasticBoxNoFeasibleRegion(t *testing.T) {
	m := newModel(t, bothAtLeast(20), 1, 100, 100)
	s := &StochasticBox{
		Algorithm: Annealing,
		Optimizer: opt.NewAnnealing(20, 1),
	}

	_, err := s.Run(context.Background(), m)
	if !errors.Is(err, network.ErrNoSolution) {
		t.Fatalf("Expected ErrNoSolution, got %v", err)
	}
}

func TestStochasticBoxStopsAfterOracleFailure(t *testing.T) {
	oracle := bothAtLeast(12)
	oracle.Err = errors.New("diverged")
	m := newModel(t, oracle, 1, 100, 100)

	_, err := (&StochasticBox{
		Algorithm: DifferentialEvolution,
		Optimizer: opt.NewDifferentialEvolution(10, 10, 1),
	}).Run(context.Background(), m)
	if !errors.Is(err, network.ErrOracle) {
		t.Fatalf("Expected ErrOracle, got %v", err)
	}
	if got := m.Stats().Feasible; got != 1 {
		t.Errorf("Expected a single oracle query before giving up, got %d", got)
	}
}

func TestStochasticBoxHonoursCancellation(t *testing.T) {
	m := newModel(t, bothAtLeast(12), 1, 100, 100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&StochasticBox{
		Algorithm: DifferentialEvolution,
		Optimizer: opt.NewDifferentialEvolution(10, 10, 1),
	}).Run(ctx, m)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if got := m.Stats().Queries(); got != 0 {
		t.Errorf("Expected no oracle queries, got %d", got)
	}
}
