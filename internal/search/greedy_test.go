package search

import (
	"context"
	"errors"
	"testing"

	"github.com/cwbudde/pipesizer/internal/network"
	"github.com/cwbudde/pipesizer/internal/network/networktest"
)

func TestGreedyReachesCheapestFeasible(t *testing.T) {
	m := newModel(t, bothAtLeast(12), 1, 100, 100)

	var steps []network.Assignment
	g := &Greedy{OnStep: func(x network.Assignment) { steps = append(steps, x) }}

	x, err := g.Run(context.Background(), m)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !equal(x, network.Assignment{1, 1}) {
		t.Errorf("Expected [1 1], got %v", x)
	}
	cost, _ := m.CostOf(x)
	if cost != 300 {
		t.Errorf("Expected cost 300, got %f", cost)
	}

	if err := m.SetAssignment(x); err != nil {
		t.Fatal(err)
	}
	ok, err := m.CheckFeasible()
	if err != nil || !ok {
		t.Errorf("Returned solution is not feasible (ok=%v, err=%v)", ok, err)
	}
	if len(steps) != 3 {
		t.Errorf("Expected 3 visited assignments, got %d: %v", len(steps), steps)
	}
}

func TestGreedyIndicesNeverDecrease(t *testing.T) {
	// Stress favours the component furthest below its own threshold
	m := newModel(t, networktest.NewThreshold(15, 12, 10), 3, 100, 80, 60)

	var steps []network.Assignment
	g := &Greedy{OnStep: func(x network.Assignment) { steps = append(steps, x) }}
	x, err := g.Run(context.Background(), m)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !equal(x, network.Assignment{2, 1, 0}) {
		t.Errorf("Expected [2 1 0], got %v", x)
	}

	for s := 1; s < len(steps); s++ {
		increased := 0
		for i := range steps[s] {
			if steps[s][i] < steps[s-1][i] {
				t.Fatalf("Component %d decreased between steps %d and %d", i, s-1, s)
			}
			increased += steps[s][i] - steps[s-1][i]
		}
		if increased != 1 {
			t.Errorf("Step %d changed %d units, want exactly 1", s, increased)
		}
	}
}

func TestGreedyReportsNoSolution(t *testing.T) {
	m := newModel(t, bothAtLeast(20), 1, 100, 100)

	var steps int
	g := &Greedy{OnStep: func(network.Assignment) { steps++ }}
	_, err := g.Run(context.Background(), m)
	if !errors.Is(err, network.ErrNoSolution) {
		t.Fatalf("Expected ErrNoSolution, got %v", err)
	}
	// sum(upper) increments plus the starting point
	if steps != 5 {
		t.Errorf("Expected 5 visited assignments, got %d", steps)
	}
}

func TestGreedyPropagatesOracleFailure(t *testing.T) {
	oracle := bothAtLeast(12)
	oracle.Err = errors.New("diverged")
	m := newModel(t, oracle, 1, 100, 100)

	_, err := (&Greedy{}).Run(context.Background(), m)
	if !errors.Is(err, network.ErrOracle) {
		t.Fatalf("Expected ErrOracle, got %v", err)
	}
	if errors.Is(err, network.ErrNoSolution) {
		t.Error("Oracle failure must not look like a negative result")
	}
}

func TestGreedyHonoursCancellation(t *testing.T) {
	m := newModel(t, bothAtLeast(12), 1, 100, 100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := (&Greedy{}).Run(ctx, m); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}
