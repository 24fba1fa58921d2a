package search

import (
	"context"
	"log/slog"

	"github.com/cwbudde/pipesizer/internal/network"
)

// Greedy climbs from the all-minimum assignment, each step enlarging the
// most stressed component that still has a larger size. Every index is
// non-decreasing across steps, so the climb ends after at most sum(upper)
// steps.
type Greedy struct {
	// OnStep, if set, sees every assignment the climb visits
	OnStep func(network.Assignment)
}

// Name returns GreedyAscent
func (g *Greedy) Name() Algorithm {
	return GreedyAscent
}

// Run performs the climb
func (g *Greedy) Run(ctx context.Context, m *network.Model) (network.Assignment, error) {
	upper := m.Upper()
	x := make(network.Assignment, m.Dimension())

	for step := 0; ; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := m.SetAssignment(x); err != nil {
			return nil, err
		}
		if g.OnStep != nil {
			g.OnStep(x.Clone())
		}

		ok, ranking, err := m.CheckRanked()
		if err != nil {
			return nil, err
		}
		if ok {
			slog.Info("Greedy ascent reached a feasible assignment", "steps", step, "cost", m.Cost())
			return x.Clone(), nil
		}

		next := -1
		for _, i := range ranking {
			if x[i] < upper[i] {
				next = i
				break
			}
		}
		if next < 0 {
			slog.Info("Greedy ascent exhausted the catalog", "steps", step)
			return nil, &network.InfeasibleError{Strategy: string(GreedyAscent)}
		}

		x[next]++
		slog.Debug("Greedy step", "step", step, "component", next, "index", x[next])
	}
}
