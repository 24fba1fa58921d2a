package search

import (
	"context"
	"log/slog"

	"github.com/cwbudde/pipesizer/internal/network"
)

// Reduction is a multiset of single-step size reductions, listed in
// non-decreasing component order
type Reduction struct {
	Indices []int   `json:"indices"`
	Savings float64 `json:"savings"`
}

// Apply returns a copy of x with every reduction applied
func (r Reduction) Apply(x network.Assignment) network.Assignment {
	out := x.Clone()
	for _, i := range r.Indices {
		out[i]--
	}
	return out
}

// Polish searches for the largest-saving set of one-step reductions that
// keeps the assignment feasible at every step. Reductions are tried in
// non-decreasing component order, so each combination is visited once;
// recursion depth is bounded by the sum of the starting indices.
type Polish struct {
	// MaxChecks caps the feasibility checks; zero means unlimited
	MaxChecks int

	checks    int
	exhausted bool
}

// Checks returns the feasibility checks made by the last Refine
func (p *Polish) Checks() int {
	return p.checks
}

// Exhausted reports whether the last Refine hit MaxChecks
func (p *Polish) Exhausted() bool {
	return p.exhausted
}

// Refine explores reductions of a feasible solution. It returns the best
// reduction set found (possibly empty). On cancellation the best set found
// so far is returned together with ctx.Err().
func (p *Polish) Refine(ctx context.Context, m *network.Model, solution network.Assignment) (Reduction, error) {
	if err := m.Validate(solution); err != nil {
		return Reduction{}, err
	}
	p.checks = 0
	p.exhausted = false

	best := Reduction{}
	candidate := solution.Clone()
	applied := make([]int, 0, solution.Sum())

	var explore func(start int, savings float64) error
	explore = func(start int, savings float64) error {
		progressed := false
		for i := start; i < len(candidate); i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if p.MaxChecks > 0 && p.checks >= p.MaxChecks {
				p.exhausted = true
				break
			}
			if candidate[i] == 0 {
				continue
			}

			candidate[i]--
			if err := m.SetAssignment(candidate); err != nil {
				return err
			}
			ok, err := m.CheckFeasible()
			p.checks++
			if err != nil {
				return err
			}
			if ok {
				progressed = true
				applied = append(applied, i)
				err := explore(i, savings+m.UnitSaving(i, candidate[i]+1))
				applied = applied[:len(applied)-1]
				if err != nil {
					candidate[i]++
					return err
				}
			}
			candidate[i]++
		}

		if !progressed && savings > best.Savings {
			best = Reduction{
				Indices: append([]int(nil), applied...),
				Savings: savings,
			}
			slog.Debug("Polish found a better reduction", "reductions", len(applied), "savings", savings)
		}
		return nil
	}

	err := explore(0, 0)
	if best.Indices == nil {
		best.Indices = []int{}
	}
	slog.Info("Polish complete",
		"checks", p.checks,
		"reductions", len(best.Indices),
		"savings", best.Savings,
		"exhausted", p.exhausted,
	)
	return best, err
}
