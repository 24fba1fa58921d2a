package search

import (
	"log/slog"
	"math"
)

// stagnation tracks the global best feasible cost across trials and counts
// consecutive trials whose feasible best failed to beat it. Trials without
// any feasible candidate leave the counter untouched.
type stagnation struct {
	limit    int
	best     float64
	found    bool
	stale    int
	improved bool
}

func newStagnation(limit int) *stagnation {
	return &stagnation{limit: limit, best: math.Inf(1)}
}

// Update records the trial best (feasible=false when the trial had none) and
// reports whether the stagnation cap is reached
func (s *stagnation) Update(cost float64, feasible bool) bool {
	s.improved = false
	if !feasible {
		return s.stale >= s.limit
	}
	if !s.found || cost < s.best {
		s.best = cost
		s.found = true
		s.stale = 0
		s.improved = true
		slog.Debug("Cost improvement detected", "cost", cost)
		return false
	}

	s.stale++
	slog.Debug("No cost improvement",
		"cost", cost,
		"best_cost", s.best,
		"stale_count", s.stale,
		"patience", s.limit,
	)
	return s.stale >= s.limit
}

// Improved reports whether the last Update set a new best
func (s *stagnation) Improved() bool {
	return s.improved
}

// Stale returns the current number of trials without improvement
func (s *stagnation) Stale() int {
	return s.stale
}
