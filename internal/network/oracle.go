package network

import "github.com/cwbudde/pipesizer/internal/catalog"

// Oracle is the hydraulic simulator consulted by the model. Implementations
// are deterministic for a fixed set of sizes and a fixed simulated horizon.
//
// Apply sets the physical size of every sizable component, in component
// order. The three queries answer for the sizes of the latest Apply call:
//   - Feasible reports whether every constraint point meets its threshold
//     over the whole horizon. It may stop at the first violation.
//   - Rank also returns component indices ordered by descending stress
//     (worst unit headloss over the horizon).
//   - Deficits returns, per constraint point, the worst required minus
//     achieved value over the horizon. Non-positive means satisfied.
//
// Close releases the simulator. No call is valid afterwards.
type Oracle interface {
	Apply(sizes []catalog.Entry) error
	Feasible() (bool, error)
	Rank() (bool, []int, error)
	Deficits() ([]float64, error)
	Close() error
}

// PressureReporter is implemented by oracles that can report the lowest
// pressure reached at each node over the horizon
type PressureReporter interface {
	Pressures() (map[string]float64, error)
}
