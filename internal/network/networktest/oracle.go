// Package networktest provides scripted oracles for exercising the sizing
// strategies without a hydraulic simulator.
package networktest

import (
	"errors"
	"sort"

	"github.com/cwbudde/pipesizer/internal/catalog"
)

// ErrClosed is returned by every call made after Close
var ErrClosed = errors.New("oracle closed")

// Oracle evaluates caller-supplied functions of the applied diameters.
//
// Deficit is required and returns one value per constraint point (positive
// means violated). FeasibleFunc defaults to "every deficit is non-positive".
// Stress defaults to the deficit of the matching constraint point, which
// suits problems with one point per component.
type Oracle struct {
	Deficit      func(d []float64) []float64
	FeasibleFunc func(d []float64) bool
	Stress       func(d []float64) []float64

	// Err, when set, is returned by every query
	Err error

	Sizes   []catalog.Entry
	Applies int
	Queries int
	Closed  bool
	History [][]float64
}

// NewThreshold builds an oracle with one constraint point per component that
// is satisfied when the component diameter reaches mins[i].
func NewThreshold(mins ...float64) *Oracle {
	return &Oracle{
		Deficit: func(d []float64) []float64 {
			out := make([]float64, len(mins))
			for i := range mins {
				out[i] = mins[i] - d[i]
			}
			return out
		},
	}
}

// Apply records the sizes
func (o *Oracle) Apply(sizes []catalog.Entry) error {
	if o.Closed {
		return ErrClosed
	}
	o.Sizes = append(o.Sizes[:0], sizes...)
	o.Applies++
	o.History = append(o.History, o.diameters())
	return nil
}

func (o *Oracle) diameters() []float64 {
	d := make([]float64, len(o.Sizes))
	for i, s := range o.Sizes {
		d[i] = s.Diameter
	}
	return d
}

func (o *Oracle) query() error {
	if o.Closed {
		return ErrClosed
	}
	o.Queries++
	return o.Err
}

func (o *Oracle) feasible(d []float64) bool {
	if o.FeasibleFunc != nil {
		return o.FeasibleFunc(d)
	}
	for _, v := range o.Deficit(d) {
		if v > 0 {
			return false
		}
	}
	return true
}

// Feasible reports whether the applied sizes are feasible
func (o *Oracle) Feasible() (bool, error) {
	if err := o.query(); err != nil {
		return false, err
	}
	return o.feasible(o.diameters()), nil
}

// Rank orders component indices by descending stress, ties by index
func (o *Oracle) Rank() (bool, []int, error) {
	if err := o.query(); err != nil {
		return false, nil, err
	}
	d := o.diameters()
	stress := o.Deficit
	if o.Stress != nil {
		stress = o.Stress
	}
	s := stress(d)

	ranking := make([]int, len(d))
	for i := range ranking {
		ranking[i] = i
	}
	sort.SliceStable(ranking, func(a, b int) bool {
		return s[ranking[a]] > s[ranking[b]]
	})
	return o.feasible(d), ranking, nil
}

// Deficits returns the scripted deficits
func (o *Oracle) Deficits() ([]float64, error) {
	if err := o.query(); err != nil {
		return nil, err
	}
	return o.Deficit(o.diameters()), nil
}

// Close marks the oracle released
func (o *Oracle) Close() error {
	if o.Closed {
		return ErrClosed
	}
	o.Closed = true
	return nil
}
