package solver

import (
	"time"

	"github.com/cwbudde/pipesizer/internal/config"
	"github.com/cwbudde/pipesizer/internal/network"
	"github.com/cwbudde/pipesizer/internal/search"
)

// LineItem is the physical size chosen for one component
type LineItem struct {
	ID        string  `json:"id"`
	Series    string  `json:"series"`
	Diameter  float64 `json:"diameter"`
	Roughness float64 `json:"roughness"`
	Price     float64 `json:"price"`
	Length    float64 `json:"length"`
	Amount    float64 `json:"amount"`
}

// NodePressure is the lowest pressure reached at a constraint point over
// the horizon, next to its required minimum
type NodePressure struct {
	Node     string  `json:"node"`
	Min      float64 `json:"min"`
	Required float64 `json:"required"`
}

// Result is the outcome of one sizing run. Found is false when the
// strategy reported no feasible assignment; the remaining solution fields
// are then empty.
type Result struct {
	RunID     string           `json:"runId"`
	Problem   string           `json:"problem"`
	Algorithm search.Algorithm `json:"algorithm"`
	Found     bool             `json:"found"`

	Solution      network.Assignment `json:"solution,omitempty"`
	Cost          float64            `json:"cost"`
	PrePolishCost float64            `json:"prePolishCost,omitempty"`
	Polished      bool               `json:"polished"`
	Reduction     *search.Reduction  `json:"reduction,omitempty"`
	Lines         []LineItem         `json:"lines,omitempty"`
	Pressures     []NodePressure     `json:"pressures,omitempty"`

	StopReason search.StopReason `json:"stopReason,omitempty"`
	Trials     int               `json:"trials,omitempty"`
	Stats      network.CallStats `json:"stats"`
	Elapsed    time.Duration     `json:"elapsed"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// Savings returns the cost removed by the polish refiner
func (r *Result) Savings() float64 {
	if r.Reduction == nil {
		return 0
	}
	return r.Reduction.Savings
}

// Sizings converts the line items for the solved-network export
func (r *Result) Sizings() []config.Sizing {
	out := make([]config.Sizing, len(r.Lines))
	for i, l := range r.Lines {
		out[i] = config.Sizing{ID: l.ID, Diameter: l.Diameter, Roughness: l.Roughness}
	}
	return out
}

// SolvedLabel is the algorithm abbreviation used in exported file names
func (r *Result) SolvedLabel() string {
	return r.Algorithm.Short()
}

// nodePressures reads the lowest pressure at every constraint point. Oracles
// that cannot report pressures yield nil.
func nodePressures(m *network.Model) ([]NodePressure, error) {
	lowest, ok, err := m.MinPressures()
	if !ok || err != nil {
		return nil, err
	}
	points := m.Points()
	out := make([]NodePressure, len(points))
	for i, p := range points {
		out[i] = NodePressure{Node: p.ID, Min: lowest[p.ID], Required: p.MinPressure}
	}
	return out, nil
}

// lineItems translates an assignment back into physical sizes
func lineItems(m *network.Model, x network.Assignment) []LineItem {
	components := m.Components()
	lines := make([]LineItem, len(x))
	for i, idx := range x {
		e := m.Entry(i, idx)
		lines[i] = LineItem{
			ID:        components[i].ID,
			Series:    components[i].Series,
			Diameter:  e.Diameter,
			Roughness: e.Roughness,
			Price:     e.Price,
			Length:    components[i].Length,
			Amount:    e.Price * components[i].Length,
		}
	}
	return lines
}
