package network

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/pipesizer/internal/catalog"
	"github.com/cwbudde/pipesizer/internal/metrics"
)

// Component is one pipe whose size is being chosen
type Component struct {
	ID     string  `json:"id"`
	Length float64 `json:"length"`
	Series string  `json:"series"`
}

// ConstraintPoint is a junction with a minimum pressure requirement
type ConstraintPoint struct {
	ID          string  `json:"id"`
	MinPressure float64 `json:"minPressure"`
}

// Assignment holds one catalog index per component
type Assignment []int

// Clone returns an independent copy
func (a Assignment) Clone() Assignment {
	if a == nil {
		return nil
	}
	return append(Assignment(nil), a...)
}

// Sum returns the total of all indices
func (a Assignment) Sum() int {
	total := 0
	for _, v := range a {
		total += v
	}
	return total
}

// CallStats counts oracle calls made through a model
type CallStats struct {
	Applies  int `json:"applies"`
	Feasible int `json:"feasible"`
	Ranked   int `json:"ranked"`
	Deficits int `json:"deficits"`
}

// Queries returns the number of query calls (applies excluded)
func (s CallStats) Queries() int {
	return s.Feasible + s.Ranked + s.Deficits
}

// Model owns the components, constraint points, catalogs and the current
// decision vector, and mediates every oracle call.
//
// A Model is not safe for concurrent use. Strategies must not share one.
type Model struct {
	components []Component
	points     []ConstraintPoint
	series     []catalog.Series
	upper      []int
	oracle     Oracle
	metrics    *metrics.Registry

	x       Assignment
	applied bool
	cost    float64
	costOK  bool
	stats   CallStats
}

// Option configures a Model
type Option func(*Model)

// WithMetrics records oracle calls in the given registry
func WithMetrics(r *metrics.Registry) Option {
	return func(m *Model) { m.metrics = r }
}

// NewModel builds a model at the all-minimum assignment. The oracle is not
// touched until the first check.
func NewModel(components []Component, points []ConstraintPoint, cat catalog.Catalog, oracle Oracle, opts ...Option) (*Model, error) {
	if len(components) == 0 {
		return nil, errors.New("network has no components to size")
	}
	if oracle == nil {
		return nil, errors.New("oracle cannot be nil")
	}

	m := &Model{
		components: append([]Component(nil), components...),
		points:     append([]ConstraintPoint(nil), points...),
		series:     make([]catalog.Series, len(components)),
		upper:      make([]int, len(components)),
		oracle:     oracle,
		x:          make(Assignment, len(components)),
	}

	for i, c := range components {
		s, ok := cat.Series(c.Series)
		if !ok {
			return nil, fmt.Errorf("component %s: unknown series %q", c.ID, c.Series)
		}
		if len(s) == 0 {
			return nil, fmt.Errorf("component %s: series %q is empty", c.ID, c.Series)
		}
		if c.Length < 0 {
			return nil, fmt.Errorf("component %s: negative length %v", c.ID, c.Length)
		}
		m.series[i] = s
		m.upper[i] = s.MaxIndex()
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Dimension is the number of sizable components
func (m *Model) Dimension() int {
	return len(m.components)
}

// Upper returns a copy of the per-component upper bounds.
// Lower bounds are always zero.
func (m *Model) Upper() []int {
	return append([]int(nil), m.upper...)
}

// Components returns a copy of the component list
func (m *Model) Components() []Component {
	return append([]Component(nil), m.components...)
}

// Points returns a copy of the constraint points
func (m *Model) Points() []ConstraintPoint {
	return append([]ConstraintPoint(nil), m.points...)
}

// Entry returns the catalog entry for component i at size index idx
func (m *Model) Entry(i, idx int) catalog.Entry {
	return m.series[i][idx]
}

// UnitSaving is the cost saved by reducing component i from index idx to idx-1
func (m *Model) UnitSaving(i, idx int) float64 {
	return m.series[i].UnitStep(idx) * m.components[i].Length
}

// Assignment returns a copy of the current decision vector
func (m *Model) Assignment() Assignment {
	return m.x.Clone()
}

// Validate checks x against the dimension and bounds without applying it
func (m *Model) Validate(x Assignment) error {
	if len(x) != len(m.upper) {
		return &OutOfRangeError{Index: -1, Value: len(x), Upper: len(m.upper)}
	}
	for i, v := range x {
		if v < 0 || v > m.upper[i] {
			return &OutOfRangeError{Index: i, Value: v, Upper: m.upper[i]}
		}
	}
	return nil
}

// SetAssignment validates x and applies it to the oracle. The model keeps
// its own copy, so the caller may reuse x.
func (m *Model) SetAssignment(x Assignment) error {
	if err := m.Validate(x); err != nil {
		return err
	}

	m.x = x.Clone()
	m.costOK = false
	m.applied = false
	return m.apply()
}

func (m *Model) apply() error {
	sizes := make([]catalog.Entry, len(m.x))
	for i, idx := range m.x {
		sizes[i] = m.series[i][idx]
	}

	m.stats.Applies++
	if err := m.oracle.Apply(sizes); err != nil {
		m.recordFailure("apply")
		return &OracleError{Op: "apply", Err: err}
	}
	m.applied = true
	return nil
}

func (m *Model) ensureApplied() error {
	if m.applied {
		return nil
	}
	return m.apply()
}

// Cost returns sum(length * price) for the current assignment
func (m *Model) Cost() float64 {
	if !m.costOK {
		m.cost = m.costOf(m.x)
		m.costOK = true
	}
	return m.cost
}

// CostOf returns the cost of x without touching the current assignment
func (m *Model) CostOf(x Assignment) (float64, error) {
	if err := m.Validate(x); err != nil {
		return 0, err
	}
	return m.costOf(x), nil
}

func (m *Model) costOf(x Assignment) float64 {
	var total float64
	for i, idx := range x {
		total += m.components[i].Length * m.series[i][idx].Price
	}
	return total
}

// CheckFeasible reports whether the current assignment satisfies every
// constraint point over the whole horizon
func (m *Model) CheckFeasible() (bool, error) {
	if err := m.ensureApplied(); err != nil {
		return false, err
	}

	start := time.Now()
	ok, err := m.oracle.Feasible()
	m.stats.Feasible++
	m.observe("feasible", start)
	if err != nil {
		m.recordFailure("feasible")
		return false, &OracleError{Op: "feasible", Err: err}
	}
	return ok, nil
}

// CheckRanked reports feasibility plus component indices ordered by
// descending stress
func (m *Model) CheckRanked() (bool, []int, error) {
	if err := m.ensureApplied(); err != nil {
		return false, nil, err
	}

	start := time.Now()
	ok, ranking, err := m.oracle.Rank()
	m.stats.Ranked++
	m.observe("ranked", start)
	if err != nil {
		m.recordFailure("ranked")
		return false, nil, &OracleError{Op: "ranked", Err: err}
	}
	for _, idx := range ranking {
		if idx < 0 || idx >= len(m.components) {
			m.recordFailure("ranked")
			return false, nil, &OracleError{Op: "ranked", Err: fmt.Errorf("ranking references component %d", idx)}
		}
	}
	return ok, ranking, nil
}

// CheckDeficits returns one worst-case deficit per constraint point
func (m *Model) CheckDeficits() ([]float64, error) {
	if err := m.ensureApplied(); err != nil {
		return nil, err
	}

	start := time.Now()
	deficits, err := m.oracle.Deficits()
	m.stats.Deficits++
	m.observe("deficits", start)
	if err != nil {
		m.recordFailure("deficits")
		return nil, &OracleError{Op: "deficits", Err: err}
	}
	if len(deficits) != len(m.points) {
		m.recordFailure("deficits")
		return nil, &OracleError{
			Op:  "deficits",
			Err: fmt.Errorf("got %d deficits for %d constraint points", len(deficits), len(m.points)),
		}
	}
	return deficits, nil
}

// MinPressures returns the lowest pressure per node for the current
// assignment. ok is false when the oracle does not report pressures.
func (m *Model) MinPressures() (pressures map[string]float64, ok bool, err error) {
	pr, ok := m.oracle.(PressureReporter)
	if !ok {
		return nil, false, nil
	}
	if err := m.ensureApplied(); err != nil {
		return nil, true, err
	}
	pressures, err = pr.Pressures()
	if err != nil {
		m.recordFailure("pressures")
		return nil, true, &OracleError{Op: "pressures", Err: err}
	}
	return pressures, true, nil
}

// Stats returns the oracle call counters accumulated so far
func (m *Model) Stats() CallStats {
	return m.stats
}

// Close releases the oracle
func (m *Model) Close() error {
	slog.Debug("Releasing oracle", "applies", m.stats.Applies, "queries", m.stats.Queries())
	if err := m.oracle.Close(); err != nil {
		return &OracleError{Op: "close", Err: err}
	}
	return nil
}

func (m *Model) observe(mode string, start time.Time) {
	if m.metrics == nil {
		return
	}
	m.metrics.OracleCalls.WithLabelValues(mode).Inc()
	m.metrics.OracleCallDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
}

func (m *Model) recordFailure(mode string) {
	if m.metrics == nil {
		return
	}
	m.metrics.OracleFailures.WithLabelValues(mode).Inc()
}
