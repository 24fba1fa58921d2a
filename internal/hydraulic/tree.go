package hydraulic

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/cwbudde/pipesizer/internal/catalog"
	"github.com/cwbudde/pipesizer/internal/network"
	"github.com/katalvlaran/lvlath/bfs"
	"github.com/katalvlaran/lvlath/core"
)

// ErrClosed is returned by calls made after Close
var ErrClosed = errors.New("hydraulic: solver closed")

// Hazen-Williams coefficients for SI units (Q in m3/s, D in m)
const (
	hwCoefficient = 10.67
	hwFlowExp     = 1.852
	hwDiameterExp = 4.8704
)

// TreeSolver is a network.Oracle for branched networks
type TreeSolver struct {
	graph   *core.Graph
	source  Source
	order   []string          // junctions in BFS order from the source
	parent  map[string]string // junction -> upstream node
	link    map[string]int    // junction -> pipe feeding it
	elev    map[string]float64
	flow    map[string]float64 // base flow through the pipe feeding a junction, m3/s
	pipes   []Pipe
	sized   []int // component index -> pipe index
	points  []pointRef
	pattern []float64
	applied bool
	closed  bool
}

type pointRef struct {
	node string
	min  float64
}

// NewTreeSolver validates that net is a tree rooted at its source and binds
// the sized components (pipe IDs, in component order) and constraint points
// (junction IDs).
func NewTreeSolver(net Network, components []network.Component, points []network.ConstraintPoint) (*TreeSolver, error) {
	s := &TreeSolver{
		graph:   core.NewGraph(),
		source:  net.Source,
		parent:  make(map[string]string, len(net.Junctions)),
		link:    make(map[string]int, len(net.Junctions)),
		elev:    make(map[string]float64, len(net.Junctions)),
		flow:    make(map[string]float64, len(net.Junctions)),
		pipes:   append([]Pipe(nil), net.Pipes...),
		pattern: append([]float64(nil), net.Steps()...),
	}

	if err := s.graph.AddVertex(net.Source.ID); err != nil {
		return nil, fmt.Errorf("source %q: %w", net.Source.ID, err)
	}
	demand := make(map[string]float64, len(net.Junctions))
	for _, j := range net.Junctions {
		if s.graph.HasVertex(j.ID) {
			return nil, fmt.Errorf("duplicate node %q", j.ID)
		}
		if err := s.graph.AddVertex(j.ID); err != nil {
			return nil, fmt.Errorf("junction %q: %w", j.ID, err)
		}
		s.elev[j.ID] = j.Elevation
		demand[j.ID] = j.Demand / 1000 // L/s -> m3/s
	}

	byEnds := make(map[[2]string]int, len(s.pipes))
	pipeIndex := make(map[string]int, len(s.pipes))
	for i, p := range s.pipes {
		if _, dup := pipeIndex[p.ID]; dup {
			return nil, fmt.Errorf("duplicate pipe %q", p.ID)
		}
		pipeIndex[p.ID] = i
		if !s.graph.HasVertex(p.From) || !s.graph.HasVertex(p.To) {
			return nil, fmt.Errorf("pipe %q references unknown node", p.ID)
		}
		if _, err := s.graph.AddEdge(p.From, p.To, 0); err != nil {
			return nil, fmt.Errorf("pipe %q: %w", p.ID, err)
		}
		byEnds[[2]string{p.From, p.To}] = i
		byEnds[[2]string{p.To, p.From}] = i
	}

	if s.graph.EdgeCount() != s.graph.VertexCount()-1 {
		return nil, fmt.Errorf("network is not a tree: %d pipes for %d nodes", s.graph.EdgeCount(), s.graph.VertexCount())
	}

	res, err := bfs.BFS(s.graph, net.Source.ID)
	if err != nil {
		return nil, fmt.Errorf("traverse network: %w", err)
	}
	if len(res.Order) != s.graph.VertexCount() {
		return nil, fmt.Errorf("network is not connected: %d of %d nodes reachable from %s",
			len(res.Order), s.graph.VertexCount(), net.Source.ID)
	}

	for _, id := range res.Order {
		if id == net.Source.ID {
			continue
		}
		up := res.Parent[id]
		s.order = append(s.order, id)
		s.parent[id] = up
		s.link[id] = byEnds[[2]string{up, id}]
	}

	// Accumulate downstream demand leaf-first
	subtree := make(map[string]float64, len(demand))
	for i := len(s.order) - 1; i >= 0; i-- {
		id := s.order[i]
		subtree[id] += demand[id]
		s.flow[id] = subtree[id]
		if up := s.parent[id]; up != net.Source.ID {
			subtree[up] += subtree[id]
		}
	}

	for _, c := range components {
		idx, ok := pipeIndex[c.ID]
		if !ok {
			return nil, fmt.Errorf("component %q is not a pipe of the network", c.ID)
		}
		s.sized = append(s.sized, idx)
	}
	for _, p := range points {
		if _, ok := s.elev[p.ID]; !ok {
			return nil, fmt.Errorf("constraint point %q is not a junction of the network", p.ID)
		}
		s.points = append(s.points, pointRef{node: p.ID, min: p.MinPressure})
	}

	return s, nil
}

// Apply sets diameter and roughness of the sized pipes
func (s *TreeSolver) Apply(sizes []catalog.Entry) error {
	if s.closed {
		return ErrClosed
	}
	if len(sizes) != len(s.sized) {
		return fmt.Errorf("got %d sizes for %d sized pipes", len(sizes), len(s.sized))
	}
	for i, e := range sizes {
		p := &s.pipes[s.sized[i]]
		p.Diameter = e.Diameter
		p.Roughness = e.Roughness
	}
	s.applied = true
	return nil
}

// headloss returns the Hazen-Williams headloss of pipe p carrying q m3/s
func headloss(p Pipe, q float64) (float64, error) {
	if p.Diameter <= 0 || p.Roughness <= 0 {
		return 0, fmt.Errorf("pipe %q has diameter %v and roughness %v", p.ID, p.Diameter, p.Roughness)
	}
	if q == 0 {
		return 0, nil
	}
	d := p.Diameter / 1000
	hl := hwCoefficient * p.Length * math.Pow(q, hwFlowExp) /
		(math.Pow(p.Roughness, hwFlowExp) * math.Pow(d, hwDiameterExp))
	if math.IsNaN(hl) || math.IsInf(hl, 0) {
		return 0, fmt.Errorf("pipe %q: headloss diverged", p.ID)
	}
	return hl, nil
}

// step solves one time step, filling pressure (per junction) and unit
// headloss (per pipe)
func (s *TreeSolver) step(mult float64, pressure map[string]float64, unit []float64) error {
	head := make(map[string]float64, len(s.order)+1)
	head[s.source.ID] = s.source.Head
	for _, id := range s.order {
		idx := s.link[id]
		p := s.pipes[idx]
		hl, err := headloss(p, mult*s.flow[id])
		if err != nil {
			return err
		}
		head[id] = head[s.parent[id]] - hl
		pressure[id] = head[id] - s.elev[id]
		if unit != nil && p.Length > 0 {
			unit[idx] = hl / p.Length
		}
	}
	return nil
}

func (s *TreeSolver) ready() error {
	if s.closed {
		return ErrClosed
	}
	if !s.applied {
		return errors.New("hydraulic: no sizes applied")
	}
	return nil
}

// Feasible stops at the first violated constraint point
func (s *TreeSolver) Feasible() (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	pressure := make(map[string]float64, len(s.order))
	for _, mult := range s.pattern {
		if err := s.step(mult, pressure, nil); err != nil {
			return false, err
		}
		for _, pt := range s.points {
			if pt.min-pressure[pt.node] > 0 {
				return false, nil
			}
		}
	}
	return true, nil
}

// Rank orders sized components by descending worst unit headloss
func (s *TreeSolver) Rank() (bool, []int, error) {
	if err := s.ready(); err != nil {
		return false, nil, err
	}
	feasible := true
	pressure := make(map[string]float64, len(s.order))
	worst := make([]float64, len(s.pipes))
	unit := make([]float64, len(s.pipes))
	for _, mult := range s.pattern {
		if err := s.step(mult, pressure, unit); err != nil {
			return false, nil, err
		}
		for i, u := range unit {
			worst[i] = math.Max(worst[i], u)
		}
		for _, pt := range s.points {
			if pt.min-pressure[pt.node] > 0 {
				feasible = false
			}
		}
	}

	ranking := make([]int, len(s.sized))
	for i := range ranking {
		ranking[i] = i
	}
	sort.SliceStable(ranking, func(a, b int) bool {
		return worst[s.sized[ranking[a]]] > worst[s.sized[ranking[b]]]
	})
	return feasible, ranking, nil
}

// Deficits returns the worst required-minus-achieved pressure per point
func (s *TreeSolver) Deficits() ([]float64, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	deficits := make([]float64, len(s.points))
	for i := range deficits {
		deficits[i] = math.Inf(-1)
	}
	pressure := make(map[string]float64, len(s.order))
	for _, mult := range s.pattern {
		if err := s.step(mult, pressure, nil); err != nil {
			return nil, err
		}
		for i, pt := range s.points {
			deficits[i] = math.Max(deficits[i], pt.min-pressure[pt.node])
		}
	}
	return deficits, nil
}

// Pressures solves every step and returns the minimum pressure per junction
func (s *TreeSolver) Pressures() (map[string]float64, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	lowest := make(map[string]float64, len(s.order))
	pressure := make(map[string]float64, len(s.order))
	for n, mult := range s.pattern {
		if err := s.step(mult, pressure, nil); err != nil {
			return nil, err
		}
		for id, p := range pressure {
			if n == 0 || p < lowest[id] {
				lowest[id] = p
			}
		}
	}
	return lowest, nil
}

// Close releases the topology
func (s *TreeSolver) Close() error {
	if s.closed {
		return ErrClosed
	}
	s.graph.Clear()
	s.closed = true
	return nil
}
