package hydraulic

import (
	"testing"

	"github.com/cwbudde/pipesizer/internal/catalog"
	"github.com/cwbudde/pipesizer/internal/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoPipeNetwork is R --P1(1000 m)--> A --P2(500 m)--> B
func twoPipeNetwork() Network {
	return Network{
		Source: Source{ID: "R", Head: 50},
		Junctions: []Junction{
			{ID: "A", Elevation: 0, Demand: 10},
			{ID: "B", Elevation: 0, Demand: 5},
		},
		Pipes: []Pipe{
			{ID: "P1", From: "R", To: "A", Length: 1000},
			{ID: "P2", From: "A", To: "B", Length: 500},
		},
	}
}

var (
	twoComponents = []network.Component{
		{ID: "P1", Length: 1000, Series: "S"},
		{ID: "P2", Length: 500, Series: "S"},
	}
	twoPoints = []network.ConstraintPoint{
		{ID: "A", MinPressure: 20},
		{ID: "B", MinPressure: 20},
	}
)

func sizes(d ...float64) []catalog.Entry {
	out := make([]catalog.Entry, len(d))
	for i, v := range d {
		out[i] = catalog.Entry{Diameter: v, Roughness: 140}
	}
	return out
}

func TestTreeSolverFeasibility(t *testing.T) {
	s, err := NewTreeSolver(twoPipeNetwork(), twoComponents, twoPoints)
	require.NoError(t, err)

	require.NoError(t, s.Apply(sizes(100, 100)))
	ok, err := s.Feasible()
	require.NoError(t, err)
	assert.False(t, ok, "100/100 mm loses about 35 m on P1")

	require.NoError(t, s.Apply(sizes(150, 100)))
	ok, err = s.Feasible()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTreeSolverPressuresDecreaseDownstream(t *testing.T) {
	s, err := NewTreeSolver(twoPipeNetwork(), twoComponents, twoPoints)
	require.NoError(t, err)
	require.NoError(t, s.Apply(sizes(150, 100)))

	p, err := s.Pressures()
	require.NoError(t, err)
	assert.InDelta(t, 45.1, p["A"], 0.5)
	assert.Less(t, p["B"], p["A"])
	assert.Greater(t, p["A"], 0.0)
}

func TestTreeSolverRank(t *testing.T) {
	s, err := NewTreeSolver(twoPipeNetwork(), twoComponents, twoPoints)
	require.NoError(t, err)
	require.NoError(t, s.Apply(sizes(100, 100)))

	ok, ranking, err := s.Rank()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []int{0, 1}, ranking, "P1 carries both demands")

	// Enlarging P1 far enough moves the stress to P2
	require.NoError(t, s.Apply(sizes(400, 50)))
	_, ranking, err = s.Rank()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, ranking)
}

func TestTreeSolverDeficitsUseWorstStep(t *testing.T) {
	flat, err := NewTreeSolver(twoPipeNetwork(), twoComponents, twoPoints)
	require.NoError(t, err)
	require.NoError(t, flat.Apply(sizes(150, 100)))
	base, err := flat.Deficits()
	require.NoError(t, err)

	net := twoPipeNetwork()
	net.Pattern = []float64{1, 2, 0.5}
	peaked, err := NewTreeSolver(net, twoComponents, twoPoints)
	require.NoError(t, err)
	require.NoError(t, peaked.Apply(sizes(150, 100)))
	worst, err := peaked.Deficits()
	require.NoError(t, err)

	require.Len(t, worst, 2)
	for i := range worst {
		assert.Greater(t, worst[i], base[i])
		assert.LessOrEqual(t, worst[i], 0.0, "still feasible at peak")
	}

	ok, err := peaked.Feasible()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTreeSolverDeficitsMatchFeasible(t *testing.T) {
	s, err := NewTreeSolver(twoPipeNetwork(), twoComponents, twoPoints)
	require.NoError(t, err)

	for _, d := range [][]float64{{100, 100}, {150, 100}, {125, 80}, {200, 200}} {
		require.NoError(t, s.Apply(sizes(d...)))
		ok, err := s.Feasible()
		require.NoError(t, err)
		deficits, err := s.Deficits()
		require.NoError(t, err)

		worst := deficits[0]
		for _, v := range deficits {
			if v > worst {
				worst = v
			}
		}
		assert.Equal(t, ok, worst <= 0, "sizes %v", d)
	}
}

func TestTreeSolverRejectsBadTopology(t *testing.T) {
	loop := twoPipeNetwork()
	loop.Pipes = append(loop.Pipes, Pipe{ID: "P3", From: "B", To: "R", Length: 10})
	_, err := NewTreeSolver(loop, twoComponents, twoPoints)
	assert.Error(t, err)

	island := twoPipeNetwork()
	island.Junctions = append(island.Junctions, Junction{ID: "C"}, Junction{ID: "D"})
	island.Pipes = append(island.Pipes, Pipe{ID: "P3", From: "C", To: "D", Length: 10})
	_, err = NewTreeSolver(island, twoComponents, twoPoints)
	assert.Error(t, err)

	dangling := twoPipeNetwork()
	dangling.Pipes[1].To = "X"
	_, err = NewTreeSolver(dangling, twoComponents, twoPoints)
	assert.Error(t, err)
}

func TestTreeSolverRejectsUnknownBindings(t *testing.T) {
	_, err := NewTreeSolver(twoPipeNetwork(), []network.Component{{ID: "P9"}}, twoPoints)
	assert.Error(t, err)

	_, err = NewTreeSolver(twoPipeNetwork(), twoComponents, []network.ConstraintPoint{{ID: "R"}})
	assert.Error(t, err, "the source is not a junction")
}

func TestTreeSolverFailures(t *testing.T) {
	s, err := NewTreeSolver(twoPipeNetwork(), twoComponents, twoPoints)
	require.NoError(t, err)

	_, err = s.Feasible()
	assert.Error(t, err, "query before apply")

	assert.Error(t, s.Apply(sizes(100)), "wrong number of sizes")

	require.NoError(t, s.Apply(sizes(0, 100)))
	_, err = s.Feasible()
	assert.Error(t, err, "zero diameter")

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Apply(sizes(100, 100)), ErrClosed)
	assert.ErrorIs(t, s.Close(), ErrClosed)
}

func TestTreeSolverUnsizedPipesKeepDefinition(t *testing.T) {
	net := twoPipeNetwork()
	net.Pipes[0].Diameter = 150
	net.Pipes[0].Roughness = 140

	s, err := NewTreeSolver(net, twoComponents[1:], twoPoints)
	require.NoError(t, err)
	require.NoError(t, s.Apply(sizes(100)))

	ok, err := s.Feasible()
	require.NoError(t, err)
	assert.True(t, ok)

	ok, ranking, err := s.Rank()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []int{0}, ranking)
}
