package search

import (
	"math"
	"testing"

	"github.com/cwbudde/pipesizer/internal/catalog"
	"github.com/cwbudde/pipesizer/internal/network"
	"github.com/cwbudde/pipesizer/internal/network/networktest"
)

// series S: d=10/12/15 at 1.0/1.5/2.0 per metre
func testCatalog() catalog.Catalog {
	return catalog.Catalog{
		"S": {
			{Diameter: 10, Roughness: 140, Price: 1.0},
			{Diameter: 12, Roughness: 140, Price: 1.5},
			{Diameter: 15, Roughness: 140, Price: 2.0},
		},
	}
}

func newModel(t *testing.T, oracle network.Oracle, points int, lengths ...float64) *network.Model {
	t.Helper()

	components := make([]network.Component, len(lengths))
	for i, l := range lengths {
		components[i] = network.Component{ID: string(rune('A' + i)), Length: l, Series: "S"}
	}
	pts := make([]network.ConstraintPoint, points)
	for i := range pts {
		pts[i] = network.ConstraintPoint{ID: string(rune('N' + i)), MinPressure: 20}
	}

	m, err := network.NewModel(components, pts, testCatalog(), oracle)
	if err != nil {
		t.Fatalf("NewModel failed: %v", err)
	}
	return m
}

// bothAtLeast has one constraint point that is satisfied only when every
// component reaches diameter min. Stress is per component.
func bothAtLeast(min float64) *networktest.Oracle {
	return &networktest.Oracle{
		Deficit: func(d []float64) []float64 {
			worst := math.Inf(-1)
			for _, v := range d {
				worst = math.Max(worst, min-v)
			}
			return []float64{worst}
		},
		Stress: func(d []float64) []float64 {
			out := make([]float64, len(d))
			for i, v := range d {
				out[i] = min - v
			}
			return out
		},
	}
}

func equal(a, b network.Assignment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
