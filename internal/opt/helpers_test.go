package opt

import "math"

// sphere has its minimum 0 at the origin
func sphere(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum
}

// shifted moves the sphere minimum to (1, 2, ...)
func shifted(x []float64) float64 {
	var sum float64
	for i, v := range x {
		d := v - float64(i+1)
		sum += d * d
	}
	return sum
}

// staircase mimics a rounded sizing objective: the cost of the rounded
// index vector, or a fixed penalty while any index is below need.
func staircase(need []int, penalty float64) func([]float64) float64 {
	return func(x []float64) float64 {
		var cost float64
		for i, v := range x {
			idx := int(math.Round(v))
			if idx < need[i] {
				return penalty
			}
			cost += float64(idx+1) * 10
		}
		return cost
	}
}

func box(dim int, lo, hi float64) ([]float64, []float64) {
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := range lower {
		lower[i], upper[i] = lo, hi
	}
	return lower, upper
}
