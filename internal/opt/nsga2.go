package opt

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// MultiObjective is an integer box-constrained problem with several
// objectives, all minimized
type MultiObjective interface {
	// Bounds returns the inclusive integer box
	Bounds() (lower, upper []int)
	// Objectives evaluates x; an error aborts the evolution
	Objectives(x []int) ([]float64, error)
}

// NSGA2Config holds the variation parameters
type NSGA2Config struct {
	PopulationSize       int
	CrossoverProbability float64
	MutationProbability  float64 // per gene; 0 means 1/dim
	Seed                 int64
}

// DefaultNSGA2Config returns the configuration used by the evolutionary search
func DefaultNSGA2Config() NSGA2Config {
	return NSGA2Config{
		PopulationSize:       100,
		CrossoverProbability: 0.95,
	}
}

// Individual is one member of a population
type Individual struct {
	X        []int
	F        []float64
	Rank     int
	Crowding float64
}

// Population is an ordered set of individuals
type Population []*Individual

// NSGA2 is an elitist non-dominated sorting genetic algorithm on integer
// vectors. The random stream is owned by the instance, so a fixed seed gives
// a reproducible sequence of generations.
type NSGA2 struct {
	cfg     NSGA2Config
	problem MultiObjective
	lower   []int
	upper   []int
	rng     *rand.Rand
}

// MinNSGA2Population is the smallest population NSGA2 accepts
const MinNSGA2Population = 4

// NewNSGA2 creates an optimizer for problem
func NewNSGA2(cfg NSGA2Config, problem MultiObjective) (*NSGA2, error) {
	if cfg.PopulationSize < MinNSGA2Population {
		return nil, fmt.Errorf("nsga2: population size must be at least %d", MinNSGA2Population)
	}
	if cfg.CrossoverProbability < 0 || cfg.CrossoverProbability > 1 {
		return nil, errors.New("nsga2: crossover probability must be in [0, 1]")
	}
	lower, upper := problem.Bounds()
	if len(lower) != len(upper) || len(lower) == 0 {
		return nil, errors.New("nsga2: bounds must be non-empty and of equal length")
	}
	for i := range lower {
		if lower[i] > upper[i] {
			return nil, errors.New("nsga2: lower bound above upper bound")
		}
	}
	if cfg.MutationProbability <= 0 {
		cfg.MutationProbability = 1 / float64(len(lower))
	}
	return &NSGA2{
		cfg:     cfg,
		problem: problem,
		lower:   lower,
		upper:   upper,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Initialize draws and evaluates a uniformly random population
func (n *NSGA2) Initialize() (Population, error) {
	pop := make(Population, n.cfg.PopulationSize)
	for i := range pop {
		x := make([]int, len(n.lower))
		for j := range x {
			x[j] = n.lower[j] + n.rng.Intn(n.upper[j]-n.lower[j]+1)
		}
		f, err := n.problem.Objectives(x)
		if err != nil {
			return nil, err
		}
		pop[i] = &Individual{X: x, F: f}
	}
	n.assignRanks(pop)
	return pop, nil
}

// Evolve runs the given number of generations starting from pop and returns
// the surviving population
func (n *NSGA2) Evolve(pop Population, generations int) (Population, error) {
	if len(pop) == 0 {
		return nil, errors.New("nsga2: empty population")
	}
	for g := 0; g < generations; g++ {
		offspring := make(Population, 0, len(pop))
		for len(offspring) < len(pop) {
			p1 := n.tournament(pop)
			p2 := n.tournament(pop)
			c1, c2 := n.crossover(p1.X, p2.X)
			for _, c := range [][]int{c1, c2} {
				if len(offspring) == len(pop) {
					break
				}
				n.mutate(c)
				f, err := n.problem.Objectives(c)
				if err != nil {
					return nil, err
				}
				offspring = append(offspring, &Individual{X: c, F: f})
			}
		}

		merged := append(append(Population{}, pop...), offspring...)
		pop = n.survivors(merged, len(pop))
	}
	return pop, nil
}

// tournament picks the better of two random members by crowded comparison
func (n *NSGA2) tournament(pop Population) *Individual {
	a := pop[n.rng.Intn(len(pop))]
	b := pop[n.rng.Intn(len(pop))]
	if crowdedLess(b, a) {
		return b
	}
	return a
}

// crossover applies uniform crossover with the configured probability
func (n *NSGA2) crossover(a, b []int) ([]int, []int) {
	c1 := append([]int(nil), a...)
	c2 := append([]int(nil), b...)
	if n.rng.Float64() >= n.cfg.CrossoverProbability {
		return c1, c2
	}
	for j := range c1 {
		if n.rng.Intn(2) == 1 {
			c1[j], c2[j] = c2[j], c1[j]
		}
	}
	return c1, c2
}

// mutate either nudges a gene by one catalog step or resets it uniformly
func (n *NSGA2) mutate(x []int) {
	for j := range x {
		if n.rng.Float64() >= n.cfg.MutationProbability {
			continue
		}
		if n.rng.Intn(2) == 0 {
			step := 1
			if n.rng.Intn(2) == 0 {
				step = -1
			}
			x[j] += step
			if x[j] < n.lower[j] {
				x[j] = n.lower[j]
			}
			if x[j] > n.upper[j] {
				x[j] = n.upper[j]
			}
		} else {
			x[j] = n.lower[j] + n.rng.Intn(n.upper[j]-n.lower[j]+1)
		}
	}
}

// survivors keeps size members, filling by front and breaking the last front
// by crowding distance
func (n *NSGA2) survivors(pop Population, size int) Population {
	fronts := NonDominatedSort(pop)
	next := make(Population, 0, size)
	for _, front := range fronts {
		CrowdingDistance(pop, front)
		if len(next)+len(front) <= size {
			for _, i := range front {
				next = append(next, pop[i])
			}
			continue
		}
		last := append([]int(nil), front...)
		sort.SliceStable(last, func(a, b int) bool {
			return pop[last[a]].Crowding > pop[last[b]].Crowding
		})
		for _, i := range last[:size-len(next)] {
			next = append(next, pop[i])
		}
		break
	}
	return next
}

func (n *NSGA2) assignRanks(pop Population) {
	for _, front := range NonDominatedSort(pop) {
		CrowdingDistance(pop, front)
	}
}

// Dominates reports whether a is no worse than b everywhere and better somewhere
func Dominates(a, b []float64) bool {
	better := false
	for i := range a {
		if a[i] > b[i] {
			return false
		}
		if a[i] < b[i] {
			better = true
		}
	}
	return better
}

// NonDominatedSort partitions pop into fronts of indices and sets each
// member's Rank (0 = first front)
func NonDominatedSort(pop Population) [][]int {
	dominatedBy := make([][]int, len(pop))
	count := make([]int, len(pop))
	var fronts [][]int
	var current []int

	for p := range pop {
		for q := range pop {
			if p == q {
				continue
			}
			if Dominates(pop[p].F, pop[q].F) {
				dominatedBy[p] = append(dominatedBy[p], q)
			} else if Dominates(pop[q].F, pop[p].F) {
				count[p]++
			}
		}
		if count[p] == 0 {
			pop[p].Rank = 0
			current = append(current, p)
		}
	}

	for rank := 0; len(current) > 0; rank++ {
		fronts = append(fronts, current)
		var next []int
		for _, p := range current {
			for _, q := range dominatedBy[p] {
				count[q]--
				if count[q] == 0 {
					pop[q].Rank = rank + 1
					next = append(next, q)
				}
			}
		}
		sort.Ints(next)
		current = next
	}
	return fronts
}

// CrowdingDistance sets Crowding for the members of one front. Boundary
// members get +Inf.
func CrowdingDistance(pop Population, front []int) {
	for _, i := range front {
		pop[i].Crowding = 0
	}
	if len(front) == 0 {
		return
	}
	objectives := len(pop[front[0]].F)
	sorted := append([]int(nil), front...)
	for m := 0; m < objectives; m++ {
		sort.SliceStable(sorted, func(a, b int) bool {
			return pop[sorted[a]].F[m] < pop[sorted[b]].F[m]
		})
		lo := pop[sorted[0]].F[m]
		hi := pop[sorted[len(sorted)-1]].F[m]
		pop[sorted[0]].Crowding = math.Inf(1)
		pop[sorted[len(sorted)-1]].Crowding = math.Inf(1)
		if hi == lo {
			continue
		}
		for k := 1; k < len(sorted)-1; k++ {
			gap := pop[sorted[k+1]].F[m] - pop[sorted[k-1]].F[m]
			pop[sorted[k]].Crowding += gap / (hi - lo)
		}
	}
}

// crowdedLess prefers lower rank, then larger crowding distance
func crowdedLess(a, b *Individual) bool {
	if a.Rank != b.Rank {
		return a.Rank < b.Rank
	}
	return a.Crowding > b.Crowding
}
