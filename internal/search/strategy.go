// Package search implements the strategies that explore the discrete sizing
// space of a network.Model, and the polish refiner that tightens a feasible
// assignment afterwards.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/cwbudde/pipesizer/internal/network"
	"github.com/cwbudde/pipesizer/internal/opt"
)

// Penalty is returned for infeasible candidates by the single-objective
// relaxations. It dominates any real network cost.
const Penalty = 1e24

// Algorithm identifies a search strategy
type Algorithm string

const (
	GreedyAscent          Algorithm = "greedy-ascent"
	DifferentialEvolution Algorithm = "differential-evolution"
	Annealing             Algorithm = "annealing"
	EvolutionaryMulti     Algorithm = "evolutionary-multi-objective"
	Mayfly                Algorithm = "mayfly"
)

// Algorithms lists every supported algorithm
var Algorithms = []Algorithm{GreedyAscent, DifferentialEvolution, Annealing, EvolutionaryMulti, Mayfly}

var aliases = map[string]Algorithm{
	"GD":    GreedyAscent,
	"DE":    DifferentialEvolution,
	"DA":    Annealing,
	"NSGA2": EvolutionaryMulti,
	"MF":    Mayfly,
}

// ParseAlgorithm accepts a canonical name or one of the short forms
// GD, DE, DA, NSGA2 and MF (case-insensitive)
func ParseAlgorithm(s string) (Algorithm, error) {
	if a, ok := aliases[strings.ToUpper(s)]; ok {
		return a, nil
	}
	for _, a := range Algorithms {
		if strings.EqualFold(string(a), s) {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown algorithm %q", s)
}

// Short returns the abbreviation used in exported file names
func (a Algorithm) Short() string {
	for short, full := range aliases {
		if full == a {
			return short
		}
	}
	return string(a)
}

// Strategy searches for a feasible low-cost assignment. Run returns an
// independent copy of the best assignment, or an error matching
// network.ErrNoSolution when none was found. Oracle failures are returned
// unchanged.
type Strategy interface {
	Name() Algorithm
	Run(ctx context.Context, m *network.Model) (network.Assignment, error)
}

// Config selects and tunes a strategy
type Config struct {
	Algorithm  Algorithm
	Seed       int64
	Evolution  EvolutionConfig
	Stochastic StochasticConfig
	// OnTrial receives evolutionary trial reports
	OnTrial func(TrialReport)
}

// StochasticConfig tunes the continuous relaxations
type StochasticConfig struct {
	Iterations     int
	PopulationSize int
}

// DefaultStochasticConfig returns the defaults used by the CLI
func DefaultStochasticConfig() StochasticConfig {
	return StochasticConfig{
		Iterations:     200,
		PopulationSize: 30,
	}
}

// New builds the strategy named by cfg.Algorithm
func New(cfg Config) (Strategy, error) {
	sc := cfg.Stochastic
	if sc.Iterations <= 0 {
		sc.Iterations = DefaultStochasticConfig().Iterations
	}
	if sc.PopulationSize <= 0 {
		sc.PopulationSize = DefaultStochasticConfig().PopulationSize
	}

	switch cfg.Algorithm {
	case GreedyAscent:
		return &Greedy{}, nil
	case DifferentialEvolution:
		return &StochasticBox{
			Algorithm: DifferentialEvolution,
			Optimizer: opt.NewDifferentialEvolution(sc.Iterations, sc.PopulationSize, cfg.Seed),
		}, nil
	case Annealing:
		return &StochasticBox{
			Algorithm: Annealing,
			Optimizer: opt.NewAnnealing(sc.Iterations, cfg.Seed),
		}, nil
	case Mayfly:
		return &StochasticBox{
			Algorithm: Mayfly,
			Optimizer: opt.NewMayfly(sc.Iterations, sc.PopulationSize, cfg.Seed),
		}, nil
	case EvolutionaryMulti:
		ec := cfg.Evolution
		ec.Seed = cfg.Seed
		return &Evolutionary{Config: ec, Observer: cfg.OnTrial}, nil
	default:
		return nil, fmt.Errorf("unknown algorithm %q", cfg.Algorithm)
	}
}
