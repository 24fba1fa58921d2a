package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/pipesizer/internal/network"
	"github.com/cwbudde/pipesizer/internal/opt"
)

// EvolutionConfig bounds the evolutionary search
type EvolutionConfig struct {
	GenerationsPerTrial int
	PopulationSize      int
	MaxTrials           int
	MaxStagnation       int
	MaxTime             time.Duration
	Seed                int64
}

// DefaultEvolutionConfig returns 100 generations per trial, a population of
// 100, at most 250 trials, 10 stagnant trials or 600 seconds
func DefaultEvolutionConfig() EvolutionConfig {
	return EvolutionConfig{
		GenerationsPerTrial: 100,
		PopulationSize:      100,
		MaxTrials:           250,
		MaxStagnation:       10,
		MaxTime:             600 * time.Second,
	}
}

func (c EvolutionConfig) withDefaults() EvolutionConfig {
	d := DefaultEvolutionConfig()
	if c.GenerationsPerTrial <= 0 {
		c.GenerationsPerTrial = d.GenerationsPerTrial
	}
	if c.PopulationSize <= 0 {
		c.PopulationSize = d.PopulationSize
	}
	if c.PopulationSize < opt.MinNSGA2Population {
		c.PopulationSize = opt.MinNSGA2Population
	}
	if c.MaxTrials <= 0 {
		c.MaxTrials = d.MaxTrials
	}
	if c.MaxStagnation <= 0 {
		c.MaxStagnation = d.MaxStagnation
	}
	if c.MaxTime <= 0 {
		c.MaxTime = d.MaxTime
	}
	return c
}

// StopReason records which condition ended an evolutionary search
type StopReason string

const (
	StopTime       StopReason = "time"
	StopTrials     StopReason = "trials"
	StopStagnation StopReason = "stagnation"
	StopCancelled  StopReason = "cancelled"
)

// TrialReport summarizes one trial
type TrialReport struct {
	Trial         int           `json:"trial"`
	Generations   int           `json:"generations"`
	TrialFeasible bool          `json:"trialFeasible"`
	TrialCost     float64       `json:"trialCost,omitempty"`
	Found         bool          `json:"found"`
	BestCost      float64       `json:"bestCost,omitempty"`
	BestViolation float64       `json:"bestViolation"`
	Improved      bool          `json:"improved"`
	Stagnation    int           `json:"stagnation"`
	Elapsed       time.Duration `json:"elapsed"`
}

// PopulationOptimizer is the multi-objective engine driven in trials
type PopulationOptimizer interface {
	Initialize() (opt.Population, error)
	Evolve(pop opt.Population, generations int) (opt.Population, error)
}

// PopulationFactory builds the engine for one run
type PopulationFactory func(cfg opt.NSGA2Config, problem opt.MultiObjective) (PopulationOptimizer, error)

func newNSGA2(cfg opt.NSGA2Config, problem opt.MultiObjective) (PopulationOptimizer, error) {
	return opt.NewNSGA2(cfg, problem)
}

// Evolutionary minimizes (cost, worst violation) in batches of generations.
// After every trial it keeps the cheapest feasible member seen so far and
// stops on time, trial count or stagnation. Among equal-cost feasible
// members the first one in population order wins, and a later trial must be
// strictly cheaper to replace the global best.
type Evolutionary struct {
	Config EvolutionConfig
	// Observer, if set, receives a report after every trial
	Observer func(TrialReport)
	// Factory defaults to the NSGA-II engine
	Factory PopulationFactory
	// Now defaults to time.Now
	Now func() time.Time

	stop   StopReason
	trials int
}

// Name returns EvolutionaryMulti
func (e *Evolutionary) Name() Algorithm {
	return EvolutionaryMulti
}

// Stopped returns the reason the last run ended
func (e *Evolutionary) Stopped() StopReason {
	return e.stop
}

// Trials returns the number of trials the last run completed
func (e *Evolutionary) Trials() int {
	return e.trials
}

// fitness adapts a model to opt.MultiObjective. Evaluations are cached by
// assignment because the population revisits members across generations.
type fitness struct {
	m     *network.Model
	cache map[string][]float64
}

func (f *fitness) Bounds() ([]int, []int) {
	return make([]int, f.m.Dimension()), f.m.Upper()
}

func (f *fitness) Objectives(x []int) ([]float64, error) {
	key := fmt.Sprint(x)
	if v, ok := f.cache[key]; ok {
		return append([]float64(nil), v...), nil
	}
	if err := f.m.SetAssignment(network.Assignment(x)); err != nil {
		return nil, err
	}
	deficits, err := f.m.CheckDeficits()
	if err != nil {
		return nil, err
	}
	violation := 0.0
	for _, d := range deficits {
		if d > violation {
			violation = d
		}
	}
	v := []float64{f.m.Cost(), violation}
	f.cache[key] = v
	return append([]float64(nil), v...), nil
}

// Run drives the trials. Cancellation is honoured between trials only; a
// cancelled search returns the best assignment found so far, so callers
// must check ctx themselves.
func (e *Evolutionary) Run(ctx context.Context, m *network.Model) (network.Assignment, error) {
	cfg := e.Config.withDefaults()
	factory := e.Factory
	if factory == nil {
		factory = newNSGA2
	}
	now := e.Now
	if now == nil {
		now = time.Now
	}
	e.stop = ""
	e.trials = 0

	ncfg := opt.DefaultNSGA2Config()
	ncfg.PopulationSize = cfg.PopulationSize
	ncfg.Seed = cfg.Seed
	engine, err := factory(ncfg, &fitness{m: m, cache: make(map[string][]float64)})
	if err != nil {
		return nil, err
	}

	start := now()
	pop, err := engine.Initialize()
	if err != nil {
		return nil, err
	}

	tracker := newStagnation(cfg.MaxStagnation)
	var best network.Assignment
	var bestViolation float64

	for {
		if ctx.Err() != nil {
			e.stop = StopCancelled
			break
		}

		pop, err = engine.Evolve(pop, cfg.GenerationsPerTrial)
		if err != nil {
			return nil, err
		}
		e.trials++

		trialBest := -1
		for i, ind := range pop {
			if ind.F[1] > 0 {
				continue
			}
			if trialBest < 0 || ind.F[0] < pop[trialBest].F[0] {
				trialBest = i
			}
		}

		report := TrialReport{
			Trial:       e.trials,
			Generations: cfg.GenerationsPerTrial,
		}
		var stagnant bool
		if trialBest >= 0 {
			report.TrialFeasible = true
			report.TrialCost = pop[trialBest].F[0]
			stagnant = tracker.Update(pop[trialBest].F[0], true)
			if tracker.Improved() {
				best = network.Assignment(pop[trialBest].X).Clone()
				bestViolation = pop[trialBest].F[1]
			}
		} else {
			stagnant = tracker.Update(0, false)
		}

		elapsed := now().Sub(start)
		report.Found = best != nil
		report.BestCost = tracker.best
		if !report.Found {
			report.BestCost = 0
		}
		report.BestViolation = bestViolation
		report.Improved = tracker.Improved()
		report.Stagnation = tracker.Stale()
		report.Elapsed = elapsed

		slog.Info("Trial complete",
			"trial", e.trials,
			"trial_feasible", report.TrialFeasible,
			"best_cost", report.BestCost,
			"stagnation", report.Stagnation,
			"elapsed", elapsed,
		)
		if e.Observer != nil {
			e.Observer(report)
		}

		if elapsed >= cfg.MaxTime {
			e.stop = StopTime
			break
		}
		if e.trials >= cfg.MaxTrials {
			e.stop = StopTrials
			break
		}
		if stagnant {
			e.stop = StopStagnation
			break
		}
	}

	slog.Info("Evolutionary search stopped", "reason", e.stop, "trials", e.trials, "found", best != nil)

	if best == nil {
		return nil, &network.InfeasibleError{Strategy: string(EvolutionaryMulti)}
	}
	if err := m.SetAssignment(best); err != nil {
		return nil, err
	}
	return best, nil
}
