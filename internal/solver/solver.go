// Package solver runs one sizing job end to end: it builds the model over
// the reference oracle, runs the selected strategy, polishes the answer and
// assembles the result.
package solver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/pipesizer/internal/config"
	"github.com/cwbudde/pipesizer/internal/hydraulic"
	"github.com/cwbudde/pipesizer/internal/metrics"
	"github.com/cwbudde/pipesizer/internal/network"
	"github.com/cwbudde/pipesizer/internal/search"
)

// Run outcomes recorded in pipesizer_runs_total
const (
	OutcomeSolved     = "solved"
	OutcomeNoSolution = "no_solution"
	OutcomeCancelled  = "cancelled"
	OutcomeError      = "error"
)

// Options configures one run
type Options struct {
	RunID           string
	Search          search.Config
	Polish          bool
	PolishMaxChecks int
	// Metrics may be nil
	Metrics *metrics.Registry
}

// OptionsFromProblem reads the run options stored in a problem file
func OptionsFromProblem(p *config.Problem) (Options, error) {
	sc, err := p.Options.SearchConfig()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Search:          sc,
		Polish:          p.Options.Polish,
		PolishMaxChecks: p.Options.PolishMaxChecks,
	}, nil
}

// BuildModel binds the problem to a tree oracle. The caller owns the model
// and must Close it.
func BuildModel(p *config.Problem, reg *metrics.Registry) (*network.Model, error) {
	cat, err := p.BuildCatalog()
	if err != nil {
		return nil, err
	}
	if err := cat.CheckMonotonicPrice(); err != nil {
		if p.Options.StrictCatalog {
			return nil, err
		}
		slog.Warn("Catalog price decreases with diameter; greedy ascent may miss cheaper sizes", "error", err)
	}

	components, err := p.Components()
	if err != nil {
		return nil, err
	}
	points := p.Points()

	oracle, err := hydraulic.NewTreeSolver(p.Network, components, points)
	if err != nil {
		return nil, fmt.Errorf("failed to build oracle: %w", err)
	}

	var opts []network.Option
	if reg != nil {
		opts = append(opts, network.WithMetrics(reg))
	}
	m, err := network.NewModel(components, points, cat, oracle, opts...)
	if err != nil {
		oracle.Close()
		return nil, err
	}
	return m, nil
}

// SolveProblem builds a model for p, solves it and releases the oracle
func SolveProblem(ctx context.Context, p *config.Problem, opts Options) (*Result, error) {
	m, err := BuildModel(p, opts.Metrics)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := m.Close(); err != nil {
			slog.Warn("Failed to release oracle", "error", err)
		}
	}()

	result, err := Solve(ctx, m, opts)
	if result != nil {
		result.Problem = p.Name
	}
	return result, err
}

// Solve runs the configured strategy on m and, when enabled, the polish
// refiner. A strategy that finds nothing yields a Result with Found=false
// and a nil error; oracle failures and cancellation are returned as errors.
func Solve(ctx context.Context, m *network.Model, opts Options) (*Result, error) {
	start := time.Now()

	sc := opts.Search
	if opts.Metrics != nil {
		onTrial := sc.OnTrial
		sc.OnTrial = func(r search.TrialReport) {
			opts.Metrics.EvolutionTrials.Inc()
			if onTrial != nil {
				onTrial(r)
			}
		}
	}
	strategy, err := search.New(sc)
	if err != nil {
		return nil, err
	}

	slog.Info("Starting sizing run",
		"run_id", opts.RunID,
		"algorithm", strategy.Name(),
		"components", m.Dimension(),
		"polish", opts.Polish,
	)

	result := &Result{
		RunID:     opts.RunID,
		Algorithm: strategy.Name(),
		CreatedAt: start,
	}

	x, err := strategy.Run(ctx, m)
	if evo, ok := strategy.(*search.Evolutionary); ok {
		result.StopReason = evo.Stopped()
		result.Trials = evo.Trials()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		record(opts.Metrics, result, OutcomeCancelled, start)
		return nil, ctxErr
	}
	if err != nil {
		if errors.Is(err, network.ErrNoSolution) {
			result.Stats = m.Stats()
			result.Elapsed = time.Since(start)
			record(opts.Metrics, result, OutcomeNoSolution, start)
			slog.Info("No solution found", "run_id", opts.RunID, "algorithm", result.Algorithm)
			return result, nil
		}
		record(opts.Metrics, result, OutcomeError, start)
		return nil, err
	}

	cost, err := m.CostOf(x)
	if err != nil {
		record(opts.Metrics, result, OutcomeError, start)
		return nil, err
	}
	result.Found = true
	result.PrePolishCost = cost

	if opts.Polish {
		var red search.Reduction
		x, red, err = polish(ctx, m, x, opts)
		if err != nil {
			if ctx.Err() != nil {
				record(opts.Metrics, result, OutcomeCancelled, start)
			} else {
				record(opts.Metrics, result, OutcomeError, start)
			}
			return nil, err
		}
		result.Polished = true
		result.Reduction = &red
	}

	if err := finish(m, x, result); err != nil {
		record(opts.Metrics, result, OutcomeError, start)
		return nil, err
	}
	result.Elapsed = time.Since(start)
	record(opts.Metrics, result, OutcomeSolved, start)

	slog.Info("Sizing run complete",
		"run_id", opts.RunID,
		"cost", result.Cost,
		"savings", result.Savings(),
		"applies", result.Stats.Applies,
		"queries", result.Stats.Queries(),
		"elapsed", result.Elapsed,
	)
	return result, nil
}

// Polish refines an already known feasible assignment, as for a saved run
func Polish(ctx context.Context, m *network.Model, x network.Assignment, opts Options) (*Result, error) {
	start := time.Now()
	result := &Result{
		RunID:     opts.RunID,
		Algorithm: opts.Search.Algorithm,
		Found:     true,
		CreatedAt: start,
	}

	cost, err := m.CostOf(x)
	if err != nil {
		return nil, err
	}
	if err := m.SetAssignment(x); err != nil {
		return nil, err
	}
	ok, err := m.CheckFeasible()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("assignment %v is not feasible", []int(x))
	}
	result.PrePolishCost = cost

	refined, red, err := polish(ctx, m, x, opts)
	if err != nil {
		return nil, err
	}
	result.Polished = true
	result.Reduction = &red
	if err := finish(m, refined, result); err != nil {
		return nil, err
	}
	result.Elapsed = time.Since(start)
	return result, nil
}

// polish runs the refiner and returns the reduced assignment
func polish(ctx context.Context, m *network.Model, x network.Assignment, opts Options) (network.Assignment, search.Reduction, error) {
	p := &search.Polish{MaxChecks: opts.PolishMaxChecks}
	red, err := p.Refine(ctx, m, x)
	if opts.Metrics != nil {
		opts.Metrics.PolishChecks.Add(float64(p.Checks()))
	}
	if err != nil {
		return nil, search.Reduction{}, err
	}
	if opts.Metrics != nil && red.Savings > 0 {
		opts.Metrics.PolishSavings.Add(red.Savings)
	}
	return red.Apply(x), red, nil
}

// finish applies the final assignment and fills the result
func finish(m *network.Model, x network.Assignment, result *Result) error {
	if err := m.SetAssignment(x); err != nil {
		return err
	}
	result.Solution = x.Clone()
	result.Cost = m.Cost()
	result.Lines = lineItems(m, x)
	pressures, err := nodePressures(m)
	if err != nil {
		return err
	}
	result.Pressures = pressures
	result.Stats = m.Stats()
	return nil
}

func record(reg *metrics.Registry, r *Result, outcome string, start time.Time) {
	if reg == nil {
		return
	}
	alg := string(r.Algorithm)
	reg.RunsTotal.WithLabelValues(alg, outcome).Inc()
	reg.RunDuration.WithLabelValues(alg).Observe(time.Since(start).Seconds())
	if outcome == OutcomeSolved {
		reg.RunCost.WithLabelValues(alg).Set(r.Cost)
	}
}
