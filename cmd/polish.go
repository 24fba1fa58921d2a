package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/cwbudde/pipesizer/internal/config"
	"github.com/cwbudde/pipesizer/internal/metrics"
	"github.com/cwbudde/pipesizer/internal/solver"
	"github.com/cwbudde/pipesizer/internal/store"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	polishDataDir     string
	polishProblemPath string
	polishMaxChecks   int
)

var polishCmd = &cobra.Command{
	Use:   "polish [run-id]",
	Short: "Polish a saved run",
	Long: `Loads a saved run and tries to lower pipes below its solution while all
pressures still hold. The polished result is saved as a new run and
exported as <problem>_Solved_<ALG>+Polish.yaml when it saves money.`,
	Args: cobra.ExactArgs(1),
	RunE: runPolish,
}

func init() {
	polishCmd.Flags().StringVar(&polishDataDir, "data-dir", "./data", "Base directory for saved runs")
	polishCmd.Flags().StringVar(&polishProblemPath, "problem", "", "Problem YAML path (default: the one the run was solved from)")
	polishCmd.Flags().IntVar(&polishMaxChecks, "max-checks", 0, "Feasibility check budget (0 = unlimited)")
	rootCmd.AddCommand(polishCmd)
}

func runPolish(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	_, err := polishRun(ctx, cmd.OutOrStdout(), args[0], polishProblemPath, polishMaxChecks, polishDataDir)
	return err
}

func polishRun(ctx context.Context, w io.Writer, runID, problemOverride string, maxChecks int, baseDir string) (*solver.Result, error) {
	st, err := store.NewFSStore(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	record, err := st.LoadRun(runID)
	if err != nil {
		return nil, err
	}
	if err := record.CanPolish(); err != nil {
		return nil, fmt.Errorf("run %s cannot be polished: %w", runID, err)
	}

	path := record.ProblemPath
	if problemOverride != "" {
		path = problemOverride
	}
	problem, err := config.LoadProblem(path)
	if err != nil {
		return nil, err
	}

	reg := metrics.DefaultRegistry()
	m, err := solver.BuildModel(problem, reg)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	opts := solver.Options{
		RunID:           uuid.New().String(),
		Polish:          true,
		PolishMaxChecks: maxChecks,
		Metrics:         reg,
	}
	opts.Search.Algorithm = record.Result.Algorithm

	result, err := solver.Polish(ctx, m, record.Result.Solution, opts)
	if err != nil {
		return nil, err
	}
	result.Problem = problem.Name

	if err := solver.WriteReport(w, result); err != nil {
		return nil, err
	}

	polished := store.NewRecord(path, result)
	if result.Savings() > 0 {
		polished.SolvedPath, err = exportSolved(problem, path, result)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(w, "Wrote %s\n", polished.SolvedPath)
	} else {
		fmt.Fprintln(w, "Polish found no cheaper feasible sizing.")
	}
	if err := st.SaveRun(polished); err != nil {
		return nil, err
	}
	fmt.Fprintf(w, "Saved run %s (polished from %s)\n", result.RunID, runID)
	return result, nil
}
