package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
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
	problemPath string
	algorithm   string
	polish      bool
	seed        int64
	maxTime     string
	dataDir     string
	saveRun     bool
	exportFile  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Size a network once",
	Long: `Loads a problem file, runs the selected algorithm, prints the sizing
report and writes <problem>_Solved_<ALG>.yaml next to the problem. The run
is also saved under --data-dir so it can be polished or inspected later.

Flags override the problem's options section; unset flags keep it.`,
	RunE: runSizing,
}

func init() {
	runCmd.Flags().StringVar(&problemPath, "problem", "", "Problem YAML path (required)")
	runCmd.Flags().StringVar(&algorithm, "algorithm", "", "Algorithm: GD, NSGA2, DE, DA, MF or a full name")
	runCmd.Flags().BoolVar(&polish, "polish", false, "Refine the answer with the polish pass")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "Random seed")
	runCmd.Flags().StringVar(&maxTime, "max-time", "", "Evolutionary time ceiling, e.g. 10m")
	runCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Base directory for saved runs")
	runCmd.Flags().BoolVar(&saveRun, "save", true, "Save the run and its trace under --data-dir")
	runCmd.Flags().BoolVar(&exportFile, "export", true, "Write the solved network next to the problem file")

	runCmd.MarkFlagRequired("problem")
	rootCmd.AddCommand(runCmd)
}

// overridesFromFlags collects the flags the user actually set
func overridesFromFlags(cmd *cobra.Command) config.Overrides {
	o := config.Overrides{Algorithm: algorithm, MaxTime: maxTime}
	if cmd.Flags().Changed("polish") {
		o.Polish = &polish
	}
	if cmd.Flags().Changed("seed") {
		o.Seed = &seed
	}
	return o
}

func runSizing(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	_, err := solveFile(ctx, cmd.OutOrStdout(), problemPath, overridesFromFlags(cmd), sinkOptions{
		dataDir: dataDir,
		save:    saveRun,
		export:  exportFile,
	})
	return err
}

// sinkOptions says where a finished run goes besides the report
type sinkOptions struct {
	dataDir string
	save    bool
	export  bool
}

// solveFile runs one problem file end to end and writes the report to w
func solveFile(ctx context.Context, w io.Writer, path string, o config.Overrides, sink sinkOptions) (*solver.Result, error) {
	problem, err := config.LoadProblem(path)
	if err != nil {
		return nil, err
	}
	if err := o.Apply(problem); err != nil {
		return nil, err
	}
	opts, err := solver.OptionsFromProblem(problem)
	if err != nil {
		return nil, err
	}
	opts.RunID = uuid.New().String()
	opts.Metrics = metrics.DefaultRegistry()

	var st *store.FSStore
	var trace *store.TraceWriter
	if sink.save {
		st, err = store.NewFSStore(sink.dataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open run store: %w", err)
		}
		trace, err = store.NewTraceWriter(st.BaseDir(), opts.RunID, false)
		if err != nil {
			return nil, err
		}
		defer func() {
			if trace != nil {
				trace.Close()
			}
		}()
		opts.Search.OnTrial = trace.Observe
	}

	slog.Info("Starting sizing", "problem", path, "run_id", opts.RunID)

	result, err := solver.SolveProblem(ctx, problem, opts)
	if err != nil {
		if st != nil {
			// The trace already created the run directory
			trace.Close()
			trace = nil
			if derr := st.DeleteRun(opts.RunID); derr != nil {
				slog.Warn("Failed to remove partial run", "run_id", opts.RunID, "error", derr)
			}
		}
		return nil, err
	}

	if err := solver.WriteReport(w, result); err != nil {
		return nil, err
	}
	var solvedPath string
	if sink.export && result.Found {
		solvedPath, err = exportSolved(problem, path, result)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(w, "Wrote %s\n", solvedPath)
	}
	if st != nil {
		record := store.NewRecord(path, result)
		record.SolvedPath = solvedPath
		if err := st.SaveRun(record); err != nil {
			return nil, err
		}
		if err := st.SaveReport(result); err != nil {
			slog.Warn("Failed to save report", "run_id", result.RunID, "error", err)
		}
		fmt.Fprintf(w, "Saved run %s\n", result.RunID)
	}
	return result, nil
}

// exportSolved writes the solved network. The name carries "+Polish" only
// when the polish pass actually saved money.
func exportSolved(problem *config.Problem, path string, result *solver.Result) (string, error) {
	return config.WriteSolved(problem, result.Sizings(), path, result.SolvedLabel(), result.Savings() > 0)
}
