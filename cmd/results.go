package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/cwbudde/pipesizer/internal/solver"
	"github.com/cwbudde/pipesizer/internal/store"
	"github.com/spf13/cobra"
)

var (
	resultsDataDir string
	keepLast       int
	olderThanDays  int
	forceClean     bool
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Manage saved runs",
	Long:  `List, show and clean the runs saved by "run" and "polish".`,
}

var listResultsCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listResults(cmd.OutOrStdout(), resultsDataDir)
	},
}

var showResultCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Print the report of a saved run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showResult(cmd.OutOrStdout(), resultsDataDir, args[0])
	},
}

var cleanResultsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete old runs",
	Long: `Delete saved runs by retention policy: keep only the newest N runs,
delete runs older than N days, or both.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cleanResults(cmd.OutOrStdout(), cmd.InOrStdin(), resultsDataDir)
	},
}

func init() {
	rootCmd.AddCommand(resultsCmd)
	resultsCmd.AddCommand(listResultsCmd, showResultCmd, cleanResultsCmd)

	resultsCmd.PersistentFlags().StringVar(&resultsDataDir, "data-dir", "./data", "Base directory for saved runs")

	cleanResultsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the newest N runs (0 = keep all)")
	cleanResultsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete runs older than N days (0 = no age limit)")
	cleanResultsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func listResults(w io.Writer, baseDir string) error {
	st, err := store.NewFSStore(baseDir)
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}
	infos, err := st.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(infos) == 0 {
		fmt.Fprintln(w, "No saved runs found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSAVED\tPROBLEM\tALGORITHM\tCOST\tSIZE")
	fmt.Fprintln(tw, "------\t-----\t-------\t---------\t----\t----")

	for _, info := range infos {
		sizeStr := "unknown"
		if size, err := getDirSize(filepath.Join(baseDir, "runs", info.RunID)); err == nil {
			sizeStr = formatBytes(size)
		}

		cost := "no solution"
		if info.Found {
			cost = fmt.Sprintf("%.2f", info.Cost)
			if info.Polished {
				cost += " (polished)"
			}
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(info.RunID),
			info.SavedAt.Format("2006-01-02 15:04:05"),
			info.Problem,
			info.Algorithm.Short(),
			cost,
			sizeStr,
		)
	}
	tw.Flush()

	fmt.Fprintf(w, "\nTotal runs: %d\n", len(infos))
	return nil
}

func showResult(w io.Writer, baseDir, runID string) error {
	st, err := store.NewFSStore(baseDir)
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}
	record, err := st.LoadRun(runID)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Run %s: %s (%s)\n", runID, record.Result.Problem, record.ProblemPath)
	if err := solver.WriteReport(w, record.Result); err != nil {
		return err
	}
	if record.SolvedPath != "" {
		fmt.Fprintf(w, "Solved network: %s\n", record.SolvedPath)
	}
	return nil
}

func cleanResults(w io.Writer, in io.Reader, baseDir string) error {
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	st, err := store.NewFSStore(baseDir)
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}
	infos, err := st.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(infos) == 0 {
		fmt.Fprintln(w, "No runs to clean.")
		return nil
	}

	toDelete := selectRunsForDeletion(infos, keepLast, olderThanDays, time.Now())
	if len(toDelete) == 0 {
		fmt.Fprintln(w, "No runs match deletion criteria.")
		return nil
	}

	fmt.Fprintf(w, "Found %d run(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Fprintf(w, "  - %s (%s, %s)\n", shortID(info.RunID), info.Problem, info.SavedAt.Format("2006-01-02 15:04:05"))
	}

	if !forceClean {
		fmt.Fprint(w, "\nProceed with deletion? [y/N]: ")
		var response string
		fmt.Fscanln(in, &response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(w, "Aborted.")
			return nil
		}
	}

	deleted, failed := 0, 0
	for _, info := range toDelete {
		if err := st.DeleteRun(info.RunID); err != nil {
			slog.Error("Failed to delete run", "run_id", info.RunID, "error", err)
			failed++
		} else {
			slog.Info("Deleted run", "run_id", info.RunID)
			deleted++
		}
	}

	fmt.Fprintf(w, "\nDeleted %d run(s), %d failed.\n", deleted, failed)
	return nil
}

// selectRunsForDeletion applies the retention policy. A run matching both
// rules is listed once.
func selectRunsForDeletion(infos []store.RunInfo, keepLast, olderThanDays int, now time.Time) []store.RunInfo {
	var toDelete []store.RunInfo
	selected := make(map[string]bool)

	if olderThanDays > 0 {
		cutoff := now.AddDate(0, 0, -olderThanDays)
		for _, info := range infos {
			if info.SavedAt.Before(cutoff) {
				toDelete = append(toDelete, info)
				selected[info.RunID] = true
			}
		}
	}

	if keepLast > 0 && len(infos) > keepLast {
		sorted := make([]store.RunInfo, len(infos))
		copy(sorted, infos)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].SavedAt.After(sorted[j].SavedAt)
		})
		for _, info := range sorted[keepLast:] {
			if !selected[info.RunID] {
				toDelete = append(toDelete, info)
				selected[info.RunID] = true
			}
		}
	}

	return toDelete
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}

// getDirSize calculates the total size of a directory
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
