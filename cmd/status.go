package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var serverURL string

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Query server runs",
	Long: `Queries a running server for run status.
Without a run-id, lists all runs of the server process.
With a run-id, shows the detailed status of that run.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listJobs(cmd.OutOrStdout(), serverURL+"/api/v1/runs")
	}
	return getJobStatus(cmd.OutOrStdout(), fmt.Sprintf("%s/api/v1/runs/%s", serverURL, args[0]), args[0])
}

func fetchJSON(url string, v any) (int, error) {
	resp, err := http.Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("server returned error: %s", body)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func listJobs(w io.Writer, url string) error {
	var jobs []map[string]interface{}
	if _, err := fetchJSON(url, &jobs); err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Fprintln(w, "No runs found")
		return nil
	}

	fmt.Fprintf(w, "Found %d run(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Fprintf(w, "Run ID: %s\n", job["id"])
		fmt.Fprintf(w, "  State: %s\n", job["state"])
		if cfg, ok := job["config"].(map[string]interface{}); ok {
			fmt.Fprintf(w, "  Problem: %s\n", cfg["problemPath"])
		}
		if alg, ok := job["algorithm"].(string); ok && alg != "" {
			fmt.Fprintf(w, "  Algorithm: %s\n", alg)
		}
		if found, _ := job["found"].(bool); found {
			fmt.Fprintf(w, "  Cost: %.2f\n", job["bestCost"])
		}
		fmt.Fprintln(w)
	}
	return nil
}

func getJobStatus(w io.Writer, url, runID string) error {
	var status map[string]interface{}
	code, err := fetchJSON(url, &status)
	if code == http.StatusNotFound {
		return fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return err
	}

	// Runs from an earlier server process come back as stored records
	if _, stored := status["result"]; stored && status["state"] == nil {
		fmt.Fprintf(w, "Run: %s (stored)\n", runID)
		if result, ok := status["result"].(map[string]interface{}); ok {
			fmt.Fprintf(w, "Problem: %s\n", result["problem"])
			fmt.Fprintf(w, "Algorithm: %s\n", result["algorithm"])
			if found, _ := result["found"].(bool); found {
				fmt.Fprintf(w, "Cost: %.2f\n", result["cost"])
			} else {
				fmt.Fprintln(w, "No solution found")
			}
		}
		return nil
	}

	fmt.Fprintf(w, "Run: %s\n", status["id"])
	fmt.Fprintf(w, "State: %s\n", status["state"])
	if cfg, ok := status["config"].(map[string]interface{}); ok {
		fmt.Fprintf(w, "Problem: %s\n", cfg["problemPath"])
	}
	if alg, ok := status["algorithm"].(string); ok && alg != "" {
		fmt.Fprintf(w, "Algorithm: %s\n", alg)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Progress:")
	if trials, ok := status["trials"].(float64); ok && trials > 0 {
		fmt.Fprintf(w, "  Trials: %.0f\n", trials)
	}
	if found, _ := status["found"].(bool); found {
		fmt.Fprintf(w, "  Best Cost: %.2f\n", status["bestCost"])
	} else {
		fmt.Fprintln(w, "  No feasible sizing yet")
	}
	if elapsed, ok := status["elapsed"].(float64); ok {
		fmt.Fprintf(w, "  Elapsed: %s\n", time.Duration(elapsed*float64(time.Second)).Round(time.Millisecond))
	}

	if msg, ok := status["error"].(string); ok && msg != "" {
		fmt.Fprintf(w, "\nError: %s\n", msg)
	}
	return nil
}
