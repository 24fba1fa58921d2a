package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/pipesizer/internal/network"
	"github.com/cwbudde/pipesizer/internal/search"
	"github.com/cwbudde/pipesizer/internal/solver"
	"github.com/cwbudde/pipesizer/internal/store"
)

func ids(infos []store.RunInfo) map[string]bool {
	out := make(map[string]bool)
	for _, info := range infos {
		out[info.RunID] = true
	}
	return out
}

func TestSelectRunsForDeletion_ByAge(t *testing.T) {
	now := time.Now()
	infos := []store.RunInfo{
		{RunID: "run1", SavedAt: now.AddDate(0, 0, -10)},
		{RunID: "run2", SavedAt: now.AddDate(0, 0, -5)},
		{RunID: "run3", SavedAt: now.AddDate(0, 0, -1)},
		{RunID: "run4", SavedAt: now.AddDate(0, 0, -30)},
	}

	toDelete := selectRunsForDeletion(infos, 0, 7, now)

	got := ids(toDelete)
	if len(toDelete) != 2 || !got["run1"] || !got["run4"] {
		t.Errorf("Expected run1 and run4, got %v", got)
	}
}

func TestSelectRunsForDeletion_ByCount(t *testing.T) {
	now := time.Now()
	infos := []store.RunInfo{
		{RunID: "run1", SavedAt: now.AddDate(0, 0, -10)},
		{RunID: "run2", SavedAt: now.AddDate(0, 0, -5)},
		{RunID: "run3", SavedAt: now.AddDate(0, 0, -1)},
		{RunID: "run4", SavedAt: now.AddDate(0, 0, -30)},
	}

	toDelete := selectRunsForDeletion(infos, 2, 0, now)

	got := ids(toDelete)
	if len(toDelete) != 2 || !got["run1"] || !got["run4"] {
		t.Errorf("Expected the two oldest (run1, run4), got %v", got)
	}
}

func TestSelectRunsForDeletion_Combined(t *testing.T) {
	now := time.Now()
	infos := []store.RunInfo{
		{RunID: "run1", SavedAt: now.AddDate(0, 0, -10)},
		{RunID: "run2", SavedAt: now.AddDate(0, 0, -5)},
		{RunID: "run3", SavedAt: now.AddDate(0, 0, -1)},
		{RunID: "run4", SavedAt: now.AddDate(0, 0, -30)},
		{RunID: "run5", SavedAt: now.AddDate(0, 0, -2)},
	}

	// Age selects run1 and run4; keeping 2 adds run2 without repeating them
	toDelete := selectRunsForDeletion(infos, 2, 7, now)

	got := ids(toDelete)
	if len(toDelete) != 3 || !got["run1"] || !got["run2"] || !got["run4"] {
		t.Errorf("Expected run1, run2 and run4 once each, got %v", toDelete)
	}
}

func TestSelectRunsForDeletion_NothingToDo(t *testing.T) {
	now := time.Now()
	infos := []store.RunInfo{{RunID: "run1", SavedAt: now}}

	if got := selectRunsForDeletion(infos, 5, 7, now); len(got) != 0 {
		t.Errorf("Expected nothing to delete, got %v", got)
	}
}

func TestGetDirSize(t *testing.T) {
	tmpDir := t.TempDir()
	content := []byte("Hello, World!")
	if err := os.WriteFile(filepath.Join(tmpDir, "test.txt"), content, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	size, err := getDirSize(tmpDir)
	if err != nil {
		t.Fatalf("getDirSize failed: %v", err)
	}
	if size < int64(len(content)) {
		t.Errorf("Expected size >= %d, got %d", len(content), size)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, tt := range tests {
		if result := formatBytes(tt.bytes); result != tt.expected {
			t.Errorf("formatBytes(%d) = %s, expected %s", tt.bytes, result, tt.expected)
		}
	}
}

// saveTestRun stores a village run with the given solution
func saveTestRun(t *testing.T, st *store.FSStore, runID string, x network.Assignment, savedAt time.Time) {
	t.Helper()
	sizes := []float64{80, 100, 125, 150, 200}
	prices := []float64{12, 16, 22, 30, 45}
	lengths := []float64{1000, 500}

	result := &solver.Result{
		RunID:     runID,
		Problem:   "village",
		Algorithm: search.EvolutionaryMulti,
		Found:     true,
		Solution:  x,
		CreatedAt: savedAt,
	}
	for i, idx := range x {
		amount := prices[idx] * lengths[i]
		result.Cost += amount
		result.Lines = append(result.Lines, solver.LineItem{
			ID: []string{"P1", "P2"}[i], Series: "PE",
			Diameter: sizes[idx], Roughness: 140, Price: prices[idx], Length: lengths[i], Amount: amount,
		})
	}

	record := store.NewRecord(villageProblem(t), result)
	record.SavedAt = savedAt
	if err := st.SaveRun(record); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}
}

func TestResultsListCommand(t *testing.T) {
	tmpDir := t.TempDir()

	var out bytes.Buffer
	if err := listResults(&out, tmpDir); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(out.String(), "No saved runs found.") {
		t.Errorf("Unexpected output: %s", out.String())
	}

	st, _ := store.NewFSStore(tmpDir)
	saveTestRun(t, st, "run-abc", network.Assignment{3, 0}, time.Now())

	out.Reset()
	if err := listResults(&out, tmpDir); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	for _, want := range []string{"run-abc", "village", "NSGA2", "36000.00", "Total runs: 1"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Listing misses %q:\n%s", want, out.String())
		}
	}
}

func TestResultsShowCommand(t *testing.T) {
	tmpDir := t.TempDir()
	st, _ := store.NewFSStore(tmpDir)
	saveTestRun(t, st, "run-show", network.Assignment{3, 0}, time.Now())

	var out bytes.Buffer
	if err := showResult(&out, tmpDir, "run-show"); err != nil {
		t.Fatalf("showResult failed: %v", err)
	}
	if !strings.Contains(out.String(), "Total cost: 36000.00") {
		t.Errorf("Unexpected report:\n%s", out.String())
	}

	if err := showResult(&out, tmpDir, "missing"); err == nil {
		t.Error("Expected error for unknown run")
	}
}

func TestResultsCleanCommand_NoFlags(t *testing.T) {
	keepLast, olderThanDays = 0, 0

	if err := cleanResults(&bytes.Buffer{}, strings.NewReader(""), t.TempDir()); err == nil {
		t.Error("Expected error when no flags specified")
	}
}

func TestResultsCleanCommand_WithForce(t *testing.T) {
	tmpDir := t.TempDir()
	st, _ := store.NewFSStore(tmpDir)
	saveTestRun(t, st, "old-run", network.Assignment{3, 0}, time.Now().AddDate(0, 0, -30))
	saveTestRun(t, st, "new-run", network.Assignment{3, 0}, time.Now())

	keepLast, olderThanDays, forceClean = 0, 7, true
	defer func() { keepLast, olderThanDays, forceClean = 0, 0, false }()

	if err := cleanResults(&bytes.Buffer{}, strings.NewReader(""), tmpDir); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if _, err := st.LoadRun("old-run"); err == nil {
		t.Error("Expected old-run to be deleted")
	}
	if _, err := st.LoadRun("new-run"); err != nil {
		t.Errorf("new-run should survive: %v", err)
	}
}

func TestResultsCleanCommand_Aborted(t *testing.T) {
	tmpDir := t.TempDir()
	st, _ := store.NewFSStore(tmpDir)
	saveTestRun(t, st, "old-run", network.Assignment{3, 0}, time.Now().AddDate(0, 0, -30))

	keepLast, olderThanDays, forceClean = 0, 7, false
	defer func() { keepLast, olderThanDays = 0, 0 }()

	var out bytes.Buffer
	if err := cleanResults(&out, strings.NewReader("n\n"), tmpDir); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Aborted.") {
		t.Errorf("Expected abort, got:\n%s", out.String())
	}
	if _, err := st.LoadRun("old-run"); err != nil {
		t.Error("Run should not be deleted after abort")
	}
}
