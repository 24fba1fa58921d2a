package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/pipesizer/internal/network"
	"github.com/cwbudde/pipesizer/internal/search"
	"github.com/cwbudde/pipesizer/internal/solver"
)

// setupTestStore creates a temporary directory and returns an FSStore for testing.
func setupTestStore(t *testing.T) (*FSStore, string) {
	t.Helper()

	tempDir := t.TempDir()
	store, err := NewFSStore(tempDir)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	return store, tempDir
}

func createTestRecord(runID string) *Record {
	return &Record{
		ProblemPath: "testdata/village.yaml",
		SavedAt:     time.Now(),
		Result: &solver.Result{
			RunID:         runID,
			Problem:       "village",
			Algorithm:     search.GreedyAscent,
			Found:         true,
			Solution:      network.Assignment{3, 0},
			Cost:          36000,
			PrePolishCost: 36000,
			Polished:      true,
			Reduction:     &search.Reduction{Indices: []int{}, Savings: 0},
			Lines: []solver.LineItem{
				{ID: "P1", Series: "PE", Diameter: 150, Roughness: 140, Price: 30, Length: 1000, Amount: 30000},
				{ID: "P2", Series: "PE", Diameter: 80, Roughness: 140, Price: 12, Length: 500, Amount: 6000},
			},
			Stats:     network.CallStats{Applies: 5, Ranked: 4, Feasible: 1},
			CreatedAt: time.Now(),
		},
	}
}

func TestSaveRun(t *testing.T) {
	store, tempDir := setupTestStore(t)

	if err := store.SaveRun(createTestRecord("run-1")); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	expectedPath := filepath.Join(tempDir, "runs", "run-1", "result.json")
	if _, err := os.Stat(expectedPath); os.IsNotExist(err) {
		t.Fatalf("Result file was not created at %s", expectedPath)
	}
	if _, err := os.Stat(expectedPath + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("Temp file should not exist after save")
	}
}

func TestSaveRun_InvalidInput(t *testing.T) {
	store, _ := setupTestStore(t)

	if err := store.SaveRun(nil); err == nil {
		t.Error("Expected error for nil record")
	}
	if err := store.SaveRun(createTestRecord("")); err == nil {
		t.Error("Expected error for empty run ID")
	}
}

func TestSaveRun_Overwrite(t *testing.T) {
	store, _ := setupTestStore(t)

	first := createTestRecord("run-overwrite")
	first.Result.Cost = 50000
	second := createTestRecord("run-overwrite")

	if err := store.SaveRun(first); err != nil {
		t.Fatalf("First save failed: %v", err)
	}
	if err := store.SaveRun(second); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	loaded, err := store.LoadRun("run-overwrite")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Result.Cost != 36000 {
		t.Errorf("Expected Cost=36000, got %f", loaded.Result.Cost)
	}
}

func TestLoadRun(t *testing.T) {
	store, _ := setupTestStore(t)
	original := createTestRecord("run-load")

	if err := store.SaveRun(original); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	loaded, err := store.LoadRun("run-load")
	if err != nil {
		t.Fatalf("LoadRun failed: %v", err)
	}

	if loaded.ProblemPath != original.ProblemPath {
		t.Errorf("ProblemPath mismatch: expected %s, got %s", original.ProblemPath, loaded.ProblemPath)
	}
	if loaded.Result.Algorithm != search.GreedyAscent {
		t.Errorf("Algorithm mismatch: got %s", loaded.Result.Algorithm)
	}
	if fmt.Sprint(loaded.Result.Solution) != fmt.Sprint(original.Result.Solution) {
		t.Errorf("Solution mismatch: expected %v, got %v", original.Result.Solution, loaded.Result.Solution)
	}
	if loaded.Result.Reduction == nil || loaded.Result.Reduction.Indices == nil {
		t.Errorf("Reduction should survive the round trip, got %+v", loaded.Result.Reduction)
	}
	if loaded.Result.Stats.Ranked != 4 {
		t.Errorf("Stats.Ranked mismatch: got %d", loaded.Result.Stats.Ranked)
	}
}

func TestLoadRun_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.LoadRun("nonexistent-run")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected NotFoundError, got %T: %v", err, err)
	}
}

func TestLoadRun_EmptyID(t *testing.T) {
	store, _ := setupTestStore(t)

	if _, err := store.LoadRun(""); err == nil {
		t.Fatal("Expected error for empty runID")
	}
}

func TestLoadRun_RejectsInvalidRecord(t *testing.T) {
	store, tempDir := setupTestStore(t)

	dir := filepath.Join(tempDir, "runs", "broken")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	body := `{"problemPath": "x.yaml", "result": {"runId": "broken", "algorithm": "greedy-ascent", "found": true}, "savedAt": "2026-01-01T00:00:00Z"}`
	if err := os.WriteFile(filepath.Join(dir, "result.json"), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := store.LoadRun("broken")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if verr.Field != "Result.Solution" {
		t.Errorf("Expected Result.Solution, got %s", verr.Field)
	}
}

func TestListRuns_Empty(t *testing.T) {
	store, _ := setupTestStore(t)

	infos, err := store.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("Expected empty list, got %d runs", len(infos))
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	store, _ := setupTestStore(t)

	base := time.Now()
	for i, id := range []string{"run-old", "run-new", "run-mid"} {
		r := createTestRecord(id)
		r.SavedAt = base.Add(time.Duration([]int{0, 2, 1}[i]) * time.Minute)
		if err := store.SaveRun(r); err != nil {
			t.Fatalf("Failed to save %s: %v", id, err)
		}
	}

	infos, err := store.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}

	var got []string
	for _, info := range infos {
		got = append(got, info.RunID)
	}
	if strings.Join(got, ",") != "run-new,run-mid,run-old" {
		t.Errorf("Unexpected order: %v", got)
	}
}

func TestListRuns_SkipsInvalidDirectories(t *testing.T) {
	store, tempDir := setupTestStore(t)

	if err := store.SaveRun(createTestRecord("valid-run")); err != nil {
		t.Fatalf("Failed to save valid run: %v", err)
	}

	if err := os.MkdirAll(filepath.Join(tempDir, "runs", "empty-run"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, "runs", "dummy.txt"), []byte("test"), 0644); err != nil {
		t.Fatal(err)
	}

	infos, err := store.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(infos) != 1 || infos[0].RunID != "valid-run" {
		t.Errorf("Expected only valid-run, got %+v", infos)
	}
}

func TestDeleteRun(t *testing.T) {
	store, tempDir := setupTestStore(t)

	if err := store.SaveRun(createTestRecord("run-delete")); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	writer, err := NewTraceWriter(tempDir, "run-delete", false)
	if err != nil {
		t.Fatal(err)
	}
	writer.Close()

	if err := store.DeleteRun("run-delete"); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}

	if _, err := store.LoadRun("run-delete"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected NotFoundError after delete, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "runs", "run-delete")); !os.IsNotExist(err) {
		t.Error("Run directory should be gone")
	}
}

func TestDeleteRun_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	if err := store.DeleteRun("nonexistent-run"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected NotFoundError, got %v", err)
	}
	if err := store.DeleteRun(""); err == nil {
		t.Error("Expected error for empty runID")
	}
}

func TestSaveReport(t *testing.T) {
	store, _ := setupTestStore(t)
	record := createTestRecord("run-report")

	if err := store.SaveReport(record.Result); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	data, err := os.ReadFile(store.ReportPath("run-report"))
	if err != nil {
		t.Fatalf("Report not written: %v", err)
	}
	if !strings.Contains(string(data), "Total cost: 36000.00") {
		t.Errorf("Unexpected report:\n%s", data)
	}
}

func TestConcurrentSave(t *testing.T) {
	store, _ := setupTestStore(t)

	const numRuns = 10
	done := make(chan bool, numRuns)

	for i := 0; i < numRuns; i++ {
		go func(idx int) {
			if err := store.SaveRun(createTestRecord(fmt.Sprintf("concurrent-run-%d", idx))); err != nil {
				t.Errorf("Concurrent save failed: %v", err)
			}
			done <- true
		}(i)
	}
	for i := 0; i < numRuns; i++ {
		<-done
	}

	infos, err := store.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(infos) != numRuns {
		t.Errorf("Expected %d runs, got %d", numRuns, len(infos))
	}
}

func TestRecordValidate(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(*Record)
		field string
	}{
		{"valid", func(*Record) {}, ""},
		{"nil result", func(r *Record) { r.Result = nil }, "Result"},
		{"no run id", func(r *Record) { r.Result.RunID = "" }, "Result.RunID"},
		{"no problem path", func(r *Record) { r.ProblemPath = "" }, "ProblemPath"},
		{"lines mismatch", func(r *Record) { r.Result.Lines = r.Result.Lines[:1] }, "Result.Lines"},
		{"zero time", func(r *Record) { r.SavedAt = time.Time{} }, "SavedAt"},
		{"no solution recorded", func(r *Record) {
			r.Result.Found = false
			r.Result.Solution = nil
			r.Result.Lines = nil
		}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := createTestRecord("run-validate")
			tc.edit(r)
			err := r.Validate()
			if tc.field == "" {
				if err != nil {
					t.Errorf("Expected valid record, got %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tc.field {
				t.Errorf("Expected validation error on %s, got %v", tc.field, err)
			}
		})
	}
}

func TestRecordCanPolish(t *testing.T) {
	r := createTestRecord("run-polish")
	if err := r.CanPolish(); err != nil {
		t.Errorf("Found run should be polishable: %v", err)
	}

	r.Result.Found = false
	var cerr *CompatibilityError
	if !errors.As(r.CanPolish(), &cerr) {
		t.Error("Expected CompatibilityError for a run without solution")
	}
}
