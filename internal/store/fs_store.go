package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/cwbudde/pipesizer/internal/solver"
)

// FSStore implements Store on the filesystem.
// Runs are stored as <baseDir>/runs/<runID>/result.json.
//
// Writes go through a temp file and a rename, so concurrent callers never
// observe a partial record and no locks are needed.
type FSStore struct {
	baseDir string
}

var _ Store = (*FSStore)(nil)

// NewFSStore creates a filesystem store, creating baseDir if needed
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

// BaseDir returns the root data directory
func (fs *FSStore) BaseDir() string {
	return fs.baseDir
}

func (fs *FSStore) runDir(runID string) string {
	return filepath.Join(fs.baseDir, "runs", runID)
}

func (fs *FSStore) resultPath(runID string) string {
	return filepath.Join(fs.runDir(runID), "result.json")
}

// ReportPath returns where SaveReport writes the text report of a run
func (fs *FSStore) ReportPath(runID string) string {
	return filepath.Join(fs.runDir(runID), "report.txt")
}

// SaveRun atomically saves the record under its run ID
func (fs *FSStore) SaveRun(record *Record) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}
	runID := record.RunID()
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize record: %w", err)
	}
	if err := fs.writeAtomic(runID, fs.resultPath(runID), data); err != nil {
		return err
	}

	slog.Debug("Run saved", "run_id", runID, "path", fs.resultPath(runID))
	return nil
}

// SaveReport writes the human-readable report next to the record
func (fs *FSStore) SaveReport(result *solver.Result) error {
	if result == nil || result.RunID == "" {
		return fmt.Errorf("result must carry a run ID")
	}
	var buf bytes.Buffer
	if err := solver.WriteReport(&buf, result); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return fs.writeAtomic(result.RunID, fs.ReportPath(result.RunID), buf.Bytes())
}

func (fs *FSStore) writeAtomic(runID, path string, data []byte) error {
	if err := os.MkdirAll(fs.runDir(runID), 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// LoadRun retrieves the record for the given run
func (fs *FSStore) LoadRun(runID string) (*Record, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}

	path := fs.resultPath(runID)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &NotFoundError{RunID: runID}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read result file: %w", err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to deserialize record: %w", err)
	}
	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("stored run %s: %w", runID, err)
	}

	slog.Debug("Run loaded", "run_id", runID, "path", path)
	return &record, nil
}

// ListRuns returns metadata for all stored runs, newest first.
// Directories without a readable result.json are skipped.
func (fs *FSStore) ListRuns() ([]RunInfo, error) {
	runsDir := filepath.Join(fs.baseDir, "runs")

	entries, err := os.ReadDir(runsDir)
	if os.IsNotExist(err) {
		return []RunInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	infos := []RunInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		runID := entry.Name()
		if _, err := os.Stat(fs.resultPath(runID)); os.IsNotExist(err) {
			continue
		}

		record, err := fs.LoadRun(runID)
		if err != nil {
			slog.Warn("Failed to load run for listing", "run_id", runID, "error", err)
			continue
		}
		infos = append(infos, record.ToInfo())
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].SavedAt.After(infos[j].SavedAt)
	})

	slog.Debug("Listed runs", "count", len(infos))
	return infos, nil
}

// DeleteRun removes the run directory and everything in it
func (fs *FSStore) DeleteRun(runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}

	dir := fs.runDir(runID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &NotFoundError{RunID: runID}
	} else if err != nil {
		return fmt.Errorf("failed to stat run directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove run directory: %w", err)
	}

	slog.Debug("Run deleted", "run_id", runID, "path", dir)
	return nil
}
