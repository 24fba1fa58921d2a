package store

import (
	"time"

	"github.com/cwbudde/pipesizer/internal/search"
	"github.com/cwbudde/pipesizer/internal/solver"
)

// Record is a persisted sizing run. It keeps the problem file it was
// solved from so that a later polish pass can rebuild the model.
//
// Only the final assignment is stored, never the strategy's internal
// state (population, temperature). Polishing a stored run therefore starts
// from Result.Solution and re-queries the oracle from scratch.
type Record struct {
	// ProblemPath is the YAML problem the run was solved from
	ProblemPath string `json:"problemPath"`

	// SolvedPath is the exported solved network, if one was written
	SolvedPath string `json:"solvedPath,omitempty"`

	// Result is the solver output
	Result *solver.Result `json:"result"`

	// SavedAt records when the record was last written
	SavedAt time.Time `json:"savedAt"`
}

// RunInfo is the listing view of a Record
type RunInfo struct {
	RunID     string           `json:"runId"`
	Problem   string           `json:"problem"`
	Algorithm search.Algorithm `json:"algorithm"`
	Found     bool             `json:"found"`
	Cost      float64          `json:"cost"`
	Polished  bool             `json:"polished"`
	SavedAt   time.Time        `json:"savedAt"`
}

// NewRecord wraps a solver result for persistence
func NewRecord(problemPath string, result *solver.Result) *Record {
	return &Record{
		ProblemPath: problemPath,
		Result:      result,
		SavedAt:     time.Now(),
	}
}

// RunID returns the ID of the wrapped result
func (r *Record) RunID() string {
	if r.Result == nil {
		return ""
	}
	return r.Result.RunID
}

// ToInfo converts a full Record to RunInfo
func (r *Record) ToInfo() RunInfo {
	return RunInfo{
		RunID:     r.Result.RunID,
		Problem:   r.Result.Problem,
		Algorithm: r.Result.Algorithm,
		Found:     r.Result.Found,
		Cost:      r.Result.Cost,
		Polished:  r.Result.Polished,
		SavedAt:   r.SavedAt,
	}
}

// Validate checks that the record is complete enough to be reloaded
func (r *Record) Validate() error {
	if r.Result == nil {
		return &ValidationError{Field: "Result", Reason: "cannot be nil"}
	}
	if r.Result.RunID == "" {
		return &ValidationError{Field: "Result.RunID", Reason: "cannot be empty"}
	}
	if r.ProblemPath == "" {
		return &ValidationError{Field: "ProblemPath", Reason: "cannot be empty"}
	}
	if r.Result.Algorithm == "" {
		return &ValidationError{Field: "Result.Algorithm", Reason: "cannot be empty"}
	}
	if r.Result.Found {
		if len(r.Result.Solution) == 0 {
			return &ValidationError{Field: "Result.Solution", Reason: "cannot be empty for a found solution"}
		}
		if len(r.Result.Lines) != len(r.Result.Solution) {
			return &ValidationError{Field: "Result.Lines", Reason: "length must match the solution"}
		}
		if r.Result.Cost < 0 {
			return &ValidationError{Field: "Result.Cost", Reason: "cannot be negative"}
		}
	}
	if r.SavedAt.IsZero() {
		return &ValidationError{Field: "SavedAt", Reason: "cannot be zero"}
	}
	return nil
}

// ValidationError represents a record validation error
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// CanPolish reports whether the stored run holds a solution a polish pass
// can start from
func (r *Record) CanPolish() error {
	if !r.Result.Found {
		return &CompatibilityError{Field: "Found", Expected: "true", Actual: "false"}
	}
	return nil
}

// CompatibilityError is returned when a stored run cannot serve the
// requested operation
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
