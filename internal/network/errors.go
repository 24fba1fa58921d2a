package network

import "fmt"

// ErrOutOfRange is returned when an assignment leaves the catalog bounds.
// Use errors.Is(err, ErrOutOfRange) to check for this error.
var ErrOutOfRange = &OutOfRangeError{}

// ErrNoSolution is returned by search strategies that found no feasible
// assignment. It is a normal negative outcome, not a failure.
var ErrNoSolution = &InfeasibleError{}

// ErrOracle matches any failure reported by the hydraulic oracle.
var ErrOracle = &OracleError{}

// OutOfRangeError reports a size index outside [0, Upper].
// Index is -1 when the vector length itself is wrong.
type OutOfRangeError struct {
	Index int
	Value int
	Upper int
}

func (e *OutOfRangeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("assignment length %d does not match dimension %d", e.Value, e.Upper)
	}
	return fmt.Sprintf("size index %d of component %d outside [0, %d]", e.Value, e.Index, e.Upper)
}

func (e *OutOfRangeError) Is(target error) bool {
	_, ok := target.(*OutOfRangeError)
	return ok
}

// InfeasibleError reports that a strategy could not reach any assignment
// satisfying every constraint point.
type InfeasibleError struct {
	Strategy string
}

func (e *InfeasibleError) Error() string {
	if e.Strategy != "" {
		return "no solution found by " + e.Strategy
	}
	return "no solution found"
}

func (e *InfeasibleError) Is(target error) bool {
	_, ok := target.(*InfeasibleError)
	return ok
}

// OracleError wraps a failure of the hydraulic oracle. It is fatal for the
// current run and is never retried.
type OracleError struct {
	Op  string
	Err error
}

func (e *OracleError) Error() string {
	if e.Err == nil {
		return "oracle failure"
	}
	return "oracle " + e.Op + ": " + e.Err.Error()
}

func (e *OracleError) Unwrap() error {
	return e.Err
}

func (e *OracleError) Is(target error) bool {
	_, ok := target.(*OracleError)
	return ok
}
