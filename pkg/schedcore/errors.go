package schedcore

import "fmt"

// Status classifies how a solve ended, mirroring §4.7/§7 of the design:
// Optimal and FeasibleWithinLimit carry a Solution with placements;
// Infeasible/ModelInvalid/Unknown do not (an Unknown Solution holds only
// its status and diagnostics, since a solution found before the limit is
// reported as FeasibleWithinLimit).
type Status string

const (
	StatusOptimal             Status = "Optimal"
	StatusFeasibleWithinLimit Status = "FeasibleWithinLimit"
	StatusInfeasible          Status = "Infeasible"
	StatusModelInvalid        Status = "ModelInvalid"
	StatusUnknown             Status = "Unknown"
	StatusCancelled           Status = "Cancelled"
)

// ModelBuildError reports a structural problem caught during Problem
// construction or model building: a cyclic precedence graph, an empty mode
// list, a dangling id, a negative duration, or a horizon too small to admit
// any instance. It names the offending entity and the invariant it broke so
// the caller can fix the input and retry.
type ModelBuildError struct {
	Entity    string // e.g. "template_task:T3/finish", "machine:M1"
	Invariant string // e.g. "acyclic precedence", "non-empty mode list"
	Err       error
}

func (e *ModelBuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model build: %s violates %s: %v", e.Entity, e.Invariant, e.Err)
	}
	return fmt.Sprintf("model build: %s violates %s", e.Entity, e.Invariant)
}

func (e *ModelBuildError) Unwrap() error { return e.Err }

// NewModelBuildError constructs a ModelBuildError with an optional wrapped
// cause, for use with multierr.Append when more than one entity fails
// validation in a single Problem construction.
func NewModelBuildError(entity, invariant string, cause error) *ModelBuildError {
	return &ModelBuildError{Entity: entity, Invariant: invariant, Err: cause}
}

// InfeasibleProblemError is returned when the engine proves no satisfying
// assignment exists. It is terminal for that Problem: retrying the same
// input will not help.
type InfeasibleProblemError struct {
	Diagnostics Diagnostics
}

func (e *InfeasibleProblemError) Error() string {
	return fmt.Sprintf("problem is infeasible (conflicts=%d, branches=%d)", e.Diagnostics.Conflicts, e.Diagnostics.Branches)
}

// SolverContractViolationError indicates the extractor found a feasible
// assignment from the engine that breaks one of §3's invariants. This is a
// fatal core bug, not a recoverable condition: it should be surfaced to
// operations, not retried.
type SolverContractViolationError struct {
	Invariant string
	Detail    string
}

func (e *SolverContractViolationError) Error() string {
	return fmt.Sprintf("solver contract violation: %s: %s", e.Invariant, e.Detail)
}

// CancelledError wraps a caller-initiated cancellation. The driver returns it,
// with a nil Solution, only when no feasible solution was found before the
// cancellation; when one was found, Solve returns that Solution and no
// error.
type CancelledError struct {
	Err error
}

func (e *CancelledError) Error() string { return fmt.Sprintf("solve cancelled: %v", e.Err) }
func (e *CancelledError) Unwrap() error { return e.Err }
