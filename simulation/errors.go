package simulation

import "fmt"

// ErrInvariantViolation is fatal: ordering, overlap, or dangling
// platoon-link invariant failure (spec.md §7, exit 2).
type ErrInvariantViolation struct {
	Detail string
}

func (e *ErrInvariantViolation) Error() string {
	return fmt.Sprintf("simulation: invariant violation: %s", e.Detail)
}

// ErrCancelled is returned when a process-level cancellation signal is
// observed at a phase boundary (spec.md §5, exit 130).
type ErrCancelled struct{}

func (e *ErrCancelled) Error() string { return "simulation: cancelled" }

// ErrSolverFailure is the solver-failure result the CLI maps to exit 3
// (spec.md §6). Run does not return it: formation.Optimal treats every
// solver error, not only a timeout, as a timeout and falls back to Greedy.
type ErrSolverFailure struct {
	Detail string
}

func (e *ErrSolverFailure) Error() string {
	return fmt.Sprintf("simulation: solver failure: %s", e.Detail)
}
