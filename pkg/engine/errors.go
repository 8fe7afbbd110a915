package engine

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a run ended without a final state.
type FailureKind string

const (
	// FailureStage marks an operational stage failure: a Permanent error,
	// or a Transient error that exhausted its retry budget.
	FailureStage FailureKind = "stage_failed"
	// FailureStateConflict marks a programming defect: a stage wrote a
	// key it did not declare or one already present.
	FailureStateConflict FailureKind = "state_conflict"
	// FailureCancelled marks a run stopped by a cooperative cancellation
	// observed at a stage boundary.
	FailureCancelled FailureKind = "cancelled"
)

// WorkflowFailure is the typed failure a run returns instead of a final
// state. Partial state is preserved for diagnostics only and is never handed
// to the result sink.
type WorkflowFailure struct {
	Pipeline string
	Stage    string
	Kind     FailureKind
	Attempts int
	Cause    error
	Partial  map[string]any
}

func (f *WorkflowFailure) Error() string {
	if f.Stage == "" {
		return fmt.Sprintf("pipeline %s: run %s", f.Pipeline, f.Kind)
	}

	return fmt.Sprintf("pipeline %s: stage %s %s after %d attempt(s): %v", f.Pipeline, f.Stage, f.Kind, f.Attempts, f.Cause)
}

func (f *WorkflowFailure) Unwrap() error {
	return f.Cause
}

// AsFailure unpacks err as a *WorkflowFailure.
func AsFailure(err error) (*WorkflowFailure, bool) {
	var failure *WorkflowFailure
	ok := errors.As(err, &failure)

	return failure, ok
}

// IsCancelled reports whether err is a run cancellation.
func IsCancelled(err error) bool {
	failure, ok := AsFailure(err)

	return ok && failure.Kind == FailureCancelled
}
