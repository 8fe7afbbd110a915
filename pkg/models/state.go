package models

import (
	"errors"
	"fmt"
	"slices"
)

// ErrKeyConflict indicates a stage tried to write a state key that is
// already present or that it never declared as an output.
var ErrKeyConflict = errors.New("state key conflict")

// StateConflictError reports an illegal write into a WorkflowState. It is a
// programming defect in a stage, not an operational failure, and aborts the
// run that produced it.
type StateConflictError struct {
	Stage string
	Key   string
	Err   error
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("stage %s: illegal write to state key %q: %v", e.Stage, e.Key, e.Err)
}

func (e *StateConflictError) Unwrap() error {
	return e.Err
}

func (e *StateConflictError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WorkflowState is the write-once record threaded through one pipeline run.
// Keys are set exactly once and never mutated afterwards; the engine owns the
// state exclusively for the duration of the run, so no locking is needed.
type WorkflowState struct {
	values map[string]any
	order  []string
}

// NewWorkflowState creates a state pre-populated with the given seed values
// (the submission inputs, e.g. topic and requirements).
func NewWorkflowState(seed map[string]any) *WorkflowState {
	state := &WorkflowState{
		values: make(map[string]any, len(seed)),
		order:  make([]string, 0, len(seed)),
	}

	keys := make([]string, 0, len(seed))
	for key := range seed {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	for _, key := range keys {
		state.values[key] = seed[key]
		state.order = append(state.order, key)
	}

	return state
}

// Get returns the value stored under key.
func (s *WorkflowState) Get(key string) (any, bool) {
	value, ok := s.values[key]

	return value, ok
}

// Has reports whether key has been written.
func (s *WorkflowState) Has(key string) bool {
	_, ok := s.values[key]

	return ok
}

// Keys returns all written keys in write order.
func (s *WorkflowState) Keys() []string {
	return slices.Clone(s.order)
}

// Len returns the number of written keys.
func (s *WorkflowState) Len() int {
	return len(s.order)
}

// View returns a read-only projection of the state restricted to the given
// keys. All requested keys must already be present; the pipeline definition
// guarantees this for declared stage inputs.
func (s *WorkflowState) View(keys []string) (StateView, error) {
	view := make(map[string]any, len(keys))

	for _, key := range keys {
		value, ok := s.values[key]
		if !ok {
			return StateView{}, fmt.Errorf("state key %q not present", key)
		}

		view[key] = value
	}

	return StateView{values: view}, nil
}

// Merge writes a stage's outputs into the state. Every key must be declared
// in the stage's output set and must not already be present; a violation
// returns a StateConflictError and leaves the state untouched.
func (s *WorkflowState) Merge(stage string, declared []string, outputs map[string]any) error {
	for key := range outputs {
		if !slices.Contains(declared, key) {
			return &StateConflictError{Stage: stage, Key: key, Err: fmt.Errorf("%w: key not declared as output", ErrKeyConflict)}
		}

		if _, exists := s.values[key]; exists {
			return &StateConflictError{Stage: stage, Key: key, Err: fmt.Errorf("%w: key already written", ErrKeyConflict)}
		}
	}

	// Deterministic write order for reproducible snapshots.
	keys := make([]string, 0, len(outputs))
	for key := range outputs {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	for _, key := range keys {
		s.values[key] = outputs[key]
		s.order = append(s.order, key)
	}

	return nil
}

// Snapshot returns a shallow copy of the state values, used for diagnostics
// on failed runs and for export on successful ones.
func (s *WorkflowState) Snapshot() map[string]any {
	snapshot := make(map[string]any, len(s.values))
	for key, value := range s.values {
		snapshot[key] = value
	}

	return snapshot
}

// StateView is the read-only projection handed to a stage executor. It
// exposes only the stage's declared input keys.
type StateView struct {
	values map[string]any
}

// NewStateView builds a view directly from a key/value map. Intended for
// tests and stage-level fakes.
func NewStateView(values map[string]any) StateView {
	copied := make(map[string]any, len(values))
	for key, value := range values {
		copied[key] = value
	}

	return StateView{values: copied}
}

// Get returns the value stored under key.
func (v StateView) Get(key string) (any, bool) {
	value, ok := v.values[key]

	return value, ok
}

// String returns the value under key as a string, or "" when absent or not
// a string.
func (v StateView) String(key string) string {
	value, ok := v.values[key]
	if !ok {
		return ""
	}

	str, _ := value.(string)

	return str
}

// Keys returns the view's keys in unspecified order.
func (v StateView) Keys() []string {
	keys := make([]string, 0, len(v.values))
	for key := range v.values {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	return keys
}
