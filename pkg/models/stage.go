package models

import "time"

// DecisionFunc selects the next stage to run after the owning stage
// completes, evaluated against the current state. Returning "" ends the run.
// Targets must be declared later in the pipeline order; the pipeline
// definition validates this at construction.
type DecisionFunc func(state StateView) (string, error)

// StageDefinition describes one unit of the pipeline: the keys it reads, the
// keys it writes, and its timeout/retry policy.
type StageDefinition struct {
	Name       string        `json:"name"        validate:"required,min=1"`
	Type       string        `json:"type"        validate:"required"`
	InputKeys  []string      `json:"input_keys"`
	OutputKeys []string      `json:"output_keys" validate:"required,min=1"`
	Timeout    time.Duration `json:"timeout"     validate:"required"`
	MaxRetries int           `json:"max_retries" validate:"min=0"`
	// Idempotent marks the stage as safe to re-run after a transient
	// failure. Stages with side effects outside the returned outputs must
	// leave this false and are never retried.
	Idempotent bool `json:"idempotent"`
	Config     map[string]any `json:"config,omitempty"`

	// Decision, when set, picks the next stage from current state instead
	// of falling through to the next stage in order.
	Decision DecisionFunc `json:"-"`
}
