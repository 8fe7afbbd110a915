// Package protocol defines the contracts between the workflow engine and the
// pluggable units it drives: stage executors and the result sink.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/slidesmith/slidesmith/pkg/models"
)

// ErrorKind classifies a stage failure for the engine's retry policy.
type ErrorKind string

const (
	// Transient failures (timeouts, rate limits, flaky upstreams) may be
	// retried on idempotent stages.
	Transient ErrorKind = "transient"
	// Permanent failures (invalid input, safety rejection) abort the run
	// on first occurrence.
	Permanent ErrorKind = "permanent"
)

// StageError is the classified failure a stage executor returns. Errors that
// are not StageErrors are treated as Permanent.
type StageError struct {
	Kind ErrorKind
	Err  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage error: %v", e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as a retryable stage failure.
func NewTransientError(err error) *StageError {
	return &StageError{Kind: Transient, Err: err}
}

// NewPermanentError wraps err as a non-retryable stage failure.
func NewPermanentError(err error) *StageError {
	return &StageError{Kind: Permanent, Err: err}
}

// KindOf returns the classification of err, defaulting to Permanent for
// unclassified errors and to Transient for context deadline expiry.
func KindOf(err error) ErrorKind {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}

	return Permanent
}

// StageExecutor is one unit of the pipeline. It consumes a read-only view of
// the shared state restricted to its declared input keys and returns the
// outputs to merge, keyed by its declared output keys. The context carries
// the stage deadline; executors must honor it.
//
// Executors declared idempotent must tolerate re-execution with an identical
// view and must not mutate anything outside the returned outputs.
type StageExecutor interface {
	Execute(ctx context.Context, view models.StateView) (map[string]any, error)
}

// StageFactory builds a stage executor from pipeline configuration.
type StageFactory interface {
	Create(config map[string]any, logger *slog.Logger) (StageExecutor, error)
	ID() string
}
