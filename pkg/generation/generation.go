// Package generation defines the text-generation capability consumed by the
// pipeline stages. Stages call Generate with a system instruction and a
// context block; retry and backoff policy lives entirely in the engine, not
// here.
package generation

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a generation failure.
type ErrorKind string

const (
	// Transient covers timeouts, rate limits, and upstream flakiness.
	Transient ErrorKind = "transient"
	// Permanent covers invalid input and safety rejections.
	Permanent ErrorKind = "permanent"
)

// Error is a classified generation failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s generation error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a retryable generation failure.
func IsTransient(err error) bool {
	var genErr *Error
	if errors.As(err, &genErr) {
		return genErr.Kind == Transient
	}

	return errors.Is(err, context.DeadlineExceeded)
}

// Client is the generate(systemInstruction, contextText) -> text capability.
type Client interface {
	// Generate produces text for the given instruction and context. The
	// context carries the caller's deadline.
	Generate(ctx context.Context, systemInstruction, contextText string) (string, error)
	// HealthCheck reports whether the capability is reachable.
	HealthCheck(ctx context.Context) error
}
