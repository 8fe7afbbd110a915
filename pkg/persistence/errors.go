package persistence

import (
	"errors"
	"fmt"
)

// ErrJobNotFound indicates no job exists with the given identifier.
var ErrJobNotFound = errors.New("job not found")

// JobError wraps a job store failure with the operation and job identifier.
type JobError struct {
	Op    string
	JobID string
	Err   error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s operation failed for job %s: %v", e.Op, e.JobID, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

func (e *JobError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewJobError creates a job error with context.
func NewJobError(op, jobID string, err error) *JobError {
	return &JobError{Op: op, JobID: jobID, Err: err}
}

// IsJobNotFound checks if an error indicates a missing job.
func IsJobNotFound(err error) bool {
	return errors.Is(err, ErrJobNotFound)
}
