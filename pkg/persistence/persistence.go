// Package persistence defines the job store contract shared by the memory,
// file, and PostgreSQL backends.
package persistence

import (
	"context"
	"time"

	"github.com/slidesmith/slidesmith/pkg/models"
)

// ListJobsOptions filters a job listing. Zero values mean "no filter".
type ListJobsOptions struct {
	// Status restricts the listing to one job status.
	Status *models.JobStatus
	// TerminalOnly restricts the listing to finished jobs (succeeded,
	// failed, cancelled). Used by the retention sweeper.
	TerminalOnly bool
	// UpdatedBefore restricts the listing to jobs last touched before the
	// given instant.
	UpdatedBefore time.Time
	// Limit caps the number of returned jobs; <= 0 means no cap.
	Limit int
}

// Matches reports whether job passes the option filters.
func (o ListJobsOptions) Matches(job *models.Job) bool {
	if o.Status != nil && job.Status != *o.Status {
		return false
	}

	if o.TerminalOnly && !job.Status.Terminal() {
		return false
	}

	if !o.UpdatedBefore.IsZero() && !job.UpdatedAt.Before(o.UpdatedBefore) {
		return false
	}

	return true
}

// Repository stores job records. Implementations must return defensive
// copies; callers may mutate what they receive.
type Repository interface {
	// SaveJob inserts or fully replaces a job record.
	SaveJob(ctx context.Context, job *models.Job) error
	// JobByID returns the job with the given ID, or ErrJobNotFound.
	JobByID(ctx context.Context, id string) (*models.Job, error)
	// ListJobs returns jobs matching opts, most recently updated first.
	ListJobs(ctx context.Context, opts ListJobsOptions) ([]*models.Job, error)
	// DeleteJob removes a job record. Deleting a missing job returns
	// ErrJobNotFound.
	DeleteJob(ctx context.Context, id string) error
	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error
	// Close releases backend resources.
	Close(ctx context.Context) error
}
