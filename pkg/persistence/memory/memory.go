// Package memory provides the in-memory job store used by single-process
// deployments and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/slidesmith/slidesmith/pkg/models"
	"github.com/slidesmith/slidesmith/pkg/persistence"
)

// Repository keeps jobs in a map guarded by a read-write lock. All reads and
// writes copy the job so callers never share memory with the store.
type Repository struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
}

func NewRepository() *Repository {
	return &Repository{jobs: make(map[string]*models.Job)}
}

func (r *Repository) SaveJob(_ context.Context, job *models.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[job.ID] = job.Clone()

	return nil
}

func (r *Repository) JobByID(_ context.Context, id string) (*models.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, persistence.NewJobError("JobByID", id, persistence.ErrJobNotFound)
	}

	return job.Clone(), nil
}

func (r *Repository) ListJobs(_ context.Context, opts persistence.ListJobsOptions) ([]*models.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*models.Job, 0, len(r.jobs))

	for _, job := range r.jobs {
		if opts.Matches(job) {
			matched = append(matched, job.Clone())
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	return matched, nil
}

func (r *Repository) DeleteJob(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[id]; !ok {
		return persistence.NewJobError("DeleteJob", id, persistence.ErrJobNotFound)
	}

	delete(r.jobs, id)

	return nil
}

func (r *Repository) HealthCheck(_ context.Context) error {
	return nil
}

func (r *Repository) Close(_ context.Context) error {
	return nil
}
