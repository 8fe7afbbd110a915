// Package file provides a filesystem job store, one JSON document per job.
// Suited to local runs and small deployments without a database.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/slidesmith/slidesmith/pkg/models"
	"github.com/slidesmith/slidesmith/pkg/persistence"
)

// Repository stores jobs as <root>/jobs/<id>.json. A process-wide mutex
// serialises writes; concurrent processes on the same root are not supported.
type Repository struct {
	root string
	mu   sync.Mutex
}

func NewRepository(root string) (*Repository, error) {
	err := os.MkdirAll(filepath.Join(root, "jobs"), 0o755)
	if err != nil {
		return nil, fmt.Errorf("failed to create jobs directory: %w", err)
	}

	return &Repository{root: root}, nil
}

func (r *Repository) jobPath(id string) string {
	return filepath.Join(r.root, "jobs", id+".json")
}

func (r *Repository) SaveJob(_ context.Context, job *models.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return persistence.NewJobError("SaveJob", job.ID, err)
	}

	// Write-then-rename so a crash never leaves a torn record behind.
	tmp := r.jobPath(job.ID) + ".tmp"

	err = os.WriteFile(tmp, data, 0o644)
	if err != nil {
		return persistence.NewJobError("SaveJob", job.ID, err)
	}

	err = os.Rename(tmp, r.jobPath(job.ID))
	if err != nil {
		return persistence.NewJobError("SaveJob", job.ID, err)
	}

	return nil
}

func (r *Repository) JobByID(_ context.Context, id string) (*models.Job, error) {
	data, err := os.ReadFile(r.jobPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewJobError("JobByID", id, persistence.ErrJobNotFound)
		}

		return nil, persistence.NewJobError("JobByID", id, err)
	}

	var job models.Job

	err = json.Unmarshal(data, &job)
	if err != nil {
		return nil, persistence.NewJobError("JobByID", id, err)
	}

	return &job, nil
}

func (r *Repository) ListJobs(ctx context.Context, opts persistence.ListJobsOptions) ([]*models.Job, error) {
	entries, err := fs.Glob(os.DirFS(filepath.Join(r.root, "jobs")), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list job files: %w", err)
	}

	matched := make([]*models.Job, 0, len(entries))

	for _, entry := range entries {
		id := strings.TrimSuffix(entry, ".json")

		job, err := r.JobByID(ctx, id)
		if err != nil {
			if persistence.IsJobNotFound(err) {
				continue
			}

			return nil, err
		}

		if opts.Matches(job) {
			matched = append(matched, job)
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

	err := os.Remove(r.jobPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return persistence.NewJobError("DeleteJob", id, persistence.ErrJobNotFound)
		}

		return persistence.NewJobError("DeleteJob", id, err)
	}

	return nil
}

func (r *Repository) HealthCheck(_ context.Context) error {
	info, err := os.Stat(filepath.Join(r.root, "jobs"))
	if err != nil {
		return fmt.Errorf("jobs directory unavailable: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("jobs path %s is not a directory", filepath.Join(r.root, "jobs"))
	}

	return nil
}

func (r *Repository) Close(_ context.Context) error {
	return nil
}
