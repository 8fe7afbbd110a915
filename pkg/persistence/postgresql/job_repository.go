package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/slidesmith/slidesmith/pkg/models"
	"github.com/slidesmith/slidesmith/pkg/persistence"
)

// JobRepository handles job rows. Save is an upsert; the job manager owns
// status transitions so the row always reflects the latest snapshot.
type JobRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewJobRepository(db *sql.DB, logger *slog.Logger) *JobRepository {
	return &JobRepository{db: db, logger: logger}
}

const jobColumns = "id, topic, requirements, status, current_stage, progress, artifact, error_kind, error_message, created_at, updated_at"

func (r *JobRepository) Save(ctx context.Context, job *models.Job) error {
	requirements, err := json.Marshal(job.Requirements)
	if err != nil {
		return persistence.NewJobError("Save", job.ID, err)
	}

	var artifact any
	if job.Artifact != nil {
		data, err := json.Marshal(job.Artifact)
		if err != nil {
			return persistence.NewJobError("Save", job.ID, err)
		}

		artifact = data
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_stage = EXCLUDED.current_stage,
			progress = EXCLUDED.progress,
			artifact = EXCLUDED.artifact,
			error_kind = EXCLUDED.error_kind,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at
	`, job.ID, job.Topic, requirements, string(job.Status), job.CurrentStage, job.Progress,
		artifact, string(job.ErrorKind), job.ErrorMessage, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return persistence.NewJobError("Save", job.ID, err)
	}

	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = $1", id)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewJobError("GetByID", id, persistence.ErrJobNotFound)
		}

		return nil, persistence.NewJobError("GetByID", id, err)
	}

	return job, nil
}

func (r *JobRepository) List(ctx context.Context, opts persistence.ListJobsOptions) ([]*models.Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs"

	var (
		conditions []string
		args       []any
	)

	if opts.Status != nil {
		args = append(args, string(*opts.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	if opts.TerminalOnly {
		conditions = append(conditions, "status IN ('succeeded', 'failed', 'cancelled')")
	}

	if !opts.UpdatedBefore.IsZero() {
		args = append(args, opts.UpdatedBefore)
		conditions = append(conditions, fmt.Sprintf("updated_at < $%d", len(args)))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY updated_at DESC"

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*models.Job

	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}

		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate job rows: %w", err)
	}

	return jobs, nil
}

func (r *JobRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM jobs WHERE id = $1", id)
	if err != nil {
		return persistence.NewJobError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewJobError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewJobError("Delete", id, persistence.ErrJobNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var (
		job          models.Job
		status       string
		errorKind    string
		requirements []byte
		artifact     []byte
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := row.Scan(&job.ID, &job.Topic, &requirements, &status, &job.CurrentStage, &job.Progress,
		&artifact, &errorKind, &job.ErrorMessage, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(requirements, &job.Requirements)
	if err != nil {
		return nil, fmt.Errorf("failed to decode requirements: %w", err)
	}

	if len(artifact) > 0 {
		job.Artifact = &models.Artifact{}

		err = json.Unmarshal(artifact, job.Artifact)
		if err != nil {
			return nil, fmt.Errorf("failed to decode artifact: %w", err)
		}
	}

	job.Status = models.JobStatus(status)
	job.ErrorKind = models.ErrorKind(errorKind)
	job.CreatedAt = createdAt.UTC()
	job.UpdatedAt = updatedAt.UTC()

	return &job, nil
}
