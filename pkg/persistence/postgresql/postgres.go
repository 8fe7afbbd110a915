// Package postgresql provides the PostgreSQL job store.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/slidesmith/slidesmith/pkg/models"
	"github.com/slidesmith/slidesmith/pkg/persistence"
	"github.com/slidesmith/slidesmith/pkg/persistence/sqlbase"
)

// Persistence implements the job store on PostgreSQL. Migrations run on
// construction.
type Persistence struct {
	db      *sql.DB
	logger  *slog.Logger
	jobRepo *JobRepository
}

func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:      database,
		logger:  logger,
		jobRepo: NewJobRepository(database, logger),
	}, nil
}

func (p *Persistence) SaveJob(ctx context.Context, job *models.Job) error {
	return p.jobRepo.Save(ctx, job)
}

func (p *Persistence) JobByID(ctx context.Context, id string) (*models.Job, error) {
	return p.jobRepo.GetByID(ctx, id)
}

func (p *Persistence) ListJobs(ctx context.Context, opts persistence.ListJobsOptions) ([]*models.Job, error) {
	return p.jobRepo.List(ctx, opts)
}

func (p *Persistence) DeleteJob(ctx context.Context, id string) error {
	return p.jobRepo.Delete(ctx, id)
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS jobs (
				id TEXT PRIMARY KEY,
				topic TEXT NOT NULL,
				requirements JSONB NOT NULL DEFAULT '{}',
				status TEXT NOT NULL,
				current_stage TEXT NOT NULL DEFAULT '',
				progress DOUBLE PRECISION NOT NULL DEFAULT 0,
				artifact JSONB,
				error_kind TEXT NOT NULL DEFAULT '',
				error_message TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (status);
			CREATE INDEX IF NOT EXISTS idx_jobs_updated_at ON jobs (updated_at);
		`,
	}
}
