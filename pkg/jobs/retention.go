package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/slidesmith/slidesmith/pkg/models"
	"github.com/slidesmith/slidesmith/pkg/persistence"
)

const defaultRetentionTTL = 24 * time.Hour

// ArtifactRemover deletes the exported file of a finished job. The file sink
// implements it.
type ArtifactRemover interface {
	Remove(ctx context.Context, artifact models.Artifact) error
}

// Sweeper deletes finished jobs and their artifacts once they outlive the
// retention TTL.
type Sweeper struct {
	repo    persistence.Repository
	remover ArtifactRemover
	logger  *slog.Logger
	ttl     time.Duration
	cron    *cron.Cron
	entryID cron.EntryID
}

// NewSweeper creates a retention sweeper. schedule is a cron expression
// (e.g. "*/10 * * * *"); ttl defaults to 24h.
func NewSweeper(repo persistence.Repository, remover ArtifactRemover, ttl time.Duration, schedule string, logger *slog.Logger) (*Sweeper, error) {
	if ttl <= 0 {
		ttl = defaultRetentionTTL
	}

	s := &Sweeper{
		repo:    repo,
		remover: remover,
		logger:  logger.With("module", "retention"),
		ttl:     ttl,
		cron:    cron.New(),
	}

	entryID, err := s.cron.AddFunc(schedule, func() {
		err := s.Sweep(context.Background())
		if err != nil {
			s.logger.Error("Retention sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}

	s.entryID = entryID

	return s, nil
}

// Start begins the schedule in a background goroutine.
func (s *Sweeper) Start() {
	s.logger.Info("Starting retention sweeper", "ttl", s.ttl, "next_run", s.cron.Entry(s.entryID).Schedule)
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep deletes every terminal job older than the TTL along with its
// artifact. Failures on one job do not stop the sweep.
func (s *Sweeper) Sweep(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.ttl)

	stale, err := s.repo.ListJobs(ctx, persistence.ListJobsOptions{
		TerminalOnly:  true,
		UpdatedBefore: cutoff,
	})
	if err != nil {
		return fmt.Errorf("failed to list expired jobs: %w", err)
	}

	removed := 0

	for _, job := range stale {
		if job.Artifact != nil && s.remover != nil {
			err := s.remover.Remove(ctx, *job.Artifact)
			if err != nil {
				s.logger.WarnContext(ctx, "Failed to remove artifact", "job_id", job.ID, "artifact_id", job.Artifact.ID, "error", err)

				continue
			}
		}

		err := s.repo.DeleteJob(ctx, job.ID)
		if err != nil && !persistence.IsJobNotFound(err) {
			s.logger.WarnContext(ctx, "Failed to delete expired job", "job_id", job.ID, "error", err)

			continue
		}

		removed++
	}

	if removed > 0 {
		s.logger.InfoContext(ctx, "Retention sweep completed", "removed", removed, "cutoff", cutoff)
	}

	return nil
}
