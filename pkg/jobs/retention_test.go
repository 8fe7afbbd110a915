package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slidesmith/slidesmith/pkg/models"
	"github.com/slidesmith/slidesmith/pkg/persistence"
	"github.com/slidesmith/slidesmith/pkg/persistence/memory"
)

type fakeRemover struct {
	mu      sync.Mutex
	removed []string
	fail    map[string]bool
}

func (r *fakeRemover) Remove(_ context.Context, artifact models.Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fail[artifact.ID] {
		return errors.New("remove failed")
	}

	r.removed = append(r.removed, artifact.ID)

	return nil
}

func saveJob(t *testing.T, repo persistence.Repository, id string, status models.JobStatus, age time.Duration, artifact *models.Artifact) {
	t.Helper()

	now := time.Now().UTC()
	require.NoError(t, repo.SaveJob(context.Background(), &models.Job{
		ID:        id,
		Topic:     "t",
		Status:    status,
		Artifact:  artifact,
		CreatedAt: now.Add(-age - time.Minute),
		UpdatedAt: now.Add(-age),
	}))
}

func TestSweepDeletesExpiredTerminalJobs(t *testing.T) {
	repo := memory.NewRepository()
	remover := &fakeRemover{}

	saveJob(t, repo, "expired-ok", models.JobStatusSucceeded, 2*time.Hour, &models.Artifact{ID: "art-1", Path: "/tmp/a.md"})
	saveJob(t, repo, "expired-failed", models.JobStatusFailed, 3*time.Hour, nil)
	saveJob(t, repo, "fresh", models.JobStatusSucceeded, time.Minute, &models.Artifact{ID: "art-2"})
	saveJob(t, repo, "still-running", models.JobStatusRunning, 5*time.Hour, nil)

	sweeper, err := NewSweeper(repo, remover, time.Hour, "@hourly", slog.Default())
	require.NoError(t, err)

	require.NoError(t, sweeper.Sweep(context.Background()))

	assert.Equal(t, []string{"art-1"}, remover.removed)

	_, err = repo.JobByID(context.Background(), "expired-ok")
	assert.True(t, persistence.IsJobNotFound(err))
	_, err = repo.JobByID(context.Background(), "expired-failed")
	assert.True(t, persistence.IsJobNotFound(err))

	_, err = repo.JobByID(context.Background(), "fresh")
	assert.NoError(t, err)
	_, err = repo.JobByID(context.Background(), "still-running")
	assert.NoError(t, err)
}

func TestSweepKeepsJobWhenArtifactRemovalFails(t *testing.T) {
	repo := memory.NewRepository()
	remover := &fakeRemover{fail: map[string]bool{"art-1": true}}

	saveJob(t, repo, "stuck", models.JobStatusSucceeded, 2*time.Hour, &models.Artifact{ID: "art-1"})

	sweeper, err := NewSweeper(repo, remover, time.Hour, "@hourly", slog.Default())
	require.NoError(t, err)

	require.NoError(t, sweeper.Sweep(context.Background()))

	// The record stays so the next sweep retries the artifact.
	_, err = repo.JobByID(context.Background(), "stuck")
	assert.NoError(t, err)
}

func TestNewSweeperRejectsBadSchedule(t *testing.T) {
	_, err := NewSweeper(memory.NewRepository(), nil, time.Hour, "not a schedule", slog.Default())
	require.Error(t, err)
}
