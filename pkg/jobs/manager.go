// Package jobs runs deck pipelines in the background and tracks their
// lifecycle. The manager is the only writer of job records: each update
// replaces the whole record so API readers always see a consistent snapshot.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slidesmith/slidesmith/pkg/engine"
	"github.com/slidesmith/slidesmith/pkg/eventbus"
	"github.com/slidesmith/slidesmith/pkg/events"
	"github.com/slidesmith/slidesmith/pkg/export"
	"github.com/slidesmith/slidesmith/pkg/models"
	"github.com/slidesmith/slidesmith/pkg/persistence"
	"github.com/slidesmith/slidesmith/pkg/pipeline"
)

const defaultMaxWorkers = 4

// ErrManagerClosed is returned by Submit after Close has been called.
var ErrManagerClosed = errors.New("job manager is closed")

// ErrJobFinished is returned by Cancel when the job already reached a
// terminal status.
var ErrJobFinished = errors.New("job already finished")

// Config wires a Manager. Repository, Engine, Definition, and Sink are
// required; Bus is optional (nil disables event publishing).
type Config struct {
	Repository persistence.Repository
	Engine     *engine.Engine
	Definition *pipeline.Definition
	Sink       export.Sink
	Bus        eventbus.EventPublisher
	Logger     *slog.Logger
	// MaxWorkers bounds concurrently running pipelines (default 4).
	// Submissions beyond the bound wait in queued status.
	MaxWorkers int
}

// Manager owns the background execution of deck jobs.
type Manager struct {
	repo       persistence.Repository
	engine     *engine.Engine
	definition *pipeline.Definition
	sink       export.Sink
	bus        eventbus.EventPublisher
	logger     *slog.Logger

	workers chan struct{}

	mu      sync.Mutex
	cancels map[string]bool
	closed  bool

	wg sync.WaitGroup
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.Repository == nil || cfg.Engine == nil || cfg.Definition == nil || cfg.Sink == nil {
		return nil, errors.New("repository, engine, definition, and sink are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = defaultMaxWorkers
	}

	return &Manager{
		repo:       cfg.Repository,
		engine:     cfg.Engine,
		definition: cfg.Definition,
		sink:       cfg.Sink,
		bus:        cfg.Bus,
		logger:     logger.With("module", "jobs"),
		workers:    make(chan struct{}, maxWorkers),
		cancels:    make(map[string]bool),
	}, nil
}

// Submit accepts a new deck job, persists it queued, and schedules it on the
// worker pool. It returns immediately with the queued snapshot.
func (m *Manager) Submit(ctx context.Context, topic string, requirements models.DeckRequirements) (*models.Job, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()

		return nil, ErrManagerClosed
	}

	m.wg.Add(1)
	m.mu.Unlock()

	now := time.Now().UTC()
	job := &models.Job{
		ID:           uuid.New().String(),
		Topic:        topic,
		Requirements: requirements,
		Status:       models.JobStatusQueued,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := m.repo.SaveJob(ctx, job)
	if err != nil {
		m.wg.Done()

		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	m.publish(ctx, job.ID, events.JobQueued{
		BaseEvent: events.NewBaseEvent(events.JobQueuedEvent, job.ID),
		Topic:     topic,
	})

	go m.run(job.ID)

	return job.Clone(), nil
}

// Job returns the current snapshot of a job.
func (m *Manager) Job(ctx context.Context, id string) (*models.Job, error) {
	return m.repo.JobByID(ctx, id)
}

// Cancel requests cooperative cancellation. A queued job flips to cancelled
// right away, before any worker picks it up. A running stage finishes or
// times out on its own; no further stages start. Cancelling a finished job
// returns its final snapshot with ErrJobFinished.
func (m *Manager) Cancel(ctx context.Context, id string) (*models.Job, error) {
	job, err := m.repo.JobByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if job.Status.Terminal() {
		return job, ErrJobFinished
	}

	m.mu.Lock()
	m.cancels[id] = true
	m.mu.Unlock()

	if job.Status != models.JobStatusQueued {
		return job, nil
	}

	// The job has not started; make the cancellation visible to pollers now
	// instead of when a worker slot frees up. The guard inside the update
	// covers the race where a worker marked it running in the meantime.
	cancelled := false

	m.update(ctx, id, func(j *models.Job) {
		if j.Status == models.JobStatusQueued {
			j.Status = models.JobStatusCancelled
			cancelled = true
		}
	})

	if cancelled {
		m.publish(ctx, id, events.JobCancelled{
			BaseEvent: events.NewBaseEvent(events.JobCancelledEvent, id),
		})
		m.logger.InfoContext(ctx, "Job cancelled before start", "job_id", id)
	}

	return m.repo.JobByID(ctx, id)
}

// Close stops accepting submissions and waits for in-flight jobs until ctx
// expires.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})

	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("job manager shutdown interrupted: %w", ctx.Err())
	}
}

func (m *Manager) cancelRequested(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.cancels[id]
}

func (m *Manager) clearCancel(id string) {
	m.mu.Lock()
	delete(m.cancels, id)
	m.mu.Unlock()
}

// run executes one job to a terminal status. It runs on its own goroutine
// and holds a worker slot for the duration of the pipeline.
func (m *Manager) run(jobID string) {
	defer m.wg.Done()
	defer m.clearCancel(jobID)

	m.workers <- struct{}{}
	defer func() { <-m.workers }()

	ctx := context.Background()
	logger := m.logger.With("job_id", jobID)

	// Cancel already flipped the record if the request arrived while the
	// job was still waiting for a worker; finishCancelled then no-ops.
	if m.cancelRequested(jobID) {
		m.finishCancelled(ctx, jobID, "", 0)

		return
	}

	job, err := m.repo.JobByID(ctx, jobID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load queued job", "error", err)

		return
	}

	started := time.Now().UTC()

	m.update(ctx, jobID, func(j *models.Job) {
		j.Status = models.JobStatusRunning
	})
	m.publish(ctx, jobID, events.JobStarted{
		BaseEvent: events.NewBaseEvent(events.JobStartedEvent, jobID),
		Pipeline:  m.definition.Name(),
	})

	seed := map[string]any{
		models.StateKeyTopic:        job.Topic,
		models.StateKeyRequirements: job.Requirements,
	}

	result, err := m.engine.Run(ctx, m.definition, seed, engine.RunOptions{
		CancelRequested: func() bool { return m.cancelRequested(jobID) },
		OnProgress: func(p engine.Progress) {
			m.update(ctx, jobID, func(j *models.Job) {
				j.CurrentStage = p.Stage
				j.Progress = p.Fraction
			})
			m.publish(ctx, jobID, events.JobStageCompleted{
				BaseEvent: events.NewBaseEvent(events.JobStageCompletedEvent, jobID),
				Stage:     p.Stage,
				Progress:  p.Fraction,
			})
		},
	})
	if err != nil {
		m.finishFailed(ctx, jobID, err, time.Since(started))

		return
	}

	artifact, err := m.sink.Export(ctx, jobID, result.State)
	if err != nil {
		logger.ErrorContext(ctx, "Export failed after successful run", "error", err)

		m.update(ctx, jobID, func(j *models.Job) {
			j.Status = models.JobStatusFailed
			j.ErrorKind = models.ErrorKindExport
			j.ErrorMessage = err.Error()
		})
		m.publish(ctx, jobID, events.JobFailed{
			BaseEvent: events.NewBaseEvent(events.JobFailedEvent, jobID),
			ErrorKind: models.ErrorKindExport,
			Error:     err.Error(),
			Duration:  time.Since(started),
		})

		return
	}

	m.update(ctx, jobID, func(j *models.Job) {
		j.Status = models.JobStatusSucceeded
		j.Progress = 1
		j.CurrentStage = ""
		j.Artifact = artifact
	})
	m.publish(ctx, jobID, events.JobSucceeded{
		BaseEvent:  events.NewBaseEvent(events.JobSucceededEvent, jobID),
		ArtifactID: artifact.ID,
		Duration:   time.Since(started),
	})

	logger.InfoContext(ctx, "Job succeeded", "artifact_id", artifact.ID, "duration", time.Since(started))
}

func (m *Manager) finishFailed(ctx context.Context, jobID string, runErr error, duration time.Duration) {
	failure, ok := engine.AsFailure(runErr)
	if ok && failure.Kind == engine.FailureCancelled {
		m.finishCancelled(ctx, jobID, failure.Stage, duration)

		return
	}

	kind := models.ErrorKindStage
	stage := ""

	if ok {
		stage = failure.Stage
		if failure.Kind == engine.FailureStateConflict {
			kind = models.ErrorKindState
		}
	}

	m.update(ctx, jobID, func(j *models.Job) {
		j.Status = models.JobStatusFailed
		j.ErrorKind = kind
		j.ErrorMessage = runErr.Error()
	})
	m.publish(ctx, jobID, events.JobFailed{
		BaseEvent: events.NewBaseEvent(events.JobFailedEvent, jobID),
		Stage:     stage,
		ErrorKind: kind,
		Error:     runErr.Error(),
		Duration:  duration,
	})

	m.logger.ErrorContext(ctx, "Job failed", "job_id", jobID, "stage", stage, "error_kind", kind, "error", runErr)
}

func (m *Manager) finishCancelled(ctx context.Context, jobID, lastStage string, duration time.Duration) {
	job, err := m.repo.JobByID(ctx, jobID)
	if err == nil && job.Status.Terminal() {
		return
	}

	m.update(ctx, jobID, func(j *models.Job) {
		j.Status = models.JobStatusCancelled
	})
	m.publish(ctx, jobID, events.JobCancelled{
		BaseEvent: events.NewBaseEvent(events.JobCancelledEvent, jobID),
		LastStage: lastStage,
		Duration:  duration,
	})

	m.logger.InfoContext(ctx, "Job cancelled", "job_id", jobID)
}

// update applies fn to a fresh copy of the job and saves the replacement.
// Terminal jobs are never touched again.
func (m *Manager) update(ctx context.Context, jobID string, fn func(*models.Job)) {
	job, err := m.repo.JobByID(ctx, jobID)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to load job for update", "job_id", jobID, "error", err)

		return
	}

	if job.Status.Terminal() {
		return
	}

	fn(job)
	job.UpdatedAt = time.Now().UTC()

	err = m.repo.SaveJob(ctx, job)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to save job update", "job_id", jobID, "error", err)
	}
}

// publish sends a lifecycle event. Publishing is best effort; a bus failure
// never affects the job itself.
func (m *Manager) publish(ctx context.Context, key string, event eventbus.Event) {
	if m.bus == nil {
		return
	}

	err := m.bus.Publish(ctx, key, event)
	if err != nil {
		m.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
