// Package events defines the job lifecycle notifications published on the
// event bus. Consumers use them for audit trails and external integrations;
// the job manager itself never depends on receiving its own events.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/slidesmith/slidesmith/pkg/models"
)

type EventType string

// Topic is the bus topic all job lifecycle events are published on.
const Topic = "slidesmith.jobs"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	JobQueuedEvent         EventType = "job.queued"
	JobStartedEvent        EventType = "job.started"
	JobStageCompletedEvent EventType = "job.stage.completed"
	JobSucceededEvent      EventType = "job.succeeded"
	JobFailedEvent         EventType = "job.failed"
	JobCancelledEvent      EventType = "job.cancelled"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	JobID     string    `json:"job_id"`
}

func NewBaseEvent(eventType EventType, jobID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		JobID:     jobID,
	}
}

type JobQueued struct {
	BaseEvent

	Topic string `json:"topic"`
}

func (e JobQueued) GetType() EventType {
	return JobQueuedEvent
}

type JobStarted struct {
	BaseEvent

	Pipeline string `json:"pipeline"`
}

func (e JobStarted) GetType() EventType {
	return JobStartedEvent
}

type JobStageCompleted struct {
	BaseEvent

	Stage    string  `json:"stage"`
	Attempts int     `json:"attempts"`
	Progress float64 `json:"progress"`
}

func (e JobStageCompleted) GetType() EventType {
	return JobStageCompletedEvent
}

type JobSucceeded struct {
	BaseEvent

	ArtifactID string        `json:"artifact_id"`
	Duration   time.Duration `json:"duration"`
}

func (e JobSucceeded) GetType() EventType {
	return JobSucceededEvent
}

type JobFailed struct {
	BaseEvent

	Stage     string           `json:"stage,omitempty"`
	ErrorKind models.ErrorKind `json:"error_kind"`
	Error     string           `json:"error"`
	Duration  time.Duration    `json:"duration"`
}

func (e JobFailed) GetType() EventType {
	return JobFailedEvent
}

type JobCancelled struct {
	BaseEvent

	LastStage string        `json:"last_stage,omitempty"`
	Duration  time.Duration `json:"duration"`
}

func (e JobCancelled) GetType() EventType {
	return JobCancelledEvent
}
