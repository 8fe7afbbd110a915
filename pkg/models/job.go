// Package models defines the core domain models for deck generation jobs.
package models

import "time"

// JobStatus represents the lifecycle state of a generation job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is absorbing: once reached, a job
// never transitions again.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCancelled:
		return true
	case JobStatusQueued, JobStatusRunning:
		return false
	}

	return false
}

// ErrorKind classifies a failed job for callers. Diagnostic detail stays in
// ErrorMessage; stack traces and partial state never leave the engine.
type ErrorKind string

const (
	ErrorKindStage  ErrorKind = "stage_error"
	ErrorKindState  ErrorKind = "state_conflict"
	ErrorKindExport ErrorKind = "export_error"
)

// Artifact references the exported deck file produced by a succeeded job.
type Artifact struct {
	ID          string `json:"id"`
	Path        string `json:"path"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// Job is the caller-visible handle to one background pipeline run. Jobs are
// treated as immutable snapshots: every update replaces the whole record, so
// concurrent readers never observe a partially updated job.
type Job struct {
	ID           string           `json:"id"`
	Topic        string           `json:"topic"`
	Requirements DeckRequirements `json:"requirements"`
	Status       JobStatus        `json:"status"`
	CurrentStage string           `json:"current_stage,omitempty"`
	Progress     float64          `json:"progress"`
	Artifact     *Artifact        `json:"artifact,omitempty"`
	ErrorKind    ErrorKind        `json:"error_kind,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Clone returns a copy of the job safe to hand to callers.
func (j *Job) Clone() *Job {
	copied := *j
	if j.Artifact != nil {
		artifact := *j.Artifact
		copied.Artifact = &artifact
	}

	return &copied
}
