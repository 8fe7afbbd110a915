package web

import (
	"time"

	"github.com/slidesmith/slidesmith/pkg/models"
)

// CreateDeckRequest is the POST /v1/decks payload.
type CreateDeckRequest struct {
	Topic        string               `json:"topic"        validate:"required,min=3,max=500"`
	Requirements DeckRequirementsBody `json:"requirements"`
}

// DeckRequirementsBody carries the optional generation knobs.
type DeckRequirementsBody struct {
	Audience  string `json:"audience,omitempty"   validate:"max=200"`
	Tone      string `json:"tone,omitempty"       validate:"max=100"`
	Language  string `json:"language,omitempty"   validate:"max=50"`
	MaxSlides int    `json:"max_slides,omitempty" validate:"omitempty,min=3,max=30"`
}

func (b DeckRequirementsBody) toModel() models.DeckRequirements {
	return models.DeckRequirements{
		Audience:  b.Audience,
		Tone:      b.Tone,
		Language:  b.Language,
		MaxSlides: b.MaxSlides,
	}
}

// JobResponse is the job snapshot returned by the deck endpoints. Artifact
// internals (filesystem paths) stay private; the download URL is derived.
type JobResponse struct {
	ID           string                  `json:"id"`
	Topic        string                  `json:"topic"`
	Requirements models.DeckRequirements `json:"requirements"`
	Status       models.JobStatus        `json:"status"`
	CurrentStage string                  `json:"current_stage,omitempty"`
	Progress     float64                 `json:"progress"`
	DownloadURL  string                  `json:"download_url,omitempty"`
	ErrorKind    models.ErrorKind        `json:"error_kind,omitempty"`
	ErrorMessage string                  `json:"error_message,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at"`
}

func toJobResponse(job *models.Job) JobResponse {
	resp := JobResponse{
		ID:           job.ID,
		Topic:        job.Topic,
		Requirements: job.Requirements,
		Status:       job.Status,
		CurrentStage: job.CurrentStage,
		Progress:     job.Progress,
		ErrorKind:    job.ErrorKind,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}

	if job.Status == models.JobStatusSucceeded && job.Artifact != nil {
		resp.DownloadURL = "/v1/decks/" + job.ID + "/download"
	}

	return resp
}
