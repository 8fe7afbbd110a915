// Package web exposes the deck generation API over HTTP.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/slidesmith/slidesmith/pkg/jobs"
	"github.com/slidesmith/slidesmith/pkg/models"
	"github.com/slidesmith/slidesmith/pkg/persistence"
)

// JobService is the job manager surface the handlers need. Cancel returns
// the final snapshot together with jobs.ErrJobFinished when the job already
// reached a terminal status.
type JobService interface {
	Submit(ctx context.Context, topic string, requirements models.DeckRequirements) (*models.Job, error)
	Job(ctx context.Context, id string) (*models.Job, error)
	Cancel(ctx context.Context, id string) (*models.Job, error)
}

// HealthChecker reports whether a dependency is usable.
type HealthChecker func(ctx context.Context) error

type APIHandlers struct {
	service   JobService
	validator *validator.Validate
	checkers  map[string]HealthChecker
}

func NewAPIHandlers(service JobService, validator *validator.Validate, checkers map[string]HealthChecker) *APIHandlers {
	return &APIHandlers{
		service:   service,
		validator: validator,
		checkers:  checkers,
	}
}

// Register mounts the deck routes on app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	v1 := app.Group("/v1")
	v1.Post("/decks", h.CreateDeck)
	v1.Get("/decks/:id", h.GetDeck)
	v1.Delete("/decks/:id", h.CancelDeck)
	v1.Get("/decks/:id/download", h.DownloadDeck)
}

// CreateDeck accepts a generation request and returns the queued job.
func (h *APIHandlers) CreateDeck(c fiber.Ctx) error {
	var req CreateDeckRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	job, err := h.service.Submit(c.Context(), req.Topic, req.Requirements.toModel())
	if err != nil {
		return serviceUnavailable(c, "Deck generation is not accepting jobs: "+err.Error())
	}

	return c.Status(fiber.StatusAccepted).JSON(toJobResponse(job))
}

// GetDeck returns the current job snapshot.
func (h *APIHandlers) GetDeck(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Deck ID is required")
	}

	job, err := h.service.Job(c.Context(), id)
	if err != nil {
		if persistence.IsJobNotFound(err) {
			return notFound(c, "Deck not found")
		}

		return internalError(c, err)
	}

	return c.JSON(toJobResponse(job))
}

// CancelDeck requests cooperative cancellation of a queued or running job.
func (h *APIHandlers) CancelDeck(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Deck ID is required")
	}

	job, err := h.service.Cancel(c.Context(), id)
	if err != nil {
		if persistence.IsJobNotFound(err) {
			return notFound(c, "Deck not found")
		}

		if errors.Is(err, jobs.ErrJobFinished) {
			return conflict(c, "already_finished", "Deck job already finished with status "+string(job.Status))
		}

		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(toJobResponse(job))
}

// DownloadDeck streams the exported artifact of a succeeded job.
func (h *APIHandlers) DownloadDeck(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Deck ID is required")
	}

	job, err := h.service.Job(c.Context(), id)
	if err != nil {
		if persistence.IsJobNotFound(err) {
			return notFound(c, "Deck not found")
		}

		return internalError(c, err)
	}

	if job.Status != models.JobStatusSucceeded || job.Artifact == nil {
		return conflict(c, "not_ready", "Deck is not ready for download (status "+string(job.Status)+")")
	}

	c.Set(fiber.HeaderContentType, job.Artifact.ContentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+job.ID+`.md"`)

	return c.SendFile(job.Artifact.Path)
}

// HealthCheck probes every registered dependency.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	results := make(map[string]string, len(h.checkers))
	healthy := true

	for name, check := range h.checkers {
		err := check(c.Context())
		if err != nil {
			results[name] = err.Error()
			healthy = false

			continue
		}

		results[name] = "ok"
	}

	status := "healthy"
	httpStatus := http.StatusOK

	if !healthy {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"checkers":  results,
		"timestamp": time.Now().UTC(),
	})
}
