// Package main provides the Slidesmith API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/slidesmith/slidesmith/pkg/generation"
	"github.com/slidesmith/slidesmith/pkg/jobs"
	"github.com/slidesmith/slidesmith/pkg/persistence"
	"github.com/slidesmith/slidesmith/pkg/web"
)

type API struct {
	logger     *slog.Logger
	repository persistence.Repository
	manager    *jobs.Manager
	genClient  generation.Client
	validate   *validator.Validate
	app        *fiber.App
}

func NewAPI(
	logger *slog.Logger,
	repository persistence.Repository,
	manager *jobs.Manager,
	genClient generation.Client,
) *API {
	return &API{
		logger:     logger,
		repository: repository,
		manager:    manager,
		genClient:  genClient,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.manager, a.validate, map[string]web.HealthChecker{
		"repository": a.repository.HealthCheck,
		"generation": a.genClient.HealthCheck,
	})

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Slidesmith API")
	})

	handlers.Register(app)

	a.app = app

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}

func (a *API) Shutdown() error {
	if a.app == nil {
		return nil
	}

	return a.app.Shutdown()
}
