package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/slidesmith/slidesmith/pkg/cmd"
	"github.com/slidesmith/slidesmith/pkg/engine"
	"github.com/slidesmith/slidesmith/pkg/export"
	"github.com/slidesmith/slidesmith/pkg/jobs"
	"github.com/slidesmith/slidesmith/pkg/log"
	"github.com/slidesmith/slidesmith/pkg/otelhelper"
)

const (
	defaultPort            = 9091
	shutdownGrace          = 30 * time.Second
	defaultRetentionPeriod = 24 * time.Hour
)

func main() {
	command := &cli.Command{
		Name:                  "slidesmith-api",
		Usage:                 "Generate slide decks from a topic, as background jobs over HTTP",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Job store URL (memory://, file://<dir>, postgres://...)",
				Value:   "memory://",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "artifacts-dir",
				Usage:   "Directory for exported deck artifacts",
				Value:   "./artifacts",
				Sources: cli.EnvVars("ARTIFACTS_DIR"),
			},
			&cli.StringFlag{
				Name:    "pipeline-config",
				Usage:   "Path to a JSON pipeline definition (defaults to the built-in deck pipeline)",
				Sources: cli.EnvVars("PIPELINE_CONFIG"),
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "Maximum concurrently running deck jobs",
				Value:   4,
				Sources: cli.EnvVars("MAX_WORKERS"),
			},
			&cli.StringFlag{
				Name:    "generation-provider",
				Usage:   "Text generation provider (openai, canned)",
				Value:   "openai",
				Sources: cli.EnvVars("GENERATION_PROVIDER"),
			},
			&cli.StringFlag{
				Name:    "generation-base-url",
				Usage:   "OpenAI-compatible API base URL",
				Value:   "https://api.openai.com/v1",
				Sources: cli.EnvVars("GENERATION_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "generation-api-key",
				Usage:   "API key for the generation provider",
				Sources: cli.EnvVars("GENERATION_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "generation-model",
				Usage:   "Model identifier for the generation provider",
				Value:   "gpt-4o-mini",
				Sources: cli.EnvVars("GENERATION_MODEL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the generation result cache (empty disables caching)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.DurationFlag{
				Name:    "retention-ttl",
				Usage:   "How long finished jobs and artifacts are kept",
				Value:   defaultRetentionPeriod,
				Sources: cli.EnvVars("RETENTION_TTL"),
			},
			&cli.StringFlag{
				Name:    "retention-schedule",
				Usage:   "Cron schedule for the retention sweeper",
				Value:   "@every 10m",
				Sources: cli.EnvVars("RETENTION_SCHEDULE"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP trace export",
				Sources: cli.EnvVars("OTEL_TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("api")
	logger.InfoContext(ctx, "Initializing Slidesmith API")

	if command.Bool("tracing") {
		_, err := otelhelper.NewTracer(ctx, "slidesmith-api")
		if err != nil {
			return err
		}
	}

	repository, err := cmd.NewJobRepository(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		err := repository.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close job store", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger)
	if err != nil {
		return err
	}

	defer func() {
		err := eventBus.Close()
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	genClient, err := cmd.NewGenerationClient(cmd.GenerationConfig{
		Provider: command.String("generation-provider"),
		BaseURL:  command.String("generation-base-url"),
		APIKey:   command.String("generation-api-key"),
		Model:    command.String("generation-model"),
		RedisURL: command.String("redis-url"),
	}, logger)
	if err != nil {
		return err
	}

	sink, err := export.NewFileSink(command.String("artifacts-dir"), logger)
	if err != nil {
		return err
	}

	definition, err := cmd.NewPipelineDefinition(command.String("pipeline-config"))
	if err != nil {
		return err
	}

	stageRegistry := cmd.NewStageRegistry(logger, genClient)

	manager, err := jobs.NewManager(jobs.Config{
		Repository: repository,
		Engine:     engine.New(stageRegistry, engine.Options{Logger: logger}),
		Definition: definition,
		Sink:       sink,
		Bus:        eventBus,
		Logger:     logger,
		MaxWorkers: command.Int("workers"),
	})
	if err != nil {
		return err
	}

	sweeper, err := jobs.NewSweeper(
		repository,
		sink,
		command.Duration("retention-ttl"),
		command.String("retention-schedule"),
		logger,
	)
	if err != nil {
		return err
	}

	sweeper.Start()
	defer sweeper.Stop()

	api := NewAPI(logger, repository, manager, genClient)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.InfoContext(ctx, "Shutting down")

		err := api.Shutdown()
		if err != nil {
			logger.ErrorContext(ctx, "Failed to stop HTTP server", "error", err)
		}
	}()

	err = api.Start(command.Int("port"))
	if err != nil {
		return err
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	return manager.Close(closeCtx)
}
