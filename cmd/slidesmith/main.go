// Package main provides the one-shot Slidesmith CLI: run the deck pipeline
// in the foreground and write the artifact, without the job manager.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/slidesmith/slidesmith/pkg/cmd"
	"github.com/slidesmith/slidesmith/pkg/engine"
	"github.com/slidesmith/slidesmith/pkg/export"
	"github.com/slidesmith/slidesmith/pkg/log"
	"github.com/slidesmith/slidesmith/pkg/models"
)

func main() {
	command := &cli.Command{
		Name:                  "slidesmith",
		Usage:                 "Generate one slide deck in the foreground",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "topic",
				Aliases:  []string{"t"},
				Usage:    "Topic of the deck",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "audience",
				Usage: "Intended audience",
			},
			&cli.StringFlag{
				Name:  "tone",
				Usage: "Desired tone of voice",
			},
			&cli.StringFlag{
				Name:  "language",
				Usage: "Deck language",
			},
			&cli.IntFlag{
				Name:  "max-slides",
				Usage: "Upper bound on the number of slides (3-30)",
			},
			&cli.StringFlag{
				Name:    "artifacts-dir",
				Usage:   "Directory for the exported deck",
				Value:   ".",
				Sources: cli.EnvVars("ARTIFACTS_DIR"),
			},
			&cli.StringFlag{
				Name:    "pipeline-config",
				Usage:   "Path to a JSON pipeline definition (defaults to the built-in deck pipeline)",
				Sources: cli.EnvVars("PIPELINE_CONFIG"),
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
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("cli")

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

	eng := engine.New(cmd.NewStageRegistry(logger, genClient), engine.Options{Logger: logger})

	seed := map[string]any{
		models.StateKeyTopic: command.String("topic"),
		models.StateKeyRequirements: models.DeckRequirements{
			Audience:  command.String("audience"),
			Tone:      command.String("tone"),
			Language:  command.String("language"),
			MaxSlides: command.Int("max-slides"),
		},
	}

	result, err := eng.Run(ctx, definition, seed, engine.RunOptions{
		OnProgress: func(p engine.Progress) {
			fmt.Fprintf(os.Stderr, "[%d/%d] %s done\n", p.Completed, p.Total, p.Stage)
		},
	})
	if err != nil {
		return err
	}

	artifact, err := sink.Export(ctx, uuid.New().String(), result.State)
	if err != nil {
		return err
	}

	fmt.Println(artifact.Path)

	return nil
}
