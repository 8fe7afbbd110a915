// Package cmd provides common initialization for the command-line binaries.
package cmd

import (
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/slidesmith/slidesmith/pkg/generation"
	"github.com/slidesmith/slidesmith/pkg/registry"
)

// GenerationConfig selects and configures the text-generation client.
type GenerationConfig struct {
	// Provider is "openai" or "canned" (deterministic offline replies).
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	// RedisURL, when set, enables the read-through result cache.
	RedisURL string
	CacheTTL time.Duration
}

// NewGenerationClient builds the generation client, optionally wrapped in a
// Redis result cache.
func NewGenerationClient(cfg GenerationConfig, logger *slog.Logger) (generation.Client, error) {
	var client generation.Client

	switch cfg.Provider {
	case "canned", "":
		client = generation.NewStaticClient("")
	default:
		client = generation.NewOpenAIClient(generation.OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		})
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}

		client = generation.NewCachedClient(client, redis.NewClient(opts), cfg.CacheTTL, logger)
	}

	return client, nil
}

// NewStageRegistry creates the registry with the built-in deck stages.
func NewStageRegistry(logger *slog.Logger, client generation.Client) *registry.Registry {
	return registry.NewDeckRegistry(logger, client)
}
