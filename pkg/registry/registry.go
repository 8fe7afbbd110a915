// Package registry maps stage types to their factories and resolves stage
// definitions into executors for the engine.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/slidesmith/slidesmith/pkg/generation"
	"github.com/slidesmith/slidesmith/pkg/models"
	"github.com/slidesmith/slidesmith/pkg/protocol"
	"github.com/slidesmith/slidesmith/pkg/stages"
)

type Registry struct {
	logger         *slog.Logger
	stageFactories map[string]protocol.StageFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:         log,
		stageFactories: make(map[string]protocol.StageFactory),
	}
}

// NewDeckRegistry creates a registry with the built-in deck stages wired to
// the given generation client.
func NewDeckRegistry(log *slog.Logger, client generation.Client) *Registry {
	r := NewRegistry(log)
	r.RegisterStage(stages.NewPlanFactory(client))
	r.RegisterStage(stages.NewResearchFactory(client))
	r.RegisterStage(stages.NewContentFactory(client))
	r.RegisterStage(stages.NewLayoutFactory(client))
	r.RegisterStage(stages.NewReviewFactory(client))

	return r
}

func (r *Registry) RegisterStage(factory protocol.StageFactory) {
	r.stageFactories[factory.ID()] = factory
}

// AvailableStages returns the registered stage types.
func (r *Registry) AvailableStages() []string {
	types := make([]string, 0, len(r.stageFactories))
	for stageType := range r.stageFactories {
		types = append(types, stageType)
	}

	return types
}

// Resolve builds the executor for a stage definition. Implements the
// engine's resolver contract.
func (r *Registry) Resolve(stage models.StageDefinition, logger *slog.Logger) (protocol.StageExecutor, error) {
	factory, ok := r.stageFactories[stage.Type]
	if !ok {
		return nil, fmt.Errorf("stage type %q not registered", stage.Type)
	}

	return factory.Create(stage.Config, logger.With("stage", stage.Name))
}
