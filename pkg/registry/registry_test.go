package registry

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slidesmith/slidesmith/pkg/generation"
	"github.com/slidesmith/slidesmith/pkg/models"
	"github.com/slidesmith/slidesmith/pkg/protocol"
	"github.com/slidesmith/slidesmith/pkg/stages"
)

func TestDeckRegistryCoversDefaultPipeline(t *testing.T) {
	r := NewDeckRegistry(slog.Default(), generation.NewStaticClient(""))

	definition, err := stages.DefaultPipeline()
	require.NoError(t, err)

	assert.Len(t, r.AvailableStages(), 5)

	for _, stage := range definition.Stages() {
		executor, err := r.Resolve(stage, slog.Default())
		require.NoError(t, err, "stage type %s should resolve", stage.Type)
		assert.NotNil(t, executor)
	}
}

func TestResolveUnknownStageType(t *testing.T) {
	r := NewRegistry(slog.Default())

	_, err := r.Resolve(models.StageDefinition{Name: "x", Type: "deck:unknown"}, slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestRegisterStageOverridesByType(t *testing.T) {
	r := NewRegistry(slog.Default())

	first := stages.NewPlanFactory(generation.NewStaticClient("first"))
	second := stages.NewPlanFactory(generation.NewStaticClient("second"))

	r.RegisterStage(first)
	r.RegisterStage(second)

	assert.Len(t, r.AvailableStages(), 1)

	executor, err := r.Resolve(models.StageDefinition{Name: "plan", Type: first.ID()}, slog.Default())
	require.NoError(t, err)

	var _ protocol.StageExecutor = executor
}
