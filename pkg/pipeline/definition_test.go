package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slidesmith/slidesmith/pkg/models"
)

func validStages() []models.StageDefinition {
	return []models.StageDefinition{
		{
			Name:       "plan",
			Type:       "deck:plan",
			InputKeys:  []string{"topic"},
			OutputKeys: []string{"plan"},
			Timeout:    time.Minute,
		},
		{
			Name:       "content",
			Type:       "deck:content",
			InputKeys:  []string{"plan"},
			OutputKeys: []string{"slides"},
			Timeout:    time.Minute,
		},
	}
}

func TestNewAcceptsValidPipeline(t *testing.T) {
	definition, err := New("deck", []string{"topic"}, validStages())
	require.NoError(t, err)

	assert.Equal(t, "deck", definition.Name())
	assert.Equal(t, 2, definition.Len())
	assert.Equal(t, []string{"topic"}, definition.SeedKeys())
	assert.Equal(t, []string{"plan", "slides"}, definition.OutputKeys())
}

func TestNewRejectsEmptyPipeline(t *testing.T) {
	_, err := New("deck", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyPipeline)
	assert.True(t, IsDefinitionError(err))
}

func TestNewRejectsDuplicateStageName(t *testing.T) {
	stages := validStages()
	stages[1].Name = "plan"
	stages[1].InputKeys = []string{"topic"}

	_, err := New("deck", []string{"topic"}, stages)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateStage)
}

func TestNewRejectsDuplicateOutputKey(t *testing.T) {
	stages := validStages()
	stages[1].OutputKeys = []string{"plan"}

	_, err := New("deck", []string{"topic"}, stages)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateOutputKey)

	var defErr *DefinitionError

	require.ErrorAs(t, err, &defErr)
	assert.Equal(t, "content", defErr.Stage)
	assert.Equal(t, "plan", defErr.Key)
}

func TestNewRejectsOutputShadowingSeedKey(t *testing.T) {
	stages := validStages()
	stages[0].OutputKeys = []string{"topic"}

	_, err := New("deck", []string{"topic"}, stages)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateOutputKey)
	assert.Contains(t, err.Error(), "seed key")
}

func TestNewRejectsUnsatisfiedInput(t *testing.T) {
	stages := validStages()
	stages[0].InputKeys = []string{"slides"} // produced later, not earlier

	_, err := New("deck", []string{"topic"}, stages)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsatisfiedInput)
}

func TestNewRejectsNonPositiveTimeout(t *testing.T) {
	stages := validStages()
	stages[0].Timeout = 0

	_, err := New("deck", []string{"topic"}, stages)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTimeout)
}

func TestNewRejectsNegativeRetries(t *testing.T) {
	stages := validStages()
	stages[1].MaxRetries = -1

	_, err := New("deck", []string{"topic"}, stages)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRetries)
}

func TestStageIndex(t *testing.T) {
	definition, err := New("deck", []string{"topic"}, validStages())
	require.NoError(t, err)

	assert.Equal(t, 0, definition.StageIndex("plan"))
	assert.Equal(t, 1, definition.StageIndex("content"))
	assert.Equal(t, -1, definition.StageIndex("unknown"))
}

func TestStagesReturnsCopy(t *testing.T) {
	definition, err := New("deck", []string{"topic"}, validStages())
	require.NoError(t, err)

	definition.Stages()[0].Name = "mutated"
	assert.Equal(t, "plan", definition.Stages()[0].Name)
}
