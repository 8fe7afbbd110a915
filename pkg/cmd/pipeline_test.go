package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slidesmith/slidesmith/pkg/stages"
)

func TestNewPipelineDefinitionDefaultsToDeckPipeline(t *testing.T) {
	definition, err := NewPipelineDefinition("")
	require.NoError(t, err)

	assert.Equal(t, "deck", definition.Name())
	assert.Equal(t, 5, definition.Len())
}

func TestNewPipelineDefinitionFromConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
	  "name": "deck-short",
	  "seed_keys": ["topic", "requirements"],
	  "stages": [
	    {
	      "name": "plan",
	      "type": "`+stages.TypePlan+`",
	      "input_keys": ["topic", "requirements"],
	      "output_keys": ["plan"],
	      "timeout_ms": 30000,
	      "max_retries": 1,
	      "idempotent": true
	    },
	    {
	      "name": "content",
	      "type": "`+stages.TypeContent+`",
	      "input_keys": ["requirements", "plan"],
	      "output_keys": ["slides"],
	      "timeout_ms": 60000,
	      "idempotent": true
	    }
	  ]
	}`), 0o600))

	definition, err := NewPipelineDefinition(path)
	require.NoError(t, err)

	assert.Equal(t, "deck-short", definition.Name())
	assert.Equal(t, 2, definition.Len())
	assert.Equal(t, 30*time.Second, definition.Stages()[0].Timeout)
}

func TestNewPipelineDefinitionRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name": "broken"}`), 0o600))

	_, err := NewPipelineDefinition(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pipeline config")

	_, err = NewPipelineDefinition(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
