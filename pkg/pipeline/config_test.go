package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const deckConfigJSON = `{
  "name": "deck",
  "seed_keys": ["topic", "requirements"],
  "stages": [
    {
      "name": "plan",
      "type": "deck:plan",
      "input_keys": ["topic", "requirements"],
      "output_keys": ["plan"],
      "timeout_ms": 60000,
      "max_retries": 2,
      "idempotent": true,
      "config": {"style": "concise"}
    },
    {
      "name": "content",
      "type": "deck:content",
      "input_keys": ["plan"],
      "output_keys": ["slides"],
      "timeout_ms": 120000
    }
  ]
}`

func TestParseConfig(t *testing.T) {
	config, err := ParseConfig([]byte(deckConfigJSON))
	require.NoError(t, err)

	assert.Equal(t, "deck", config.Name)
	assert.Equal(t, []string{"topic", "requirements"}, config.SeedKeys)
	require.Len(t, config.Stages, 2)
	assert.Equal(t, "deck:plan", config.Stages[0].Type)
	assert.Equal(t, 60000, config.Stages[0].TimeoutMs)
	assert.True(t, config.Stages[0].Idempotent)
	assert.Equal(t, "concise", config.Stages[0].Config["style"])
}

func TestParseConfigRejectsMissingRequiredFields(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no name", `{"stages": [{"name": "a", "type": "t", "output_keys": ["k"], "timeout_ms": 1}]}`},
		{"no stages", `{"name": "deck"}`},
		{"empty stages", `{"name": "deck", "stages": []}`},
		{"stage missing type", `{"name": "deck", "stages": [{"name": "a", "output_keys": ["k"], "timeout_ms": 1}]}`},
		{"stage missing output keys", `{"name": "deck", "stages": [{"name": "a", "type": "t", "timeout_ms": 1}]}`},
		{"zero timeout", `{"name": "deck", "stages": [{"name": "a", "type": "t", "output_keys": ["k"], "timeout_ms": 0}]}`},
		{"negative retries", `{"name": "deck", "stages": [{"name": "a", "type": "t", "output_keys": ["k"], "timeout_ms": 1, "max_retries": -1}]}`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(test.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid pipeline config")
		})
	}
}

func TestParseConfigRejectsMalformedJSON(t *testing.T) {
	_, err := ParseConfig([]byte(`{"name": "deck", "stages": [`))
	require.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.json")
	require.NoError(t, os.WriteFile(path, []byte(deckConfigJSON), 0o600))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "deck", config.Name)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read pipeline config")
}

func TestConfigDefinition(t *testing.T) {
	config, err := ParseConfig([]byte(deckConfigJSON))
	require.NoError(t, err)

	definition, err := config.Definition()
	require.NoError(t, err)

	stages := definition.Stages()
	require.Len(t, stages, 2)
	assert.Equal(t, time.Minute, stages[0].Timeout)
	assert.Equal(t, 2*time.Minute, stages[1].Timeout)
	assert.Equal(t, 2, stages[0].MaxRetries)
}

func TestConfigDefinitionRejectsUnsatisfiedInput(t *testing.T) {
	config, err := ParseConfig([]byte(deckConfigJSON))
	require.NoError(t, err)

	config.Stages[1].InputKeys = []string{"research"}

	_, err = config.Definition()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsatisfiedInput)
}
