package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/slidesmith/slidesmith/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// configSchema constrains pipeline config documents before they are mapped
// onto stage definitions, so malformed files fail with a schema report
// instead of a construction error deep in validation.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name", "stages"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "seed_keys": {
      "type": "array",
      "items": {"type": "string", "minLength": 1}
    },
    "stages": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "type", "output_keys", "timeout_ms"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "type": {"type": "string", "minLength": 1},
          "input_keys": {"type": "array", "items": {"type": "string", "minLength": 1}},
          "output_keys": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
          "timeout_ms": {"type": "integer", "minimum": 1},
          "max_retries": {"type": "integer", "minimum": 0},
          "idempotent": {"type": "boolean"},
          "config": {"type": "object"}
        }
      }
    }
  }
}`

// Config is the on-disk pipeline description.
type Config struct {
	Name     string        `json:"name"`
	SeedKeys []string      `json:"seed_keys"`
	Stages   []StageConfig `json:"stages"`
}

// StageConfig is one stage entry of a pipeline config document.
type StageConfig struct {
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	InputKeys  []string       `json:"input_keys"`
	OutputKeys []string       `json:"output_keys"`
	TimeoutMs  int            `json:"timeout_ms"`
	MaxRetries int            `json:"max_retries"`
	Idempotent bool           `json:"idempotent"`
	Config     map[string]any `json:"config"`
}

// ParseConfig validates raw JSON against the pipeline schema and decodes it.
func ParseConfig(data []byte) (*Config, error) {
	schemaLoader := gojsonschema.NewStringLoader(configSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("failed to validate pipeline config: %w", err)
	}

	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return nil, fmt.Errorf("invalid pipeline config: %s", strings.Join(details, "; "))
	}

	var config Config

	err = json.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to decode pipeline config: %w", err)
	}

	return &config, nil
}

// LoadConfig reads and parses a pipeline config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline config %s: %w", path, err)
	}

	return ParseConfig(data)
}

// Definition converts the config into a validated pipeline definition.
func (c *Config) Definition() (*Definition, error) {
	stages := make([]models.StageDefinition, 0, len(c.Stages))
	for _, stage := range c.Stages {
		stages = append(stages, models.StageDefinition{
			Name:       stage.Name,
			Type:       stage.Type,
			InputKeys:  stage.InputKeys,
			OutputKeys: stage.OutputKeys,
			Timeout:    time.Duration(stage.TimeoutMs) * time.Millisecond,
			MaxRetries: stage.MaxRetries,
			Idempotent: stage.Idempotent,
			Config:     stage.Config,
		})
	}

	return New(c.Name, c.SeedKeys, stages)
}
