package cmd

import (
	"github.com/slidesmith/slidesmith/pkg/pipeline"
	"github.com/slidesmith/slidesmith/pkg/stages"
)

// NewPipelineDefinition loads the pipeline from a JSON config file, falling
// back to the built-in deck pipeline when no path is given.
func NewPipelineDefinition(configPath string) (*pipeline.Definition, error) {
	if configPath == "" {
		return stages.DefaultPipeline()
	}

	config, err := pipeline.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	return config.Definition()
}
