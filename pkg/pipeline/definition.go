// Package pipeline defines the static description of a stage pipeline and
// validates it at construction, so key-dependency errors surface before any
// job is accepted.
package pipeline

import (
	"errors"
	"fmt"
	"slices"

	"github.com/slidesmith/slidesmith/pkg/models"
)

// Construction-time validation failures. A malformed pipeline never reaches
// the engine.
var (
	ErrEmptyPipeline      = errors.New("pipeline has no stages")
	ErrDuplicateStage     = errors.New("duplicate stage name")
	ErrDuplicateOutputKey = errors.New("output key produced by more than one stage")
	ErrUnsatisfiedInput   = errors.New("input key not produced by any earlier stage")
	ErrInvalidTimeout     = errors.New("stage timeout must be positive")
	ErrInvalidRetries     = errors.New("stage retry count must not be negative")
)

// DefinitionError reports why a pipeline failed validation.
type DefinitionError struct {
	Pipeline string
	Stage    string
	Key      string
	Err      error
}

func (e *DefinitionError) Error() string {
	switch {
	case e.Stage != "" && e.Key != "":
		return fmt.Sprintf("pipeline %s: stage %s: key %q: %v", e.Pipeline, e.Stage, e.Key, e.Err)
	case e.Stage != "":
		return fmt.Sprintf("pipeline %s: stage %s: %v", e.Pipeline, e.Stage, e.Err)
	default:
		return fmt.Sprintf("pipeline %s: %v", e.Pipeline, e.Err)
	}
}

func (e *DefinitionError) Unwrap() error {
	return e.Err
}

func (e *DefinitionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsDefinitionError reports whether err is a pipeline validation failure.
func IsDefinitionError(err error) bool {
	var defErr *DefinitionError

	return errors.As(err, &defErr)
}

// Definition is a validated, immutable pipeline: ordered stages plus the
// seed keys the initial state is expected to carry.
type Definition struct {
	name     string
	seedKeys []string
	stages   []models.StageDefinition
	index    map[string]int
}

// New validates the stage list against the seed keys and returns an
// immutable Definition. It fails with a *DefinitionError when the stage list
// is empty, two stages share a name or an output key, a stage requires an
// input key neither the seeds nor an earlier stage provide, or a stage has a
// non-positive timeout.
func New(name string, seedKeys []string, stages []models.StageDefinition) (*Definition, error) {
	if len(stages) == 0 {
		return nil, &DefinitionError{Pipeline: name, Err: ErrEmptyPipeline}
	}

	produced := make(map[string]string, len(seedKeys)) // key -> producing stage ("" for seeds)
	for _, key := range seedKeys {
		produced[key] = ""
	}

	index := make(map[string]int, len(stages))

	for i, stage := range stages {
		if stage.Name == "" {
			return nil, &DefinitionError{Pipeline: name, Err: errors.New("stage name is required")}
		}

		if _, exists := index[stage.Name]; exists {
			return nil, &DefinitionError{Pipeline: name, Stage: stage.Name, Err: ErrDuplicateStage}
		}

		index[stage.Name] = i

		if stage.Timeout <= 0 {
			return nil, &DefinitionError{Pipeline: name, Stage: stage.Name, Err: ErrInvalidTimeout}
		}

		if stage.MaxRetries < 0 {
			return nil, &DefinitionError{Pipeline: name, Stage: stage.Name, Err: ErrInvalidRetries}
		}

		for _, key := range stage.InputKeys {
			if _, ok := produced[key]; !ok {
				return nil, &DefinitionError{Pipeline: name, Stage: stage.Name, Key: key, Err: ErrUnsatisfiedInput}
			}
		}

		for _, key := range stage.OutputKeys {
			if producer, ok := produced[key]; ok {
				err := ErrDuplicateOutputKey
				if producer == "" {
					err = fmt.Errorf("%w: key is a seed key", ErrDuplicateOutputKey)
				}

				return nil, &DefinitionError{Pipeline: name, Stage: stage.Name, Key: key, Err: err}
			}

			produced[key] = stage.Name
		}
	}

	return &Definition{
		name:     name,
		seedKeys: slices.Clone(seedKeys),
		stages:   slices.Clone(stages),
		index:    index,
	}, nil
}

// Name returns the pipeline name.
func (d *Definition) Name() string {
	return d.name
}

// SeedKeys returns the keys the initial state must carry.
func (d *Definition) SeedKeys() []string {
	return slices.Clone(d.seedKeys)
}

// Stages returns the ordered stage definitions.
func (d *Definition) Stages() []models.StageDefinition {
	return slices.Clone(d.stages)
}

// Len returns the number of stages.
func (d *Definition) Len() int {
	return len(d.stages)
}

// StageIndex returns the position of the named stage, or -1 when unknown.
func (d *Definition) StageIndex(name string) int {
	i, ok := d.index[name]
	if !ok {
		return -1
	}

	return i
}

// OutputKeys returns the union of all stages' declared output keys.
func (d *Definition) OutputKeys() []string {
	var keys []string
	for _, stage := range d.stages {
		keys = append(keys, stage.OutputKeys...)
	}

	return keys
}
