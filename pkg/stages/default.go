package stages

import (
	"time"

	"github.com/slidesmith/slidesmith/pkg/models"
	"github.com/slidesmith/slidesmith/pkg/pipeline"
)

// DefaultPipeline is the five-stage deck pipeline: plan, research, content,
// layout, review. All stages are idempotent; timeouts and retry budgets
// reflect one generation call per stage.
func DefaultPipeline() (*pipeline.Definition, error) {
	seedKeys := []string{models.StateKeyTopic, models.StateKeyRequirements}

	stages := []models.StageDefinition{
		{
			Name:       "plan",
			Type:       TypePlan,
			InputKeys:  []string{models.StateKeyTopic, models.StateKeyRequirements},
			OutputKeys: []string{models.StateKeyPlan},
			Timeout:    60 * time.Second,
			MaxRetries: 2,
			Idempotent: true,
		},
		{
			Name:       "research",
			Type:       TypeResearch,
			InputKeys:  []string{models.StateKeyTopic, models.StateKeyPlan},
			OutputKeys: []string{models.StateKeyResearch},
			Timeout:    90 * time.Second,
			MaxRetries: 2,
			Idempotent: true,
		},
		{
			Name:       "content",
			Type:       TypeContent,
			InputKeys:  []string{models.StateKeyRequirements, models.StateKeyPlan, models.StateKeyResearch},
			OutputKeys: []string{models.StateKeySlides},
			Timeout:    120 * time.Second,
			MaxRetries: 2,
			Idempotent: true,
		},
		{
			Name:       "layout",
			Type:       TypeLayout,
			InputKeys:  []string{models.StateKeySlides},
			OutputKeys: []string{models.StateKeyLayout},
			Timeout:    60 * time.Second,
			MaxRetries: 2,
			Idempotent: true,
		},
		{
			Name:       "review",
			Type:       TypeReview,
			InputKeys:  []string{models.StateKeyPlan, models.StateKeySlides},
			OutputKeys: []string{models.StateKeyReview},
			Timeout:    60 * time.Second,
			MaxRetries: 2,
			Idempotent: true,
		},
	}

	return pipeline.New("deck", seedKeys, stages)
}
