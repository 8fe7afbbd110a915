// Package stages implements the built-in deck pipeline stages. Each stage
// reads its declared input keys from the state view, makes one call to the
// generation capability, and parses the reply into the structured value it
// writes back. Prompt content mirrors what each stage needs; retry policy is
// the engine's concern.
package stages

import (
	"encoding/json"
	"strings"

	"github.com/slidesmith/slidesmith/pkg/generation"
	"github.com/slidesmith/slidesmith/pkg/models"
	"github.com/slidesmith/slidesmith/pkg/protocol"
)

// Stage type identifiers used in pipeline configs.
const (
	TypePlan     = "deck:plan"
	TypeResearch = "deck:research"
	TypeContent  = "deck:content"
	TypeLayout   = "deck:layout"
	TypeReview   = "deck:review"
)

// classify maps a generation failure onto the stage error taxonomy so the
// engine can apply its retry policy.
func classify(err error) error {
	if generation.IsTransient(err) {
		return protocol.NewTransientError(err)
	}

	return protocol.NewPermanentError(err)
}

// decodeReply extracts the first JSON object or array from a model reply
// (tolerating surrounding prose and markdown fences) and unmarshals it into
// target. Returns false when no parsable JSON is present.
func decodeReply(reply string, target any) bool {
	cleaned := strings.TrimSpace(reply)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	start := strings.IndexAny(cleaned, "{[")
	if start == -1 {
		return false
	}

	end := strings.LastIndexAny(cleaned, "}]")
	if end == -1 || end < start {
		return false
	}

	return json.Unmarshal([]byte(cleaned[start:end+1]), target) == nil
}

// requirementsFrom reads the seed requirements from a view, tolerating both
// the typed struct and a decoded JSON map.
func requirementsFrom(view models.StateView) models.DeckRequirements {
	value, ok := view.Get(models.StateKeyRequirements)
	if !ok {
		return models.DeckRequirements{}
	}

	switch req := value.(type) {
	case models.DeckRequirements:
		return req
	case *models.DeckRequirements:
		return *req
	case map[string]any:
		var decoded models.DeckRequirements

		raw, err := json.Marshal(req)
		if err == nil {
			_ = json.Unmarshal(raw, &decoded)
		}

		return decoded
	default:
		return models.DeckRequirements{}
	}
}

// planFrom reads the plan produced by the plan stage from a view.
func planFrom(view models.StateView) models.DeckPlan {
	value, ok := view.Get(models.StateKeyPlan)
	if !ok {
		return models.DeckPlan{}
	}

	switch plan := value.(type) {
	case models.DeckPlan:
		return plan
	case *models.DeckPlan:
		return *plan
	default:
		return models.DeckPlan{}
	}
}

// slidesFrom reads the slide list produced by the content stage from a view.
func slidesFrom(view models.StateView) []models.Slide {
	value, ok := view.Get(models.StateKeySlides)
	if !ok {
		return nil
	}

	slides, _ := value.([]models.Slide)

	return slides
}

func compactJSON(value any) string {
	raw, err := json.Marshal(value)
	if err != nil {
		return "{}"
	}

	return string(raw)
}
