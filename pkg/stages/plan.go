package stages

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slidesmith/slidesmith/pkg/generation"
	"github.com/slidesmith/slidesmith/pkg/models"
	"github.com/slidesmith/slidesmith/pkg/protocol"
)

const planSystemInstruction = `You are a presentation planner. Given a topic and audience
requirements, produce a deck outline as JSON with the shape:
{"title": string, "sections": [{"heading": string, "intent": string, "slide_count": int}], "slide_budget": int}
The slide counts must sum to slide_budget. Reply with JSON only.`

// PlanStage turns the seed topic and requirements into a structured deck
// plan. It is the first stage of the default pipeline.
type PlanStage struct {
	client generation.Client
	logger *slog.Logger
}

func NewPlanStage(client generation.Client, logger *slog.Logger) *PlanStage {
	return &PlanStage{client: client, logger: logger.With("stage_type", TypePlan)}
}

func (s *PlanStage) Execute(ctx context.Context, view models.StateView) (map[string]any, error) {
	topic := view.String(models.StateKeyTopic)
	req := requirementsFrom(view)

	contextText := fmt.Sprintf("Topic: %s\nAudience: %s\nTone: %s\nLanguage: %s\nMaximum slides: %d",
		topic, req.Audience, req.Tone, req.Language, req.MaxSlides)

	reply, err := s.client.Generate(ctx, planSystemInstruction, contextText)
	if err != nil {
		return nil, classify(err)
	}

	var plan models.DeckPlan
	if !decodeReply(reply, &plan) || len(plan.Sections) == 0 {
		s.logger.WarnContext(ctx, "Plan reply was not parsable, using outline fallback", "topic", topic)

		plan = fallbackPlan(topic, req)
	}

	plan = clampPlan(plan, req.MaxSlides)

	return map[string]any{models.StateKeyPlan: plan}, nil
}

// fallbackPlan builds a minimal three-section outline when the model reply
// cannot be parsed. Keeps demo and canned runs moving.
func fallbackPlan(topic string, req models.DeckRequirements) models.DeckPlan {
	budget := req.MaxSlides
	if budget <= 0 || budget > 6 {
		budget = 6
	}

	return models.DeckPlan{
		Title: topic,
		Sections: []models.DeckSection{
			{Heading: "Introduction", Intent: "Frame the topic and why it matters", SlideCount: 1},
			{Heading: topic, Intent: "Core material", SlideCount: budget - 2},
			{Heading: "Conclusion", Intent: "Summarise and call to action", SlideCount: 1},
		},
		SlideBudget: budget,
	}
}

// clampPlan enforces the requested slide ceiling by trimming trailing
// section budgets.
func clampPlan(plan models.DeckPlan, maxSlides int) models.DeckPlan {
	if maxSlides <= 0 {
		return plan
	}

	total := 0
	sections := make([]models.DeckSection, 0, len(plan.Sections))

	for _, section := range plan.Sections {
		if section.SlideCount < 1 {
			section.SlideCount = 1
		}

		if total+section.SlideCount > maxSlides {
			section.SlideCount = maxSlides - total
		}

		if section.SlideCount == 0 {
			break
		}

		sections = append(sections, section)
		total += section.SlideCount
	}

	plan.Sections = sections
	plan.SlideBudget = total

	return plan
}

// PlanFactory creates plan stage executors.
type PlanFactory struct {
	client generation.Client
}

func NewPlanFactory(client generation.Client) *PlanFactory {
	return &PlanFactory{client: client}
}

func (f *PlanFactory) ID() string {
	return TypePlan
}

func (f *PlanFactory) Create(_ map[string]any, logger *slog.Logger) (protocol.StageExecutor, error) {
	return NewPlanStage(f.client, logger), nil
}
