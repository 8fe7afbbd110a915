package stages

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slidesmith/slidesmith/pkg/generation"
	"github.com/slidesmith/slidesmith/pkg/models"
	"github.com/slidesmith/slidesmith/pkg/protocol"
)

const researchSystemInstruction = `You are a research assistant preparing material for a slide
deck. For each section of the plan, produce 2-4 concise factual notes. Reply as JSON:
{"sections": {"<section heading>": ["note", ...]}}
Reply with JSON only.`

// ResearchStage gathers supporting notes for every planned section.
type ResearchStage struct {
	client generation.Client
	logger *slog.Logger
}

func NewResearchStage(client generation.Client, logger *slog.Logger) *ResearchStage {
	return &ResearchStage{client: client, logger: logger.With("stage_type", TypeResearch)}
}

func (s *ResearchStage) Execute(ctx context.Context, view models.StateView) (map[string]any, error) {
	topic := view.String(models.StateKeyTopic)
	plan := planFrom(view)

	contextText := fmt.Sprintf("Topic: %s\nPlan: %s", topic, compactJSON(plan))

	reply, err := s.client.Generate(ctx, researchSystemInstruction, contextText)
	if err != nil {
		return nil, classify(err)
	}

	var notes models.ResearchNotes
	if !decodeReply(reply, &notes) || len(notes.Sections) == 0 {
		s.logger.WarnContext(ctx, "Research reply was not parsable, using plan-derived fallback", "topic", topic)

		notes = fallbackResearch(plan)
	}

	return map[string]any{models.StateKeyResearch: notes}, nil
}

func fallbackResearch(plan models.DeckPlan) models.ResearchNotes {
	sections := make(map[string][]string, len(plan.Sections))
	for _, section := range plan.Sections {
		sections[section.Heading] = []string{section.Intent}
	}

	return models.ResearchNotes{Sections: sections}
}

// ResearchFactory creates research stage executors.
type ResearchFactory struct {
	client generation.Client
}

func NewResearchFactory(client generation.Client) *ResearchFactory {
	return &ResearchFactory{client: client}
}

func (f *ResearchFactory) ID() string {
	return TypeResearch
}

func (f *ResearchFactory) Create(_ map[string]any, logger *slog.Logger) (protocol.StageExecutor, error) {
	return NewResearchStage(f.client, logger), nil
}
