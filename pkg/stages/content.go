package stages

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slidesmith/slidesmith/pkg/generation"
	"github.com/slidesmith/slidesmith/pkg/models"
	"github.com/slidesmith/slidesmith/pkg/protocol"
)

const contentSystemInstruction = `You are a slide copywriter. Using the plan and research notes,
write the full slide set. Reply as a JSON array of slides:
[{"title": string, "bullets": [string], "notes": string, "section": string, "layout_hint": string}]
Every bullet is one short sentence. layout_hint is one of "title", "bullets", "two-column",
"quote". Reply with JSON only.`

// ContentStage writes the slide bodies from the plan and research notes.
type ContentStage struct {
	client generation.Client
	logger *slog.Logger
}

func NewContentStage(client generation.Client, logger *slog.Logger) *ContentStage {
	return &ContentStage{client: client, logger: logger.With("stage_type", TypeContent)}
}

func (s *ContentStage) Execute(ctx context.Context, view models.StateView) (map[string]any, error) {
	plan := planFrom(view)
	req := requirementsFrom(view)

	contextText := fmt.Sprintf("Plan: %s\nResearch: %s\nTone: %s\nLanguage: %s",
		compactJSON(plan), compactJSON(viewValue(view, models.StateKeyResearch)), req.Tone, req.Language)

	reply, err := s.client.Generate(ctx, contentSystemInstruction, contextText)
	if err != nil {
		return nil, classify(err)
	}

	var slides []models.Slide
	if !decodeReply(reply, &slides) || len(slides) == 0 {
		s.logger.WarnContext(ctx, "Content reply was not parsable, deriving slides from plan", "plan_title", plan.Title)

		slides = fallbackSlides(plan)
	}

	if plan.SlideBudget > 0 && len(slides) > plan.SlideBudget {
		slides = slides[:plan.SlideBudget]
	}

	return map[string]any{models.StateKeySlides: slides}, nil
}

func viewValue(view models.StateView, key string) any {
	value, _ := view.Get(key)

	return value
}

func fallbackSlides(plan models.DeckPlan) []models.Slide {
	slides := make([]models.Slide, 0, plan.SlideBudget)

	for _, section := range plan.Sections {
		for i := range section.SlideCount {
			title := section.Heading
			if section.SlideCount > 1 {
				title = fmt.Sprintf("%s (%d)", section.Heading, i+1)
			}

			slides = append(slides, models.Slide{
				Title:      title,
				Bullets:    []string{section.Intent},
				Section:    section.Heading,
				LayoutHint: "bullets",
			})
		}
	}

	return slides
}

// ContentFactory creates content stage executors.
type ContentFactory struct {
	client generation.Client
}

func NewContentFactory(client generation.Client) *ContentFactory {
	return &ContentFactory{client: client}
}

func (f *ContentFactory) ID() string {
	return TypeContent
}

func (f *ContentFactory) Create(_ map[string]any, logger *slog.Logger) (protocol.StageExecutor, error) {
	return NewContentStage(f.client, logger), nil
}
