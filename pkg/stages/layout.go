package stages

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slidesmith/slidesmith/pkg/generation"
	"github.com/slidesmith/slidesmith/pkg/models"
	"github.com/slidesmith/slidesmith/pkg/protocol"
)

const layoutSystemInstruction = `You are a presentation designer. Assign a visual layout to each
slide and pick an overall theme. Reply as JSON:
{"theme": string, "slides": ["<layout per slide, in order>"]}
Valid layouts: "title", "bullets", "two-column", "quote", "section-break". Reply with JSON only.`

// Themes the layout stage may fall back to when the reply omits one.
const defaultTheme = "clean-light"

// LayoutStage assigns per-slide layouts and a deck theme.
type LayoutStage struct {
	client generation.Client
	logger *slog.Logger
	theme  string
}

func NewLayoutStage(client generation.Client, theme string, logger *slog.Logger) *LayoutStage {
	if theme == "" {
		theme = defaultTheme
	}

	return &LayoutStage{client: client, theme: theme, logger: logger.With("stage_type", TypeLayout)}
}

func (s *LayoutStage) Execute(ctx context.Context, view models.StateView) (map[string]any, error) {
	slides := slidesFrom(view)

	contextText := fmt.Sprintf("Slides: %s\nPreferred theme: %s", compactJSON(slides), s.theme)

	reply, err := s.client.Generate(ctx, layoutSystemInstruction, contextText)
	if err != nil {
		return nil, classify(err)
	}

	var layout models.DeckLayout
	if !decodeReply(reply, &layout) {
		s.logger.WarnContext(ctx, "Layout reply was not parsable, using slide hints", "slides", len(slides))
	}

	layout = normalizeLayout(layout, slides, s.theme)

	return map[string]any{models.StateKeyLayout: layout}, nil
}

// normalizeLayout guarantees exactly one layout entry per slide, falling back
// to each slide's own hint when the reply is short, absent, or oversized.
func normalizeLayout(layout models.DeckLayout, slides []models.Slide, theme string) models.DeckLayout {
	if layout.Theme == "" {
		layout.Theme = theme
	}

	normalized := make([]string, len(slides))
	for i, slide := range slides {
		if i < len(layout.Slides) && layout.Slides[i] != "" {
			normalized[i] = layout.Slides[i]

			continue
		}

		if slide.LayoutHint != "" {
			normalized[i] = slide.LayoutHint
		} else {
			normalized[i] = "bullets"
		}
	}

	layout.Slides = normalized

	return layout
}

// LayoutFactory creates layout stage executors. The stage config may carry a
// "theme" override.
type LayoutFactory struct {
	client generation.Client
}

func NewLayoutFactory(client generation.Client) *LayoutFactory {
	return &LayoutFactory{client: client}
}

func (f *LayoutFactory) ID() string {
	return TypeLayout
}

func (f *LayoutFactory) Create(config map[string]any, logger *slog.Logger) (protocol.StageExecutor, error) {
	theme, _ := config["theme"].(string)

	return NewLayoutStage(f.client, theme, logger), nil
}
