package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/slidesmith/slidesmith/pkg/models"
	"github.com/slidesmith/slidesmith/pkg/otelhelper"
)

// FileSink renders decks as Markdown documents under a local artifacts
// directory, one file per job.
type FileSink struct {
	root   string
	logger *slog.Logger
	tracer trace.Tracer
}

// NewFileSink creates a sink writing under root, creating it if needed.
func NewFileSink(root string, logger *slog.Logger) (*FileSink, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifacts directory: %w", err)
	}

	return &FileSink{
		root:   root,
		logger: logger.With("module", "export"),
		tracer: otel.Tracer("slidesmith/export"),
	}, nil
}

func (s *FileSink) Export(ctx context.Context, jobID string, state *models.WorkflowState) (*models.Artifact, error) {
	ctx, span := s.tracer.Start(ctx, "sink.export",
		trace.WithAttributes(attribute.String(otelhelper.JobIDKey, jobID)))
	defer span.End()

	document, err := renderDeck(state)
	if err != nil {
		wrapped := &ExportError{JobID: jobID, Err: err}
		otelhelper.SetError(span, wrapped)

		return nil, wrapped
	}

	artifactID := uuid.New().String()
	path := filepath.Join(s.root, jobID+".md")

	err = os.WriteFile(path, []byte(document), 0o644)
	if err != nil {
		wrapped := &ExportError{JobID: jobID, Err: fmt.Errorf("failed to write artifact: %w", err)}
		otelhelper.SetError(span, wrapped)

		return nil, wrapped
	}

	span.SetAttributes(attribute.String(otelhelper.ArtifactIDKey, artifactID))
	s.logger.InfoContext(ctx, "Artifact written", "job_id", jobID, "path", path, "bytes", len(document))

	return &models.Artifact{
		ID:          artifactID,
		Path:        path,
		ContentType: "text/markdown",
		SizeBytes:   int64(len(document)),
	}, nil
}

// Remove deletes a previously exported artifact. Missing files are not an
// error; retention may race with manual cleanup.
func (s *FileSink) Remove(ctx context.Context, artifact models.Artifact) error {
	err := os.Remove(artifact.Path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove artifact %s: %w", artifact.ID, err)
	}

	s.logger.InfoContext(ctx, "Artifact removed", "artifact_id", artifact.ID, "path", artifact.Path)

	return nil
}

// renderDeck builds the Markdown document from the final state. The slide
// list is the one mandatory key; plan, layout, and review enrich the output
// when present.
func renderDeck(state *models.WorkflowState) (string, error) {
	value, ok := state.Get(models.StateKeySlides)
	if !ok {
		return "", fmt.Errorf("%w: missing %q", ErrNotExportable, models.StateKeySlides)
	}

	slides, ok := value.([]models.Slide)
	if !ok || len(slides) == 0 {
		return "", fmt.Errorf("%w: no slides produced", ErrNotExportable)
	}

	var layout models.DeckLayout
	if v, ok := state.Get(models.StateKeyLayout); ok {
		layout, _ = v.(models.DeckLayout)
	}

	title := deckTitle(state, slides)

	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n", title)
	if layout.Theme != "" {
		fmt.Fprintf(&b, "\n> theme: %s\n", layout.Theme)
	}

	section := ""

	for i, slide := range slides {
		if slide.Section != "" && slide.Section != section {
			section = slide.Section
			fmt.Fprintf(&b, "\n---\n\n## %s\n", section)
		}

		fmt.Fprintf(&b, "\n### %s\n\n", slide.Title)

		if i < len(layout.Slides) && layout.Slides[i] != "" {
			fmt.Fprintf(&b, "_layout: %s_\n\n", layout.Slides[i])
		}

		for _, bullet := range slide.Bullets {
			fmt.Fprintf(&b, "- %s\n", bullet)
		}

		if slide.Notes != "" {
			fmt.Fprintf(&b, "\nSpeaker notes: %s\n", slide.Notes)
		}
	}

	if v, ok := state.Get(models.StateKeyReview); ok {
		if report, ok := v.(models.ReviewReport); ok {
			fmt.Fprintf(&b, "\n---\n\n## Review\n\nApproved: %t (score %.2f)\n", report.Approved, report.Score)

			for _, finding := range report.Findings {
				fmt.Fprintf(&b, "- %s\n", finding)
			}
		}
	}

	return b.String(), nil
}

func deckTitle(state *models.WorkflowState, slides []models.Slide) string {
	if v, ok := state.Get(models.StateKeyPlan); ok {
		if plan, ok := v.(models.DeckPlan); ok && plan.Title != "" {
			return plan.Title
		}
	}

	if topic, ok := state.Get(models.StateKeyTopic); ok {
		if s, ok := topic.(string); ok && s != "" {
			return s
		}
	}

	return slides[0].Title
}
