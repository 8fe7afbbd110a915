package stages

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slidesmith/slidesmith/pkg/generation"
	"github.com/slidesmith/slidesmith/pkg/models"
	"github.com/slidesmith/slidesmith/pkg/protocol"
)

const reviewSystemInstruction = `You are a quality reviewer for slide decks. Check the slides
against the plan for coverage, clarity, and tone consistency. Reply as JSON:
{"approved": bool, "score": float between 0 and 1, "findings": [string]}
Reply with JSON only.`

// ReviewStage scores the assembled deck against the plan. A score below the
// configured threshold withholds approval but never fails the stage; the
// report is part of the deck's output.
type ReviewStage struct {
	client    generation.Client
	logger    *slog.Logger
	threshold float64
}

func NewReviewStage(client generation.Client, threshold float64, logger *slog.Logger) *ReviewStage {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.6
	}

	return &ReviewStage{client: client, threshold: threshold, logger: logger.With("stage_type", TypeReview)}
}

func (s *ReviewStage) Execute(ctx context.Context, view models.StateView) (map[string]any, error) {
	plan := planFrom(view)
	slides := slidesFrom(view)

	contextText := fmt.Sprintf("Plan: %s\nSlides: %s", compactJSON(plan), compactJSON(slides))

	reply, err := s.client.Generate(ctx, reviewSystemInstruction, contextText)
	if err != nil {
		return nil, classify(err)
	}

	var report models.ReviewReport
	if !decodeReply(reply, &report) {
		s.logger.WarnContext(ctx, "Review reply was not parsable, approving with a finding")

		report = models.ReviewReport{
			Approved: true,
			Score:    s.threshold,
			Findings: []string{"automated review unavailable, deck not scored"},
		}
	}

	if report.Score < s.threshold {
		report.Approved = false
	}

	return map[string]any{models.StateKeyReview: report}, nil
}

// ReviewFactory creates review stage executors. The stage config may carry a
// numeric "threshold".
type ReviewFactory struct {
	client generation.Client
}

func NewReviewFactory(client generation.Client) *ReviewFactory {
	return &ReviewFactory{client: client}
}

func (f *ReviewFactory) ID() string {
	return TypeReview
}

func (f *ReviewFactory) Create(config map[string]any, logger *slog.Logger) (protocol.StageExecutor, error) {
	threshold, _ := config["threshold"].(float64)

	return NewReviewStage(f.client, threshold, logger), nil
}
