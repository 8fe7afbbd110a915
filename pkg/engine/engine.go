// Package engine executes a validated pipeline definition against an initial
// state, stage by stage, enforcing per-stage timeout and retry policy. The
// engine owns the run's WorkflowState exclusively and knows nothing about
// job identifiers; progress reaches the job manager only through the
// OnProgress callback.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/slidesmith/slidesmith/pkg/models"
	"github.com/slidesmith/slidesmith/pkg/otelhelper"
	"github.com/slidesmith/slidesmith/pkg/pipeline"
	"github.com/slidesmith/slidesmith/pkg/protocol"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultBackoffBase = 200 * time.Millisecond
	defaultBackoffCap  = 5 * time.Second
)

// ExecutorResolver maps a stage definition to the executor that implements
// it. The registry is the production implementation.
type ExecutorResolver interface {
	Resolve(stage models.StageDefinition, logger *slog.Logger) (protocol.StageExecutor, error)
}

// Progress describes one stage transition, reported after every stage
// completes.
type Progress struct {
	Stage     string
	Completed int
	Total     int
	Fraction  float64
}

// ProgressFunc receives progress updates. It is called synchronously from
// the run loop and must not block.
type ProgressFunc func(Progress)

// RunOptions carries the per-run hooks.
type RunOptions struct {
	// OnProgress, when set, is invoked after every stage transition.
	OnProgress ProgressFunc
	// CancelRequested, when set, is checked before each stage starts. A
	// stage already dispatched runs to completion or its own timeout; no
	// further stages start once cancellation is observed.
	CancelRequested func() bool
}

// Result is a successful run: the final state and the per-stage attempt
// counts.
type Result struct {
	State    *models.WorkflowState
	Attempts map[string]int
}

// Options configures an Engine.
type Options struct {
	Logger *slog.Logger
	// BackoffBase overrides the initial retry delay (default 200ms).
	BackoffBase time.Duration
	// BackoffCap bounds the exponential retry delay (default 5s).
	BackoffCap time.Duration
}

// Engine runs pipelines. It is stateless across runs and safe for
// concurrent use.
type Engine struct {
	resolver    ExecutorResolver
	logger      *slog.Logger
	tracer      trace.Tracer
	backoffBase time.Duration
	backoffCap  time.Duration
}

// New creates an Engine backed by the given executor resolver.
func New(resolver ExecutorResolver, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	backoffBase := opts.BackoffBase
	if backoffBase <= 0 {
		backoffBase = defaultBackoffBase
	}

	backoffCap := opts.BackoffCap
	if backoffCap <= 0 {
		backoffCap = defaultBackoffCap
	}

	return &Engine{
		resolver:    resolver,
		logger:      logger.With("module", "engine"),
		tracer:      otel.Tracer("slidesmith/engine"),
		backoffBase: backoffBase,
		backoffCap:  backoffCap,
	}
}

// Run executes the pipeline against the seed values. On success it returns
// the final state containing exactly the seeds plus the union of the run
// stages' declared output keys; on failure it returns a *WorkflowFailure
// carrying the failing stage, the cause, and the partial state.
func (e *Engine) Run(ctx context.Context, def *pipeline.Definition, seed map[string]any, opts RunOptions) (*Result, error) {
	for _, key := range def.SeedKeys() {
		if _, ok := seed[key]; !ok {
			return nil, &WorkflowFailure{
				Pipeline: def.Name(),
				Kind:     FailureStage,
				Cause:    fmt.Errorf("missing seed key %q", key),
				Partial:  map[string]any{},
			}
		}
	}

	state := models.NewWorkflowState(seed)
	stages := def.Stages()
	total := def.Len()
	attempts := make(map[string]int, total)
	completed := 0

	logger := e.logger.With("pipeline", def.Name())
	logger.InfoContext(ctx, "Starting pipeline run", "stages", total)

	i := 0
	for i < len(stages) {
		if opts.CancelRequested != nil && opts.CancelRequested() {
			logger.InfoContext(ctx, "Cancellation observed, stopping run", "next_stage", stages[i].Name)

			return nil, &WorkflowFailure{
				Pipeline: def.Name(),
				Stage:    stages[i].Name,
				Kind:     FailureCancelled,
				Cause:    errors.New("cancellation requested"),
				Partial:  state.Snapshot(),
			}
		}

		stage := stages[i]

		view, err := state.View(stage.InputKeys)
		if err != nil {
			// Unreachable for a validated definition; treated as a defect.
			return nil, &WorkflowFailure{
				Pipeline: def.Name(),
				Stage:    stage.Name,
				Kind:     FailureStateConflict,
				Cause:    err,
				Partial:  state.Snapshot(),
			}
		}

		outputs, stageAttempts, err := e.executeStage(ctx, def.Name(), stage, view)
		attempts[stage.Name] = stageAttempts

		if err != nil {
			logger.ErrorContext(ctx, "Stage failed",
				"stage", stage.Name,
				"attempts", stageAttempts,
				"error", err,
			)

			return nil, &WorkflowFailure{
				Pipeline: def.Name(),
				Stage:    stage.Name,
				Kind:     FailureStage,
				Attempts: stageAttempts,
				Cause:    err,
				Partial:  state.Snapshot(),
			}
		}

		err = state.Merge(stage.Name, stage.OutputKeys, outputs)
		if err != nil {
			// A merge conflict is a bug in the stage, not a user-facing
			// failure; it still aborts the run.
			logger.ErrorContext(ctx, "Stage returned conflicting outputs", "stage", stage.Name, "error", err)

			return nil, &WorkflowFailure{
				Pipeline: def.Name(),
				Stage:    stage.Name,
				Kind:     FailureStateConflict,
				Attempts: stageAttempts,
				Cause:    err,
				Partial:  state.Snapshot(),
			}
		}

		completed++

		next, err := e.nextStage(def, i, stage, state)
		if err != nil {
			return nil, &WorkflowFailure{
				Pipeline: def.Name(),
				Stage:    stage.Name,
				Kind:     FailureStage,
				Attempts: stageAttempts,
				Cause:    err,
				Partial:  state.Snapshot(),
			}
		}

		fraction := float64(completed) / float64(total)
		if next == len(stages) {
			fraction = 1.0
		}

		if opts.OnProgress != nil {
			opts.OnProgress(Progress{
				Stage:     stage.Name,
				Completed: completed,
				Total:     total,
				Fraction:  fraction,
			})
		}

		logger.InfoContext(ctx, "Stage completed",
			"stage", stage.Name,
			"attempts", stageAttempts,
			"completed", completed,
			"total", total,
		)

		i = next
	}

	logger.InfoContext(ctx, "Pipeline run completed", "stages_run", completed)

	return &Result{State: state, Attempts: attempts}, nil
}

// nextStage picks the index of the next stage: the stage's decision function
// when present, otherwise the next stage in order. Decisions may only jump
// forward; a backward or unknown target would break the write-once key
// dependency ordering.
func (e *Engine) nextStage(def *pipeline.Definition, current int, stage models.StageDefinition, state *models.WorkflowState) (int, error) {
	if stage.Decision == nil {
		return current + 1, nil
	}

	view, err := state.View(state.Keys())
	if err != nil {
		return 0, err
	}

	target, err := stage.Decision(view)
	if err != nil {
		return 0, fmt.Errorf("decision after stage %s: %w", stage.Name, err)
	}

	if target == "" {
		return def.Len(), nil
	}

	idx := def.StageIndex(target)
	if idx == -1 {
		return 0, fmt.Errorf("decision after stage %s selected unknown stage %q", stage.Name, target)
	}

	if idx <= current {
		return 0, fmt.Errorf("decision after stage %s selected earlier stage %q", stage.Name, target)
	}

	return idx, nil
}

// executeStage runs one stage under its timeout, retrying Transient failures
// of idempotent stages with exponential backoff until the retry budget is
// exhausted.
func (e *Engine) executeStage(ctx context.Context, pipelineName string, stage models.StageDefinition, view models.StateView) (map[string]any, int, error) {
	executor, err := e.resolver.Resolve(stage, e.logger)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to resolve stage %s: %w", stage.Name, err)
	}

	backoff := e.backoffBase
	attempt := 0

	for {
		attempt++

		outputs, err := e.executeAttempt(ctx, pipelineName, stage, executor, view, attempt)
		if err == nil {
			return outputs, attempt, nil
		}

		if protocol.KindOf(err) == protocol.Permanent {
			return nil, attempt, err
		}

		if !stage.Idempotent {
			return nil, attempt, fmt.Errorf("transient failure on non-idempotent stage: %w", err)
		}

		if attempt > stage.MaxRetries {
			return nil, attempt, fmt.Errorf("retry budget exhausted: %w", err)
		}

		e.logger.WarnContext(ctx, "Stage attempt failed, retrying",
			"stage", stage.Name,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, attempt, ctx.Err()
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, e.backoffCap)
	}
}

func (e *Engine) executeAttempt(ctx context.Context, pipelineName string, stage models.StageDefinition, executor protocol.StageExecutor, view models.StateView, attempt int) (map[string]any, error) {
	spanCtx, span := otelhelper.StartSpan(ctx, e.tracer, "stage."+stage.Name,
		attribute.String(otelhelper.PipelineNameKey, pipelineName),
		attribute.String(otelhelper.StageNameKey, stage.Name),
		attribute.String(otelhelper.StageTypeKey, stage.Type),
		attribute.Int(otelhelper.StageAttemptKey, attempt),
	)
	defer span.End()

	stageCtx, cancel := context.WithTimeout(spanCtx, stage.Timeout)
	defer cancel()

	outputs, err := executor.Execute(stageCtx, view)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	return outputs, nil
}
