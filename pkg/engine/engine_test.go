package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slidesmith/slidesmith/pkg/models"
	"github.com/slidesmith/slidesmith/pkg/pipeline"
	"github.com/slidesmith/slidesmith/pkg/protocol"
)

// scriptedExecutor returns one scripted result per attempt, repeating the
// last entry once the script runs out.
type scriptedExecutor struct {
	mu      sync.Mutex
	calls   int
	outputs map[string]any
	errs    []error
	sleep   time.Duration
}

func (s *scriptedExecutor) Execute(ctx context.Context, _ models.StateView) (map[string]any, error) {
	s.mu.Lock()
	call := s.calls
	s.calls++
	s.mu.Unlock()

	if s.sleep > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.sleep):
		}
	}

	if call < len(s.errs) && s.errs[call] != nil {
		return nil, s.errs[call]
	}

	return s.outputs, nil
}

func (s *scriptedExecutor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

type mapResolver map[string]protocol.StageExecutor

func (r mapResolver) Resolve(stage models.StageDefinition, _ *slog.Logger) (protocol.StageExecutor, error) {
	executor, ok := r[stage.Name]
	if !ok {
		return nil, errors.New("no executor for " + stage.Name)
	}

	return executor, nil
}

func stageDef(name string, inputs, outputs []string, maxRetries int, idempotent bool) models.StageDefinition {
	return models.StageDefinition{
		Name:       name,
		Type:       "test:" + name,
		InputKeys:  inputs,
		OutputKeys: outputs,
		Timeout:    time.Second,
		MaxRetries: maxRetries,
		Idempotent: idempotent,
	}
}

func newEngine(resolver ExecutorResolver) *Engine {
	return New(resolver, Options{
		BackoffBase: time.Millisecond,
		BackoffCap:  2 * time.Millisecond,
	})
}

func TestRunExecutesStagesInOrder(t *testing.T) {
	def, err := pipeline.New("p", []string{"seed"}, []models.StageDefinition{
		stageDef("a", []string{"seed"}, []string{"x"}, 0, true),
		stageDef("b", []string{"x"}, []string{"y"}, 0, true),
	})
	require.NoError(t, err)

	e := newEngine(mapResolver{
		"a": &scriptedExecutor{outputs: map[string]any{"x": 1}},
		"b": &scriptedExecutor{outputs: map[string]any{"y": 2}},
	})

	var progress []Progress

	result, err := e.Run(context.Background(), def, map[string]any{"seed": "s"}, RunOptions{
		OnProgress: func(p Progress) { progress = append(progress, p) },
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"seed", "x", "y"}, result.State.Keys())
	assert.Equal(t, map[string]int{"a": 1, "b": 1}, result.Attempts)

	require.Len(t, progress, 2)
	assert.Equal(t, Progress{Stage: "a", Completed: 1, Total: 2, Fraction: 0.5}, progress[0])
	assert.Equal(t, Progress{Stage: "b", Completed: 2, Total: 2, Fraction: 1.0}, progress[1])
}

func TestRunRetriesTransientFailures(t *testing.T) {
	def, err := pipeline.New("p", nil, []models.StageDefinition{
		stageDef("flaky", nil, []string{"x"}, 3, true),
	})
	require.NoError(t, err)

	executor := &scriptedExecutor{
		outputs: map[string]any{"x": 1},
		errs: []error{
			protocol.NewTransientError(errors.New("blip")),
			protocol.NewTransientError(errors.New("blip")),
		},
	}

	e := newEngine(mapResolver{"flaky": executor})

	result, err := e.Run(context.Background(), def, map[string]any{}, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Attempts["flaky"])
}

func TestRunAbortsWhenRetryBudgetExhausted(t *testing.T) {
	def, err := pipeline.New("p", nil, []models.StageDefinition{
		stageDef("flaky", nil, []string{"x"}, 1, true),
	})
	require.NoError(t, err)

	executor := &scriptedExecutor{
		outputs: map[string]any{"x": 1},
		errs: []error{
			protocol.NewTransientError(errors.New("blip")),
			protocol.NewTransientError(errors.New("blip")),
		},
	}

	e := newEngine(mapResolver{"flaky": executor})

	_, err = e.Run(context.Background(), def, map[string]any{}, RunOptions{})
	require.Error(t, err)

	failure, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, FailureStage, failure.Kind)
	assert.Equal(t, "flaky", failure.Stage)
	// MaxRetries=1 allows the first attempt plus one retry.
	assert.Equal(t, 2, failure.Attempts)
	assert.Contains(t, failure.Cause.Error(), "retry budget exhausted")
}

func TestRunDoesNotRetryPermanentFailures(t *testing.T) {
	def, err := pipeline.New("p", nil, []models.StageDefinition{
		stageDef("broken", nil, []string{"x"}, 5, true),
	})
	require.NoError(t, err)

	executor := &scriptedExecutor{
		errs: []error{protocol.NewPermanentError(errors.New("bad input"))},
	}

	e := newEngine(mapResolver{"broken": executor})

	_, err = e.Run(context.Background(), def, map[string]any{}, RunOptions{})
	require.Error(t, err)

	failure, _ := AsFailure(err)
	assert.Equal(t, 1, failure.Attempts)
	assert.Equal(t, 1, executor.callCount())
}

func TestRunDoesNotRetryNonIdempotentStages(t *testing.T) {
	def, err := pipeline.New("p", nil, []models.StageDefinition{
		stageDef("oneshot", nil, []string{"x"}, 5, false),
	})
	require.NoError(t, err)

	executor := &scriptedExecutor{
		errs: []error{protocol.NewTransientError(errors.New("blip"))},
	}

	e := newEngine(mapResolver{"oneshot": executor})

	_, err = e.Run(context.Background(), def, map[string]any{}, RunOptions{})
	require.Error(t, err)
	assert.Equal(t, 1, executor.callCount())

	failure, _ := AsFailure(err)
	assert.Contains(t, failure.Cause.Error(), "non-idempotent")
}

func TestRunTreatsStageTimeoutAsTransient(t *testing.T) {
	stage := stageDef("slow", nil, []string{"x"}, 1, true)
	stage.Timeout = 10 * time.Millisecond

	def, err := pipeline.New("p", nil, []models.StageDefinition{stage})
	require.NoError(t, err)

	executor := &scriptedExecutor{outputs: map[string]any{"x": 1}, sleep: 50 * time.Millisecond}

	e := newEngine(mapResolver{"slow": executor})

	_, err = e.Run(context.Background(), def, map[string]any{}, RunOptions{})
	require.Error(t, err)
	// Timed out twice: the first attempt plus the single retry.
	assert.Equal(t, 2, executor.callCount())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunStopsAtStageBoundaryOnCancellation(t *testing.T) {
	def, err := pipeline.New("p", nil, []models.StageDefinition{
		stageDef("a", nil, []string{"x"}, 0, true),
		stageDef("b", []string{"x"}, []string{"y"}, 0, true),
	})
	require.NoError(t, err)

	second := &scriptedExecutor{outputs: map[string]any{"y": 2}}

	cancelled := false

	e := newEngine(mapResolver{
		"a": &scriptedExecutor{outputs: map[string]any{"x": 1}},
		"b": second,
	})

	_, err = e.Run(context.Background(), def, map[string]any{}, RunOptions{
		CancelRequested: func() bool { return cancelled },
		OnProgress:      func(Progress) { cancelled = true },
	})
	require.Error(t, err)
	assert.True(t, IsCancelled(err))
	assert.Equal(t, 0, second.callCount())

	failure, _ := AsFailure(err)
	assert.Contains(t, failure.Partial, "x")
}

func TestRunRejectsMissingSeedKeys(t *testing.T) {
	def, err := pipeline.New("p", []string{"topic"}, []models.StageDefinition{
		stageDef("a", []string{"topic"}, []string{"x"}, 0, true),
	})
	require.NoError(t, err)

	e := newEngine(mapResolver{"a": &scriptedExecutor{outputs: map[string]any{"x": 1}}})

	_, err = e.Run(context.Background(), def, map[string]any{}, RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing seed key")
}

func TestRunReportsStateConflictForUndeclaredOutput(t *testing.T) {
	def, err := pipeline.New("p", nil, []models.StageDefinition{
		stageDef("rogue", nil, []string{"x"}, 0, true),
	})
	require.NoError(t, err)

	e := newEngine(mapResolver{
		"rogue": &scriptedExecutor{outputs: map[string]any{"x": 1, "hidden": 2}},
	})

	_, err = e.Run(context.Background(), def, map[string]any{}, RunOptions{})
	require.Error(t, err)

	failure, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, FailureStateConflict, failure.Kind)
}

func TestRunFollowsForwardDecision(t *testing.T) {
	skipable := stageDef("optional", []string{"x"}, []string{"opt"}, 0, true)
	final := stageDef("final", []string{"x"}, []string{"z"}, 0, true)

	first := stageDef("first", nil, []string{"x"}, 0, true)
	first.Decision = func(_ models.StateView) (string, error) {
		return "final", nil
	}

	def, err := pipeline.New("p", nil, []models.StageDefinition{first, skipable, final})
	require.NoError(t, err)

	optional := &scriptedExecutor{outputs: map[string]any{"opt": 1}}

	var lastProgress Progress

	e := newEngine(mapResolver{
		"first":    &scriptedExecutor{outputs: map[string]any{"x": 1}},
		"optional": optional,
		"final":    &scriptedExecutor{outputs: map[string]any{"z": 3}},
	})

	result, err := e.Run(context.Background(), def, map[string]any{}, RunOptions{
		OnProgress: func(p Progress) { lastProgress = p },
	})
	require.NoError(t, err)
	assert.Equal(t, 0, optional.callCount())
	assert.False(t, result.State.Has("opt"))
	// The run ended, so the final fraction is 1.0 even though one stage
	// was skipped.
	assert.Equal(t, 1.0, lastProgress.Fraction)
}

func TestRunRejectsBackwardDecision(t *testing.T) {
	second := stageDef("second", []string{"x"}, []string{"y"}, 0, true)
	second.Decision = func(_ models.StateView) (string, error) {
		return "first", nil
	}

	def, err := pipeline.New("p", nil, []models.StageDefinition{
		stageDef("first", nil, []string{"x"}, 0, true),
		second,
	})
	require.NoError(t, err)

	e := newEngine(mapResolver{
		"first":  &scriptedExecutor{outputs: map[string]any{"x": 1}},
		"second": &scriptedExecutor{outputs: map[string]any{"y": 2}},
	})

	_, err = e.Run(context.Background(), def, map[string]any{}, RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "earlier stage")
}

func TestRunEndsEarlyOnEmptyDecisionTarget(t *testing.T) {
	first := stageDef("first", nil, []string{"x"}, 0, true)
	first.Decision = func(_ models.StateView) (string, error) {
		return "", nil
	}

	rest := stageDef("rest", []string{"x"}, []string{"y"}, 0, true)

	def, err := pipeline.New("p", nil, []models.StageDefinition{first, rest})
	require.NoError(t, err)

	restExec := &scriptedExecutor{outputs: map[string]any{"y": 2}}

	e := newEngine(mapResolver{
		"first": &scriptedExecutor{outputs: map[string]any{"x": 1}},
		"rest":  restExec,
	})

	result, err := e.Run(context.Background(), def, map[string]any{}, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, restExec.callCount())
	assert.True(t, result.State.Has("x"))
}
