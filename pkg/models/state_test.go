package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkflowStateSeedsInSortedOrder(t *testing.T) {
	state := NewWorkflowState(map[string]any{"topic": "t", "requirements": DeckRequirements{}})

	assert.Equal(t, []string{"requirements", "topic"}, state.Keys())
	assert.Equal(t, 2, state.Len())
	assert.True(t, state.Has("topic"))

	value, ok := state.Get("topic")
	require.True(t, ok)
	assert.Equal(t, "t", value)
}

func TestMergeWritesDeclaredKeysOnce(t *testing.T) {
	state := NewWorkflowState(map[string]any{"topic": "t"})

	err := state.Merge("plan", []string{"plan"}, map[string]any{"plan": DeckPlan{Title: "x"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"topic", "plan"}, state.Keys())
}

func TestMergeRejectsUndeclaredKey(t *testing.T) {
	state := NewWorkflowState(nil)

	err := state.Merge("plan", []string{"plan"}, map[string]any{"sneaky": 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKeyConflict)

	var conflict *StateConflictError

	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "plan", conflict.Stage)
	assert.Equal(t, "sneaky", conflict.Key)

	// A failed merge leaves the state untouched.
	assert.Equal(t, 0, state.Len())
}

func TestMergeRejectsRewrite(t *testing.T) {
	state := NewWorkflowState(map[string]any{"topic": "t"})

	err := state.Merge("rogue", []string{"topic"}, map[string]any{"topic": "other"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKeyConflict)

	value, _ := state.Get("topic")
	assert.Equal(t, "t", value)
}

func TestMergeIsAtomicAcrossKeys(t *testing.T) {
	state := NewWorkflowState(map[string]any{"existing": 1})

	err := state.Merge("s", []string{"a", "existing"}, map[string]any{"a": 1, "existing": 2})
	require.Error(t, err)

	// Neither key lands when one conflicts.
	assert.False(t, state.Has("a"))
}

func TestViewExposesOnlyRequestedKeys(t *testing.T) {
	state := NewWorkflowState(map[string]any{"topic": "t", "requirements": DeckRequirements{}})

	view, err := state.View([]string{"topic"})
	require.NoError(t, err)

	assert.Equal(t, []string{"topic"}, view.Keys())
	assert.Equal(t, "t", view.String("topic"))

	_, ok := view.Get("requirements")
	assert.False(t, ok)
}

func TestViewRequiresPresentKeys(t *testing.T) {
	state := NewWorkflowState(nil)

	_, err := state.View([]string{"missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestSnapshotIsDetached(t *testing.T) {
	state := NewWorkflowState(map[string]any{"topic": "t"})

	snapshot := state.Snapshot()
	snapshot["topic"] = "mutated"

	value, _ := state.Get("topic")
	assert.Equal(t, "t", value)
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobStatusQueued.Terminal())
	assert.False(t, JobStatusRunning.Terminal())
	assert.True(t, JobStatusSucceeded.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.True(t, JobStatusCancelled.Terminal())
}

func TestJobCloneDetachesArtifact(t *testing.T) {
	job := &Job{ID: "j", Artifact: &Artifact{ID: "a"}}

	clone := job.Clone()
	clone.Artifact.ID = "changed"

	assert.Equal(t, "a", job.Artifact.ID)
}
