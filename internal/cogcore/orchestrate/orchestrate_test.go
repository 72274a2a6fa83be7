package orchestrate

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifold/internal/cogcore/actions"
	"manifold/internal/cogcore/plan"
)

type fakeAction struct {
	id        string
	valid     bool
	execErr   error
	undoable  bool
	undoErr   bool
	undone    *bool
	panicExec bool
}

func (a *fakeAction) ActionID() string   { return a.id }
func (a *fakeAction) ActionType() string { return "fake" }
func (a *fakeAction) Validate() actions.ValidationResult {
	if a.valid {
		return actions.ValidationResult{Valid: true}
	}
	return actions.ValidationResult{Valid: false, Errors: []string{"invalid"}}
}
func (a *fakeAction) Execute() actions.ActionResult {
	if a.panicExec {
		panic("boom")
	}
	if a.execErr != nil {
		return actions.ActionResult{Success: false, Error: a.execErr}
	}
	return actions.ActionResult{Success: true}
}
func (a *fakeAction) CanUndo(actions.ActionResult) bool { return a.undoable }
func (a *fakeAction) Undo(actions.ActionResult) bool {
	if a.undone != nil {
		*a.undone = true
	}
	return !a.undoErr
}
func (a *fakeAction) Dependencies() []string           { return nil }
func (a *fakeAction) EstimatedDuration() time.Duration { return time.Millisecond }
func (a *fakeAction) SupportsUndo() bool               { return a.undoable }

func TestExecutePlan_AllSucceed(t *testing.T) {
	t.Parallel()
	o := New(true, zerolog.Nop())
	p := &plan.ActionPlan{Actions: []actions.Action{
		&fakeAction{id: "a1", valid: true},
		&fakeAction{id: "a2", valid: true},
	}}

	res := o.ExecutePlan(p)
	assert.True(t, res.Success)
	assert.Len(t, res.ExecutedActions, 2)
	assert.False(t, res.RolledBack)
}

func TestExecutePlan_ValidationFailureSkipsExecution(t *testing.T) {
	t.Parallel()
	o := New(true, zerolog.Nop())
	p := &plan.ActionPlan{Actions: []actions.Action{&fakeAction{id: "a1", valid: false}}}

	res := o.ExecutePlan(p)
	assert.False(t, res.Success)
	assert.Error(t, res.Error)
	assert.Empty(t, res.ExecutedActions)
}

func TestExecutePlan_FailFastRollsBackPriorActions(t *testing.T) {
	t.Parallel()
	o := New(true, zerolog.Nop())
	var undone bool
	p := &plan.ActionPlan{Actions: []actions.Action{
		&fakeAction{id: "a1", valid: true, undoable: true, undone: &undone},
		&fakeAction{id: "a2", valid: true, execErr: errors.New("network down")},
	}}

	res := o.ExecutePlan(p)
	assert.False(t, res.Success)
	assert.True(t, res.RolledBack)
	assert.True(t, undone)
}

func TestExecutePlan_NonFailFastContinuesPastFailures(t *testing.T) {
	t.Parallel()
	o := New(false, zerolog.Nop())
	p := &plan.ActionPlan{Actions: []actions.Action{
		&fakeAction{id: "a1", valid: true, execErr: errors.New("boom")},
		&fakeAction{id: "a2", valid: true},
	}}

	res := o.ExecutePlan(p)
	assert.True(t, res.Success)
	require.Len(t, res.ExecutedActions, 2)
	assert.False(t, res.ExecutedActions[0].Success)
	assert.True(t, res.ExecutedActions[1].Success)
}

func TestExecutePlan_PanicInExecuteIsRecoveredAsFailure(t *testing.T) {
	t.Parallel()
	o := New(true, zerolog.Nop())
	p := &plan.ActionPlan{Actions: []actions.Action{&fakeAction{id: "a1", valid: true, panicExec: true}}}

	res := o.ExecutePlan(p)
	assert.False(t, res.Success)
	require.Len(t, res.ExecutedActions, 1)
	assert.Contains(t, res.Error.Error(), "panic")
}

func TestExecutionResult_ToMapCountsSuccessfulActions(t *testing.T) {
	t.Parallel()
	r := ExecutionResult{
		Success: true,
		ExecutedActions: []actions.ActionResult{
			{Success: true}, {Success: false}, {Success: true},
		},
		Duration: 2 * time.Second,
	}
	m := r.ToMap()
	assert.Equal(t, 3, m["executed_count"])
	assert.Equal(t, 2, m["successful_count"])
	assert.InDelta(t, 2.0, m["duration"], 1e-9)
	assert.Nil(t, m["error"])
}

func TestExecutePlan_RollbackSkipsActionsThatDoNotSupportUndo(t *testing.T) {
	t.Parallel()
	o := New(true, zerolog.Nop())
	p := &plan.ActionPlan{Actions: []actions.Action{
		&fakeAction{id: "a1", valid: true, undoable: false},
		&fakeAction{id: "a2", valid: true, execErr: errors.New("fail")},
	}}

	res := o.ExecutePlan(p)
	assert.False(t, res.Success)
	assert.True(t, res.RolledBack)
}
