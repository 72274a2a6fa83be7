// Package orchestrate implements the action orchestrator (C8): validate,
// execute a plan's actions in topological order, and roll back in reverse
// on failure.
package orchestrate

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"manifold/internal/cogcore/actions"
	"manifold/internal/cogcore/cogerr"
	"manifold/internal/cogcore/plan"
)

// ExecutionResult is the outcome of executing a plan.
type ExecutionResult struct {
	Success          bool
	ExecutedActions  []actions.ActionResult
	Duration         time.Duration
	Error            error
	RolledBack       bool
	Metadata         map[string]any
}

func (r ExecutionResult) ToMap() map[string]any {
	successful := 0
	for _, res := range r.ExecutedActions {
		if res.Success {
			successful++
		}
	}
	var errStr any
	if r.Error != nil {
		errStr = r.Error.Error()
	}
	return map[string]any{
		"success":          r.Success,
		"executed_count":   len(r.ExecutedActions),
		"successful_count": successful,
		"duration":         r.Duration.Seconds(),
		"rolled_back":      r.RolledBack,
		"error":            errStr,
		"metadata":         r.Metadata,
	}
}

type pair struct {
	action actions.Action
	result actions.ActionResult
}

// Orchestrator executes ActionPlans. FailFast stops on the first failing
// action and rolls back; ParallelExecution is reserved for a future
// parallel-DAG-level extension and is currently unused (default sequential
// per spec.md §4.5/§5).
type Orchestrator struct {
	ParallelExecution bool
	FailFast          bool
	log               zerolog.Logger
}

func New(failFast bool, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{FailFast: failFast, log: log}
}

// ExecutePlan runs p's actions in order, validating all of them first.
func (o *Orchestrator) ExecutePlan(p *plan.ActionPlan) ExecutionResult {
	start := time.Now()

	if errs := o.validateAll(p.Actions); len(errs) > 0 {
		msg := "validation failed: " + strings.Join(errs, ", ")
		o.log.Error().Msg(msg)
		return o.failureResult(cogerr.NewValidation("plan", msg), start, nil, false)
	}

	var executed []pair
	for _, action := range p.Actions {
		result := o.executeOne(action)
		executed = append(executed, pair{action, result})

		if !result.Success {
			o.log.Error().Str("action_id", action.ActionID()).Err(result.Error).Msg("action failed")
			if o.FailFast {
				o.rollback(executed)
				return o.failureResult(result.Error, start, resultsOf(executed), true)
			}
		}
	}

	return ExecutionResult{
		Success:         true,
		ExecutedActions: resultsOf(executed),
		Duration:        time.Since(start),
	}
}

// executeOne runs action.Execute() with per-action panic recovery: an
// exception escaping Execute is treated as a failure of that action and
// its (possibly partial) pair is still recorded with the panic value as
// error, so rollback can still act on every action that ran before it.
// This resolves an explicit discrepancy between the source this was
// distilled from (which only recovered at the outer-loop level, losing the
// failing pair) and the spec's documented contract.
func (o *Orchestrator) executeOne(action actions.Action) (result actions.ActionResult) {
	defer func() {
		if r := recover(); r != nil {
			result = actions.ActionResult{
				Success:    false,
				Error:      fmt.Errorf("panic in action %q: %v", action.ActionID(), r),
				ExecutedAt: time.Now(),
			}
		}
	}()
	return action.Execute()
}

func (o *Orchestrator) validateAll(acts []actions.Action) []string {
	var errs []string
	for _, a := range acts {
		v := a.Validate()
		if !v.Valid {
			for _, e := range v.Errors {
				errs = append(errs, fmt.Sprintf("%s: %s", a.ActionID(), e))
			}
		}
	}
	return errs
}

// rollback walks executed pairs in reverse, invoking Undo on every
// successful, undo-capable action. Errors or false returns are logged but
// do not abort the rollback; actions without undo support are skipped with
// a warning.
func (o *Orchestrator) rollback(executed []pair) {
	if len(executed) == 0 {
		return
	}
	o.log.Warn().Int("action_count", len(executed)).Msg("rolling back")

	for i := len(executed) - 1; i >= 0; i-- {
		p := executed[i]
		if !p.result.Success {
			o.log.Debug().Str("action_id", p.action.ActionID()).Msg("skipping rollback for failed action")
			continue
		}
		if !p.action.CanUndo(p.result) {
			o.log.Warn().Str("action_id", p.action.ActionID()).Msg("cannot rollback: undo not supported")
			continue
		}
		if ok := o.safeUndo(p.action, p.result); !ok {
			o.log.Error().Str("action_id", p.action.ActionID()).Msg("rollback failed")
		}
	}
	o.log.Info().Msg("rollback complete")
}

func (o *Orchestrator) safeUndo(action actions.Action, result actions.ActionResult) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Str("action_id", action.ActionID()).Interface("panic", r).Msg("rollback panicked")
			ok = false
		}
	}()
	return action.Undo(result)
}

func (o *Orchestrator) failureResult(err error, start time.Time, executed []actions.ActionResult, rolledBack bool) ExecutionResult {
	return ExecutionResult{
		Success:         false,
		ExecutedActions: executed,
		Duration:        time.Since(start),
		Error:           err,
		RolledBack:      rolledBack,
	}
}

func resultsOf(pairs []pair) []actions.ActionResult {
	out := make([]actions.ActionResult, len(pairs))
	for i, p := range pairs {
		out[i] = p.result
	}
	return out
}
