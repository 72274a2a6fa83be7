// Package plan implements the planner (C7): dependency resolution, risk
// assessment, and execution-mode selection over a set of candidate
// actions.
package plan

import (
	"fmt"
	"time"

	"manifold/internal/cogcore/actions"
	"manifold/internal/cogcore/cogerr"
	"manifold/internal/cogcore/memory"
)

// Risk records a per-action risk assessment.
type Risk struct {
	ActionID    string
	Level       actions.RiskLevel
	Reversible  bool
}

// ActionPlan is the planner's output.
type ActionPlan struct {
	Actions          []actions.Action
	ExecutionMode    actions.ExecutionMode
	Risks            []Risk
	Rationale        string
	EstimatedDuration time.Duration
	Confidence       float64
	Metadata         map[string]any
}

// Config tunes execution-mode selection.
type Config struct {
	AutoApproveThreshold float64
	RiskTolerance        actions.RiskLevel
}

func (c Config) withDefaults() Config {
	if c.AutoApproveThreshold <= 0 {
		c.AutoApproveThreshold = 0.95
	}
	if c.RiskTolerance == "" {
		c.RiskTolerance = actions.RiskMedium
	}
	return c
}

var riskOrdinal = map[actions.RiskLevel]int{
	actions.RiskLow:      0,
	actions.RiskMedium:   1,
	actions.RiskHigh:     2,
	actions.RiskCritical: 3,
}

// Planner builds ActionPlans from a working memory and candidate actions.
type Planner struct {
	cfg Config
}

func New(cfg Config) *Planner {
	return &Planner{cfg: cfg.withDefaults()}
}

// Build produces an ActionPlan. wm must carry a best hypothesis for any
// mode other than Manual; candidates is the factory's (C6) output.
func (p *Planner) Build(wm *memory.WorkingMemory, candidates []actions.Action) (*ActionPlan, error) {
	start := time.Now()

	best := wm.BestHypothesis()
	if best == nil || len(candidates) == 0 {
		return &ActionPlan{
			ExecutionMode: actions.ModeManual,
			Rationale:     "no hypothesis or no actions to run",
			Metadata: map[string]any{
				"planning_duration": time.Since(start),
				"action_count":      len(candidates),
			},
		}, nil
	}

	ordered, err := topologicalSort(candidates)
	if err != nil {
		return nil, err
	}

	risks := assessRisks(ordered)
	maxRisk := actions.RiskLow
	var totalDuration time.Duration
	for i, a := range ordered {
		if riskOrdinal[risks[i].Level] > riskOrdinal[maxRisk] {
			maxRisk = risks[i].Level
		}
		totalDuration += a.EstimatedDuration()
	}

	mode := actions.ModeReview
	if wm.OverallConfidence() >= p.cfg.AutoApproveThreshold && riskOrdinal[maxRisk] <= riskOrdinal[p.cfg.RiskTolerance] {
		mode = actions.ModeAuto
	}

	return &ActionPlan{
		Actions:           ordered,
		ExecutionMode:     mode,
		Risks:             risks,
		Rationale:         fmt.Sprintf("best hypothesis %q at confidence %.2f", best.ID, best.Confidence),
		EstimatedDuration: totalDuration,
		Confidence:        wm.OverallConfidence(),
		Metadata: map[string]any{
			"planning_duration":  time.Since(start),
			"winning_hypothesis": best.ID,
			"action_count":       len(ordered),
			"max_risk":           maxRisk,
		},
	}, nil
}

// topologicalSort orders candidates by their declared dependency ids. A
// missing predecessor or a cycle is a planning error.
func topologicalSort(candidates []actions.Action) ([]actions.Action, error) {
	byID := make(map[string]actions.Action, len(candidates))
	for _, a := range candidates {
		byID[a.ActionID()] = a
	}
	for _, a := range candidates {
		for _, dep := range a.Dependencies() {
			if _, ok := byID[dep]; !ok {
				return nil, cogerr.NewPlanning("action %q depends on missing predecessor %q", a.ActionID(), dep)
			}
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(candidates))
	var order []actions.Action

	var visit func(a actions.Action) error
	visit = func(a actions.Action) error {
		id := a.ActionID()
		switch color[id] {
		case black:
			return nil
		case gray:
			return cogerr.NewPlanning("dependency cycle detected at action %q", id)
		}
		color[id] = gray
		for _, dep := range a.Dependencies() {
			if err := visit(byID[dep]); err != nil {
				return err
			}
		}
		color[id] = black
		order = append(order, a)
		return nil
	}

	for _, a := range candidates {
		if err := visit(a); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// assessRisks classifies each action: low if it supports undo; otherwise
// high for the delete_email, calendar_respond, reply_chat and flag_message
// types, and medium for every other non-undoable type. Concrete action
// types are consulted by name since the interface itself carries no risk
// tag. No action type is classified critical.
func assessRisks(ordered []actions.Action) []Risk {
	out := make([]Risk, len(ordered))
	for i, a := range ordered {
		level := actions.RiskMedium
		reversible := a.SupportsUndo()
		if reversible {
			level = actions.RiskLow
		} else {
			switch a.ActionType() {
			case "delete_email":
				level = actions.RiskHigh
			case "calendar_respond", "reply_chat", "flag_message":
				level = actions.RiskHigh
			default:
				level = actions.RiskMedium
			}
		}
		out[i] = Risk{ActionID: a.ActionID(), Level: level, Reversible: reversible}
	}
	return out
}
