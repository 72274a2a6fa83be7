// Package learn implements the learning engine (C9): FeedbackProcessor,
// PatternStore, ProviderTracker, ConfidenceCalibrator, and the
// KnowledgeUpdater, orchestrated by Engine.Learn in one pass per event.
package learn

import (
	"time"

	"github.com/google/uuid"

	"manifold/internal/cogcore/actions"
	"manifold/internal/cogcore/cogerr"
	"manifold/internal/cogcore/event"
)

// UpdateType classifies a KnowledgeUpdate.
type UpdateType string

const (
	UpdateNoteCreated         UpdateType = "note_created"
	UpdateNoteUpdated         UpdateType = "note_updated"
	UpdateEntityAdded         UpdateType = "entity_added"
	UpdateTagAdded            UpdateType = "tag_added"
	UpdateRelationshipCreated UpdateType = "relationship_created"
)

// PatternType classifies a learned Pattern.
type PatternType string

const (
	PatternActionSequence    PatternType = "action_sequence"
	PatternEntityRelationship PatternType = "entity_relationship"
	PatternTimeBased         PatternType = "time_based"
	PatternContextTrigger    PatternType = "context_trigger"
)

// UserFeedback is immutable explicit+implicit feedback on a decision.
type UserFeedback struct {
	Approval       bool
	Rating         *int
	Comment        string
	Correction     string
	ActionExecuted bool
	TimeToAction   time.Duration
	Modification   actions.Action
	Timestamp      time.Time
	FeedbackID     string
}

func NewUserFeedback(f UserFeedback) (*UserFeedback, error) {
	if f.Rating != nil && (*f.Rating < 1 || *f.Rating > 5) {
		return nil, cogerr.NewValidation("rating", "must be 1-5, got %d", *f.Rating)
	}
	if f.TimeToAction < 0 {
		return nil, cogerr.NewValidation("time_to_action", "must be >= 0")
	}
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now().UTC()
	}
	if f.FeedbackID == "" {
		f.FeedbackID = uuid.NewString()
	}
	return &f, nil
}

// IsPositive reports whether feedback is generally positive: approved and
// not rated below 3.
func (f *UserFeedback) IsPositive() bool {
	if !f.Approval {
		return false
	}
	return !(f.Rating != nil && *f.Rating < 3)
}

// ImplicitQualityScore derives a quality score purely from implicit
// signals: fast, unmodified, executed actions score highest.
func (f *UserFeedback) ImplicitQualityScore() float64 {
	score := 1.0
	switch {
	case f.TimeToAction > 60*time.Second:
		score *= 0.7
	case f.TimeToAction > 30*time.Second:
		score *= 0.85
	}
	if f.Modification != nil {
		score *= 0.5
	}
	if !f.ActionExecuted {
		score *= 0.3
	}
	return score
}

// FeedbackAnalysis is the FeedbackProcessor's output.
type FeedbackAnalysis struct {
	Feedback              *UserFeedback
	CorrectnessScore      float64
	SuggestedImprovements []string
	ConfidenceError       float64
	ActionQualityScore    float64
	ReasoningQualityScore float64
	Metadata              map[string]any
}

func newFeedbackAnalysis(fa FeedbackAnalysis) (*FeedbackAnalysis, error) {
	if fa.CorrectnessScore < 0 || fa.CorrectnessScore > 1 {
		return nil, cogerr.NewValidation("correctness_score", "must be 0-1")
	}
	if fa.ActionQualityScore < 0 || fa.ActionQualityScore > 1 {
		return nil, cogerr.NewValidation("action_quality_score", "must be 0-1")
	}
	if fa.ReasoningQualityScore < 0 || fa.ReasoningQualityScore > 1 {
		return nil, cogerr.NewValidation("reasoning_quality_score", "must be 0-1")
	}
	if fa.ConfidenceError < -1 || fa.ConfidenceError > 1 {
		return nil, cogerr.NewValidation("confidence_error", "must be -1..1")
	}
	return &fa, nil
}

// KnowledgeUpdate represents one change to apply to the note store.
type KnowledgeUpdate struct {
	UpdateType UpdateType
	TargetID   string
	Changes    map[string]any
	Confidence float64
	Source     string
	Timestamp  time.Time
	UpdateID   string
}

func NewKnowledgeUpdate(u KnowledgeUpdate) (*KnowledgeUpdate, error) {
	if u.Confidence < 0 || u.Confidence > 1 {
		return nil, cogerr.NewValidation("confidence", "must be 0-1")
	}
	if u.TargetID == "" {
		return nil, cogerr.NewValidation("target_id", "is required")
	}
	if len(u.Changes) == 0 {
		return nil, cogerr.NewValidation("changes", "cannot be empty")
	}
	if u.Timestamp.IsZero() {
		u.Timestamp = time.Now().UTC()
	}
	if u.UpdateID == "" {
		u.UpdateID = uuid.NewString()
	}
	return &u, nil
}

func (u *KnowledgeUpdate) ToMap() map[string]any {
	return map[string]any{
		"update_id":   u.UpdateID,
		"update_type": string(u.UpdateType),
		"target_id":   u.TargetID,
		"changes":     u.Changes,
		"confidence":  u.Confidence,
		"source":      u.Source,
		"timestamp":   u.Timestamp.Format(time.RFC3339Nano),
	}
}

// Pattern is an immutable learned condition -> suggested-actions
// association; every update produces a new value and replaces the slot.
type Pattern struct {
	PatternID        string
	PatternType      PatternType
	Conditions       map[string]any
	SuggestedActions []string
	Confidence       float64
	SuccessRate      float64
	Occurrences      int
	LastSeen         time.Time
	CreatedAt        time.Time
}

func NewPattern(p Pattern) (*Pattern, error) {
	if p.Confidence < 0 || p.Confidence > 1 {
		return nil, cogerr.NewValidation("confidence", "must be 0-1")
	}
	if p.SuccessRate < 0 || p.SuccessRate > 1 {
		return nil, cogerr.NewValidation("success_rate", "must be 0-1")
	}
	if p.Occurrences < 0 {
		return nil, cogerr.NewValidation("occurrences", "must be >= 0")
	}
	if len(p.SuggestedActions) == 0 {
		return nil, cogerr.NewValidation("suggested_actions", "cannot be empty")
	}
	return &p, nil
}

// Matches reports whether the pattern's conditions entail ev and context.
// The min_urgency condition compares urgency ordinally (see
// event.Urgency.AtLeast), not lexicographically — this is the supplemental
// fix documented in SPEC_FULL.md / DESIGN.md.
func (p *Pattern) Matches(ev *event.PerceivedEvent, context map[string]any) bool {
	if et, ok := p.Conditions["event_type"].(string); ok {
		if string(ev.EventType()) != et {
			return false
		}
	}
	if floor, ok := p.Conditions["min_urgency"].(string); ok {
		if !ev.Urgency().AtLeast(event.Urgency(floor)) {
			return false
		}
	}
	if required, ok := p.Conditions["required_entities"].([]string); ok {
		present := make(map[string]struct{})
		for _, e := range ev.Entities() {
			present[e.Type] = struct{}{}
		}
		for _, r := range required {
			if _, ok := present[r]; !ok {
				return false
			}
		}
	}
	if condCtx, ok := p.Conditions["context"].(map[string]any); ok {
		for k, v := range condCtx {
			if context[k] != v {
				return false
			}
		}
	}
	return true
}

func (p *Pattern) ToMap() map[string]any {
	return map[string]any{
		"pattern_id":        p.PatternID,
		"pattern_type":      string(p.PatternType),
		"conditions":        p.Conditions,
		"suggested_actions": p.SuggestedActions,
		"confidence":        p.Confidence,
		"success_rate":      p.SuccessRate,
		"occurrences":       p.Occurrences,
		"last_seen":         p.LastSeen.Format(time.RFC3339Nano),
		"created_at":        p.CreatedAt.Format(time.RFC3339Nano),
	}
}

// ProviderScore tracks one (provider, tier) pair's performance.
type ProviderScore struct {
	ProviderName     string
	ModelTier        string
	TotalCalls       int
	SuccessfulCalls  int
	FailedCalls      int
	AvgConfidence    float64
	CalibrationError float64
	AvgLatencyMS     float64
	P95LatencyMS     float64
	TotalCostUSD     float64
	UpdatedAt        time.Time
}

func NewProviderScore(s ProviderScore) (*ProviderScore, error) {
	if s.TotalCalls < 0 {
		return nil, cogerr.NewValidation("total_calls", "must be >= 0")
	}
	if s.TotalCalls != s.SuccessfulCalls+s.FailedCalls {
		return nil, cogerr.NewValidation("total_calls", "must equal successful_calls + failed_calls")
	}
	if s.AvgConfidence < 0 || s.AvgConfidence > 1 {
		return nil, cogerr.NewValidation("avg_confidence", "must be 0-1")
	}
	if s.CalibrationError < 0 {
		return nil, cogerr.NewValidation("calibration_error", "must be >= 0")
	}
	return &s, nil
}

func (s *ProviderScore) SuccessRate() float64 {
	if s.TotalCalls == 0 {
		return 0
	}
	return float64(s.SuccessfulCalls) / float64(s.TotalCalls)
}

func (s *ProviderScore) CostPerSuccessUSD() float64 {
	if s.SuccessfulCalls == 0 {
		return 0
	}
	return s.TotalCostUSD / float64(s.SuccessfulCalls)
}

func (s *ProviderScore) ToMap() map[string]any {
	return map[string]any{
		"provider_name":      s.ProviderName,
		"model_tier":         s.ModelTier,
		"total_calls":        s.TotalCalls,
		"successful_calls":   s.SuccessfulCalls,
		"failed_calls":       s.FailedCalls,
		"success_rate":       s.SuccessRate(),
		"avg_confidence":     s.AvgConfidence,
		"calibration_error":  s.CalibrationError,
		"avg_latency_ms":     s.AvgLatencyMS,
		"p95_latency_ms":     s.P95LatencyMS,
		"total_cost_usd":     s.TotalCostUSD,
		"cost_per_success_usd": s.CostPerSuccessUSD(),
		"updated_at":         s.UpdatedAt.Format(time.RFC3339Nano),
	}
}

// LearningResult is the outcome of one Engine.Learn cycle.
type LearningResult struct {
	KnowledgeUpdates      []*KnowledgeUpdate
	PatternUpdates        []*Pattern
	ProviderScores        map[string]*ProviderScore
	ConfidenceAdjustments map[string]float64
	Duration              time.Duration
	UpdatesApplied        int
	UpdatesFailed         int
	Metadata              map[string]any
	Timestamp             time.Time
	ResultID              string
}

func (r *LearningResult) Success() bool     { return r.UpdatesFailed == 0 }
func (r *LearningResult) TotalUpdates() int { return r.UpdatesApplied + r.UpdatesFailed }
