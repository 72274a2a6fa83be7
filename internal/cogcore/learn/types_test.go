package learn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifold/internal/cogcore/actions"
	"manifold/internal/cogcore/event"
)

type fakeAction struct{ id string }

func (a fakeAction) ActionID() string                  { return a.id }
func (a fakeAction) ActionType() string                { return "fake" }
func (a fakeAction) Validate() actions.ValidationResult { return actions.ValidationResult{Valid: true} }
func (a fakeAction) Execute() actions.ActionResult      { return actions.ActionResult{Success: true} }
func (a fakeAction) CanUndo(actions.ActionResult) bool  { return false }
func (a fakeAction) Undo(actions.ActionResult) bool     { return false }
func (a fakeAction) Dependencies() []string             { return nil }
func (a fakeAction) EstimatedDuration() time.Duration   { return time.Second }
func (a fakeAction) SupportsUndo() bool                 { return false }

func testEvent(t *testing.T, entities ...event.Entity) *event.PerceivedEvent {
	t.Helper()
	now := time.Now().UTC()
	ev, err := event.New(event.Params{
		Source:      event.SourceMail,
		SourceID:    "msg-1",
		OccurredAt:  now,
		ReceivedAt:  now,
		PerceivedAt: now,
		Title:       "subject",
		FromPerson:  "alice@example.com",
		Entities:    entities,
		Now:         now,
	})
	require.NoError(t, err)
	return ev
}

func TestNewUserFeedback_ValidatesRatingAndTimeToAction(t *testing.T) {
	t.Parallel()
	badRating := 6
	_, err := NewUserFeedback(UserFeedback{Approval: true, Rating: &badRating})
	assert.Error(t, err)

	_, err = NewUserFeedback(UserFeedback{Approval: true, TimeToAction: -time.Second})
	assert.Error(t, err)

	goodRating := 4
	fb, err := NewUserFeedback(UserFeedback{Approval: true, Rating: &goodRating})
	require.NoError(t, err)
	assert.NotEmpty(t, fb.FeedbackID)
	assert.False(t, fb.Timestamp.IsZero())
}

func TestUserFeedback_IsPositive(t *testing.T) {
	t.Parallel()
	lowRating := 2
	highRating := 4

	assert.False(t, (&UserFeedback{Approval: false}).IsPositive())
	assert.True(t, (&UserFeedback{Approval: true}).IsPositive())
	assert.False(t, (&UserFeedback{Approval: true, Rating: &lowRating}).IsPositive())
	assert.True(t, (&UserFeedback{Approval: true, Rating: &highRating}).IsPositive())
}

func TestUserFeedback_ImplicitQualityScore(t *testing.T) {
	t.Parallel()
	fast := &UserFeedback{ActionExecuted: true, TimeToAction: time.Second}
	assert.InDelta(t, 1.0, fast.ImplicitQualityScore(), 1e-9)

	slowModified := &UserFeedback{ActionExecuted: true, TimeToAction: 90 * time.Second, Modification: fakeAction{id: "a"}}
	assert.InDelta(t, 0.7*0.5, slowModified.ImplicitQualityScore(), 1e-9)

	notExecuted := &UserFeedback{ActionExecuted: false, TimeToAction: 0}
	assert.InDelta(t, 0.3, notExecuted.ImplicitQualityScore(), 1e-9)
}

func TestNewKnowledgeUpdate_Validates(t *testing.T) {
	t.Parallel()
	_, err := NewKnowledgeUpdate(KnowledgeUpdate{Confidence: 2})
	assert.Error(t, err)

	_, err = NewKnowledgeUpdate(KnowledgeUpdate{Confidence: 0.5, Changes: map[string]any{"a": 1}})
	assert.Error(t, err, "missing target_id")

	_, err = NewKnowledgeUpdate(KnowledgeUpdate{Confidence: 0.5, TargetID: "t1"})
	assert.Error(t, err, "empty changes")

	u, err := NewKnowledgeUpdate(KnowledgeUpdate{Confidence: 0.5, TargetID: "t1", Changes: map[string]any{"a": 1}})
	require.NoError(t, err)
	assert.NotEmpty(t, u.UpdateID)
	m := u.ToMap()
	assert.Equal(t, "t1", m["target_id"])
}

func TestNewPattern_Validates(t *testing.T) {
	t.Parallel()
	_, err := NewPattern(Pattern{Confidence: -1})
	assert.Error(t, err)

	_, err = NewPattern(Pattern{Confidence: 0.5, SuccessRate: 2})
	assert.Error(t, err)

	_, err = NewPattern(Pattern{Confidence: 0.5, SuccessRate: 0.5, Occurrences: -1})
	assert.Error(t, err)

	_, err = NewPattern(Pattern{Confidence: 0.5, SuccessRate: 0.5})
	assert.Error(t, err, "missing suggested actions")

	p, err := NewPattern(Pattern{Confidence: 0.5, SuccessRate: 0.5, SuggestedActions: []string{"archive"}})
	require.NoError(t, err)
	m := p.ToMap()
	assert.Equal(t, []string{"archive"}, m["suggested_actions"])
}

func TestPattern_MatchesEventTypeAndUrgencyAndEntities(t *testing.T) {
	t.Parallel()
	ev := testEvent(t, event.Entity{Type: "person", Value: "bob", Confidence: 0.9})

	byType := &Pattern{Conditions: map[string]any{"event_type": string(ev.EventType())}}
	assert.True(t, byType.Matches(ev, nil))

	wrongType := &Pattern{Conditions: map[string]any{"event_type": "nonexistent_type"}}
	assert.False(t, wrongType.Matches(ev, nil))

	urgencyOK := &Pattern{Conditions: map[string]any{"min_urgency": string(event.UrgencyNone)}}
	assert.True(t, urgencyOK.Matches(ev, nil))

	urgencyTooHigh := &Pattern{Conditions: map[string]any{"min_urgency": string(event.UrgencyCritical)}}
	assert.False(t, urgencyTooHigh.Matches(ev, nil))

	requiredEntities := &Pattern{Conditions: map[string]any{"required_entities": []string{"person"}}}
	assert.True(t, requiredEntities.Matches(ev, nil))

	missingEntities := &Pattern{Conditions: map[string]any{"required_entities": []string{"organization"}}}
	assert.False(t, missingEntities.Matches(ev, nil))
}

func TestPattern_MatchesContextCondition(t *testing.T) {
	t.Parallel()
	ev := testEvent(t)
	p := &Pattern{Conditions: map[string]any{"context": map[string]any{"account_id": "acc-1"}}}

	assert.False(t, p.Matches(ev, map[string]any{"account_id": "acc-2"}))
	assert.True(t, p.Matches(ev, map[string]any{"account_id": "acc-1"}))
}

func TestNewProviderScore_ValidatesCallCounts(t *testing.T) {
	t.Parallel()
	_, err := NewProviderScore(ProviderScore{TotalCalls: -1})
	assert.Error(t, err)

	_, err = NewProviderScore(ProviderScore{TotalCalls: 5, SuccessfulCalls: 2, FailedCalls: 2})
	assert.Error(t, err)

	_, err = NewProviderScore(ProviderScore{TotalCalls: 4, SuccessfulCalls: 2, FailedCalls: 2, AvgConfidence: 2})
	assert.Error(t, err)

	s, err := NewProviderScore(ProviderScore{TotalCalls: 4, SuccessfulCalls: 3, FailedCalls: 1, AvgConfidence: 0.8, TotalCostUSD: 0.04})
	require.NoError(t, err)
	assert.InDelta(t, 0.75, s.SuccessRate(), 1e-9)
	assert.InDelta(t, 0.04/3, s.CostPerSuccessUSD(), 1e-9)
}

func TestProviderScore_ZeroCallsAvoidsDivideByZero(t *testing.T) {
	t.Parallel()
	s := &ProviderScore{}
	assert.Equal(t, 0.0, s.SuccessRate())
	assert.Equal(t, 0.0, s.CostPerSuccessUSD())
}

func TestLearningResult_SuccessAndTotalUpdates(t *testing.T) {
	t.Parallel()
	r := &LearningResult{UpdatesApplied: 3, UpdatesFailed: 0}
	assert.True(t, r.Success())
	assert.Equal(t, 3, r.TotalUpdates())

	r2 := &LearningResult{UpdatesApplied: 1, UpdatesFailed: 2}
	assert.False(t, r2.Success())
	assert.Equal(t, 3, r2.TotalUpdates())
}
