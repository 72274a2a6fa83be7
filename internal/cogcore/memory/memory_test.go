package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifold/internal/cogcore/event"
)

func testEvent(t *testing.T) *event.PerceivedEvent {
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
		Now:         now,
	})
	require.NoError(t, err)
	return ev
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNew_StartsInitializedWithZeroConfidence(t *testing.T) {
	t.Parallel()
	wm := New(testEvent(t), nil)

	assert.Equal(t, StateInitialized, wm.State())
	assert.Equal(t, 0.0, wm.OverallConfidence())
	assert.Nil(t, wm.BestHypothesis())
}

func TestAddHypothesis_TracksBestByConfidence(t *testing.T) {
	t.Parallel()
	wm := New(testEvent(t), nil)

	_, err := wm.AddHypothesis(Hypothesis{ID: "h1", Confidence: 0.4}, false)
	require.NoError(t, err)
	_, err = wm.AddHypothesis(Hypothesis{ID: "h2", Confidence: 0.8}, false)
	require.NoError(t, err)

	require.NotNil(t, wm.BestHypothesis())
	assert.Equal(t, "h2", wm.BestHypothesis().ID)
}

func TestAddHypothesis_RejectsDuplicateIDWithoutReplace(t *testing.T) {
	t.Parallel()
	wm := New(testEvent(t), nil)

	_, err := wm.AddHypothesis(Hypothesis{ID: "h1", Confidence: 0.4}, false)
	require.NoError(t, err)

	_, err = wm.AddHypothesis(Hypothesis{ID: "h1", Confidence: 0.9}, false)
	assert.Error(t, err)

	_, err = wm.AddHypothesis(Hypothesis{ID: "h1", Confidence: 0.9}, true)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, wm.BestHypothesis().Confidence, 1e-9)
}

func TestAddHypothesis_RejectsOutOfRangeConfidence(t *testing.T) {
	t.Parallel()
	wm := New(testEvent(t), nil)

	_, err := wm.AddHypothesis(Hypothesis{Confidence: 1.2}, false)
	assert.Error(t, err)
}

func TestReasoningPassLifecycle(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := start
	wm := New(testEvent(t), fixedClock(clock))

	pass, err := wm.StartReasoningPass(PassInitialAnalysis)
	require.NoError(t, err)
	assert.Equal(t, 1, pass.PassNumber)
	assert.Equal(t, StateReasoning, wm.State())

	completed, err := wm.CompleteReasoningPass(0.6)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, completed.OutputConfidence, 1e-9)
	assert.InDelta(t, 0.6, completed.ConfidenceDelta, 1e-9)
	assert.InDelta(t, 0.6, wm.OverallConfidence(), 1e-9)
	assert.Nil(t, wm.InProgressPass())
	assert.Len(t, wm.CompletedPasses(), 1)
}

func TestStartReasoningPass_RejectsDoubleStart(t *testing.T) {
	t.Parallel()
	wm := New(testEvent(t), nil)

	_, err := wm.StartReasoningPass(PassInitialAnalysis)
	require.NoError(t, err)

	_, err = wm.StartReasoningPass(PassDeepReasoning)
	assert.Error(t, err)
}

func TestStartReasoningPass_RejectsTerminalState(t *testing.T) {
	t.Parallel()
	wm := New(testEvent(t), nil)
	wm.SetState(StateComplete)

	_, err := wm.StartReasoningPass(PassInitialAnalysis)
	assert.Error(t, err)
}

func TestCompleteReasoningPass_RequiresInProgressPass(t *testing.T) {
	t.Parallel()
	wm := New(testEvent(t), nil)

	_, err := wm.CompleteReasoningPass(0.5)
	assert.Error(t, err)
}

func TestContextItems_SortedByRelevanceDescending(t *testing.T) {
	t.Parallel()
	wm := New(testEvent(t), nil)

	wm.AddContextSimple("src-a", "note", "low relevance", 0.2)
	wm.AddContextSimple("src-b", "note", "high relevance", 0.9)
	wm.AddContextSimple("src-c", "note", "mid relevance", 0.5)

	items := wm.ContextItems()
	require.Len(t, items, 3)
	assert.Equal(t, "src-b", items[0].Source)
	assert.Equal(t, "src-c", items[1].Source)
	assert.Equal(t, "src-a", items[2].Source)
}

func TestAddQuestionAndUncertainty_Deduplicate(t *testing.T) {
	t.Parallel()
	wm := New(testEvent(t), nil)

	wm.AddQuestion("who is the approver?")
	wm.AddQuestion("who is the approver?")
	wm.AddUncertainty("ambiguous deadline")
	wm.AddUncertainty("ambiguous deadline")

	assert.Len(t, wm.OpenQuestions(), 1)
	assert.Len(t, wm.Uncertainties(), 1)
}

func TestNeedsMoreReasoning_StopsAtMaxPassesRegardlessOfConfidence(t *testing.T) {
	t.Parallel()
	wm := New(testEvent(t), nil)

	_, err := wm.StartReasoningPass(PassInitialAnalysis)
	require.NoError(t, err)
	_, err = wm.CompleteReasoningPass(0.1)
	require.NoError(t, err)

	assert.False(t, wm.NeedsMoreReasoning(0.9, 1))
}

func TestNeedsMoreReasoning_ContinuesBelowThresholdOrWithOpenQuestions(t *testing.T) {
	t.Parallel()
	wm := New(testEvent(t), nil)

	assert.True(t, wm.NeedsMoreReasoning(0.8, 3))

	require.NoError(t, wm.UpdateConfidence(0.9))
	assert.False(t, wm.NeedsMoreReasoning(0.8, 3))

	wm.AddQuestion("one more thing")
	assert.True(t, wm.NeedsMoreReasoning(0.8, 3))
}

func TestUpdateConfidence_RejectsOutOfRange(t *testing.T) {
	t.Parallel()
	wm := New(testEvent(t), nil)

	assert.Error(t, wm.UpdateConfidence(-0.1))
	assert.Error(t, wm.UpdateConfidence(1.1))
	assert.NoError(t, wm.UpdateConfidence(0.5))
	assert.True(t, wm.IsConfident(0.5))
	assert.False(t, wm.IsConfident(0.51))
}

func TestSetContinuous_CopiesPriorEvents(t *testing.T) {
	t.Parallel()
	wm := New(testEvent(t), nil)
	prior := []*event.PerceivedEvent{testEvent(t)}

	wm.SetContinuous("conv-1", prior)
	assert.Equal(t, "conv-1", wm.ConversationID())
	assert.Len(t, wm.ConversationEvents(), 1)

	prior[0] = nil
	assert.NotNil(t, wm.ConversationEvents()[0])
}

func TestGetReasoningSummary_ReflectsState(t *testing.T) {
	t.Parallel()
	ev := testEvent(t)
	wm := New(ev, nil)

	_, err := wm.AddHypothesis(Hypothesis{ID: "h1", Confidence: 0.7}, false)
	require.NoError(t, err)
	wm.AddQuestion("q1")

	summary := wm.GetReasoningSummary()
	assert.Equal(t, ev.EventID(), summary.EventID)
	assert.Equal(t, "h1", summary.BestHypothesisID)
	assert.Equal(t, 1, summary.OpenQuestionCount)
	assert.Equal(t, StateInitialized, summary.State)
}
