package learn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifold/internal/cogcore/memory"
)

func TestFeedbackProcessor_AnalyzeFeedback_ApprovedFastNoComment(t *testing.T) {
	t.Parallel()
	p := NewFeedbackProcessor()
	wm := memory.New(testEvent(t), nil)
	require.NoError(t, wm.UpdateConfidence(0.9))

	fb := &UserFeedback{Approval: true, ActionExecuted: true, TimeToAction: time.Second}
	a, err := p.AnalyzeFeedback(fb, wm, 0.9)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, a.CorrectnessScore, 1e-9)
	assert.Greater(t, a.ActionQualityScore, 0.0)
	assert.InDelta(t, 0.1, a.ConfidenceError, 1e-9)
}

func TestFeedbackProcessor_AnalyzeFeedback_RejectedWithCorrection(t *testing.T) {
	t.Parallel()
	p := NewFeedbackProcessor()
	wm := memory.New(testEvent(t), nil)

	fb := &UserFeedback{Approval: false, Correction: "should have archived instead"}
	a, err := p.AnalyzeFeedback(fb, wm, 0.9)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, a.CorrectnessScore, 1e-9)
	assert.Contains(t, a.SuggestedImprovements, "incorporate user correction into future similar decisions")
}

func TestFeedbackProcessor_CalculateActionQuality(t *testing.T) {
	t.Parallel()
	p := NewFeedbackProcessor()

	approved := p.calculateActionQuality(&UserFeedback{Approval: true, ActionExecuted: true})
	assert.Greater(t, approved, 0.8)

	notExecuted := p.calculateActionQuality(&UserFeedback{Approval: true, ActionExecuted: false})
	assert.Less(t, notExecuted, approved)

	modified := p.calculateActionQuality(&UserFeedback{Approval: true, Modification: fakeAction{id: "m"}})
	assert.Less(t, modified, approved)

	rejected := p.calculateActionQuality(&UserFeedback{Approval: false, ActionExecuted: true})
	assert.Less(t, rejected, approved)
}

func TestFeedbackProcessor_CalculateReasoningQuality(t *testing.T) {
	t.Parallel()
	p := NewFeedbackProcessor()
	wm := memory.New(testEvent(t), nil)
	require.NoError(t, wm.UpdateConfidence(0.7))

	singlePass := p.calculateReasoningQuality(&UserFeedback{}, wm)
	assert.Greater(t, singlePass, 0.0)

	wm2 := memory.New(testEvent(t), nil)
	require.NoError(t, wm2.UpdateConfidence(0.7))
	fastImplicit := p.calculateReasoningQuality(&UserFeedback{TimeToAction: time.Second}, wm2)
	assert.GreaterOrEqual(t, fastImplicit, singlePass)
}

func TestFeedbackProcessor_CalculateConfidenceError_OverAndUnderconfidence(t *testing.T) {
	t.Parallel()
	p := NewFeedbackProcessor()

	overconfident := p.calculateConfidenceError(&UserFeedback{Approval: false}, 0.95)
	assert.Less(t, overconfident, -0.15)

	underconfident := p.calculateConfidenceError(&UserFeedback{Approval: true}, 0.1)
	assert.Greater(t, underconfident, 0.15)
}

func TestFeedbackProcessor_ShouldTriggerLearning(t *testing.T) {
	t.Parallel()
	p := NewFeedbackProcessor()

	assert.True(t, p.ShouldTriggerLearning(&FeedbackAnalysis{CorrectnessScore: 0.3, ReasoningQualityScore: 0.8}))
	assert.True(t, p.ShouldTriggerLearning(&FeedbackAnalysis{CorrectnessScore: 0.9, ConfidenceError: 0.5, ReasoningQualityScore: 0.8}))
	assert.True(t, p.ShouldTriggerLearning(&FeedbackAnalysis{CorrectnessScore: 0.9, ReasoningQualityScore: 0.3}))
	assert.False(t, p.ShouldTriggerLearning(&FeedbackAnalysis{CorrectnessScore: 0.9, ConfidenceError: 0.1, ReasoningQualityScore: 0.8}))
}

func TestFeedbackProcessor_ExtractCorrectionActions(t *testing.T) {
	t.Parallel()
	p := NewFeedbackProcessor()

	assert.Nil(t, p.ExtractCorrectionActions(&UserFeedback{}))
	assert.Equal(t, []string{"archive it"}, p.ExtractCorrectionActions(&UserFeedback{Correction: "archive it"}))
}

func TestClamp01(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0.0, clamp01(-0.5))
	assert.Equal(t, 1.0, clamp01(1.5))
	assert.InDelta(t, 0.5, clamp01(0.5), 1e-9)
}
