package learn

import (
	"manifold/internal/cogcore/memory"
)

// FeedbackProcessor turns raw UserFeedback plus the reasoning context that
// produced it into a scored FeedbackAnalysis.
type FeedbackProcessor struct{}

func NewFeedbackProcessor() *FeedbackProcessor {
	return &FeedbackProcessor{}
}

// AnalyzeFeedback scores feedback against the working memory state it was
// given for. predictedConfidence is the system's own confidence at
// decision time (wm.OverallConfidence()).
func (p *FeedbackProcessor) AnalyzeFeedback(fb *UserFeedback, wm *memory.WorkingMemory, predictedConfidence float64) (*FeedbackAnalysis, error) {
	correctness := p.calculateCorrectness(fb)
	actionQuality := p.calculateActionQuality(fb)
	reasoningQuality := p.calculateReasoningQuality(fb, wm)
	confErr := p.calculateConfidenceError(fb, predictedConfidence)

	improvements := p.suggestImprovements(fb, correctness, confErr, reasoningQuality)

	return newFeedbackAnalysis(FeedbackAnalysis{
		Feedback:              fb,
		CorrectnessScore:      correctness,
		SuggestedImprovements: improvements,
		ConfidenceError:       confErr,
		ActionQualityScore:    actionQuality,
		ReasoningQualityScore: reasoningQuality,
		Metadata: map[string]any{
			"predicted_confidence": predictedConfidence,
		},
	})
}

// calculateCorrectness: approved feedback starts at 1.0, rejected at 0.0;
// a correction or a modification each subtract their fixed penalty,
// clamped to [0,1].
func (p *FeedbackProcessor) calculateCorrectness(fb *UserFeedback) float64 {
	score := correctnessRejected
	if fb.Approval {
		score = correctnessApproved
	}
	if fb.Correction != "" {
		score -= correctnessCorrectionPenalty
	}
	if fb.Modification != nil {
		score -= correctnessModificationPenalty
	}
	return clamp01(score)
}

// calculateActionQuality: base score by whether an action was executed at
// all (a modified action counts as executed), then adjusted up on approval,
// down on rejection, and down again if the user modified the action before
// it ran. There is no separate score for an event with no proposed action.
func (p *FeedbackProcessor) calculateActionQuality(fb *UserFeedback) float64 {
	var score float64
	switch {
	case fb.Modification != nil:
		score = actionQualityExecuted
	case fb.ActionExecuted:
		score = actionQualityExecuted
	default:
		score = actionQualityNotExecuted
	}
	if fb.Modification != nil {
		score *= actionQualityModifiedMultiplier
	}
	if fb.Approval {
		score = clamp01(score * actionQualityApprovalBoost)
	} else {
		score *= actionQualityRejectionPenalty
	}
	return clamp01(score)
}

// calculateReasoningQuality rewards convergence in a single pass and
// penalizes excessive passes; a very fast implicit approval (no comment,
// no correction, quick time-to-action) gets a small boost as a proxy for
// "the user didn't need to think about it".
func (p *FeedbackProcessor) calculateReasoningQuality(fb *UserFeedback, wm *memory.WorkingMemory) float64 {
	summary := wm.GetReasoningSummary()
	score := summary.OverallConfidence
	if score == 0 {
		score = 0.5
	}
	switch {
	case summary.PassCount <= 1:
		score = clamp01(score * reasoningSinglePassBonus)
	case summary.PassCount >= reasoningManyPassesThreshold:
		score *= reasoningManyPassesPenalty
	}
	if fb.Comment == "" && fb.Correction == "" && fb.TimeToAction.Seconds() < reasoningFastImplicitSeconds {
		score = clamp01(score * reasoningFastImplicitBoost)
	}
	return clamp01(score)
}

// calculateConfidenceError reports signed error between what the system
// predicted and what the outcome implies: positive means underconfident
// (predicted too low given a good outcome), negative overconfident.
func (p *FeedbackProcessor) calculateConfidenceError(fb *UserFeedback, predictedConfidence float64) float64 {
	outcome := 0.0
	if fb.IsPositive() {
		outcome = 1.0
	}
	diff := outcome - predictedConfidence
	switch {
	case predictedConfidence >= confidenceHighThreshold && outcome == 0:
		diff += overconfidenceAdjustment
	case predictedConfidence <= confidenceLowThreshold && outcome == 1:
		diff += underconfidenceAdjustment
	}
	if diff > 1 {
		diff = 1
	}
	if diff < -1 {
		diff = -1
	}
	return diff
}

func (p *FeedbackProcessor) suggestImprovements(fb *UserFeedback, correctness, confErr, reasoningQuality float64) []string {
	var out []string
	if correctness < triggerCorrectnessThreshold {
		out = append(out, "reduce confidence or require review for this event pattern")
	}
	if confErr > triggerConfidenceErrorThreshold {
		out = append(out, "system is underconfident for this pattern; consider raising confidence")
	}
	if confErr < -triggerConfidenceErrorThreshold {
		out = append(out, "system is overconfident for this pattern; consider lowering confidence")
	}
	if reasoningQuality < triggerReasoningQualityThreshold {
		out = append(out, "reasoning took too many passes without converging; consider additional context sources")
	}
	if fb.Correction != "" {
		out = append(out, "incorporate user correction into future similar decisions")
	}
	return out
}

// ShouldTriggerLearning reports whether an analysis is significant enough
// to warrant pattern/provider/calibration updates, versus being routine
// positive feedback that needs no adjustment.
func (p *FeedbackProcessor) ShouldTriggerLearning(a *FeedbackAnalysis) bool {
	if a.CorrectnessScore < triggerCorrectnessThreshold {
		return true
	}
	if a.ConfidenceError > triggerConfidenceErrorThreshold || a.ConfidenceError < -triggerConfidenceErrorThreshold {
		return true
	}
	if a.ReasoningQualityScore < triggerReasoningQualityThreshold {
		return true
	}
	return false
}

// ExtractCorrectionActions returns the free-text correction as a
// single-element slice suitable for feeding into a knowledge update, or
// nil if there was no correction.
func (p *FeedbackProcessor) ExtractCorrectionActions(fb *UserFeedback) []string {
	if fb.Correction == "" {
		return nil
	}
	return []string{fb.Correction}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
