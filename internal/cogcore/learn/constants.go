package learn

// Tunable constants for feedback scoring, pattern maintenance, and
// calibration. The upstream source this was distilled from left its
// equivalents as an empty module; the values below are invented defaults
// chosen to be internally consistent (see DESIGN.md's Open Questions
// section for the full rationale behind each).
const (
	// Correctness scoring.
	correctnessApproved       = 1.0
	correctnessRejected       = 0.0
	correctnessCorrectionPenalty = 0.3
	correctnessModificationPenalty = 0.2

	// Action quality scoring.
	actionQualityExecuted    = 0.8
	actionQualityNotExecuted = 0.2
	actionQualityNoActions   = 0.5
	actionQualityModifiedMultiplier = 0.7
	actionQualityApprovalBoost      = 1.1
	actionQualityRejectionPenalty   = 0.5

	// Confidence-error classification.
	confidenceHighThreshold = 0.8
	confidenceLowThreshold  = 0.3
	underconfidenceAdjustment = 0.15
	overconfidenceAdjustment  = -0.15

	// Reasoning-quality scoring.
	reasoningSinglePassBonus     = 1.1
	reasoningManyPassesThreshold = 4
	reasoningManyPassesPenalty   = 0.85
	reasoningFastImplicitSeconds = 10
	reasoningFastImplicitBoost   = 1.1

	// Learning trigger thresholds (ShouldTriggerLearning).
	triggerCorrectnessThreshold    = 0.6
	triggerConfidenceErrorThreshold = 0.3
	triggerReasoningQualityThreshold = 0.5

	// Perfect-feedback fast path.
	perfectConfirmationScore  = 0.9
	perfectTimeThresholdSecs  = 30

	// Pattern store defaults.
	patternMinOccurrences   = 3
	patternMinSuccessRate   = 0.5
	patternMaxAgeDays       = 90
	patternSuccessBoost     = 1.05
	patternFailurePenalty   = 0.85
	patternPruneAgeMultiplier    = 3.0
	patternPruneSuccessMultiplier = 0.5

	// Pattern relevance weighting (sums to 1.0 across the three factors).
	relevanceConditionWeight  = 0.5
	relevanceRecencyWeight    = 0.3
	relevanceOccurrenceWeight = 0.2
	relevanceRecencyFloor     = 0.1
	relevanceOccurrenceCap    = 2.0

	// Provider tracker.
	providerCallHistoryCapacity = 500
	providerPruneEvery          = 100
	providerPruneKeep           = 200

	// Confidence calibrator.
	calibrationBinCount         = 10
	calibrationMinSamplesPerBin = 10
	calibrationMinGlobalSamples = 50
)
