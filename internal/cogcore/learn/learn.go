package learn

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"manifold/internal/cogcore/event"
	"manifold/internal/cogcore/memory"
	"manifold/internal/cogcore/reason"
)

// Engine ties the feedback processor, pattern store, provider tracker, and
// calibrator together into a single per-event learning pass.
type Engine struct {
	Feedback   *FeedbackProcessor
	Patterns   *PatternStore
	Providers  *ProviderTracker
	Calibrator *ConfidenceCalibrator
	Knowledge  *KnowledgeUpdater
	log        zerolog.Logger
}

func New(patterns *PatternStore, providers *ProviderTracker, calibrator *ConfidenceCalibrator, knowledge *KnowledgeUpdater, log zerolog.Logger) *Engine {
	return &Engine{
		Feedback:   NewFeedbackProcessor(),
		Patterns:   patterns,
		Providers:  providers,
		Calibrator: calibrator,
		Knowledge:  knowledge,
		log:        log,
	}
}

// Learn runs one full learning cycle for an event that has been resolved
// (reasoned about, planned, executed) and has user feedback available.
// predictedConfidence is the confidence the system reported at decision
// time; observations are the AI calls made during this event's reasoning
// passes, as collected by the reasoner's Observe hook. Learn records each
// of them into Providers with the feedback's outcome.
func (e *Engine) Learn(ctx context.Context, ev *event.PerceivedEvent, wm *memory.WorkingMemory, fb *UserFeedback, predictedConfidence float64, observations []reason.CallObservation) (*LearningResult, error) {
	start := time.Now()

	analysis, err := e.Feedback.AnalyzeFeedback(fb, wm, predictedConfidence)
	if err != nil {
		return nil, err
	}

	result := &LearningResult{
		ProviderScores:        make(map[string]*ProviderScore),
		ConfidenceAdjustments: make(map[string]float64),
		Metadata:              map[string]any{"event_id": ev.EventID()},
		Timestamp:             time.Now().UTC(),
		ResultID:              uuid.NewString(),
	}

	if err := e.Calibrator.Record(predictedConfidence, fb.IsPositive()); err != nil {
		e.log.Warn().Err(err).Msg("calibrator record failed")
	}

	for _, obs := range observations {
		e.Providers.RecordCall(obs, fb.IsPositive())
	}
	for _, key := range e.Providers.Providers() {
		if s := e.scoreByKey(key); s != nil {
			result.ProviderScores[key] = s
		}
	}

	if !e.Feedback.ShouldTriggerLearning(analysis) {
		result.Duration = time.Since(start)
		return result, nil
	}

	if err := e.updatePatterns(ev, analysis, result); err != nil {
		e.log.Warn().Err(err).Msg("pattern update failed")
	}

	if e.Knowledge != nil {
		updates, err := e.Knowledge.BuildUpdates(ev, wm, analysis)
		if err != nil {
			e.log.Warn().Err(err).Msg("knowledge update build failed")
		} else {
			applied, failed := e.Knowledge.Apply(ctx, updates)
			result.KnowledgeUpdates = updates
			result.UpdatesApplied += applied
			result.UpdatesFailed += failed
		}
	}

	result.ConfidenceAdjustments[string(ev.EventType())] = e.Calibrator.Adjust(predictedConfidence)
	result.Duration = time.Since(start)
	return result, nil
}

func (e *Engine) scoreByKey(key string) *ProviderScore {
	provider, tier := splitProviderKey(key)
	return e.Providers.ScoreFor(provider, tier)
}

// updatePatterns finds any existing pattern matching this event and
// updates it with the feedback outcome; if none matches and the feedback
// was strongly negative (a correction was supplied), a new candidate
// pattern is seeded from the event's own classification so future similar
// events can be caught once it accrues enough occurrences.
func (e *Engine) updatePatterns(ev *event.PerceivedEvent, analysis *FeedbackAnalysis, result *LearningResult) error {
	// Every stored pattern whose conditions match is updated, including
	// ones still below the trust gates FindMatchingPatterns applies, so a
	// freshly seeded pattern can accrue occurrences.
	var matches []*Pattern
	for _, p := range e.Patterns.All() {
		if p.Matches(ev, nil) {
			matches = append(matches, p)
		}
	}
	success := analysis.Feedback.IsPositive()

	if len(matches) > 0 {
		for _, p := range matches {
			updated, err := e.Patterns.UpdatePattern(p.PatternID, success)
			if err != nil {
				return err
			}
			if updated != nil {
				result.PatternUpdates = append(result.PatternUpdates, updated)
			}
		}
		return nil
	}

	if success || analysis.Feedback.Correction == "" {
		return nil
	}

	suggested := e.Feedback.ExtractCorrectionActions(analysis.Feedback)
	if len(suggested) == 0 {
		return nil
	}
	created, err := e.Patterns.AddPattern(Pattern{
		PatternType: PatternContextTrigger,
		Conditions: map[string]any{
			"event_type":  string(ev.EventType()),
			"min_urgency": string(ev.Urgency()),
		},
		SuggestedActions: suggested,
		Confidence:       0.5,
		SuccessRate:      0.5,
		Occurrences:      1,
	})
	if err != nil {
		return err
	}
	result.PatternUpdates = append(result.PatternUpdates, created)
	return nil
}
