// Package reason implements the multi-pass reasoner (C5): a state machine
// that drives 1..N passes over a working memory to convergence, calling an
// opaque AI router and context searcher.
package reason

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"manifold/internal/cogcore/cogerr"
	"manifold/internal/cogcore/event"
	"manifold/internal/cogcore/memory"
)

// TokenUsage reports input/output token counts for a single AI router call.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// CallObservation is fed to the learning engine after every AI router call.
type CallObservation struct {
	Provider            string
	Tier                string
	Latency             time.Duration
	CostUSD             float64
	PredictedConfidence float64
}

// Prompt is the structured input handed to the AI router: pass type,
// working-memory snapshot, and attached context items. The reasoner never
// assumes a single provider; the router is opaque.
type Prompt struct {
	PassType  memory.PassType
	Summary   memory.ReasoningSummary
	Event     *event.PerceivedEvent
	Context   []memory.ContextItem
	Hypotheses map[string]*memory.Hypothesis
}

// Response is what an AI router call returns alongside the observation.
type Response struct {
	Text       string
	Usage      TokenUsage
	Observation CallObservation
}

// AIRouter is the opaque boundary to whichever AI provider answers a
// reasoning prompt. Concrete adapters live in internal/cogcore/airouter.
type AIRouter interface {
	Complete(ctx context.Context, p Prompt) (Response, error)
}

// ContextQuery describes what the reasoner is asking the context searcher
// for.
type ContextQuery struct {
	EntityValues []string
	Since        time.Time
	Until        time.Time
}

// ContextSearcher returns notes, prior events, calendar occupancy, open
// tasks, entity profiles, and detected conflicts relevant to a query, each
// with a relevance score. Concrete adapters live in
// internal/cogcore/contextsearch.
type ContextSearcher interface {
	Search(ctx context.Context, q ContextQuery) ([]memory.ContextItem, error)
}

// Config tunes the reasoner.
type Config struct {
	MaxPasses             int
	ConvergenceThreshold  float64
	PassTimeout           time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxPasses <= 0 {
		c.MaxPasses = 5
	}
	if c.ConvergenceThreshold <= 0 {
		c.ConvergenceThreshold = 0.95
	}
	if c.PassTimeout <= 0 {
		c.PassTimeout = 30 * time.Second
	}
	return c
}

// Reasoner drives the working-memory state machine to convergence.
type Reasoner struct {
	cfg      Config
	router   AIRouter
	searcher ContextSearcher
	log      zerolog.Logger

	// Observe, if set, is called with every AI router call observation so
	// the learning engine (C9) can record provider performance. Optional.
	Observe func(CallObservation)
}

func New(cfg Config, router AIRouter, searcher ContextSearcher, log zerolog.Logger) *Reasoner {
	return &Reasoner{cfg: cfg.withDefaults(), router: router, searcher: searcher, log: log}
}

// passSequence is the typical pass_type dispatch order from spec.md §4.3:
// initial analysis -> context enrichment -> deep reasoning -> validation ->
// arbitration, cycling back to deep reasoning if more passes are needed
// after arbitration.
var passSequence = []memory.PassType{
	memory.PassInitialAnalysis,
	memory.PassContextEnrichment,
	memory.PassDeepReasoning,
	memory.PassValidation,
	memory.PassArbitration,
}

func (r *Reasoner) nextPassType(completed int) memory.PassType {
	if completed < len(passSequence) {
		return passSequence[completed]
	}
	return memory.PassDeepReasoning
}

// Run drives wm through passes until NeedsMoreReasoning returns false or
// max passes is reached. Any error from a pass's body is treated as a
// fail-safe: the pass is completed with its current output state, a
// domain-typed error is logged, and the event transitions to complete with
// the best hypothesis so far preserved.
func (r *Reasoner) Run(ctx context.Context, wm *memory.WorkingMemory) error {
	for wm.NeedsMoreReasoning(r.cfg.ConvergenceThreshold, r.cfg.MaxPasses) {
		pt := r.nextPassType(len(wm.CompletedPasses()))
		if err := r.runPass(ctx, wm, pt); err != nil {
			r.log.Error().Err(err).Str("event_id", wm.Event().EventID()).Str("pass_type", string(pt)).Msg("reasoning pass failed, preserving best hypothesis")
			break
		}
	}
	wm.SetState(memory.StateComplete)
	return nil
}

func (r *Reasoner) runPass(ctx context.Context, wm *memory.WorkingMemory, pt memory.PassType) error {
	pass, err := wm.StartReasoningPass(pt)
	if err != nil {
		return err
	}

	passCtx, cancel := context.WithTimeout(ctx, r.cfg.PassTimeout)
	defer cancel()

	outputConfidence := pass.InputConfidence

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error().Interface("panic", rec).Msg("reasoning pass body panicked, completing with pre-call state")
			}
		}()

		switch pt {
		case memory.PassContextEnrichment:
			if r.searcher == nil {
				return
			}
			items, serr := r.searcher.Search(passCtx, ContextQuery{
				EntityValues: entityValues(wm.Event()),
			})
			if serr != nil {
				r.log.Warn().Err(serr).Msg("context search failed")
				return
			}
			for _, it := range items {
				wm.AddContext(it)
			}
		default:
			if r.router == nil {
				return
			}
			resp, rerr := r.router.Complete(passCtx, Prompt{
				PassType:   pt,
				Summary:    wm.GetReasoningSummary(),
				Event:      wm.Event(),
				Context:    wm.ContextItems(),
				Hypotheses: wm.Hypotheses(),
			})
			if rerr != nil {
				r.log.Warn().Err(rerr).Msg("ai router call failed")
				return
			}
			if r.Observe != nil {
				r.Observe(resp.Observation)
			}
			outputConfidence = resp.Observation.PredictedConfidence
		}
	}()

	if passCtx.Err() != nil {
		// Timeout: complete the pass with its pre-call state and record
		// it in metadata; rollback of any partial effects is the caller's
		// concern (there are none at the reasoning layer).
		_, cerr := wm.CompleteReasoningPass(pass.InputConfidence)
		if cerr != nil {
			return cerr
		}
		return cogerr.NewValidation("pass_timeout", "pass %q exceeded %s", pt, r.cfg.PassTimeout)
	}

	_, err = wm.CompleteReasoningPass(clamp01(outputConfidence))
	return err
}

func entityValues(ev *event.PerceivedEvent) []string {
	var out []string
	for _, e := range ev.Entities() {
		out = append(out, e.Value)
	}
	return out
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
