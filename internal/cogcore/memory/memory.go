// Package memory implements the per-event working memory (C4): a mutable
// blackboard that the multi-pass reasoner (C5) reads and writes while
// converging on a best hypothesis. A WorkingMemory is owned by exactly one
// processing worker at a time and is never shared across events.
package memory

import (
	"time"

	"github.com/google/uuid"

	"manifold/internal/cogcore/cogerr"
	"manifold/internal/cogcore/event"
)

// State is the working-memory lifecycle state machine.
type State string

const (
	StateInitialized State = "initialized"
	StatePerceiving  State = "perceiving"
	StateReasoning   State = "reasoning"
	StatePlanning    State = "planning"
	StateExecuting   State = "executing"
	StateComplete    State = "complete"
	StateArchived    State = "archived"
)

// Hypothesis is a candidate conclusion with supporting/contradicting
// evidence and a confidence. Mutable within a WorkingMemory: callers
// replace hypotheses by id via AddHypothesis(..., replace=true).
type Hypothesis struct {
	ID                  string
	Description         string
	Confidence          float64
	SupportingEvidence   []string
	ContradictingEvidence []string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	Metadata            map[string]any
}

// PassType names the kind of work a ReasoningPass performs.
type PassType string

const (
	PassInitialAnalysis    PassType = "initial_analysis"
	PassContextEnrichment  PassType = "context_enrichment"
	PassDeepReasoning      PassType = "deep_reasoning"
	PassValidation         PassType = "validation"
	PassArbitration        PassType = "arbitration"
)

// ReasoningPass records one completed step of the multi-pass state machine.
type ReasoningPass struct {
	PassNumber      int
	PassType        PassType
	StartedAt       time.Time
	CompletedAt     time.Time
	Duration        time.Duration
	InputConfidence  float64
	OutputConfidence float64
	ConfidenceDelta  float64
	ContextQueries  []string
	AIPrompts       []string
	AIResponses     []string
	Insights        []string
	QuestionsRaised []string
	EntitiesExtracted []event.Entity
	TimedOut        bool
}

// ContextItem is a single piece of retrieved context attached to working
// memory by the context searcher.
type ContextItem struct {
	Source        string
	Type          string
	Content       string
	RelevanceScore float64
	RetrievedAt   time.Time
}

// WorkingMemory is the mutable per-event blackboard. Not safe for
// concurrent use from more than one goroutine; a single worker owns it for
// the lifetime of processing one event.
type WorkingMemory struct {
	event *event.PerceivedEvent
	state State

	hypotheses map[string]*Hypothesis
	best       *Hypothesis

	completedPasses []ReasoningPass
	inProgress      *ReasoningPass

	contextItems []ContextItem

	openQuestions []string
	uncertainties []string

	conversationID     string
	conversationEvents []*event.PerceivedEvent

	overallConfidence float64

	now func() time.Time
}

// New creates a WorkingMemory for driving event ev. now, if nil, defaults
// to time.Now; tests may override it for determinism.
func New(ev *event.PerceivedEvent, now func() time.Time) *WorkingMemory {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &WorkingMemory{
		event:      ev,
		state:      StateInitialized,
		hypotheses: make(map[string]*Hypothesis),
		now:        now,
	}
}

func (w *WorkingMemory) Event() *event.PerceivedEvent { return w.event }
func (w *WorkingMemory) State() State                 { return w.state }
func (w *WorkingMemory) OverallConfidence() float64   { return w.overallConfidence }

// SetState transitions the working memory's lifecycle state directly; used
// by the orchestrating caller (the reasoner driver) between stages that are
// not pass-local (perceiving -> reasoning -> planning -> executing ->
// complete -> archived).
func (w *WorkingMemory) SetState(s State) { w.state = s }

// BestHypothesis returns the highest-confidence hypothesis, or nil if none
// has been added yet.
func (w *WorkingMemory) BestHypothesis() *Hypothesis { return w.best }

// Hypotheses returns every hypothesis keyed by id.
func (w *WorkingMemory) Hypotheses() map[string]*Hypothesis {
	out := make(map[string]*Hypothesis, len(w.hypotheses))
	for k, v := range w.hypotheses {
		out[k] = v
	}
	return out
}

// AddHypothesis inserts h. A duplicate id is an error unless replace is
// true. The "best" pointer is recomputed by max confidence after insertion.
func (w *WorkingMemory) AddHypothesis(h Hypothesis, replace bool) (*Hypothesis, error) {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if _, exists := w.hypotheses[h.ID]; exists && !replace {
		return nil, cogerr.NewStateMisuse("add_hypothesis", "duplicate hypothesis id %q", h.ID)
	}
	if h.Confidence < 0 || h.Confidence > 1 {
		return nil, cogerr.NewValidation("hypothesis.confidence", "must be in [0,1], got %v", h.Confidence)
	}
	now := w.now()
	if h.CreatedAt.IsZero() {
		h.CreatedAt = now
	}
	h.UpdatedAt = now
	stored := h
	w.hypotheses[h.ID] = &stored
	w.recomputeBest()
	return &stored, nil
}

func (w *WorkingMemory) recomputeBest() {
	var best *Hypothesis
	for _, h := range w.hypotheses {
		if best == nil || h.Confidence > best.Confidence {
			best = h
		}
	}
	w.best = best
}

// StartReasoningPass begins a new pass. Preconditions: state is not
// complete/archived, and no pass is currently in progress.
func (w *WorkingMemory) StartReasoningPass(pt PassType) (*ReasoningPass, error) {
	if w.state == StateComplete || w.state == StateArchived {
		return nil, cogerr.NewStateMisuse("start_reasoning_pass", "cannot start a pass in state %q", w.state)
	}
	if w.inProgress != nil {
		return nil, cogerr.NewStateMisuse("start_reasoning_pass", "a pass is already in progress")
	}
	w.state = StateReasoning
	w.inProgress = &ReasoningPass{
		PassNumber:      len(w.completedPasses) + 1,
		PassType:        pt,
		StartedAt:       w.now(),
		InputConfidence: w.overallConfidence,
	}
	return w.inProgress, nil
}

// InProgressPass returns the pass currently being built, or nil.
func (w *WorkingMemory) InProgressPass() *ReasoningPass { return w.inProgress }

// CompleteReasoningPass finishes the in-progress pass with the given output
// confidence, appends it to history, and updates overall confidence.
// Preconditions: a pass is in progress and state is reasoning.
func (w *WorkingMemory) CompleteReasoningPass(outputConfidence float64) (ReasoningPass, error) {
	if w.inProgress == nil {
		return ReasoningPass{}, cogerr.NewStateMisuse("complete_reasoning_pass", "no pass in progress")
	}
	if w.state != StateReasoning {
		return ReasoningPass{}, cogerr.NewStateMisuse("complete_reasoning_pass", "state must be reasoning, got %q", w.state)
	}
	if outputConfidence < 0 || outputConfidence > 1 {
		return ReasoningPass{}, cogerr.NewValidation("output_confidence", "must be in [0,1]")
	}
	p := *w.inProgress
	p.CompletedAt = w.now()
	p.Duration = p.CompletedAt.Sub(p.StartedAt)
	p.OutputConfidence = outputConfidence
	p.ConfidenceDelta = outputConfidence - p.InputConfidence

	w.completedPasses = append(w.completedPasses, p)
	w.inProgress = nil
	w.overallConfidence = outputConfidence
	return p, nil
}

// CompletedPasses returns every completed pass in order.
func (w *WorkingMemory) CompletedPasses() []ReasoningPass {
	return append([]ReasoningPass(nil), w.completedPasses...)
}

// AddContext attaches a retrieved context item.
func (w *WorkingMemory) AddContext(item ContextItem) {
	if item.RetrievedAt.IsZero() {
		item.RetrievedAt = w.now()
	}
	w.contextItems = append(w.contextItems, item)
}

// AddContextSimple is a convenience wrapper for attaching a context item
// without retrieval metadata beyond a relevance score.
func (w *WorkingMemory) AddContextSimple(source, typ, content string, relevance float64) {
	w.AddContext(ContextItem{Source: source, Type: typ, Content: content, RelevanceScore: relevance})
}

// ContextItems returns every attached context item, ranked by relevance
// descending.
func (w *WorkingMemory) ContextItems() []ContextItem {
	out := append([]ContextItem(nil), w.contextItems...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].RelevanceScore > out[j-1].RelevanceScore; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// AddQuestion appends an open question if not already present.
func (w *WorkingMemory) AddQuestion(q string) {
	for _, existing := range w.openQuestions {
		if existing == q {
			return
		}
	}
	w.openQuestions = append(w.openQuestions, q)
}

// AddUncertainty appends an uncertainty note if not already present.
func (w *WorkingMemory) AddUncertainty(u string) {
	for _, existing := range w.uncertainties {
		if existing == u {
			return
		}
	}
	w.uncertainties = append(w.uncertainties, u)
}

func (w *WorkingMemory) OpenQuestions() []string { return append([]string(nil), w.openQuestions...) }
func (w *WorkingMemory) Uncertainties() []string { return append([]string(nil), w.uncertainties...) }

// UpdateConfidence sets overall_confidence directly, used by passes that
// adjust confidence without completing (e.g. mid-pass recalculation).
func (w *WorkingMemory) UpdateConfidence(c float64) error {
	if c < 0 || c > 1 {
		return cogerr.NewValidation("overall_confidence", "must be in [0,1]")
	}
	w.overallConfidence = c
	return nil
}

// IsConfident reports whether overall confidence meets or exceeds
// threshold.
func (w *WorkingMemory) IsConfident(threshold float64) bool {
	return w.overallConfidence >= threshold
}

// NeedsMoreReasoning implements the convergence decision from spec.md
// §4.3: stop at max_passes regardless of confidence; otherwise continue
// while confidence is below threshold or open questions/uncertainties
// remain; stop only once both conditions clear.
func (w *WorkingMemory) NeedsMoreReasoning(threshold float64, maxPasses int) bool {
	if len(w.completedPasses) >= maxPasses {
		return false
	}
	if w.overallConfidence < threshold {
		return true
	}
	if len(w.openQuestions) > 0 || len(w.uncertainties) > 0 {
		return true
	}
	return false
}

// SetContinuous marks a conversation continuity id plus the ordered list of
// prior events in that conversation. The slice is defensively copied.
func (w *WorkingMemory) SetContinuous(conversationID string, priorEvents []*event.PerceivedEvent) {
	w.conversationID = conversationID
	w.conversationEvents = append([]*event.PerceivedEvent(nil), priorEvents...)
}

func (w *WorkingMemory) ConversationID() string { return w.conversationID }
func (w *WorkingMemory) ConversationEvents() []*event.PerceivedEvent {
	return append([]*event.PerceivedEvent(nil), w.conversationEvents...)
}

// ReasoningSummary is a compact snapshot used for logging/AI-router
// prompts.
type ReasoningSummary struct {
	EventID           string
	State             State
	PassCount         int
	OverallConfidence float64
	BestHypothesisID  string
	OpenQuestionCount int
	UncertaintyCount  int
}

// GetReasoningSummary returns a compact snapshot of the working memory's
// current reasoning state.
func (w *WorkingMemory) GetReasoningSummary() ReasoningSummary {
	s := ReasoningSummary{
		State:             w.state,
		PassCount:         len(w.completedPasses),
		OverallConfidence: w.overallConfidence,
		OpenQuestionCount: len(w.openQuestions),
		UncertaintyCount:  len(w.uncertainties),
	}
	if w.event != nil {
		s.EventID = w.event.EventID()
	}
	if w.best != nil {
		s.BestHypothesisID = w.best.ID
	}
	return s
}
