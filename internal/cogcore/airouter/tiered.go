package airouter

import (
	"context"
	"fmt"

	"manifold/internal/cogcore/memory"
	"manifold/internal/cogcore/reason"
)

// tierForPass assigns each reasoning pass to a cost tier: initial triage
// stays cheap, deep reasoning and validation spend a bit more, and the
// final arbitration pass — the one that actually produces the decision —
// gets the strongest configured model.
var tierForPass = map[memory.PassType]string{
	memory.PassInitialAnalysis:   "cheap",
	memory.PassContextEnrichment: "cheap",
	memory.PassDeepReasoning:     "mid",
	memory.PassValidation:        "mid",
	memory.PassArbitration:       "premium",
}

// TieredRouter dispatches each pass to the Router registered for its tier,
// letting a single reasoning run span multiple AI provider backends
// (openai, anthropic, google) instead of pinning the whole pipeline to
// one. Passes whose tier has no registered Router fall back to Default.
type TieredRouter struct {
	ByTier  map[string]*Router
	Default string
}

var _ reason.AIRouter = (*TieredRouter)(nil)

func (t *TieredRouter) Complete(ctx context.Context, p reason.Prompt) (reason.Response, error) {
	tier := tierForPass[p.PassType]
	r, ok := t.ByTier[tier]
	if !ok {
		r, ok = t.ByTier[t.Default]
	}
	if !ok || r == nil {
		return reason.Response{}, fmt.Errorf("airouter: no router configured for tier %q (pass %q)", tier, p.PassType)
	}
	return r.Complete(ctx, p)
}
