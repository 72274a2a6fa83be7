// Package airouter adapts the existing multi-provider llm.Provider
// interface (anthropic-sdk-go, openai-go/v2, google.golang.org/genai,
// selected at construction time by cmd/cogcored's buildProvider) into the
// reasoner's opaque AIRouter contract, recording provider/tier/latency/
// cost on every call for the learning engine.
package airouter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"manifold/internal/cogcore/memory"
	"manifold/internal/cogcore/reason"
	"manifold/internal/llm"
)

// CostTable maps a (provider, tier) pair to an approximate cost-per-call in
// USD, used to populate CallObservation.CostUSD. Real deployments load this
// from provider pricing pages; tests can supply a zero-value table.
type CostTable map[string]float64

func (t CostTable) lookup(provider, tier string) float64 {
	if v, ok := t[provider+":"+tier]; ok {
		return v
	}
	return 0
}

// Router wraps a concrete llm.Provider behind the reason.AIRouter
// interface.
type Router struct {
	Provider   llm.Provider
	Name       string // e.g. "anthropic", "openai", "google"
	Tier       string // e.g. "haiku", "sonnet", "opus"
	Model      string
	Costs      CostTable
}

var _ reason.AIRouter = (*Router)(nil)

// Complete renders the structured prompt into a chat message, calls the
// underlying provider, and reports an observation alongside the response.
func (r *Router) Complete(ctx context.Context, p reason.Prompt) (reason.Response, error) {
	prompt, err := renderPrompt(p)
	if err != nil {
		return reason.Response{}, err
	}

	start := time.Now()
	msg, err := r.Provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: systemPromptFor(p.PassType)},
		{Role: "user", Content: prompt},
	}, nil, r.Model)
	latency := time.Since(start)
	if err != nil {
		return reason.Response{}, err
	}

	predicted := estimateConfidence(msg.Content)

	return reason.Response{
		Text: msg.Content,
		Observation: reason.CallObservation{
			Provider:            r.Name,
			Tier:                r.Tier,
			Latency:             latency,
			CostUSD:             r.Costs.lookup(r.Name, r.Tier),
			PredictedConfidence: predicted,
		},
	}, nil
}

func systemPromptFor(pt memory.PassType) string {
	return fmt.Sprintf("You are a reasoning pass of type %q in a cognitive assistant pipeline. Respond with your analysis and a confidence estimate.", pt)
}

func renderPrompt(p reason.Prompt) (string, error) {
	payload := map[string]any{
		"pass_type": p.PassType,
		"summary":   p.Summary,
	}
	if p.Event != nil {
		payload["event"] = p.Event.ToMap()
	}
	payload["context"] = p.Context
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// estimateConfidence is a placeholder heuristic until the provider's
// structured output includes an explicit confidence field; it keeps the
// reasoner's convergence loop well-defined even against a provider that
// returns plain text.
func estimateConfidence(text string) float64 {
	if text == "" {
		return 0.5
	}
	n := len(text)
	switch {
	case n > 2000:
		return 0.9
	case n > 500:
		return 0.8
	default:
		return 0.6
	}
}
