package learn

import (
	"math"
	"sort"
	"sync"
	"time"

	"manifold/internal/cogcore/reason"
)

// callRecord is one observed AI call, kept in a bounded ring buffer per
// provider/tier pair so percentile latency can be recomputed from actual
// samples rather than a running estimate.
type callRecord struct {
	latencyMS  float64
	success    bool
	confidence float64
	costUSD    float64
	at         time.Time
}

type providerKey struct {
	provider string
	tier     string
}

func (k providerKey) String() string { return k.provider + ":" + k.tier }

// CallSink receives every recorded call observation alongside the
// in-memory ring buffer, for a longitudinal store that outlives process
// restarts. Implementations must not block RecordCall's caller.
type CallSink interface {
	Record(obs reason.CallObservation, success bool)
}

// ProviderTracker accumulates per-(provider,tier) call history and derives
// a ProviderScore plus an optimization ranking from it.
type ProviderTracker struct {
	mu      sync.Mutex
	history map[providerKey][]callRecord
	calls   int

	// Sink, if set, is fanned out to on every RecordCall in addition to
	// the in-memory ring buffer the live ranking reads from.
	Sink CallSink
}

func NewProviderTracker() *ProviderTracker {
	return &ProviderTracker{history: make(map[providerKey][]callRecord)}
}

// RecordCall appends an observation and, every providerPruneEvery calls
// across all providers, trims each provider's history back down to
// providerPruneKeep of its most recent entries.
func (t *ProviderTracker) RecordCall(obs reason.CallObservation, success bool) {
	t.mu.Lock()
	k := providerKey{obs.Provider, obs.Tier}
	rec := callRecord{
		latencyMS:  float64(obs.Latency.Milliseconds()),
		success:    success,
		confidence: obs.PredictedConfidence,
		costUSD:    obs.CostUSD,
		at:         time.Now().UTC(),
	}
	hist := append(t.history[k], rec)
	if len(hist) > providerCallHistoryCapacity {
		hist = hist[len(hist)-providerCallHistoryCapacity:]
	}
	t.history[k] = hist

	t.calls++
	if t.calls%providerPruneEvery == 0 {
		t.pruneLocked()
	}
	sink := t.Sink
	t.mu.Unlock()

	if sink != nil {
		go sink.Record(obs, success)
	}
}

func (t *ProviderTracker) pruneLocked() {
	for k, hist := range t.history {
		if len(hist) > providerPruneKeep {
			t.history[k] = hist[len(hist)-providerPruneKeep:]
		}
	}
}

// ScoreFor computes the current ProviderScore for one provider/tier pair
// from its retained history.
func (t *ProviderTracker) ScoreFor(provider, tier string) *ProviderScore {
	t.mu.Lock()
	hist := append([]callRecord(nil), t.history[providerKey{provider, tier}]...)
	t.mu.Unlock()

	if len(hist) == 0 {
		return nil
	}

	var successful, failed int
	var sumConf, sumLatency, sumCost float64
	latencies := make([]float64, 0, len(hist))
	for _, r := range hist {
		if r.success {
			successful++
		} else {
			failed++
		}
		sumConf += r.confidence
		sumLatency += r.latencyMS
		sumCost += r.costUSD
		latencies = append(latencies, r.latencyMS)
	}
	sort.Float64s(latencies)

	score, err := NewProviderScore(ProviderScore{
		ProviderName:    provider,
		ModelTier:       tier,
		TotalCalls:      len(hist),
		SuccessfulCalls: successful,
		FailedCalls:     failed,
		AvgConfidence:   sumConf / float64(len(hist)),
		AvgLatencyMS:    sumLatency / float64(len(hist)),
		P95LatencyMS:    percentile(latencies, 0.95),
		TotalCostUSD:    sumCost,
		UpdatedAt:       time.Now().UTC(),
	})
	if err != nil {
		return nil
	}
	return score
}

// percentile assumes xs is already sorted ascending.
func percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(xs)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(xs) {
		idx = len(xs) - 1
	}
	return xs[idx]
}

// Providers lists every (provider,tier) pair with recorded history.
func (t *ProviderTracker) Providers() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.history))
	for k := range t.history {
		out = append(out, k.String())
	}
	sort.Strings(out)
	return out
}

// GetBestProvider ranks every tracked (provider,tier) pair by a weighted
// optimization score favoring success rate, penalizing cost-per-success
// and p95 latency, and returns the winner's key plus its score. optimizeFor
// selects which formula to use: "quality" weighs success/confidence
// heaviest, "cost" weighs cost-per-success heaviest, "speed" weighs p95
// latency heaviest, and "balanced" (the default for any other value)
// weighs success rate 0.4 and confidence, cost and speed 0.2 each.
func (t *ProviderTracker) GetBestProvider(optimizeFor string) (string, *ProviderScore) {
	var bestKey string
	var bestScore *ProviderScore
	var bestValue float64

	for _, key := range t.Providers() {
		provider, tier := splitProviderKey(key)
		s := t.ScoreFor(provider, tier)
		if s == nil || s.TotalCalls < 5 {
			continue
		}
		value := optimizationScore(s, optimizeFor)
		if bestScore == nil || value > bestValue {
			bestKey, bestScore, bestValue = key, s, value
		}
	}
	return bestKey, bestScore
}

func splitProviderKey(key string) (provider, tier string) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == ':' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

func optimizationScore(s *ProviderScore, optimizeFor string) float64 {
	successTerm := s.SuccessRate()
	confTerm := s.AvgConfidence * (1 - s.CalibrationError)
	costTerm := 1.0
	if s.CostPerSuccessUSD() > 0 {
		costTerm = 1.0 / (1.0 + s.CostPerSuccessUSD())
	}
	speedTerm := 1.0
	if s.P95LatencyMS > 0 {
		speedTerm = 1.0 / (1.0 + s.P95LatencyMS/1000.0)
	}

	switch optimizeFor {
	case "quality":
		return 0.6*successTerm + 0.4*confTerm
	case "cost":
		return 0.6*costTerm + 0.2*successTerm + 0.2*confTerm
	case "speed":
		return 0.6*speedTerm + 0.2*successTerm + 0.2*confTerm
	default:
		return 0.4*successTerm + 0.2*confTerm + 0.2*costTerm + 0.2*speedTerm
	}
}
