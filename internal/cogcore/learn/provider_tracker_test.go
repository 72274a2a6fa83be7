package learn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifold/internal/cogcore/reason"
)

func TestProviderTracker_RecordCallAndScoreFor(t *testing.T) {
	t.Parallel()
	tr := NewProviderTracker()

	tr.RecordCall(reason.CallObservation{Provider: "anthropic", Tier: "haiku", Latency: 100 * time.Millisecond, PredictedConfidence: 0.8, CostUSD: 0.01}, true)
	tr.RecordCall(reason.CallObservation{Provider: "anthropic", Tier: "haiku", Latency: 200 * time.Millisecond, PredictedConfidence: 0.6, CostUSD: 0.02}, false)

	score := tr.ScoreFor("anthropic", "haiku")
	require.NotNil(t, score)
	assert.Equal(t, 2, score.TotalCalls)
	assert.Equal(t, 1, score.SuccessfulCalls)
	assert.Equal(t, 1, score.FailedCalls)
	assert.InDelta(t, 0.7, score.AvgConfidence, 1e-9)
	assert.InDelta(t, 0.03, score.TotalCostUSD, 1e-9)
}

func TestProviderTracker_ScoreFor_UnknownPairReturnsNil(t *testing.T) {
	t.Parallel()
	tr := NewProviderTracker()
	assert.Nil(t, tr.ScoreFor("nobody", "notier"))
}

func TestProviderTracker_Providers_ListsSortedKeys(t *testing.T) {
	t.Parallel()
	tr := NewProviderTracker()
	tr.RecordCall(reason.CallObservation{Provider: "openai", Tier: "gpt5"}, true)
	tr.RecordCall(reason.CallObservation{Provider: "anthropic", Tier: "haiku"}, true)

	assert.Equal(t, []string{"anthropic:haiku", "openai:gpt5"}, tr.Providers())
}

func TestProviderTracker_HistoryCapacityAndPruning(t *testing.T) {
	t.Parallel()
	tr := NewProviderTracker()
	for i := 0; i < providerCallHistoryCapacity+50; i++ {
		tr.RecordCall(reason.CallObservation{Provider: "anthropic", Tier: "haiku", Latency: time.Millisecond, PredictedConfidence: 0.5}, true)
	}
	score := tr.ScoreFor("anthropic", "haiku")
	require.NotNil(t, score)
	assert.LessOrEqual(t, score.TotalCalls, providerCallHistoryCapacity)
}

func TestPercentile_ComputesP95FromSortedSlice(t *testing.T) {
	t.Parallel()
	xs := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	assert.Equal(t, 100.0, percentile(xs, 0.95))
	assert.Equal(t, 0.0, percentile(nil, 0.95))
}

func TestProviderTracker_GetBestProvider_RequiresMinimumCallCount(t *testing.T) {
	t.Parallel()
	tr := NewProviderTracker()
	for i := 0; i < 4; i++ {
		tr.RecordCall(reason.CallObservation{Provider: "anthropic", Tier: "haiku", PredictedConfidence: 0.9}, true)
	}
	key, score := tr.GetBestProvider("balanced")
	assert.Empty(t, key)
	assert.Nil(t, score)

	tr.RecordCall(reason.CallObservation{Provider: "anthropic", Tier: "haiku", PredictedConfidence: 0.9}, true)
	key, score = tr.GetBestProvider("balanced")
	assert.Equal(t, "anthropic:haiku", key)
	require.NotNil(t, score)
}

func TestProviderTracker_GetBestProvider_PicksHigherSuccessRate(t *testing.T) {
	t.Parallel()
	tr := NewProviderTracker()
	for i := 0; i < 10; i++ {
		tr.RecordCall(reason.CallObservation{Provider: "good", Tier: "t", PredictedConfidence: 0.9, CostUSD: 0.01, Latency: 10 * time.Millisecond}, true)
	}
	for i := 0; i < 10; i++ {
		tr.RecordCall(reason.CallObservation{Provider: "bad", Tier: "t", PredictedConfidence: 0.9, CostUSD: 0.01, Latency: 10 * time.Millisecond}, i < 2)
	}

	key, _ := tr.GetBestProvider("quality")
	assert.Equal(t, "good:t", key)
}

func TestSplitProviderKey(t *testing.T) {
	t.Parallel()
	provider, tier := splitProviderKey("anthropic:haiku")
	assert.Equal(t, "anthropic", provider)
	assert.Equal(t, "haiku", tier)

	provider, tier = splitProviderKey("noColon")
	assert.Equal(t, "noColon", provider)
	assert.Empty(t, tier)
}

func TestOptimizationScore_VariantsWeightDifferently(t *testing.T) {
	t.Parallel()
	s := &ProviderScore{TotalCalls: 10, SuccessfulCalls: 9, FailedCalls: 1, AvgConfidence: 0.9, TotalCostUSD: 0.1, P95LatencyMS: 500}

	quality := optimizationScore(s, "quality")
	cost := optimizationScore(s, "cost")
	speed := optimizationScore(s, "speed")
	balanced := optimizationScore(s, "balanced")

	assert.Greater(t, quality, 0.0)
	assert.Greater(t, cost, 0.0)
	assert.Greater(t, speed, 0.0)
	assert.Greater(t, balanced, 0.0)
}
