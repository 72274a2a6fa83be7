package learn

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifold/internal/cogcore/event"
)

func typedEvent(t *testing.T, et event.EventType) *event.PerceivedEvent {
	t.Helper()
	now := time.Now().UTC()
	ev, err := event.New(event.Params{
		Source:      event.SourceMail,
		SourceID:    "msg-1",
		OccurredAt:  now,
		ReceivedAt:  now,
		PerceivedAt: now,
		Title:       "subject",
		FromPerson:  "alice@example.com",
		EventType:   et,
		Now:         now,
	})
	require.NoError(t, err)
	return ev
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestPatternStore_AddAndFindMatchingPatterns(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewPatternStore("", fixedClock(now))

	_, err := s.AddPattern(Pattern{
		PatternType:      PatternContextTrigger,
		Conditions:       map[string]any{"event_type": string(event.EventInformation)},
		SuggestedActions: []string{"archive"},
		Confidence:       0.8,
		SuccessRate:      0.8,
		Occurrences:      patternMinOccurrences,
	})
	require.NoError(t, err)

	matches := s.FindMatchingPatterns(typedEvent(t, event.EventInformation), nil)
	require.Len(t, matches, 1)

	assert.Empty(t, s.FindMatchingPatterns(typedEvent(t, event.EventRequest), nil))
}

func TestPatternStore_FindMatchingPatterns_FiltersUnderTrustedPatterns(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewPatternStore("", fixedClock(now))
	ev := testEvent(t)

	_, err := s.AddPattern(Pattern{
		Conditions:       map[string]any{"event_type": string(ev.EventType())},
		SuggestedActions: []string{"archive"},
		Confidence:       0.9,
		SuccessRate:      0.9,
		Occurrences:      patternMinOccurrences - 1,
	})
	require.NoError(t, err)

	assert.Empty(t, s.FindMatchingPatterns(ev, nil))
}

func TestPatternStore_UpdatePattern_AdjustsConfidenceAndSuccessRate(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewPatternStore("", fixedClock(now))

	p, err := s.AddPattern(Pattern{
		SuggestedActions: []string{"archive"},
		Confidence:       0.5,
		SuccessRate:      0.5,
	})
	require.NoError(t, err)

	updated, err := s.UpdatePattern(p.PatternID, true)
	require.NoError(t, err)
	assert.Greater(t, updated.Confidence, 0.5)
	assert.Greater(t, updated.SuccessRate, 0.5)
	assert.Equal(t, 1, updated.Occurrences)

	worse, err := s.UpdatePattern(p.PatternID, false)
	require.NoError(t, err)
	assert.Less(t, worse.Confidence, updated.Confidence)
	assert.Equal(t, 2, worse.Occurrences)
}

func TestPatternStore_UpdatePattern_UnknownIDReturnsNilNil(t *testing.T) {
	t.Parallel()
	s := NewPatternStore("", nil)
	p, err := s.UpdatePattern("missing", true)
	assert.NoError(t, err)
	assert.Nil(t, p)
}

func TestPatternStore_PruneOldPatterns_RemovesStaleUnderperforming(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewPatternStore("", fixedClock(now))

	stale, err := s.AddPattern(Pattern{
		SuggestedActions: []string{"archive"},
		Confidence:       0.3,
		SuccessRate:      0.1,
		LastSeen:         now.Add(-time.Duration(patternMaxAgeDays*patternPruneAgeMultiplier+1) * 24 * time.Hour),
	})
	require.NoError(t, err)

	fresh, err := s.AddPattern(Pattern{
		SuggestedActions: []string{"archive"},
		Confidence:       0.9,
		SuccessRate:      0.9,
	})
	require.NoError(t, err)

	removed, err := s.PruneOldPatterns()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	all := s.All()
	require.Len(t, all, 1)
	assert.Equal(t, fresh.PatternID, all[0].PatternID)
	_ = stale
}

func TestPatternStore_PersistsAcrossReload(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "patterns.json")
	s1 := NewPatternStore(path, nil)
	p, err := s1.AddPattern(Pattern{SuggestedActions: []string{"archive"}, Confidence: 0.7, SuccessRate: 0.7})
	require.NoError(t, err)

	s2 := NewPatternStore(path, nil)
	all := s2.All()
	require.Len(t, all, 1)
	assert.Equal(t, p.PatternID, all[0].PatternID)
}
