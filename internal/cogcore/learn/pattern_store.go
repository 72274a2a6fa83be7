package learn

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"manifold/internal/cogcore/event"
	"manifold/internal/cogcore/store"
)

// PatternStore is a thread-safe, optionally disk-backed collection of
// learned Patterns. Every mutating call takes the lock for its full
// duration; FindMatchingPatterns snapshots under lock then scans outside
// it so match scoring never blocks concurrent writers.
type PatternStore struct {
	mu       sync.RWMutex
	patterns map[string]*Pattern
	path     string
	now      func() time.Time
}

func NewPatternStore(path string, now func() time.Time) *PatternStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	s := &PatternStore{patterns: make(map[string]*Pattern), path: path, now: now}
	s.load()
	return s
}

func (s *PatternStore) load() {
	if s.path == "" {
		return
	}
	var raw map[string]*Pattern
	if ok, err := store.ReadJSON(s.path, &raw); ok && err == nil {
		s.patterns = raw
	}
}

func (s *PatternStore) persist() error {
	if s.path == "" {
		return nil
	}
	return store.WriteJSONAtomic(s.path, s.patterns)
}

// AddPattern inserts a new pattern, assigning it an id if it has none.
func (s *PatternStore) AddPattern(p Pattern) (*Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.PatternID == "" {
		p.PatternID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	if p.LastSeen.IsZero() {
		p.LastSeen = p.CreatedAt
	}
	np, err := NewPattern(p)
	if err != nil {
		return nil, err
	}
	s.patterns[np.PatternID] = np
	return np, s.persist()
}

// UpdatePattern records a single occurrence's outcome against an existing
// pattern: confidence nudges up on success and down on failure, the
// success rate is an exponential moving average, and occurrences/last_seen
// always advance.
func (s *PatternStore) UpdatePattern(id string, success bool) (*Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.patterns[id]
	if !ok {
		return nil, nil
	}

	updated := *existing
	updated.Occurrences++
	updated.LastSeen = s.now()
	if success {
		updated.Confidence = clamp01(updated.Confidence * patternSuccessBoost)
	} else {
		updated.Confidence = clamp01(updated.Confidence * patternFailurePenalty)
	}
	const alpha = 0.2
	outcome := 0.0
	if success {
		outcome = 1.0
	}
	updated.SuccessRate = clamp01(updated.SuccessRate*(1-alpha) + outcome*alpha)

	np, err := NewPattern(updated)
	if err != nil {
		return nil, err
	}
	s.patterns[id] = np
	return np, s.persist()
}

// FindMatchingPatterns returns every stored pattern whose conditions match
// ev/context, filtered to those that have earned enough trust
// (min occurrences and min success rate), ordered by relevance score
// descending.
func (s *PatternStore) FindMatchingPatterns(ev *event.PerceivedEvent, context map[string]any) []*Pattern {
	s.mu.RLock()
	snapshot := make([]*Pattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		snapshot = append(snapshot, p)
	}
	s.mu.RUnlock()

	now := s.now()
	type scored struct {
		pattern *Pattern
		score   float64
	}
	var matched []scored
	for _, p := range snapshot {
		if !p.Matches(ev, context) {
			continue
		}
		if p.Occurrences < patternMinOccurrences || p.SuccessRate < patternMinSuccessRate {
			continue
		}
		matched = append(matched, scored{p, relevanceScore(p, now)})
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].score > matched[j].score })

	out := make([]*Pattern, len(matched))
	for i, m := range matched {
		out[i] = m.pattern
	}
	return out
}

// relevanceScore blends three weighted factors: the pattern's own
// confidence (as a proxy for condition strength), a recency term that
// decays linearly over patternMaxAgeDays down to a floor, and an
// occurrence term capped at relevanceOccurrenceCap times the minimum
// occurrence threshold.
func relevanceScore(p *Pattern, now time.Time) float64 {
	conditionTerm := p.Confidence

	ageDays := now.Sub(p.LastSeen).Hours() / 24
	recencyTerm := 1.0 - ageDays/float64(patternMaxAgeDays)
	if recencyTerm < relevanceRecencyFloor {
		recencyTerm = relevanceRecencyFloor
	}
	if recencyTerm > 1 {
		recencyTerm = 1
	}

	occurrenceTerm := float64(p.Occurrences) / (patternMinOccurrences * relevanceOccurrenceCap)
	if occurrenceTerm > 1 {
		occurrenceTerm = 1
	}

	return conditionTerm*relevanceConditionWeight +
		recencyTerm*relevanceRecencyWeight +
		occurrenceTerm*relevanceOccurrenceWeight
}

// PruneOldPatterns removes patterns that are both stale (older than
// patternPruneAgeMultiplier times the normal max age) and underperforming
// (success rate below patternPruneSuccessMultiplier times the minimum
// acceptable rate), returning the number removed.
func (s *PatternStore) PruneOldPatterns() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	maxAge := time.Duration(float64(patternMaxAgeDays)*patternPruneAgeMultiplier) * 24 * time.Hour
	minRate := patternMinSuccessRate * patternPruneSuccessMultiplier

	removed := 0
	for id, p := range s.patterns {
		if now.Sub(p.LastSeen) > maxAge && p.SuccessRate < minRate {
			delete(s.patterns, id)
			removed++
		}
	}
	if removed > 0 {
		return removed, s.persist()
	}
	return 0, nil
}

// All returns every stored pattern, unordered.
func (s *PatternStore) All() []*Pattern {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Pattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		out = append(out, p)
	}
	return out
}
