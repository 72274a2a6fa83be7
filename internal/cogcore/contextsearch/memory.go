// Package contextsearch implements the context searcher (C5 collaborator):
// given query entities and a time window, return notes, prior events,
// calendar occupancy, open tasks, entity profiles, and detected conflicts,
// each with a relevance score.
package contextsearch

import (
	"context"
	"sort"
	"strings"
	"sync"

	"manifold/internal/cogcore/memory"
	"manifold/internal/cogcore/reason"
)

// Record is one piece of indexed context available for retrieval.
type Record struct {
	Source  string // "note" | "prior_event" | "calendar" | "task" | "entity_profile" | "conflict"
	Type    string
	Content string
	Tags    []string
}

// InMemory is a trivial substring-matching ContextSearcher used for tests
// and offline/dev mode. It holds no external dependency and is the
// fallback when no Qdrant endpoint is configured.
type InMemory struct {
	mu      sync.RWMutex
	records []Record
}

var _ reason.ContextSearcher = (*InMemory)(nil)

func NewInMemory() *InMemory {
	return &InMemory{}
}

// Index adds a record to the searchable set. Safe for concurrent use.
func (m *InMemory) Index(r Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
}

// Search scores every record by the fraction of query entity values found
// (case-insensitively) in its tags or content, returning the non-zero
// matches ranked by relevance descending.
func (m *InMemory) Search(_ context.Context, q reason.ContextQuery) ([]memory.ContextItem, error) {
	m.mu.RLock()
	records := append([]Record(nil), m.records...)
	m.mu.RUnlock()

	if len(q.EntityValues) == 0 {
		return nil, nil
	}

	var items []memory.ContextItem
	for _, r := range records {
		score := relevance(r, q.EntityValues)
		if score <= 0 {
			continue
		}
		items = append(items, memory.ContextItem{
			Source:         r.Source,
			Type:           r.Type,
			Content:        r.Content,
			RelevanceScore: score,
		})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].RelevanceScore > items[j].RelevanceScore })
	return items, nil
}

func relevance(r Record, values []string) float64 {
	haystack := strings.ToLower(r.Content + " " + strings.Join(r.Tags, " "))
	hits := 0
	for _, v := range values {
		if v == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(v)) {
			hits++
		}
	}
	if hits == 0 {
		return 0
	}
	return float64(hits) / float64(len(values))
}
