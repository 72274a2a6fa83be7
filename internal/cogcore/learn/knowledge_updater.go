package learn

import (
	"context"
	"fmt"
	"time"

	"manifold/internal/cogcore/actions"
	"manifold/internal/cogcore/event"
	"manifold/internal/cogcore/memory"
)

// maxUpdatesPerEvent caps how many KnowledgeUpdates one event's reasoning
// pass can produce, so a single noisy event can't flood the note store.
const maxUpdatesPerEvent = 12

// KnowledgeUpdater turns a completed reasoning pass into a batch of note
// updates: new entities get tagged onto notes, significant decisions get
// their own note, co-occurring entities get a relationship note, and the
// event itself gets classification tags recorded for later pattern
// mining.
type KnowledgeUpdater struct {
	notes actions.NoteManager
}

func NewKnowledgeUpdater(notes actions.NoteManager) *KnowledgeUpdater {
	return &KnowledgeUpdater{notes: notes}
}

// BuildUpdates derives the candidate updates without applying them, so
// callers can inspect/filter before calling Apply.
func (k *KnowledgeUpdater) BuildUpdates(ev *event.PerceivedEvent, wm *memory.WorkingMemory, analysis *FeedbackAnalysis) ([]*KnowledgeUpdate, error) {
	var updates []*KnowledgeUpdate

	for _, e := range ev.Entities() {
		if e.Confidence < 0.7 {
			continue
		}
		u, err := NewKnowledgeUpdate(KnowledgeUpdate{
			UpdateType: UpdateEntityAdded,
			TargetID:   entityNoteKey(e),
			Changes: map[string]any{
				"entity_type":  e.Type,
				"entity_value": e.Value,
				"source_event": ev.EventID(),
			},
			Confidence: e.Confidence,
			Source:     "event_entity",
		})
		if err != nil {
			return nil, err
		}
		updates = append(updates, u)
		if len(updates) >= maxUpdatesPerEvent {
			return updates, nil
		}
	}

	best := wm.BestHypothesis()
	if best != nil && best.Confidence >= 0.75 {
		u, err := NewKnowledgeUpdate(KnowledgeUpdate{
			UpdateType: UpdateNoteCreated,
			TargetID:   ev.EventID(),
			Changes: map[string]any{
				"title":   fmt.Sprintf("Decision: %s", ev.Title()),
				"content": best.Description,
			},
			Confidence: best.Confidence,
			Source:     "significant_decision",
		})
		if err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}

	entities := ev.Entities()
	for i := 0; i < len(entities) && len(updates) < maxUpdatesPerEvent; i++ {
		for j := i + 1; j < len(entities) && len(updates) < maxUpdatesPerEvent; j++ {
			if entities[i].Type == entities[j].Type {
				continue
			}
			u, err := NewKnowledgeUpdate(KnowledgeUpdate{
				UpdateType: UpdateRelationshipCreated,
				TargetID:   fmt.Sprintf("%s|%s", entityNoteKey(entities[i]), entityNoteKey(entities[j])),
				Changes: map[string]any{
					"left":         entities[i].Value,
					"right":        entities[j].Value,
					"co_occurred":  ev.EventID(),
				},
				Confidence: (entities[i].Confidence + entities[j].Confidence) / 2,
				Source:     "co_occurrence",
			})
			if err != nil {
				return nil, err
			}
			updates = append(updates, u)
		}
	}

	summary := wm.GetReasoningSummary()
	tagChanges := map[string]any{
		"event_type":  string(ev.EventType()),
		"urgency":     string(ev.Urgency()),
		"pass_count":  summary.PassCount,
		"confidence_bucket": confidenceBucket(summary.OverallConfidence),
	}
	u, err := NewKnowledgeUpdate(KnowledgeUpdate{
		UpdateType: UpdateTagAdded,
		TargetID:   ev.EventID(),
		Changes:    tagChanges,
		Confidence: summary.OverallConfidence,
		Source:     "classification",
	})
	if err != nil {
		return nil, err
	}
	if len(updates) < maxUpdatesPerEvent {
		updates = append(updates, u)
	}

	return updates, nil
}

func confidenceBucket(c float64) string {
	switch {
	case c >= 0.9:
		return "very_high"
	case c >= 0.75:
		return "high"
	case c >= 0.5:
		return "medium"
	default:
		return "low"
	}
}

func entityNoteKey(e event.Entity) string {
	return fmt.Sprintf("%s:%s", e.Type, e.Value)
}

// Apply persists each update via the configured NoteManager, creating a
// note for updates whose target doesn't yet exist and updating it
// otherwise. Errors for individual updates don't abort the batch; the
// caller gets a tally via the returned counts.
func (k *KnowledgeUpdater) Apply(ctx context.Context, updates []*KnowledgeUpdate) (applied, failed int) {
	for _, u := range updates {
		if err := k.applyOne(ctx, u); err != nil {
			failed++
			continue
		}
		applied++
	}
	return applied, failed
}

func (k *KnowledgeUpdater) applyOne(ctx context.Context, u *KnowledgeUpdate) error {
	_, found, err := k.notes.GetNote(ctx, u.TargetID)
	if err != nil {
		return err
	}
	if !found {
		title := fmt.Sprintf("%s: %s", u.UpdateType, u.TargetID)
		if t, ok := u.Changes["title"].(string); ok {
			title = t
		}
		content := fmt.Sprintf("%v", u.Changes["content"])
		if content == "<nil>" {
			content = ""
		}
		_, err := k.notes.CreateNote(ctx, title, content, nil, u.Changes, map[string]any{
			"source":     u.Source,
			"confidence": u.Confidence,
			"created_at": u.Timestamp.Format(time.RFC3339),
		})
		return err
	}
	return k.notes.UpdateNote(ctx, u.TargetID, u.Changes)
}
