package normalize

import (
	"strings"
	"time"

	"manifold/internal/cogcore/event"
)

// ChatImportance mirrors an explicit importance flag attached to a chat
// message by its source platform.
type ChatImportance string

const (
	ChatUrgent ChatImportance = "urgent"
	ChatHigh   ChatImportance = "high"
	ChatNormal ChatImportance = "normal"
	ChatLow    ChatImportance = "low"
)

var chatImportanceToUrgency = map[ChatImportance]event.Urgency{
	ChatUrgent: event.UrgencyCritical,
	ChatHigh:   event.UrgencyHigh,
	ChatNormal: event.UrgencyMedium,
	ChatLow:    event.UrgencyLow,
}

var urgencyStepUp = map[event.Urgency]event.Urgency{
	event.UrgencyNone:     event.UrgencyLow,
	event.UrgencyLow:      event.UrgencyMedium,
	event.UrgencyMedium:   event.UrgencyHigh,
	event.UrgencyHigh:     event.UrgencyCritical,
	event.UrgencyCritical: event.UrgencyCritical,
}

// ChatMessage is the source-native chat record.
type ChatMessage struct {
	ID              string
	ChannelOrRoomID string
	Text            string
	From            string
	Mentions        []string
	Importance      ChatImportance
	SentAt          time.Time
	SelfMentioned   bool
}

// NormalizeChat converts a ChatMessage into a PerceivedEvent. Explicit
// importance maps directly to urgency; the presence of a mention of the
// local account raises urgency by one level, per spec.md §4.1.
func NormalizeChat(m ChatMessage, now time.Time) (*event.PerceivedEvent, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	occurred := m.SentAt
	meta := map[string]any{}
	if occurred.IsZero() || occurred.After(now.Add(time.Second)) {
		if !occurred.IsZero() {
			meta["source_sent_at"] = occurred.Format(time.RFC3339)
		}
		occurred = now
	}

	urgency, ok := chatImportanceToUrgency[m.Importance]
	if !ok {
		urgency = event.UrgencyMedium
	}
	if m.SelfMentioned {
		urgency = urgencyStepUp[urgency]
	}

	entities := extractChatEntities(m)
	urls := extractURLsOrderPreserving(m.Text)

	title := m.Text
	if len(title) > 80 {
		title = title[:80] + "..."
	}
	if strings.TrimSpace(title) == "" {
		title = "(empty message)"
	}

	return event.New(event.Params{
		Source:      event.SourceChat,
		SourceID:    m.ID,
		OccurredAt:  occurred,
		ReceivedAt:  occurred,
		PerceivedAt: now,
		Title:       title,
		Content:     m.Text,
		EventType:   event.EventUnknown,
		Urgency:     urgency,
		Entities:    entities,
		URLs:        urls,
		ThreadID:    m.ChannelOrRoomID,
		FromPerson:  m.From,
		Metadata:    meta,
		PerceptionConfidence: 0.9,
		Now:         now,
	})
}

func extractChatEntities(m ChatMessage) []event.Entity {
	var entities []event.Entity
	if m.From != "" {
		entities = append(entities, event.Entity{Type: "person", Value: m.From, Confidence: 0.95, Metadata: map[string]any{"role": "sender"}})
	}
	for _, mention := range m.Mentions {
		if mention == "" {
			continue
		}
		entities = append(entities, event.Entity{Type: "person", Value: mention, Confidence: 0.90, Metadata: map[string]any{"role": "mention"}})
	}
	if m.ChannelOrRoomID != "" {
		entities = append(entities, event.Entity{Type: "channel", Value: m.ChannelOrRoomID, Confidence: 0.99})
	}
	return entities
}
