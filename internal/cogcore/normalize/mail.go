package normalize

import (
	"strings"
	"time"

	"manifold/internal/cogcore/event"
)

// MailMessage is the source-native mail record.
type MailMessage struct {
	ID              string
	AccountID       string
	Subject         string
	Body            string
	From            string
	To              []string
	Cc              []string
	ThreadID        string
	InReplyTo       string
	References      []string
	ReceivedAt      time.Time
	AttachmentNames []string
}

// NormalizeMail converts a MailMessage into a PerceivedEvent. Urgency is
// left at its zero value (UrgencyNone) — per spec.md §4.1, mail urgency is
// inferred downstream of the pre-filter, not by the normalizer. Perception
// confidence is lower than calendar/chat because free-form mail bodies are
// less structured.
func NormalizeMail(m MailMessage, now time.Time) (*event.PerceivedEvent, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	occurred := m.ReceivedAt
	meta := map[string]any{}
	if m.AccountID != "" {
		meta["account_id"] = m.AccountID
	}
	// When the source timestamp is ambiguous or in the future relative to
	// local clock (beyond the 1s skew tolerance), fall back to "now" and
	// preserve the source-provided time in metadata instead of violating
	// the ordering invariant.
	if occurred.IsZero() || occurred.After(now.Add(time.Second)) {
		if !occurred.IsZero() {
			meta["source_occurred_at"] = occurred.Format(time.RFC3339)
		}
		occurred = now
	}

	entities := extractMailEntities(m)
	urls := extractURLsOrderPreserving(m.Body)

	attachmentCount := len(m.AttachmentNames)
	return event.New(event.Params{
		Source:          event.SourceMail,
		SourceID:        m.ID,
		OccurredAt:      occurred,
		ReceivedAt:      occurred,
		PerceivedAt:     now,
		Title:           m.Subject,
		Content:         m.Body,
		EventType:       event.EventUnknown,
		Urgency:         event.UrgencyNone,
		Entities:        entities,
		URLs:            urls,
		ToPeople:        m.To,
		CcPeople:        m.Cc,
		FromPerson:      m.From,
		ThreadID:        m.ThreadID,
		InReplyTo:       m.InReplyTo,
		References:      m.References,
		HasAttachments:  attachmentCount > 0,
		AttachmentCount: attachmentCount,
		AttachmentTypes: m.AttachmentNames,
		Metadata:        meta,
		PerceptionConfidence: 0.75,
		Now:             now,
	})
}

func extractMailEntities(m MailMessage) []event.Entity {
	var entities []event.Entity
	if m.From != "" {
		entities = append(entities, event.Entity{Type: "person", Value: m.From, Confidence: 0.95, Metadata: map[string]any{"role": "sender"}})
	}
	for _, to := range m.To {
		if to == "" {
			continue
		}
		entities = append(entities, event.Entity{Type: "person", Value: to, Confidence: 0.90, Metadata: map[string]any{"role": "recipient"}})
	}
	for _, cc := range m.Cc {
		if cc == "" {
			continue
		}
		entities = append(entities, event.Entity{Type: "person", Value: cc, Confidence: 0.85, Metadata: map[string]any{"role": "cc"}})
	}
	return entities
}

// extractURLsOrderPreserving pulls URLs from free-form body text, in order
// of first appearance, deduplicated.
func extractURLsOrderPreserving(body string) []string {
	seen := make(map[string]struct{})
	var urls []string
	for _, m := range urlPattern.FindAllString(body, -1) {
		m = strings.TrimRight(m, ".,);")
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		urls = append(urls, m)
	}
	return urls
}
