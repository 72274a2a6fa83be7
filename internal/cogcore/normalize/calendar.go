// Package normalize implements the source normalizers (C2): they turn
// source-native records into C1 events.
package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"manifold/internal/cogcore/event"
)

// ResponseStatus mirrors a calendar invite's response state.
type ResponseStatus string

const (
	ResponseNotResponded       ResponseStatus = "not_responded"
	ResponseTentativelyAccepted ResponseStatus = "tentatively_accepted"
	ResponseAccepted           ResponseStatus = "accepted"
	ResponseDeclined           ResponseStatus = "declined"
)

// Importance mirrors a calendar event's importance flag.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceNormal Importance = "normal"
	ImportanceHigh   Importance = "high"
)

// CalendarEvent is the source-native calendar record consumed by
// NormalizeCalendar. Only the fields the normalizer reads are modeled.
type CalendarEvent struct {
	ID              string
	Subject         string
	BodyPreview     string
	Start           time.Time
	End             time.Time
	IsAllDay        bool
	IsCancelled     bool
	IsMeeting       bool
	ResponseStatus  ResponseStatus
	Importance      Importance
	Organizer       string
	OrganizerEmail  string
	Attendees       []string
	Location        string
	Categories      []string
	OnlineMeetingURL string
	WebLink         string
}

var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// NormalizeCalendar converts a CalendarEvent into a PerceivedEvent. The
// event's actual start/end times are preserved in metadata only; the
// event's timing fields (occurred_at/received_at/perceived_at) are always
// "now" for calendar events, matching the source behavior this was
// distilled from, since a calendar notification is perceived at the
// instant the system observes it, not at the meeting's scheduled time.
func NormalizeCalendar(ce CalendarEvent, now time.Time) (*event.PerceivedEvent, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	evType := determineEventType(ce)
	urgency := determineUrgency(ce, now)
	entities := extractCalendarEntities(ce)
	topics, keywords := extractTopicsAndKeywords(ce)
	title := buildTitle(ce)
	content := buildContent(ce)
	urls := extractCalendarURLs(ce)

	fromPerson := ce.Organizer
	if fromPerson == "" {
		fromPerson = ce.OrganizerEmail
	}
	if fromPerson == "" {
		fromPerson = "unknown organizer"
	}

	return event.New(event.Params{
		Source:      event.SourceCalendar,
		SourceID:    ce.ID,
		OccurredAt:  now,
		ReceivedAt:  now,
		PerceivedAt: now,
		Title:       title,
		Content:     content,
		EventType:   evType,
		Urgency:     urgency,
		Entities:    entities,
		Topics:      topics,
		Keywords:    keywords,
		URLs:        urls,
		ToPeople:    ce.Attendees,
		FromPerson:  fromPerson,
		Metadata: map[string]any{
			"calendar_start":        ce.Start.Format(time.RFC3339),
			"calendar_end":          ce.End.Format(time.RFC3339),
			"is_all_day":            ce.IsAllDay,
			"is_cancelled":          ce.IsCancelled,
			"response_status":       string(ce.ResponseStatus),
			"importance":            string(ce.Importance),
		},
		PerceptionConfidence: 0.9,
		Now:                  now,
	})
}

func determineEventType(ce CalendarEvent) event.EventType {
	if ce.IsCancelled {
		return event.EventInformation
	}
	if ce.IsMeeting {
		switch ce.ResponseStatus {
		case ResponseNotResponded:
			return event.EventDecisionNeeded
		case ResponseTentativelyAccepted:
			return event.EventInvitation
		case ResponseAccepted:
			return event.EventReminder
		}
	}
	if ce.Importance == ImportanceHigh {
		return event.EventActionRequired
	}
	if !ce.IsMeeting {
		return event.EventReminder
	}
	return event.EventInvitation
}

func determineUrgency(ce CalendarEvent, now time.Time) event.Urgency {
	if ce.End.Before(now) {
		return event.UrgencyNone
	}
	inProgress := ce.Start.Before(now) || ce.Start.Equal(now)
	if inProgress && ce.End.After(now) {
		if ce.ResponseStatus == ResponseNotResponded {
			return event.UrgencyHigh
		}
		return event.UrgencyMedium
	}

	untilStart := ce.Start.Sub(now)
	switch {
	case untilStart < time.Hour:
		return event.UrgencyCritical
	case untilStart < 4*time.Hour:
		return event.UrgencyHigh
	case untilStart < 12*time.Hour:
		return event.UrgencyMedium
	case untilStart < 24*time.Hour:
		if ce.ResponseStatus == ResponseNotResponded {
			return event.UrgencyMedium
		}
		return event.UrgencyLow
	default:
		return event.UrgencyLow
	}
}

func extractCalendarEntities(ce CalendarEvent) []event.Entity {
	var entities []event.Entity
	if ce.Organizer != "" {
		entities = append(entities, event.Entity{
			Type: "person", Value: ce.Organizer, Confidence: 0.95,
			Metadata: map[string]any{"role": "organizer"},
		})
	}
	for _, a := range ce.Attendees {
		if a == "" {
			continue
		}
		entities = append(entities, event.Entity{
			Type: "person", Value: a, Confidence: 0.90,
			Metadata: map[string]any{"role": "attendee"},
		})
	}
	if ce.Location != "" {
		entities = append(entities, event.Entity{Type: "location", Value: ce.Location, Confidence: 0.85})
	}
	for _, c := range ce.Categories {
		if c == "" {
			continue
		}
		entities = append(entities, event.Entity{Type: "topic", Value: c, Confidence: 0.80})
	}
	entities = append(entities, event.Entity{
		Type: "datetime", Value: ce.Start.Format(time.RFC3339), Confidence: 0.99,
	})
	return entities
}

func extractTopicsAndKeywords(ce CalendarEvent) (topics, keywords []string) {
	topics = append(topics, ce.Categories...)
	lower := strings.ToLower(ce.Subject + " " + ce.BodyPreview)
	for _, kw := range []string{"deadline", "review", "budget", "launch", "standup", "1:1", "retro", "planning"} {
		if strings.Contains(lower, kw) {
			keywords = append(keywords, kw)
		}
	}
	return topics, keywords
}

func buildTitle(ce CalendarEvent) string {
	if ce.IsAllDay {
		return fmt.Sprintf("[All Day] %s", ce.Subject)
	}
	return fmt.Sprintf("[%s] %s", ce.Start.Format("15:04"), ce.Subject)
}

func buildContent(ce CalendarEvent) string {
	var b strings.Builder
	b.WriteString(ce.Subject)
	b.WriteString("\n")
	if ce.IsAllDay {
		b.WriteString("All day\n")
	} else {
		b.WriteString(fmt.Sprintf("%s - %s\n", ce.Start.Format(time.RFC3339), ce.End.Format(time.RFC3339)))
	}
	if ce.Location != "" {
		b.WriteString("Location: " + ce.Location + "\n")
	}
	if ce.OnlineMeetingURL != "" {
		b.WriteString("Online meeting: " + ce.OnlineMeetingURL + "\n")
	}
	if len(ce.Attendees) > 0 {
		shown := ce.Attendees
		suffix := ""
		if len(shown) > 5 {
			suffix = fmt.Sprintf(" and %d others", len(shown)-5)
			shown = shown[:5]
		}
		b.WriteString("Attendees: " + strings.Join(shown, ", ") + suffix + "\n")
	}
	if ce.BodyPreview != "" {
		b.WriteString(ce.BodyPreview)
	}
	return b.String()
}

func extractCalendarURLs(ce CalendarEvent) []string {
	seen := make(map[string]struct{})
	var urls []string
	add := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	add(ce.OnlineMeetingURL)
	add(ce.WebLink)
	for _, m := range urlPattern.FindAllString(ce.BodyPreview, -1) {
		add(m)
	}
	return urls
}
