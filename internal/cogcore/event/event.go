// Package event implements the immutable normalized event representation
// (C1) that every source normalizer produces and every downstream
// component consumes.
package event

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"manifold/internal/cogcore/cogerr"
)

// Source tags the origin of an event.
type Source string

const (
	SourceMail     Source = "mail"
	SourceChat     Source = "chat"
	SourceCalendar Source = "calendar"
	SourceFile     Source = "file"
	SourceNote     Source = "note"
	SourceQuestion Source = "question"
	SourceWeb      Source = "web"
	SourceTask     Source = "task"
	SourceUnknown  Source = "unknown"
)

// EventType classifies what an event represents.
type EventType string

const (
	EventRequest        EventType = "request"
	EventInformation     EventType = "information"
	EventDecisionNeeded  EventType = "decision_needed"
	EventActionRequired  EventType = "action_required"
	EventReminder        EventType = "reminder"
	EventDeadline        EventType = "deadline"
	EventReference       EventType = "reference"
	EventLearning        EventType = "learning"
	EventInsight         EventType = "insight"
	EventStatusUpdate    EventType = "status_update"
	EventError           EventType = "error"
	EventConfirmation    EventType = "confirmation"
	EventInvitation      EventType = "invitation"
	EventReply           EventType = "reply"
	EventUnknown         EventType = "unknown"
)

// Urgency classifies how time-sensitive an event is. The zero value is not
// a valid Urgency; use UrgencyNone explicitly.
type Urgency string

const (
	UrgencyNone     Urgency = "none"
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// ordinal gives Urgency a total order so that "lower bound" comparisons
// (used by Pattern.Matches, see internal/cogcore/learn) are correct. The
// original implementation this was distilled from compared the raw string
// values, which only orders a subset of pairs correctly by coincidence;
// this ordinal is the fix.
var urgencyOrdinal = map[Urgency]int{
	UrgencyNone:     0,
	UrgencyLow:      1,
	UrgencyMedium:   2,
	UrgencyHigh:     3,
	UrgencyCritical: 4,
}

// AtLeast reports whether u is at least as urgent as floor. An unrecognized
// Urgency value sorts below every known value.
func (u Urgency) AtLeast(floor Urgency) bool {
	return urgencyOrdinal[u] >= urgencyOrdinal[floor]
}

// Entity is an extracted reference (person, location, topic, datetime, ...)
// with a confidence and free-form metadata. Identity is (type, lower(value));
// Metadata and Confidence are not part of identity.
type Entity struct {
	Type       string
	Value      string
	Confidence float64
	Metadata   map[string]any
}

// Key returns the identity tuple used for equality/hashing/deduplication.
func (e Entity) Key() [2]string {
	return [2]string{e.Type, strings.ToLower(e.Value)}
}

func (e Entity) Equal(other Entity) bool {
	return e.Key() == other.Key()
}

func validateEntity(e Entity) error {
	if strings.TrimSpace(e.Type) == "" {
		return cogerr.NewValidation("entity.type", "must be non-empty")
	}
	if strings.TrimSpace(e.Value) == "" {
		return cogerr.NewValidation("entity.value", "must be non-empty")
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return cogerr.NewValidation("entity.confidence", "must be in [0,1], got %v", e.Confidence)
	}
	return nil
}

// PerceivedEvent is the immutable normalized event. Construct only via New,
// which enforces every invariant below; there is no exported way to mutate
// an existing PerceivedEvent.
type PerceivedEvent struct {
	eventID    string
	source     Source
	sourceID   string
	occurredAt time.Time
	receivedAt time.Time
	perceivedAt time.Time

	title   string
	content string

	eventType EventType
	urgency   Urgency

	entities  []Entity
	topics    []string
	keywords  []string
	urls      []string
	toPeople  []string
	ccPeople  []string
	fromPerson string

	threadID   string
	inReplyTo  string
	references []string

	hasAttachments   bool
	attachmentCount  int
	attachmentTypes  []string

	metadata map[string]any

	perceptionConfidence  float64
	needsClarification    bool
	clarificationQuestions []string
}

// Params holds the fields accepted by New. Optional collection fields left
// nil are normalized to empty slices/maps, never left nil, per spec.
type Params struct {
	EventID    string
	Source     Source
	SourceID   string
	OccurredAt time.Time
	ReceivedAt time.Time
	PerceivedAt time.Time

	Title   string
	Content string

	EventType EventType
	Urgency   Urgency

	Entities   []Entity
	Topics     []string
	Keywords   []string
	URLs       []string
	ToPeople   []string
	CcPeople   []string
	FromPerson string

	ThreadID   string
	InReplyTo  string
	References []string

	HasAttachments  bool
	AttachmentCount int
	AttachmentTypes []string

	Metadata map[string]any

	PerceptionConfidence   float64
	NeedsClarification     bool
	ClarificationQuestions []string

	// Now overrides the clock used for the "occurred_at <= now + 1s"
	// invariant; tests pass this explicitly, production code leaves it
	// zero to use time.Now().
	Now time.Time
}

// New validates p and returns an immutable PerceivedEvent, or a
// *cogerr.ValidationError describing the first invariant violated.
func New(p Params) (*PerceivedEvent, error) {
	now := p.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if p.EventID == "" {
		p.EventID = uuid.NewString()
	}
	if p.SourceID == "" {
		return nil, cogerr.NewValidation("source_id", "must be non-empty")
	}
	if strings.TrimSpace(p.Title) == "" {
		return nil, cogerr.NewValidation("title", "must be non-empty")
	}
	if strings.TrimSpace(p.FromPerson) == "" {
		return nil, cogerr.NewValidation("from_person", "must be non-empty")
	}

	for _, ts := range []struct {
		name string
		t    time.Time
	}{{"occurred_at", p.OccurredAt}, {"received_at", p.ReceivedAt}, {"perceived_at", p.PerceivedAt}} {
		if ts.t.IsZero() {
			return nil, cogerr.NewValidation(ts.name, "must be set")
		}
		if ts.t.Location() == nil {
			return nil, cogerr.NewValidation(ts.name, "must be timezone-aware")
		}
	}

	if p.OccurredAt.After(p.ReceivedAt) {
		return nil, cogerr.NewValidation("occurred_at", "must be <= received_at")
	}
	if p.ReceivedAt.After(p.PerceivedAt) {
		return nil, cogerr.NewValidation("received_at", "must be <= perceived_at")
	}
	if p.OccurredAt.After(now.Add(time.Second)) {
		return nil, cogerr.NewValidation("occurred_at", "must be <= now + 1s")
	}

	if p.HasAttachments != (p.AttachmentCount > 0) {
		return nil, cogerr.NewValidation("has_attachments", "must equal attachment_count > 0")
	}
	if p.AttachmentCount < 0 {
		return nil, cogerr.NewValidation("attachment_count", "must be >= 0")
	}
	if len(p.AttachmentTypes) != p.AttachmentCount {
		return nil, cogerr.NewValidation("attachment_types", "length must equal attachment_count")
	}

	if p.PerceptionConfidence < 0 || p.PerceptionConfidence > 1 {
		return nil, cogerr.NewValidation("perception_confidence", "must be in [0,1]")
	}

	for i, e := range p.Entities {
		if err := validateEntity(e); err != nil {
			return nil, cogerr.NewValidation("entities", "entity[%d]: %v", i, err)
		}
	}

	ev := &PerceivedEvent{
		eventID:     p.EventID,
		source:      p.Source,
		sourceID:    p.SourceID,
		occurredAt:  p.OccurredAt,
		receivedAt:  p.ReceivedAt,
		perceivedAt: p.PerceivedAt,
		title:       p.Title,
		content:     p.Content,
		eventType:   p.EventType,
		urgency:     p.Urgency,
		entities:    append([]Entity(nil), p.Entities...),
		topics:      nonNil(p.Topics),
		keywords:    nonNil(p.Keywords),
		urls:        nonNil(p.URLs),
		toPeople:    nonNil(p.ToPeople),
		ccPeople:    nonNil(p.CcPeople),
		fromPerson:  p.FromPerson,
		threadID:    p.ThreadID,
		inReplyTo:   p.InReplyTo,
		references:  nonNil(p.References),

		hasAttachments:  p.HasAttachments,
		attachmentCount: p.AttachmentCount,
		attachmentTypes: nonNil(p.AttachmentTypes),

		metadata: nonNilMap(p.Metadata),

		perceptionConfidence:   p.PerceptionConfidence,
		needsClarification:     p.NeedsClarification,
		clarificationQuestions: nonNil(p.ClarificationQuestions),
	}
	if ev.eventType == "" {
		ev.eventType = EventUnknown
	}
	if ev.urgency == "" {
		ev.urgency = UrgencyNone
	}
	if ev.source == "" {
		ev.source = SourceUnknown
	}
	return ev, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string(nil), s...)
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Accessors. PerceivedEvent exposes no setters; every field is read-only
// after construction.

func (e *PerceivedEvent) EventID() string       { return e.eventID }
func (e *PerceivedEvent) Source() Source        { return e.source }
func (e *PerceivedEvent) SourceID() string      { return e.sourceID }
func (e *PerceivedEvent) OccurredAt() time.Time  { return e.occurredAt }
func (e *PerceivedEvent) ReceivedAt() time.Time  { return e.receivedAt }
func (e *PerceivedEvent) PerceivedAt() time.Time { return e.perceivedAt }
func (e *PerceivedEvent) Title() string         { return e.title }
func (e *PerceivedEvent) Content() string       { return e.content }
func (e *PerceivedEvent) EventType() EventType  { return e.eventType }
func (e *PerceivedEvent) Urgency() Urgency      { return e.urgency }
func (e *PerceivedEvent) FromPerson() string    { return e.fromPerson }
func (e *PerceivedEvent) ThreadID() string      { return e.threadID }
func (e *PerceivedEvent) InReplyTo() string     { return e.inReplyTo }
func (e *PerceivedEvent) HasAttachments() bool  { return e.hasAttachments }
func (e *PerceivedEvent) AttachmentCount() int  { return e.attachmentCount }
func (e *PerceivedEvent) PerceptionConfidence() float64 { return e.perceptionConfidence }
func (e *PerceivedEvent) NeedsClarification() bool      { return e.needsClarification }

func (e *PerceivedEvent) Entities() []Entity {
	return append([]Entity(nil), e.entities...)
}
func (e *PerceivedEvent) Topics() []string          { return append([]string(nil), e.topics...) }
func (e *PerceivedEvent) Keywords() []string        { return append([]string(nil), e.keywords...) }
func (e *PerceivedEvent) URLs() []string            { return append([]string(nil), e.urls...) }
func (e *PerceivedEvent) ToPeople() []string        { return append([]string(nil), e.toPeople...) }
func (e *PerceivedEvent) CcPeople() []string        { return append([]string(nil), e.ccPeople...) }
func (e *PerceivedEvent) References() []string      { return append([]string(nil), e.references...) }
func (e *PerceivedEvent) AttachmentTypes() []string { return append([]string(nil), e.attachmentTypes...) }
func (e *PerceivedEvent) ClarificationQuestions() []string {
	return append([]string(nil), e.clarificationQuestions...)
}
func (e *PerceivedEvent) Metadata() map[string]any {
	out := make(map[string]any, len(e.metadata))
	for k, v := range e.metadata {
		out[k] = v
	}
	return out
}

// GetEntitiesByType returns every entity whose Type matches typ.
func (e *PerceivedEvent) GetEntitiesByType(typ string) []Entity {
	var out []Entity
	for _, ent := range e.entities {
		if ent.Type == typ {
			out = append(out, ent)
		}
	}
	return out
}

// HasEntity reports whether an entity with the given (type, value) identity
// is present, matching on (type, lower(value)).
func (e *PerceivedEvent) HasEntity(typ, value string) bool {
	key := Entity{Type: typ, Value: value}.Key()
	for _, ent := range e.entities {
		if ent.Key() == key {
			return true
		}
	}
	return false
}

// IsPartOfThread reports whether the event belongs to a conversation thread.
func (e *PerceivedEvent) IsPartOfThread() bool {
	return e.threadID != ""
}

// IsUrgent reports whether the event's urgency is at least UrgencyHigh.
func (e *PerceivedEvent) IsUrgent() bool {
	return e.urgency.AtLeast(UrgencyHigh)
}

// ToMap serializes the event to a plain map for JSON/logging, with
// timestamps in RFC3339 and entities as nested maps. The conversion is
// one-way: this package has no FromMap that rebuilds an event from the map.
func (e *PerceivedEvent) ToMap() map[string]any {
	entities := make([]map[string]any, 0, len(e.entities))
	for _, ent := range e.entities {
		entities = append(entities, map[string]any{
			"type":       ent.Type,
			"value":      ent.Value,
			"confidence": ent.Confidence,
			"metadata":   ent.Metadata,
		})
	}
	return map[string]any{
		"event_id":                e.eventID,
		"source":                  string(e.source),
		"source_id":               e.sourceID,
		"occurred_at":             e.occurredAt.Format(time.RFC3339Nano),
		"received_at":             e.receivedAt.Format(time.RFC3339Nano),
		"perceived_at":            e.perceivedAt.Format(time.RFC3339Nano),
		"title":                   e.title,
		"content":                 e.content,
		"event_type":              string(e.eventType),
		"urgency":                 string(e.urgency),
		"entities":                entities,
		"topics":                  e.topics,
		"keywords":                e.keywords,
		"urls":                    e.urls,
		"to_people":               e.toPeople,
		"cc_people":               e.ccPeople,
		"from_person":             e.fromPerson,
		"thread_id":               e.threadID,
		"in_reply_to":             e.inReplyTo,
		"references":              e.references,
		"has_attachments":         e.hasAttachments,
		"attachment_count":        e.attachmentCount,
		"attachment_types":        e.attachmentTypes,
		"metadata":                e.metadata,
		"perception_confidence":   e.perceptionConfidence,
		"needs_clarification":     e.needsClarification,
		"clarification_questions": e.clarificationQuestions,
	}
}
