package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validParams(now time.Time) Params {
	return Params{
		Source:      SourceMail,
		SourceID:    "msg-1",
		OccurredAt:  now.Add(-time.Minute),
		ReceivedAt:  now.Add(-30 * time.Second),
		PerceivedAt: now,
		Title:       "Quarterly report",
		Content:     "body",
		FromPerson:  "alice@example.com",
		Now:         now,
	}
}

func TestNew_AssignsDefaults(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()

	ev, err := New(validParams(now))
	require.NoError(t, err)

	assert.NotEmpty(t, ev.EventID())
	assert.Equal(t, EventUnknown, ev.EventType())
	assert.Equal(t, UrgencyNone, ev.Urgency())
	assert.Equal(t, SourceMail, ev.Source())
	assert.NotNil(t, ev.Metadata())
	assert.Empty(t, ev.Topics())
}

func TestNew_RejectsEmptySourceID(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	p := validParams(now)
	p.SourceID = ""

	_, err := New(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source_id")
}

func TestNew_RejectsEmptyTitleAndFromPerson(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()

	p := validParams(now)
	p.Title = "   "
	_, err := New(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title")

	p = validParams(now)
	p.FromPerson = ""
	_, err = New(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from_person")
}

func TestNew_RejectsNonTimezoneAwareTimestamp(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	p := validParams(now)
	p.OccurredAt = time.Date(2026, 1, 1, 0, 0, 0, 0, nil)

	_, err := New(p)
	require.Error(t, err)
}

func TestNew_RejectsOutOfOrderTimestamps(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()

	p := validParams(now)
	p.OccurredAt = now.Add(time.Hour)
	_, err := New(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "occurred_at")

	p = validParams(now)
	p.ReceivedAt = p.PerceivedAt.Add(time.Hour)
	_, err = New(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "received_at")
}

func TestNew_RejectsFutureOccurredAt(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	p := validParams(now)
	p.OccurredAt = now.Add(10 * time.Second)
	p.ReceivedAt = p.OccurredAt
	p.PerceivedAt = p.OccurredAt

	_, err := New(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "now + 1s")
}

func TestNew_RejectsAttachmentMismatch(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()

	p := validParams(now)
	p.HasAttachments = true
	p.AttachmentCount = 0
	_, err := New(p)
	require.Error(t, err)

	p = validParams(now)
	p.AttachmentCount = 2
	p.AttachmentTypes = []string{"pdf"}
	_, err = New(p)
	require.Error(t, err)
}

func TestNew_RejectsOutOfRangeConfidence(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()

	p := validParams(now)
	p.PerceptionConfidence = 1.5
	_, err := New(p)
	require.Error(t, err)

	p = validParams(now)
	p.Entities = []Entity{{Type: "person", Value: "bob", Confidence: -0.1}}
	_, err = New(p)
	require.Error(t, err)
}

func TestNew_RejectsInvalidEntity(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	p := validParams(now)
	p.Entities = []Entity{{Type: "", Value: "bob", Confidence: 0.5}}

	_, err := New(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entities")
}

func TestEntity_KeyIsCaseInsensitiveOnValue(t *testing.T) {
	t.Parallel()
	a := Entity{Type: "person", Value: "Alice"}
	b := Entity{Type: "person", Value: "alice"}
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Key(), b.Key())
}

func TestPerceivedEvent_AccessorsReturnDefensiveCopies(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	p := validParams(now)
	p.ToPeople = []string{"bob@example.com"}
	ev, err := New(p)
	require.NoError(t, err)

	to := ev.ToPeople()
	to[0] = "mutated"
	assert.Equal(t, "bob@example.com", ev.ToPeople()[0])

	meta := ev.Metadata()
	meta["injected"] = true
	assert.NotContains(t, ev.Metadata(), "injected")
}

func TestPerceivedEvent_HasEntityAndGetEntitiesByType(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	p := validParams(now)
	p.Entities = []Entity{
		{Type: "person", Value: "Bob", Confidence: 0.9},
		{Type: "topic", Value: "invoice", Confidence: 0.8},
	}
	ev, err := New(p)
	require.NoError(t, err)

	assert.True(t, ev.HasEntity("person", "bob"))
	assert.False(t, ev.HasEntity("person", "carol"))
	assert.Len(t, ev.GetEntitiesByType("topic"), 1)
}

func TestPerceivedEvent_IsPartOfThreadAndIsUrgent(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()

	p := validParams(now)
	ev, err := New(p)
	require.NoError(t, err)
	assert.False(t, ev.IsPartOfThread())
	assert.False(t, ev.IsUrgent())

	p.ThreadID = "thread-1"
	p.Urgency = UrgencyCritical
	ev, err = New(p)
	require.NoError(t, err)
	assert.True(t, ev.IsPartOfThread())
	assert.True(t, ev.IsUrgent())
}

func TestUrgency_AtLeast(t *testing.T) {
	t.Parallel()
	assert.True(t, UrgencyHigh.AtLeast(UrgencyMedium))
	assert.True(t, UrgencyHigh.AtLeast(UrgencyHigh))
	assert.False(t, UrgencyLow.AtLeast(UrgencyHigh))
	assert.False(t, Urgency("garbage").AtLeast(UrgencyNone))
}

func TestToMap_ContainsCoreFields(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	ev, err := New(validParams(now))
	require.NoError(t, err)

	m := ev.ToMap()
	assert.Equal(t, ev.EventID(), m["event_id"])
	assert.Equal(t, "mail", m["source"])
	assert.Equal(t, "Quarterly report", m["title"])
	assert.Equal(t, false, m["has_attachments"])
}
