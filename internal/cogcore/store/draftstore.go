package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DraftReply is a prepared-but-not-sent reply awaiting user review, the
// persisted form of what actions.PrepareReplyAction stages.
type DraftReply struct {
	DraftID   string    `json:"draft_id"`
	EventID   string    `json:"event_id"`
	InReplyTo string    `json:"in_reply_to"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	Sent      bool      `json:"sent"`
}

// DraftBackend is satisfied by both the file-backed DraftStore and the
// shared-instance PostgresDraftStore.
type DraftBackend interface {
	Create(eventID, inReplyTo, body string) (string, error)
	Discard(id string) error
	MarkSent(id string) error
	Get(id string) (DraftReply, bool)
	CreateDraft(ctx context.Context, inReplyTo, body string) (string, error)
	DiscardDraft(ctx context.Context, draftID string) error
}

// DraftStore persists DraftReply records to a single JSON file, protected
// by a mutex; every mutation rewrites the whole file atomically. This is
// the file-backed default; PostgresDraftStore is the shared multi-instance
// backend behind the same DraftBackend interface (PrepareReplyAction only
// depends on the DraftCreator interface in actions/mail.go, not on this
// concrete type).
type DraftStore struct {
	mu      sync.Mutex
	path    string
	drafts  map[string]DraftReply
}

func NewDraftStore(path string) *DraftStore {
	s := &DraftStore{path: path, drafts: make(map[string]DraftReply)}
	var loaded map[string]DraftReply
	if ok, err := ReadJSON(path, &loaded); ok && err == nil {
		s.drafts = loaded
	}
	return s
}

func (s *DraftStore) Create(eventID, inReplyTo, body string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.drafts[id] = DraftReply{
		DraftID:   id,
		EventID:   eventID,
		InReplyTo: inReplyTo,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	return id, s.persistLocked()
}

func (s *DraftStore) Discard(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, id)
	return s.persistLocked()
}

func (s *DraftStore) MarkSent(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[id]
	if !ok {
		return nil
	}
	d.Sent = true
	s.drafts[id] = d
	return s.persistLocked()
}

func (s *DraftStore) Get(id string) (DraftReply, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[id]
	return d, ok
}

// CreateDraft and DiscardDraft satisfy actions.DraftCreator, letting
// PrepareReplyAction use this store directly without the caller owning
// its own draft id scheme (eventID is left empty since the action never
// carries one).
func (s *DraftStore) CreateDraft(_ context.Context, inReplyTo, body string) (string, error) {
	return s.Create("", inReplyTo, body)
}

func (s *DraftStore) DiscardDraft(_ context.Context, draftID string) error {
	return s.Discard(draftID)
}

func (s *DraftStore) persistLocked() error {
	if s.path == "" {
		return nil
	}
	return WriteJSONAtomic(s.path, s.drafts)
}
