package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	_ DraftBackend = (*PostgresDraftStore)(nil)
	_ DraftBackend = (*DraftStore)(nil)
	_ QueueBackend = (*PostgresQueueStore)(nil)
	_ QueueBackend = (*QueueStore)(nil)
)

// PostgresDraftStore is the shared-instance alternative to DraftStore, for
// account volumes where more than one cogcored process needs to see the
// same draft set. Selected by config.Store.PostgresDSN; the file-backed
// DraftStore remains the default.
type PostgresDraftStore struct {
	pool *pgxpool.Pool
}

// NewPostgresDraftStore ensures the drafts table exists on pool with a
// CREATE TABLE IF NOT EXISTS at construction time.
func NewPostgresDraftStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresDraftStore, error) {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS cogcore_drafts (
  draft_id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL DEFAULT '',
  in_reply_to TEXT NOT NULL DEFAULT '',
  body TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  sent BOOLEAN NOT NULL DEFAULT false
)`)
	if err != nil {
		return nil, err
	}
	return &PostgresDraftStore{pool: pool}, nil
}

func (s *PostgresDraftStore) Create(eventID, inReplyTo, body string) (string, error) {
	id := uuid.NewString()
	_, err := s.pool.Exec(context.Background(), `
INSERT INTO cogcore_drafts(draft_id, event_id, in_reply_to, body, created_at, sent)
VALUES ($1, $2, $3, $4, $5, false)`,
		id, eventID, inReplyTo, body, time.Now().UTC())
	return id, err
}

func (s *PostgresDraftStore) Discard(id string) error {
	_, err := s.pool.Exec(context.Background(), `DELETE FROM cogcore_drafts WHERE draft_id=$1`, id)
	return err
}

func (s *PostgresDraftStore) MarkSent(id string) error {
	_, err := s.pool.Exec(context.Background(), `UPDATE cogcore_drafts SET sent=true WHERE draft_id=$1`, id)
	return err
}

func (s *PostgresDraftStore) Get(id string) (DraftReply, bool) {
	row := s.pool.QueryRow(context.Background(), `
SELECT draft_id, event_id, in_reply_to, body, created_at, sent FROM cogcore_drafts WHERE draft_id=$1`, id)
	var d DraftReply
	if err := row.Scan(&d.DraftID, &d.EventID, &d.InReplyTo, &d.Body, &d.CreatedAt, &d.Sent); err != nil {
		return DraftReply{}, false
	}
	return d, true
}

// CreateDraft and DiscardDraft satisfy actions.DraftCreator, the same
// adapter DraftStore provides.
func (s *PostgresDraftStore) CreateDraft(_ context.Context, inReplyTo, body string) (string, error) {
	return s.Create("", inReplyTo, body)
}

func (s *PostgresDraftStore) DiscardDraft(_ context.Context, draftID string) error {
	return s.Discard(draftID)
}

// PostgresQueueStore is the shared-instance alternative to QueueStore.
type PostgresQueueStore struct {
	pool *pgxpool.Pool
}

func NewPostgresQueueStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresQueueStore, error) {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS cogcore_queue (
  item_id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  status TEXT NOT NULL,
  reason TEXT NOT NULL DEFAULT '',
  snoozed_until TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL,
  resolved_at TIMESTAMPTZ
)`)
	if err != nil {
		return nil, err
	}
	return &PostgresQueueStore{pool: pool}, nil
}

func (s *PostgresQueueStore) Enqueue(eventID, reason string) (QueueItem, error) {
	item := QueueItem{
		ItemID:    eventID,
		EventID:   eventID,
		Status:    QueuePending,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(context.Background(), `
INSERT INTO cogcore_queue(item_id, event_id, status, reason, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (item_id) DO UPDATE SET status=EXCLUDED.status, reason=EXCLUDED.reason`,
		item.ItemID, item.EventID, item.Status, item.Reason, item.CreatedAt)
	return item, err
}

func (s *PostgresQueueStore) Snooze(itemID string, until time.Time) error {
	_, err := s.pool.Exec(context.Background(), `
UPDATE cogcore_queue SET status=$2, snoozed_until=$3 WHERE item_id=$1`,
		itemID, QueueSnoozed, until)
	return err
}

func (s *PostgresQueueStore) Resolve(itemID string) error {
	_, err := s.pool.Exec(context.Background(), `
UPDATE cogcore_queue SET status=$2, resolved_at=$3 WHERE item_id=$1`,
		itemID, QueueResolved, time.Now().UTC())
	return err
}

func (s *PostgresQueueStore) DuePending(now time.Time) []QueueItem {
	rows, err := s.pool.Query(context.Background(), `
SELECT item_id, event_id, status, reason, snoozed_until, created_at, resolved_at
FROM cogcore_queue
WHERE status=$1 OR (status=$2 AND (snoozed_until IS NULL OR snoozed_until <= $3))
ORDER BY created_at ASC`, QueuePending, QueueSnoozed, now)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []QueueItem
	for rows.Next() {
		var item QueueItem
		var snoozedUntil, resolvedAt *time.Time
		if err := rows.Scan(&item.ItemID, &item.EventID, &item.Status, &item.Reason, &snoozedUntil, &item.CreatedAt, &resolvedAt); err != nil {
			continue
		}
		if snoozedUntil != nil {
			item.SnoozedUntil = *snoozedUntil
		}
		if resolvedAt != nil {
			item.ResolvedAt = *resolvedAt
		}
		out = append(out, item)
	}
	return out
}
