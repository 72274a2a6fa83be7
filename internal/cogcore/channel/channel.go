// Package channel implements the notification/channel manager (C10): a
// connection registry plus subscription bookkeeping for pushing decisions,
// plans, and learning updates out to connected clients in near-real-time.
// It deliberately avoids a package-level singleton EventBus (spec.md §9) —
// every caller constructs and owns its own Manager.
package channel

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Type names a logical notification channel a client can subscribe to.
type Type string

const (
	TypeDecisions Type = "decisions"
	TypePlans     Type = "plans"
	TypeExecution Type = "execution"
	TypeLearning  Type = "learning"
	TypeSystem    Type = "system"
)

// Message is one event pushed to subscribers of a channel.
type Message struct {
	Channel   Type
	Event     string
	Payload   map[string]any
	Timestamp time.Time
}

// Sender abstracts the wire-level send so the manager has no direct
// dependency on the websocket transport; transport.go's Conn satisfies it.
type Sender interface {
	Send(Message) error
	Close() error
}

// client is a connected subscriber.
type client struct {
	id        string
	userID    string
	sender    Sender
	channels  map[Type]struct{}
	connectedAt time.Time
}

// Manager tracks connected clients and their channel subscriptions, and
// fans out messages to matching clients. Safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	clients map[string]*client
	log     zerolog.Logger
}

func New(log zerolog.Logger) *Manager {
	return &Manager{clients: make(map[string]*client), log: log}
}

// Connect registers a new client under userID, initially subscribed to no
// channels.
func (m *Manager) Connect(id, userID string, sender Sender) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[id] = &client{
		id:          id,
		userID:      userID,
		sender:      sender,
		channels:    make(map[Type]struct{}),
		connectedAt: time.Now().UTC(),
	}
	m.log.Info().Str("client_id", id).Str("user_id", userID).Msg("client connected")
}

// Disconnect removes a client and closes its sender.
func (m *Manager) Disconnect(id string) {
	m.mu.Lock()
	c, ok := m.clients[id]
	if ok {
		delete(m.clients, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	if err := c.sender.Close(); err != nil {
		m.log.Debug().Str("client_id", id).Err(err).Msg("close on disconnect")
	}
	m.log.Info().Str("client_id", id).Msg("client disconnected")
}

// Subscribe adds ch to id's subscription set. Returns false if id isn't
// connected.
func (m *Manager) Subscribe(id string, ch Type) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return false
	}
	c.channels[ch] = struct{}{}
	return true
}

// Unsubscribe removes ch from id's subscription set.
func (m *Manager) Unsubscribe(id string, ch Type) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return false
	}
	delete(c.channels, ch)
	return true
}

// ConnectedCount reports how many clients are currently registered.
func (m *Manager) ConnectedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// BroadcastToChannel sends msg to every client subscribed to msg.Channel.
// The client list is snapshotted under the lock; sends happen outside it
// so a slow client can't stall the registry.
func (m *Manager) BroadcastToChannel(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	targets := m.snapshotSubscribers(msg.Channel)
	m.fanOut(targets, msg)
}

// BroadcastToUser sends msg to every connection owned by userID,
// regardless of channel subscription — used for direct, targeted
// notifications like "your action was undone".
func (m *Manager) BroadcastToUser(userID string, msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	m.mu.RLock()
	var targets []*client
	for _, c := range m.clients {
		if c.userID == userID {
			targets = append(targets, c)
		}
	}
	m.mu.RUnlock()
	m.fanOut(targets, msg)
}

func (m *Manager) snapshotSubscribers(ch Type) []*client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var targets []*client
	for _, c := range m.clients {
		if _, ok := c.channels[ch]; ok {
			targets = append(targets, c)
		}
	}
	return targets
}

func (m *Manager) fanOut(targets []*client, msg Message) {
	var wg sync.WaitGroup
	for _, c := range targets {
		wg.Add(1)
		go func(c *client) {
			defer wg.Done()
			if err := c.sender.Send(msg); err != nil {
				m.log.Warn().Str("client_id", c.id).Err(err).Msg("send failed, disconnecting")
				m.Disconnect(c.id)
			}
		}(c)
	}
	wg.Wait()
}
