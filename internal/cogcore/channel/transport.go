package channel

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	closeAuthFailed = 4001
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wireFrame is the JSON envelope exchanged over the socket in both
// directions: outbound notifications use Channel/Event/Payload, inbound
// control frames use Action/Channel (subscribe/unsubscribe/auth).
type wireFrame struct {
	Action  string         `json:"action,omitempty"`
	Channel Type           `json:"channel,omitempty"`
	Event   string         `json:"event,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	Token   string         `json:"token,omitempty"`
}

// Conn wraps a single websocket connection and implements Sender.
type Conn struct {
	ws  *websocket.Conn
	log zerolog.Logger

	writeMu chan struct{}
}

func newConn(ws *websocket.Conn, log zerolog.Logger) *Conn {
	c := &Conn{ws: ws, log: log, writeMu: make(chan struct{}, 1)}
	c.writeMu <- struct{}{}
	return c
}

func (c *Conn) Send(msg Message) error {
	<-c.writeMu
	defer func() { c.writeMu <- struct{}{} }()

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(wireFrame{Channel: msg.Channel, Event: msg.Event, Payload: msg.Payload})
}

func (c *Conn) Close() error {
	return c.ws.Close()
}

// Authenticator validates a bearer token and returns the authenticated
// user id.
type Authenticator interface {
	Authenticate(token string) (userID string, ok bool)
}

// Server upgrades HTTP connections to websockets and drives their
// read/subscribe loop against a Manager.
type Server struct {
	Manager *Manager
	Auth    Authenticator
	Limiter *RateLimiter
	log     zerolog.Logger
}

func NewServer(m *Manager, auth Authenticator, limiter *RateLimiter, log zerolog.Logger) *Server {
	return &Server{Manager: m, Auth: auth, Limiter: limiter, log: log}
}

// ServeHTTP upgrades the request to a websocket, requires an initial auth
// frame bearing a valid token (closing with code 4001 otherwise), then
// enters the read loop: every inbound frame, subscribe/unsubscribe
// included, passes the per-user rate limiter first and is dropped when over
// the limit; subscribe/unsubscribe frames mutate the client's channel set,
// and every other frame is ignored (this is a push channel, not a command
// bus).
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	var authFrame wireFrame
	if err := ws.ReadJSON(&authFrame); err != nil {
		ws.Close()
		return
	}
	userID, ok := s.Auth.Authenticate(authFrame.Token)
	if !ok {
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(closeAuthFailed, "authentication failed"),
			time.Now().Add(writeWait))
		ws.Close()
		return
	}

	id := connID(r)
	conn := newConn(ws, s.log)
	s.Manager.Connect(id, userID, conn)
	defer s.Manager.Disconnect(id)

	stopPing := make(chan struct{})
	go s.pingLoop(conn, stopPing)
	defer close(stopPing)

	for {
		var frame wireFrame
		if err := ws.ReadJSON(&frame); err != nil {
			return
		}
		if s.Limiter != nil && !s.Limiter.Allow(userID) {
			s.log.Warn().Str("user_id", userID).Msg("rate limit exceeded, dropping frame")
			continue
		}
		switch frame.Action {
		case "subscribe":
			s.Manager.Subscribe(id, frame.Channel)
			_ = conn.Send(Message{Channel: frame.Channel, Event: "subscribed"})
		case "unsubscribe":
			s.Manager.Unsubscribe(id, frame.Channel)
			_ = conn.Send(Message{Channel: frame.Channel, Event: "unsubscribed"})
		}
	}
}

func (s *Server) pingLoop(conn *Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			<-conn.writeMu
			conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.ws.WriteMessage(websocket.PingMessage, nil)
			conn.writeMu <- struct{}{}
			if err != nil {
				return
			}
		}
	}
}

func connID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return r.RemoteAddr + "-" + time.Now().UTC().Format(time.RFC3339Nano)
}
