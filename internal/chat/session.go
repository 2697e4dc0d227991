package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chatrelay/internal/auth"
)

// conn is the minimal surface a session needs from its transport.
// Tests substitute a recording implementation.
type conn interface {
	writeJSON(v any) error
	close() error
}

// wsConn serializes writes on a gorilla connection; gorilla allows only
// one concurrent writer.
type wsConn struct {
	raw *websocket.Conn
	mu  sync.Mutex
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.raw.SetWriteDeadline(time.Now().Add(writeWait))
	return c.raw.WriteJSON(v)
}

func (c *wsConn) close() error { return c.raw.Close() }

// ping is safe to call concurrently with writeJSON; gorilla serializes
// control frames internally.
func (c *wsConn) ping() error {
	return c.raw.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Session is one authenticated live connection. A user may own several
// concurrent sessions (multi-device).
type Session struct {
	ID       string
	UserID   string
	Username string
	Avatar   string

	conn conn

	mu     sync.Mutex
	rooms  map[string]struct{}
	closed bool
}

func newSession(id *auth.Identity, c conn) *Session {
	return &Session{
		ID:       uuid.NewString(),
		UserID:   id.UserID,
		Username: id.Username,
		Avatar:   id.Avatar,
		conn:     c,
		rooms:    make(map[string]struct{}),
	}
}

// send writes one event frame. Closed sessions drop silently; the
// reader loop is already tearing the session down.
func (s *Session) send(event string, body any) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return s.conn.writeJSON(outbound{Event: event, Body: body})
}

func (s *Session) inRoom(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[roomID]
	return ok
}

func (s *Session) trackJoin(roomID string) {
	s.mu.Lock()
	s.rooms[roomID] = struct{}{}
	s.mu.Unlock()
}

func (s *Session) trackLeave(roomID string) {
	s.mu.Lock()
	delete(s.rooms, roomID)
	s.mu.Unlock()
}

func (s *Session) roomsSnapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.rooms))
	for r := range s.rooms {
		out = append(out, r)
	}
	return out
}

// markClosed rejects new sends; in-flight fan-out to other sessions is
// unaffected.
func (s *Session) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
