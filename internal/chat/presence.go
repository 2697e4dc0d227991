package chat

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"

	// typingWindow bounds how long a typing:start without a matching
	// stop stays in the ephemeral map. Clients treat a silent 2 s as
	// stopped; the server only relays and prunes its own bookkeeping.
	typingWindow = 2 * time.Second

	presenceKeyPrefix = "presence:"
)

// Tracker derives online/offline from session lifecycle and keeps the
// room-scoped ephemeral typing map. Status transitions are broadcast
// globally; the Redis write is a best-effort persistence sink.
type Tracker struct {
	reg *Registry
	rdc *redis.Client
	now func() time.Time

	mu     sync.Mutex
	typing map[string]map[string]time.Time // room id -> user id -> started at
}

func NewTracker(reg *Registry, rdc *redis.Client) *Tracker {
	return &Tracker{
		reg:    reg,
		rdc:    rdc,
		now:    time.Now,
		typing: make(map[string]map[string]time.Time),
	}
}

// SessionOnline broadcasts "online" iff this is the user's first live
// session, so a second device never re-announces the user.
func (t *Tracker) SessionOnline(ctx context.Context, s *Session, first bool) {
	if !first {
		return
	}
	t.setStatus(ctx, s.UserID, StatusOnline)
	t.broadcast(StatusBody{UserID: s.UserID, Status: StatusOnline})
}

// SessionOffline broadcasts "offline" iff the last session is gone.
func (t *Tracker) SessionOffline(ctx context.Context, s *Session, last bool) {
	if !last {
		return
	}
	t.clearTypingUser(s.UserID)
	t.setStatus(ctx, s.UserID, StatusOffline)
	t.broadcast(StatusBody{UserID: s.UserID, Status: StatusOffline})
}

func (t *Tracker) broadcast(body StatusBody) {
	for _, sess := range t.reg.All() {
		if err := sess.send(EvtUserStatus, body); err != nil {
			zap.L().Debug("presence.broadcast", zap.String("session", sess.ID), zap.Error(err))
		}
	}
}

// setStatus persists the transition. Failures are logged, never
// propagated: the in-memory transition and its broadcast still happen.
func (t *Tracker) setStatus(ctx context.Context, userID, status string) {
	if t.rdc == nil {
		return
	}
	err := t.rdc.HSet(ctx, presenceKeyPrefix+userID,
		"status", status,
		"last_seen", t.now().Unix(),
	).Err()
	if err != nil {
		zap.L().Warn("presence.set_status", zap.String("user", userID), zap.Error(err))
	}
}

// StartTyping records the user as typing in the room.
func (t *Tracker) StartTyping(roomID, userID string) {
	t.mu.Lock()
	room, ok := t.typing[roomID]
	if !ok {
		room = make(map[string]time.Time)
		t.typing[roomID] = room
	}
	room[userID] = t.now()
	t.mu.Unlock()
}

func (t *Tracker) StopTyping(roomID, userID string) {
	t.mu.Lock()
	delete(t.typing[roomID], userID)
	t.mu.Unlock()
}

// TypingUsers lists users whose typing entry is still inside the window.
func (t *Tracker) TypingUsers(roomID string) []string {
	cutoff := t.now().Add(-typingWindow)

	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for uid, at := range t.typing[roomID] {
		if at.After(cutoff) {
			out = append(out, uid)
		}
	}
	return out
}

func (t *Tracker) clearTypingUser(userID string) {
	t.mu.Lock()
	for _, room := range t.typing {
		delete(room, userID)
	}
	t.mu.Unlock()
}

// pruneTyping drops entries older than the window. No stop events are
// emitted: expiry is a client-side convention, this is memory hygiene.
func (t *Tracker) pruneTyping() {
	cutoff := t.now().Add(-typingWindow)

	t.mu.Lock()
	for roomID, room := range t.typing {
		for uid, at := range room {
			if !at.After(cutoff) {
				delete(room, uid)
			}
		}
		if len(room) == 0 {
			delete(t.typing, roomID)
		}
	}
	t.mu.Unlock()
}

// RunJanitor prunes the typing map until the context is cancelled.
func (t *Tracker) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(typingWindow)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.pruneTyping()
		}
	}
}
