package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"chatrelay/internal/auth"
	"chatrelay/internal/store"
)

// fakeConn records every frame written to a session.
type fakeConn struct {
	mu     sync.Mutex
	frames []outbound
	fail   bool
}

func (c *fakeConn) writeJSON(v any) error {
	if c.fail {
		return errors.New("write failed")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, v.(outbound))
	return nil
}

func (c *fakeConn) close() error { return nil }

func (c *fakeConn) events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.frames))
	for _, f := range c.frames {
		out = append(out, f.Event)
	}
	return out
}

func (c *fakeConn) count(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, f := range c.frames {
		if f.Event == event {
			n++
		}
	}
	return n
}

func testSession(userID, username string) (*Session, *fakeConn) {
	fc := &fakeConn{}
	s := newSession(&auth.Identity{UserID: userID, Username: username}, fc)
	return s, fc
}

// fakeRooms is an in-memory membership oracle.
type fakeRooms struct {
	mu      sync.Mutex
	members map[string][]string
}

func newFakeRooms(members map[string][]string) *fakeRooms {
	return &fakeRooms{members: members}
}

func (f *fakeRooms) IsMember(_ context.Context, userID, roomID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.members[roomID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRooms) MembersOf(_ context.Context, roomID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[roomID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]string(nil), m...), nil
}

func (f *fakeRooms) Summary(_ context.Context, roomID string) (*store.RoomSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.members[roomID]; !ok {
		return nil, store.ErrNotFound
	}
	return &store.RoomSummary{ID: roomID, Name: "room " + roomID}, nil
}

func (f *fakeRooms) setMembers(roomID string, ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[roomID] = ids
}

// fakeMessages is an in-memory message store.
type fakeMessages struct {
	mu        sync.Mutex
	createErr error
	created   []*store.Message
	reads     map[string]map[string]bool // message id -> user ids
	known     map[string]*store.Message
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{
		reads: map[string]map[string]bool{},
		known: map[string]*store.Message{},
	}
}

func (f *fakeMessages) Create(_ context.Context, req store.NewMessage) (*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	msg := &store.Message{
		ID:       fmt.Sprintf("m%d", len(f.created)+1),
		RoomID:   req.RoomID,
		SenderID: req.SenderID,
		Content:  req.Content,
		Type:     req.Type,
	}
	f.created = append(f.created, msg)
	f.known[msg.ID] = msg
	return msg, nil
}

func (f *fakeMessages) Get(_ context.Context, id string) (*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.known[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return msg, nil
}

func (f *fakeMessages) AppendReadReceipt(_ context.Context, messageID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reads[messageID] == nil {
		f.reads[messageID] = map[string]bool{}
	}
	if f.reads[messageID][userID] {
		return false, nil
	}
	f.reads[messageID][userID] = true
	return true, nil
}

func (f *fakeMessages) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}
