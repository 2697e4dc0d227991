package chat

import "sync"

// Registry is the live mapping of identity -> sessions and
// room -> subscribed sessions. Mutations are serialized per user and
// per room; cross-room operations never contend.
type Registry struct {
	sessions sync.Map // session id -> *Session
	users    sync.Map // user id    -> *userSessions
	rooms    sync.Map // room id    -> *roomSet
}

func NewRegistry() *Registry { return &Registry{} }

type userSessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
	gone     bool // entry removed from the registry map
}

type roomSet struct {
	mu   sync.RWMutex
	subs map[string]*Session
}

// Register adds an authenticated session. Reports whether it is the
// user's first live session, i.e. the user just came online.
func (r *Registry) Register(s *Session) (first bool) {
	r.sessions.Store(s.ID, s)

	for {
		v, _ := r.users.LoadOrStore(s.UserID, &userSessions{sessions: map[string]*Session{}})
		us := v.(*userSessions)

		us.mu.Lock()
		if us.gone {
			// Lost a race with the user's last deregister: that entry is
			// already unlinked, retry against a fresh one.
			us.mu.Unlock()
			continue
		}
		first = len(us.sessions) == 0
		us.sessions[s.ID] = s
		us.mu.Unlock()
		return first
	}
}

// Deregister removes the session and issues an implicit leave for every
// room it held, so subscriber sets never retain stale entries. Reports
// whether this was the user's last live session, and which rooms were
// left.
func (r *Registry) Deregister(sessionID string) (s *Session, last bool, left []string) {
	v, ok := r.sessions.LoadAndDelete(sessionID)
	if !ok {
		return nil, false, nil
	}
	s = v.(*Session)
	s.markClosed()

	for _, roomID := range s.roomsSnapshot() {
		if r.LeaveRoom(roomID, s) {
			left = append(left, roomID)
		}
	}

	if uv, ok := r.users.Load(s.UserID); ok {
		us := uv.(*userSessions)
		us.mu.Lock()
		delete(us.sessions, s.ID)
		last = len(us.sessions) == 0
		if last {
			// Drop the entry so the map does not grow with every user
			// ever seen.
			us.gone = true
			r.users.Delete(s.UserID)
		}
		us.mu.Unlock()
	}
	return s, last, left
}

// JoinRoom subscribes the session to a room's fan-out set.
func (r *Registry) JoinRoom(roomID string, s *Session) {
	v, _ := r.rooms.LoadOrStore(roomID, &roomSet{subs: map[string]*Session{}})
	rs := v.(*roomSet)

	rs.mu.Lock()
	rs.subs[s.ID] = s
	rs.mu.Unlock()
	s.trackJoin(roomID)
}

// LeaveRoom removes the subscription; reports whether it existed.
func (r *Registry) LeaveRoom(roomID string, s *Session) bool {
	v, ok := r.rooms.Load(roomID)
	if !ok {
		return false
	}
	rs := v.(*roomSet)

	rs.mu.Lock()
	_, present := rs.subs[s.ID]
	delete(rs.subs, s.ID)
	rs.mu.Unlock()

	s.trackLeave(roomID)
	return present
}

// Subscribers snapshots the sessions currently subscribed to a room,
// minus the excluded session. Delivery happens outside any lock.
func (r *Registry) Subscribers(roomID, exceptSessionID string) []*Session {
	v, ok := r.rooms.Load(roomID)
	if !ok {
		return nil
	}
	rs := v.(*roomSet)

	rs.mu.RLock()
	out := make([]*Session, 0, len(rs.subs))
	for id, s := range rs.subs {
		if id == exceptSessionID {
			continue
		}
		out = append(out, s)
	}
	rs.mu.RUnlock()
	return out
}

// SessionsOfUsers snapshots every live session owned by any of the
// given users, minus the excluded session. This is the delivery target
// set for messages: membership, not subscription, decides eligibility.
func (r *Registry) SessionsOfUsers(userIDs []string, exceptSessionID string) []*Session {
	var out []*Session
	for _, uid := range userIDs {
		v, ok := r.users.Load(uid)
		if !ok {
			continue
		}
		us := v.(*userSessions)

		us.mu.Lock()
		for id, s := range us.sessions {
			if id == exceptSessionID {
				continue
			}
			out = append(out, s)
		}
		us.mu.Unlock()
	}
	return out
}

// All snapshots every live session. Used for global presence fan-out.
func (r *Registry) All() []*Session {
	var out []*Session
	r.sessions.Range(func(_, v any) bool {
		out = append(out, v.(*Session))
		return true
	})
	return out
}
