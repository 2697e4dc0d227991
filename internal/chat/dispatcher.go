package chat

import (
	"context"
	"time"

	"go.uber.org/zap"

	"chatrelay/internal/store"
)

// RoomDirectory is the membership oracle plus the summary lookup used
// for "room:updated" pushes.
type RoomDirectory interface {
	IsMember(ctx context.Context, userID, roomID string) (bool, error)
	MembersOf(ctx context.Context, roomID string) ([]string, error)
	Summary(ctx context.Context, roomID string) (*store.RoomSummary, error)
}

// MessageRecorder is the message store surface the dispatcher mutates
// through; it never touches message rows directly.
type MessageRecorder interface {
	Create(ctx context.Context, req store.NewMessage) (*store.Message, error)
	Get(ctx context.Context, id string) (*store.Message, error)
	AppendReadReceipt(ctx context.Context, messageID, userID string) (bool, error)
}

// Dispatcher validates inbound events against membership state,
// mutates the message store and registry, and fans resulting events out
// to the correct session sets.
type Dispatcher struct {
	reg          *Registry
	rooms        RoomDirectory
	messages     MessageRecorder
	tracker      *Tracker
	storeTimeout time.Duration
}

func NewDispatcher(reg *Registry, rooms RoomDirectory, messages MessageRecorder,
	tracker *Tracker, storeTimeout time.Duration) *Dispatcher {

	if storeTimeout <= 0 {
		storeTimeout = 2 * time.Second
	}
	return &Dispatcher{
		reg:          reg,
		rooms:        rooms,
		messages:     messages,
		tracker:      tracker,
		storeTimeout: storeTimeout,
	}
}

// registerAll binds every inbound event to its handler.
func (d *Dispatcher) registerAll(r *Router) {
	Register(r, EvtRoomJoin, d.handleJoin)
	Register(r, EvtRoomLeave, d.handleLeave)
	Register(r, EvtMessageSend, d.handleSend)
	Register(r, EvtTypingStart, d.handleTypingStart)
	Register(r, EvtTypingStop, d.handleTypingStop)
	Register(r, EvtMessageRead, d.handleRead)
}

func (d *Dispatcher) handleJoin(ctx context.Context, sc *SessionContext, req JoinRoomRequest) (AckBody, error) {
	sess := sc.Session

	ok, err := d.rooms.IsMember(ctx, sess.UserID, req.RoomID)
	if err != nil {
		return AckBody{}, mapStoreErr(err)
	}
	if !ok {
		return AckBody{}, ErrAccessDenied
	}

	d.reg.JoinRoom(req.RoomID, sess)

	d.fanout(d.reg.Subscribers(req.RoomID, sess.ID), EvtUserJoined, RoomEventBody{
		UserID:   sess.UserID,
		Username: sess.Username,
		RoomID:   req.RoomID,
	})
	return AckBody{}, nil
}

func (d *Dispatcher) handleLeave(ctx context.Context, sc *SessionContext, req LeaveRoomRequest) (AckBody, error) {
	sess := sc.Session

	if !d.reg.LeaveRoom(req.RoomID, sess) {
		return AckBody{}, ErrNotSubscribed
	}
	d.tracker.StopTyping(req.RoomID, sess.UserID)

	d.fanout(d.reg.Subscribers(req.RoomID, sess.ID), EvtUserLeft, RoomEventBody{
		UserID:   sess.UserID,
		Username: sess.Username,
		RoomID:   req.RoomID,
	})
	return AckBody{}, nil
}

// handleSend is the critical path. Membership is re-verified on every
// send (a join-time check may be stale), the store write must be known
// committed before any fan-out, and the delivery target set is every
// live session of every room member, subscribed or not.
func (d *Dispatcher) handleSend(ctx context.Context, sc *SessionContext, req SendMessageRequest) (*store.Message, error) {
	sess := sc.Session

	if req.Content == "" && req.FileURL == "" {
		return nil, store.ErrValidation
	}

	// One authoritative lookup serves both the membership gate and the
	// delivery target computation.
	members, err := d.rooms.MembersOf(ctx, req.RoomID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if !contains(members, sess.UserID) {
		return nil, ErrAccessDenied
	}

	writeCtx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	msg, err := d.messages.Create(writeCtx, store.NewMessage{
		RoomID:   req.RoomID,
		SenderID: sess.UserID,
		Content:  req.Content,
		Type:     req.Type,
		FileURL:  req.FileURL,
		FileName: req.FileName,
	})
	cancel()
	if err != nil {
		// Not durably recorded: zero sessions may learn about it.
		return nil, mapStoreErr(err)
	}

	targets := d.reg.SessionsOfUsers(members, sess.ID)
	d.fanout(targets, EvtMessageRecv, MessageReceivedBody{Message: msg, RoomID: req.RoomID})

	// Room summary push keeps sidebars fresh for members not viewing
	// the room. A summary lookup failure degrades gracefully: the
	// message itself is already delivered.
	if sum, err := d.rooms.Summary(ctx, req.RoomID); err != nil {
		zap.L().Warn("dispatch.room_summary", zap.String("room", req.RoomID), zap.Error(err))
	} else {
		d.fanout(targets, EvtRoomUpdated, sum)
	}

	// The sender's own session gets the canonical record in the ack.
	return msg, nil
}

func (d *Dispatcher) handleTypingStart(ctx context.Context, sc *SessionContext, req TypingRequest) (AckBody, error) {
	sess := sc.Session

	if !sess.inRoom(req.RoomID) {
		return AckBody{}, ErrNotSubscribed
	}
	d.tracker.StartTyping(req.RoomID, sess.UserID)

	d.fanout(d.reg.Subscribers(req.RoomID, sess.ID), EvtUserTyping, RoomEventBody{
		UserID:   sess.UserID,
		Username: sess.Username,
		RoomID:   req.RoomID,
	})
	return AckBody{}, nil
}

func (d *Dispatcher) handleTypingStop(ctx context.Context, sc *SessionContext, req TypingRequest) (AckBody, error) {
	sess := sc.Session

	if !sess.inRoom(req.RoomID) {
		return AckBody{}, ErrNotSubscribed
	}
	d.tracker.StopTyping(req.RoomID, sess.UserID)

	d.fanout(d.reg.Subscribers(req.RoomID, sess.ID), EvtStoppedTyping, RoomEventBody{
		UserID: sess.UserID,
		RoomID: req.RoomID,
	})
	return AckBody{}, nil
}

func (d *Dispatcher) handleRead(ctx context.Context, sc *SessionContext, req ReadMessageRequest) (AckBody, error) {
	sess := sc.Session

	msg, err := d.messages.Get(ctx, req.MessageID)
	if err != nil {
		return AckBody{}, mapStoreErr(err)
	}
	if msg.RoomID != req.RoomID {
		return AckBody{}, store.ErrNotFound
	}

	ok, err := d.rooms.IsMember(ctx, sess.UserID, req.RoomID)
	if err != nil {
		return AckBody{}, mapStoreErr(err)
	}
	if !ok {
		return AckBody{}, ErrAccessDenied
	}

	writeCtx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	added, err := d.messages.AppendReadReceipt(writeCtx, req.MessageID, sess.UserID)
	cancel()
	if err != nil {
		return AckBody{}, mapStoreErr(err)
	}
	if !added {
		// Receipt already present: idempotent no-op, nothing to relay.
		return AckBody{}, nil
	}

	d.fanout(d.reg.Subscribers(req.RoomID, sess.ID), EvtReadUpdate, ReadUpdateBody{
		MessageID: req.MessageID,
		UserID:    sess.UserID,
		RoomID:    req.RoomID,
	})
	return AckBody{}, nil
}

// fanout delivers one event to a pre-snapshotted target set. No locks
// are held here; a slow or dead connection only affects itself.
func (d *Dispatcher) fanout(targets []*Session, event string, body any) {
	for _, sess := range targets {
		if err := sess.send(event, body); err != nil {
			zap.L().Debug("dispatch.fanout",
				zap.String("event", event),
				zap.String("session", sess.ID),
				zap.Error(err))
		}
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
