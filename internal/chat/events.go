package chat

import (
	"encoding/json"

	"chatrelay/internal/store"
)

// Inbound event names.
const (
	EvtRoomJoin    = "room:join"
	EvtRoomLeave   = "room:leave"
	EvtMessageSend = "message:send"
	EvtTypingStart = "typing:start"
	EvtTypingStop  = "typing:stop"
	EvtMessageRead = "message:read"
)

// Outbound event names.
const (
	EvtUserStatus    = "user:status"
	EvtUserJoined    = "user:joined"
	EvtUserLeft      = "user:left"
	EvtMessageRecv   = "message:received"
	EvtRoomUpdated   = "room:updated"
	EvtUserTyping    = "user:typing"
	EvtStoppedTyping = "user:stopped-typing"
	EvtReadUpdate    = "message:read-update"
	EvtError         = "error"
)

// Envelope wraps every inbound WS frame.
type Envelope struct {
	Event string          `json:"event"`
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON object
}

// outbound is the frame shape written to clients.
type outbound struct {
	Event string `json:"event"`
	Body  any    `json:"body,omitempty"`
}

// ──────────────────────────── Request DTOs ───────────────────────────

type JoinRoomRequest struct {
	RoomID string `json:"room_id" validate:"required"`
}

type LeaveRoomRequest struct {
	RoomID string `json:"room_id" validate:"required"`
}

type SendMessageRequest struct {
	RoomID   string `json:"room_id" validate:"required"`
	Content  string `json:"content"`
	Type     string `json:"type" validate:"omitempty,oneof=text image file"`
	FileURL  string `json:"file_url"`
	FileName string `json:"file_name"`
}

type TypingRequest struct {
	RoomID string `json:"room_id" validate:"required"`
}

type ReadMessageRequest struct {
	MessageID string `json:"message_id" validate:"required"`
	RoomID    string `json:"room_id" validate:"required"`
}

// Empty ACK body (useful for many handlers).
type AckBody struct{}

// ErrorBody is returned for failures; Code is machine-readable.
type ErrorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// ──────────────────────────── Fan-out bodies ─────────────────────────

type StatusBody struct {
	UserID string `json:"user_id"`
	Status string `json:"status"` // "online" | "offline"
}

type RoomEventBody struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	RoomID   string `json:"room_id"`
}

type MessageReceivedBody struct {
	Message *store.Message `json:"message"`
	RoomID  string         `json:"room_id"`
}

type ReadUpdateBody struct {
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
	RoomID    string `json:"room_id"`
}
