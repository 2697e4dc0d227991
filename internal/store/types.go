package store

import "time"

const (
	RoomTypeGroup   = "group"
	RoomTypePrivate = "private"

	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"

	// DeletedMarker replaces the content of a soft-deleted message.
	DeletedMarker = "This message was deleted"
)

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

type ReadReceipt struct {
	UserID string    `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}

// Message is immutable once persisted, apart from the deleted flag
// (content redaction) and the append-only read-receipt list.
type Message struct {
	ID           string        `json:"id"`
	RoomID       string        `json:"room_id"`
	SenderID     string        `json:"sender_id"`
	SenderName   string        `json:"sender_name"`
	SenderAvatar string        `json:"sender_avatar"`
	Content      string        `json:"content"`
	Type         string        `json:"type"`
	FileURL      string        `json:"file_url,omitempty"`
	FileName     string        `json:"file_name,omitempty"`
	ReadBy       []ReadReceipt `json:"read_by,omitempty"`
	Deleted      bool          `json:"deleted"`
	CreatedAt    time.Time     `json:"created_at"`
}

// NewMessage is the write request for MessageStore.Create.
type NewMessage struct {
	RoomID   string
	SenderID string
	Content  string
	Type     string
	FileURL  string
	FileName string
}

type Room struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Type          string    `json:"type"`
	CreatorID     string    `json:"creator_id"`
	Members       []string  `json:"members"`
	LastMessageID string    `json:"last_message_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewRoom is the write request for RoomStore.Create.
type NewRoom struct {
	Name        string
	Description string
	Type        string
	CreatorID   string
	Members     []string
}

// RoomUpdate is the write request for RoomStore.Update. Empty strings
// keep the current value; a nil member list keeps the current roster.
type RoomUpdate struct {
	Name        string
	Description string
	Members     []string
}

// MessagePreview is the denormalized last-message slice carried by a
// room summary for sidebar rendering.
type MessagePreview struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Type       string    `json:"type"`
	SenderName string    `json:"sender_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// RoomSummary is what members see in a room listing; it is also the
// payload pushed on "room:updated".
type RoomSummary struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	LastMessage *MessagePreview `json:"last_message,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
