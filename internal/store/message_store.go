package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

type MessageStore struct {
	db *sql.DB
}

func NewMessageStore(db *sql.DB) *MessageStore { return &MessageStore{db: db} }

// Create persists a message and bumps the room's last-message pointer in
// the same transaction, so listings never point at a message that was
// not durably recorded.
func (s *MessageStore) Create(ctx context.Context, req NewMessage) (*Message, error) {
	if req.Content == "" && req.FileURL == "" {
		return nil, ErrValidation
	}
	msgType := req.Type
	if msgType == "" {
		msgType = MessageTypeText
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	msg := &Message{
		ID:       uuid.NewString(),
		RoomID:   req.RoomID,
		SenderID: req.SenderID,
		Content:  req.Content,
		Type:     msgType,
		FileURL:  req.FileURL,
		FileName: req.FileName,
	}

	const insQ = `
	  INSERT INTO messages (id, room_id, sender_id, content, type, file_url, file_name)
	       VALUES ($1, $2, $3, $4, $5, NULLIF($6,''), NULLIF($7,''))
	  RETURNING created_at`
	if err = tx.QueryRowContext(ctx, insQ,
		msg.ID, msg.RoomID, msg.SenderID, msg.Content, msg.Type, msg.FileURL, msg.FileName,
	).Scan(&msg.CreatedAt); err != nil {
		return nil, err
	}

	const touchQ = `
	  UPDATE rooms SET last_message_id = $1, updated_at = now() WHERE id = $2`
	if _, err = tx.ExecContext(ctx, touchQ, msg.ID, msg.RoomID); err != nil {
		return nil, err
	}

	// Populate sender username/avatar so fan-out carries a ready-to-render
	// message, mirroring the history listing shape.
	const senderQ = `SELECT username, avatar FROM users WHERE id = $1`
	if err = tx.QueryRowContext(ctx, senderQ, msg.SenderID).
		Scan(&msg.SenderName, &msg.SenderAvatar); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *MessageStore) Get(ctx context.Context, id string) (*Message, error) {
	const q = `
	  SELECT m.id, m.room_id, m.sender_id, u.username, u.avatar,
	         m.content, m.type, coalesce(m.file_url,''), coalesce(m.file_name,''),
	         m.deleted, m.created_at
	    FROM messages m
	    JOIN users u ON u.id = m.sender_id
	   WHERE m.id = $1`
	msg := &Message{}
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&msg.ID, &msg.RoomID, &msg.SenderID, &msg.SenderName, &msg.SenderAvatar,
		&msg.Content, &msg.Type, &msg.FileURL, &msg.FileName,
		&msg.Deleted, &msg.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	const readsQ = `SELECT user_id, read_at FROM message_reads WHERE message_id = $1`
	rows, err := s.db.QueryContext(ctx, readsQ, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var rr ReadReceipt
		if err := rows.Scan(&rr.UserID, &rr.ReadAt); err != nil {
			return nil, err
		}
		msg.ReadBy = append(msg.ReadBy, rr)
	}
	return msg, rows.Err()
}

// AppendReadReceipt records that userID has read the message. Returns
// false when a receipt already exists; the conflict path is a no-op,
// never an error.
func (s *MessageStore) AppendReadReceipt(ctx context.Context, messageID, userID string) (bool, error) {
	const q = `
	  INSERT INTO message_reads (message_id, user_id, read_at)
	       VALUES ($1, $2, now())
	  ON CONFLICT (message_id, user_id) DO NOTHING`
	res, err := s.db.ExecContext(ctx, q, messageID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkDeleted redacts a message's content. The transition is one-way and
// idempotent: deleting an already-deleted message mutates nothing.
func (s *MessageStore) MarkDeleted(ctx context.Context, id, requesterID string) error {
	var senderID string
	var deleted bool
	const q = `SELECT sender_id, deleted FROM messages WHERE id = $1`
	err := s.db.QueryRowContext(ctx, q, id).Scan(&senderID, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if senderID != requesterID {
		return ErrNotSender
	}
	if deleted {
		return nil
	}

	const updQ = `
	  UPDATE messages
	     SET deleted = true, content = $2, file_url = NULL, file_name = NULL
	   WHERE id = $1 AND deleted = false`
	_, err = s.db.ExecContext(ctx, updQ, id, DeletedMarker)
	return err
}

// CountByRoom counts a room's non-deleted messages, for history paging
// metadata.
func (s *MessageStore) CountByRoom(ctx context.Context, roomID string) (int, error) {
	const q = `SELECT count(*) FROM messages WHERE room_id = $1 AND deleted = false`
	var n int
	err := s.db.QueryRowContext(ctx, q, roomID).Scan(&n)
	return n, err
}

// ListByRoom returns one history page, oldest first within the page.
func (s *MessageStore) ListByRoom(ctx context.Context, roomID string, limit, page int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	const q = `
	  SELECT m.id, m.room_id, m.sender_id, u.username, u.avatar,
	         m.content, m.type, coalesce(m.file_url,''), coalesce(m.file_name,''),
	         m.deleted, m.created_at
	    FROM messages m
	    JOIN users u ON u.id = m.sender_id
	   WHERE m.room_id = $1 AND m.deleted = false
	   ORDER BY m.created_at DESC
	   LIMIT $2 OFFSET $3`
	rows, err := s.db.QueryContext(ctx, q, roomID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]Message, 0, limit)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.SenderName, &m.SenderAvatar,
			&m.Content, &m.Type, &m.FileURL, &m.FileName,
			&m.Deleted, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query newest-first for the offset, serve oldest-first for rendering.
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	return list, nil
}
