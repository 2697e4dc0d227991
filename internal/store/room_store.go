package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

type RoomStore struct {
	db *sql.DB
}

func NewRoomStore(db *sql.DB) *RoomStore { return &RoomStore{db: db} }

// IsMember answers the authoritative membership question. The router
// calls this on every send rather than caching the result from join.
func (s *RoomStore) IsMember(ctx context.Context, userID, roomID string) (bool, error) {
	const q = `SELECT EXISTS (
	             SELECT 1 FROM room_members WHERE room_id = $1 AND user_id = $2)`
	var ok bool
	err := s.db.QueryRowContext(ctx, q, roomID, userID).Scan(&ok)
	return ok, err
}

func (s *RoomStore) MembersOf(ctx context.Context, roomID string) ([]string, error) {
	const q = `SELECT user_id FROM room_members WHERE room_id = $1`
	rows, err := s.db.QueryContext(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		members = append(members, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(members) == 0 {
		// No members means no such room: every room has at least its creator.
		return nil, ErrNotFound
	}
	return members, nil
}

func (s *RoomStore) Get(ctx context.Context, id string) (*Room, error) {
	const q = `
	  SELECT id, name, description, type, creator_id,
	         coalesce(last_message_id::text,''), created_at, updated_at
	    FROM rooms WHERE id = $1`
	r := &Room{}
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&r.ID, &r.Name, &r.Description, &r.Type, &r.CreatorID,
		&r.LastMessageID, &r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if r.Members, err = s.MembersOf(ctx, id); err != nil {
		return nil, err
	}
	return r, nil
}

// Create makes a room. Private rooms are constrained to exactly two
// members and deduplicated per unordered pair: a second create for the
// same pair returns the existing room.
func (s *RoomStore) Create(ctx context.Context, req NewRoom) (*Room, error) {
	members := req.Members
	if req.Type == RoomTypePrivate {
		// Two distinct users: a pair with a repeated id would both defeat
		// the dedup join below and persist a one-member private room.
		if len(members) != 2 || members[0] == members[1] {
			return nil, ErrPrivateMembers
		}
		const dedupQ = `
		  SELECT r.id
		    FROM rooms r
		    JOIN room_members a ON a.room_id = r.id AND a.user_id = $1
		    JOIN room_members b ON b.room_id = r.id AND b.user_id = $2
		   WHERE r.type = 'private'`
		var existingID string
		err := s.db.QueryRowContext(ctx, dedupQ, members[0], members[1]).Scan(&existingID)
		if err == nil {
			return s.Get(ctx, existingID)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	} else {
		// Group rooms always include their creator.
		members = appendUnique(members, req.CreatorID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	r := &Room{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		CreatorID:   req.CreatorID,
		Members:     members,
	}
	const insQ = `
	  INSERT INTO rooms (id, name, description, type, creator_id)
	       VALUES ($1, $2, $3, $4, $5)
	  RETURNING created_at, updated_at`
	if err = tx.QueryRowContext(ctx, insQ,
		r.ID, r.Name, r.Description, r.Type, r.CreatorID,
	).Scan(&r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}

	const memQ = `INSERT INTO room_members (room_id, user_id) VALUES ($1, $2)
	              ON CONFLICT DO NOTHING`
	for _, uid := range members {
		if _, err = tx.ExecContext(ctx, memQ, r.ID, uid); err != nil {
			return nil, err
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return r, nil
}

// Update applies a creator-only edit to a room's name, description or
// member roster. Private-room membership is fixed at creation and
// cannot be edited.
func (s *RoomStore) Update(ctx context.Context, id, requesterID string, upd RoomUpdate) (*Room, error) {
	var creatorID, roomType string
	const ownerQ = `SELECT creator_id, type FROM rooms WHERE id = $1`
	err := s.db.QueryRowContext(ctx, ownerQ, id).Scan(&creatorID, &roomType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if creatorID != requesterID {
		return nil, ErrNotCreator
	}
	if upd.Members != nil && roomType == RoomTypePrivate {
		return nil, ErrPrivateMembers
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	const updQ = `
	  UPDATE rooms
	     SET name        = coalesce(nullif($2,''), name),
	         description = coalesce(nullif($3,''), description),
	         updated_at  = now()
	   WHERE id = $1`
	if _, err = tx.ExecContext(ctx, updQ, id, upd.Name, upd.Description); err != nil {
		return nil, err
	}

	if upd.Members != nil {
		members := appendUnique(upd.Members, creatorID)
		if _, err = tx.ExecContext(ctx,
			`DELETE FROM room_members WHERE room_id = $1`, id); err != nil {
			return nil, err
		}
		const memQ = `INSERT INTO room_members (room_id, user_id) VALUES ($1, $2)
		              ON CONFLICT DO NOTHING`
		for _, uid := range members {
			if _, err = tx.ExecContext(ctx, memQ, id, uid); err != nil {
				return nil, err
			}
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes a room together with its messages, receipts and
// memberships. Creator-only.
func (s *RoomStore) Delete(ctx context.Context, id, requesterID string) error {
	var creatorID string
	const ownerQ = `SELECT creator_id FROM rooms WHERE id = $1`
	err := s.db.QueryRowContext(ctx, ownerQ, id).Scan(&creatorID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if creatorID != requesterID {
		return ErrNotCreator
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// The last-message pointer goes first so message rows are free to go.
	steps := []string{
		`UPDATE rooms SET last_message_id = NULL WHERE id = $1`,
		`DELETE FROM message_reads WHERE message_id IN
		   (SELECT id FROM messages WHERE room_id = $1)`,
		`DELETE FROM messages WHERE room_id = $1`,
		`DELETE FROM room_members WHERE room_id = $1`,
		`DELETE FROM rooms WHERE id = $1`,
	}
	for _, q := range steps {
		if _, err = tx.ExecContext(ctx, q, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Summary builds the compact snapshot pushed on "room:updated" and used
// by room listings.
func (s *RoomStore) Summary(ctx context.Context, roomID string) (*RoomSummary, error) {
	const q = `
	  SELECT r.id, r.name, r.type, r.updated_at,
	         coalesce(m.id::text,''), coalesce(m.content,''), coalesce(m.type,''),
	         coalesce(u.username,''), coalesce(m.created_at, r.updated_at)
	    FROM rooms r
	    LEFT JOIN messages m ON m.id = r.last_message_id
	    LEFT JOIN users u ON u.id = m.sender_id
	   WHERE r.id = $1`
	sum := &RoomSummary{}
	var pv MessagePreview
	err := s.db.QueryRowContext(ctx, q, roomID).Scan(
		&sum.ID, &sum.Name, &sum.Type, &sum.UpdatedAt,
		&pv.ID, &pv.Content, &pv.Type, &pv.SenderName, &pv.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if pv.ID != "" {
		sum.LastMessage = &pv
	}
	return sum, nil
}

// ListFor returns summaries of every room the user is a member of,
// most recently active first.
func (s *RoomStore) ListFor(ctx context.Context, userID string) ([]RoomSummary, error) {
	const q = `
	  SELECT r.id, r.name, r.type, r.updated_at,
	         coalesce(m.id::text,''), coalesce(m.content,''), coalesce(m.type,''),
	         coalesce(u.username,''), coalesce(m.created_at, r.updated_at)
	    FROM rooms r
	    JOIN room_members rm ON rm.room_id = r.id AND rm.user_id = $1
	    LEFT JOIN messages m ON m.id = r.last_message_id
	    LEFT JOIN users u ON u.id = m.sender_id
	   ORDER BY r.updated_at DESC`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []RoomSummary
	for rows.Next() {
		var sum RoomSummary
		var pv MessagePreview
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.Type, &sum.UpdatedAt,
			&pv.ID, &pv.Content, &pv.Type, &pv.SenderName, &pv.CreatedAt); err != nil {
			return nil, err
		}
		if pv.ID != "" {
			sum.LastMessage = &pv
		}
		list = append(list, sum)
	}
	return list, rows.Err()
}

func appendUnique(ids []string, id string) []string {
	for _, v := range ids {
		if v == id {
			return ids
		}
	}
	return append(ids, id)
}
