package store

import (
	"context"
	"database/sql"
	"errors"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore { return &UserStore{db: db} }

func (s *UserStore) GetUser(ctx context.Context, id string) (*User, error) {
	const q = `SELECT id, username, avatar FROM users WHERE id = $1`
	u := &User{}
	err := s.db.QueryRowContext(ctx, q, id).Scan(&u.ID, &u.Username, &u.Avatar)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}
