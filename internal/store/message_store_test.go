package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMessagePersistsBeforeReturning(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewMessageStore(db)

	createdAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO messages").
		WithArgs(sqlmock.AnyArg(), "r1", "u1", "hi", MessageTypeText, "", "").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(createdAt))
	mock.ExpectExec("UPDATE rooms SET last_message_id").
		WithArgs(sqlmock.AnyArg(), "r1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT username, avatar FROM users").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"username", "avatar"}).
			AddRow("alice", "https://example.test/a.png"))
	mock.ExpectCommit()

	msg, err := s.Create(context.Background(), NewMessage{
		RoomID: "r1", SenderID: "u1", Content: "hi",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "alice", msg.SenderName)
	assert.Equal(t, MessageTypeText, msg.Type, "empty type defaults to text")
	assert.Equal(t, createdAt, msg.CreatedAt)
	assert.False(t, msg.Deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMessageRequiresContentOrFile(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewMessageStore(db)

	_, err = s.Create(context.Background(), NewMessage{RoomID: "r1", SenderID: "u1"})
	assert.ErrorIs(t, err, ErrValidation)
	require.NoError(t, mock.ExpectationsWereMet(), "no write may reach the database")
}

func TestAppendReadReceiptIdempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewMessageStore(db)

	mock.ExpectExec("INSERT INTO message_reads").
		WithArgs("m1", "u2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO message_reads").
		WithArgs("m1", "u2").
		WillReturnResult(sqlmock.NewResult(0, 0)) // conflict path

	added, err := s.AppendReadReceipt(context.Background(), "m1", "u2")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.AppendReadReceipt(context.Background(), "m1", "u2")
	require.NoError(t, err)
	assert.False(t, added, "duplicate receipt is a no-op, not an error")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkDeletedIsOneWayAndIdempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewMessageStore(db)

	// First delete redacts.
	mock.ExpectQuery("SELECT sender_id, deleted FROM messages").
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{"sender_id", "deleted"}).AddRow("u1", false))
	mock.ExpectExec("UPDATE messages").
		WithArgs("m1", DeletedMarker).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.MarkDeleted(context.Background(), "m1", "u1"))

	// Second delete finds the flag set and mutates nothing.
	mock.ExpectQuery("SELECT sender_id, deleted FROM messages").
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{"sender_id", "deleted"}).AddRow("u1", true))

	require.NoError(t, s.MarkDeleted(context.Background(), "m1", "u1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkDeletedGuards(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewMessageStore(db)

	mock.ExpectQuery("SELECT sender_id, deleted FROM messages").
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{"sender_id", "deleted"}).AddRow("u1", false))

	err = s.MarkDeleted(context.Background(), "m1", "someone_else")
	assert.ErrorIs(t, err, ErrNotSender)

	mock.ExpectQuery("SELECT sender_id, deleted FROM messages").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"sender_id", "deleted"}))

	err = s.MarkDeleted(context.Background(), "ghost", "u1")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountByRoomExcludesDeleted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewMessageStore(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM messages`).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	n, err := s.CountByRoom(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 42, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMessageLoadsReceipts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewMessageStore(db)

	createdAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	readAt := createdAt.Add(time.Minute)

	mock.ExpectQuery("SELECT m.id, m.room_id, m.sender_id").
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "room_id", "sender_id", "username", "avatar",
			"content", "type", "file_url", "file_name", "deleted", "created_at",
		}).AddRow("m1", "r1", "u1", "alice", "", "hi", "text", "", "", false, createdAt))
	mock.ExpectQuery("SELECT user_id, read_at FROM message_reads").
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "read_at"}).AddRow("u2", readAt))

	msg, err := s.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "r1", msg.RoomID)
	require.Len(t, msg.ReadBy, 1)
	assert.Equal(t, "u2", msg.ReadBy[0].UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}
