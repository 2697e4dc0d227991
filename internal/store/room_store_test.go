package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMember(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewRoomStore(db)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("r1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("r1", "mallory").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := s.IsMember(context.Background(), "u1", "r1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsMember(context.Background(), "mallory", "r1")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMembersOfUnknownRoom(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewRoomStore(db)

	mock.ExpectQuery("SELECT user_id FROM room_members").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	_, err = s.MembersOf(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePrivateRoomReturnsExistingPair(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewRoomStore(db)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT r.id").
		WithArgs("u1", "u2").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("existing"))
	mock.ExpectQuery("SELECT id, name, description, type, creator_id").
		WithArgs("existing").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "description", "type", "creator_id",
			"last_message_id", "created_at", "updated_at",
		}).AddRow("existing", "dm", "", RoomTypePrivate, "u1", "", now, now))
	mock.ExpectQuery("SELECT user_id FROM room_members").
		WithArgs("existing").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u1").AddRow("u2"))

	room, err := s.Create(context.Background(), NewRoom{
		Name: "dm", Type: RoomTypePrivate, CreatorID: "u1", Members: []string{"u1", "u2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "existing", room.ID, "second private room for the same pair must dedup")
	assert.Len(t, room.Members, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePrivateRoomRequiresPair(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewRoomStore(db)

	_, err = s.Create(context.Background(), NewRoom{
		Name: "dm", Type: RoomTypePrivate, CreatorID: "u1",
		Members: []string{"u1", "u2", "u3"},
	})
	assert.ErrorIs(t, err, ErrPrivateMembers)
	require.NoError(t, mock.ExpectationsWereMet(), "no write may reach the database")
}

func TestCreatePrivateRoomRejectsDuplicateMember(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewRoomStore(db)

	_, err = s.Create(context.Background(), NewRoom{
		Name: "dm", Type: RoomTypePrivate, CreatorID: "u1",
		Members: []string{"u1", "u1"},
	})
	assert.ErrorIs(t, err, ErrPrivateMembers,
		"a repeated id is not a pair; it must not reach the dedup lookup")
	require.NoError(t, mock.ExpectationsWereMet(), "no query may reach the database")
}

func TestCreateGroupRoomIncludesCreator(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewRoomStore(db)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO rooms").
		WithArgs(sqlmock.AnyArg(), "general", "", RoomTypeGroup, "u1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec("INSERT INTO room_members").
		WithArgs(sqlmock.AnyArg(), "u2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO room_members").
		WithArgs(sqlmock.AnyArg(), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	room, err := s.Create(context.Background(), NewRoom{
		Name: "general", Type: RoomTypeGroup, CreatorID: "u1", Members: []string{"u2"},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2"}, room.Members)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRoomCreatorOnly(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewRoomStore(db)

	mock.ExpectQuery("SELECT creator_id, type FROM rooms").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"creator_id", "type"}).
			AddRow("u1", RoomTypeGroup))

	_, err = s.Update(context.Background(), "r1", "mallory", RoomUpdate{Name: "hijacked"})
	assert.ErrorIs(t, err, ErrNotCreator)
	require.NoError(t, mock.ExpectationsWereMet(), "no write may reach the database")
}

func TestUpdateRoomRenames(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewRoomStore(db)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT creator_id, type FROM rooms").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"creator_id", "type"}).
			AddRow("u1", RoomTypeGroup))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE rooms").
		WithArgs("r1", "renamed", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT id, name, description, type, creator_id").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "description", "type", "creator_id",
			"last_message_id", "created_at", "updated_at",
		}).AddRow("r1", "renamed", "", RoomTypeGroup, "u1", "", now, now))
	mock.ExpectQuery("SELECT user_id FROM room_members").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u1").AddRow("u2"))

	room, err := s.Update(context.Background(), "r1", "u1", RoomUpdate{Name: "renamed"})
	require.NoError(t, err)
	assert.Equal(t, "renamed", room.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePrivateRoomMembersLocked(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewRoomStore(db)

	mock.ExpectQuery("SELECT creator_id, type FROM rooms").
		WithArgs("dm1").
		WillReturnRows(sqlmock.NewRows([]string{"creator_id", "type"}).
			AddRow("u1", RoomTypePrivate))

	_, err = s.Update(context.Background(), "dm1", "u1",
		RoomUpdate{Members: []string{"u1", "u3"}})
	assert.ErrorIs(t, err, ErrPrivateMembers)
	require.NoError(t, mock.ExpectationsWereMet(), "no write may reach the database")
}

func TestDeleteRoomCreatorOnly(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewRoomStore(db)

	mock.ExpectQuery("SELECT creator_id FROM rooms").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"creator_id"}).AddRow("u1"))

	err = s.Delete(context.Background(), "r1", "mallory")
	assert.ErrorIs(t, err, ErrNotCreator)
	require.NoError(t, mock.ExpectationsWereMet(), "no write may reach the database")
}

func TestDeleteRoomRemovesDependents(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewRoomStore(db)

	mock.ExpectQuery("SELECT creator_id FROM rooms").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"creator_id"}).AddRow("u1"))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE rooms SET last_message_id = NULL").
		WithArgs("r1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM message_reads").
		WithArgs("r1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM messages").
		WithArgs("r1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM room_members").
		WithArgs("r1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM rooms").
		WithArgs("r1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = s.Delete(context.Background(), "r1", "u1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSummaryWithoutLastMessage(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewRoomStore(db)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT r.id, r.name, r.type, r.updated_at").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "type", "updated_at",
			"m_id", "m_content", "m_type", "m_sender", "m_created_at",
		}).AddRow("r1", "general", RoomTypeGroup, now, "", "", "", "", now))

	sum, err := s.Summary(context.Background(), "r1")
	require.NoError(t, err)
	assert.Nil(t, sum.LastMessage, "no last message yet")
	assert.Equal(t, "general", sum.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}
