package database

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var roomColumns = []string{"room_number", "capacity", "type", "doctor", "available"}

func newMockRepository(t *testing.T) (*PgRoomRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewPgRoomRepositoryFromDB(db), mock
}

func TestListRooms(t *testing.T) {
	t.Run("returns all rooms", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		rows := sqlmock.NewRows(roomColumns).
			AddRow("101", 1, "General", `["Dr. Adams"]`, 1).
			AddRow("102", 2, "ICU", `not json`, 0)
		mock.ExpectQuery(regexp.QuoteMeta(selectRoomColumns + " ORDER BY room_number")).
			WillReturnRows(rows)

		rooms, err := repo.ListRooms(context.Background(), RoomFilter{})
		assert.NoError(t, err)
		assert.Len(t, rooms, 2)
		assert.Equal(t, "101", rooms[0].RoomNumber)
		assert.Equal(t, []string{"Dr. Adams"}, rooms[0].Doctors())
		assert.Equal(t, RoomOccupied, rooms[1].Available)
		assert.Equal(t, []string{}, rooms[1].Doctors())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("filters by availability", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		available := RoomAvailable
		mock.ExpectQuery(regexp.QuoteMeta(selectRoomColumns + " WHERE available = $1 ORDER BY room_number")).
			WithArgs(RoomAvailable).
			WillReturnRows(sqlmock.NewRows(roomColumns).AddRow("101", 1, "General", `[]`, 1))

		rooms, err := repo.ListRooms(context.Background(), RoomFilter{Available: &available})
		assert.NoError(t, err)
		assert.Len(t, rooms, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty table returns empty slice", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectQuery(regexp.QuoteMeta(selectRoomColumns)).
			WillReturnRows(sqlmock.NewRows(roomColumns))

		rooms, err := repo.ListRooms(context.Background(), RoomFilter{})
		assert.NoError(t, err)
		assert.NotNil(t, rooms)
		assert.Empty(t, rooms)
	})

	t.Run("store failure", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectQuery(regexp.QuoteMeta(selectRoomColumns)).
			WillReturnError(errors.New("connection refused"))

		_, err := repo.ListRooms(context.Background(), RoomFilter{})
		assert.ErrorContains(t, err, "connection refused")
	})
}

func TestGetRoom(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectQuery(regexp.QuoteMeta(selectRoomColumns + " WHERE room_number = $1 LIMIT 1")).
			WithArgs("101").
			WillReturnRows(sqlmock.NewRows(roomColumns).AddRow("101", 2, "ICU", `["Dr. X"]`, 1))

		room, err := repo.GetRoom(context.Background(), "101")
		assert.NoError(t, err)
		assert.Equal(t, Room{RoomNumber: "101", Capacity: 2, Type: "ICU", Doctor: `["Dr. X"]`, Available: 1}, room)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectQuery(regexp.QuoteMeta(selectRoomColumns)).
			WithArgs("999").
			WillReturnRows(sqlmock.NewRows(roomColumns))

		_, err := repo.GetRoom(context.Background(), "999")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUpdateRoomDetails(t *testing.T) {
	const query = "UPDATE rooms SET capacity = $2, type = $3, doctor = $4 WHERE room_number = $1"

	t.Run("stores only the first doctor", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectExec(regexp.QuoteMeta(query)).
			WithArgs("101", 2, "ICU", `["Dr. A"]`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.UpdateRoomDetails(context.Background(), UpdateRoomParams{
			RoomNumber: "101",
			Capacity:   2,
			Type:       "ICU",
			Doctors:    []string{"Dr. A", "Dr. B"},
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectExec(regexp.QuoteMeta(query)).
			WithArgs("999", 1, "General", `[]`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateRoomDetails(context.Background(), UpdateRoomParams{
			RoomNumber: "999",
			Capacity:   1,
			Type:       "General",
			Doctors:    []string{},
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSetRoomAvailability(t *testing.T) {
	const query = "UPDATE rooms SET available = $2 WHERE room_number = $1"

	t.Run("marking occupied twice succeeds both times", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		for i := 0; i < 2; i++ {
			mock.ExpectExec(regexp.QuoteMeta(query)).
				WithArgs("101", RoomOccupied).
				WillReturnResult(sqlmock.NewResult(0, 1))
		}

		assert.NoError(t, repo.SetRoomAvailability(context.Background(), "101", RoomOccupied))
		assert.NoError(t, repo.SetRoomAvailability(context.Background(), "101", RoomOccupied))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectExec(regexp.QuoteMeta(query)).
			WithArgs("999", RoomAvailable).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.SetRoomAvailability(context.Background(), "999", RoomAvailable)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestBookRoom(t *testing.T) {
	const (
		lockQuery   = "SELECT available FROM rooms WHERE room_number = $1 FOR UPDATE"
		updateQuery = "UPDATE rooms SET capacity = $2, type = $3, doctor = $4, available = 0 WHERE room_number = $1"
	)
	params := UpdateRoomParams{
		RoomNumber: "101",
		Capacity:   2,
		Type:       "ICU",
		Doctors:    []string{"Dr. X", "Dr. Y"},
	}

	t.Run("books an available room", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).
			WithArgs("101").
			WillReturnRows(sqlmock.NewRows([]string{"available"}).AddRow(1))
		mock.ExpectExec(regexp.QuoteMeta(updateQuery)).
			WithArgs("101", 2, "ICU", `["Dr. X"]`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		assert.NoError(t, repo.BookRoom(context.Background(), params))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects an occupied room", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).
			WithArgs("101").
			WillReturnRows(sqlmock.NewRows([]string{"available"}).AddRow(0))
		mock.ExpectRollback()

		err := repo.BookRoom(context.Background(), params)
		assert.ErrorIs(t, err, ErrRoomOccupied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown room", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).
			WithArgs("101").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		err := repo.BookRoom(context.Background(), params)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("update failure rolls back", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).
			WithArgs("101").
			WillReturnRows(sqlmock.NewRows([]string{"available"}).AddRow(1))
		mock.ExpectExec(regexp.QuoteMeta(updateQuery)).
			WillReturnError(errors.New("deadlock detected"))
		mock.ExpectRollback()

		err := repo.BookRoom(context.Background(), params)
		assert.ErrorContains(t, err, "deadlock detected")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetUserByUsername(t *testing.T) {
	const query = "SELECT id, username, password_hash FROM users WHERE username = $1 LIMIT 1"

	t.Run("found", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectQuery(regexp.QuoteMeta(query)).
			WithArgs("admin").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash"}).AddRow(1, "admin", "hash"))

		user, err := repo.GetUserByUsername(context.Background(), "admin")
		assert.NoError(t, err)
		assert.Equal(t, User{Id: 1, Username: "admin", PasswordHash: "hash"}, user)
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectQuery(regexp.QuoteMeta(query)).
			WithArgs("nobody").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash"}))

		_, err := repo.GetUserByUsername(context.Background(), "nobody")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCreateUser(t *testing.T) {
	const query = "INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING id, username, password_hash"
	params := CreateUserParams{Username: "admin", PasswordHash: "hash"}

	t.Run("inserts user", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectQuery(regexp.QuoteMeta(query)).
			WithArgs("admin", "hash").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash"}).AddRow(7, "admin", "hash"))

		user, err := repo.CreateUser(context.Background(), params)
		assert.NoError(t, err)
		assert.Equal(t, 7, user.Id)
	})

	t.Run("duplicate username", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectQuery(regexp.QuoteMeta(query)).
			WithArgs("admin", "hash").
			WillReturnError(&pq.Error{Code: pgUniqueViolation})

		_, err := repo.CreateUser(context.Background(), params)
		assert.ErrorIs(t, err, ErrUserExists)
	})
}
