package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const (
	pgUniqueViolation = "23505"

	selectRoomColumns = "SELECT room_number, capacity, type, doctor, available FROM rooms"
)

func (db *PgRoomRepository) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *PgRoomRepository) ListRooms(ctx context.Context, filter RoomFilter) ([]Room, error) {
	query := selectRoomColumns
	var args []any
	if filter.Available != nil {
		query += " WHERE available = $1"
		args = append(args, *filter.Available)
	}
	query += " ORDER BY room_number"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	rooms := []Room{}
	for rows.Next() {
		var room Room
		if err := rows.Scan(
			&room.RoomNumber,
			&room.Capacity,
			&room.Type,
			&room.Doctor,
			&room.Available,
		); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, room)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}

	return rooms, nil
}

func (db *PgRoomRepository) GetRoom(ctx context.Context, roomNumber string) (Room, error) {
	row := db.conn.QueryRowContext(ctx,
		selectRoomColumns+" WHERE room_number = $1 LIMIT 1",
		roomNumber,
	)

	var room Room
	err := row.Scan(
		&room.RoomNumber,
		&room.Capacity,
		&room.Type,
		&room.Doctor,
		&room.Available,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Room{}, ErrNotFound
	}

	return room, err
}

// UpdateRoomDetails writes capacity, type and the first doctor. The occupancy
// flag and room number are left untouched.
func (db *PgRoomRepository) UpdateRoomDetails(ctx context.Context, params UpdateRoomParams) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE rooms SET capacity = $2, type = $3, doctor = $4 WHERE room_number = $1",
		params.RoomNumber,
		params.Capacity,
		params.Type,
		EncodeDoctors(params.Doctors),
	)
	if err != nil {
		return fmt.Errorf("update room: %w", err)
	}

	return expectAffected(res)
}

func (db *PgRoomRepository) SetRoomAvailability(ctx context.Context, roomNumber string, available int) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE rooms SET available = $2 WHERE room_number = $1",
		roomNumber,
		available,
	)
	if err != nil {
		return fmt.Errorf("set availability: %w", err)
	}

	return expectAffected(res)
}

// BookRoom updates the room details and marks the room occupied in one
// transaction. The row is locked first so concurrent bookings serialize and
// only one of them observes the room as available.
func (db *PgRoomRepository) BookRoom(ctx context.Context, params UpdateRoomParams) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var available int
	err = tx.QueryRowContext(ctx,
		"SELECT available FROM rooms WHERE room_number = $1 FOR UPDATE",
		params.RoomNumber,
	).Scan(&available)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("lock room: %w", err)
	}

	if available != RoomAvailable {
		return ErrRoomOccupied
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE rooms SET capacity = $2, type = $3, doctor = $4, available = 0 WHERE room_number = $1",
		params.RoomNumber,
		params.Capacity,
		params.Type,
		EncodeDoctors(params.Doctors),
	); err != nil {
		return fmt.Errorf("book room: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (db *PgRoomRepository) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, username, password_hash FROM users WHERE username = $1 LIMIT 1",
		username,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.PasswordHash,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}

	return user, err
}

func (db *PgRoomRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING id, username, password_hash",
		params.Username,
		params.PasswordHash,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.PasswordHash,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return User{}, ErrUserExists
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if n == 0 {
		return ErrNotFound
	}

	return nil
}
