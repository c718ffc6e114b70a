package database

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no room or user matches the lookup.
	ErrNotFound = errors.New("not found")
	// ErrRoomOccupied is returned by BookRoom when the room is not available.
	ErrRoomOccupied = errors.New("room is already occupied")
	// ErrUserExists is returned by CreateUser on a duplicate username.
	ErrUserExists = errors.New("user already exists")
)

type RoomRepository interface {
	Ping(ctx context.Context) error
	ListRooms(ctx context.Context, filter RoomFilter) ([]Room, error)
	GetRoom(ctx context.Context, roomNumber string) (Room, error)
	UpdateRoomDetails(ctx context.Context, params UpdateRoomParams) error
	SetRoomAvailability(ctx context.Context, roomNumber string, available int) error
	BookRoom(ctx context.Context, params UpdateRoomParams) error
	GetUserByUsername(ctx context.Context, username string) (User, error)
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
}
