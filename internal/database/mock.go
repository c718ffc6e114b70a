package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockRoomRepository struct {
	mock.Mock
}

func (m *MockRoomRepository) Ping(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockRoomRepository) ListRooms(ctx context.Context, filter RoomFilter) ([]Room, error) {
	args := m.Called(filter)
	if rooms, ok := args.Get(0).([]Room); ok {
		return rooms, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockRoomRepository) GetRoom(ctx context.Context, roomNumber string) (Room, error) {
	args := m.Called(roomNumber)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockRoomRepository) UpdateRoomDetails(ctx context.Context, params UpdateRoomParams) error {
	args := m.Called(params)
	return args.Error(0)
}
func (m *MockRoomRepository) SetRoomAvailability(ctx context.Context, roomNumber string, available int) error {
	args := m.Called(roomNumber, available)
	return args.Error(0)
}
func (m *MockRoomRepository) BookRoom(ctx context.Context, params UpdateRoomParams) error {
	args := m.Called(params)
	return args.Error(0)
}
func (m *MockRoomRepository) GetUserByUsername(ctx context.Context, username string) (User, error) {
	args := m.Called(username)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRoomRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
