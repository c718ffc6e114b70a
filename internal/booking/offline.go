package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"slices"
	"sync"

	"github.com/npezzotti/go-roombook/internal/client"
	"github.com/npezzotti/go-roombook/internal/types"
)

// DemoCatalog is the fixed room set served by an OfflineStore.
func DemoCatalog() []types.Room {
	return []types.Room{
		{RoomNumber: "123", Capacity: 2, Type: "ICU", Doctors: []string{"Dr. Adams", "Dr. Baker"}, Available: 1},
		{RoomNumber: "456", Capacity: 3, Type: "General", Doctors: []string{"Dr. Clark"}, Available: 1},
		{RoomNumber: "789", Capacity: 1, Type: "Private", Doctors: []string{"Dr. Davis", "Dr. Evans"}, Available: 1},
	}
}

// OfflineStore serves the demo catalog without a server. Occupancy is
// persisted as a JSON array of room numbers in a local file; detail edits
// live only as long as the store.
type OfflineStore struct {
	mu    sync.Mutex
	path  string
	rooms []types.Room
}

func NewOfflineStore(path string) *OfflineStore {
	return &OfflineStore{
		path:  path,
		rooms: DemoCatalog(),
	}
}

// OccupiedRooms returns the room numbers recorded as occupied.
func (s *OfflineStore) OccupiedRooms() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *OfflineStore) ListRooms(_ context.Context, available *int) ([]types.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	occupied, err := s.load()
	if err != nil {
		return nil, err
	}

	rooms := make([]types.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		r.Doctors = slices.Clone(r.Doctors)
		r.Available = 1
		if slices.Contains(occupied, r.RoomNumber) {
			r.Available = 0
		}
		if available != nil && r.Available != *available {
			continue
		}
		rooms = append(rooms, r)
	}

	return rooms, nil
}

func (s *OfflineStore) UpdateRoom(_ context.Context, roomNumber string, details types.UpdateRoomRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(roomNumber, details)
}

func (s *OfflineStore) MarkOccupied(_ context.Context, roomNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setOccupied(roomNumber, true)
}

func (s *OfflineStore) MarkAvailable(_ context.Context, roomNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setOccupied(roomNumber, false)
}

func (s *OfflineStore) Book(_ context.Context, roomNumber string, details types.UpdateRoomRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.index(roomNumber)
	if idx < 0 {
		return notFound()
	}
	occupied, err := s.load()
	if err != nil {
		return err
	}
	if slices.Contains(occupied, roomNumber) {
		return &client.StatusError{StatusCode: http.StatusConflict, Message: "room is already occupied"}
	}

	prev := s.rooms[idx]
	if err := s.update(roomNumber, details); err != nil {
		return err
	}
	if err := s.setOccupied(roomNumber, true); err != nil {
		s.rooms[idx] = prev
		return err
	}

	return nil
}

func (s *OfflineStore) index(roomNumber string) int {
	return slices.IndexFunc(s.rooms, func(r types.Room) bool {
		return r.RoomNumber == roomNumber
	})
}

func (s *OfflineStore) update(roomNumber string, details types.UpdateRoomRequest) error {
	idx := s.index(roomNumber)
	if idx < 0 {
		return notFound()
	}
	if details.Capacity == nil || *details.Capacity < 1 || details.Type == nil || details.Doctors == nil {
		return &client.StatusError{StatusCode: http.StatusBadRequest, Message: "missing or invalid room details in request body"}
	}

	// only the first doctor is kept, matching the server
	doctors := []string{}
	if len(details.Doctors) > 0 {
		doctors = []string{details.Doctors[0]}
	}

	s.rooms[idx].Capacity = *details.Capacity
	s.rooms[idx].Type = *details.Type
	s.rooms[idx].Doctors = doctors
	return nil
}

func (s *OfflineStore) setOccupied(roomNumber string, occupied bool) error {
	if s.index(roomNumber) < 0 {
		return notFound()
	}

	current, err := s.load()
	if err != nil {
		return err
	}

	has := slices.Contains(current, roomNumber)
	switch {
	case occupied && !has:
		current = append(current, roomNumber)
	case !occupied && has:
		current = slices.DeleteFunc(current, func(n string) bool { return n == roomNumber })
	default:
		return nil
	}

	return s.save(current)
}

func (s *OfflineStore) load() ([]string, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read occupied rooms: %w", err)
	}

	var occupied []string
	if err := json.Unmarshal(b, &occupied); err != nil {
		return nil, fmt.Errorf("decode occupied rooms %s: %w", s.path, err)
	}
	if occupied == nil {
		occupied = []string{}
	}

	return occupied, nil
}

func (s *OfflineStore) save(occupied []string) error {
	b, err := json.Marshal(occupied)
	if err != nil {
		return fmt.Errorf("encode occupied rooms: %w", err)
	}

	if err := os.WriteFile(s.path, b, 0o644); err != nil {
		return fmt.Errorf("write occupied rooms: %w", err)
	}

	return nil
}

func notFound() error {
	return &client.StatusError{StatusCode: http.StatusNotFound, Message: "room not found"}
}
