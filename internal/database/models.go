package database

import (
	"encoding/json"
)

const (
	RoomOccupied  = 0
	RoomAvailable = 1
)

type Room struct {
	RoomNumber string
	Capacity   int
	Type       string
	// Doctor holds the JSON encoded doctor list exactly as stored.
	Doctor    string
	Available int
}

// Doctors decodes the stored doctor list. Malformed values yield an empty list.
func (r Room) Doctors() []string {
	return DecodeDoctors(r.Doctor)
}

type User struct {
	Id           int
	Username     string
	PasswordHash string
}

// RoomFilter restricts ListRooms to one availability partition when set.
type RoomFilter struct {
	Available *int
}

type UpdateRoomParams struct {
	RoomNumber string
	Capacity   int
	Type       string
	Doctors    []string
}

type CreateUserParams struct {
	Username     string
	PasswordHash string
}

func DecodeDoctors(raw string) []string {
	var doctors []string
	if err := json.Unmarshal([]byte(raw), &doctors); err != nil || doctors == nil {
		return []string{}
	}

	return doctors
}

// EncodeDoctors keeps only the first doctor of the list. The rooms table has a
// single doctor column, so additional names are dropped.
func EncodeDoctors(doctors []string) string {
	kept := []string{}
	if len(doctors) > 0 {
		kept = doctors[:1]
	}

	b, _ := json.Marshal(kept)
	return string(b)
}
