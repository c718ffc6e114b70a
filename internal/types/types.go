package types

// Room is the wire representation of a room. Available is 1 when the room
// can be booked and 0 when it is occupied.
type Room struct {
	RoomNumber string   `json:"room_number"`
	Capacity   int      `json:"capacity"`
	Type       string   `json:"type"`
	Doctors    []string `json:"doctors"`
	Available  int      `json:"available"`
}

func (r Room) IsAvailable() bool {
	return r.Available == 1
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

// UpdateRoomRequest carries room edits. Pointer fields distinguish a missing
// value from a zero value.
type UpdateRoomRequest struct {
	Capacity *int     `json:"capacity" validate:"required,min=1"`
	Type     *string  `json:"type" validate:"required"`
	Doctors  []string `json:"doctors" validate:"required"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
}
