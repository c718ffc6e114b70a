package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-roombook/internal/database"
	"github.com/npezzotti/go-roombook/internal/notify"
	"github.com/npezzotti/go-roombook/internal/stats"
	"github.com/npezzotti/go-roombook/internal/types"
	"github.com/teris-io/shortid"
	"go.uber.org/zap"
)

const (
	errMissingCredentials = "username and password required"
	errInvalidCredentials = "invalid credentials"
	errInvalidRoomDetails = "missing or invalid room details in request body"
	errRoomNotFound       = "room not found"
	errRoomOccupied       = "room is already occupied"
)

func toRoom(r database.Room) types.Room {
	return types.Room{
		RoomNumber: r.RoomNumber,
		Capacity:   r.Capacity,
		Type:       r.Type,
		Doctors:    r.Doctors(),
		Available:  r.Available,
	}
}

func (s *App) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.log.Error("health check", zap.Error(err))
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *App) login(w http.ResponseWriter, r *http.Request) {
	var lr types.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&lr); err != nil {
		errResp := NewBadRequestError("")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if lr.Username == "" || lr.Password == "" {
		errResp := NewBadRequestError(errMissingCredentials)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbUser, err := s.db.GetUserByUsername(r.Context(), lr.Username)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		s.log.Error("get user", zap.Error(err))
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err != nil || !verifyPassword(dbUser.PasswordHash, lr.Password) {
		s.stats.Incr(stats.LoginFailures)
		errResp := NewUnauthorizedError(errInvalidCredentials)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	token, err := s.createToken(Identity{UserId: dbUser.Id, Username: dbUser.Username}, defaultJwtExpiration)
	if err != nil {
		s.log.Error("create token", zap.Error(err))
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, types.LoginResponse{Token: token})
}

func (s *App) listRooms(w http.ResponseWriter, r *http.Request) {
	var filter database.RoomFilter
	switch v := r.URL.Query().Get("available"); v {
	case "":
	case "1", "true":
		available := database.RoomAvailable
		filter.Available = &available
	case "0", "false":
		occupied := database.RoomOccupied
		filter.Available = &occupied
	default:
		errResp := NewBadRequestError(fmt.Sprintf("invalid available filter %q", v))
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbRooms, err := s.db.ListRooms(r.Context(), filter)
	if err != nil {
		s.log.Error("list rooms", zap.Error(err))
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	rooms := make([]types.Room, 0, len(dbRooms))
	for _, room := range dbRooms {
		rooms = append(rooms, toRoom(room))
	}

	s.writeJson(w, http.StatusOK, rooms)
}

func (s *App) getRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.db.GetRoom(r.Context(), r.PathValue("room_number"))
	if err != nil {
		s.writeStoreError(w, "get room", err)
		return
	}

	s.writeJson(w, http.StatusOK, toRoom(room))
}

func (s *App) updateRoom(w http.ResponseWriter, r *http.Request) {
	params, errResp := s.decodeRoomDetails(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.UpdateRoomDetails(r.Context(), params); err != nil {
		s.writeStoreError(w, "update room", err)
		return
	}

	s.stats.Incr(stats.RoomUpdates)
	s.writeJson(w, http.StatusOK, types.MessageResponse{Message: "room updated successfully"})
}

func (s *App) makeOccupied(w http.ResponseWriter, r *http.Request) {
	roomNumber := r.PathValue("room_number")
	if err := s.db.SetRoomAvailability(r.Context(), roomNumber, database.RoomOccupied); err != nil {
		s.writeStoreError(w, "mark room occupied", err)
		return
	}

	s.stats.Incr(stats.RoomsOccupied)
	s.feed.Publish(notify.Event{RoomNumber: roomNumber, Available: database.RoomOccupied})
	s.writeJson(w, http.StatusOK, types.MessageResponse{Message: "room marked as occupied"})
}

func (s *App) makeAvailable(w http.ResponseWriter, r *http.Request) {
	roomNumber := r.PathValue("room_number")
	if err := s.db.SetRoomAvailability(r.Context(), roomNumber, database.RoomAvailable); err != nil {
		s.writeStoreError(w, "mark room available", err)
		return
	}

	s.stats.Incr(stats.RoomsReleased)
	s.feed.Publish(notify.Event{RoomNumber: roomNumber, Available: database.RoomAvailable})
	s.writeJson(w, http.StatusOK, types.MessageResponse{Message: "room marked as available"})
}

func (s *App) bookRoom(w http.ResponseWriter, r *http.Request) {
	params, errResp := s.decodeRoomDetails(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.BookRoom(r.Context(), params); err != nil {
		if errors.Is(err, database.ErrRoomOccupied) {
			s.stats.Incr(stats.BookingConflicts)
			errResp := NewConflictError(errRoomOccupied)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		s.writeStoreError(w, "book room", err)
		return
	}

	s.stats.Incr(stats.RoomUpdates)
	s.stats.Incr(stats.RoomsOccupied)
	s.feed.Publish(notify.Event{RoomNumber: params.RoomNumber, Available: database.RoomOccupied})
	s.writeJson(w, http.StatusOK, types.MessageResponse{Message: "room booked"})
}

func (s *App) serveWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("error upgrading connection", zap.Error(err))
		return
	}

	id, err := shortid.Generate()
	if err != nil {
		id = r.RemoteAddr
	}

	sub := notify.NewSubscriber(id, conn, s.hub, s.log)
	if !s.hub.Register(sub) {
		conn.Close()
		return
	}

	go sub.Write()
	go sub.Read()
}

// decodeRoomDetails reads and validates the capacity/type/doctors body shared
// by the update and book endpoints.
func (s *App) decodeRoomDetails(r *http.Request) (database.UpdateRoomParams, *ApiError) {
	var req types.UpdateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return database.UpdateRoomParams{}, NewBadRequestError(errInvalidRoomDetails)
	}

	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			return database.UpdateRoomParams{}, NewBadRequestError(
				fmt.Sprintf("%s: %s", errInvalidRoomDetails, strings.Join(fields, ", ")))
		}
		return database.UpdateRoomParams{}, NewBadRequestError(errInvalidRoomDetails)
	}

	return database.UpdateRoomParams{
		RoomNumber: r.PathValue("room_number"),
		Capacity:   *req.Capacity,
		Type:       *req.Type,
		Doctors:    req.Doctors,
	}, nil
}

func (s *App) writeStoreError(w http.ResponseWriter, op string, err error) {
	var errResp *ApiError
	if errors.Is(err, database.ErrNotFound) {
		errResp = NewNotFoundError(errRoomNotFound)
	} else {
		s.log.Error(op, zap.Error(err))
		errResp = NewInternalServerError(err)
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}
