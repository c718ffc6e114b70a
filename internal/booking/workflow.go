// Package booking drives a single room booking attempt from browsing the
// available rooms through to a confirmed (or aborted) booking.
package booking

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"

	"github.com/npezzotti/go-roombook/internal/client"
	"github.com/npezzotti/go-roombook/internal/types"
	"go.uber.org/zap"
)

type State int

const (
	Browsing State = iota
	RoomSelected
	Validating
	Updating
	MarkingOccupied
	Confirmed
	Aborted
)

func (s State) String() string {
	switch s {
	case Browsing:
		return "browsing"
	case RoomSelected:
		return "room_selected"
	case Validating:
		return "validating"
	case Updating:
		return "updating"
	case MarkingOccupied:
		return "marking_occupied"
	case Confirmed:
		return "confirmed"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) Terminal() bool {
	return s == Confirmed || s == Aborted
}

// Mode selects how the details update and the occupancy change reach the
// server.
type Mode int

const (
	// ModeAtomic books the room with one transactional call.
	ModeAtomic Mode = iota
	// ModeTwoStep updates the details and then marks the room occupied.
	// A failure in the second step leaves the update in place.
	ModeTwoStep
)

func (m Mode) String() string {
	if m == ModeTwoStep {
		return "two-step"
	}
	return "atomic"
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "atomic":
		return ModeAtomic, nil
	case "two-step":
		return ModeTwoStep, nil
	default:
		return ModeAtomic, fmt.Errorf("unknown booking mode %q", s)
	}
}

var (
	ErrRoomVanished      = errors.New("room no longer exists")
	ErrAlreadyOccupied   = errors.New("room is already occupied")
	ErrUpdateRejected    = errors.New("failed to update room details")
	ErrOccupyRejected    = errors.New("failed to mark room as occupied")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrNoRoomSelected    = errors.New("no room selected")
	ErrCancelled         = errors.New("booking cancelled")
)

// Message returns the text shown to a user for a workflow error.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRoomVanished):
		return "Room no longer exists"
	case errors.Is(err, ErrAlreadyOccupied):
		return "Room is already occupied"
	case errors.Is(err, ErrUpdateRejected):
		return "Failed to update room details"
	case errors.Is(err, ErrOccupyRejected):
		return "Failed to mark room as occupied"
	case errors.Is(err, ErrNoRoomSelected):
		return "Please select or enter a room number"
	case errors.Is(err, ErrCancelled):
		return "Booking cancelled"
	default:
		return "Booking failed"
	}
}

// RoomAPI is the subset of the room service the workflow talks to. Both
// *client.Client and *OfflineStore implement it.
type RoomAPI interface {
	ListRooms(ctx context.Context, available *int) ([]types.Room, error)
	UpdateRoom(ctx context.Context, roomNumber string, details types.UpdateRoomRequest) error
	MarkOccupied(ctx context.Context, roomNumber string) error
	MarkAvailable(ctx context.Context, roomNumber string) error
	Book(ctx context.Context, roomNumber string, details types.UpdateRoomRequest) error
}

// Details are the room edits applied when a booking is confirmed.
type Details struct {
	Capacity int
	Type     string
	Doctors  []string
}

func (d Details) request() types.UpdateRoomRequest {
	capacity, roomType := d.Capacity, d.Type
	doctors := d.Doctors
	if doctors == nil {
		doctors = []string{}
	}
	return types.UpdateRoomRequest{
		Capacity: &capacity,
		Type:     &roomType,
		Doctors:  doctors,
	}
}

// Observer is called after every state change. It runs outside the
// workflow's lock and may read the workflow's state.
type Observer func(from, to State)

type Option func(*Workflow)

func WithMode(m Mode) Option {
	return func(w *Workflow) { w.mode = m }
}

func WithObserver(o Observer) Option {
	return func(w *Workflow) { w.observer = o }
}

func WithLogger(l *zap.Logger) Option {
	return func(w *Workflow) { w.log = l }
}

type Workflow struct {
	api      RoomAPI
	mode     Mode
	observer Observer
	log      *zap.Logger

	mu    sync.Mutex
	state State
	room  string
	err   error

	// attempt changes whenever the selection changes, so a Confirm that
	// outlives its selection cannot write.
	attempt uint64
}

func New(api RoomAPI, opts ...Option) *Workflow {
	w := &Workflow{
		api:   api,
		mode:  ModeAtomic,
		log:   zap.NewNop(),
		state: Browsing,
	}
	for _, opt := range opts {
		opt(w)
	}

	return w
}

func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Workflow) SelectedRoom() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.room
}

// Err returns the error that aborted the workflow, if any.
func (w *Workflow) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// AvailableRooms lists the rooms that can currently be selected. A room
// reported with available = 0 is never returned.
func (w *Workflow) AvailableRooms(ctx context.Context) ([]types.Room, error) {
	available := 1
	rooms, err := w.api.ListRooms(ctx, &available)
	if err != nil {
		return nil, fmt.Errorf("list available rooms: %w", err)
	}

	return slices.DeleteFunc(rooms, func(r types.Room) bool {
		return !r.IsAvailable()
	}), nil
}

// Select picks a room to book. An empty room number leaves the workflow in
// Browsing.
func (w *Workflow) Select(roomNumber string) error {
	if roomNumber == "" {
		return ErrNoRoomSelected
	}

	w.mu.Lock()
	if w.state != Browsing {
		cur := w.state
		w.mu.Unlock()
		return fmt.Errorf("%w: select from %s", ErrInvalidTransition, cur)
	}
	w.room = roomNumber
	w.state = RoomSelected
	w.attempt++
	w.mu.Unlock()

	w.notify(Browsing, RoomSelected)
	return nil
}

// Cancel discards the selection and returns to Browsing. Only a workflow
// that has not started writing can be cancelled.
func (w *Workflow) Cancel() error {
	w.mu.Lock()
	from := w.state
	if from != RoomSelected && from != Validating {
		w.mu.Unlock()
		return fmt.Errorf("%w: cancel from %s", ErrInvalidTransition, from)
	}
	w.room = ""
	w.state = Browsing
	w.attempt++
	w.mu.Unlock()

	w.notify(from, Browsing)
	return nil
}

// Reset returns a confirmed or aborted workflow to Browsing.
func (w *Workflow) Reset() error {
	w.mu.Lock()
	from := w.state
	if !from.Terminal() {
		w.mu.Unlock()
		return fmt.Errorf("%w: reset from %s", ErrInvalidTransition, from)
	}
	w.room = ""
	w.err = nil
	w.state = Browsing
	w.attempt++
	w.mu.Unlock()

	w.notify(from, Browsing)
	return nil
}

// Confirm re-validates the selected room against the server and books it
// with the given details.
func (w *Workflow) Confirm(ctx context.Context, details Details) error {
	w.mu.Lock()
	if w.state != RoomSelected {
		cur := w.state
		w.mu.Unlock()
		if cur == Browsing {
			return ErrNoRoomSelected
		}
		return fmt.Errorf("%w: confirm from %s", ErrInvalidTransition, cur)
	}
	roomNumber := w.room
	attempt := w.attempt
	w.state = Validating
	w.mu.Unlock()
	w.notify(RoomSelected, Validating)

	log := w.log.With(zap.String("room_number", roomNumber), zap.Stringer("mode", w.mode))

	rooms, err := w.api.ListRooms(ctx, nil)
	if err != nil {
		return w.abort(log, attempt, Validating, fmt.Errorf("re-validate room %s: %w", roomNumber, err))
	}

	idx := slices.IndexFunc(rooms, func(r types.Room) bool {
		return r.RoomNumber == roomNumber
	})
	switch {
	case idx < 0:
		return w.abort(log, attempt, Validating, fmt.Errorf("%w: %s", ErrRoomVanished, roomNumber))
	case !rooms[idx].IsAvailable():
		return w.abort(log, attempt, Validating, fmt.Errorf("%w: %s", ErrAlreadyOccupied, roomNumber))
	}

	if !w.move(attempt, Validating, Updating) {
		return ErrCancelled
	}

	req := details.request()
	if w.mode == ModeAtomic {
		if err := w.api.Book(ctx, roomNumber, req); err != nil {
			if client.HasStatus(err, http.StatusConflict) {
				return w.abort(log, attempt, Updating, fmt.Errorf("%w: %w", ErrAlreadyOccupied, err))
			}
			return w.abort(log, attempt, Updating, fmt.Errorf("%w: %w", ErrOccupyRejected, err))
		}
		w.move(attempt, Updating, MarkingOccupied)
	} else {
		if err := w.api.UpdateRoom(ctx, roomNumber, req); err != nil {
			return w.abort(log, attempt, Updating, fmt.Errorf("%w: %w", ErrUpdateRejected, err))
		}
		w.move(attempt, Updating, MarkingOccupied)
		if err := w.api.MarkOccupied(ctx, roomNumber); err != nil {
			return w.abort(log, attempt, MarkingOccupied, fmt.Errorf("%w: %w", ErrOccupyRejected, err))
		}
	}

	w.move(attempt, MarkingOccupied, Confirmed)
	log.Info("booking confirmed")
	return nil
}

// move switches from one state to another if the workflow is still in the
// expected state of the same attempt.
func (w *Workflow) move(attempt uint64, from, to State) bool {
	w.mu.Lock()
	if w.state != from || w.attempt != attempt {
		w.mu.Unlock()
		return false
	}
	w.state = to
	w.mu.Unlock()

	w.notify(from, to)
	return true
}

func (w *Workflow) abort(log *zap.Logger, attempt uint64, from State, err error) error {
	w.mu.Lock()
	if w.state != from || w.attempt != attempt {
		w.mu.Unlock()
		return ErrCancelled
	}
	w.state = Aborted
	w.err = err
	w.mu.Unlock()

	log.Warn("booking aborted", zap.Stringer("from", from), zap.Error(err))
	w.notify(from, Aborted)
	return err
}

func (w *Workflow) notify(from, to State) {
	if w.observer != nil {
		w.observer(from, to)
	}
}
