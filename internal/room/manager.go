package room

import (
	"context"
	"fmt"
	"time"

	"github.com/sasha-s/go-deadlock"

	"github.com/sakshamg567/snakearena/internal/results"
	"github.com/sakshamg567/snakearena/logger"
)

// RoomManager is the server's shared state: the room catalog, the list of
// connections waiting to be placed, and where finished games are reported.
type RoomManager struct {
	Waiting *WaitingList

	ctx         context.Context
	tickTimeout time.Duration
	recorder    results.Recorder

	deadlock.RWMutex
	rooms []*Room
}

// RoomSummary is one entry of the room listing.
type RoomSummary struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	State       Phase  `json:"state"`
	Members     int    `json:"members"`
}

// NewRoomManager builds one room per template. Games started through the
// manager stop when ctx is cancelled. rec may be nil.
func NewRoomManager(ctx context.Context, templates []Template, tickTimeout time.Duration, rec results.Recorder) (*RoomManager, error) {
	rm := &RoomManager{
		Waiting:     NewWaitingList(),
		ctx:         ctx,
		tickTimeout: tickTimeout,
		recorder:    rec,
	}
	for _, t := range templates {
		if _, err := rm.AddRoom(t); err != nil {
			return nil, err
		}
	}
	return rm, nil
}

// AddRoom validates a template and appends a room for it, returning its id.
func (rm *RoomManager) AddRoom(t Template) (int, error) {
	if err := t.Validate(); err != nil {
		return 0, fmt.Errorf("room %q: %w", t.Name, err)
	}

	r := NewRoom(t, rm.tickTimeout)
	r.recorder = rm.recorder

	rm.Lock()
	rm.rooms = append(rm.rooms, r)
	id := len(rm.rooms) - 1
	rm.Unlock()

	logger.Debug("Room %d: %q (%dx%d) registered", id, t.Name, t.Width, t.Height)
	return id, nil
}

func (rm *RoomManager) GetRoom(id int) (*Room, bool) {
	rm.RLock()
	defer rm.RUnlock()
	if id < 0 || id >= len(rm.rooms) {
		return nil, false
	}
	return rm.rooms[id], true
}

// Len returns the number of rooms.
func (rm *RoomManager) Len() int {
	rm.RLock()
	defer rm.RUnlock()
	return len(rm.rooms)
}

// Summaries lists every room in id order.
func (rm *RoomManager) Summaries() []RoomSummary {
	rm.RLock()
	rooms := append([]*Room(nil), rm.rooms...)
	rm.RUnlock()

	out := make([]RoomSummary, 0, len(rooms))
	for id, r := range rooms {
		out = append(out, RoomSummary{
			ID:          id,
			Name:        r.Name,
			Description: r.Description,
			State:       r.Phase(),
			Members:     r.Members(),
		})
	}
	return out
}

// StartRoom starts the room's game under the manager's context.
func (rm *RoomManager) StartRoom(r *Room) error {
	return r.Start(rm.ctx)
}

// Shutdown resets every room and drops every waiting connection.
func (rm *RoomManager) Shutdown() {
	rm.RLock()
	rooms := append([]*Room(nil), rm.rooms...)
	rm.RUnlock()

	for _, r := range rooms {
		r.Reset()
	}
	rm.Waiting.Clear()
}
