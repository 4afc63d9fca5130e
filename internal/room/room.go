package room

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/sasha-s/go-deadlock"

	"github.com/sakshamg567/snakearena/internal/game"
	"github.com/sakshamg567/snakearena/internal/results"
	"github.com/sakshamg567/snakearena/logger"
	"github.com/sakshamg567/snakearena/pkg/utils"
)

// Phase is the lifecycle state of a room.
type Phase int

const (
	Waiting Phase = iota
	Playing
	Finished
)

func (p Phase) String() string {
	switch p {
	case Waiting:
		return "Waiting"
	case Playing:
		return "Playing"
	case Finished:
		return "Finished"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for _, c := range []Phase{Waiting, Playing, Finished} {
		if c.String() == s {
			*p = c
			return nil
		}
	}
	return fmt.Errorf("unknown room state %q", s)
}

// Template is the static description a room is created from. Tiles may only
// hold Wall and Blank.
type Template struct {
	Name        string
	Description string
	Width       int
	Height      int
	Tiles       []game.Tile

	// MaxTicks ends the game with the current scores once that many ticks
	// have been played. Zero means no limit.
	MaxTicks int
}

// Validate checks that a game can be built from the template.
func (t Template) Validate() error {
	_, err := game.NewMap(t.Width, t.Height, t.Tiles, nil, rand.New(rand.NewSource(1)))
	return err
}

// TemplateFromLayout converts a parsed text layout.
func TemplateFromLayout(l *utils.Layout) Template {
	tiles := make([]game.Tile, len(l.Walls))
	for i, wall := range l.Walls {
		if wall {
			tiles[i] = game.WallTile()
		} else {
			tiles[i] = game.BlankTile()
		}
	}
	return Template{
		Name:        l.Name,
		Description: l.Description,
		Width:       l.Width,
		Height:      l.Height,
		Tiles:       tiles,
		MaxTicks:    l.MaxTicks,
	}
}

// Assignment maps a connection to its snake while a game runs.
type Assignment struct {
	Name string
	ID   game.SnakeID
}

// FinalScore is a frozen result of a finished game.
type FinalScore struct {
	Addr  string `json:"addr"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// sharedMap is the grid of a running game. Whenever a Room is also
// involved, the Room is locked first.
type sharedMap struct {
	mu deadlock.Mutex
	m  *game.Map
}

// match is the state a Playing room owns.
type match struct {
	id          string
	grid        *sharedMap
	roster      map[string]Assignment
	cancel      context.CancelFunc
	tickTimeout time.Duration
	maxTicks    int
}

// Room is an arena snakes play in.
//
// Lock order: Room, then its map, then the WaitingList.
type Room struct {
	Template

	// TickTimeout bounds how long a player may take to answer each tick.
	// Zero waits forever, so one silent client stalls the room.
	TickTimeout time.Duration

	mu       deadlock.Mutex
	phase    Phase
	waiting  map[string]*Waiter
	match    *match
	final    []FinalScore
	lastRun  string
	history  []json.RawMessage
	rng      *rand.Rand
	recorder results.Recorder
}

func NewRoom(t Template, tickTimeout time.Duration) *Room {
	return &Room{
		Template:    t,
		TickTimeout: tickTimeout,
		waiting:     make(map[string]*Waiter),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Phase returns the current lifecycle state.
func (r *Room) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Unsubscribe moves a connection from the room's roster back to the list.
func (r *Room) Unsubscribe(addr string, l *WaitingList) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.waiting[addr]
	if !ok {
		return ErrNotInRoom
	}
	delete(r.waiting, addr)
	l.insert(w)
	return nil
}

// Start assigns snake ids, builds the map and launches the tick loop. It
// only works on a Waiting room with at least one player.
func (r *Room) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != Waiting {
		return ErrRoomNotWaiting
	}
	if len(r.waiting) == 0 {
		return ErrRoomEmpty
	}

	addrs := make([]string, 0, len(r.waiting))
	for addr := range r.waiting {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	ids := make([]game.SnakeID, len(addrs))
	for i := range addrs {
		ids[i] = i
	}

	m, err := game.NewMap(r.Width, r.Height, r.Tiles, ids, r.rng)
	if err != nil {
		return fmt.Errorf("build map for %q: %w", r.Name, err)
	}

	roster := make(map[string]Assignment, len(addrs))
	sessions := make([]*Session, 0, len(addrs))
	for i, addr := range addrs {
		w := r.waiting[addr]
		roster[addr] = Assignment{Name: w.Name, ID: ids[i]}
		sessions = append(sessions, newSession(ids[i], w))
	}

	ctx, cancel := context.WithCancel(ctx)
	g := &match{
		id:          utils.NewRunID(),
		grid:        &sharedMap{m: m},
		roster:      roster,
		cancel:      cancel,
		tickTimeout: r.TickTimeout,
		maxTicks:    r.MaxTicks,
	}

	r.waiting = make(map[string]*Waiter)
	r.match = g
	r.phase = Playing
	r.final = nil
	r.lastRun = g.id
	r.history = nil

	logger.Info("Room %q: game %s started with %d players", r.Name, utils.ShortID(g.id), len(sessions))
	go r.run(ctx, g, sessions)
	return nil
}

// Reset stops a running game, drops the roster and returns to Waiting.
func (r *Room) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, w := range r.waiting {
		w.close()
	}
	r.waiting = make(map[string]*Waiter)

	if r.match != nil {
		logger.Info("Room %q: resetting game %s", r.Name, utils.ShortID(r.match.id))
		r.match.cancel()
		r.match = nil
	}
	r.phase = Waiting
	r.final = nil
}

// PlayerInfo describes a player in a running game.
type PlayerInfo struct {
	Addr  string `json:"addr"`
	Name  string `json:"name"`
	ID    int    `json:"id"`
	Score int    `json:"score"`
	Alive bool   `json:"alive"`
}

// Snapshot is the read-only view of a room for its current state: Waiting
// fills Waiting, Playing fills Players, Finished fills Scores.
type Snapshot struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	State       Phase        `json:"state"`
	RunID       string       `json:"runId,omitempty"`
	Ticks       int          `json:"ticks"`
	Waiting     []WaiterInfo `json:"waiting,omitempty"`
	Players     []PlayerInfo `json:"players,omitempty"`
	Scores      []FinalScore `json:"scores,omitempty"`
}

// Snapshot returns the room's current state.
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		Name:        r.Name,
		Description: r.Description,
		Width:       r.Width,
		Height:      r.Height,
		State:       r.phase,
		RunID:       r.lastRun,
		Ticks:       len(r.history),
	}

	switch r.phase {
	case Waiting:
		s.RunID = ""
		s.Waiting = make([]WaiterInfo, 0, len(r.waiting))
		for _, w := range r.waiting {
			s.Waiting = append(s.Waiting, w.info())
		}
		sort.Slice(s.Waiting, func(i, j int) bool { return s.Waiting[i].Addr < s.Waiting[j].Addr })
	case Playing:
		g := r.match
		g.grid.mu.Lock()
		scores := g.grid.m.Scores()
		for addr, a := range g.roster {
			s.Players = append(s.Players, PlayerInfo{
				Addr:  addr,
				Name:  a.Name,
				ID:    a.ID,
				Score: scores[a.ID],
				Alive: g.grid.m.Alive(a.ID),
			})
		}
		g.grid.mu.Unlock()
		sort.Slice(s.Players, func(i, j int) bool { return s.Players[i].ID < s.Players[j].ID })
	case Finished:
		s.Scores = append([]FinalScore(nil), r.final...)
	}
	return s
}

// Members is the roster size for the current state.
func (r *Room) Members() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.phase {
	case Waiting:
		return len(r.waiting)
	case Playing:
		return len(r.match.roster)
	case Finished:
		return len(r.final)
	}
	return 0
}

// History returns every map broadcast in the current or last game, oldest
// first.
func (r *Room) History() []json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]json.RawMessage, len(r.history))
	copy(out, r.history)
	return out
}
