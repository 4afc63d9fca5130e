package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

// SnakeID identifies a snake within one game.
type SnakeID = int

// GameOver is returned by Step once no snakes are left. Scores holds the
// body length each snake had when it was last alive.
type GameOver struct {
	Scores map[SnakeID]int
}

func (g *GameOver) Error() string {
	return fmt.Sprintf("game over: %d snakes scored", len(g.Scores))
}

var (
	ErrTemplateSize = errors.New("tile template does not cover the grid")
	ErrTemplateTile = errors.New("tile template may only hold Wall and Blank")
	ErrDimensions   = errors.New("grid dimensions must be positive")
)

// Map is one snapshot of the tile grid.
type Map struct {
	Dims   Dimensions
	Tiles  []Tile
	scores map[SnakeID]int

	// live snakes; never serialised
	snakes map[SnakeID]*Snake
}

// NewMap builds the starting grid from a Wall/Blank template, seeds one
// snake per id on distinct random Blank cells with random headings and
// places a doodah. Ids left over when the template runs out of Blank cells
// get no snake.
func NewMap(width, height int, template []Tile, ids []SnakeID, rng *rand.Rand) (*Map, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrDimensions, width, height)
	}
	if len(template) != width*height {
		return nil, fmt.Errorf("%w: %d tiles for %dx%d", ErrTemplateSize, len(template), width, height)
	}

	m := &Map{
		Dims:   Dimensions{Width: width, Height: height},
		Tiles:  make([]Tile, len(template)),
		scores: make(map[SnakeID]int, len(ids)),
		snakes: make(map[SnakeID]*Snake, len(ids)),
	}

	var free []int
	for i, t := range template {
		switch t.Kind {
		case Blank:
			free = append(free, i)
		case Wall:
		case Doodah, SnakeBody, SnakeHead:
			return nil, fmt.Errorf("%w: found %v at %d", ErrTemplateTile, t.Kind, i)
		default:
			return nil, fmt.Errorf("%w: found %v at %d", ErrTemplateTile, t.Kind, i)
		}
		m.Tiles[i] = t
	}

	rng.Shuffle(len(free), func(i, j int) { free[i], free[j] = free[j], free[i] })
	for i, id := range ids {
		if i >= len(free) {
			break
		}
		m.snakes[id] = &Snake{
			Dir:  RandomDirection(rng),
			Head: m.position(free[i]),
		}
		m.scores[id] = 0
	}

	m.placeSnakes()
	m.placeDoodah(rng)
	return m, nil
}

func (m *Map) index(p Position) int {
	return p.X + p.Y*m.Dims.Width
}

func (m *Map) position(i int) Position {
	return Position{X: i % m.Dims.Width, Y: i / m.Dims.Width}
}

// At returns the tile at a position.
func (m *Map) At(p Position) Tile {
	return m.Tiles[m.index(p)]
}

// Clone returns a deep copy, live-snake table included.
func (m *Map) Clone() *Map {
	c := &Map{
		Dims:   m.Dims,
		Tiles:  append([]Tile(nil), m.Tiles...),
		scores: make(map[SnakeID]int, len(m.scores)),
		snakes: make(map[SnakeID]*Snake, len(m.snakes)),
	}
	for id, s := range m.scores {
		c.scores[id] = s
	}
	for id, s := range m.snakes {
		c.snakes[id] = s.clone()
	}
	return c
}

// Turn applies a command to the heading of a live snake. Unknown ids are
// ignored.
func (m *Map) Turn(id SnakeID, cmd Command) {
	s, ok := m.snakes[id]
	if !ok {
		return
	}
	switch cmd {
	case Forward:
	case Left:
		s.Dir = s.Dir.Left()
	case Right:
		s.Dir = s.Dir.Right()
	}
}

// Remove deletes a live snake. Its score entry is kept.
func (m *Map) Remove(id SnakeID) {
	delete(m.snakes, id)
}

// Alive reports whether the snake is still on the grid.
func (m *Map) Alive(id SnakeID) bool {
	_, ok := m.snakes[id]
	return ok
}

// Living returns the ids of the live snakes in ascending order.
func (m *Map) Living() []SnakeID {
	return sortedIDs(m.snakes)
}

// Snake returns a copy of a live snake.
func (m *Map) Snake(id SnakeID) (Snake, bool) {
	s, ok := m.snakes[id]
	if !ok {
		return Snake{}, false
	}
	return *s.clone(), true
}

// Scores returns a copy of the score table.
func (m *Map) Scores() map[SnakeID]int {
	out := make(map[SnakeID]int, len(m.scores))
	for id, s := range m.scores {
		out[id] = s
	}
	return out
}

// Step advances the grid by one tick without touching the receiver. When no
// snake survives it returns a *GameOver holding the final scores.
func (m *Map) Step(rng *rand.Rand) (*Map, error) {
	next := m.Clone()
	next.cleanup()

	claimed, got := next.moveSnakes()
	if len(next.snakes) == 0 {
		return nil, &GameOver{Scores: next.Scores()}
	}

	next.placeSnakes()
	next.updateScores()

	if got {
		// a surviving snake may already cover the claimed cell
		idx := next.index(claimed)
		if next.Tiles[idx].Kind == Doodah {
			next.Tiles[idx] = BlankTile()
		}
		next.placeDoodah(rng)
	}
	return next, nil
}

func (m *Map) cleanup() {
	for i, t := range m.Tiles {
		if t.IsSnake() {
			m.Tiles[i] = BlankTile()
		}
	}
}

// moveSnakes must run after cleanup. It returns the claimed doodah position,
// assuming only one doodah exists.
func (m *Map) moveSnakes() (Position, bool) {
	var (
		claimed Position
		got     bool
	)

	for _, id := range sortedIDs(m.snakes) {
		s := m.snakes[id]
		target := s.NextHead(m.Dims)
		switch t := m.At(target); t.Kind {
		case Doodah:
			s.grow(m.Dims)
			claimed, got = target, true
		case Blank:
			s.step(m.Dims)
		case Wall:
			delete(m.snakes, id)
			continue
		case SnakeBody, SnakeHead:
			panic("game: moveSnakes called before cleanup")
		default:
			panic(fmt.Sprintf("game: unhandled tile kind %v", t.Kind))
		}
		// growth counts even if the snake dies in the collision pass
		m.scores[id] = s.Score()
	}

	// every candidate is checked against the same post-move positions
	var dead []SnakeID
	for id, s := range m.snakes {
		for oid, other := range m.snakes {
			var hit bool
			if id == oid {
				hit = s.selfCollided()
			} else {
				hit = s.collidedWith(other)
			}
			if hit {
				dead = append(dead, id)
				break
			}
		}
	}
	for _, id := range dead {
		delete(m.snakes, id)
	}
	return claimed, got
}

func (m *Map) placeSnakes() {
	for _, id := range sortedIDs(m.snakes) {
		s := m.snakes[id]
		m.Tiles[m.index(s.Head)] = HeadTile(id, s.Dir)
		for i, part := range s.Body {
			m.Tiles[m.index(part)] = BodyTile(id, i)
		}
	}
}

func (m *Map) updateScores() {
	for id, s := range m.snakes {
		m.scores[id] = s.Score()
	}
}

// placeDoodah drops a doodah on a random Blank tile, if there is one.
func (m *Map) placeDoodah(rng *rand.Rand) {
	var free []int
	for i, t := range m.Tiles {
		if t.Kind == Blank {
			free = append(free, i)
		}
	}
	if len(free) == 0 {
		return
	}
	m.Tiles[free[rng.Intn(len(free))]] = DoodahTile()
}

func sortedIDs(snakes map[SnakeID]*Snake) []SnakeID {
	ids := make([]SnakeID, 0, len(snakes))
	for id := range snakes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

type wireMap struct {
	Width  int             `json:"width"`
	Height int             `json:"height"`
	Tiles  []Tile          `json:"tiles"`
	Scores map[SnakeID]int `json:"scores"`
}

// MarshalJSON encodes the grid without the live-snake table.
func (m *Map) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireMap{
		Width:  m.Dims.Width,
		Height: m.Dims.Height,
		Tiles:  m.Tiles,
		Scores: m.scores,
	})
}

// Board is a decoded MapJSON snapshot, as seen by clients.
type Board struct {
	Width  int            `json:"width"`
	Height int            `json:"height"`
	Tiles  []Tile         `json:"tiles"`
	Scores map[string]int `json:"scores"`
}

// At returns the tile at (x, y).
func (b *Board) At(x, y int) Tile {
	return b.Tiles[x+y*b.Width]
}
