package game

// Dimensions is the extent of a tile grid.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Position is a cell coordinate.
type Position struct {
	X int
	Y int
}

// Snake tracks where a snake is and where it is going.
type Snake struct {
	Dir  Direction
	Head Position

	// Body excludes the head. Body[0] is the end of the tail and higher
	// indices get closer to Head.
	Body []Position
}

func (s *Snake) clone() *Snake {
	c := *s
	c.Body = append([]Position(nil), s.Body...)
	return &c
}

// Score is the number of doodahs eaten.
func (s *Snake) Score() int {
	return len(s.Body)
}

// NextHead returns where the head lands if the snake moves, wrapping at the
// grid edges.
func (s *Snake) NextHead(d Dimensions) Position {
	x, y := s.Head.X, s.Head.Y
	switch s.Dir {
	case North:
		return Position{x, (y + 1) % d.Height}
	case South:
		return Position{x, (y + d.Height - 1) % d.Height}
	case East:
		return Position{(x + 1) % d.Width, y}
	case West:
		return Position{(x + d.Width - 1) % d.Width, y}
	}
	panic("snake with invalid direction " + s.Dir.String())
}

// step moves one cell forward, dropping the oldest segment.
func (s *Snake) step(d Dimensions) {
	s.grow(d)
	s.Body = s.Body[1:]
}

// grow moves one cell forward keeping every segment.
func (s *Snake) grow(d Dimensions) {
	next := s.NextHead(d)
	s.Body = append(s.Body, s.Head)
	s.Head = next
}

func (s *Snake) selfCollided() bool {
	return s.covers(s.Head)
}

// collidedWith does not test self-comparison.
func (s *Snake) collidedWith(other *Snake) bool {
	return s.Head == other.Head || other.covers(s.Head)
}

func (s *Snake) covers(p Position) bool {
	for _, part := range s.Body {
		if part == p {
			return true
		}
	}
	return false
}
