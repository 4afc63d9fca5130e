package game

import (
	"encoding/json"
	"fmt"
)

// TileKind tags the content of a tile.
type TileKind int

const (
	Blank TileKind = iota
	Wall
	Doodah
	SnakeBody
	SnakeHead
)

func (k TileKind) String() string {
	switch k {
	case Blank:
		return "Blank"
	case Wall:
		return "Wall"
	case Doodah:
		return "Doodah"
	case SnakeBody:
		return "SnakeBody"
	case SnakeHead:
		return "SnakeHead"
	}
	return fmt.Sprintf("TileKind(%d)", int(k))
}

// Tile is the exclusive content of one cell. ID is set for snake tiles,
// Index only for SnakeBody (0 is the tip of the tail) and Dir only for
// SnakeHead.
type Tile struct {
	Kind  TileKind
	ID    int
	Index int
	Dir   Direction
}

func BlankTile() Tile  { return Tile{Kind: Blank} }
func WallTile() Tile   { return Tile{Kind: Wall} }
func DoodahTile() Tile { return Tile{Kind: Doodah} }

func BodyTile(id, index int) Tile {
	return Tile{Kind: SnakeBody, ID: id, Index: index}
}

func HeadTile(id int, dir Direction) Tile {
	return Tile{Kind: SnakeHead, ID: id, Dir: dir}
}

// IsSnake reports whether the tile belongs to a snake.
func (t Tile) IsSnake() bool {
	switch t.Kind {
	case SnakeBody, SnakeHead:
		return true
	case Blank, Wall, Doodah:
		return false
	}
	panic(fmt.Sprintf("unhandled tile kind %v", t.Kind))
}

type wireTile struct {
	Type  string     `json:"type"`
	ID    *int       `json:"id,omitempty"`
	Index *int       `json:"index,omitempty"`
	Dir   *Direction `json:"dir,omitempty"`
}

func (t Tile) MarshalJSON() ([]byte, error) {
	w := wireTile{Type: t.Kind.String()}
	switch t.Kind {
	case SnakeBody:
		id, index := t.ID, t.Index
		w.ID, w.Index = &id, &index
	case SnakeHead:
		id, dir := t.ID, t.Dir
		w.ID, w.Dir = &id, &dir
	case Doodah, Wall, Blank:
	default:
		return nil, fmt.Errorf("cannot encode tile kind %d", int(t.Kind))
	}
	return json.Marshal(w)
}

func (t *Tile) UnmarshalJSON(data []byte) error {
	var w wireTile
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Type {
	case "SnakeBody":
		if w.ID == nil || w.Index == nil {
			return fmt.Errorf("SnakeBody tile missing id or index")
		}
		*t = BodyTile(*w.ID, *w.Index)
	case "SnakeHead":
		if w.ID == nil || w.Dir == nil {
			return fmt.Errorf("SnakeHead tile missing id or dir")
		}
		*t = HeadTile(*w.ID, *w.Dir)
	case "Doodah":
		*t = DoodahTile()
	case "Wall":
		*t = WallTile()
	case "Blank":
		*t = BlankTile()
	default:
		return fmt.Errorf("unknown tile type %q", w.Type)
	}
	return nil
}
