// Package game implements the snake grid simulation.
package game

import (
	"encoding/json"
	"fmt"
	"math/rand"
)

// Direction is the heading of a snake.
type Direction int

const (
	North Direction = iota
	East
	South
	West
)

var directionNames = [...]string{
	North: "North",
	East:  "East",
	South: "South",
	West:  "West",
}

func (d Direction) String() string {
	if d < North || d > West {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return directionNames[d]
}

// Right returns the heading a quarter turn clockwise.
func (d Direction) Right() Direction {
	return (d + 1) % 4
}

// Left returns the heading a quarter turn anticlockwise.
func (d Direction) Left() Direction {
	return (d + 3) % 4
}

// RandomDirection picks one of the four headings.
func RandomDirection(rng *rand.Rand) Direction {
	return Direction(rng.Intn(4))
}

func (d Direction) MarshalJSON() ([]byte, error) {
	if d < North || d > West {
		return nil, fmt.Errorf("invalid direction %d", int(d))
	}
	return json.Marshal(directionNames[d])
}

func (d *Direction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for i, name := range directionNames {
		if name == s {
			*d = Direction(i)
			return nil
		}
	}
	return fmt.Errorf("unknown direction %q", s)
}

// Command is a player's instruction for the next tick.
type Command int

const (
	Forward Command = iota
	Left
	Right
)

func (c Command) String() string {
	switch c {
	case Forward:
		return "Forward"
	case Left:
		return "Left"
	case Right:
		return "Right"
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// ParseCommand decodes one protocol token. Anything other than the three
// literal tokens is an error.
func ParseCommand(s string) (Command, error) {
	switch s {
	case "Forward":
		return Forward, nil
	case "Left":
		return Left, nil
	case "Right":
		return Right, nil
	}
	return 0, fmt.Errorf("couldn't parse line: %q", s)
}
