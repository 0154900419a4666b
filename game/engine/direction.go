package engine

import (
	"fmt"
	"strings"
)

// Direction is a compass side of a tile. The numeric order is significant:
// turntables scan candidate exits in this order.
type Direction int

const (
	North Direction = iota
	East
	South
	West
)

// Directions lists every direction in enumeration order.
var Directions = [4]Direction{North, East, South, West}

var directionNames = [4]string{"north", "east", "south", "west"}

// Valid reports whether d is one of the four compass directions.
func (d Direction) Valid() bool {
	return d >= North && d <= West
}

func (d Direction) String() string {
	if !d.Valid() {
		return fmt.Sprintf("direction(%d)", int(d))
	}
	return directionNames[d]
}

// Opposite returns the direction facing d (north/south, east/west).
func (d Direction) Opposite() Direction {
	return (d + 2) % 4
}

// Angle is the rendering angle of a turntable pointing at d.
func (d Direction) Angle() float64 {
	return float64(d) * 90
}

// MarshalText encodes the direction as its lowercase name.
func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid direction %d", int(d))
	}
	return []byte(directionNames[d]), nil
}

// UnmarshalText accepts the lowercase name or the single-letter form.
func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDirection parses "north", "n", "up" and the like.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "north", "n", "up":
		return North, nil
	case "east", "e", "right":
		return East, nil
	case "south", "s", "down":
		return South, nil
	case "west", "w", "left":
		return West, nil
	}
	return North, fmt.Errorf("unknown direction %q", s)
}

// Position is a grid coordinate.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Step moves one tile in direction d. North decreases Y.
func (p Position) Step(d Direction) Position {
	switch d {
	case North:
		return Position{X: p.X, Y: p.Y - 1}
	case East:
		return Position{X: p.X + 1, Y: p.Y}
	case South:
		return Position{X: p.X, Y: p.Y + 1}
	case West:
		return Position{X: p.X - 1, Y: p.Y}
	}
	return p
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}
