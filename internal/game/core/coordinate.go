package core

import "fmt"

// Coordinate is a position on the game grid.
type Coordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// NewCoordinate creates a coordinate from x,y values.
func NewCoordinate(x, y int) Coordinate {
	return Coordinate{X: x, Y: y}
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// IsValid reports whether the coordinate lies within a width x height grid.
func (c Coordinate) IsValid(width, height int) bool {
	return c.X >= 0 && c.X < width && c.Y >= 0 && c.Y < height
}

// DistanceTo returns the Manhattan distance to another coordinate.
func (c Coordinate) DistanceTo(other Coordinate) int {
	return abs(c.X-other.X) + abs(c.Y-other.Y)
}

// IsAdjacentTo reports whether the other coordinate is orthogonally adjacent.
func (c Coordinate) IsAdjacentTo(other Coordinate) bool {
	return c.DistanceTo(other) == 1
}

// Add returns the coordinate shifted by a direction.
func (c Coordinate) Add(d Direction) Coordinate {
	return Coordinate{X: c.X + d.DX, Y: c.Y + d.DY}
}

// Direction is a cardinal step on the grid.
type Direction struct {
	DX int
	DY int
}

// Cardinal directions in fixed order: north, east, south, west. Scout
// wandering indexes into this slice, so the order is part of the
// deterministic-movement contract.
var Cardinals = [4]Direction{
	{DX: 0, DY: -1},
	{DX: 1, DY: 0},
	{DX: 0, DY: 1},
	{DX: -1, DY: 0},
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
