package engine

import "math"

// Point is a 2D coordinate in tile-local or world units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CarPose is where a car is drawn: world coordinates plus a heading in
// degrees, 0 pointing east and 90 pointing south.
type CarPose struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
}

// tileCenter is the control point for every arc.
var tileCenter = Point{X: TileSize / 2, Y: TileSize / 2}

// anchor returns the midpoint of the tile edge on side d.
func anchor(d Direction) Point {
	switch d {
	case North:
		return Point{X: TileSize / 2, Y: 0}
	case East:
		return Point{X: TileSize, Y: TileSize / 2}
	case South:
		return Point{X: TileSize / 2, Y: TileSize}
	case West:
		return Point{X: 0, Y: TileSize / 2}
	}
	return tileCenter
}

// Pose places a car travelling from entry to exit on a tile of the given
// kind. Coordinates are tile-local. Progress outside [0,1] is clamped.
func Pose(kind TrackKind, entry, exit Direction, progress float64) (x, y, rotation float64) {
	if kind == NoTrack {
		return tileCenter.X, tileCenter.Y, 0
	}
	t := clamp01(progress)
	p0, p2 := anchor(entry), anchor(exit)

	if segmentShape(kind, entry, exit) == ShapeLine {
		x = p0.X + (p2.X-p0.X)*t
		y = p0.Y + (p2.Y-p0.Y)*t
		return x, y, degrees(p2.Y-p0.Y, p2.X-p0.X)
	}

	c := tileCenter
	u := 1 - t
	x = u*u*p0.X + 2*u*t*c.X + t*t*p2.X
	y = u*u*p0.Y + 2*u*t*c.Y + t*t*p2.Y
	dx := 2*u*(c.X-p0.X) + 2*t*(p2.X-c.X)
	dy := 2*u*(c.Y-p0.Y) + 2*t*(p2.Y-c.Y)
	return x, y, degrees(dy, dx)
}

// segmentShape looks the pair up in the geometry table, falling back to the
// relation between the two sides for pairs the table does not list.
func segmentShape(kind TrackKind, entry, exit Direction) SegmentShape {
	for _, seg := range pathSegments[kind] {
		if seg.Joins(entry, exit) {
			return seg.Shape
		}
	}
	if exit == entry.Opposite() {
		return ShapeLine
	}
	return ShapeArc
}

// PoseFor computes the world pose of a car on the given grid.
func PoseFor(g *Grid, car Car) CarPose {
	kind := g.TrackAt(car.X, car.Y, car.Level)
	x, y, rot := Pose(kind, car.EntryFrom, car.Direction, car.Progress)
	return CarPose{
		X:        float64(car.X)*TileSize + x,
		Y:        float64(car.Y)*TileSize + y,
		Rotation: rot,
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func degrees(dy, dx float64) float64 {
	return math.Atan2(dy, dx) * 180 / math.Pi
}
