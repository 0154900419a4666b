package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TrackKind is the shape of a track tile. The zero value means no track.
type TrackKind int

const (
	NoTrack TrackKind = iota
	StraightV
	StraightH
	CurveNE
	CurveSE
	CurveSW
	CurveNW
	BridgeV
	BridgeH
	TunnelV
	TunnelH
	Turntable
)

var trackKindNames = map[TrackKind]string{
	StraightV: "straight_v",
	StraightH: "straight_h",
	CurveNE:   "curve_ne",
	CurveSE:   "curve_se",
	CurveSW:   "curve_sw",
	CurveNW:   "curve_nw",
	BridgeV:   "bridge_v",
	BridgeH:   "bridge_h",
	TunnelV:   "tunnel_v",
	TunnelH:   "tunnel_h",
	Turntable: "turntable",
}

// TrackKinds lists every placeable track kind.
var TrackKinds = []TrackKind{
	StraightV, StraightH,
	CurveNE, CurveSE, CurveSW, CurveNW,
	BridgeV, BridgeH,
	TunnelV, TunnelH,
	Turntable,
}

func (k TrackKind) String() string {
	if k == NoTrack {
		return "none"
	}
	if name, ok := trackKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("track(%d)", int(k))
}

// IsBridge reports whether the kind belongs on the elevated level.
func (k TrackKind) IsBridge() bool {
	return k == BridgeV || k == BridgeH
}

// ParseTrackKind parses a snake_case kind name.
func ParseTrackKind(s string) (TrackKind, error) {
	for kind, name := range trackKindNames {
		if name == s {
			return kind, nil
		}
	}
	return NoTrack, fmt.Errorf("unknown track kind %q", s)
}

// MarshalJSON encodes NoTrack as null and other kinds by name.
func (k TrackKind) MarshalJSON() ([]byte, error) {
	if k == NoTrack {
		return []byte("null"), nil
	}
	name, ok := trackKindNames[k]
	if !ok {
		return nil, fmt.Errorf("invalid track kind %d", int(k))
	}
	return json.Marshal(name)
}

// UnmarshalJSON accepts null or a kind name.
func (k *TrackKind) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*k = NoTrack
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseTrackKind(name)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// SceneryKind is a decoration occupying a cell. The zero value means none.
type SceneryKind int

const (
	NoScenery SceneryKind = iota
	Tree
	Rocks
	House
	Mountain
	SpaceNeedle
	School
)

var sceneryKindNames = map[SceneryKind]string{
	Tree:        "tree",
	Rocks:       "rocks",
	House:       "house",
	Mountain:    "mountain",
	SpaceNeedle: "space_needle",
	School:      "school",
}

// SceneryKinds lists every placeable scenery kind.
var SceneryKinds = []SceneryKind{Tree, Rocks, House, Mountain, SpaceNeedle, School}

func (s SceneryKind) String() string {
	if s == NoScenery {
		return "none"
	}
	if name, ok := sceneryKindNames[s]; ok {
		return name
	}
	return fmt.Sprintf("scenery(%d)", int(s))
}

// ParseSceneryKind parses a snake_case scenery name.
func ParseSceneryKind(s string) (SceneryKind, error) {
	for kind, name := range sceneryKindNames {
		if name == s {
			return kind, nil
		}
	}
	return NoScenery, fmt.Errorf("unknown scenery kind %q", s)
}

func (s SceneryKind) MarshalJSON() ([]byte, error) {
	if s == NoScenery {
		return []byte("null"), nil
	}
	name, ok := sceneryKindNames[s]
	if !ok {
		return nil, fmt.Errorf("invalid scenery kind %d", int(s))
	}
	return json.Marshal(name)
}

func (s *SceneryKind) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*s = NoScenery
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseSceneryKind(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Connection is one legal way through a tile.
type Connection struct {
	Entry Direction `json:"entry"`
	Exit  Direction `json:"exit"`
}

// SegmentShape selects the interpolation used for a physical path.
type SegmentShape int

const (
	ShapeLine SegmentShape = iota
	ShapeArc
)

// Segment is a physical path through a tile, listed once regardless of
// travel direction.
type Segment struct {
	A, B  Direction
	Shape SegmentShape
}

// Joins reports whether the segment links the two sides, in either order.
func (s Segment) Joins(a, b Direction) bool {
	return (s.A == a && s.B == b) || (s.A == b && s.B == a)
}

var (
	vertical   = []Segment{{A: North, B: South, Shape: ShapeLine}}
	horizontal = []Segment{{A: West, B: East, Shape: ShapeLine}}
)

// pathSegments is the geometry table. Turntables are absent: their path is
// resolved at runtime.
var pathSegments = map[TrackKind][]Segment{
	StraightV: vertical,
	StraightH: horizontal,
	BridgeV:   vertical,
	BridgeH:   horizontal,
	TunnelV:   vertical,
	TunnelH:   horizontal,
	CurveNE:   {{A: North, B: East, Shape: ShapeArc}},
	CurveSE:   {{A: South, B: East, Shape: ShapeArc}},
	CurveSW:   {{A: South, B: West, Shape: ShapeArc}},
	CurveNW:   {{A: North, B: West, Shape: ShapeArc}},
}

// connections is derived from pathSegments, listing each path from both ends.
var connections = func() map[TrackKind][]Connection {
	table := make(map[TrackKind][]Connection, len(pathSegments))
	for kind, segments := range pathSegments {
		conns := make([]Connection, 0, 2*len(segments))
		for _, seg := range segments {
			conns = append(conns,
				Connection{Entry: seg.A, Exit: seg.B},
				Connection{Entry: seg.B, Exit: seg.A},
			)
		}
		table[kind] = conns
	}
	return table
}()

// PathSegments returns the physical paths through a tile of the given kind.
func PathSegments(kind TrackKind) []Segment {
	return pathSegments[kind]
}

// Connections returns every legal (entry, exit) pair for the kind.
func Connections(kind TrackKind) []Connection {
	return connections[kind]
}

// ExitFor returns the exit side for a car entering through entry. It
// reports false for dead sides, for turntables and for NoTrack.
func ExitFor(kind TrackKind, entry Direction) (Direction, bool) {
	for _, conn := range connections[kind] {
		if conn.Entry == entry {
			return conn.Exit, true
		}
	}
	return North, false
}

// InitialDirection is the heading given to a car placed on a tile.
func InitialDirection(kind TrackKind) Direction {
	switch kind {
	case StraightV, BridgeV, TunnelV, CurveSW, CurveSE:
		return South
	case CurveNW:
		return West
	default:
		return East
	}
}
