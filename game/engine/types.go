package engine

const (
	// Default grid dimensions and tile geometry
	GridWidth  = 24
	GridHeight = 16
	TileSize   = 48.0

	// CarSpeed is the progress a car makes per tick, so a tile takes
	// 1/CarSpeed ticks to cross.
	CarSpeed = 0.02

	// MaxCars caps the number of live cars.
	MaxCars = 5

	// Validation constants
	MinGridSize  = 3
	MaxGridSize  = 64
	MaxTickBatch = 1000

	progressEpsilon = 1e-9
)

// Level selects the ground or elevated slot of a cell.
type Level int

const (
	Ground Level = 0
	Air    Level = 1
)

func (l Level) String() string {
	if l == Air {
		return "air"
	}
	return "ground"
}

// Cell is one grid square. Ground and air hold independent track; scenery
// never shares a cell with track.
type Cell struct {
	Ground  TrackKind   `json:"ground"`
	Air     TrackKind   `json:"air"`
	Scenery SceneryKind `json:"scenery"`
}

// Empty reports whether the cell holds nothing at all.
func (c Cell) Empty() bool {
	return c.Ground == NoTrack && c.Air == NoTrack && c.Scenery == NoScenery
}

// HasTrack reports whether either level holds track.
func (c Cell) HasTrack() bool {
	return c.Ground != NoTrack || c.Air != NoTrack
}

// CarDesign is the cosmetic identity of a car.
type CarDesign struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// CarDesigns are the five selectable designs, ID 1 through 5.
var CarDesigns = []CarDesign{
	{ID: 1, Name: "red", Color: "#ef4444"},
	{ID: 2, Name: "blue", Color: "#3b82f6"},
	{ID: 3, Name: "green", Color: "#22c55e"},
	{ID: 4, Name: "yellow", Color: "#eab308"},
	{ID: 5, Name: "purple", Color: "#a855f7"},
}

// DesignByID returns the design with the given ID.
func DesignByID(id int) (CarDesign, bool) {
	for _, d := range CarDesigns {
		if d.ID == id {
			return d, true
		}
	}
	return CarDesign{}, false
}

// Car is a vehicle on the network. It refers to the grid only by
// coordinates; every tick re-resolves the tile it is on.
type Car struct {
	ID        int       `json:"id"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Level     Level     `json:"level"`
	Direction Direction `json:"direction"`
	EntryFrom Direction `json:"entry_from"`
	Progress  float64   `json:"progress"`
	Design    CarDesign `json:"design"`
}

// Position returns the car's grid coordinate.
func (c Car) Position() Position {
	return Position{X: c.X, Y: c.Y}
}

// TurntableState is the persisted form of a registry entry.
type TurntableState struct {
	X          int        `json:"x"`
	Y          int        `json:"y"`
	ActiveExit *Direction `json:"active_exit"`
}

// SavedTrack is the persisted shape of a layout. Cars are deliberately
// absent: loading a track always starts with no cars.
type SavedTrack struct {
	Grid       [][]Cell         `json:"grid"`
	Turntables []TurntableState `json:"turntables"`
}

// TurntableView is a turntable as seen by a renderer.
type TurntableView struct {
	X          int        `json:"x"`
	Y          int        `json:"y"`
	ActiveExit *Direction `json:"active_exit"`
	Rotation   float64    `json:"rotation"`
}

// Snapshot is a read-only copy of the simulation for rendering.
type Snapshot struct {
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	TileSize   float64         `json:"tile_size"`
	Tick       int64           `json:"tick"`
	Grid       [][]Cell        `json:"grid"`
	Cars       []CarView       `json:"cars"`
	Turntables []TurntableView `json:"turntables"`
}

// CarView pairs a car with its computed draw pose.
type CarView struct {
	Car
	Pose CarPose `json:"pose"`
}

// EventType classifies something that happened during a tick.
type EventType string

const (
	EventTurntableRotated EventType = "turntable_rotated"
	EventCarStalled       EventType = "car_stalled"
	EventLevelChanged     EventType = "car_level_changed"
)

// Event is emitted by the motion engine for observers.
type Event struct {
	Type      EventType `json:"type"`
	Tick      int64     `json:"tick"`
	CarID     int       `json:"car_id"`
	Position  Position  `json:"position"`
	Level     Level     `json:"level"`
	Direction Direction `json:"direction"`
}
