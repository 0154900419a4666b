package engine

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfBounds    = errors.New("position out of bounds")
	ErrTooManyCars    = errors.New("car limit reached")
	ErrNoTrack        = errors.New("no track at position")
	ErrCellOccupied   = errors.New("cell is occupied")
	ErrInvalidDesign  = errors.New("unknown car design")
	ErrInvalidLayout  = errors.New("invalid layout")
	ErrInvalidTrack   = errors.New("invalid track kind for level")
	ErrInvalidHeading = errors.New("invalid direction")
)

// Engine is the contract the service layer drives. Implementations are not
// safe for concurrent use.
type Engine interface {
	// Simulation
	Tick() []Event
	TickN(n int) []Event
	TickCount() int64

	// Queries
	Width() int
	Height() int
	CellAt(x, y int) Cell
	TrackAt(x, y int, level Level) TrackKind
	Cars() []Car
	Turntables() []TurntableState
	Snapshot() Snapshot

	// Edits
	SetTrack(x, y int, level Level, kind TrackKind) error
	ClearCell(x, y int) error
	SetScenery(x, y int, kind SceneryKind) error
	PlaceTurntable(x, y int) error
	SpawnCar(x, y int, level Level, dir Direction, design int) (Car, error)
	RemoveAllCars()

	// Layout
	Reset()
	Save() SavedTrack
	Load(track SavedTrack) error
}

// TrackEngine implements Engine over a Grid and a TurntableRegistry.
type TrackEngine struct {
	grid      *Grid
	tables    *TurntableRegistry
	cars      []Car
	nextCarID int
	tick      int64
}

// NewEngine creates an engine with an empty grid of the given size.
func NewEngine(width, height int) (*TrackEngine, error) {
	if width < MinGridSize || width > MaxGridSize || height < MinGridSize || height > MaxGridSize {
		return nil, fmt.Errorf("%w: grid must be between %d and %d tiles per side, got %dx%d",
			ErrInvalidLayout, MinGridSize, MaxGridSize, width, height)
	}
	return &TrackEngine{
		grid:   NewGrid(width, height),
		tables: NewTurntableRegistry(),
	}, nil
}

// NewEngineWithDefaults creates an engine holding the starter loop and its
// demo car.
func NewEngineWithDefaults() *TrackEngine {
	e := &TrackEngine{}
	e.Reset()
	return e
}

// NewEngineFromConfig validates a layout config and builds an engine from it.
func NewEngineFromConfig(cfg *TrackConfig) (*TrackEngine, error) {
	if err := ValidateTrackConfig(cfg); err != nil {
		return nil, err
	}
	e := &TrackEngine{}
	if err := e.applyConfig(cfg); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *TrackEngine) applyConfig(cfg *TrackConfig) error {
	grid, tables := buildLayout(cfg)
	e.grid = grid
	e.tables = tables
	e.cars = nil
	e.tick = 0
	for _, cc := range cfg.Cars {
		level := cc.Level
		dir := InitialDirection(grid.TrackAt(cc.X, cc.Y, level))
		if cc.Direction != nil {
			dir = *cc.Direction
		}
		design := cc.Design
		if design == 0 {
			design = CarDesigns[0].ID
		}
		if _, err := e.SpawnCar(cc.X, cc.Y, level, dir, design); err != nil {
			return fmt.Errorf("layout %q car at (%d,%d): %w", cfg.Name, cc.X, cc.Y, err)
		}
	}
	return nil
}

// Tick advances every car once.
func (e *TrackEngine) Tick() []Event {
	e.tick++
	cars, events := advanceCars(e.cars, e.grid, e.tables, e.tick)
	e.cars = cars
	return events
}

// TickN runs n ticks and returns every event in order.
func (e *TrackEngine) TickN(n int) []Event {
	var events []Event
	for i := 0; i < n; i++ {
		events = append(events, e.Tick()...)
	}
	return events
}

// TickCount returns the number of ticks run since the last reset or load.
func (e *TrackEngine) TickCount() int64 { return e.tick }

func (e *TrackEngine) Width() int  { return e.grid.Width() }
func (e *TrackEngine) Height() int { return e.grid.Height() }

func (e *TrackEngine) CellAt(x, y int) Cell { return e.grid.CellAt(x, y) }

func (e *TrackEngine) TrackAt(x, y int, level Level) TrackKind {
	return e.grid.TrackAt(x, y, level)
}

// Cars returns a copy of the live cars.
func (e *TrackEngine) Cars() []Car {
	out := make([]Car, len(e.cars))
	copy(out, e.cars)
	return out
}

// Turntables returns the registry in row-major order.
func (e *TrackEngine) Turntables() []TurntableState {
	return e.tables.States()
}

// SetTrack writes kind into the given level. Placing track clears scenery;
// the registry follows the ground slot so that a turntable entry exists
// exactly when the ground holds a turntable.
func (e *TrackEngine) SetTrack(x, y int, level Level, kind TrackKind) error {
	if !e.grid.InBounds(x, y) {
		return fmt.Errorf("set track at (%d,%d): %w", x, y, ErrOutOfBounds)
	}
	if kind != NoTrack && kind.IsBridge() != (level == Air) {
		return fmt.Errorf("set %s on %s level: %w", kind, level, ErrInvalidTrack)
	}
	pos := Position{X: x, Y: y}
	if level == Ground {
		if kind == Turntable {
			e.tables.Place(pos)
		} else {
			e.tables.Remove(pos)
		}
	}
	e.grid.setTrack(x, y, level, kind)
	if kind != NoTrack {
		e.grid.setScenery(x, y, NoScenery)
	}
	return nil
}

// PlaceTurntable puts a turntable on the ground with an east-facing exit.
func (e *TrackEngine) PlaceTurntable(x, y int) error {
	return e.SetTrack(x, y, Ground, Turntable)
}

// ClearCell empties both levels, the scenery and any turntable entry.
func (e *TrackEngine) ClearCell(x, y int) error {
	if !e.grid.InBounds(x, y) {
		return fmt.Errorf("clear cell (%d,%d): %w", x, y, ErrOutOfBounds)
	}
	e.grid.clear(x, y)
	e.tables.Remove(Position{X: x, Y: y})
	return nil
}

// SetScenery decorates an empty cell. NoScenery removes the decoration.
func (e *TrackEngine) SetScenery(x, y int, kind SceneryKind) error {
	if !e.grid.InBounds(x, y) {
		return fmt.Errorf("set scenery at (%d,%d): %w", x, y, ErrOutOfBounds)
	}
	if kind != NoScenery && e.grid.CellAt(x, y).HasTrack() {
		return fmt.Errorf("set scenery at (%d,%d): %w", x, y, ErrCellOccupied)
	}
	e.grid.setScenery(x, y, kind)
	return nil
}

// SpawnCar adds a car heading dir on the track at the given level. The entry
// side is the connected side the car would have come from, so curves render
// along their arc from the first tick.
func (e *TrackEngine) SpawnCar(x, y int, level Level, dir Direction, design int) (Car, error) {
	if !e.grid.InBounds(x, y) {
		return Car{}, fmt.Errorf("spawn car at (%d,%d): %w", x, y, ErrOutOfBounds)
	}
	if !dir.Valid() {
		return Car{}, fmt.Errorf("spawn car heading %d: %w", int(dir), ErrInvalidHeading)
	}
	kind := e.grid.TrackAt(x, y, level)
	if kind == NoTrack {
		return Car{}, fmt.Errorf("spawn car at (%d,%d) on %s: %w", x, y, level, ErrNoTrack)
	}
	d, ok := DesignByID(design)
	if !ok {
		return Car{}, fmt.Errorf("spawn car with design %d: %w", design, ErrInvalidDesign)
	}
	if len(e.cars) >= MaxCars {
		return Car{}, fmt.Errorf("spawn car: %w (max %d)", ErrTooManyCars, MaxCars)
	}

	car := Car{
		ID:        e.nextCarID,
		X:         x,
		Y:         y,
		Level:     level,
		Direction: dir,
		EntryFrom: entrySideFor(kind, dir),
		Design:    d,
	}
	e.nextCarID++
	e.cars = append(e.cars, car)
	return car, nil
}

// entrySideFor finds the side connected to exit on kind, defaulting to the
// straight-through side.
func entrySideFor(kind TrackKind, exit Direction) Direction {
	for _, conn := range Connections(kind) {
		if conn.Exit == exit {
			return conn.Entry
		}
	}
	return exit.Opposite()
}

// RemoveAllCars empties the car collection.
func (e *TrackEngine) RemoveAllCars() {
	e.cars = nil
}

// Reset restores the starter loop with its demo car and zeroes the tick
// counter.
func (e *TrackEngine) Reset() {
	e.grid, e.tables = buildLayout(StarterConfig())
	e.tick = 0
	demo := starterDemoCar()
	e.cars = []Car{demo}
	e.nextCarID = demo.ID + 1
}

// Save captures the grid and turntables. Cars are not part of a save.
func (e *TrackEngine) Save() SavedTrack {
	return SavedTrack{
		Grid:       e.grid.Cells(),
		Turntables: e.tables.States(),
	}
}

// Load replaces the grid and registry and removes every car. Registry
// entries without a turntable tile are dropped; turntable tiles without an
// entry get a default one.
func (e *TrackEngine) Load(track SavedTrack) error {
	if err := ValidateSavedTrack(track); err != nil {
		return err
	}
	grid, err := GridFromCells(track.Grid)
	if err != nil {
		return err
	}

	tables := NewTurntableRegistry()
	var kept []TurntableState
	for _, s := range track.Turntables {
		if grid.TrackAt(s.X, s.Y, Ground) == Turntable {
			kept = append(kept, s)
		}
	}
	tables.restore(kept)
	for y := 0; y < grid.Height(); y++ {
		for x := 0; x < grid.Width(); x++ {
			pos := Position{X: x, Y: y}
			if grid.TrackAt(x, y, Ground) == Turntable && !tables.Has(pos) {
				tables.Place(pos)
			}
		}
	}

	e.grid = grid
	e.tables = tables
	e.cars = nil
	e.tick = 0
	return nil
}

// RestoreCars replaces the car collection and tick counter with persisted
// values, keeping each car's progress and entry side. Every car must sit on
// track at its level.
func (e *TrackEngine) RestoreCars(cars []Car, tick int64) error {
	if len(cars) > MaxCars {
		return fmt.Errorf("restore %d cars: %w (max %d)", len(cars), ErrTooManyCars, MaxCars)
	}
	next := 0
	restored := make([]Car, 0, len(cars))
	for _, car := range cars {
		if !e.grid.InBounds(car.X, car.Y) {
			return fmt.Errorf("restore car %d at (%d,%d): %w", car.ID, car.X, car.Y, ErrOutOfBounds)
		}
		if !car.Direction.Valid() || !car.EntryFrom.Valid() {
			return fmt.Errorf("restore car %d: %w", car.ID, ErrInvalidHeading)
		}
		if e.grid.TrackAt(car.X, car.Y, car.Level) == NoTrack {
			return fmt.Errorf("restore car %d at (%d,%d) on %s: %w", car.ID, car.X, car.Y, car.Level, ErrNoTrack)
		}
		d, ok := DesignByID(car.Design.ID)
		if !ok {
			return fmt.Errorf("restore car %d with design %d: %w", car.ID, car.Design.ID, ErrInvalidDesign)
		}
		car.Design = d
		car.Progress = clamp01(car.Progress)
		if car.ID >= next {
			next = car.ID + 1
		}
		restored = append(restored, car)
	}
	e.cars = restored
	e.nextCarID = next
	e.tick = tick
	return nil
}

// ValidateSavedTrack checks that a save is rectangular, within size limits
// and places every kind on its proper level.
func ValidateSavedTrack(track SavedTrack) error {
	height := len(track.Grid)
	if height < MinGridSize || height > MaxGridSize {
		return fmt.Errorf("%w: %d rows", ErrInvalidLayout, height)
	}
	width := len(track.Grid[0])
	if width < MinGridSize || width > MaxGridSize {
		return fmt.Errorf("%w: %d columns", ErrInvalidLayout, width)
	}
	for y, row := range track.Grid {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d cells, want %d", ErrInvalidLayout, y, len(row), width)
		}
		for x, cell := range row {
			if cell.Ground.IsBridge() {
				return fmt.Errorf("%w: bridge on ground at (%d,%d)", ErrInvalidLayout, x, y)
			}
			if cell.Air != NoTrack && !cell.Air.IsBridge() {
				return fmt.Errorf("%w: %s in air at (%d,%d)", ErrInvalidLayout, cell.Air, x, y)
			}
			if cell.Scenery != NoScenery && cell.HasTrack() {
				return fmt.Errorf("%w: scenery on track at (%d,%d)", ErrInvalidLayout, x, y)
			}
		}
	}
	return nil
}

// Snapshot copies the simulation for rendering, computing car poses and
// turntable angles.
func (e *TrackEngine) Snapshot() Snapshot {
	cars := make([]CarView, len(e.cars))
	for i, car := range e.cars {
		cars[i] = CarView{Car: car, Pose: PoseFor(e.grid, car)}
	}
	states := e.tables.States()
	tables := make([]TurntableView, len(states))
	for i, s := range states {
		tables[i] = TurntableView{
			X:          s.X,
			Y:          s.Y,
			ActiveExit: s.ActiveExit,
			Rotation:   e.tables.Rotation(Position{X: s.X, Y: s.Y}),
		}
	}
	return Snapshot{
		Width:      e.grid.Width(),
		Height:     e.grid.Height(),
		TileSize:   TileSize,
		Tick:       e.tick,
		Grid:       e.grid.Cells(),
		Cars:       cars,
		Turntables: tables,
	}
}
