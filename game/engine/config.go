package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// TrackConfig is a layout file. Rows use a character legend so layouts stay
// readable in an editor; see groundLegend, airLegend and sceneryLegend.
type TrackConfig struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Width       int              `json:"width"`
	Height      int              `json:"height"`
	Ground      []string         `json:"ground"`
	Air         []string         `json:"air,omitempty"`
	Scenery     []string         `json:"scenery,omitempty"`
	Turntables  []TurntableState `json:"turntables,omitempty"`
	Cars        []CarConfig      `json:"cars,omitempty"`
}

// CarConfig places a car when a layout is loaded. A nil direction takes the
// tile's initial direction; design 0 means the first design.
type CarConfig struct {
	X         int        `json:"x"`
	Y         int        `json:"y"`
	Level     Level      `json:"level"`
	Direction *Direction `json:"direction,omitempty"`
	Design    int        `json:"design,omitempty"`
}

const emptyTile = '.'

var groundLegend = map[rune]TrackKind{
	'-': StraightH,
	'|': StraightV,
	'L': CurveNE,
	'F': CurveSE,
	'7': CurveSW,
	'J': CurveNW,
	'~': TunnelH,
	'!': TunnelV,
	'O': Turntable,
}

var airLegend = map[rune]TrackKind{
	'=': BridgeH,
	'H': BridgeV,
}

var sceneryLegend = map[rune]SceneryKind{
	't': Tree,
	'r': Rocks,
	'h': House,
	'm': Mountain,
	'n': SpaceNeedle,
	's': School,
}

// ValidateTrackConfig checks a layout for structural correctness.
func ValidateTrackConfig(cfg *TrackConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidLayout)
	}
	if cfg.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidLayout)
	}
	if cfg.Width < MinGridSize || cfg.Width > MaxGridSize {
		return fmt.Errorf("%w: width must be between %d and %d, got %d", ErrInvalidLayout, MinGridSize, MaxGridSize, cfg.Width)
	}
	if cfg.Height < MinGridSize || cfg.Height > MaxGridSize {
		return fmt.Errorf("%w: height must be between %d and %d, got %d", ErrInvalidLayout, MinGridSize, MaxGridSize, cfg.Height)
	}

	if err := checkRows("ground", cfg.Ground, cfg.Width, cfg.Height, true, func(r rune) bool {
		_, ok := groundLegend[r]
		return ok
	}); err != nil {
		return err
	}
	if err := checkRows("air", cfg.Air, cfg.Width, cfg.Height, false, func(r rune) bool {
		_, ok := airLegend[r]
		return ok
	}); err != nil {
		return err
	}
	if err := checkRows("scenery", cfg.Scenery, cfg.Width, cfg.Height, false, func(r rune) bool {
		_, ok := sceneryLegend[r]
		return ok
	}); err != nil {
		return err
	}

	for y, row := range cfg.Scenery {
		for x, r := range []rune(row) {
			if r == emptyTile {
				continue
			}
			if tileAt(cfg.Ground, x, y) != emptyTile || tileAt(cfg.Air, x, y) != emptyTile {
				return fmt.Errorf("%w: scenery '%c' on track at (%d,%d)", ErrInvalidLayout, r, x, y)
			}
		}
	}

	for _, tt := range cfg.Turntables {
		if tileAt(cfg.Ground, tt.X, tt.Y) != 'O' {
			return fmt.Errorf("%w: turntable state at (%d,%d) has no turntable tile", ErrInvalidLayout, tt.X, tt.Y)
		}
		if tt.ActiveExit != nil && !tt.ActiveExit.Valid() {
			return fmt.Errorf("%w: turntable at (%d,%d) has invalid exit", ErrInvalidLayout, tt.X, tt.Y)
		}
	}

	if len(cfg.Cars) > MaxCars {
		return fmt.Errorf("%w: at most %d cars, got %d", ErrInvalidLayout, MaxCars, len(cfg.Cars))
	}
	for i, car := range cfg.Cars {
		rows := cfg.Ground
		if car.Level == Air {
			rows = cfg.Air
		}
		if tileAt(rows, car.X, car.Y) == emptyTile {
			return fmt.Errorf("%w: car %d at (%d,%d) is not on %s track", ErrInvalidLayout, i, car.X, car.Y, car.Level)
		}
		if car.Design != 0 {
			if _, ok := DesignByID(car.Design); !ok {
				return fmt.Errorf("%w: car %d has unknown design %d", ErrInvalidLayout, i, car.Design)
			}
		}
	}
	return nil
}

// checkRows validates a legend layer. Optional layers may be empty.
func checkRows(layer string, rows []string, width, height int, required bool, valid func(rune) bool) error {
	if len(rows) == 0 && !required {
		return nil
	}
	if len(rows) != height {
		return fmt.Errorf("%w: %s must have %d rows, got %d", ErrInvalidLayout, layer, height, len(rows))
	}
	for y, row := range rows {
		runes := []rune(row)
		if len(runes) != width {
			return fmt.Errorf("%w: %s row %d must have %d characters, got %d", ErrInvalidLayout, layer, y, width, len(runes))
		}
		for x, r := range runes {
			if r != emptyTile && !valid(r) {
				return fmt.Errorf("%w: invalid %s character '%c' at (%d,%d)", ErrInvalidLayout, layer, r, x, y)
			}
		}
	}
	return nil
}

// tileAt reads a legend character, treating missing rows and columns as empty.
func tileAt(rows []string, x, y int) rune {
	if y < 0 || y >= len(rows) {
		return emptyTile
	}
	runes := []rune(rows[y])
	if x < 0 || x >= len(runes) {
		return emptyTile
	}
	return runes[x]
}

// buildLayout turns a validated config into a grid and registry. Every
// turntable tile gets an entry; explicit states override the default exit.
func buildLayout(cfg *TrackConfig) (*Grid, *TurntableRegistry) {
	g := NewGrid(cfg.Width, cfg.Height)
	tables := NewTurntableRegistry()
	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			if kind, ok := groundLegend[tileAt(cfg.Ground, x, y)]; ok {
				g.setTrack(x, y, Ground, kind)
				if kind == Turntable {
					tables.Place(Position{X: x, Y: y})
				}
			}
			if kind, ok := airLegend[tileAt(cfg.Air, x, y)]; ok {
				g.setTrack(x, y, Air, kind)
			}
			if kind, ok := sceneryLegend[tileAt(cfg.Scenery, x, y)]; ok {
				g.setScenery(x, y, kind)
			}
		}
	}
	for _, tt := range cfg.Turntables {
		pos := Position{X: tt.X, Y: tt.Y}
		if tt.ActiveExit == nil {
			tables.clearExit(pos)
			continue
		}
		tables.SetActiveExit(pos, *tt.ActiveExit)
	}
	return g, tables
}

// ConfigFromTrack renders a saved track back into legend rows.
func ConfigFromTrack(name, description string, track SavedTrack) (*TrackConfig, error) {
	if err := ValidateSavedTrack(track); err != nil {
		return nil, err
	}
	ground := reverseLegend(groundLegend)
	air := reverseLegend(airLegend)
	scenery := make(map[SceneryKind]rune, len(sceneryLegend))
	for r, kind := range sceneryLegend {
		scenery[kind] = r
	}

	cfg := &TrackConfig{
		Name:        name,
		Description: description,
		Width:       len(track.Grid[0]),
		Height:      len(track.Grid),
		Turntables:  track.Turntables,
	}
	hasAir, hasScenery := false, false
	var groundRows, airRows, sceneryRows []string
	for _, row := range track.Grid {
		var gb, ab, sb strings.Builder
		for _, cell := range row {
			gb.WriteRune(legendChar(ground, cell.Ground))
			ab.WriteRune(legendChar(air, cell.Air))
			if r, ok := scenery[cell.Scenery]; ok {
				sb.WriteRune(r)
				hasScenery = true
			} else {
				sb.WriteRune(emptyTile)
			}
			if cell.Air != NoTrack {
				hasAir = true
			}
		}
		groundRows = append(groundRows, gb.String())
		airRows = append(airRows, ab.String())
		sceneryRows = append(sceneryRows, sb.String())
	}
	cfg.Ground = groundRows
	if hasAir {
		cfg.Air = airRows
	}
	if hasScenery {
		cfg.Scenery = sceneryRows
	}
	return cfg, nil
}

func reverseLegend(legend map[rune]TrackKind) map[TrackKind]rune {
	out := make(map[TrackKind]rune, len(legend))
	for r, kind := range legend {
		out[kind] = r
	}
	return out
}

func legendChar(legend map[TrackKind]rune, kind TrackKind) rune {
	if r, ok := legend[kind]; ok {
		return r
	}
	return emptyTile
}

// ParseTrackConfig decodes and validates a layout.
func ParseTrackConfig(data []byte) (*TrackConfig, error) {
	var cfg TrackConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}
	if err := ValidateTrackConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadTrackConfig reads and validates a layout file.
func LoadTrackConfig(filename string) (*TrackConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	cfg, err := ParseTrackConfig(data)
	if err != nil {
		return nil, fmt.Errorf("layout %s: %w", filename, err)
	}
	return cfg, nil
}

// StarterLayoutName names the built-in layout.
const StarterLayoutName = "starter"

var starterGround = []string{
	"........................",
	"........................",
	"........................",
	"........................",
	"........................",
	".....F--7...............",
	".....|..|...............",
	".....|..|...............",
	".....L--J...............",
	"........................",
	"........................",
	"........................",
	"........................",
	"........................",
	"........................",
	"........................",
}

func starterDemoCar() Car {
	return Car{
		ID:        0,
		X:         6,
		Y:         5,
		Level:     Ground,
		Direction: East,
		EntryFrom: West,
		Design:    CarDesigns[0],
	}
}

// StarterConfig returns the built-in twelve-tile loop with one demo car.
func StarterConfig() *TrackConfig {
	demo := starterDemoCar()
	dir := demo.Direction
	ground := make([]string, len(starterGround))
	copy(ground, starterGround)
	return &TrackConfig{
		Name:        StarterLayoutName,
		Description: "Twelve-tile loop with one demo car",
		Width:       GridWidth,
		Height:      GridHeight,
		Ground:      ground,
		Cars: []CarConfig{
			{X: demo.X, Y: demo.Y, Level: demo.Level, Direction: &dir, Design: demo.Design.ID},
		},
	}
}
