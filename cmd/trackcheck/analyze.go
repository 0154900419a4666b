package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/wricardo/autotrack/game/engine"
)

// Analysis summarizes a layout.
type Analysis struct {
	Name       string
	Width      int
	Height     int
	Tiles      map[engine.TrackKind]int
	Scenery    int
	Cars       int
	DeadEnds   []DeadEnd
	Turntables []TurntableReport
}

// DeadEnd is a track exit that leads nowhere a car can continue.
type DeadEnd struct {
	Position engine.Position
	Level    engine.Level
	Kind     engine.TrackKind
	Side     engine.Direction
	Reason   string
}

func (d DeadEnd) String() string {
	return fmt.Sprintf("%s at (%d,%d) %s exits %s: %s",
		d.Kind, d.Position.X, d.Position.Y, d.Level, d.Side, d.Reason)
}

// TurntableReport lists the sides a turntable can send a car through.
type TurntableReport struct {
	Position   engine.Position
	Candidates []engine.Direction
}

func analyzeFile(path string) (*Analysis, error) {
	cfg, err := engine.LoadTrackConfig(path)
	if err != nil {
		return nil, err
	}
	return analyzeConfig(cfg)
}

func analyzeConfig(cfg *engine.TrackConfig) (*Analysis, error) {
	e, err := engine.NewEngineFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	a := &Analysis{
		Name:   cfg.Name,
		Width:  e.Width(),
		Height: e.Height(),
		Tiles:  make(map[engine.TrackKind]int),
		Cars:   len(e.Cars()),
	}

	for y := 0; y < e.Height(); y++ {
		for x := 0; x < e.Width(); x++ {
			cell := e.CellAt(x, y)
			if cell.Scenery != engine.NoScenery {
				a.Scenery++
			}
			pos := engine.Position{X: x, Y: y}
			for _, level := range []engine.Level{engine.Ground, engine.Air} {
				kind := e.TrackAt(x, y, level)
				if kind == engine.NoTrack {
					continue
				}
				a.Tiles[kind]++
				if kind == engine.Turntable {
					a.Turntables = append(a.Turntables, TurntableReport{
						Position:   pos,
						Candidates: turntableExits(e, pos, level),
					})
					continue
				}
				a.DeadEnds = append(a.DeadEnds, deadEnds(e, pos, level, kind)...)
			}
		}
	}
	return a, nil
}

// deadEnds checks every exit of the tile at pos. A car leaving through a
// side lands on the neighbour's elevated track if there is any, otherwise
// on its ground track.
func deadEnds(e engine.Engine, pos engine.Position, level engine.Level, kind engine.TrackKind) []DeadEnd {
	var out []DeadEnd
	seen := make(map[engine.Direction]bool)
	for _, conn := range engine.Connections(kind) {
		side := conn.Exit
		if seen[side] {
			continue
		}
		seen[side] = true

		d := DeadEnd{Position: pos, Level: level, Kind: kind, Side: side}
		next := pos.Step(side)
		if next.X < 0 || next.Y < 0 || next.X >= e.Width() || next.Y >= e.Height() {
			d.Reason = "leaves the grid"
			out = append(out, d)
			continue
		}
		neighbour := e.TrackAt(next.X, next.Y, engine.Air)
		if neighbour == engine.NoTrack {
			neighbour = e.TrackAt(next.X, next.Y, engine.Ground)
		}
		switch {
		case neighbour == engine.NoTrack:
			d.Reason = "no track beyond"
		case neighbour == engine.Turntable:
			continue
		default:
			if _, ok := engine.ExitFor(neighbour, side.Opposite()); ok {
				continue
			}
			d.Reason = fmt.Sprintf("%s does not connect", neighbour)
		}
		out = append(out, d)
	}
	return out
}

// turntableExits lists the sides whose same-level neighbour accepts a car
// arriving from the turntable.
func turntableExits(e engine.Engine, pos engine.Position, level engine.Level) []engine.Direction {
	var out []engine.Direction
	for _, side := range engine.Directions {
		next := pos.Step(side)
		neighbour := e.TrackAt(next.X, next.Y, level)
		if neighbour == engine.NoTrack {
			continue
		}
		if _, ok := engine.ExitFor(neighbour, side.Opposite()); ok {
			out = append(out, side)
		}
	}
	return out
}

func writeAnalysis(w io.Writer, file string, a *Analysis) {
	fmt.Fprintf(w, "=== %s ===\n", file)
	fmt.Fprintf(w, "Name: %s\n", a.Name)
	fmt.Fprintf(w, "Grid: %dx%d\n", a.Width, a.Height)

	total := 0
	for _, kind := range engine.TrackKinds {
		total += a.Tiles[kind]
	}
	fmt.Fprintf(w, "Track tiles: %d\n", total)
	for _, kind := range engine.TrackKinds {
		if n := a.Tiles[kind]; n > 0 {
			fmt.Fprintf(w, "  %-11s %d\n", kind, n)
		}
	}
	fmt.Fprintf(w, "Scenery: %d\n", a.Scenery)
	fmt.Fprintf(w, "Cars: %d/%d\n", a.Cars, engine.MaxCars)

	if len(a.DeadEnds) == 0 {
		fmt.Fprintln(w, "Dead ends: none")
	} else {
		fmt.Fprintf(w, "Dead ends: %d\n", len(a.DeadEnds))
		for _, d := range a.DeadEnds {
			fmt.Fprintf(w, "  - %s\n", d)
		}
	}

	for _, tt := range a.Turntables {
		names := make([]string, len(tt.Candidates))
		for i, d := range tt.Candidates {
			names[i] = d.String()
		}
		exits := "none"
		if len(names) > 0 {
			exits = strings.Join(names, ", ")
		}
		fmt.Fprintf(w, "Turntable (%d,%d): %d exit(s) [%s]\n", tt.Position.X, tt.Position.Y, len(tt.Candidates), exits)
	}
	fmt.Fprintln(w)
}
