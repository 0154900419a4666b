package mcp

import (
	"fmt"
	"math"
	"strings"

	"github.com/wricardo/autotrack/game/engine"
	"github.com/wricardo/autotrack/game/service"
)

const carMark = '@'

func formatSessionInfo(session *service.SessionInfo) string {
	state := "stopped"
	if session.Running {
		state = "running"
	}
	return fmt.Sprintf("Session: %s\nLayout: %s\nSimulation: %s\nCreated: %s\nLast accessed: %s\n\n%s",
		session.ID, session.Layout, state,
		session.CreatedAt.Format("2006-01-02 15:04:05"),
		session.LastAccessedAt.Format("2006-01-02 15:04:05"),
		formatSnapshot(session.Snapshot))
}

// gridRows renders the ground and air levels with the layout legend. Scenery
// is drawn on the ground rows and cars as '@' on their level.
func gridRows(snap *engine.Snapshot) (ground, air []string, err error) {
	track := engine.SavedTrack{Grid: snap.Grid}
	for _, t := range snap.Turntables {
		track.Turntables = append(track.Turntables, engine.TurntableState{X: t.X, Y: t.Y, ActiveExit: t.ActiveExit})
	}
	cfg, err := engine.ConfigFromTrack("", "", track)
	if err != nil {
		return nil, nil, err
	}

	groundRunes := make([][]rune, len(cfg.Ground))
	for y, row := range cfg.Ground {
		groundRunes[y] = []rune(row)
		if y < len(cfg.Scenery) {
			for x, r := range cfg.Scenery[y] {
				if r != '.' && groundRunes[y][x] == '.' {
					groundRunes[y][x] = r
				}
			}
		}
	}
	var airRunes [][]rune
	for _, row := range cfg.Air {
		airRunes = append(airRunes, []rune(row))
	}

	for _, car := range snap.Cars {
		rows := groundRunes
		if car.Level == engine.Air {
			rows = airRunes
		}
		if car.Y >= 0 && car.Y < len(rows) && car.X >= 0 && car.X < len(rows[car.Y]) {
			rows[car.Y][car.X] = carMark
		}
	}

	for _, row := range groundRunes {
		ground = append(ground, string(row))
	}
	for _, row := range airRunes {
		air = append(air, string(row))
	}
	return ground, air, nil
}

func writeRows(b *strings.Builder, title string, rows []string) {
	fmt.Fprintf(b, "%s:\n", title)
	for y, row := range rows {
		fmt.Fprintf(b, "%3d %s\n", y, row)
	}
}

func formatSnapshot(snap *engine.Snapshot) string {
	if snap == nil || len(snap.Grid) == 0 {
		return "No snapshot available"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tick %d | Grid %dx%d | Cars %d/%d\n\n", snap.Tick, snap.Width, snap.Height, len(snap.Cars), engine.MaxCars)

	ground, air, err := gridRows(snap)
	if err != nil {
		fmt.Fprintf(&b, "Grid unavailable: %v\n", err)
	} else {
		writeRows(&b, "Ground", ground)
		if len(air) > 0 {
			b.WriteString("\n")
			writeRows(&b, "Air", air)
		}
	}

	if len(snap.Cars) > 0 {
		b.WriteString("\nCars:\n")
		for _, car := range snap.Cars {
			b.WriteString(formatCar(car.Car))
		}
	}

	if len(snap.Turntables) > 0 {
		b.WriteString("\nTurntables:\n")
		for _, t := range snap.Turntables {
			exit := "idle"
			if t.ActiveExit != nil {
				exit = "exit " + t.ActiveExit.String()
			}
			fmt.Fprintf(&b, "- (%d,%d) %s, %.0f°\n", t.X, t.Y, exit, t.Rotation)
		}
	}

	b.WriteString("\nLegend: - | straight, L F 7 J curves, ~ ! tunnels, O turntable, = H bridges, t r h m n s scenery, @ car\n")
	return b.String()
}

func formatCar(car engine.Car) string {
	return fmt.Sprintf("- #%d %s at (%d,%d) %s, heading %s, entered from %s, %.0f%% across\n",
		car.ID, car.Design.Name, car.X, car.Y, car.Level, car.Direction, car.EntryFrom,
		math.Round(car.Progress*100))
}

func formatTickResult(result *service.TickResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Advanced %d tick(s)\n", result.Ticks)
	if len(result.Events) > 0 {
		b.WriteString("\nEvents:\n")
		for _, ev := range result.Events {
			fmt.Fprintf(&b, "- tick %d: car #%d %s at (%d,%d) %s, heading %s\n",
				ev.Tick, ev.CarID, strings.ReplaceAll(string(ev.Type), "_", " "),
				ev.Position.X, ev.Position.Y, ev.Level, ev.Direction)
		}
	}
	b.WriteString("\n")
	b.WriteString(formatSnapshot(result.Snapshot))
	return b.String()
}

func formatConnections(kind engine.TrackKind) string {
	conns := engine.Connections(kind)
	if len(conns) == 0 {
		return "none"
	}
	parts := make([]string, len(conns))
	for i, c := range conns {
		parts[i] = c.Entry.String() + "→" + c.Exit.String()
	}
	return strings.Join(parts, ", ")
}

func describeCell(snap *engine.Snapshot, x, y int) string {
	cell := snap.Grid[y][x]

	var b strings.Builder
	fmt.Fprintf(&b, "Cell (%d,%d)\n", x, y)
	if cell.Empty() {
		b.WriteString("Empty\n")
	}
	if cell.Ground != engine.NoTrack {
		fmt.Fprintf(&b, "Ground: %s (connections: %s)\n", cell.Ground, formatConnections(cell.Ground))
	}
	if cell.Air != engine.NoTrack {
		fmt.Fprintf(&b, "Air: %s (connections: %s)\n", cell.Air, formatConnections(cell.Air))
	}
	if cell.Scenery != engine.NoScenery {
		fmt.Fprintf(&b, "Scenery: %s\n", cell.Scenery)
	}

	for _, t := range snap.Turntables {
		if t.X == x && t.Y == y {
			if t.ActiveExit != nil {
				fmt.Fprintf(&b, "Turntable: exit %s, %.0f°\n", t.ActiveExit, t.Rotation)
			} else {
				b.WriteString("Turntable: idle\n")
			}
		}
	}

	for _, car := range snap.Cars {
		if car.X == x && car.Y == y {
			b.WriteString(formatCar(car.Car))
		}
	}
	return b.String()
}
