// Package engine provides the track connectivity and motion core for the
// auto track simulation.
//
// The engine package implements:
//   - Direction and connectivity tables for every track kind
//   - A two-level (ground/elevated) tile grid
//   - A turntable registry keyed by grid position
//   - The per-tick car advancement algorithm
//   - Pose interpolation along lines and quadratic Bézier arcs
//   - Layout configs with a character legend
//
// Core Types:
//
// The Engine interface defines the operations the service layer drives,
// implemented by TrackEngine. Cars refer to the grid only by coordinates and
// re-resolve the tile they are on every tick. Nothing in this package is
// safe for concurrent use; callers serialise access.
//
// Usage:
//
//	e := engine.NewEngineWithDefaults()
//	for i := 0; i < 50; i++ {
//		for _, ev := range e.Tick() {
//			fmt.Println(ev.Type, ev.CarID)
//		}
//	}
//	snap := e.Snapshot()
//
// Motion Rules:
//
// Each tick adds a fixed amount of progress to every car. When a car
// finishes a tile it steps to the neighbour in its heading. Elevated track
// at the neighbour takes precedence; with no track there the car stalls in
// place and retries after another tile's worth of progress. Turntables pick
// the next candidate exit cyclically from their current exit.
package engine
