package engine

import "sort"

// TurntableRegistry holds junction state keyed by grid position. Iteration
// order is row-major so saves and snapshots are stable.
type TurntableRegistry struct {
	entries map[Position]*Direction
}

// NewTurntableRegistry returns an empty registry.
func NewTurntableRegistry() *TurntableRegistry {
	return &TurntableRegistry{entries: make(map[Position]*Direction)}
}

// Place creates or resets the entry at pos with an east-facing exit.
func (r *TurntableRegistry) Place(pos Position) {
	exit := East
	r.entries[pos] = &exit
}

// Remove deletes the entry at pos, if any.
func (r *TurntableRegistry) Remove(pos Position) {
	delete(r.entries, pos)
}

// Has reports whether pos carries a registry entry.
func (r *TurntableRegistry) Has(pos Position) bool {
	_, ok := r.entries[pos]
	return ok
}

// ActiveExit returns the current exit; ok is false when the entry is missing
// or its exit is unset.
func (r *TurntableRegistry) ActiveExit(pos Position) (Direction, bool) {
	exit, found := r.entries[pos]
	if !found || exit == nil {
		return North, false
	}
	return *exit, true
}

// SetActiveExit points an existing entry at d. Unknown positions are ignored.
func (r *TurntableRegistry) SetActiveExit(pos Position, d Direction) {
	if _, ok := r.entries[pos]; !ok {
		return
	}
	exit := d
	r.entries[pos] = &exit
}

// clearExit leaves the entry at pos in place with no active exit.
func (r *TurntableRegistry) clearExit(pos Position) {
	if _, ok := r.entries[pos]; ok {
		r.entries[pos] = nil
	}
}

// Rotation is the render angle of the table at pos: the exit's angle, or 90
// degrees when the exit is unset.
func (r *TurntableRegistry) Rotation(pos Position) float64 {
	if exit, ok := r.ActiveExit(pos); ok {
		return exit.Angle()
	}
	return East.Angle()
}

// Len returns the number of entries.
func (r *TurntableRegistry) Len() int {
	return len(r.entries)
}

// Positions returns entry positions in row-major order.
func (r *TurntableRegistry) Positions() []Position {
	out := make([]Position, 0, len(r.entries))
	for pos := range r.entries {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

// States returns the persisted form of every entry.
func (r *TurntableRegistry) States() []TurntableState {
	positions := r.Positions()
	out := make([]TurntableState, 0, len(positions))
	for _, pos := range positions {
		state := TurntableState{X: pos.X, Y: pos.Y}
		if exit, ok := r.ActiveExit(pos); ok {
			e := exit
			state.ActiveExit = &e
		}
		out = append(out, state)
	}
	return out
}

// restore replaces the registry contents with the given states.
func (r *TurntableRegistry) restore(states []TurntableState) {
	r.entries = make(map[Position]*Direction, len(states))
	for _, s := range states {
		pos := Position{X: s.X, Y: s.Y}
		if s.ActiveExit != nil {
			exit := *s.ActiveExit
			r.entries[pos] = &exit
		} else {
			r.entries[pos] = nil
		}
	}
}

// candidateExits lists the sides a car at pos may leave through, in
// enumeration order: every side except entry whose same-level neighbour
// accepts a car arriving from this table.
func candidateExits(g *Grid, pos Position, level Level, entry Direction) []Direction {
	var out []Direction
	for _, d := range Directions {
		if d == entry {
			continue
		}
		next := pos.Step(d)
		neighbour := g.TrackAt(next.X, next.Y, level)
		if neighbour == NoTrack {
			continue
		}
		if _, ok := ExitFor(neighbour, d.Opposite()); ok {
			out = append(out, d)
		}
	}
	return out
}

// nextExit advances cyclically past current within candidates. A current
// exit that is absent or not a candidate yields the first candidate.
func nextExit(candidates []Direction, current Direction, hasCurrent bool) Direction {
	if !hasCurrent {
		return candidates[0]
	}
	for i, d := range candidates {
		if d == current {
			return candidates[(i+1)%len(candidates)]
		}
	}
	return candidates[0]
}
