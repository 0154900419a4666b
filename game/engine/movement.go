package engine

// advanceCars runs one tick of the motion algorithm over every car. Cars are
// processed in order against the live registry, so a rotation made for one
// car is visible to the cars after it. The input slice is not modified.
func advanceCars(cars []Car, g *Grid, tables *TurntableRegistry, tick int64) ([]Car, []Event) {
	next := make([]Car, len(cars))
	var events []Event
	for i, car := range cars {
		next[i], events = advanceCar(car, g, tables, tick, events)
	}
	return next, events
}

func advanceCar(car Car, g *Grid, tables *TurntableRegistry, tick int64, events []Event) (Car, []Event) {
	car.Progress += CarSpeed
	if car.Progress+progressEpsilon < 1 {
		return car, events
	}
	car.Progress = 0

	target := car.Position().Step(car.Direction)
	level, kind := resolveLevel(g, target)
	if kind == NoTrack {
		// Stalled: the crossing is retried once the car has run another
		// full tile of progress.
		events = append(events, carEvent(EventCarStalled, tick, car))
		return car, events
	}

	car.EntryFrom = car.Direction.Opposite()
	car.X, car.Y = target.X, target.Y
	if level != car.Level {
		car.Level = level
		events = append(events, carEvent(EventLevelChanged, tick, car))
	}

	if kind == Turntable {
		if !tables.Has(target) {
			return car, events
		}
		candidates := candidateExits(g, target, car.Level, car.EntryFrom)
		if len(candidates) == 0 {
			return car, events
		}
		current, ok := tables.ActiveExit(target)
		exit := nextExit(candidates, current, ok)
		tables.SetActiveExit(target, exit)
		car.Direction = exit
		events = append(events, carEvent(EventTurntableRotated, tick, car))
		return car, events
	}

	if exit, ok := ExitFor(kind, car.EntryFrom); ok {
		car.Direction = exit
	}
	return car, events
}

// resolveLevel picks the level and track a car lands on at pos. Elevated
// track always wins; a car leaving a bridge onto a tile without one lands on
// the ground track.
func resolveLevel(g *Grid, pos Position) (Level, TrackKind) {
	if air := g.TrackAt(pos.X, pos.Y, Air); air != NoTrack {
		return Air, air
	}
	return Ground, g.TrackAt(pos.X, pos.Y, Ground)
}

func carEvent(typ EventType, tick int64, car Car) Event {
	return Event{
		Type:      typ,
		Tick:      tick,
		CarID:     car.ID,
		Position:  car.Position(),
		Level:     car.Level,
		Direction: car.Direction,
	}
}
