package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPose(t *testing.T) {
	tests := []struct {
		name         string
		kind         TrackKind
		entry, exit  Direction
		progress     float64
		wantX, wantY float64
		wantRot      float64
	}{
		{"horizontal midpoint", StraightH, West, East, 0.5, 24, 24, 0},
		{"horizontal reversed start", StraightH, East, West, 0, 48, 24, 180},
		{"vertical start", StraightV, North, South, 0, 24, 0, 90},
		{"bridge quarter", BridgeV, South, North, 0.25, 24, 36, -90},
		{"curve ne start", CurveNE, North, East, 0, 24, 0, 90},
		{"curve ne midpoint", CurveNE, North, East, 0.5, 30, 18, 45},
		{"curve ne end", CurveNE, North, East, 1, 48, 24, 0},
		{"curve ne reversed start", CurveNE, East, North, 0, 48, 24, 180},
		{"clamped below", StraightH, West, East, -1, 0, 24, 0},
		{"clamped above", StraightH, West, East, 2, 48, 24, 0},
		{"turntable turning falls back to arc", Turntable, West, South, 1, 24, 48, 90},
		{"turntable straight falls back to line", Turntable, West, East, 0.5, 24, 24, 0},
		{"no track sits at the centre", NoTrack, West, East, 0.7, 24, 24, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y, rot := Pose(tt.kind, tt.entry, tt.exit, tt.progress)
			assert.InDelta(t, tt.wantX, x, 1e-9)
			assert.InDelta(t, tt.wantY, y, 1e-9)
			assert.InDelta(t, tt.wantRot, rot, 1e-9)
		})
	}
}

func TestPoseFor_WorldCoordinates(t *testing.T) {
	e := NewEngineWithDefaults()
	car := e.Cars()[0]
	pose := PoseFor(e.grid, car)
	assert.InDelta(t, 6*TileSize, pose.X, 1e-9)
	assert.InDelta(t, 5*TileSize+TileSize/2, pose.Y, 1e-9)
	assert.InDelta(t, 0, pose.Rotation, 1e-9)
}

func TestPoseFor_ContinuousAcrossTiles(t *testing.T) {
	e := NewEngineWithDefaults()
	prev := PoseFor(e.grid, e.Cars()[0])
	// No arc or line moves faster than one tile edge per unit progress.
	maxStep := TileSize*CarSpeed + 1e-6
	// A quarter arc turns at most 2 rad per unit progress.
	const maxTurn = 5.0

	for i := 0; i < 12*ticksPerTile; i++ {
		e.Tick()
		cur := PoseFor(e.grid, e.Cars()[0])
		step := math.Hypot(cur.X-prev.X, cur.Y-prev.Y)
		if !assert.LessOrEqual(t, step, maxStep, "tick %d", i+1) {
			return
		}
		turn := headingDelta(prev.Rotation, cur.Rotation)
		if !assert.LessOrEqual(t, turn, maxTurn, "tick %d: heading %.2f -> %.2f", i+1, prev.Rotation, cur.Rotation) {
			return
		}
		prev = cur
	}
}

// headingDelta is the smallest angle in degrees between two headings.
func headingDelta(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

func TestHeadingDelta(t *testing.T) {
	assert.InDelta(t, 0, headingDelta(180, -180), 1e-9)
	assert.InDelta(t, 2, headingDelta(359, 1), 1e-9)
	assert.InDelta(t, 90, headingDelta(0, -90), 1e-9)
	assert.InDelta(t, 15, headingDelta(-170, 175), 1e-9)
}

func TestSnapshot_CarsCarryPoses(t *testing.T) {
	e := NewEngineWithDefaults()
	e.TickN(ticksPerTile / 2)
	snap := e.Snapshot()
	if assert.Len(t, snap.Cars, 1) {
		assert.Equal(t, PoseFor(e.grid, e.Cars()[0]), snap.Cars[0].Pose)
	}
}
