package engine

// Grid is the two-level tile map. Rows are indexed by Y.
type Grid struct {
	width  int
	height int
	cells  [][]Cell
}

// NewGrid allocates an empty grid.
func NewGrid(width, height int) *Grid {
	cells := make([][]Cell, height)
	for y := range cells {
		cells[y] = make([]Cell, width)
	}
	return &Grid{width: width, height: height, cells: cells}
}

// GridFromCells builds a grid from a rectangular cell matrix. The matrix is
// copied.
func GridFromCells(cells [][]Cell) (*Grid, error) {
	if len(cells) == 0 {
		return nil, ErrInvalidLayout
	}
	width := len(cells[0])
	if width == 0 {
		return nil, ErrInvalidLayout
	}
	g := NewGrid(width, len(cells))
	for y, row := range cells {
		if len(row) != width {
			return nil, ErrInvalidLayout
		}
		copy(g.cells[y], row)
	}
	return g, nil
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

// InBounds reports whether (x, y) lies on the grid.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height
}

// CellAt returns a copy of the cell, or the zero cell when out of bounds.
func (g *Grid) CellAt(x, y int) Cell {
	if !g.InBounds(x, y) {
		return Cell{}
	}
	return g.cells[y][x]
}

// TrackAt returns the track on the given level, NoTrack for empty slots and
// for coordinates outside the grid.
func (g *Grid) TrackAt(x, y int, level Level) TrackKind {
	if !g.InBounds(x, y) {
		return NoTrack
	}
	if level == Air {
		return g.cells[y][x].Air
	}
	return g.cells[y][x].Ground
}

func (g *Grid) setTrack(x, y int, level Level, kind TrackKind) {
	if level == Air {
		g.cells[y][x].Air = kind
	} else {
		g.cells[y][x].Ground = kind
	}
}

func (g *Grid) setScenery(x, y int, kind SceneryKind) {
	g.cells[y][x].Scenery = kind
}

func (g *Grid) clear(x, y int) {
	g.cells[y][x] = Cell{}
}

// Cells returns a deep copy of the cell matrix.
func (g *Grid) Cells() [][]Cell {
	out := make([][]Cell, g.height)
	for y := range g.cells {
		out[y] = make([]Cell, g.width)
		copy(out[y], g.cells[y])
	}
	return out
}

// CountTrack counts tiles of the given kind across both levels.
func (g *Grid) CountTrack(kind TrackKind) int {
	count := 0
	for _, row := range g.cells {
		for _, cell := range row {
			if cell.Ground == kind {
				count++
			}
			if cell.Air == kind {
				count++
			}
		}
	}
	return count
}
