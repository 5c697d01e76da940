// Package tile provides common tile interfaces and types.
//
// Tile coordinates are signed and origin-centered: a voxel world grows in
// every direction from block (0,0), so tile grids have no fixed side and
// no nonnegative-coordinate guarantee. Z is the zoom level in the usual
// web order, 0 being the coarsest stored level.
package tile

// ID represents tile coordinates in a signed XYZ scheme.
type ID struct {
	X int32
	Y int32
	Z uint8
}

// CoordLimit bounds |X| and |Y| at any zoom level.
const CoordLimit = 1 << 28

func (t ID) Valid() bool {
	return t.Z < 31 &&
		t.X >= -CoordLimit && t.X < CoordLimit &&
		t.Y >= -CoordLimit && t.Y < CoordLimit
}

// Parent returns the tile one zoom level up that covers this tile.
// Halving is floored so negative coordinates pair correctly:
// children (-2,-1) and (-1,-1) both map to parent (-1,-1).
func (t ID) Parent() ID {
	return ID{X: floorHalf(t.X), Y: floorHalf(t.Y), Z: t.Z - 1}
}

// Children returns the four tiles one zoom level down covered by this tile,
// in (2x,2y), (2x+1,2y), (2x,2y+1), (2x+1,2y+1) order.
func (t ID) Children() [4]ID {
	x, y, z := t.X*2, t.Y*2, t.Z+1
	return [4]ID{
		{X: x, Y: y, Z: z},
		{X: x + 1, Y: y, Z: z},
		{X: x, Y: y + 1, Z: z},
		{X: x + 1, Y: y + 1, Z: z},
	}
}

// Quadrant returns which quadrant of its parent this tile occupies:
// 0 top-left, 1 top-right, 2 bottom-left, 3 bottom-right.
func (t ID) Quadrant() int {
	q := 0
	if t.X-floorHalf(t.X)*2 != 0 {
		q |= 1
	}
	if t.Y-floorHalf(t.Y)*2 != 0 {
		q |= 2
	}
	return q
}

func floorHalf(v int32) int32 {
	if v < 0 {
		return (v - 1) / 2
	}
	return v / 2
}

// Writer defines an interface for writing tiles to a tileset.
type Writer interface {
	// WriteTile writes a single tile to the tileset.
	// Writing a tile twice replaces the first write where the
	// implementation supports it.
	WriteTile(tileID ID, tileData []byte) error

	// Finalize completes the writing process: flushes buffers, writes header and indices.
	// It must be called before closing the Writer.
	Finalize() error
}

type Reader interface {
	// ReadTile reads a single tile from the tileset.
	// It returns the tile data or an error if the tile cannot be read.
	// If the tile does not exist, it returns an empty slice with no error.
	ReadTile(tileID ID) ([]byte, error)
}

type Visitor interface {
	// VisitTiles visits all tiles in the tileset, calling the visitor for each.
	// It returns an error if visiting fails.
	// Order of tiles, upfront cpu and memory consumption are implementation-defined.
	VisitTiles(visitor func(ID, []byte) error) error
}

// Location represents the absolute location of tile data inside a tileset file.
type Location struct {
	Offset uint64
	Length uint64
}

type LocationReader interface {
	ReadLocation(tileID ID) (Location, error)
}

type LocationVisitor interface {
	VisitLocations(visitor func(ID, Location) error) error
}
