package spec

import (
	"github.com/eak1mov/go-anviltiles/tile"
	"github.com/google/hilbert"
)

// Tile codes pack the zoom level into the top bits and a Hilbert-curve
// index of the biased coordinates below it. Signed coordinates shift by
// tile.CoordLimit onto a single 2^29-square grid, whose Hilbert index
// needs 58 bits; the curve keeps spatially close tiles close in the
// directory.
const (
	codeGridSize  = 1 << 29
	codeCoordBias = tile.CoordLimit
	codeZoomShift = 58
)

func EncodeTileID(tileID tile.ID) uint64 {
	h, _ := hilbert.NewHilbert(codeGridSize)
	code, _ := h.MapInverse(int(tileID.X)+codeCoordBias, int(tileID.Y)+codeCoordBias)
	return uint64(tileID.Z)<<codeZoomShift | uint64(code)
}

func DecodeTileID(tileCode uint64) tile.ID {
	h, _ := hilbert.NewHilbert(codeGridSize)
	x, y, _ := h.Map(int(tileCode & (1<<codeZoomShift - 1)))
	return tile.ID{
		X: int32(x - codeCoordBias),
		Y: int32(y - codeCoordBias),
		Z: uint8(tileCode >> codeZoomShift),
	}
}
