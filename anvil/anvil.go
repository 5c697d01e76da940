// Package anvil reads the sector-based region container format that voxel
// worlds persist chunk data in. A region file covers a 32x32 chunk area:
// the first 4 KiB page is a slot table of 1024 big-endian entries (3-byte
// sector offset, 1-byte sector count), the second page holds 1024 big-endian
// u32 modification timestamps, and the rest is sector-aligned compressed
// chunk payloads.
package anvil

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

const (
	// SectorSize is the allocation unit of the container.
	SectorSize = 4096

	// MaxChunks is the number of chunk slots per region (32x32).
	MaxChunks = 1024

	// RegionChunks is the side length of a region in chunks.
	RegionChunks = 32
)

var (
	// ErrChunkAbsent reports an empty slot. This is the normal state of an
	// ungenerated chunk, not a container failure.
	ErrChunkAbsent = errors.New("anvil: chunk absent")

	// ErrCorrupt reports an unreadable container: offsets or lengths out of
	// bounds, an unknown compression tag, or a broken compressed stream.
	ErrCorrupt = errors.New("anvil: corrupt region file")

	// ErrExternalChunk reports a payload stored in a sibling file when no
	// opener for such files was configured.
	ErrExternalChunk = errors.New("anvil: external chunk payload not reachable")
)

// Pos identifies a region by its two region coordinates.
type Pos struct {
	X int32
	Z int32
}

func (p Pos) String() string {
	return fmt.Sprintf("r.%d.%d", p.X, p.Z)
}

// ChunkPos returns the absolute chunk coordinates of slot index i.
func (p Pos) ChunkPos(i int) (cx, cz int32) {
	lx, lz := SlotPos(i)
	return p.X*RegionChunks + int32(lx), p.Z*RegionChunks + int32(lz)
}

// SlotPos returns the region-local chunk coordinates of slot index i.
func SlotPos(i int) (x, z int) {
	return i % RegionChunks, i / RegionChunks
}

// SlotIndex returns the slot index of region-local chunk coordinates.
func SlotIndex(x, z int) int {
	return x + z*RegionChunks
}

// FileName returns the conventional file name of a region, "r.<x>.<z>.mca".
func FileName(pos Pos) string {
	return fmt.Sprintf("r.%d.%d.mca", pos.X, pos.Z)
}

var fileNameRe = regexp.MustCompile(`^r\.(-?\d+)\.(-?\d+)\.mca$`)

// ParseFileName extracts region coordinates from a conventional file name.
func ParseFileName(name string) (Pos, bool) {
	m := fileNameRe.FindStringSubmatch(name)
	if m == nil {
		return Pos{}, false
	}
	x, errX := strconv.ParseInt(m[1], 10, 32)
	z, errZ := strconv.ParseInt(m[2], 10, 32)
	if errX != nil || errZ != nil {
		return Pos{}, false
	}
	return Pos{X: int32(x), Z: int32(z)}, true
}

// externalFileName is the sibling file an oversized chunk payload spills
// into, named by absolute chunk coordinates.
func externalFileName(cx, cz int32) string {
	return fmt.Sprintf("c.%d.%d.mcc", cx, cz)
}
