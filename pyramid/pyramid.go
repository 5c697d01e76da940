// Package pyramid assembles rendered region images into a multi-zoom
// tile pyramid. Region images land on the native (finest) tile grid;
// each completed tile is emitted and box-downsampled into its parent,
// children before parents, until the coarsest level.
package pyramid

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/eak1mov/go-anviltiles/anvil"
	"github.com/eak1mov/go-anviltiles/tile"
)

// ErrIncompleteTile reports tiles still waiting for contributors at
// Finalize. Completion ordering is structural, so this surfaces only
// when the caller withheld an expected region.
var ErrIncompleteTile = errors.New("pyramid: incomplete tile")

// RegionPixels is the side of a top-down region image: 32 chunks of
// 16 columns at one pixel per column.
const RegionPixels = 512

// EmitFunc receives each tile the moment it completes. The buffer is
// not modified after the call.
type EmitFunc func(id tile.ID, img *image.NRGBA) error

type tileState struct {
	img       *image.NRGBA // nil until a contributor lands content
	remaining int
}

// Compositor tracks per-tile completion counts for a known region set.
// It is not safe for concurrent use; the orchestrator feeds it from a
// single collector goroutine.
type Compositor struct {
	tileSize int
	levels   int
	emit     EmitFunc

	regions map[anvil.Pos]bool
	tiles   map[tile.ID]*tileState
}

// New builds a compositor for an expected region set. tileSize is the
// square tile side in pixels and must be even; levels is the zoom level
// count, the native level being stored as Z = levels-1. Every region in
// regions must later arrive through AddRegion exactly once.
func New(tileSize, levels int, regions []anvil.Pos, emit EmitFunc) (*Compositor, error) {
	if tileSize <= 0 || tileSize%2 != 0 {
		return nil, fmt.Errorf("pyramid: tile size %d is not a positive even number", tileSize)
	}
	if levels < 1 || levels > 30 {
		return nil, fmt.Errorf("pyramid: level count %d outside [1, 30]", levels)
	}

	c := &Compositor{
		tileSize: tileSize,
		levels:   levels,
		emit:     emit,
		regions:  make(map[anvil.Pos]bool, len(regions)),
		tiles:    make(map[tile.ID]*tileState),
	}

	// Count contributors per native tile, then per parent up the levels.
	for _, pos := range regions {
		if c.regions[pos] {
			return nil, fmt.Errorf("pyramid: region %v listed twice", pos)
		}
		c.regions[pos] = true
		for _, id := range c.baseTiles(pos) {
			c.state(id).remaining++
		}
	}
	level := make(map[tile.ID]bool, len(c.tiles))
	for id := range c.tiles {
		level[id] = true
	}
	for z := c.levels - 1; z > 0; z-- {
		parents := make(map[tile.ID]bool, len(level)/2)
		for id := range level {
			parent := id.Parent()
			c.state(parent).remaining++
			parents[parent] = true
		}
		level = parents
	}
	return c, nil
}

func (c *Compositor) state(id tile.ID) *tileState {
	ts, ok := c.tiles[id]
	if !ok {
		ts = &tileState{}
		c.tiles[id] = ts
	}
	return ts
}

// baseTiles lists the native-level tiles a region's pixels overlap.
func (c *Compositor) baseTiles(pos anvil.Pos) []tile.ID {
	px, pz := int(pos.X)*RegionPixels, int(pos.Z)*RegionPixels
	x0, x1 := floorDiv(px, c.tileSize), floorDiv(px+RegionPixels-1, c.tileSize)
	z0, z1 := floorDiv(pz, c.tileSize), floorDiv(pz+RegionPixels-1, c.tileSize)

	var ids []tile.ID
	for tz := z0; tz <= z1; tz++ {
		for tx := x0; tx <= x1; tx++ {
			ids = append(ids, tile.ID{X: int32(tx), Y: int32(tz), Z: uint8(c.levels - 1)})
		}
	}
	return ids
}

// AddRegion lands one region's image on the native grid. img may be nil
// for a failed or absent region: it still counts toward completion and
// contributes transparency. Completed tiles are emitted and folded into
// their parents before AddRegion returns.
func (c *Compositor) AddRegion(pos anvil.Pos, img *image.NRGBA) error {
	if !c.regions[pos] {
		return fmt.Errorf("pyramid: unexpected region %v", pos)
	}
	delete(c.regions, pos)

	px, pz := int(pos.X)*RegionPixels, int(pos.Z)*RegionPixels
	for _, id := range c.baseTiles(pos) {
		ts := c.tiles[id]
		if img != nil {
			// Intersect the region's pixel rect with the tile's, in
			// world pixels, then shift both to local origins.
			tileOrigin := image.Pt(int(id.X)*c.tileSize, int(id.Y)*c.tileSize)
			world := image.Rect(px, pz, px+RegionPixels, pz+RegionPixels).
				Intersect(image.Rectangle{Min: tileOrigin, Max: tileOrigin.Add(image.Pt(c.tileSize, c.tileSize))})
			if ts.img == nil {
				ts.img = image.NewNRGBA(image.Rect(0, 0, c.tileSize, c.tileSize))
			}
			draw.Draw(ts.img, world.Sub(tileOrigin), img, world.Min.Sub(image.Pt(px, pz)), draw.Src)
		}
		ts.remaining--
		if ts.remaining == 0 {
			if err := c.complete(id, ts); err != nil {
				return err
			}
		}
	}
	return nil
}

// complete emits a finished tile and folds it into its parent, cascading
// as parents fill.
func (c *Compositor) complete(id tile.ID, ts *tileState) error {
	delete(c.tiles, id)
	if ts.img != nil {
		if err := c.emit(id, ts.img); err != nil {
			return err
		}
	}
	if id.Z == 0 {
		return nil
	}

	parent := id.Parent()
	pts := c.tiles[parent]
	if ts.img != nil {
		if pts.img == nil {
			pts.img = image.NewNRGBA(image.Rect(0, 0, c.tileSize, c.tileSize))
		}
		c.downsample(pts.img, ts.img, id.Quadrant())
	}
	pts.remaining--
	if pts.remaining == 0 {
		return c.complete(parent, pts)
	}
	return nil
}

// downsample reduces a child tile into one quadrant of its parent: each
// parent pixel is the rounded per-channel mean of the 2x2 child block.
func (c *Compositor) downsample(parent, child *image.NRGBA, quadrant int) {
	half := c.tileSize / 2
	ox, oy := (quadrant&1)*half, (quadrant>>1)*half

	for y := range half {
		for x := range half {
			di := parent.PixOffset(ox+x, oy+y)
			s0 := child.PixOffset(2*x, 2*y)
			s1 := child.PixOffset(2*x+1, 2*y)
			s2 := child.PixOffset(2*x, 2*y+1)
			s3 := child.PixOffset(2*x+1, 2*y+1)
			for ch := range 4 {
				sum := uint32(child.Pix[s0+ch]) + uint32(child.Pix[s1+ch]) +
					uint32(child.Pix[s2+ch]) + uint32(child.Pix[s3+ch])
				parent.Pix[di+ch] = uint8((sum + 2) / 4)
			}
		}
	}
}

// Finalize verifies every expected region arrived and every tile
// completed.
func (c *Compositor) Finalize() error {
	if len(c.regions) > 0 || len(c.tiles) > 0 {
		return fmt.Errorf("%w: %d regions and %d tiles still pending",
			ErrIncompleteTile, len(c.regions), len(c.tiles))
	}
	return nil
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
