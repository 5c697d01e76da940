package render

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"image"
	"math"

	"github.com/eak1mov/go-anviltiles/chunk"
)

// Mode selects the projection, renderer-wide.
type Mode int

const (
	ModeTopDown Mode = iota
	ModeIsometric
)

func (m Mode) String() string {
	switch m {
	case ModeTopDown:
		return "topdown"
	case ModeIsometric:
		return "isometric"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "topdown", "":
		return ModeTopDown, nil
	case "isometric", "iso":
		return ModeIsometric, nil
	}
	return 0, fmt.Errorf("render: unknown mode %q", s)
}

const (
	// RegionSize is the side of a top-down region image in pixels:
	// 32 chunks of 16 columns, one pixel per column.
	RegionSize = 512

	// IsoWidth and IsoHeight bound the 2:1 projection of one region.
	IsoWidth  = 2048
	IsoHeight = 1408

	isoOffsetX = 1022
	isoOffsetY = 319
)

// Default shading constants. The exact values are cosmetic policy, not a
// format contract; they are configurable through options.
const (
	defaultOcclusionFactor = 0.8

	terrainShadow = 180.0 / 255 // column surface below its north neighbor
	terrainEqual  = 220.0 / 255
	terrainLit    = 1.0 // column surface above its north neighbor

	nightFloor = 0.25 // brightness at block light 0
)

// Renderer rasterizes chunks with one fixed configuration. It holds no
// per-region state and is safe for concurrent use by workers.
type Renderer struct {
	table           *Table
	mode            Mode
	terrainShade    bool
	nightShade      bool
	occlusionFactor float64
}

type Option func(*Renderer)

func WithMode(mode Mode) Option {
	return func(r *Renderer) { r.mode = mode }
}

// WithTerrainShade toggles slope shading against the north neighbor
// column: 180/255 when the neighbor is higher, 220/255 when level,
// unshaded when lower.
func WithTerrainShade(enabled bool) Option {
	return func(r *Renderer) { r.terrainShade = enabled }
}

// WithNightShade toggles scaling by stored block light above the surface.
func WithNightShade(enabled bool) Option {
	return func(r *Renderer) { r.nightShade = enabled }
}

// WithOcclusionFactor sets the darkening applied to blocks with a
// light-blocking block directly above them.
func WithOcclusionFactor(factor float64) Option {
	return func(r *Renderer) { r.occlusionFactor = factor }
}

// New creates a Renderer over an appearance table. Without options it
// renders plain top-down colors: terrain and night shading off, occlusion
// factor 0.8.
func New(table *Table, opts ...Option) *Renderer {
	r := &Renderer{
		table:           table,
		occlusionFactor: defaultOcclusionFactor,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Renderer) Mode() Mode {
	return r.mode
}

// TerrainShaded reports whether slope shading is enabled. Staleness
// tracking widens southward when it is, because a column's shade depends
// on its north neighbor.
func (r *Renderer) TerrainShaded() bool {
	return r.terrainShade
}

func (r *Renderer) Table() *Table {
	return r.table
}

// Fingerprint folds every setting that affects output pixels into one
// value. Two renderers with equal fingerprints produce identical images
// from identical chunks.
func (r *Renderer) Fingerprint() uint64 {
	hash := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], r.table.Fingerprint())
	hash.Write(buf[:])
	flags := byte(r.mode) << 2
	if r.terrainShade {
		flags |= 1
	}
	if r.nightShade {
		flags |= 2
	}
	hash.Write([]byte{flags})
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(r.occlusionFactor))
	hash.Write(buf[:])
	return hash.Sum64()
}

// RegionImage allocates the transparent canvas one region renders into,
// sized for the configured mode.
func (r *Renderer) RegionImage() *image.NRGBA {
	if r.mode == ModeIsometric {
		return image.NewNRGBA(image.Rect(0, 0, IsoWidth, IsoHeight))
	}
	return image.NewNRGBA(image.Rect(0, 0, RegionSize, RegionSize))
}

type columnSample struct {
	y   int
	app Appearance
}

// columnSamples walks a block column from the top down, gathering the
// visible blocks in front-to-back order. The walk stops once accumulated
// alpha is effectively opaque or a fully opaque light-blocking block is
// consumed, bounding work to the first opaque block rather than world
// height.
func (r *Renderer) columnSamples(c *chunk.Chunk, x, z int, buf []columnSample) []columnSample {
	startY := c.MaxY() - 1
	if hint, ok := c.SurfaceHint(x, z); ok {
		startY = min(startY, hint)
	}

	acc := 0.0
	for y := startY; y >= c.MinY(); y-- {
		app := r.table.Resolve(c.Block(x, y, z))
		if !app.Visible() {
			continue
		}
		buf = append(buf, columnSample{y: y, app: app})
		acc += app.Alpha * (1 - acc)
		if acc >= 0.999 || (app.Occludes && app.Alpha >= 1) {
			break
		}
	}
	return buf
}

// sampleShade combines the per-block shading terms for one sample.
// Light-emitting blocks render at full brightness.
func (r *Renderer) sampleShade(c *chunk.Chunk, x, z int, s columnSample, terrain float64) float64 {
	if s.app.Emits {
		return 1
	}
	shade := terrain
	above := r.table.Resolve(c.Block(x, s.y+1, z))
	if above.Occludes && above.Alpha >= 1 {
		shade *= r.occlusionFactor
	}
	if r.nightShade {
		light := float64(c.BlockLight(x, s.y+1, z))
		shade *= nightFloor + (1-nightFloor)*light/15
	}
	return shade
}

// terrainFactor compares a column's surface height against its north
// neighbor. At the chunk's north edge the neighbor comes from the north
// chunk; with none available the column shades as level ground.
func (r *Renderer) terrainFactor(c, north *chunk.Chunk, x, z int) float64 {
	if !r.terrainShade {
		return 1
	}
	cur := r.surfaceY(c, x, z)
	var neighbor int
	switch {
	case z > 0:
		neighbor = r.surfaceY(c, x, z-1)
	case north != nil:
		neighbor = r.surfaceY(north, x, 15)
	default:
		return terrainEqual
	}
	switch {
	case neighbor > cur:
		return terrainShadow
	case neighbor == cur:
		return terrainEqual
	default:
		return terrainLit
	}
}

func (r *Renderer) surfaceY(c *chunk.Chunk, x, z int) int {
	if y, ok := c.SurfaceHint(x, z); ok {
		return y
	}
	for y := c.MaxY() - 1; y >= c.MinY(); y-- {
		if app := r.table.Resolve(c.Block(x, y, z)); app.Occludes && app.Alpha >= 1 {
			return y
		}
	}
	return c.MinY() - 1
}

// sampleColor resolves a sample's base color as linear floats, applying
// biome tint where the appearance calls for it.
func (r *Renderer) sampleColor(c *chunk.Chunk, x, z int, s columnSample) (float64, float64, float64) {
	if s.app.Tint == TintNone {
		return float64(s.app.R) / 255, float64(s.app.G) / 255, float64(s.app.B) / 255
	}
	return applyTint(s.app, c.Biome(x, s.y, z))
}
