// Package chunk interprets decoded tagged trees as structured chunks:
// 16x16x16 sections holding a block-state palette and a packed index
// array, plus biome, light and heightmap layers where present.
//
// Key names and packing layouts differ across save-format eras; Load
// dispatches on the chunk's DataVersion through an explicit era table.
package chunk

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// BlockState describes one palette entry: a block identifier plus its
// state properties (variant, orientation and similar).
type BlockState struct {
	Name       string
	Properties map[string]string
}

// Key returns a canonical string form, "name[prop=value,...]" with sorted
// properties, usable as a cache key.
func (s BlockState) Key() string {
	if len(s.Properties) == 0 {
		return s.Name
	}
	var sb strings.Builder
	sb.WriteString(s.Name)
	sb.WriteByte('[')
	for i, k := range slices.Sorted(maps.Keys(s.Properties)) {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(s.Properties[k])
	}
	sb.WriteByte(']')
	return sb.String()
}

// Section is a 16x16x16 cube of blocks stored palette-compressed.
type Section struct {
	Y       int8
	Palette []BlockState

	indices      []uint16 // 4096 palette indices; nil means uniform Palette[0]
	blockLight   []byte   // 2048-byte nibble array, may be nil
	skyLight     []byte
	biomePalette []string
	biomeIndices []uint16 // 64 4x4x4 cell indices; nil means uniform
}

func blockOffset(x, y, z int) int {
	return y<<8 | z<<4 | x
}

// Block returns the block state at section-local coordinates, each in [0,16).
func (s *Section) Block(x, y, z int) BlockState {
	if s.indices == nil {
		return s.Palette[0]
	}
	return s.Palette[s.indices[blockOffset(x, y, z)]]
}

// Uniform reports whether the whole section is one block state, letting
// callers skip the per-block walk.
func (s *Section) Uniform() (BlockState, bool) {
	if s.indices == nil {
		return s.Palette[0], true
	}
	return BlockState{}, false
}

// BlockLight returns the stored block-light level [0,15] at section-local
// coordinates, 0 when the layer is absent.
func (s *Section) BlockLight(x, y, z int) byte {
	return nibble(s.blockLight, blockOffset(x, y, z))
}

// SkyLight returns the stored sky-light level [0,15] at section-local
// coordinates, 0 when the layer is absent.
func (s *Section) SkyLight(x, y, z int) byte {
	return nibble(s.skyLight, blockOffset(x, y, z))
}

// nibble reads entry i of a packed half-byte array: even entries occupy
// the low bits of their byte.
func nibble(data []byte, i int) byte {
	if len(data) == 0 {
		return 0
	}
	b := data[i/2]
	if i%2 == 1 {
		return b >> 4
	}
	return b & 0x0f
}

// biome returns the section-local biome name, "" when the layer is absent.
// Biomes are stored per 4x4x4 cell.
func (s *Section) biome(x, y, z int) string {
	if len(s.biomePalette) == 0 {
		return ""
	}
	if s.biomeIndices == nil {
		return s.biomePalette[0]
	}
	return s.biomePalette[s.biomeIndices[(y>>2)<<4|(z>>2)<<2|x>>2]]
}

// Chunk is a vertical slice of the world with a 16x16 block footprint.
// A chunk with zero sections is valid and renders as transparent.
type Chunk struct {
	X, Z        int32
	DataVersion int32
	Status      string

	// Sections in ascending vertical order, unique per Y.
	Sections []*Section

	byY      map[int8]*Section
	minY     int
	heights  []uint16 // 256 surface values relative to minY, nil if absent
	biomes2D []int32  // legacy 256-entry per-column biome ids
	biomes3D []int32  // legacy 1024-entry 4x4x4-cell biome ids
}

// Section returns the section with the given vertical index, nil if absent.
func (c *Chunk) Section(y int8) *Section {
	return c.byY[y]
}

// MinY returns the lowest block y the chunk can hold.
func (c *Chunk) MinY() int {
	return c.minY
}

// MaxY returns the block y just above the highest section.
func (c *Chunk) MaxY() int {
	if len(c.Sections) == 0 {
		return c.minY
	}
	return (int(c.Sections[len(c.Sections)-1].Y) + 1) * 16
}

// Block returns the block state at chunk-local x,z and absolute y.
// Positions outside any stored section are air.
func (c *Chunk) Block(x, y, z int) BlockState {
	s := c.byY[int8(floorDiv16(y))]
	if s == nil {
		return BlockState{Name: "minecraft:air"}
	}
	return s.Block(x, y&15, z)
}

// BlockLight returns the stored block-light level at chunk-local x,z and
// absolute y, 0 outside stored sections.
func (c *Chunk) BlockLight(x, y, z int) byte {
	s := c.byY[int8(floorDiv16(y))]
	if s == nil {
		return 0
	}
	return s.BlockLight(x, y&15, z)
}

// SurfaceHint returns the absolute y of the heightmap surface for a column:
// the highest block the world considers motion-blocking. The bool is false
// when no heightmap was stored. A column the heightmap calls empty yields
// a y below MinY.
func (c *Chunk) SurfaceHint(x, z int) (int, bool) {
	if c.heights == nil {
		return 0, false
	}
	return c.minY + int(c.heights[z*16+x]) - 1, true
}

// Biome returns the biome name at chunk-local x,z and absolute y, "" when
// unknown.
func (c *Chunk) Biome(x, y, z int) string {
	if s := c.byY[int8(floorDiv16(y))]; s != nil {
		if name := s.biome(x, y&15, z); name != "" {
			return name
		}
	}
	if c.biomes3D != nil {
		cy := min(max(y, 0), 255) >> 2
		return legacyBiomeName(c.biomes3D[cy<<4|(z>>2)<<2|x>>2])
	}
	if c.biomes2D != nil {
		return legacyBiomeName(c.biomes2D[z*16+x])
	}
	return ""
}

// fullStatuses are the generation stages at which terrain is complete.
// Chunks in earlier stages are treated as absent rather than drawn
// half-generated.
var fullStatuses = map[string]bool{
	"full":           true,
	"minecraft:full": true,
	"fullchunk":      true,
	"postprocessed":  true,
}

// Generated reports whether chunk generation finished. Chunks without a
// status are assumed generated (very old saves carry none).
func (c *Chunk) Generated() bool {
	return c.Status == "" || fullStatuses[c.Status]
}

func floorDiv16(y int) int {
	if y < 0 {
		return (y - 15) / 16
	}
	return y / 16
}

var legacyBiomeNames = map[int32]string{
	0:  "minecraft:ocean",
	1:  "minecraft:plains",
	2:  "minecraft:desert",
	3:  "minecraft:windswept_hills",
	4:  "minecraft:forest",
	5:  "minecraft:taiga",
	6:  "minecraft:swamp",
	7:  "minecraft:river",
	10: "minecraft:frozen_ocean",
	11: "minecraft:frozen_river",
	12: "minecraft:snowy_plains",
	14: "minecraft:mushroom_fields",
	16: "minecraft:beach",
	21: "minecraft:jungle",
	24: "minecraft:deep_ocean",
	25: "minecraft:stony_shore",
	26: "minecraft:snowy_beach",
	27: "minecraft:birch_forest",
	29: "minecraft:dark_forest",
	30: "minecraft:snowy_taiga",
	35: "minecraft:savanna",
	37: "minecraft:badlands",
}

func legacyBiomeName(id int32) string {
	return legacyBiomeNames[id]
}

func (c *Chunk) String() string {
	return fmt.Sprintf("chunk %d,%d (v%d, %d sections)", c.X, c.Z, c.DataVersion, len(c.Sections))
}
