package chunk

import (
	"errors"
	"fmt"
	"slices"

	"github.com/eak1mov/go-anviltiles/nbt"
)

var (
	// ErrUnsupportedVersion reports a DataVersion outside the supported
	// eras. Layouts are never guessed.
	ErrUnsupportedVersion = errors.New("chunk: unsupported data version")

	// ErrPaletteIndex reports a packed entry pointing past its palette.
	ErrPaletteIndex = errors.New("chunk: palette index out of range")
)

// minDataVersion is the oldest supported DataVersion (the flattening:
// palette-indexed block storage replaced numeric block ids there).
const minDataVersion = 1519

// era captures how a DataVersion range lays out chunk data. Two axes vary:
// where the section list and its keys live, and whether packed entries may
// span 64-bit word boundaries.
type era struct {
	flatKeys bool // section data at the tree root vs inside a Level compound
	spanning bool // dense packed layout vs word-aligned
}

var eras = []struct {
	from int64 // inclusive; table is scanned last-to-first
	era  era
}{
	{from: minDataVersion, era: era{flatKeys: false, spanning: true}},
	{from: 2529, era: era{flatKeys: false, spanning: false}},
	{from: 2844, era: era{flatKeys: true, spanning: false}},
}

func eraFor(version int64) (era, bool) {
	for i := len(eras) - 1; i >= 0; i-- {
		if version >= eras[i].from {
			return eras[i].era, true
		}
	}
	return era{}, false
}

func malformedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", nbt.ErrMalformed, fmt.Sprintf(format, args...))
}

// Load interprets a decoded chunk tree. The format era is selected once
// from the root DataVersion field; unknown versions fail with
// ErrUnsupportedVersion rather than guessing the layout.
func Load(root nbt.Compound) (*Chunk, error) {
	version, ok := root.Int("DataVersion")
	if !ok {
		return nil, fmt.Errorf("%w: no DataVersion field", ErrUnsupportedVersion)
	}
	layout, ok := eraFor(version)
	if !ok {
		return nil, fmt.Errorf("%w: %d predates %d", ErrUnsupportedVersion, version, minDataVersion)
	}

	body := root
	if !layout.flatKeys {
		level, ok := root.Compound("Level")
		if !ok {
			return nil, malformedf("chunk v%d has no Level compound", version)
		}
		body = level
	}

	c := &Chunk{
		DataVersion: int32(version),
		byY:         make(map[int8]*Section),
	}
	if x, ok := body.Int("xPos"); ok {
		c.X = int32(x)
	}
	if z, ok := body.Int("zPos"); ok {
		c.Z = int32(z)
	}
	c.Status, _ = body.String("Status")

	sectionsKey := "Sections"
	if layout.flatKeys {
		sectionsKey = "sections"
	}
	if list, ok := body.List(sectionsKey); ok {
		for _, item := range list.Items {
			node, ok := item.(nbt.Compound)
			if !ok {
				return nil, malformedf("section list holds a %T", item)
			}
			section, err := loadSection(node, layout)
			if err != nil {
				return nil, err
			}
			if section == nil {
				continue
			}
			if c.byY[section.Y] != nil {
				return nil, malformedf("duplicate section Y=%d", section.Y)
			}
			c.byY[section.Y] = section
			c.Sections = append(c.Sections, section)
		}
	}
	slices.SortFunc(c.Sections, func(a, b *Section) int { return int(a.Y) - int(b.Y) })

	if y, ok := body.Int("yPos"); ok {
		c.minY = int(y) * 16
	} else if len(c.Sections) > 0 {
		c.minY = int(c.Sections[0].Y) * 16
	}

	if biomes, ok := body.IntArray("Biomes"); ok {
		switch len(biomes) {
		case 256:
			c.biomes2D = biomes
		case 1024:
			c.biomes3D = biomes
		}
	}

	if err := loadHeightmap(c, body, layout); err != nil {
		return nil, err
	}
	return c, nil
}

func loadSection(node nbt.Compound, layout era) (*Section, error) {
	y, ok := node.Int("Y")
	if !ok {
		return nil, malformedf("section has no Y index")
	}
	section := &Section{Y: int8(y)}
	section.blockLight, _ = node.ByteArray("BlockLight")
	section.skyLight, _ = node.ByteArray("SkyLight")

	var paletteList nbt.List
	var data []int64
	var havePalette, haveData bool
	if layout.flatKeys {
		if states, ok := node.Compound("block_states"); ok {
			paletteList, havePalette = states.List("palette")
			data, haveData = states.LongArray("data")
		}
		if biomes, ok := node.Compound("biomes"); ok {
			if err := loadSectionBiomes(section, biomes); err != nil {
				return nil, err
			}
		}
	} else {
		paletteList, havePalette = node.List("Palette")
		data, haveData = node.LongArray("BlockStates")
	}

	if !havePalette {
		// Light-only sections carry no block storage; keep the light.
		if section.blockLight == nil && section.skyLight == nil {
			return nil, nil
		}
		section.Palette = []BlockState{{Name: "minecraft:air"}}
		return section, nil
	}

	for _, item := range paletteList.Items {
		entry, ok := item.(nbt.Compound)
		if !ok {
			return nil, malformedf("section Y=%d palette holds a %T", section.Y, item)
		}
		name, ok := entry.String("Name")
		if !ok {
			return nil, malformedf("section Y=%d palette entry has no Name", section.Y)
		}
		state := BlockState{Name: name}
		if props, ok := entry.Compound("Properties"); ok {
			state.Properties = make(map[string]string, len(props))
			for k, v := range props {
				if s, ok := v.(string); ok {
					state.Properties[k] = s
				}
			}
		}
		section.Palette = append(section.Palette, state)
	}
	if len(section.Palette) == 0 {
		return nil, malformedf("section Y=%d has an empty palette", section.Y)
	}

	if !haveData {
		if len(section.Palette) != 1 {
			return nil, malformedf("section Y=%d has %d palette entries but no packed data",
				section.Y, len(section.Palette))
		}
		return section, nil // uniform section, nothing to decode
	}

	width := BlockBits(len(section.Palette))
	indices, err := unpack(data, width, BlocksPerSection, layout.spanning)
	if err != nil {
		return nil, fmt.Errorf("section Y=%d: %w", section.Y, err)
	}
	for i, idx := range indices {
		if int(idx) >= len(section.Palette) {
			return nil, fmt.Errorf("%w: section Y=%d entry %d is %d, palette size %d",
				ErrPaletteIndex, section.Y, i, idx, len(section.Palette))
		}
	}
	section.indices = indices
	return section, nil
}

// BlocksPerSection is the logical entry count of a section's packed array.
const BlocksPerSection = 16 * 16 * 16

const biomeCellsPerSection = 4 * 4 * 4

func loadSectionBiomes(section *Section, biomes nbt.Compound) error {
	paletteList, ok := biomes.List("palette")
	if !ok {
		return nil
	}
	for _, item := range paletteList.Items {
		name, ok := item.(string)
		if !ok {
			return malformedf("section Y=%d biome palette holds a %T", section.Y, item)
		}
		section.biomePalette = append(section.biomePalette, name)
	}
	if len(section.biomePalette) == 0 {
		return malformedf("section Y=%d has an empty biome palette", section.Y)
	}
	data, ok := biomes.LongArray("data")
	if !ok {
		if len(section.biomePalette) != 1 {
			return malformedf("section Y=%d has %d biomes but no packed data",
				section.Y, len(section.biomePalette))
		}
		return nil
	}
	indices, err := unpack(data, NaturalBits(len(section.biomePalette)), biomeCellsPerSection, false)
	if err != nil {
		return fmt.Errorf("section Y=%d biomes: %w", section.Y, err)
	}
	for i, idx := range indices {
		if int(idx) >= len(section.biomePalette) {
			return fmt.Errorf("%w: section Y=%d biome cell %d is %d, palette size %d",
				ErrPaletteIndex, section.Y, i, idx, len(section.biomePalette))
		}
	}
	section.biomeIndices = indices
	return nil
}

func loadHeightmap(c *Chunk, body nbt.Compound, layout era) error {
	maps, ok := body.Compound("Heightmaps")
	if !ok {
		return nil
	}
	words, ok := maps.LongArray("MOTION_BLOCKING")
	if !ok || len(words) == 0 {
		return nil
	}

	// The stored width is ceil(log2(worldHeight+1)) with no 4-bit floor;
	// recover it from the array length instead of trusting a height guess.
	const columns = 256
	var width int
	if layout.spanning {
		width = len(words) * 64 / columns
	} else {
		perWord := (columns + len(words) - 1) / len(words)
		width = 64 / perWord
	}
	if width < 1 || width > 16 {
		return malformedf("heightmap of %d words has no plausible entry width", len(words))
	}

	heights, err := unpack(words, width, columns, layout.spanning)
	if err != nil {
		return fmt.Errorf("heightmap: %w", err)
	}
	c.heights = heights
	return nil
}

func unpack(words []int64, width, count int, spanning bool) ([]uint16, error) {
	if spanning {
		return UnpackSpanning(words, width, count)
	}
	return UnpackAligned(words, width, count)
}
