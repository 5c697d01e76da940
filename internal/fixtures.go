// Package internal builds synthetic chunk payloads and region files for
// package tests, using the real encoders so fixtures exercise the same
// byte layouts the decoders parse.
package internal

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/eak1mov/go-anviltiles/anvil"
	"github.com/eak1mov/go-anviltiles/chunk"
	"github.com/eak1mov/go-anviltiles/nbt"
	"github.com/klauspost/compress/zlib"
)

// SectionFixture describes one synthetic 16x16x16 section.
type SectionFixture struct {
	Y          int8
	Palette    []chunk.BlockState
	Indices    []uint16 // nil emits a uniform section (palette length must be 1)
	BlockLight []byte
}

// ChunkFixture describes a synthetic chunk. The zero value is not useful;
// set DataVersion to pick the encoded era.
type ChunkFixture struct {
	X, Z        int32
	DataVersion int32
	Status      string
	Sections    []SectionFixture
	Heights     []uint16 // optional 256 surface values (y+1 relative to world bottom)
	Biome       string   // optional uniform biome, emitted era-appropriately
}

// ModernVersion is a DataVersion in the flat-keys, aligned-packing era.
const ModernVersion = 3465

// LegacyVersion is a DataVersion in the Level-compound, spanning-packing era.
const LegacyVersion = 2230

// FilledChunk builds a chunk whose section Y=0 is one block type from
// y=0 through topY inclusive and air above.
func FilledChunk(version, x, z int32, name string, topY int) ChunkFixture {
	palette := []chunk.BlockState{{Name: "minecraft:air"}, {Name: name}}
	indices := make([]uint16, chunk.BlocksPerSection)
	for y := 0; y <= topY && y < 16; y++ {
		for i := range 256 {
			indices[y*256+i] = 1
		}
	}
	heights := make([]uint16, 256)
	for i := range heights {
		heights[i] = uint16(topY + 1)
	}
	return ChunkFixture{
		X: x, Z: z,
		DataVersion: version,
		Status:      "minecraft:full",
		Sections:    []SectionFixture{{Y: 0, Palette: palette, Indices: indices}},
		Heights:     heights,
	}
}

// Tree encodes the fixture as a tagged tree in its era's key schema.
func (f ChunkFixture) Tree() nbt.Compound {
	legacy := f.DataVersion < 2844
	spanning := f.DataVersion < 2529

	sections := nbt.List{Element: nbt.TagCompound}
	for _, s := range f.Sections {
		node := nbt.Compound{"Y": int8(s.Y)}
		palette := nbt.List{Element: nbt.TagCompound}
		for _, state := range s.Palette {
			entry := nbt.Compound{"Name": state.Name}
			if len(state.Properties) > 0 {
				props := nbt.Compound{}
				for k, v := range state.Properties {
					props[k] = v
				}
				entry["Properties"] = props
			}
			palette.Items = append(palette.Items, entry)
		}

		var data []int64
		if s.Indices != nil {
			width := chunk.BlockBits(len(s.Palette))
			if spanning {
				data = chunk.PackSpanning(s.Indices, width)
			} else {
				data = chunk.PackAligned(s.Indices, width)
			}
		}

		if legacy {
			node["Palette"] = palette
			if data != nil {
				node["BlockStates"] = data
			}
		} else {
			states := nbt.Compound{"palette": palette}
			if data != nil {
				states["data"] = data
			}
			node["block_states"] = states
			if f.Biome != "" {
				node["biomes"] = nbt.Compound{
					"palette": nbt.List{Element: nbt.TagString, Items: []any{f.Biome}},
				}
			}
		}
		if s.BlockLight != nil {
			node["BlockLight"] = s.BlockLight
		}
		sections.Items = append(sections.Items, node)
	}

	body := nbt.Compound{
		"xPos":   f.X,
		"zPos":   f.Z,
		"Status": f.Status,
	}
	if f.Heights != nil {
		width := 9
		var words []int64
		if spanning {
			words = chunk.PackSpanning(f.Heights, width)
		} else {
			words = chunk.PackAligned(f.Heights, width)
		}
		body["Heightmaps"] = nbt.Compound{"MOTION_BLOCKING": words}
	}

	if legacy {
		body["Sections"] = sections
		root := nbt.Compound{
			"DataVersion": f.DataVersion,
			"Level":       body,
		}
		return root
	}
	body["sections"] = sections
	body["DataVersion"] = f.DataVersion
	return body
}

// Payload encodes the fixture's tree to bytes.
func (f ChunkFixture) Payload() []byte {
	data, err := nbt.Encode("", f.Tree())
	if err != nil {
		panic(fmt.Sprintf("fixture encode: %v", err))
	}
	return data
}

// ZlibCompress deflates data the way region payloads are stored.
func ZlibCompress(data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		panic(err)
	}
	if err := w.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// BuildRegion lays out zlib-compressed chunk payloads in a correctly
// sectored region file: slot table, timestamp page, then payloads packed
// from sector 2 upward in slot order.
func BuildRegion(payloads map[int][]byte, stamps map[int]uint32) []byte {
	header := make([]byte, 2*anvil.SectorSize)
	var body []byte
	sector := uint32(2)

	for i := range anvil.MaxChunks {
		payload, ok := payloads[i]
		if !ok {
			continue
		}
		compressed := ZlibCompress(payload)

		entry := make([]byte, 5+len(compressed))
		binary.BigEndian.PutUint32(entry, uint32(len(compressed)+1))
		entry[4] = 2 // zlib
		copy(entry[5:], compressed)

		sectorCount := uint32((len(entry) + anvil.SectorSize - 1) / anvil.SectorSize)
		padded := make([]byte, sectorCount*anvil.SectorSize)
		copy(padded, entry)
		body = append(body, padded...)

		binary.BigEndian.PutUint32(header[i*4:], sector<<8|sectorCount)
		binary.BigEndian.PutUint32(header[anvil.SectorSize+i*4:], stamps[i])
		sector += sectorCount
	}
	return append(header, body...)
}
