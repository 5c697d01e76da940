package av_test

import (
	"fmt"
	"maps"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/eak1mov/go-anviltiles/av"
	"github.com/eak1mov/go-anviltiles/tile"
	"github.com/google/go-cmp/cmp"
)

// syntheticTiles builds a tile set spread over the signed grid across a
// few zoom levels. About half the payloads repeat so the writer's
// content dedup path is exercised.
func syntheticTiles(rng *rand.Rand, count int) map[tile.ID][]byte {
	tiles := make(map[tile.ID][]byte, count)
	for len(tiles) < count {
		z := uint8(rng.IntN(8))
		span := int32(1) << (z + 3)
		tileID := tile.ID{
			X: rng.Int32N(2*span) - span,
			Y: rng.Int32N(2*span) - span,
			Z: z,
		}
		if rng.IntN(2) == 0 {
			tiles[tileID] = []byte("shared-payload")
		} else {
			tiles[tileID] = fmt.Appendf(nil, "tile-%v-%v", len(tiles), rng.Uint64())
		}
	}
	return tiles
}

func TestWriterReader(t *testing.T) {
	for _, tc := range []struct {
		name  string
		count int
	}{
		{name: "empty", count: 0},
		{name: "small", count: 10},
		{name: "medium", count: 5000},
		{name: "large", count: 150000},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rng := rand.New(rand.NewPCG(17, uint64(tc.count)))
			tiles := syntheticTiles(rng, tc.count)

			filePath := filepath.Join(t.TempDir(), "map.avtiles")
			writerMetadata := []byte(`{"foo":"bar"}`)
			headerMetadata := av.HeaderMetadata{
				TileCompression: av.CompressionNone,
				TileFormat:      av.TileFormatPng,
				MaxZoom:         7,
				TileSize:        512,
			}

			writer, err := av.NewWriter(filePath,
				av.WithMetadata(writerMetadata),
				av.WithHeaderMetadata(headerMetadata))
			if err != nil {
				t.Fatalf("NewWriter failed: %v", err)
			}
			defer writer.Close()

			for tileID, tileData := range tiles {
				if err := writer.WriteTile(tileID, tileData); err != nil {
					t.Fatalf("WriteTile failed: %v", err)
				}
			}

			if err := writer.Finalize(); err != nil {
				t.Fatalf("Finalize failed: %v", err)
			}

			reader, err := av.NewFileReader(filePath)
			if err != nil {
				t.Fatalf("NewFileReader failed: %v", err)
			}
			defer reader.Close()

			if got, want := reader.HeaderMetadata(), headerMetadata; !cmp.Equal(got, want) {
				t.Errorf("HeaderMetadata mismatch (-want+got):\n%v", cmp.Diff(want, got))
			}

			readerMetadata, err := reader.ReadMetadata()
			if err != nil {
				t.Fatalf("ReadMetadata failed: %v", err)
			}
			if got, want := readerMetadata, writerMetadata; !cmp.Equal(got, want) {
				t.Errorf("ReadMetadata data mismatch")
			}

			if got, want := maps.Collect(reader.Tiles()), tiles; tc.count > 0 && !cmp.Equal(got, want) {
				t.Errorf("Tiles data mismatch")
			}

			checked := 0
			for tileID, tileData := range tiles {
				if checked++; checked > 10_000 {
					break
				}
				got, err := reader.ReadTile(tileID)
				if err != nil {
					t.Fatalf("ReadTile(%v) failed: %v", tileID, err)
				}
				if !cmp.Equal(got, tileData) {
					t.Fatalf("ReadTile(%v) = %v, want = %v", tileID, got, tileData)
				}
			}

			missing, err := reader.ReadTile(tile.ID{X: -100500, Y: 100500, Z: 29})
			if err != nil {
				t.Fatalf("ReadTile(missing tile) failed: %v", err)
			}
			if len(missing) != 0 {
				t.Errorf("ReadTile(missing tile) expected empty tile, got %v bytes", len(missing))
			}
		})
	}
}
