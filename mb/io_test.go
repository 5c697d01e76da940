package mb_test

import (
	"maps"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/eak1mov/go-anviltiles/mb"
	"github.com/eak1mov/go-anviltiles/tile"
	"github.com/google/go-cmp/cmp"
)

func TestWriterReader(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "map.mbtiles")

	tiles := map[tile.ID][]byte{
		{X: 0, Y: 0, Z: 0}:   []byte("tile000"),
		{X: 1, Y: 1, Z: 1}:   []byte("tile111"),
		{X: -1, Y: 0, Z: 1}:  []byte("tile-101"),
		{X: -4, Y: -9, Z: 5}: []byte("tile-4-95"),
	}

	writer, err := mb.NewWriter(filePath, mb.WithMetadata(map[string]string{"name": "overworld"}))
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	for tileID, tileData := range tiles {
		if err := writer.WriteTile(tileID, tileData); err != nil {
			t.Errorf("WriteTile(%v) failed: %v", tileID, err)
		}
	}

	// Rewriting replaces the stored row.
	tiles[tile.ID{X: 1, Y: 1, Z: 1}] = []byte("tile111v2")
	if err := writer.WriteTile(tile.ID{X: 1, Y: 1, Z: 1}, []byte("tile111v2")); err != nil {
		t.Fatalf("WriteTile(rewrite) failed: %v", err)
	}

	if err := writer.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reader, err := mb.NewReader(filePath)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	metadata, err := reader.ReadMetadata()
	if err != nil {
		t.Fatalf("ReadMetadata failed: %v", err)
	}
	if got, want := metadata["scheme"], "xyz"; got != want {
		t.Errorf("metadata scheme = %q, want %q", got, want)
	}
	if got, want := metadata["name"], "overworld"; got != want {
		t.Errorf("metadata name = %q, want %q", got, want)
	}

	if got, want := maps.Collect(tile.IterTiles(reader)), tiles; !cmp.Equal(got, want) {
		t.Errorf("VisitTiles data mismatch: %v", cmp.Diff(got, want))
	}

	for tileID, tileData := range tiles {
		data, err := reader.ReadTile(tileID)
		if err != nil {
			t.Errorf("ReadTile(%v) failed: %v", tileID, err)
			continue
		}
		if !cmp.Equal(data, tileData) {
			t.Errorf("ReadTile data mismatch for %v", tileID)
		}
	}

	tileData, err := reader.ReadTile(tile.ID{X: 9, Y: 9, Z: 9})
	if err != nil {
		t.Errorf("ReadTile(missing tile) failed: %v", err)
	}
	if len(tileData) != 0 {
		t.Errorf("ReadTile(missing tile) expected empty tile, got: %v bytes", len(tileData))
	}
}
