package worldmap_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eak1mov/go-anviltiles/anvil"
	"github.com/eak1mov/go-anviltiles/internal"
	"github.com/eak1mov/go-anviltiles/render"
	"github.com/eak1mov/go-anviltiles/tile"
	"github.com/eak1mov/go-anviltiles/worldmap"
	"github.com/eak1mov/go-anviltiles/xyz"
)

// writeWorld creates region files with one stone chunk per listed slot.
func writeWorld(t *testing.T, regions map[anvil.Pos][]int) string {
	t.Helper()
	dir := t.TempDir()
	for pos, slots := range regions {
		payloads := map[int][]byte{}
		stamps := map[int]uint32{}
		for _, slot := range slots {
			cx, cz := pos.ChunkPos(slot)
			fixture := internal.FilledChunk(internal.ModernVersion, cx, cz, "minecraft:stone", 9)
			payloads[slot] = fixture.Payload()
			stamps[slot] = uint32(1000 + slot)
		}
		path := filepath.Join(dir, anvil.FileName(pos))
		require.NoError(t, os.WriteFile(path, internal.BuildRegion(payloads, stamps), 0o666))
	}
	return dir
}

func decodeTile(t *testing.T, data []byte) *image.NRGBA {
	t.Helper()
	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	img := image.NewNRGBA(decoded.Bounds())
	for y := decoded.Bounds().Min.Y; y < decoded.Bounds().Max.Y; y++ {
		for x := decoded.Bounds().Min.X; x < decoded.Bounds().Max.X; x++ {
			img.SetNRGBA(x, y, color.NRGBAModel.Convert(decoded.At(x, y)).(color.NRGBA))
		}
	}
	return img
}

func TestScanRegions(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"r.1.-2.mca", "r.0.0.mca", "r.-3.0.mca", "notes.txt", "r.x.y.mca"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o666))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "r.5.5.mca.d"), 0o777))

	regions, err := worldmap.ScanRegions(dir)
	require.NoError(t, err)

	var got []anvil.Pos
	for _, r := range regions {
		got = append(got, r.Pos)
	}
	require.Equal(t, []anvil.Pos{{X: 1, Z: -2}, {X: -3, Z: 0}, {X: 0, Z: 0}}, got)
}

func TestStampsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	pos := anvil.Pos{X: -3, Z: 7}

	const fingerprint = uint64(0xDEADBEEF)

	var stamps [anvil.MaxChunks]uint32
	stamps[0] = 42
	stamps[1023] = 100500
	require.NoError(t, worldmap.SaveStamps(dir, pos, fingerprint, stamps))

	loaded, ok := worldmap.LoadStamps(dir, pos, fingerprint)
	require.True(t, ok)
	require.Equal(t, stamps, loaded)

	_, ok = worldmap.LoadStamps(dir, anvil.Pos{X: 3, Z: 7}, fingerprint)
	require.False(t, ok)

	_, ok = worldmap.LoadStamps(dir, pos, fingerprint^1)
	require.False(t, ok)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "r.-3.7.stamps"), []byte("short"), 0o666))
	_, ok = worldmap.LoadStamps(dir, pos, fingerprint)
	require.False(t, ok)
}

func TestCachedImageRoundTrip(t *testing.T) {
	dir := t.TempDir()
	pos := anvil.Pos{X: 1, Z: -1}

	img := image.NewNRGBA(image.Rect(0, 0, render.RegionSize, render.RegionSize))
	img.SetNRGBA(100, 200, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	require.NoError(t, worldmap.SaveCachedImage(dir, pos, img))

	loaded, ok := worldmap.LoadCachedImage(dir, pos, img.Bounds())
	require.True(t, ok)
	require.Equal(t, img.Pix, loaded.Pix)

	_, ok = worldmap.LoadCachedImage(dir, pos, image.Rect(0, 0, 16, 16))
	require.False(t, ok)

	_, ok = worldmap.LoadCachedImage(dir, anvil.Pos{X: 9, Z: 9}, img.Bounds())
	require.False(t, ok)
}

func TestRun(t *testing.T) {
	worldDir := writeWorld(t, map[anvil.Pos][]int{
		{X: 0, Z: 0}: {anvil.SlotIndex(0, 0), anvil.SlotIndex(5, 3)},
	})
	outDir := t.TempDir()

	var events []worldmap.Event
	mapper := worldmap.New(
		render.New(render.DefaultTable()),
		worldmap.WithZoomLevels(2),
		worldmap.WithWorkers(2),
		worldmap.WithProgress(func(e worldmap.Event) { events = append(events, e) }),
	)

	sink, err := xyz.NewWriter(filepath.Join(outDir, "{z}", "{x}", "{y}.png"))
	require.NoError(t, err)
	summary, err := mapper.Run(context.Background(), worldDir, sink)
	require.NoError(t, err)

	require.Equal(t, 1, summary.RegionsScanned)
	require.Equal(t, 1, summary.Rendered)
	require.Equal(t, 0, summary.Reused)
	require.Empty(t, summary.Failed)
	require.Equal(t, 2, summary.ChunksRendered)
	require.Equal(t, 2, summary.TilesWritten)
	require.Empty(t, summary.UnknownBlocks)

	reader, err := xyz.NewReader(filepath.Join(outDir, "{z}", "{x}", "{y}.png"))
	require.NoError(t, err)

	data, err := reader.ReadTile(tile.ID{X: 0, Y: 0, Z: 1})
	require.NoError(t, err)
	native := decodeTile(t, data)
	stone := color.NRGBA{R: 112, G: 112, B: 112, A: 255}
	require.Equal(t, stone, native.NRGBAAt(0, 0))
	require.Equal(t, stone, native.NRGBAAt(5*16+15, 3*16+15))
	require.Equal(t, color.NRGBA{}, native.NRGBAAt(16, 16))

	data, err = reader.ReadTile(tile.ID{X: 0, Y: 0, Z: 0})
	require.NoError(t, err)
	overview := decodeTile(t, data)
	require.Equal(t, stone, overview.NRGBAAt(0, 0))
	require.Equal(t, color.NRGBA{}, overview.NRGBAAt(100, 100))

	require.NotEmpty(t, events)
	require.Equal(t, worldmap.EventBegin, events[0].Kind)
	require.Equal(t, 1, events[0].Regions)
	require.Equal(t, 2, events[0].Chunks)
	require.Equal(t, worldmap.EventEnd, events[len(events)-1].Kind)
	chunkEvents := 0
	for _, e := range events {
		if e.Kind == worldmap.EventChunk {
			chunkEvents++
		}
	}
	require.Equal(t, summary.ChunksRendered, chunkEvents)
}

func TestRunCorruptRegionIsolated(t *testing.T) {
	worldDir := writeWorld(t, map[anvil.Pos][]int{
		{X: 0, Z: 0}: {anvil.SlotIndex(0, 0)},
	})
	require.NoError(t, os.WriteFile(filepath.Join(worldDir, "r.1.0.mca"), []byte("garbage"), 0o666))
	outDir := t.TempDir()

	mapper := worldmap.New(render.New(render.DefaultTable()), worldmap.WithZoomLevels(1))
	sink, err := xyz.NewWriter(filepath.Join(outDir, "{z}", "{x}", "{y}.png"))
	require.NoError(t, err)
	summary, err := mapper.Run(context.Background(), worldDir, sink)
	require.NoError(t, err)

	require.Equal(t, 2, summary.RegionsScanned)
	require.Equal(t, 1, summary.Rendered)
	require.Len(t, summary.Failed, 1)
	require.Equal(t, anvil.Pos{X: 1, Z: 0}, summary.Failed[0].Region)
	require.ErrorIs(t, summary.Failed[0].Err, anvil.ErrCorrupt)

	// The failed region stays transparent: its tile is never written.
	require.Equal(t, 1, summary.TilesWritten)
	require.FileExists(t, filepath.Join(outDir, "1", "0", "0.png"))
	require.NoFileExists(t, filepath.Join(outDir, "1", "1", "0.png"))
}

func TestRunReusesCache(t *testing.T) {
	worldDir := writeWorld(t, map[anvil.Pos][]int{
		{X: 0, Z: 0}: {anvil.SlotIndex(0, 0), anvil.SlotIndex(1, 1)},
	})
	cacheDir := t.TempDir()

	run := func(t *testing.T) (*worldmap.Summary, []byte) {
		t.Helper()
		outDir := t.TempDir()
		mapper := worldmap.New(
			render.New(render.DefaultTable()),
			worldmap.WithZoomLevels(1),
			worldmap.WithCache(cacheDir, worldmap.CacheAuto),
		)
		sink, err := xyz.NewWriter(filepath.Join(outDir, "{z}", "{x}", "{y}.png"))
		require.NoError(t, err)
		summary, err := mapper.Run(context.Background(), worldDir, sink)
		require.NoError(t, err)
		data, err := os.ReadFile(filepath.Join(outDir, "1", "0", "0.png"))
		require.NoError(t, err)
		return summary, data
	}

	first, firstTile := run(t)
	require.Equal(t, 1, first.Rendered)
	require.Equal(t, 0, first.Reused)
	require.Equal(t, 2, first.ChunksRendered)

	second, secondTile := run(t)
	require.Equal(t, 0, second.Rendered)
	require.Equal(t, 1, second.Reused)
	require.Equal(t, 0, second.ChunksRendered)
	require.Equal(t, 1, second.TilesWritten)
	require.Equal(t, firstTile, secondTile)
}

func TestRunCacheIgnoredAcrossSettings(t *testing.T) {
	worldDir := writeWorld(t, map[anvil.Pos][]int{
		{X: 0, Z: 0}: {anvil.SlotIndex(0, 0)},
	})
	cacheDir := t.TempDir()

	run := func(t *testing.T, opts ...render.Option) *worldmap.Summary {
		t.Helper()
		mapper := worldmap.New(
			render.New(render.DefaultTable(), opts...),
			worldmap.WithZoomLevels(1),
			worldmap.WithCache(cacheDir, worldmap.CacheAuto),
		)
		sink, err := xyz.NewWriter(filepath.Join(t.TempDir(), "{z}", "{x}", "{y}.png"))
		require.NoError(t, err)
		summary, err := mapper.Run(context.Background(), worldDir, sink)
		require.NoError(t, err)
		return summary
	}

	first := run(t)
	require.Equal(t, 1, first.Rendered)

	// The cached image was shaded differently, so it must be rebuilt
	// even though no chunk timestamp changed.
	shaded := run(t, render.WithTerrainShade(true))
	require.Equal(t, 1, shaded.Rendered)
	require.Equal(t, 0, shaded.Reused)

	// Matching settings again reuse the refreshed cache.
	again := run(t, render.WithTerrainShade(true))
	require.Equal(t, 0, again.Rendered)
	require.Equal(t, 1, again.Reused)
}

func TestRunCancelled(t *testing.T) {
	worldDir := writeWorld(t, map[anvil.Pos][]int{
		{X: 0, Z: 0}: {anvil.SlotIndex(0, 0)},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mapper := worldmap.New(render.New(render.DefaultTable()), worldmap.WithZoomLevels(1))
	sink, err := xyz.NewWriter(filepath.Join(t.TempDir(), "{z}", "{x}", "{y}.png"))
	require.NoError(t, err)
	_, err = mapper.Run(ctx, worldDir, sink)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunRejectsIsometricMode(t *testing.T) {
	mapper := worldmap.New(render.New(render.DefaultTable(), render.WithMode(render.ModeIsometric)))
	sink, err := xyz.NewWriter(filepath.Join(t.TempDir(), "{z}", "{x}", "{y}.png"))
	require.NoError(t, err)
	_, err = mapper.Run(context.Background(), t.TempDir(), sink)
	require.Error(t, err)
}

func TestRenderRegionsIsometric(t *testing.T) {
	worldDir := writeWorld(t, map[anvil.Pos][]int{
		{X: 0, Z: 0}:  {anvil.SlotIndex(0, 0)},
		{X: -1, Z: 2}: {anvil.SlotIndex(4, 4)},
	})
	outDir := filepath.Join(t.TempDir(), "iso")

	mapper := worldmap.New(render.New(render.DefaultTable(), render.WithMode(render.ModeIsometric)))
	summary, err := mapper.RenderRegions(context.Background(), worldDir, outDir)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Rendered)
	require.Equal(t, 2, summary.TilesWritten)
	require.Empty(t, summary.Failed)

	for _, name := range []string{"r.0.0.png", "r.-1.2.png"} {
		data, err := os.ReadFile(filepath.Join(outDir, name))
		require.NoError(t, err)
		img := decodeTile(t, data)
		require.Equal(t, image.Rect(0, 0, render.IsoWidth, render.IsoHeight), img.Bounds())
	}

	// Column (0,0) of region (0,0) tops out at y=9, so its top face pair
	// sits at screen y 319-9 with the darkened side pair below it.
	data, err := os.ReadFile(filepath.Join(outDir, "r.0.0.png"))
	require.NoError(t, err)
	img := decodeTile(t, data)
	stone := color.NRGBA{R: 112, G: 112, B: 112, A: 255}
	require.Equal(t, stone, img.NRGBAAt(1022, 310))
	require.Equal(t, stone, img.NRGBAAt(1023, 310))
	side := img.NRGBAAt(1022, 311)
	require.Equal(t, uint8(255), side.A)
	require.Less(t, side.R, stone.R)
}

func TestRenderRegionsBounds(t *testing.T) {
	worldDir := writeWorld(t, map[anvil.Pos][]int{
		{X: 0, Z: 0}: {anvil.SlotIndex(0, 0)},
		{X: 9, Z: 9}: {anvil.SlotIndex(0, 0)},
	})
	outDir := filepath.Join(t.TempDir(), "iso")

	mapper := worldmap.New(
		render.New(render.DefaultTable(), render.WithMode(render.ModeIsometric)),
		worldmap.WithBounds(worldmap.Bounds{MinX: 0, MinZ: 0, MaxX: 0, MaxZ: 0}),
	)
	summary, err := mapper.RenderRegions(context.Background(), worldDir, outDir)
	require.NoError(t, err)
	require.Equal(t, 1, summary.RegionsScanned)
	require.FileExists(t, filepath.Join(outDir, "r.0.0.png"))
	require.NoFileExists(t, filepath.Join(outDir, "r.9.9.png"))
}
