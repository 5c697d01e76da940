package worldmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/willf/bitset"

	"github.com/eak1mov/go-anviltiles/anvil"
	"github.com/eak1mov/go-anviltiles/internal"
)

func writeRegionFile(t *testing.T, dir string, pos anvil.Pos, payloads map[int][]byte, stamps map[int]uint32) RegionFile {
	t.Helper()
	path := filepath.Join(dir, anvil.FileName(pos))
	require.NoError(t, os.WriteFile(path, internal.BuildRegion(payloads, stamps), 0o666))
	return RegionFile{Pos: pos, Path: path}
}

func TestReadRegionHeader(t *testing.T) {
	dir := t.TempDir()
	payload := internal.FilledChunk(internal.ModernVersion, 0, 0, "minecraft:stone", 9).Payload()
	file := writeRegionFile(t, dir, anvil.Pos{}, map[int][]byte{0: payload, 33: payload}, map[int]uint32{0: 100, 33: 200})

	populated, stamps, err := readRegionHeader(file.Path)
	require.NoError(t, err)
	require.Equal(t, uint(2), populated.Count())
	require.True(t, populated.Test(0))
	require.True(t, populated.Test(33))
	require.Equal(t, uint32(100), stamps[0])
	require.Equal(t, uint32(200), stamps[33])
	require.Equal(t, uint32(0), stamps[1])
}

func TestReadRegionHeaderTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.0.0.mca")
	require.NoError(t, os.WriteFile(path, []byte("not a region"), 0o666))

	_, _, err := readRegionHeader(path)
	require.ErrorIs(t, err, anvil.ErrCorrupt)
}

func TestPlanRegion(t *testing.T) {
	dir := t.TempDir()
	cacheDir := t.TempDir()
	payload := internal.FilledChunk(internal.ModernVersion, 0, 0, "minecraft:stone", 9).Payload()
	file := writeRegionFile(t, dir, anvil.Pos{}, map[int][]byte{0: payload, 33: payload}, map[int]uint32{0: 100, 33: 200})

	const fingerprint = 0xC0FFEE

	t.Run("no cache directory", func(t *testing.T) {
		plan := planRegion(file, "", CacheAuto, fingerprint)
		require.NoError(t, plan.err)
		require.False(t, plan.useCached)
		require.True(t, plan.stale.Equal(plan.populated))
	})

	t.Run("no cached stamps", func(t *testing.T) {
		plan := planRegion(file, cacheDir, CacheAuto, fingerprint)
		require.NoError(t, plan.err)
		require.False(t, plan.useCached)
		require.True(t, plan.stale.Equal(plan.populated))
	})

	var cached [anvil.MaxChunks]uint32
	cached[0] = 100
	cached[33] = 200
	require.NoError(t, SaveStamps(cacheDir, anvil.Pos{}, fingerprint, cached))

	t.Run("stamps match", func(t *testing.T) {
		plan := planRegion(file, cacheDir, CacheAuto, fingerprint)
		require.NoError(t, plan.err)
		require.True(t, plan.useCached)
		require.True(t, plan.stale.None())
		require.True(t, plan.reuse())
	})

	t.Run("refresh mode ignores cache", func(t *testing.T) {
		plan := planRegion(file, cacheDir, CacheRefresh, fingerprint)
		require.False(t, plan.useCached)
		require.True(t, plan.stale.Equal(plan.populated))
	})

	t.Run("different settings ignore cache", func(t *testing.T) {
		// Stamps written under other renderer settings describe an image
		// those settings produced; they must not shortcut this render.
		plan := planRegion(file, cacheDir, CacheAuto, fingerprint+1)
		require.False(t, plan.useCached)
		require.True(t, plan.stale.Equal(plan.populated))
	})

	cached[33] = 150
	require.NoError(t, SaveStamps(cacheDir, anvil.Pos{}, fingerprint, cached))

	t.Run("one chunk changed", func(t *testing.T) {
		plan := planRegion(file, cacheDir, CacheAuto, fingerprint)
		require.True(t, plan.useCached)
		require.Equal(t, uint(1), plan.stale.Count())
		require.True(t, plan.stale.Test(33))
		require.False(t, plan.reuse())
	})
}

func newPlan(pos anvil.Pos, stale ...int) *regionPlan {
	plan := &regionPlan{
		pos:       pos,
		populated: bitset.New(anvil.MaxChunks),
		stale:     bitset.New(anvil.MaxChunks),
	}
	for _, i := range stale {
		plan.populated.Set(uint(i))
		plan.stale.Set(uint(i))
	}
	return plan
}

func TestPropagateSouth(t *testing.T) {
	north := newPlan(anvil.Pos{}, anvil.SlotIndex(3, 5), anvil.SlotIndex(7, 31))
	south := newPlan(anvil.Pos{Z: 1})
	lone := newPlan(anvil.Pos{X: 5, Z: 5}, anvil.SlotIndex(0, 31))
	plans := map[anvil.Pos]*regionPlan{
		north.pos: north,
		south.pos: south,
		lone.pos:  lone,
	}

	propagateSouth(plans)

	require.True(t, north.stale.Test(uint(anvil.SlotIndex(3, 5))))
	require.True(t, north.stale.Test(uint(anvil.SlotIndex(3, 6))))
	require.True(t, north.stale.Test(uint(anvil.SlotIndex(7, 31))))
	require.Equal(t, uint(3), north.stale.Count())

	// Bottom-row staleness crosses into the scheduled southern region.
	require.True(t, south.stale.Test(uint(anvil.SlotIndex(7, 0))))
	require.Equal(t, uint(1), south.stale.Count())

	// No region south of the lone one, nothing to grow into.
	require.Equal(t, uint(1), lone.stale.Count())
}

func TestPropagateSouthSkipsFailedRegions(t *testing.T) {
	north := newPlan(anvil.Pos{}, anvil.SlotIndex(0, 31))
	south := newPlan(anvil.Pos{Z: 1})
	south.err = os.ErrNotExist
	plans := map[anvil.Pos]*regionPlan{north.pos: north, south.pos: south}

	propagateSouth(plans)

	require.True(t, south.stale.None())
}

func TestCacheModeParse(t *testing.T) {
	for _, name := range []string{"auto", "refresh", "readonly", "off"} {
		mode, err := ParseCacheMode(name)
		require.NoError(t, err)
		require.Equal(t, name, mode.String())
	}

	mode, err := ParseCacheMode("")
	require.NoError(t, err)
	require.Equal(t, CacheAuto, mode)

	_, err = ParseCacheMode("sometimes")
	require.Error(t, err)
}
