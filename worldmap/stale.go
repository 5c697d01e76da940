package worldmap

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/willf/bitset"

	"github.com/eak1mov/go-anviltiles/anvil"
)

// CacheMode controls how a run uses the per-region render cache.
type CacheMode int

const (
	// CacheAuto uses the cache and updates it after rendering.
	CacheAuto CacheMode = iota
	// CacheRefresh ignores the cache but rewrites it.
	CacheRefresh
	// CacheReadOnly uses the cache and never writes it.
	CacheReadOnly
	// CacheOff ignores the cache entirely.
	CacheOff
)

func (m CacheMode) String() string {
	switch m {
	case CacheAuto:
		return "auto"
	case CacheRefresh:
		return "refresh"
	case CacheReadOnly:
		return "readonly"
	case CacheOff:
		return "off"
	}
	return fmt.Sprintf("CacheMode(%d)", int(m))
}

func ParseCacheMode(s string) (CacheMode, error) {
	switch s {
	case "auto", "":
		return CacheAuto, nil
	case "refresh":
		return CacheRefresh, nil
	case "readonly":
		return CacheReadOnly, nil
	case "off":
		return CacheOff, nil
	}
	return 0, fmt.Errorf("worldmap: unknown cache mode %q", s)
}

func (m CacheMode) reads() bool  { return m == CacheAuto || m == CacheReadOnly }
func (m CacheMode) writes() bool { return m == CacheAuto || m == CacheRefresh }

// regionPlan is the outcome of the staleness pre-pass for one region.
type regionPlan struct {
	pos  anvil.Pos
	path string
	err  error // header unreadable; the region becomes a recorded failure

	populated *bitset.BitSet
	stamps    [anvil.MaxChunks]uint32
	stale     *bitset.BitSet
	useCached bool // start from the cached image instead of a blank one
}

func (p *regionPlan) reuse() bool {
	return p.err == nil && p.useCached && p.stale.None()
}

// readRegionHeader reads just the 8 KiB region header: which slots hold
// chunks and their timestamps. The pre-pass stays cheap regardless of
// region payload size.
func readRegionHeader(path string) (*bitset.BitSet, [anvil.MaxChunks]uint32, error) {
	var stamps [anvil.MaxChunks]uint32
	populated := bitset.New(anvil.MaxChunks)

	file, err := os.Open(path)
	if err != nil {
		return nil, stamps, err
	}
	defer file.Close()

	header := make([]byte, 2*anvil.SectorSize)
	if _, err := io.ReadFull(file, header); err != nil {
		return nil, stamps, fmt.Errorf("%w: region header: %v", anvil.ErrCorrupt, err)
	}

	for i := range anvil.MaxChunks {
		if binary.BigEndian.Uint32(header[i*4:]) != 0 {
			populated.Set(uint(i))
		}
		stamps[i] = binary.BigEndian.Uint32(header[anvil.SectorSize+i*4:])
	}
	return populated, stamps, nil
}

// planRegion decides which chunks of a region must be redrawn. With no
// usable cache every populated chunk is stale.
func planRegion(file RegionFile, cacheDir string, mode CacheMode, fingerprint uint64) *regionPlan {
	plan := &regionPlan{pos: file.Pos, path: file.Path}

	populated, stamps, err := readRegionHeader(file.Path)
	if err != nil {
		plan.err = fmt.Errorf("region %v: %w", file.Pos, err)
		return plan
	}
	plan.populated = populated
	plan.stamps = stamps

	if cacheDir == "" || !mode.reads() {
		plan.stale = populated.Clone()
		return plan
	}

	cached, ok := LoadStamps(cacheDir, file.Pos, fingerprint)
	if !ok {
		plan.stale = populated.Clone()
		return plan
	}

	// A chunk is stale when its timestamp changed in either direction,
	// including chunks that vanished since the last render.
	plan.stale = bitset.New(anvil.MaxChunks)
	for i := range anvil.MaxChunks {
		if stamps[i] != cached[i] {
			plan.stale.Set(uint(i))
		}
	}
	plan.useCached = true
	return plan
}

// propagateSouth extends staleness one chunk southward: a surface change
// can alter the terrain shade of the column below it. Bottom-row
// staleness crosses into the southern region's top row when that region
// is scheduled too.
func propagateSouth(plans map[anvil.Pos]*regionPlan) {
	for pos, plan := range plans {
		if plan.err != nil || plan.stale.None() {
			continue
		}

		grown := plan.stale.Clone()
		for i, ok := plan.stale.NextSet(0); ok; i, ok = plan.stale.NextSet(i + 1) {
			x, z := anvil.SlotPos(int(i))
			if z+1 < anvil.RegionChunks {
				grown.Set(uint(anvil.SlotIndex(x, z+1)))
				continue
			}
			south, scheduled := plans[anvil.Pos{X: pos.X, Z: pos.Z + 1}]
			if scheduled && south.err == nil {
				south.stale.Set(uint(anvil.SlotIndex(x, 0)))
			}
		}
		plan.stale.InPlaceUnion(grown)
	}
}
