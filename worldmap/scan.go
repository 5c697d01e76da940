// Package worldmap orchestrates a render run: region discovery,
// staleness detection against a per-region cache, a worker pool over
// independent region jobs, and a collector that feeds the tile
// compositor and the configured sink.
package worldmap

import (
	"cmp"
	"os"
	"path/filepath"
	"slices"

	"github.com/eak1mov/go-anviltiles/anvil"
)

// RegionFile pairs a region's coordinates with its file path.
type RegionFile struct {
	Pos  anvil.Pos
	Path string
}

// Bounds is an inclusive region-coordinate filter.
type Bounds struct {
	MinX, MinZ, MaxX, MaxZ int32
}

func (b Bounds) Contains(pos anvil.Pos) bool {
	return pos.X >= b.MinX && pos.X <= b.MaxX && pos.Z >= b.MinZ && pos.Z <= b.MaxZ
}

// ScanRegions lists the region files in a world directory, sorted by
// coordinates. Files not matching the r.<x>.<z>.mca convention are
// ignored.
func ScanRegions(worldDir string) ([]RegionFile, error) {
	dirEntries, err := os.ReadDir(worldDir)
	if err != nil {
		return nil, err
	}

	var regions []RegionFile
	for _, entry := range dirEntries {
		if entry.IsDir() {
			continue
		}
		pos, ok := anvil.ParseFileName(entry.Name())
		if !ok {
			continue
		}
		regions = append(regions, RegionFile{
			Pos:  pos,
			Path: filepath.Join(worldDir, entry.Name()),
		})
	}

	slices.SortFunc(regions, func(a, b RegionFile) int {
		if c := cmp.Compare(a.Pos.Z, b.Pos.Z); c != 0 {
			return c
		}
		return cmp.Compare(a.Pos.X, b.Pos.X)
	})
	return regions, nil
}
