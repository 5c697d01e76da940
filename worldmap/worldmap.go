package worldmap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/google/hilbert"
	"github.com/willf/bitset"

	"github.com/eak1mov/go-anviltiles/anvil"
	"github.com/eak1mov/go-anviltiles/chunk"
	"github.com/eak1mov/go-anviltiles/pyramid"
	"github.com/eak1mov/go-anviltiles/render"
	"github.com/eak1mov/go-anviltiles/tile"
)

// Failure records a region that could not be rendered. Failed regions
// leave transparent pixels in the output instead of aborting the run.
type Failure struct {
	Region anvil.Pos
	Err    error
}

// Summary reports what a run did.
type Summary struct {
	RegionsScanned int
	Rendered       int
	Reused         int
	Failed         []Failure
	ChunksRendered int
	TilesWritten   int

	// UnknownBlocks lists block ids that had no appearance entry and
	// were drawn with the placeholder color.
	UnknownBlocks []string
}

// Mapper renders a world directory of region files into a tileset.
type Mapper struct {
	renderer      *render.Renderer
	logger        *slog.Logger
	workers       int
	tileSize      int
	levels        int
	cacheDir      string
	cacheMode     CacheMode
	bounds        *Bounds
	progress      ProgressFunc
	regionTimeout time.Duration
}

type Option func(*Mapper)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Mapper) { m.logger = logger }
}

// WithWorkers sets the number of regions rendered concurrently.
func WithWorkers(n int) Option {
	return func(m *Mapper) { m.workers = n }
}

// WithTileSize sets the output tile edge in pixels. Must be an even
// divisor-friendly size; pyramid.New validates it.
func WithTileSize(size int) Option {
	return func(m *Mapper) { m.tileSize = size }
}

// WithZoomLevels sets the number of zoom levels in the pyramid. Regions
// render at the deepest level and coarser levels are downsampled.
func WithZoomLevels(levels int) Option {
	return func(m *Mapper) { m.levels = levels }
}

// WithCache enables the per-region render cache under dir.
func WithCache(dir string, mode CacheMode) Option {
	return func(m *Mapper) { m.cacheDir = dir; m.cacheMode = mode }
}

// WithBounds restricts the run to regions inside b.
func WithBounds(b Bounds) Option {
	return func(m *Mapper) { m.bounds = &b }
}

// WithProgress installs a progress callback. Events are delivered from
// a single goroutine.
func WithProgress(fn ProgressFunc) Option {
	return func(m *Mapper) { m.progress = fn }
}

// WithRegionTimeout bounds the render time of a single region. A region
// that exceeds it is recorded as failed and the run continues.
func WithRegionTimeout(d time.Duration) Option {
	return func(m *Mapper) { m.regionTimeout = d }
}

func New(renderer *render.Renderer, opts ...Option) *Mapper {
	m := &Mapper{
		renderer:  renderer,
		logger:    slog.New(slog.DiscardHandler),
		workers:   runtime.GOMAXPROCS(0),
		tileSize:  512,
		levels:    5,
		cacheMode: CacheOff,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.workers < 1 {
		m.workers = 1
	}
	return m
}

// Run renders worldDir top-down into sink as a zoom pyramid of tiles.
// Individual region failures are collected in the summary; Run returns
// an error only when the run as a whole cannot proceed (scan failure,
// sink write failure, cancellation).
func (m *Mapper) Run(ctx context.Context, worldDir string, sink tile.Writer) (*Summary, error) {
	if m.renderer.Mode() != render.ModeTopDown {
		return nil, errors.New("worldmap: tiled output requires the top-down mode, use RenderRegions for isometric images")
	}

	plans, order, summary, err := m.plan(worldDir)
	if err != nil {
		return nil, err
	}
	if m.renderer.TerrainShaded() {
		propagateSouth(plans)
	}

	expected := make([]anvil.Pos, 0, len(order))
	for _, plan := range order {
		expected = append(expected, plan.pos)
	}
	comp, err := pyramid.New(m.tileSize, m.levels, expected, func(id tile.ID, img *image.NRGBA) error {
		data, err := encodePNG(img)
		if err != nil {
			return err
		}
		if err := sink.WriteTile(id, data); err != nil {
			return err
		}
		summary.TilesWritten++
		return nil
	})
	if err != nil {
		return nil, err
	}

	collect := func(res regionResult) error {
		plan := plans[res.pos]
		m.record(summary, res)
		if res.err == nil && res.img != nil && !res.reused && m.cacheMode.writes() && m.cacheDir != "" {
			if err := SaveCachedImage(m.cacheDir, res.pos, res.img); err != nil {
				m.logger.Warn("anviltiles: cache image write failed", "region", res.pos, "error", err)
			} else if err := SaveStamps(m.cacheDir, res.pos, m.renderer.Fingerprint(), plan.stamps); err != nil {
				m.logger.Warn("anviltiles: cache stamps write failed", "region", res.pos, "error", err)
			}
		}
		return comp.AddRegion(res.pos, res.img)
	}
	if err := m.renderAll(ctx, order, collect); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := comp.Finalize(); err != nil {
		return nil, err
	}
	if err := sink.Finalize(); err != nil {
		return nil, fmt.Errorf("worldmap: finalize sink: %w", err)
	}
	summary.UnknownBlocks = m.renderer.Table().Misses()
	return summary, nil
}

// RenderRegions renders each region as a standalone image file named
// r.<x>.<z>.png under outDir. This is the output path for the isometric
// mode, which has no tile pyramid; the cache is not used.
func (m *Mapper) RenderRegions(ctx context.Context, worldDir, outDir string) (*Summary, error) {
	_, order, summary, err := m.plan(worldDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o777); err != nil {
		return nil, fmt.Errorf("worldmap: %w", err)
	}

	collect := func(res regionResult) error {
		m.record(summary, res)
		if res.err != nil || res.img == nil {
			return nil
		}
		data, err := encodePNG(res.img)
		if err != nil {
			return err
		}
		path := filepath.Join(outDir, res.pos.String()+".png")
		if err := writeFileAtomic(path, data); err != nil {
			return fmt.Errorf("worldmap: %w", err)
		}
		summary.TilesWritten++
		return nil
	}
	if err := m.renderAll(ctx, order, collect); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	summary.UnknownBlocks = m.renderer.Table().Misses()
	return summary, nil
}

// plan scans worldDir and builds a staleness plan per region. Iso runs
// and runs without a cache directory schedule every populated chunk.
func (m *Mapper) plan(worldDir string) (map[anvil.Pos]*regionPlan, []*regionPlan, *Summary, error) {
	files, err := ScanRegions(worldDir)
	if err != nil {
		return nil, nil, nil, err
	}
	if m.bounds != nil {
		files = slices.DeleteFunc(files, func(f RegionFile) bool { return !m.bounds.Contains(f.Pos) })
	}

	mode := m.cacheMode
	cacheDir := m.cacheDir
	if cacheDir == "" || m.renderer.Mode() != render.ModeTopDown {
		mode, cacheDir = CacheOff, ""
	}

	plans := make(map[anvil.Pos]*regionPlan, len(files))
	order := make([]*regionPlan, 0, len(files))
	for _, f := range files {
		plan := planRegion(f, cacheDir, mode, m.renderer.Fingerprint())
		plans[f.Pos] = plan
		order = append(order, plan)
	}
	return plans, order, &Summary{RegionsScanned: len(files)}, nil
}

// record folds one region result into the summary.
func (m *Mapper) record(summary *Summary, res regionResult) {
	switch {
	case res.err != nil:
		m.logger.Warn("anviltiles: region failed", "region", res.pos, "error", res.err)
		summary.Failed = append(summary.Failed, Failure{Region: res.pos, Err: res.err})
	case res.reused:
		summary.Reused++
	default:
		summary.Rendered++
		summary.ChunksRendered += res.chunks
	}
}

type regionResult struct {
	pos    anvil.Pos
	img    *image.NRGBA
	chunks int
	reused bool
	err    error
}

// renderAll fans order out to the worker pool and feeds every result to
// collect on the calling goroutine. A collect error stops the sink but
// the pool still drains so workers exit cleanly.
func (m *Mapper) renderAll(ctx context.Context, order []*regionPlan, collect func(regionResult) error) error {
	order = slices.Clone(order)
	sortByHilbert(order)

	total := 0
	for _, plan := range order {
		if plan.err == nil {
			total += int(plan.stale.Count())
		}
	}

	events := make(chan Event, 256)
	var progressWG sync.WaitGroup
	if m.progress != nil {
		progressWG.Add(1)
		go func() {
			defer progressWG.Done()
			for e := range events {
				m.progress(e)
			}
		}()
	}
	emit := func(e Event) {
		if m.progress != nil {
			events <- e
		}
	}
	emit(Event{Kind: EventBegin, Regions: len(order), Chunks: total})

	jobs := make(chan *regionPlan)
	results := make(chan regionResult)
	var wg sync.WaitGroup
	for range m.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for plan := range jobs {
				results <- m.renderRegion(ctx, plan, emit)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, plan := range order {
			select {
			case jobs <- plan:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	var firstErr error
	for res := range results {
		if firstErr != nil {
			continue
		}
		if err := collect(res); err != nil {
			firstErr = err
		}
		emit(Event{Kind: EventRegionEnd, Region: res.pos, Chunks: res.chunks, Reused: res.reused, Err: res.err})
	}
	emit(Event{Kind: EventEnd})
	close(events)
	progressWG.Wait()
	return firstErr
}

// renderRegion renders one region according to its plan. Any error is
// returned in the result so the run can continue past a bad region.
func (m *Mapper) renderRegion(ctx context.Context, plan *regionPlan, emit func(Event)) regionResult {
	res := regionResult{pos: plan.pos}
	if plan.err != nil {
		res.err = plan.err
		return res
	}
	if m.regionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.regionTimeout)
		defer cancel()
	}

	want := image.Rect(0, 0, render.RegionSize, render.RegionSize)
	if plan.reuse() {
		if img, ok := LoadCachedImage(m.cacheDir, plan.pos, want); ok {
			res.img, res.reused = img, true
			emit(Event{Kind: EventRegionBegin, Region: plan.pos})
			return res
		}
		// Stamps matched but the cached image is gone or unreadable.
		plan.stale = plan.populated.Clone()
		plan.useCached = false
	}

	emit(Event{Kind: EventRegionBegin, Region: plan.pos, Chunks: int(plan.stale.Count())})

	region, err := anvil.OpenFile(plan.path)
	if err != nil {
		res.err = err
		return res
	}

	var img *image.NRGBA
	if plan.useCached {
		if cached, ok := LoadCachedImage(m.cacheDir, plan.pos, want); ok {
			img = cached
		} else {
			plan.stale = plan.populated.Clone()
		}
	}
	if img == nil {
		img = m.renderer.RegionImage()
	}

	iso := m.renderer.Mode() == render.ModeIsometric
	chunks := loadedChunks{region: region, chunks: map[int]*chunk.Chunk{}}
	for _, i := range drawOrder(plan.stale, iso) {
		if err := ctx.Err(); err != nil {
			res.err = err
			return res
		}
		lx, lz := anvil.SlotPos(i)
		c, err := chunks.load(i)
		if err != nil {
			res.err = err
			return res
		}
		if !iso {
			render.ClearChunk(img, lx, lz)
		}
		if c == nil {
			continue
		}
		if iso {
			m.renderer.DrawChunkIso(img, c, lx, lz)
		} else {
			var north *chunk.Chunk
			if lz > 0 {
				if north, err = chunks.load(anvil.SlotIndex(lx, lz-1)); err != nil {
					res.err = err
					return res
				}
			}
			m.renderer.DrawChunk(img, c, north, lx, lz)
		}
		res.chunks++
		emit(Event{Kind: EventChunk, Region: plan.pos})
	}
	res.img = img
	return res
}

// drawOrder lists the stale slots to render. The isometric painter needs
// chunks in ascending lx+lz so nearer chunks overdraw farther ones; the
// top-down mode just walks the set in index order.
func drawOrder(stale *bitset.BitSet, iso bool) []int {
	slots := make([]int, 0, stale.Count())
	if !iso {
		for i, ok := stale.NextSet(0); ok; i, ok = stale.NextSet(i + 1) {
			slots = append(slots, int(i))
		}
		return slots
	}
	for d := 0; d <= 2*(anvil.RegionChunks-1); d++ {
		for x := max(0, d-anvil.RegionChunks+1); x <= min(anvil.RegionChunks-1, d); x++ {
			if i := anvil.SlotIndex(x, d-x); stale.Test(uint(i)) {
				slots = append(slots, i)
			}
		}
	}
	return slots
}

// loadedChunks memoizes decoded chunks within one region, so a chunk
// consulted as the north neighbor of its stale neighbor decodes once.
type loadedChunks struct {
	region *anvil.Region
	chunks map[int]*chunk.Chunk
}

// load returns the decoded chunk at slot i, or nil when the slot is
// empty or the chunk has not finished generating.
func (lc *loadedChunks) load(i int) (*chunk.Chunk, error) {
	if c, ok := lc.chunks[i]; ok {
		return c, nil
	}
	root, err := lc.region.DecodeChunk(i)
	if errors.Is(err, anvil.ErrChunkAbsent) {
		lc.chunks[i] = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c, err := chunk.Load(root)
	if err != nil {
		return nil, fmt.Errorf("%v slot %d: %w", lc.region.Pos(), i, err)
	}
	if !c.Generated() {
		c = nil
	}
	lc.chunks[i] = c
	return c, nil
}

// sortByHilbert orders regions along a space-filling curve so that
// concurrently rendered regions tend to be near each other, which keeps
// the set of open pyramid tiles small.
func sortByHilbert(order []*regionPlan) {
	const bias = 1 << 16
	h, _ := hilbert.NewHilbert(2 * bias)
	key := func(p anvil.Pos) int {
		d, err := h.MapInverse(int(p.X)+bias, int(p.Z)+bias)
		if err != nil {
			return 0
		}
		return d
	}
	slices.SortFunc(order, func(a, b *regionPlan) int {
		return key(a.pos) - key(b.pos)
	})
}

func encodePNG(img *image.NRGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("worldmap: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
