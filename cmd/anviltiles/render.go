package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"
	"github.com/schollz/progressbar/v3"

	"github.com/eak1mov/go-anviltiles/av"
	"github.com/eak1mov/go-anviltiles/mb"
	"github.com/eak1mov/go-anviltiles/render"
	"github.com/eak1mov/go-anviltiles/tile"
	"github.com/eak1mov/go-anviltiles/worldmap"
	"github.com/eak1mov/go-anviltiles/xyz"
)

type renderCmd struct {
	world        string
	out          string
	format       string
	configPath   string
	mode         string
	colors       string
	tileSize     int
	zoomLevels   int
	workers      int
	cache        string
	cacheMode    string
	bounds       string
	terrainShade bool
	night        bool
	quiet        bool
	verbose      bool
}

func (c *renderCmd) Name() string     { return "render" }
func (c *renderCmd) Synopsis() string { return "render a world directory into a tileset" }
func (c *renderCmd) Usage() string {
	return "anviltiles render -world <dir> -out <path> [flags]\n"
}

func (c *renderCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.world, "world", "", "World region directory")
	f.StringVar(&c.out, "out", "", "Output path (directory, .mbtiles or .avtiles)")
	f.StringVar(&c.format, "format", "", "Output format (xyz, mbtiles, avtiles)")
	f.StringVar(&c.configPath, "config", "", "YAML config file with flag defaults")
	f.StringVar(&c.mode, "mode", "", "Render mode (topdown, isometric)")
	f.StringVar(&c.colors, "colors", "", "Appearance table file (YAML), built-in when empty")
	f.IntVar(&c.tileSize, "tile-size", 0, "Tile edge in pixels (default 512)")
	f.IntVar(&c.zoomLevels, "zoom-levels", 0, "Zoom level count (default 5)")
	f.IntVar(&c.workers, "workers", 0, "Concurrent region jobs (default GOMAXPROCS)")
	f.StringVar(&c.cache, "cache", "", "Render cache directory")
	f.StringVar(&c.cacheMode, "cache-mode", "", "Cache mode (auto, refresh, readonly, off)")
	f.StringVar(&c.bounds, "bounds", "", "Region bounds minX,minZ,maxX,maxZ")
	f.BoolVar(&c.terrainShade, "terrain-shade", false, "Shade terrain by surface slope")
	f.BoolVar(&c.night, "night", false, "Shade by block light instead of daylight")
	f.BoolVar(&c.quiet, "q", false, "Errors only, no progress bar")
	f.BoolVar(&c.verbose, "v", false, "Debug logging")
}

// applyConfig fills in flags the command line left unset.
func (c *renderCmd) applyConfig(f *flag.FlagSet, cfg renderConfig) {
	set := map[string]bool{}
	f.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	stringDefault := func(name string, dst *string, value string) {
		if !set[name] && value != "" {
			*dst = value
		}
	}
	intDefault := func(name string, dst *int, value int) {
		if !set[name] && value != 0 {
			*dst = value
		}
	}
	boolDefault := func(name string, dst *bool, value bool) {
		if !set[name] && value {
			*dst = value
		}
	}

	stringDefault("world", &c.world, cfg.World)
	stringDefault("out", &c.out, cfg.Out)
	stringDefault("format", &c.format, cfg.Format)
	stringDefault("mode", &c.mode, cfg.Mode)
	stringDefault("colors", &c.colors, cfg.Colors)
	intDefault("tile-size", &c.tileSize, cfg.TileSize)
	intDefault("zoom-levels", &c.zoomLevels, cfg.ZoomLevels)
	intDefault("workers", &c.workers, cfg.Workers)
	stringDefault("cache", &c.cache, cfg.Cache)
	stringDefault("cache-mode", &c.cacheMode, cfg.CacheMode)
	stringDefault("bounds", &c.bounds, cfg.Bounds)
	boolDefault("terrain-shade", &c.terrainShade, cfg.TerrainShade)
	boolDefault("night", &c.night, cfg.Night)
}

func parseBounds(s string) (worldmap.Bounds, error) {
	var b worldmap.Bounds
	if _, err := fmt.Sscanf(s, "%d,%d,%d,%d", &b.MinX, &b.MinZ, &b.MaxX, &b.MaxZ); err != nil {
		return b, fmt.Errorf("bounds %q: %w", s, err)
	}
	if b.MinX > b.MaxX || b.MinZ > b.MaxZ {
		return b, fmt.Errorf("bounds %q: empty range", s)
	}
	return b, nil
}

func (c *renderCmd) logger() *slog.Logger {
	level := slog.LevelInfo
	if c.quiet {
		level = slog.LevelError
	}
	if c.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (c *renderCmd) progress() worldmap.ProgressFunc {
	if c.quiet {
		return nil
	}
	var bar *progressbar.ProgressBar
	return func(e worldmap.Event) {
		switch e.Kind {
		case worldmap.EventBegin:
			bar = progressbar.NewOptions(e.Chunks,
				progressbar.OptionSetDescription("rendering"),
				progressbar.OptionShowIts(),
				progressbar.OptionShowCount(),
			)
		case worldmap.EventChunk:
			bar.Add(1)
		case worldmap.EventEnd:
			bar.Finish()
			fmt.Fprintln(os.Stderr)
		}
	}
}

func (c *renderCmd) openSink(levels int) (tile.Writer, error) {
	logger := c.logger()
	switch deduceFormat(c.format, c.out) {
	case "mbtiles":
		return mb.NewWriter(c.out,
			mb.WithMetadata(map[string]string{"format": "png"}),
			mb.WithLogger(logger),
		)
	case "avtiles":
		headerMetadata := av.HeaderMetadata{
			TileCompression: av.CompressionNone,
			TileFormat:      av.TileFormatPng,
			MaxZoom:         uint8(levels - 1),
			TileSize:        uint32(c.tileSize),
		}
		return av.NewWriter(c.out,
			av.WithHeaderMetadata(headerMetadata),
			av.WithLogger(logger),
		)
	case "xyz", "":
		return xyz.NewWriter(xyzPattern(c.out))
	}
	return nil, fmt.Errorf("invalid output format: %q", c.format)
}

func (c *renderCmd) run(ctx context.Context) error {
	if c.world == "" || c.out == "" {
		return fmt.Errorf("both -world and -out are required")
	}
	if c.tileSize == 0 {
		c.tileSize = 512
	}
	if c.zoomLevels == 0 {
		c.zoomLevels = 5
	}

	mode, err := render.ParseMode(c.mode)
	if err != nil {
		return err
	}
	cacheMode, err := worldmap.ParseCacheMode(c.cacheMode)
	if err != nil {
		return err
	}

	table := render.DefaultTable()
	if c.colors != "" {
		if table, err = render.LoadTable(c.colors); err != nil {
			return err
		}
	}
	renderer := render.New(table,
		render.WithMode(mode),
		render.WithTerrainShade(c.terrainShade),
		render.WithNightShade(c.night),
	)

	logger := c.logger()
	opts := []worldmap.Option{
		worldmap.WithLogger(logger),
		worldmap.WithTileSize(c.tileSize),
		worldmap.WithZoomLevels(c.zoomLevels),
	}
	if c.workers > 0 {
		opts = append(opts, worldmap.WithWorkers(c.workers))
	}
	if c.cache != "" {
		if err := os.MkdirAll(c.cache, 0o777); err != nil {
			return err
		}
		opts = append(opts, worldmap.WithCache(c.cache, cacheMode))
	}
	if c.bounds != "" {
		bounds, err := parseBounds(c.bounds)
		if err != nil {
			return err
		}
		opts = append(opts, worldmap.WithBounds(bounds))
	}
	if progress := c.progress(); progress != nil {
		opts = append(opts, worldmap.WithProgress(progress))
	}
	mapper := worldmap.New(renderer, opts...)

	var summary *worldmap.Summary
	if mode == render.ModeIsometric {
		summary, err = mapper.RenderRegions(ctx, c.world, c.out)
	} else {
		var sink tile.Writer
		if sink, err = c.openSink(c.zoomLevels); err != nil {
			return err
		}
		if closer, ok := sink.(io.Closer); ok {
			defer closer.Close()
		}
		summary, err = mapper.Run(ctx, c.world, sink)
	}
	if err != nil {
		return err
	}

	logger.Info("anviltiles: render finished",
		"regions", summary.RegionsScanned,
		"rendered", summary.Rendered,
		"reused", summary.Reused,
		"failed", len(summary.Failed),
		"chunks", summary.ChunksRendered,
		"tiles", summary.TilesWritten,
	)
	for _, failure := range summary.Failed {
		logger.Error("anviltiles: region failed", "region", failure.Region, "error", failure.Err)
	}
	if len(summary.UnknownBlocks) > 0 {
		logger.Warn("anviltiles: blocks without appearance entries", "blocks", summary.UnknownBlocks)
	}
	if len(summary.Failed) > 0 {
		return fmt.Errorf("%d regions failed", len(summary.Failed))
	}
	return nil
}

func (c *renderCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.configPath != "" {
		cfg, err := loadRenderConfig(c.configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		c.applyConfig(f, cfg)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
