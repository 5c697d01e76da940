package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/google/subcommands"
	"github.com/schollz/progressbar/v3"

	"github.com/eak1mov/go-anviltiles/av"
	"github.com/eak1mov/go-anviltiles/mb"
	"github.com/eak1mov/go-anviltiles/tile"
	"github.com/eak1mov/go-anviltiles/xyz"
)

type convertCmd struct {
	inputFormat  string
	inputPath    string
	outputFormat string
	outputPath   string
}

func (c *convertCmd) Name() string     { return "convert" }
func (c *convertCmd) Synopsis() string { return "convert between tile storage formats" }
func (c *convertCmd) Usage() string {
	return "anviltiles convert -i <path> -o <path> [-if <format> | -of <format>]\n"
}

func (c *convertCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Input path")
	f.StringVar(&c.inputFormat, "if", "", "Input format (mbtiles, avtiles, xyz)")
	f.StringVar(&c.outputPath, "o", "", "Output path")
	f.StringVar(&c.outputFormat, "of", "", "Output format (mbtiles, avtiles, xyz)")
}

func convertMetadata(metadata map[string]string) (av.HeaderMetadata, error) {
	header := av.HeaderMetadata{}

	switch metadata["format"] {
	case "png":
		header.TileFormat = av.TileFormatPng
	case "jpg":
		header.TileFormat = av.TileFormatJpeg
	case "webp":
		header.TileFormat = av.TileFormatWebp
	}

	if value, found := metadata["minzoom"]; found {
		if _, err := fmt.Sscanf(value, "%d", &header.MinZoom); err != nil {
			return av.HeaderMetadata{}, err
		}
	}
	if value, found := metadata["maxzoom"]; found {
		if _, err := fmt.Sscanf(value, "%d", &header.MaxZoom); err != nil {
			return av.HeaderMetadata{}, err
		}
	}
	if value, found := metadata["bounds"]; found {
		if _, err := fmt.Sscanf(value, "%d,%d,%d,%d",
			&header.MinTileX, &header.MinTileY, &header.MaxTileX, &header.MaxTileY); err != nil {
			return av.HeaderMetadata{}, err
		}
	}

	return header, nil
}

func (c *convertCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	inputFormat := deduceFormat(c.inputFormat, c.inputPath)
	outputFormat := deduceFormat(c.outputFormat, c.outputPath)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	reader, err := openReader(inputFormat, c.inputPath)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	if closer, ok := reader.(io.Closer); ok {
		defer closer.Close()
	}

	var avHeaderMetadata av.HeaderMetadata
	var avMetadata []byte
	if inputFormat == "mbtiles" && outputFormat == "avtiles" {
		metadata, err := reader.(*mb.Reader).ReadMetadata()
		if err != nil {
			log.Println(err)
			return subcommands.ExitFailure
		}
		avHeaderMetadata, err = convertMetadata(metadata)
		if err != nil {
			log.Println("failed to convert metadata:", err)
			return subcommands.ExitFailure
		}
		if avMetadata, err = json.Marshal(metadata); err != nil {
			log.Println(err)
			return subcommands.ExitFailure
		}
	}

	var writer tile.Writer
	switch outputFormat {
	case "mbtiles":
		writer, err = mb.NewWriter(c.outputPath, mb.WithLogger(logger))
	case "avtiles":
		writer, err = av.NewWriter(
			c.outputPath,
			av.WithMetadata(avMetadata),
			av.WithHeaderMetadata(avHeaderMetadata),
			av.WithLogger(logger),
		)
	case "xyz", "":
		writer, err = xyz.NewWriter(xyzPattern(c.outputPath))
	default:
		log.Printf("invalid output format: %q", c.outputFormat)
		return subcommands.ExitFailure
	}
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	if closer, ok := writer.(io.Closer); ok {
		defer closer.Close()
	}

	bar := progressbar.NewOptions(-1, progressbar.OptionShowIts(), progressbar.OptionShowCount())
	err = reader.VisitTiles(func(tileID tile.ID, tileData []byte) error {
		err := writer.WriteTile(tileID, tileData)
		bar.Add(1)
		return err
	})
	bar.Finish()
	fmt.Println()

	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	if err := writer.Finalize(); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	return subcommands.ExitSuccess
}
