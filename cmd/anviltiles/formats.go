package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/eak1mov/go-anviltiles/av"
	"github.com/eak1mov/go-anviltiles/mb"
	"github.com/eak1mov/go-anviltiles/tile"
	"github.com/eak1mov/go-anviltiles/xyz"
)

func deduceFormat(format, filePath string) string {
	if format == "" && strings.HasSuffix(filePath, ".mbtiles") {
		return "mbtiles"
	}
	if format == "" && strings.HasSuffix(filePath, ".avtiles") {
		return "avtiles"
	}
	return format
}

// xyzPattern turns a plain directory path into a slippy-map file layout.
// Paths that already carry placeholders pass through unchanged.
func xyzPattern(path string) string {
	if strings.Contains(path, "{") {
		return path
	}
	return filepath.Join(path, "{z}", "{x}", "{y}.png")
}

func openReader(format, path string) (tile.Visitor, error) {
	switch deduceFormat(format, path) {
	case "mbtiles":
		return mb.NewReader(path)
	case "avtiles":
		return av.NewFileReader(path)
	case "xyz", "":
		return xyz.NewReader(xyzPattern(path))
	}
	return nil, fmt.Errorf("invalid tileset format: %q", format)
}
