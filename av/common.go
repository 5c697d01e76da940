// Package av provides API for reading and writing tiles in AVTiles
// format, a single-file archive with Hilbert-ordered directories over
// signed tile coordinates.
package av

import "github.com/eak1mov/go-anviltiles/av/spec"

// Wire-format enums re-exported so configuring a sink does not require
// importing the spec package.
type (
	Compression = spec.Compression
	TileFormat  = spec.TileFormat
)

const (
	CompressionUnknown = spec.CompressionUnknown
	CompressionNone    = spec.CompressionNone
	CompressionGzip    = spec.CompressionGzip
	CompressionZstd    = spec.CompressionZstd

	TileFormatUnknown = spec.TileFormatUnknown
	TileFormatPng     = spec.TileFormatPng
	TileFormatJpeg    = spec.TileFormatJpeg
	TileFormatWebp    = spec.TileFormatWebp
)

// HeaderMetadata is the user-settable subset of the archive header.
type HeaderMetadata struct {
	TileCompression spec.Compression
	TileFormat      spec.TileFormat
	MinZoom         uint8
	MaxZoom         uint8
	TileSize        uint32
	MinTileX        int32
	MinTileY        int32
	MaxTileX        int32
	MaxTileY        int32
}

func (m *HeaderMetadata) CopyFromHeader(header *spec.Header) {
	m.TileCompression = header.TileCompression
	m.TileFormat = header.TileFormat
	m.MinZoom = header.MinZoom
	m.MaxZoom = header.MaxZoom
	m.TileSize = header.TileSize
	m.MinTileX = header.MinTileX
	m.MinTileY = header.MinTileY
	m.MaxTileX = header.MaxTileX
	m.MaxTileY = header.MaxTileY
}

func (m *HeaderMetadata) CopyToHeader(header *spec.Header) {
	header.TileCompression = m.TileCompression
	header.TileFormat = m.TileFormat
	header.MinZoom = m.MinZoom
	header.MaxZoom = m.MaxZoom
	header.TileSize = m.TileSize
	header.MinTileX = m.MinTileX
	header.MinTileY = m.MinTileY
	header.MaxTileX = m.MaxTileX
	header.MaxTileY = m.MaxTileY
}
