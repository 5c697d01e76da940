// Package spec implements the AVTiles wire format: the fixed
// little-endian header, varint delta-coded directories and internal
// compression. AVTiles is a single-file tile archive for signed,
// origin-centered tile grids.
package spec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

type Compression uint8

const (
	CompressionUnknown Compression = iota
	CompressionNone
	CompressionGzip
	CompressionZstd
)

type TileFormat uint8

const (
	TileFormatUnknown TileFormat = iota
	TileFormatPng
	TileFormatJpeg
	TileFormatWebp
)

type Header struct {
	HeaderMagic         uint64
	RootOffset          uint64
	RootLength          uint64
	MetadataOffset      uint64
	MetadataLength      uint64
	LeafDirectoryOffset uint64
	LeafDirectoryLength uint64
	TileDataOffset      uint64
	TileDataLength      uint64
	AddressedTilesCount uint64
	Clustered           bool
	InternalCompression Compression
	TileCompression     Compression
	TileFormat          TileFormat
	MinZoom             uint8
	MaxZoom             uint8
	TileSize            uint32
	MinTileX            int32
	MinTileY            int32
	MaxTileX            int32
	MaxTileY            int32
}

const (
	headerMagic     uint64 = 0x73656C6954_5641 // "AVTiles"
	headerMagicMask uint64 = 1<<56 - 1
	HeaderMagicV1   uint64 = headerMagic | (0x01 << 56)

	HeaderLength = 106

	// The root directory must be contained in the first 16 KiB, so a
	// reader learns every tile location from at most three reads.
	HeaderRootDirMaxLength = 16 << 10
	RootDirOffset          = HeaderLength
	RootDirMaxLength       = HeaderRootDirMaxLength - HeaderLength
)

var ErrInvalidHeader = errors.New("invalid file header")
var ErrInvalidVersion = errors.New("invalid version")

func SerializeHeader(header *Header) []byte {
	var buffer bytes.Buffer
	writer := bufio.NewWriter(&buffer)
	binary.Write(writer, binary.LittleEndian, header)
	writer.Flush()
	return buffer.Bytes()
}

func DeserializeHeader(buffer []byte) (*Header, error) {
	header := Header{}
	reader := bytes.NewReader(buffer)
	err := binary.Read(reader, binary.LittleEndian, &header)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	if header.HeaderMagic&headerMagicMask != headerMagic {
		return nil, ErrInvalidHeader
	}
	if header.HeaderMagic != HeaderMagicV1 {
		return nil, ErrInvalidVersion
	}
	return &header, nil
}
