package anvil

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"

	"github.com/eak1mov/go-anviltiles/nbt"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/willf/bitset"
)

// Compression tags of chunk payloads. The high bit marks a payload stored
// in an external sibling file compressed per the remaining bits.
const (
	compressionGzip byte = 1
	compressionZlib byte = 2
	compressionNone byte = 3

	externalFlag byte = 0x80
)

// ExternalOpenFunc fetches the raw bytes of an external chunk payload file
// given absolute chunk coordinates.
type ExternalOpenFunc = func(cx, cz int32) ([]byte, error)

// Region is a parsed region container over an in-memory byte buffer.
// All reads are pure; a Region never mutates its source and is safe for
// concurrent readers.
type Region struct {
	pos      Pos
	data     []byte
	slots    [MaxChunks]uint32
	stamps   [MaxChunks]uint32
	external ExternalOpenFunc
}

type regionConfig struct {
	external ExternalOpenFunc
}

type Option func(*regionConfig)

// WithExternalOpener wires the fetch function for payloads stored in
// external sibling files. Without it such chunks fail with ErrExternalChunk.
func WithExternalOpener(open ExternalOpenFunc) Option {
	return func(c *regionConfig) { c.external = open }
}

// New parses the slot table and timestamps page of a region file held in
// memory. The buffer is retained and must not be modified by the caller.
func New(pos Pos, data []byte, opts ...Option) (*Region, error) {
	config := regionConfig{}
	for _, opt := range opts {
		opt(&config)
	}

	if len(data) < 2*SectorSize {
		return nil, fmt.Errorf("%w: %v: file is %d bytes, header needs %d",
			ErrCorrupt, pos, len(data), 2*SectorSize)
	}

	r := &Region{pos: pos, data: data, external: config.external}
	for i := range MaxChunks {
		r.slots[i] = binary.BigEndian.Uint32(data[i*4:])
		r.stamps[i] = binary.BigEndian.Uint32(data[SectorSize+i*4:])
	}
	return r, nil
}

// OpenFile reads a region file from disk, taking the region coordinates
// from its name and wiring external payload lookup to its directory.
func OpenFile(path string) (*Region, error) {
	pos, ok := ParseFileName(filepath.Base(path))
	if !ok {
		return nil, fmt.Errorf("%w: %q does not match r.<x>.<z>.mca", ErrCorrupt, filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	open := func(cx, cz int32) ([]byte, error) {
		return os.ReadFile(filepath.Join(dir, externalFileName(cx, cz)))
	}
	return New(pos, data, WithExternalOpener(open))
}

func (r *Region) Pos() Pos {
	return r.pos
}

// Timestamp returns the modification stamp of slot index i.
func (r *Region) Timestamp(i int) uint32 {
	return r.stamps[i]
}

// Timestamps returns the full modification-stamp page.
func (r *Region) Timestamps() [MaxChunks]uint32 {
	return r.stamps
}

// Populated returns the set of slot indices holding a chunk.
func (r *Region) Populated() *bitset.BitSet {
	set := bitset.New(MaxChunks)
	for i, slot := range r.slots {
		if slot>>8 != 0 {
			set.Set(uint(i))
		}
	}
	return set
}

func (r *Region) corruptf(slot int, format string, args ...any) error {
	return fmt.Errorf("%w: %v slot %d: %s", ErrCorrupt, r.pos, slot, fmt.Sprintf(format, args...))
}

// Chunk returns the decompressed payload of slot index i, ready for the
// tagged-tree decoder. Empty slots return ErrChunkAbsent.
func (r *Region) Chunk(i int) ([]byte, error) {
	slot := r.slots[i]
	sector := int64(slot >> 8)
	sectorCount := int64(slot & 0xff)
	if sector == 0 {
		return nil, fmt.Errorf("%w: %v slot %d", ErrChunkAbsent, r.pos, i)
	}

	offset := sector * SectorSize
	if offset+5 > int64(len(r.data)) {
		return nil, r.corruptf(i, "sector offset %d exceeds file size %d", offset, len(r.data))
	}
	if offset+sectorCount*SectorSize > int64(len(r.data)) {
		return nil, r.corruptf(i, "%d sectors at offset %d exceed file size %d", sectorCount, offset, len(r.data))
	}

	length := int64(binary.BigEndian.Uint32(r.data[offset:]))
	if length < 1 || offset+4+length > int64(len(r.data)) {
		return nil, r.corruptf(i, "payload length %d at offset %d exceeds file size %d", length, offset, len(r.data))
	}

	tag := r.data[offset+4]
	payload := r.data[offset+5 : offset+4+length]

	if tag&externalFlag != 0 {
		if r.external == nil {
			cx, cz := r.pos.ChunkPos(i)
			return nil, fmt.Errorf("%w: %v slot %d references %s", ErrExternalChunk, r.pos, i, externalFileName(cx, cz))
		}
		cx, cz := r.pos.ChunkPos(i)
		externalData, err := r.external(cx, cz)
		if err != nil {
			return nil, fmt.Errorf("%w: %v slot %d external payload: %w", ErrExternalChunk, r.pos, i, err)
		}
		payload = externalData
		tag &^= externalFlag
	}

	decompressed, err := decompress(payload, tag)
	if err != nil {
		return nil, r.corruptf(i, "offset %d: %v", offset, err)
	}
	return decompressed, nil
}

func decompress(payload []byte, tag byte) ([]byte, error) {
	var reader io.Reader
	switch tag {
	case compressionGzip:
		gz, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	case compressionZlib:
		zr, err := zlib.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		reader = zr
	case compressionNone:
		return payload, nil
	default:
		return nil, fmt.Errorf("unknown compression tag %d", tag)
	}
	return io.ReadAll(reader)
}

// VisitChunks visits every populated slot in index order, handing the
// visitor the decompressed payload. A visitor error stops the visit.
func (r *Region) VisitChunks(visitor func(i int, payload []byte) error) error {
	for i := range MaxChunks {
		if r.slots[i]>>8 == 0 {
			continue
		}
		payload, err := r.Chunk(i)
		if err != nil {
			return err
		}
		if err := visitor(i, payload); err != nil {
			return err
		}
	}
	return nil
}

var errVisitCancelled = errors.New("visit cancelled")

// Chunks returns an iterator over populated slots and their decompressed
// payloads.
//
// Iteration PANICS on container read errors: range-over-func has no
// error channel, so this form is only for callers that have already
// validated the region or treat corruption as fatal. Callers that must
// isolate corrupt regions (per-slot error handling) use VisitChunks or
// Chunk directly.
func (r *Region) Chunks() iter.Seq2[int, []byte] {
	return func(yield func(int, []byte) bool) {
		err := r.VisitChunks(func(i int, payload []byte) error {
			if !yield(i, payload) {
				return errVisitCancelled
			}
			return nil
		})
		if err != nil && err != errVisitCancelled {
			panic(err)
		}
	}
}

// DecodeChunk reads and parses the tagged tree of slot index i.
func (r *Region) DecodeChunk(i int) (nbt.Compound, error) {
	payload, err := r.Chunk(i)
	if err != nil {
		return nil, err
	}
	_, root, err := nbt.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("%v slot %d: %w", r.pos, i, err)
	}
	return root, nil
}
