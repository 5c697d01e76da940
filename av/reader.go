package av

import (
	"io"
	"iter"
	"os"

	"github.com/eak1mov/go-anviltiles/av/spec"
	"github.com/eak1mov/go-anviltiles/tile"
)

type Reader interface {
	io.Closer

	HeaderMetadata() HeaderMetadata
	ReadMetadata() ([]byte, error)

	ReadTile(tileID tile.ID) ([]byte, error)
	ReadLocation(tileID tile.ID) (tile.Location, error)

	Tiles() iter.Seq2[tile.ID, []byte]
	VisitTiles(visitor func(tile.ID, []byte) error) error

	TileLocations() iter.Seq2[tile.ID, tile.Location]
	VisitLocations(visitor func(tile.ID, tile.Location) error) error
}

type FileAccessFunc = func(offset, length uint64) ([]byte, error)

type reader struct {
	fileAccess FileAccessFunc
	fileCloser func() error
	header     *spec.Header
}

func NewFileReader(filePath string) (Reader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	fileAccess := func(offset uint64, length uint64) ([]byte, error) {
		buffer := make([]byte, length)
		if _, err := file.ReadAt(buffer, int64(offset)); err != nil {
			return nil, err
		}
		return buffer, nil
	}
	headerData, err := fileAccess(0, spec.HeaderLength)
	if err != nil {
		file.Close()
		return nil, err
	}
	header, err := spec.DeserializeHeader(headerData)
	if err != nil {
		file.Close()
		return nil, err
	}
	return &reader{
		fileAccess: fileAccess,
		fileCloser: func() error { return file.Close() },
		header:     header,
	}, nil
}

// NewReader creates a Reader over an arbitrary byte source, for archives
// not backed by a local file.
func NewReader(fileAccess FileAccessFunc) (Reader, error) {
	headerData, err := fileAccess(0, spec.HeaderLength)
	if err != nil {
		return nil, err
	}
	header, err := spec.DeserializeHeader(headerData)
	if err != nil {
		return nil, err
	}
	return &reader{
		fileAccess: fileAccess,
		fileCloser: func() error { return nil },
		header:     header,
	}, nil
}

func (r *reader) Close() error {
	return r.fileCloser()
}

func (r *reader) HeaderMetadata() HeaderMetadata {
	result := HeaderMetadata{}
	result.CopyFromHeader(r.header)
	return result
}

func (r *reader) ReadMetadata() ([]byte, error) {
	return r.fileAccess(r.header.MetadataOffset, r.header.MetadataLength)
}

func (r *reader) readDirectory(dirOffset, dirLength uint64) ([]spec.Entry, error) {
	dirCompressed, err := r.fileAccess(dirOffset, dirLength)
	if err != nil {
		return nil, err
	}
	dirData, err := spec.Decompress(dirCompressed, r.header.InternalCompression)
	if err != nil {
		return nil, err
	}
	dirEntries, err := spec.DeserializeDirectory(dirData)
	if err != nil {
		return nil, err
	}
	return dirEntries, nil
}

func (r *reader) ReadLocation(tileID tile.ID) (tile.Location, error) {
	dirOffset := r.header.RootOffset
	dirLength := r.header.RootLength
	for {
		dirEntries, err := r.readDirectory(dirOffset, dirLength)
		if err != nil {
			return tile.Location{}, err
		}
		entry, found := spec.FindEntry(dirEntries, spec.EncodeTileID(tileID))
		if !found {
			return tile.Location{}, nil
		}
		if entry.RunLength > 0 {
			return tile.Location{
				Offset: r.header.TileDataOffset + entry.Offset,
				Length: uint64(entry.Length),
			}, nil
		}
		dirOffset = r.header.LeafDirectoryOffset + entry.Offset
		dirLength = uint64(entry.Length)
	}
}

func (r *reader) ReadTile(tileID tile.ID) ([]byte, error) {
	location, err := r.ReadLocation(tileID)
	if err != nil {
		return nil, err
	}
	tileData, err := r.fileAccess(location.Offset, location.Length)
	return tileData, err
}

func (r *reader) VisitLocations(visitor func(tile.ID, tile.Location) error) error {
	var traverse func(uint64, uint64) error
	traverse = func(dirOffset, dirLength uint64) error {
		dirEntries, err := r.readDirectory(dirOffset, dirLength)
		if err != nil {
			return err
		}
		for _, entry := range dirEntries {
			if entry.RunLength > 0 {
				for i := range entry.RunLength {
					tileID := spec.DecodeTileID(entry.TileCode + uint64(i))
					location := tile.Location{
						Offset: r.header.TileDataOffset + entry.Offset,
						Length: uint64(entry.Length),
					}

					err := visitor(tileID, location)
					if err != nil {
						return err
					}
				}
			} else {
				err := traverse(r.header.LeafDirectoryOffset+entry.Offset, uint64(entry.Length))
				if err != nil {
					return err
				}
			}
		}
		return nil
	}
	return traverse(r.header.RootOffset, r.header.RootLength)
}

func (r *reader) TileLocations() iter.Seq2[tile.ID, tile.Location] {
	return tile.IterLocations(r)
}

func (r *reader) VisitTiles(visitor func(tile.ID, []byte) error) error {
	return r.VisitLocations(func(tileID tile.ID, location tile.Location) error {
		tileData, err := r.fileAccess(location.Offset, location.Length)
		if err != nil {
			return err
		}
		return visitor(tileID, tileData)
	})
}

func (r *reader) Tiles() iter.Seq2[tile.ID, []byte] {
	return tile.IterTiles(r)
}
