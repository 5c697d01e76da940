package worldmap

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"github.com/eak1mov/go-anviltiles/anvil"
)

// The cache keeps two files per region: r.<x>.<z>.stamps with the chunk
// timestamps as last rendered, and r.<x>.<z>.png with the last rendered
// region image. Both are replaced atomically after a successful render.

const (
	stampsMagic   uint64 = 0x706D617453_5641 // "AVStamp"
	stampsMagicV1 uint64 = stampsMagic | (0x01 << 56)
)

type stampsFile struct {
	Magic       uint64
	Fingerprint uint64 // renderer settings the image was produced with
	X, Z        int32
	Stamps      [anvil.MaxChunks]uint32
}

func stampsPath(cacheDir string, pos anvil.Pos) string {
	return filepath.Join(cacheDir, fmt.Sprintf("%v.stamps", pos))
}

func cachedImagePath(cacheDir string, pos anvil.Pos) string {
	return filepath.Join(cacheDir, fmt.Sprintf("%v.png", pos))
}

// LoadStamps reads a region's cached chunk timestamps. A missing,
// truncated or mismatched file reads as no cache; so does a fingerprint
// from different renderer settings, since the cached image would not
// match what those settings produce.
func LoadStamps(cacheDir string, pos anvil.Pos, fingerprint uint64) ([anvil.MaxChunks]uint32, bool) {
	var record stampsFile

	data, err := os.ReadFile(stampsPath(cacheDir, pos))
	if err != nil {
		return record.Stamps, false
	}
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &record); err != nil {
		return record.Stamps, false
	}
	if record.Magic != stampsMagicV1 || record.Fingerprint != fingerprint {
		return record.Stamps, false
	}
	if record.X != pos.X || record.Z != pos.Z {
		return record.Stamps, false
	}
	return record.Stamps, true
}

// SaveStamps writes a region's chunk timestamps atomically.
func SaveStamps(cacheDir string, pos anvil.Pos, fingerprint uint64, stamps [anvil.MaxChunks]uint32) error {
	record := stampsFile{
		Magic:       stampsMagicV1,
		Fingerprint: fingerprint,
		X:           pos.X,
		Z:           pos.Z,
		Stamps:      stamps,
	}
	var buffer bytes.Buffer
	if err := binary.Write(&buffer, binary.LittleEndian, &record); err != nil {
		return err
	}
	return writeFileAtomic(stampsPath(cacheDir, pos), buffer.Bytes())
}

// LoadCachedImage reads a region's last rendered image. Anything wrong
// with the file reads as no cache.
func LoadCachedImage(cacheDir string, pos anvil.Pos, want image.Rectangle) (*image.NRGBA, bool) {
	file, err := os.Open(cachedImagePath(cacheDir, pos))
	if err != nil {
		return nil, false
	}
	defer file.Close()

	decoded, err := png.Decode(file)
	if err != nil || decoded.Bounds() != want {
		return nil, false
	}
	if img, ok := decoded.(*image.NRGBA); ok {
		return img, true
	}
	img := image.NewNRGBA(want)
	draw.Draw(img, want, decoded, want.Min, draw.Src)
	return img, true
}

// SaveCachedImage writes a region's rendered image atomically.
func SaveCachedImage(cacheDir string, pos anvil.Pos, img *image.NRGBA) error {
	var buffer bytes.Buffer
	if err := png.Encode(&buffer, img); err != nil {
		return err
	}
	return writeFileAtomic(cachedImagePath(cacheDir, pos), buffer.Bytes())
}

// writeFileAtomic replaces a file through a same-directory temp file and
// rename, so readers never observe a partial write.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
