package chunk

import (
	"errors"
	"fmt"
	"math/bits"
)

// ErrPackedData reports a packed long array too short for its entry count.
var ErrPackedData = errors.New("chunk: packed array too short")

// BlockBits returns the packed-entry width for a block palette of n states:
// ceil(log2(n)) with a floor of 4 bits.
func BlockBits(n int) int {
	return max(4, bits.Len(uint(n-1)))
}

// NaturalBits returns the packed-entry width without the block-palette
// floor, used by biome palettes and heightmaps: ceil(log2(n)), minimum 1.
func NaturalBits(n int) int {
	return max(1, bits.Len(uint(n-1)))
}

// UnpackAligned decodes count entries of the given width from 64-bit words
// in the aligned layout: 64/width entries per word starting at the low bits,
// leftover high bits unused, entries never crossing a word boundary.
func UnpackAligned(words []int64, width, count int) ([]uint16, error) {
	perWord := 64 / width
	need := (count + perWord - 1) / perWord
	if len(words) < need {
		return nil, fmt.Errorf("%w: %d words carry %d aligned entries of %d bits, need %d",
			ErrPackedData, len(words), len(words)*perWord, width, count)
	}

	out := make([]uint16, count)
	mask := uint64(1)<<width - 1
	for i := 0; i < count; {
		word := uint64(words[i/perWord])
		for range perWord {
			out[i] = uint16(word & mask)
			word >>= width
			i++
			if i == count {
				break
			}
		}
	}
	return out, nil
}

// UnpackSpanning decodes count entries of the given width from 64-bit words
// in the dense layout: entries packed end-to-end as a little-endian bit
// stream, crossing word boundaries.
func UnpackSpanning(words []int64, width, count int) ([]uint16, error) {
	if len(words)*64 < count*width {
		return nil, fmt.Errorf("%w: %d words carry %d bits, %d spanning entries of %d bits need %d",
			ErrPackedData, len(words), len(words)*64, count, width, count*width)
	}

	out := make([]uint16, count)
	mask := uint64(1)<<width - 1
	for i := range count {
		bit := i * width
		word, off := bit/64, bit%64
		v := uint64(words[word]) >> off
		if off+width > 64 {
			v |= uint64(words[word+1]) << (64 - off)
		}
		out[i] = uint16(v & mask)
	}
	return out, nil
}

// PackAligned is the encoding inverse of UnpackAligned.
func PackAligned(entries []uint16, width int) []int64 {
	perWord := 64 / width
	words := make([]int64, (len(entries)+perWord-1)/perWord)
	for i, e := range entries {
		words[i/perWord] |= int64(uint64(e) << ((i % perWord) * width))
	}
	return words
}

// PackSpanning is the encoding inverse of UnpackSpanning.
func PackSpanning(entries []uint16, width int) []int64 {
	words := make([]int64, (len(entries)*width+63)/64)
	for i, e := range entries {
		bit := i * width
		word, off := bit/64, bit%64
		words[word] |= int64(uint64(e) << off)
		if off+width > 64 {
			words[word+1] |= int64(uint64(e) >> (64 - off))
		}
	}
	return words
}
