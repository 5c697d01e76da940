package chunk_test

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/eak1mov/go-anviltiles/chunk"
	"github.com/google/go-cmp/cmp"
)

func TestBlockBits(t *testing.T) {
	t.Parallel()

	cases := []struct {
		palette int
		want    int
	}{
		{1, 4}, {2, 4}, {16, 4}, {17, 5}, {32, 5}, {33, 6}, {256, 8}, {257, 9}, {4096, 12},
	}
	for _, tc := range cases {
		if got := chunk.BlockBits(tc.palette); got != tc.want {
			t.Errorf("BlockBits(%d) = %d, want %d", tc.palette, got, tc.want)
		}
	}

	if got := chunk.NaturalBits(2); got != 1 {
		t.Errorf("NaturalBits(2) = %d, want 1", got)
	}
	if got := chunk.NaturalBits(1); got != 1 {
		t.Errorf("NaturalBits(1) = %d, want 1", got)
	}
}

func randomIndices(r *rand.Rand, count, palette int) []uint16 {
	indices := make([]uint16, count)
	for i := range indices {
		indices[i] = uint16(r.IntN(palette))
	}
	return indices
}

func TestPackRoundTrip(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(7, 11))
	for _, palette := range []int{2, 5, 16, 17, 100, 500, 4096} {
		width := chunk.BlockBits(palette)
		indices := randomIndices(r, chunk.BlocksPerSection, palette)

		aligned, err := chunk.UnpackAligned(chunk.PackAligned(indices, width), width, len(indices))
		if err != nil {
			t.Fatalf("palette %d: UnpackAligned failed: %v", palette, err)
		}
		if diff := cmp.Diff(indices, aligned); diff != "" {
			t.Errorf("palette %d: aligned round trip mismatch:\n%s", palette, diff)
		}

		spanning, err := chunk.UnpackSpanning(chunk.PackSpanning(indices, width), width, len(indices))
		if err != nil {
			t.Fatalf("palette %d: UnpackSpanning failed: %v", palette, err)
		}
		if diff := cmp.Diff(indices, spanning); diff != "" {
			t.Errorf("palette %d: spanning round trip mismatch:\n%s", palette, diff)
		}
	}
}

// A 17-state palette needs 5 bits per entry; the aligned layout fits 12
// entries per word and wastes the top 4 bits.
func TestAlignedSeventeenStatePalette(t *testing.T) {
	t.Parallel()

	const palette = 17
	width := chunk.BlockBits(palette)
	if width != 5 {
		t.Fatalf("BlockBits(17) = %d, want 5", width)
	}

	r := rand.New(rand.NewPCG(1, 2))
	indices := randomIndices(r, chunk.BlocksPerSection, palette)
	words := chunk.PackAligned(indices, width)

	if wantWords := (chunk.BlocksPerSection + 11) / 12; len(words) != wantWords {
		t.Errorf("PackAligned produced %d words, want %d", len(words), wantWords)
	}

	decoded, err := chunk.UnpackAligned(words, width, chunk.BlocksPerSection)
	if err != nil {
		t.Fatalf("UnpackAligned failed: %v", err)
	}
	if len(decoded) != chunk.BlocksPerSection {
		t.Fatalf("decoded %d entries, want %d", len(decoded), chunk.BlocksPerSection)
	}
	for i, v := range decoded {
		if v >= palette {
			t.Fatalf("entry %d = %d, outside [0,%d)", i, v, palette)
		}
	}
}

func TestLayoutsDiffer(t *testing.T) {
	t.Parallel()

	// 5-bit entries: spanning packs 4096*5 bits into 320 words, aligned
	// needs 342. The layouts must not be confused for one another.
	indices := randomIndices(rand.New(rand.NewPCG(3, 4)), chunk.BlocksPerSection, 17)
	if sp, al := chunk.PackSpanning(indices, 5), chunk.PackAligned(indices, 5); len(sp) == len(al) {
		t.Errorf("spanning (%d words) and aligned (%d words) should differ for 5-bit entries", len(sp), len(al))
	}
}

func TestUnpackShortData(t *testing.T) {
	t.Parallel()

	words := make([]int64, 10)
	if _, err := chunk.UnpackAligned(words, 4, chunk.BlocksPerSection); !errors.Is(err, chunk.ErrPackedData) {
		t.Errorf("UnpackAligned short error = %v, want ErrPackedData", err)
	}
	if _, err := chunk.UnpackSpanning(words, 4, chunk.BlocksPerSection); !errors.Is(err, chunk.ErrPackedData) {
		t.Errorf("UnpackSpanning short error = %v, want ErrPackedData", err)
	}
}
