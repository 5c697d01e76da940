package render

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/eak1mov/go-anviltiles/chunk"
)

// DrawChunk renders one chunk into its 16x16 cell of a top-down region
// image. lx and lz are the chunk's region-local coordinates in [0, 32).
// north, when non-nil, supplies surface heights for terrain shading of
// the chunk's northernmost row.
func (r *Renderer) DrawChunk(img *image.NRGBA, c, north *chunk.Chunk, lx, lz int) {
	ox, oz := lx*16, lz*16
	var buf [16]columnSample
	for z := range 16 {
		for x := range 16 {
			img.SetNRGBA(ox+x, oz+z, r.columnColor(c, north, x, z, buf[:0]))
		}
	}
}

// ClearChunk resets a chunk's cell to transparent, so a region image can
// be redrawn incrementally when only some chunks changed.
func ClearChunk(img *image.NRGBA, lx, lz int) {
	cell := image.Rect(lx*16, lz*16, lx*16+16, lz*16+16)
	draw.Draw(img, cell, image.Transparent, image.Point{}, draw.Src)
}

// columnColor composites one block column into a single pixel. Samples
// are blended back-to-front with straight alpha, so a translucent block
// over an opaque one yields a different color than the reverse order.
func (r *Renderer) columnColor(c, north *chunk.Chunk, x, z int, buf []columnSample) color.NRGBA {
	samples := r.columnSamples(c, x, z, buf)
	if len(samples) == 0 {
		return color.NRGBA{}
	}

	terrain := r.terrainFactor(c, north, x, z)

	// Premultiplied accumulation, divided back out at the end.
	var cr, cg, cb, ca float64
	for i := len(samples) - 1; i >= 0; i-- {
		s := samples[i]
		sr, sg, sb := r.sampleColor(c, x, z, s)
		shade := r.sampleShade(c, x, z, s, terrain)
		a := s.app.Alpha
		cr = sr*shade*a + cr*(1-a)
		cg = sg*shade*a + cg*(1-a)
		cb = sb*shade*a + cb*(1-a)
		ca = a + ca*(1-a)
	}
	if ca > 0 {
		cr /= ca
		cg /= ca
		cb /= ca
	}
	return color.NRGBA{
		R: uint8(cr*255 + 0.5),
		G: uint8(cg*255 + 0.5),
		B: uint8(cb*255 + 0.5),
		A: uint8(ca*255 + 0.5),
	}
}
