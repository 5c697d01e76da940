package render

import (
	"image"
	"image/color"

	"github.com/eak1mov/go-anviltiles/chunk"
)

// DrawChunkIso renders one chunk into an isometric region canvas. Blocks
// project at two pixels per axis step: screen x = 1022 + 2*(x-z),
// screen y = 319 + x + z - blockY, with a top-face pixel pair and a
// darkened side pixel pair below it.
//
// Occlusion relies on painter order: the caller must draw chunks in
// ascending lx+lz, and within a chunk this walks columns in ascending
// x+z, so nearer columns overdraw farther ones.
func (r *Renderer) DrawChunkIso(img *image.NRGBA, c *chunk.Chunk, lx, lz int) {
	var buf [64]columnSample
	for d := 0; d <= 30; d++ {
		for x := max(0, d-15); x <= min(15, d); x++ {
			z := d - x
			r.drawColumnIso(img, c, x, z, lx*16+x, lz*16+z, buf[:0])
		}
	}
}

const isoSideFactor = 0.7

// drawColumnIso draws the visible blocks of one column bottom-up, so a
// taller block in the same column overdraws the side face of the one
// below it.
func (r *Renderer) drawColumnIso(img *image.NRGBA, c *chunk.Chunk, x, z, absX, absZ int, buf []columnSample) {
	samples := r.columnSamples(c, x, z, buf)
	if len(samples) == 0 {
		return
	}
	terrain := r.terrainFactor(c, nil, x, z)

	for i := len(samples) - 1; i >= 0; i-- {
		s := samples[i]
		sr, sg, sb := r.sampleColor(c, x, z, s)
		shade := r.sampleShade(c, x, z, s, terrain)
		a := s.app.Alpha

		sx := isoOffsetX + 2*(absX-absZ)
		sy := isoOffsetY + absX + absZ - s.y

		blendPixel(img, sx, sy, sr*shade, sg*shade, sb*shade, a)
		blendPixel(img, sx+1, sy, sr*shade, sg*shade, sb*shade, a)
		side := shade * isoSideFactor
		blendPixel(img, sx, sy+1, sr*side, sg*side, sb*side, a)
		blendPixel(img, sx+1, sy+1, sr*side, sg*side, sb*side, a)
	}
}

// blendPixel composites a straight-alpha source over the pixel already
// on the canvas.
func blendPixel(img *image.NRGBA, x, y int, sr, sg, sb, sa float64) {
	if sa <= 0 || !image.Pt(x, y).In(img.Rect) {
		return
	}
	dst := img.NRGBAAt(x, y)
	da := float64(dst.A) / 255

	outA := sa + da*(1-sa)
	if outA <= 0 {
		return
	}
	blend := func(s float64, d uint8) uint8 {
		v := (s*sa + float64(d)/255*da*(1-sa)) / outA
		return uint8(v*255 + 0.5)
	}
	img.SetNRGBA(x, y, color.NRGBA{
		R: blend(sr, dst.R),
		G: blend(sg, dst.G),
		B: blend(sb, dst.B),
		A: uint8(outA*255 + 0.5),
	})
}
