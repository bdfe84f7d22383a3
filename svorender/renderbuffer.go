// Package svorender is the rendering core of the octree splatter: the
// pixel/depth renderbuffer, the fixed-point octree splatter, the trilinear
// cage subdivider and the multi-worker per-frame pipeline, plus the Demo
// facade hosts drive. Everything here is CPU-only; hosts own windowing and
// pixel upload.
package svorender

import (
	"errors"
)

// Color32 is a packed R,G,B,A pixel.
type Color32 struct {
	R, G, B, A uint8
}

// DepthSteps is the number of discretization steps along depth: the
// renderbuffer Z unit. Depth values grow away from the camera.
const DepthSteps = 1 << 24

// maxDimension bounds renderbuffer data dimensions so fixed-point pixel
// coordinates (subpixelShift fractional bits) cannot overflow int32.
const maxDimension = 1 << 14

// Renderbuffer owns the color, depth and reconstruction storage written by
// render jobs. The data buffer is 2x oversampled in X and Y when temporal
// upscaling is enabled. Rows are addressed through a power-of-two stride so
// pixel indexing is a shift and an add.
type Renderbuffer struct {
	width, height int // final output pixels
	dataW, dataH  int // data pixels (2x when upscaling)
	shiftX        uint8
	upscale       bool
	phase         int

	color   []Color32
	depth   []int32
	final   []Color32
	history []Color32
	blended bool
}

// Resize reallocates storage for the argument output resolution. Must be
// called before the first frame and again whenever the viewport or the
// upscaling mode changes.
func (rb *Renderbuffer) Resize(width, height int, upscale bool) error {
	if width <= 0 || height <= 0 {
		return errors.New("renderbuffer dimensions must be positive")
	}
	scale := 1
	if upscale {
		scale = 2
	}
	dataW, dataH := width*scale, height*scale
	if dataW > maxDimension || dataH > maxDimension {
		return errors.New("renderbuffer dimensions too large for fixed-point rasterization")
	}
	var shift uint8
	for 1<<shift < dataW {
		shift++
	}
	rb.width, rb.height = width, height
	rb.dataW, rb.dataH = dataW, dataH
	rb.shiftX = shift
	rb.upscale = upscale
	rb.phase = 0
	rb.blended = false
	n := dataH << shift
	if cap(rb.color) < n {
		rb.color = make([]Color32, n)
		rb.depth = make([]int32, n)
	}
	rb.color = rb.color[:n]
	rb.depth = rb.depth[:n]
	if cap(rb.final) < width*height {
		rb.final = make([]Color32, width*height)
		rb.history = make([]Color32, width*height)
	}
	rb.final = rb.final[:width*height]
	rb.history = rb.history[:width*height]
	return nil
}

// Width and Height are the final output dimensions.
func (rb *Renderbuffer) Width() int  { return rb.width }
func (rb *Renderbuffer) Height() int { return rb.height }

// DataWidth and DataHeight are the dimensions of the working buffer the
// splatter writes: twice the output dimensions when upscaling.
func (rb *Renderbuffer) DataWidth() int  { return rb.dataW }
func (rb *Renderbuffer) DataHeight() int { return rb.dataH }

// ShiftX is the log2 row stride of the working buffer.
func (rb *Renderbuffer) ShiftX() uint8 { return rb.shiftX }

// Upscaling reports whether 2x temporal upscaling is active.
func (rb *Renderbuffer) Upscaling() bool { return rb.upscale }

// SamplingOffset returns the sub-pixel jitter of the current temporal
// phase, in data pixels. Zero when upscaling is off. The 4-phase schedule
// walks the quarter-pixel corners (-1/4,-1/4), (+1/4,-1/4), (-1/4,+1/4),
// (+1/4,+1/4) and is stable frame-over-frame.
func (rb *Renderbuffer) SamplingOffset() (x, y float32) {
	if !rb.upscale {
		return 0, 0
	}
	x = float32(rb.phase&1)*0.5 - 0.25
	y = float32(rb.phase>>1)*0.5 - 0.25
	return x, y
}

// Begin clears the working buffer to the background color and all depths
// to [DepthSteps]. Must precede any render job of the frame.
func (rb *Renderbuffer) Begin(background Color32) {
	for i := range rb.color {
		rb.color[i] = background
	}
	for i := range rb.depth {
		rb.depth[i] = DepthSteps
	}
}

// End resolves the working buffer into the final image after all jobs have
// joined. Without upscaling this is a row copy. With upscaling each final
// pixel is the rounded average of its 2x2 data block, blended 1:1 with the
// previous frame's reconstruction so the 4-phase jitter accumulates into a
// temporal supersample; the phase then advances.
func (rb *Renderbuffer) End() {
	if !rb.upscale {
		for y := 0; y < rb.height; y++ {
			row := rb.color[y<<rb.shiftX:]
			copy(rb.final[y*rb.width:(y+1)*rb.width], row[:rb.width])
		}
		rb.blended = false
		rb.phase = (rb.phase + 1) & 3
		return
	}
	stride := 1 << rb.shiftX
	for y := 0; y < rb.height; y++ {
		top := rb.color[(y*2)<<rb.shiftX:]
		bot := top[stride:]
		out := rb.final[y*rb.width:]
		for x := 0; x < rb.width; x++ {
			a, b := top[x*2], top[x*2+1]
			c, d := bot[x*2], bot[x*2+1]
			out[x] = Color32{
				R: uint8((uint32(a.R) + uint32(b.R) + uint32(c.R) + uint32(d.R) + 2) / 4),
				G: uint8((uint32(a.G) + uint32(b.G) + uint32(c.G) + uint32(d.G) + 2) / 4),
				B: uint8((uint32(a.B) + uint32(b.B) + uint32(c.B) + uint32(d.B) + 2) / 4),
				A: uint8((uint32(a.A) + uint32(b.A) + uint32(c.A) + uint32(d.A) + 2) / 4),
			}
		}
	}
	if rb.blended {
		for i, cur := range rb.final {
			h := rb.history[i]
			rb.final[i] = Color32{
				R: uint8((uint32(cur.R) + uint32(h.R) + 1) / 2),
				G: uint8((uint32(cur.G) + uint32(h.G) + 1) / 2),
				B: uint8((uint32(cur.B) + uint32(h.B) + 1) / 2),
				A: uint8((uint32(cur.A) + uint32(h.A) + 1) / 2),
			}
		}
	}
	copy(rb.history, rb.final)
	rb.blended = true
	rb.phase = (rb.phase + 1) & 3
}

// ImageData returns the final resolution and pixel array. The slice aliases
// renderbuffer storage and is valid until the next Resize.
func (rb *Renderbuffer) ImageData() (width, height int, pix []Color32) {
	return rb.width, rb.height, rb.final
}
