// Package kernel holds the Mandelbrot escape-time kernel: the device sources
// (WGSL and OpenCL C), a float32 Go implementation with identical arithmetic,
// kernel source loading and the binding signature check.
package kernel

import (
	"encoding/binary"
	"math"
)

// Classic viewport of the Mandelbrot set.
const (
	MinRe = -2.5
	MaxRe = 1.0
	MinIm = -1.25
	MaxIm = 1.25

	// EscapeRadiusSq is the squared escape radius |z| > 2.
	EscapeRadiusSq = 4.0
)

// Viewport is an affine pixel-to-plane mapping with equal scale on both
// axes, centred on the classic viewport.
type Viewport struct {
	MinRe float32
	MaxIm float32
	// Scale is the width of one pixel in the complex plane.
	Scale float32
}

// NewViewport fits the classic viewport into a width x height image,
// widening whichever axis has slack so the aspect ratio is preserved.
func NewViewport(width, height int) Viewport {
	w, h := float64(width), float64(height)
	scale := math.Max((MaxRe-MinRe)/w, (MaxIm-MinIm)/h)
	centerRe := (MinRe + MaxRe) / 2
	centerIm := (MinIm + MaxIm) / 2
	return Viewport{
		MinRe: float32(centerRe - scale*w/2),
		MaxIm: float32(centerIm + scale*h/2),
		Scale: float32(scale),
	}
}

// Map returns the point c sampled by pixel (x, y). Pixels are sampled at
// their centres and y grows downward.
func (v Viewport) Map(x, y int) (cx, cy float32) {
	fx := float32(x) + 0.5
	fy := float32(y) + 0.5
	cx = v.MinRe + float32(fx*v.Scale)
	cy = v.MaxIm - float32(fy*v.Scale)
	return cx, cy
}

// Escape iterates z = z*z + c from z = 0 and returns the number of
// iterations performed before |z| exceeded 2, or maxIter if it never did.
func Escape(cx, cy float32, maxIter int) int {
	var zr, zi float32
	n := 0
	for n < maxIter {
		// Explicit conversions keep each product rounded to float32,
		// which stops the compiler from fusing multiply-adds.
		zr2 := float32(zr * zr)
		zi2 := float32(zi * zi)
		if zr2+zi2 > EscapeRadiusSq {
			break
		}
		zi = float32(2*zr*zi) + cy
		zr = zr2 - zi2 + cx
		n++
	}
	return n
}

// RGBA is one output pixel.
type RGBA struct {
	R, G, B, A uint8
}

// Pack returns the pixel as the little-endian u32 the device kernels store.
func (c RGBA) Pack() uint32 {
	return uint32(c.R) | uint32(c.G)<<8 | uint32(c.B)<<16 | uint32(c.A)<<24
}

// Unpack is the inverse of Pack.
func Unpack(v uint32) RGBA {
	return RGBA{R: uint8(v), G: uint8(v >> 8), B: uint8(v >> 16), A: uint8(v >> 24)}
}

// Interior is the color of points that never escape.
var Interior = RGBA{0, 0, 0, 255}

// Palette is the 16-stop gradient cycled by escape count.
var Palette = [16]RGBA{
	{66, 30, 15, 255},
	{25, 7, 26, 255},
	{9, 1, 47, 255},
	{4, 4, 73, 255},
	{0, 7, 100, 255},
	{12, 44, 138, 255},
	{24, 82, 177, 255},
	{57, 125, 209, 255},
	{134, 181, 229, 255},
	{211, 236, 248, 255},
	{241, 233, 191, 255},
	{248, 201, 95, 255},
	{255, 170, 0, 255},
	{204, 128, 0, 255},
	{153, 87, 0, 255},
	{106, 52, 3, 255},
}

// Shade maps an escape count to a color.
func Shade(n, maxIter int) RGBA {
	if n >= maxIter {
		return Interior
	}
	return Palette[n%len(Palette)]
}

// Pixel computes the color of pixel (x, y) in a width x height image.
func Pixel(v Viewport, x, y, maxIter int) RGBA {
	cx, cy := v.Map(x, y)
	return Shade(Escape(cx, cy, maxIter), maxIter)
}

// ParamsSize is the byte size of the uniform block bound at binding 1.
const ParamsSize = 32

// EncodeParams lays out the uniform block read by the WGSL kernel:
// max_iteration, width, height, pad (u32) then min_re, max_im, scale, pad (f32).
func EncodeParams(maxIter, width, height uint32) []byte {
	v := NewViewport(int(width), int(height))
	b := make([]byte, ParamsSize)
	binary.LittleEndian.PutUint32(b[0:], maxIter)
	binary.LittleEndian.PutUint32(b[4:], width)
	binary.LittleEndian.PutUint32(b[8:], height)
	binary.LittleEndian.PutUint32(b[16:], math.Float32bits(v.MinRe))
	binary.LittleEndian.PutUint32(b[20:], math.Float32bits(v.MaxIm))
	binary.LittleEndian.PutUint32(b[24:], math.Float32bits(v.Scale))
	return b
}
