package fractal

import (
	"fmt"
	"math"

	"github.com/gogpu/fractal/internal/gpucore"
	"github.com/gogpu/fractal/internal/partition"
	"github.com/gogpu/fractal/internal/raster"
)

// Defaults of the command-line renderer.
const (
	DefaultWidth        = 3840
	DefaultHeight       = 2160
	DefaultMaxIteration = 800
)

// MaxDimension bounds Width and Height.
const MaxDimension = 1 << 15

// Image describes the raster to render.
type Image struct {
	Width        int
	Height       int
	MaxIteration int
}

// Validate reports whether the image can be rendered.
func (img Image) Validate() error {
	switch {
	case img.Width <= 0 || img.Height <= 0:
		return fmt.Errorf("%w: size %dx%d", ErrInvalidImage, img.Width, img.Height)
	case img.Width > MaxDimension || img.Height > MaxDimension:
		return fmt.Errorf("%w: size %dx%d exceeds %d", ErrInvalidImage, img.Width, img.Height, MaxDimension)
	case img.MaxIteration <= 0 || img.MaxIteration > math.MaxInt32:
		return fmt.Errorf("%w: max iteration %d", ErrInvalidImage, img.MaxIteration)
	}
	return nil
}

// ByteSize returns the size of the raw RGBA8 raster.
func (img Image) ByteSize() int {
	return img.Width * img.Height * 4
}

// Source is kernel source text with its language.
type Source = gpucore.Source

// DeviceInfo describes a compute device.
type DeviceInfo = gpucore.DeviceInfo

// Shape is a two-dimensional extent in invocations.
type Shape = partition.Shape

// Kernel source languages.
const (
	LanguageWGSL    = gpucore.LanguageWGSL
	LanguageOpenCLC = gpucore.LanguageOpenCLC
)

// Result is a rendered raster.
type Result struct {
	Image

	// Pixels holds Height rows of Stride bytes, RGBA8 per pixel.
	Pixels []byte
	Stride int

	// Space is the padded iteration space that was dispatched.
	Space partition.Space

	// Backend and Device identify where the kernel ran.
	Backend string
	Device  DeviceInfo
}

// Save encodes the raster to path. The format follows the extension.
func (r *Result) Save(path string, opts ...EncodeOption) error {
	return raster.EncodeAndSave(r.Pixels, r.Width, r.Height, r.Stride, raster.FormatRGBA8, path, opts...)
}
