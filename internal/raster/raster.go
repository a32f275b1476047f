// Package raster turns the raw device buffer into an image file.
//
// The device writes one packed RGBA8 word per pixel, rows back to back.
// EncodeAndSave wraps those bytes in an image.NRGBA without copying,
// optionally downsamples and captions the result, and encodes it by file
// extension. Output is written to a temporary file in the target directory
// and renamed into place, so a partial image is never visible.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	// Register the WebP decoder for Decode.
	_ "golang.org/x/image/webp"
)

// ErrEncode is returned when the raster cannot be encoded or written.
var ErrEncode = errors.New("fractal: encode failed")

// PixelFormat is the layout of the raw device buffer.
type PixelFormat uint8

const (
	// FormatRGBA8 is 8-bit R, G, B, A in byte order, non-premultiplied.
	FormatRGBA8 PixelFormat = iota
)

// String returns the format name.
func (f PixelFormat) String() string {
	switch f {
	case FormatRGBA8:
		return "RGBA8"
	default:
		return fmt.Sprintf("PixelFormat(%d)", uint8(f))
	}
}

// Stride returns the row pitch for a width: 32 bits per pixel rounded up
// to a whole 32-bit word. For RGBA8 this is always 4*width.
func Stride(width int) int {
	return ((32*width + 31) / 32) * 4
}

// EncodeAndSave encodes raw as an image and writes it to path.
//
// The encoder is chosen by extension: .png (also used when there is no
// extension), .jpg/.jpeg, .bmp and .tif/.tiff. Every failure wraps
// ErrEncode and leaves no file at path.
func EncodeAndSave(raw []byte, width, height, stride int, format PixelFormat, path string, opts ...EncodeOption) error {
	img, err := wrap(raw, width, height, stride, format)
	if err != nil {
		return err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	enc, err := encoderFor(path, o)
	if err != nil {
		return err
	}

	// The caller's buffer is never drawn on.
	out := img
	switch {
	case o.scale > 1:
		out = downscale(img, o.scale)
	case o.caption != "":
		out = &image.NRGBA{Pix: slices.Clone(img.Pix), Stride: img.Stride, Rect: img.Rect}
	}
	if o.caption != "" {
		if err := drawCaption(out, o.caption); err != nil {
			return fmt.Errorf("%w: caption: %w", ErrEncode, err)
		}
	}

	slogger().Debug("raster: encode",
		"path", path, "width", out.Bounds().Dx(), "height", out.Bounds().Dy())
	return writeAtomic(path, func(w io.Writer) error { return enc(w, out) })
}

// wrap validates the raw buffer and views it as an NRGBA image.
func wrap(raw []byte, width, height, stride int, format PixelFormat) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid size %dx%d", ErrEncode, width, height)
	}
	if format != FormatRGBA8 {
		return nil, fmt.Errorf("%w: unsupported pixel format %s", ErrEncode, format)
	}
	if want := Stride(width); stride != want {
		return nil, fmt.Errorf("%w: stride %d, want %d for width %d", ErrEncode, stride, want, width)
	}
	if need := stride * height; len(raw) < need {
		return nil, fmt.Errorf("%w: buffer holds %d bytes, %dx%d needs %d", ErrEncode, len(raw), width, height, need)
	}
	return &image.NRGBA{
		Pix:    raw[:stride*height],
		Stride: stride,
		Rect:   image.Rect(0, 0, width, height),
	}, nil
}

type encodeFunc func(w io.Writer, img image.Image) error

func encoderFor(path string, o options) (encodeFunc, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case "", ".png":
		return png.Encode, nil
	case ".jpg", ".jpeg":
		return func(w io.Writer, img image.Image) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: o.quality})
		}, nil
	case ".bmp":
		return bmp.Encode, nil
	case ".tif", ".tiff":
		return func(w io.Writer, img image.Image) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
		}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported file extension %q", ErrEncode, ext)
	}
}

const outputMode os.FileMode = 0o644

// writeAtomic writes through a temporary file in the destination directory
// and renames it onto path.
func writeAtomic(path string, write func(io.Writer) error) error {
	dir, base := filepath.Split(filepath.Clean(path))
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", ErrEncode, err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }() // no-op after a successful rename

	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}
	// CreateTemp opens with 0600; the image is an ordinary output file.
	if err := f.Chmod(outputMode); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: chmod: %w", ErrEncode, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close: %w", ErrEncode, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: rename: %w", ErrEncode, err)
	}
	return nil
}

// downscale shrinks img by an integer factor with Catmull-Rom resampling.
func downscale(img *image.NRGBA, factor int) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, max(1, b.Dx()/factor), max(1, b.Dy()/factor)))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// Decode reads an image file and returns it as NRGBA.
func Decode(path string) (*image.NRGBA, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("raster: open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("raster: decode: %w", err)
	}
	if n, ok := img.(*image.NRGBA); ok {
		return n, nil
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
	return dst, nil
}
