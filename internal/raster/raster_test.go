package raster

import (
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// gradient returns a w x h RGBA8 buffer whose pixels encode their position.
func gradient(w, h int) []byte {
	raw := make([]byte, w*h*4)
	for y := range h {
		for x := range w {
			i := (y*w + x) * 4
			raw[i] = uint8(x * 255 / max(1, w-1))
			raw[i+1] = uint8(y * 255 / max(1, h-1))
			raw[i+2] = 128
			raw[i+3] = 255
		}
	}
	return raw
}

// =============================================================================
// Stride Tests
// =============================================================================

func TestStride(t *testing.T) {
	for _, w := range []int{1, 7, 16, 1000, 3840} {
		if got := Stride(w); got != 4*w {
			t.Errorf("Stride(%d) = %d, want %d", w, got, 4*w)
		}
	}
}

// =============================================================================
// EncodeAndSave Tests
// =============================================================================

func TestEncodeAndSave_RoundTrip(t *testing.T) {
	const w, h = 23, 17
	raw := gradient(w, h)

	for _, name := range []string{"out.png", "out", "out.bmp", "out.tiff"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := EncodeAndSave(raw, w, h, Stride(w), FormatRGBA8, path); err != nil {
				t.Fatalf("EncodeAndSave: %v", err)
			}
			img, err := Decode(path)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if b := img.Bounds(); b.Dx() != w || b.Dy() != h {
				t.Fatalf("size = %dx%d, want %dx%d", b.Dx(), b.Dy(), w, h)
			}
			for y := range h {
				for x := range w {
					i := (y*w + x) * 4
					want := color.NRGBA{raw[i], raw[i+1], raw[i+2], raw[i+3]}
					if got := img.NRGBAAt(x, y); got != want {
						t.Fatalf("pixel (%d, %d) = %v, want %v", x, y, got, want)
					}
				}
			}
		})
	}
}

func TestEncodeAndSave_JPEG(t *testing.T) {
	const w, h = 32, 32
	path := filepath.Join(t.TempDir(), "out.jpg")
	if err := EncodeAndSave(gradient(w, h), w, h, Stride(w), FormatRGBA8, path, WithQuality(100)); err != nil {
		t.Fatalf("EncodeAndSave: %v", err)
	}
	img, err := Decode(path)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != w {
		t.Errorf("width = %d, want %d", img.Bounds().Dx(), w)
	}
}

func TestEncodeAndSave_Rejects(t *testing.T) {
	raw := gradient(8, 8)
	tests := []struct {
		name   string
		raw    []byte
		w, h   int
		stride int
		format PixelFormat
		path   string
	}{
		{"zero width", raw, 0, 8, 0, FormatRGBA8, "x.png"},
		{"bad stride", raw, 8, 8, 31, FormatRGBA8, "x.png"},
		{"short buffer", raw[:100], 8, 8, 32, FormatRGBA8, "x.png"},
		{"bad format", raw, 8, 8, 32, PixelFormat(9), "x.png"},
		{"bad extension", raw, 8, 8, 32, FormatRGBA8, "x.gif"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, tt.path)
			err := EncodeAndSave(tt.raw, tt.w, tt.h, tt.stride, tt.format, path)
			if !errors.Is(err, ErrEncode) {
				t.Fatalf("err = %v, want ErrEncode", err)
			}
			assertEmptyDir(t, dir)
		})
	}
}

func TestEncodeAndSave_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.png")
	err := EncodeAndSave(gradient(4, 4), 4, 4, Stride(4), FormatRGBA8, path)
	if !errors.Is(err, ErrEncode) {
		t.Fatalf("err = %v, want ErrEncode", err)
	}
}

func TestEncodeAndSave_ReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.png")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := EncodeAndSave(gradient(4, 4), 4, 4, Stride(4), FormatRGBA8, path); err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(path); err != nil {
		t.Errorf("Decode after overwrite: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want 1 (temp file left behind?)", len(entries))
	}
}

func TestEncodeAndSave_FileMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX permission bits")
	}
	path := filepath.Join(t.TempDir(), "out.png")
	if err := EncodeAndSave(gradient(4, 4), 4, 4, Stride(4), FormatRGBA8, path); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := fi.Mode().Perm(); got != 0o644 {
		t.Errorf("mode = %v, want -rw-r--r--", got)
	}
}

// =============================================================================
// Option Tests
// =============================================================================

func TestWithScale(t *testing.T) {
	const w, h = 64, 48
	path := filepath.Join(t.TempDir(), "small.png")
	if err := EncodeAndSave(gradient(w, h), w, h, Stride(w), FormatRGBA8, path, WithScale(4)); err != nil {
		t.Fatal(err)
	}
	img, err := Decode(path)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 12 {
		t.Errorf("size = %dx%d, want 16x12", b.Dx(), b.Dy())
	}
}

func TestWithCaption(t *testing.T) {
	const w, h = 200, 80
	raw := make([]byte, w*h*4)
	for i := 3; i < len(raw); i += 4 {
		raw[i] = 255
	}
	before := append([]byte(nil), raw...)

	path := filepath.Join(t.TempDir(), "caption.png")
	if err := EncodeAndSave(raw, w, h, Stride(w), FormatRGBA8, path, WithCaption("Mandelbrot")); err != nil {
		t.Fatal(err)
	}
	for i := range raw {
		if raw[i] != before[i] {
			t.Fatal("caption modified the caller's buffer")
		}
	}

	img, err := Decode(path)
	if err != nil {
		t.Fatal(err)
	}
	lit := 0
	for y := h / 2; y < h; y++ {
		for x := range w / 2 {
			if img.NRGBAAt(x, y).R > 128 {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Error("no caption pixels in the bottom-left quadrant")
	}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("directory holds %d entries after failure, want 0", len(entries))
	}
}
