package kernel

import (
	"encoding/binary"
	"math"
	"testing"
)

// =============================================================================
// Escape Tests
// =============================================================================

func TestEscape_OriginIsInterior(t *testing.T) {
	for _, maxIter := range []int{1, 2, 10, 100, 800, 5000} {
		if n := Escape(0, 0, maxIter); n != maxIter {
			t.Errorf("Escape(0, 0, %d) = %d, want %d (interior)", maxIter, n, maxIter)
		}
		if got := Shade(Escape(0, 0, maxIter), maxIter); got != Interior {
			t.Errorf("Shade at c=0 = %v, want interior %v", got, Interior)
		}
	}
}

func TestEscape_TwoEscapesImmediately(t *testing.T) {
	// z1 = 2 sits exactly on the radius and is not escaped, z2 = 6 is.
	if n := Escape(2, 0, 800); n != 2 {
		t.Errorf("Escape(2, 0) = %d, want 2", n)
	}
	if n := Escape(2.5, 0, 800); n != 1 {
		t.Errorf("Escape(2.5, 0) = %d, want 1", n)
	}
}

func TestEscape_KnownPoints(t *testing.T) {
	tests := []struct {
		name     string
		cx, cy   float32
		interior bool
	}{
		{"origin", 0, 0, true},
		{"period-2 bulb", -1, 0, true},
		{"cusp neighbourhood", 0.2, 0, true},
		{"tip", -2, 0, true},
		{"i", 0, 1, true},
		{"far right", 1, 0, false},
		{"far left", -2.1, 0, false},
		{"above", 0, 1.5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := Escape(tt.cx, tt.cy, 500)
			if got := n == 500; got != tt.interior {
				t.Errorf("Escape(%v, %v) = %d, interior=%v, want %v", tt.cx, tt.cy, n, got, tt.interior)
			}
		})
	}
}

func TestEscape_ZeroBound(t *testing.T) {
	if n := Escape(5, 5, 0); n != 0 {
		t.Errorf("Escape with maxIter=0 = %d, want 0", n)
	}
}

// =============================================================================
// Determinism Tests
// =============================================================================

func TestPixel_Deterministic(t *testing.T) {
	v := NewViewport(97, 61)
	for y := range 61 {
		for x := range 97 {
			a := Pixel(v, x, y, 300)
			b := Pixel(v, x, y, 300)
			if a != b {
				t.Fatalf("Pixel(%d, %d) not deterministic: %v vs %v", x, y, a, b)
			}
		}
	}
}

func TestShade_PaletteOpaque(t *testing.T) {
	for n := range 64 {
		if c := Shade(n, 1000); c.A != 255 {
			t.Errorf("Shade(%d).A = %d, want 255", n, c.A)
		}
	}
	if Shade(1000, 1000) != Interior {
		t.Error("Shade at maxIter is not interior")
	}
}

func TestPackUnpack(t *testing.T) {
	c := RGBA{R: 1, G: 2, B: 3, A: 4}
	if got := c.Pack(); got != 0x04030201 {
		t.Errorf("Pack() = %#x, want 0x04030201", got)
	}
	if got := Unpack(c.Pack()); got != c {
		t.Errorf("Unpack(Pack()) = %v, want %v", got, c)
	}
}

// =============================================================================
// Viewport Tests
// =============================================================================

func TestNewViewport_AspectPreserved(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
	}{
		{"uhd", 3840, 2160},
		{"square", 64, 64},
		{"tall", 100, 400},
		{"exact", 350, 250},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewViewport(tt.width, tt.height)
			spanRe := float64(v.Scale) * float64(tt.width)
			spanIm := float64(v.Scale) * float64(tt.height)

			// The classic window must fit entirely.
			if spanRe < (MaxRe-MinRe)-1e-4 || spanIm < (MaxIm-MinIm)-1e-4 {
				t.Errorf("viewport %gx%g does not cover the classic window", spanRe, spanIm)
			}
			// And at least one axis is tight.
			tightRe := math.Abs(spanRe-(MaxRe-MinRe)) < 1e-4
			tightIm := math.Abs(spanIm-(MaxIm-MinIm)) < 1e-4
			if !tightRe && !tightIm {
				t.Errorf("viewport %gx%g is larger than needed", spanRe, spanIm)
			}
			// Centred on -0.75 + 0i.
			centerRe := float64(v.MinRe) + spanRe/2
			centerIm := float64(v.MaxIm) - spanIm/2
			if math.Abs(centerRe+0.75) > 1e-4 || math.Abs(centerIm) > 1e-4 {
				t.Errorf("viewport centre = (%g, %g), want (-0.75, 0)", centerRe, centerIm)
			}
		})
	}
}

func TestViewport_MapOrientation(t *testing.T) {
	v := NewViewport(350, 250)

	x0, y0 := v.Map(0, 0)
	x1, y1 := v.Map(349, 249)
	if !(x0 < x1) {
		t.Errorf("real axis not increasing left to right: %v .. %v", x0, x1)
	}
	if !(y0 > y1) {
		t.Errorf("imaginary axis not decreasing top to bottom: %v .. %v", y0, y1)
	}
	if x0 < MinRe || x1 > MaxRe || y0 > MaxIm || y1 < MinIm {
		t.Errorf("corner samples outside the window: (%v,%v) (%v,%v)", x0, y0, x1, y1)
	}
}

func TestViewport_CentrePixelInterior(t *testing.T) {
	// The pixel nearest c = 0 lies deep inside the main cardioid.
	const w, h = 64, 64
	v := NewViewport(w, h)
	x := int((0 - float64(v.MinRe)) / float64(v.Scale))
	y := int(float64(v.MaxIm) / float64(v.Scale))
	if got := Pixel(v, x, y, 100); got != Interior {
		t.Errorf("pixel (%d, %d) near c=0 = %v, want interior", x, y, got)
	}
}

func TestEncodeParams(t *testing.T) {
	b := EncodeParams(800, 3840, 2160)
	if len(b) != ParamsSize {
		t.Fatalf("len = %d, want %d", len(b), ParamsSize)
	}
	if got := binary.LittleEndian.Uint32(b[0:]); got != 800 {
		t.Errorf("max_iteration = %d", got)
	}
	if got := binary.LittleEndian.Uint32(b[4:]); got != 3840 {
		t.Errorf("width = %d", got)
	}
	if got := binary.LittleEndian.Uint32(b[8:]); got != 2160 {
		t.Errorf("height = %d", got)
	}
	v := NewViewport(3840, 2160)
	if got := math.Float32frombits(binary.LittleEndian.Uint32(b[24:])); got != v.Scale {
		t.Errorf("scale = %v, want %v", got, v.Scale)
	}
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkPixel(b *testing.B) {
	v := NewViewport(256, 256)
	b.ResetTimer()
	for i := range b.N {
		_ = Pixel(v, i%256, (i/256)%256, 800)
	}
}
