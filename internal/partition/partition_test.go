package partition

import "testing"

// =============================================================================
// RoundUp Tests
// =============================================================================

func TestRoundUp(t *testing.T) {
	tests := []struct {
		dim, tile, want int
	}{
		{1, 16, 16},
		{15, 16, 16},
		{16, 16, 16},
		{17, 16, 32},
		{64, 16, 64},
		{100, 16, 112},
		{2160, 16, 2160},
		{3840, 16, 3840},
		{1080, 16, 1088},
		{7, 1, 7},
		{7, 7, 7},
		{8, 7, 14},
	}
	for _, tt := range tests {
		if got := RoundUp(tt.dim, tt.tile); got != tt.want {
			t.Errorf("RoundUp(%d, %d) = %d, want %d", tt.dim, tt.tile, got, tt.want)
		}
	}
}

func TestRoundUp_Minimal(t *testing.T) {
	for tile := 1; tile <= 32; tile++ {
		for dim := 1; dim <= 300; dim++ {
			g := RoundUp(dim, tile)
			if g < dim {
				t.Fatalf("RoundUp(%d, %d) = %d < dim", dim, tile, g)
			}
			if g%tile != 0 {
				t.Fatalf("RoundUp(%d, %d) = %d not a multiple of tile", dim, tile, g)
			}
			if smaller := g - tile; smaller >= dim {
				t.Fatalf("RoundUp(%d, %d) = %d not minimal: %d also fits", dim, tile, g, smaller)
			}
		}
	}
}

func TestRoundUp_PanicsOnNonPositive(t *testing.T) {
	cases := [][2]int{{0, 16}, {-1, 16}, {16, 0}, {16, -4}}
	for _, c := range cases {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("RoundUp(%d, %d) did not panic", c[0], c[1])
				}
			}()
			RoundUp(c[0], c[1])
		}()
	}
}

// =============================================================================
// Space Tests
// =============================================================================

func TestFor_UHD(t *testing.T) {
	s := For(3840, 2160, Tile)

	if s.Global != (Shape{3840, 2160}) {
		t.Errorf("Global = %v, want 3840 x 2160", s.Global)
	}
	if s.Local != (Shape{16, 16}) {
		t.Errorf("Local = %v, want 16 x 16", s.Local)
	}
	if got := s.Invocations(); got != 8_294_400 {
		t.Errorf("Invocations() = %d, want 8294400", got)
	}
	if got := s.Workgroups(); got != (Shape{240, 135}) {
		t.Errorf("Workgroups() = %v, want 240 x 135", got)
	}
	if got := s.Padding(); got != 0 {
		t.Errorf("Padding() = %d, want 0", got)
	}
}

func TestFor_Padded(t *testing.T) {
	s := For(100, 37, Tile)

	if s.Global != (Shape{112, 48}) {
		t.Errorf("Global = %v, want 112 x 48", s.Global)
	}
	if got, want := s.Padding(), 112*48-100*37; got != want {
		t.Errorf("Padding() = %d, want %d", got, want)
	}
	if !s.InBounds(99, 36) {
		t.Error("InBounds(99, 36) = false, want true")
	}
	if s.InBounds(100, 0) || s.InBounds(0, 37) || s.InBounds(-1, 0) {
		t.Error("InBounds accepted a padding coordinate")
	}
}

func TestSpace_Origin(t *testing.T) {
	s := For(40, 20, Tile)

	want := [][2]int{{0, 0}, {16, 0}, {32, 0}, {0, 16}, {16, 16}, {32, 16}}
	if n := s.Workgroups().Area(); n != len(want) {
		t.Fatalf("%d workgroups, want %d", n, len(want))
	}
	for i := range want {
		if x0, y0 := s.Origin(i); [2]int{x0, y0} != want[i] {
			t.Errorf("Origin(%d) = (%d, %d), want %v", i, x0, y0, want[i])
		}
	}
}

func TestShape_String(t *testing.T) {
	if got := (Shape{3840, 2160}).String(); got != "3840 x 2160" {
		t.Errorf("String() = %q", got)
	}
}
