// Package partition maps a 2D pixel grid onto fixed-size compute workgroups.
//
// The global iteration space is the image extent rounded up, per axis, to the
// next multiple of the tile (local workgroup) shape. Invocations that fall in
// the padding region are expected to be discarded by the kernel.
package partition

import "fmt"

// Shape is a 2D extent in invocations.
type Shape struct {
	X int
	Y int
}

// Tile is the default local workgroup shape.
// 16x16 divides the common warp/wavefront widths (32, 64) evenly.
var Tile = Shape{X: 16, Y: 16}

// String returns the shape as "X x Y".
func (s Shape) String() string {
	return fmt.Sprintf("%d x %d", s.X, s.Y)
}

// Area returns X*Y.
func (s Shape) Area() int {
	return s.X * s.Y
}

// Space is the iteration space of one dispatch.
//
// Invariant: Global.X%Local.X == 0 and Global.Y%Local.Y == 0.
type Space struct {
	// Global is the padded extent covered by the dispatch.
	Global Shape

	// Local is the workgroup (tile) shape.
	Local Shape

	// Width and Height are the true image bounds. Invocations outside
	// them are padding.
	Width  int
	Height int
}

// RoundUp returns the smallest multiple of tile that is >= dim.
// Panics if dim or tile is not positive.
func RoundUp(dim, tile int) int {
	if dim <= 0 || tile <= 0 {
		panic(fmt.Sprintf("partition: non-positive extent (dim=%d, tile=%d)", dim, tile))
	}
	return (dim + tile - 1) / tile * tile
}

// For returns the iteration space covering a width x height image with the
// given tile shape.
func For(width, height int, tile Shape) Space {
	return Space{
		Global: Shape{X: RoundUp(width, tile.X), Y: RoundUp(height, tile.Y)},
		Local:  tile,
		Width:  width,
		Height: height,
	}
}

// Workgroups returns the number of workgroups per axis.
func (s Space) Workgroups() Shape {
	return Shape{X: s.Global.X / s.Local.X, Y: s.Global.Y / s.Local.Y}
}

// Invocations returns the total number of kernel invocations, padding included.
func (s Space) Invocations() int {
	return s.Global.Area()
}

// Padding returns the number of invocations outside the image bounds.
func (s Space) Padding() int {
	return s.Invocations() - s.Width*s.Height
}

// InBounds reports whether the global coordinate (x, y) lies inside the image.
func (s Space) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < s.Width && y < s.Height
}

// Origin returns the global coordinate of workgroup i's first invocation.
// Workgroups are numbered row by row.
func (s Space) Origin(i int) (x0, y0 int) {
	wg := s.Workgroups()
	return (i % wg.X) * s.Local.X, (i / wg.X) * s.Local.Y
}
