// Package layout provides the geometric primitives of the placement model:
// axis-aligned rectangles for the chip core, fence region and partition
// sub-regions, and the classification of chip-boundary pins onto the four
// core edges.
package layout

// Rect is an axis-aligned rectangle given by its lower-left (Lx, Ly) and
// upper-right (Ux, Uy) corners. It is a value type - child layouts derived
// during partitioning are independent copies, never shared.
type Rect struct {
	Lx, Ly float64
	Ux, Uy float64
}

// NewRect creates a rectangle from its corner coordinates.
func NewRect(lx, ly, ux, uy float64) Rect {
	return Rect{Lx: lx, Ly: ly, Ux: ux, Uy: uy}
}

// Width returns the horizontal extent (Ux - Lx).
func (r Rect) Width() float64 { return r.Ux - r.Lx }

// Height returns the vertical extent (Uy - Ly).
func (r Rect) Height() float64 { return r.Uy - r.Ly }

// Area returns Width * Height.
func (r Rect) Area() float64 { return r.Width() * r.Height() }

// CenterX returns the x coordinate of the rectangle's center.
func (r Rect) CenterX() float64 { return (r.Lx + r.Ux) / 2 }

// CenterY returns the y coordinate of the rectangle's center.
func (r Rect) CenterY() float64 { return (r.Ly + r.Uy) / 2 }

// Valid reports whether the rectangle is well formed, i.e. the upper-right
// corner is not below or left of the lower-left corner.
func (r Rect) Valid() bool {
	return r.Ux >= r.Lx && r.Uy >= r.Ly
}

// Contains reports whether the point (x, y) lies inside the rectangle,
// boundary included.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.Lx && x <= r.Ux && y >= r.Ly && y <= r.Uy
}

// ContainsRect reports whether other lies entirely inside r, boundary
// included.
func (r Rect) ContainsRect(other Rect) bool {
	return other.Lx >= r.Lx && other.Ux <= r.Ux &&
		other.Ly >= r.Ly && other.Uy <= r.Uy
}
