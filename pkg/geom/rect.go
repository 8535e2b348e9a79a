package geom

import (
	"image"
	"math"
)

// Rect is a real-valued axis-aligned rectangle given by its min and max
// corners. A rectangle with X1 <= X0 or Y1 <= Y0 is empty.
type Rect struct {
	X0, Y0 float64
	X1, Y1 float64
}

// RectXYWH returns the rectangle with origin (x, y) and size (w, h).
func RectXYWH(x, y, w, h float64) Rect {
	return Rect{X0: x, Y0: y, X1: x + w, Y1: y + h}
}

// EmptyRect returns an inverted rectangle that acts as the identity for Union.
func EmptyRect() Rect {
	return Rect{
		X0: math.Inf(1), Y0: math.Inf(1),
		X1: math.Inf(-1), Y1: math.Inf(-1),
	}
}

func (r Rect) Width() float64  { return r.X1 - r.X0 }
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// IsEmpty reports whether r has no area.
func (r Rect) IsEmpty() bool {
	return !(r.X1 > r.X0 && r.Y1 > r.Y0)
}

// Union returns the smallest rectangle containing r and o. Empty operands
// are ignored.
func (r Rect) Union(o Rect) Rect {
	if o.IsEmpty() {
		return r
	}
	if r.IsEmpty() {
		return o
	}
	return Rect{
		X0: min(r.X0, o.X0), Y0: min(r.Y0, o.Y0),
		X1: max(r.X1, o.X1), Y1: max(r.Y1, o.Y1),
	}
}

// UnionPoint extends r to contain p.
func (r Rect) UnionPoint(p Point) Rect {
	return Rect{
		X0: min(r.X0, p.X), Y0: min(r.Y0, p.Y),
		X1: max(r.X1, p.X), Y1: max(r.Y1, p.Y),
	}
}

// Intersect returns the overlap of r and o, or the zero Rect when they do
// not overlap.
func (r Rect) Intersect(o Rect) Rect {
	out := Rect{
		X0: max(r.X0, o.X0), Y0: max(r.Y0, o.Y0),
		X1: min(r.X1, o.X1), Y1: min(r.Y1, o.Y1),
	}
	if out.IsEmpty() {
		return Rect{}
	}
	return out
}

// Grow expands r outward by the given margins.
func (r Rect) Grow(m Margins) Rect {
	return Rect{
		X0: r.X0 - m.Left, Y0: r.Y0 - m.Top,
		X1: r.X1 + m.Right, Y1: r.Y1 + m.Bottom,
	}
}

// Margins are per-side outsets in pixels.
type Margins struct {
	Left, Top, Right, Bottom float64
}

// Uniform returns equal margins on every side.
func Uniform(v float64) Margins {
	return Margins{Left: v, Top: v, Right: v, Bottom: v}
}

// Add returns the per-side sum of m and o.
func (m Margins) Add(o Margins) Margins {
	return Margins{
		Left:   m.Left + o.Left,
		Top:    m.Top + o.Top,
		Right:  m.Right + o.Right,
		Bottom: m.Bottom + o.Bottom,
	}
}

// IRect is an integer pixel rectangle given by origin and size.
type IRect struct {
	X, Y          int
	Width, Height int
}

// IsEmpty reports whether the rectangle covers no pixels.
func (r IRect) IsEmpty() bool { return r.Width <= 0 || r.Height <= 0 }

// Min returns the top-left pixel.
func (r IRect) Min() image.Point { return image.Pt(r.X, r.Y) }

// Image returns r as an image.Rectangle.
func (r IRect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// ToRect converts r to a real-valued rectangle.
func (r IRect) ToRect() Rect {
	return RectXYWH(float64(r.X), float64(r.Y), float64(r.Width), float64(r.Height))
}

// PixelRect converts a real-valued rectangle to pixels by flooring the
// top-left corner and ceiling the width and height independently.
func PixelRect(r Rect) IRect {
	if r.IsEmpty() {
		return IRect{}
	}
	return IRect{
		X:      int(math.Floor(r.X0)),
		Y:      int(math.Floor(r.Y0)),
		Width:  int(math.Ceil(r.Width())),
		Height: int(math.Ceil(r.Height())),
	}
}
