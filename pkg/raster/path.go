package raster

import (
	"math"

	"github.com/matzehuels/boxrender/pkg/geom"
)

type segKind uint8

const (
	segMove segKind = iota
	segLine
	segCubic
	segClose
)

type segment struct {
	kind segKind
	pts  [3]geom.Point
}

// Path is a vector outline in box coordinates. The zero value is empty and
// ready to use. Paths are values; appending to a copy does not affect the
// original once the copy has been extended.
type Path struct {
	segs []segment
}

func (p *Path) MoveTo(x, y float64) {
	p.segs = append(p.segs, segment{kind: segMove, pts: [3]geom.Point{{X: x, Y: y}}})
}

func (p *Path) LineTo(x, y float64) {
	p.segs = append(p.segs, segment{kind: segLine, pts: [3]geom.Point{{X: x, Y: y}}})
}

func (p *Path) CubicTo(x1, y1, x2, y2, x3, y3 float64) {
	p.segs = append(p.segs, segment{kind: segCubic, pts: [3]geom.Point{{X: x1, Y: y1}, {X: x2, Y: y2}, {X: x3, Y: y3}}})
}

func (p *Path) Close() {
	p.segs = append(p.segs, segment{kind: segClose})
}

// Len returns the number of segments.
func (p Path) Len() int { return len(p.segs) }

// Clone returns a deep copy.
func (p Path) Clone() Path {
	return Path{segs: append([]segment(nil), p.segs...)}
}

// Bounds returns the bounds of all path points, control points included.
func (p Path) Bounds() geom.Rect {
	r := geom.EmptyRect()
	for _, s := range p.segs {
		n := 0
		switch s.kind {
		case segMove, segLine:
			n = 1
		case segCubic:
			n = 3
		}
		for i := 0; i < n; i++ {
			r = r.UnionPoint(s.pts[i])
		}
	}
	if r.IsEmpty() && r.X0 > r.X1 {
		return geom.Rect{}
	}
	return r
}

// RectPath returns a rectangle outline, optionally with rounded corners.
func RectPath(x, y, w, h, radius float64) Path {
	var p Path
	radius = math.Min(radius, math.Min(w, h)/2)
	if radius <= 0 {
		p.MoveTo(x, y)
		p.LineTo(x+w, y)
		p.LineTo(x+w, y+h)
		p.LineTo(x, y+h)
		p.Close()
		return p
	}
	k := radius * kappa
	p.MoveTo(x+radius, y)
	p.LineTo(x+w-radius, y)
	p.CubicTo(x+w-radius+k, y, x+w, y+radius-k, x+w, y+radius)
	p.LineTo(x+w, y+h-radius)
	p.CubicTo(x+w, y+h-radius+k, x+w-radius+k, y+h, x+w-radius, y+h)
	p.LineTo(x+radius, y+h)
	p.CubicTo(x+radius-k, y+h, x, y+h-radius+k, x, y+h-radius)
	p.LineTo(x, y+radius)
	p.CubicTo(x, y+radius-k, x+radius-k, y, x+radius, y)
	p.Close()
	return p
}

// kappa places cubic control points for a quarter-circle approximation.
const kappa = 0.5522847498307936

// EllipsePath returns an ellipse centred on (cx, cy) as four cubic arcs.
func EllipsePath(cx, cy, rx, ry float64) Path {
	var p Path
	kx, ky := rx*kappa, ry*kappa
	p.MoveTo(cx+rx, cy)
	p.CubicTo(cx+rx, cy+ky, cx+kx, cy+ry, cx, cy+ry)
	p.CubicTo(cx-kx, cy+ry, cx-rx, cy+ky, cx-rx, cy)
	p.CubicTo(cx-rx, cy-ky, cx-kx, cy-ry, cx, cy-ry)
	p.CubicTo(cx+kx, cy-ry, cx+rx, cy-ky, cx+rx, cy)
	p.Close()
	return p
}

// PolyPath returns a polyline through pts, closed when closed is true.
func PolyPath(pts []geom.Point, closed bool) Path {
	var p Path
	for i, pt := range pts {
		if i == 0 {
			p.MoveTo(pt.X, pt.Y)
			continue
		}
		p.LineTo(pt.X, pt.Y)
	}
	if closed && len(pts) > 2 {
		p.Close()
	}
	return p
}
