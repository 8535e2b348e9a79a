package raster

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/fogleman/gg"

	"github.com/matzehuels/boxrender/pkg/geom"
)

// GradientKind distinguishes linear and radial gradients.
type GradientKind int

const (
	GradientLinear GradientKind = iota
	GradientRadial
)

// Stop is a gradient colour stop.
type Stop struct {
	Offset float64
	Color  color.NRGBA
}

// Gradient is defined in box coordinates. Linear gradients run from
// (X0,Y0) to (X1,Y1); radial gradients are centred on (X0,Y0) with radius R.
type Gradient struct {
	Kind           GradientKind
	X0, Y0, X1, Y1 float64
	R              float64
	Stops          []Stop
}

// Paint is either a solid colour or a gradient.
type Paint struct {
	Color    color.NRGBA
	Gradient *Gradient
}

// Solid returns a solid paint.
func Solid(c color.NRGBA) Paint { return Paint{Color: c} }

// IsZero reports whether the paint draws nothing.
func (p Paint) IsZero() bool {
	return p.Gradient == nil && p.Color.A == 0
}

// pattern builds a gg pattern in surface pixel coordinates.
func (p Paint) pattern(m geom.Matrix) gg.Pattern {
	g := p.Gradient
	if g == nil {
		return gg.NewSolidPattern(p.Color)
	}
	var grad gg.Gradient
	switch g.Kind {
	case GradientRadial:
		c := m.Apply(geom.Pt(g.X0, g.Y0))
		r := g.R * m.ScaleFactor()
		grad = gg.NewRadialGradient(c.X, c.Y, 0, c.X, c.Y, r)
	default:
		p0 := m.Apply(geom.Pt(g.X0, g.Y0))
		p1 := m.Apply(geom.Pt(g.X1, g.Y1))
		grad = gg.NewLinearGradient(p0.X, p0.Y, p1.X, p1.Y)
	}
	for _, s := range g.Stops {
		grad.AddColorStop(s.Offset, s.Color)
	}
	return grad
}

// ParseColor parses "#rgb", "#rrggbb" or "#rrggbbaa". The empty string and
// "none" are fully transparent.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "none" || s == "transparent" {
		return color.NRGBA{}, nil
	}
	hex, ok := strings.CutPrefix(s, "#")
	if !ok {
		return color.NRGBA{}, fmt.Errorf("color %q: missing '#'", s)
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("color %q: want 3, 6 or 8 hex digits", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("color %q: %w", s, err)
	}
	return color.NRGBA{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}
