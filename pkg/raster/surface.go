package raster

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/matzehuels/boxrender/pkg/geom"
)

// MaxSurfaceSide is the largest width or height, in device pixels, of any
// surface the renderer allocates.
const MaxSurfaceSide = 16384

// FitsSurface reports whether a device-space extent of w by h can be backed
// by a surface.
func FitsSurface(w, h float64) bool {
	return w <= MaxSurfaceSide && h <= MaxSurfaceSide
}

// Surface is a premultiplied RGBA pixel buffer covering a device-space
// rectangle. A Surface is not safe for concurrent use; each task owns its
// own.
type Surface struct {
	bounds geom.IRect
	im     *image.RGBA
	dc     *gg.Context
}

// NewSurface allocates a transparent surface for the given device bounds.
// Negative sizes are treated as zero.
func NewSurface(bounds geom.IRect) *Surface {
	w, h := max(bounds.Width, 0), max(bounds.Height, 0)
	im := image.NewRGBA(image.Rect(0, 0, w, h))
	return &Surface{bounds: bounds, im: im, dc: gg.NewContextForRGBA(im)}
}

// Bounds returns the device rectangle covered by the surface.
func (s *Surface) Bounds() geom.IRect { return s.bounds }

// Context exposes the underlying gg context. Its coordinate system is the
// surface's pixel grid, not device space.
func (s *Surface) Context() *gg.Context { return s.dc }

// RGBA returns the backing buffer. Writes are visible to the surface.
func (s *Surface) RGBA() *image.RGBA { return s.im }

// Clear fills the whole surface with c, replacing existing pixels.
func (s *Surface) Clear(c color.Color) {
	draw.Draw(s.im, s.im.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// toPixel maps device coordinates onto the buffer.
func (s *Surface) toPixel() geom.Matrix {
	return geom.Translate(-float64(s.bounds.X), -float64(s.bounds.Y))
}

func (s *Surface) trace(p Path, m geom.Matrix) {
	s.dc.ClearPath()
	for _, seg := range p.segs {
		switch seg.kind {
		case segMove:
			q := m.Apply(seg.pts[0])
			s.dc.MoveTo(q.X, q.Y)
		case segLine:
			q := m.Apply(seg.pts[0])
			s.dc.LineTo(q.X, q.Y)
		case segCubic:
			a, b, c := m.Apply(seg.pts[0]), m.Apply(seg.pts[1]), m.Apply(seg.pts[2])
			s.dc.CubicTo(a.X, a.Y, b.X, b.Y, c.X, c.Y)
		case segClose:
			s.dc.ClosePath()
		}
	}
}

// FillPath fills p, given in box coordinates, mapped by the box-to-device
// transform m.
func (s *Surface) FillPath(p Path, m geom.Matrix, paint Paint) {
	if p.Len() == 0 || paint.IsZero() {
		return
	}
	eff := m.Then(s.toPixel())
	s.trace(p, eff)
	s.dc.SetFillRuleWinding()
	s.dc.SetFillStyle(paint.pattern(eff))
	s.dc.Fill()
}

// StrokePath strokes p with a line width given in box units.
func (s *Surface) StrokePath(p Path, m geom.Matrix, paint Paint, width float64) {
	if p.Len() == 0 || paint.IsZero() || width <= 0 {
		return
	}
	eff := m.Then(s.toPixel())
	s.trace(p, eff)
	s.dc.SetStrokeStyle(paint.pattern(eff))
	s.dc.SetLineWidth(width * eff.ScaleFactor())
	s.dc.Stroke()
}

// DrawImage draws src with its top-left corner at the box origin, one source
// pixel per box unit, mapped by m. Sampling is bilinear.
func (s *Surface) DrawImage(src image.Image, m geom.Matrix) {
	if src == nil || src.Bounds().Empty() {
		return
	}
	sb := src.Bounds()
	eff := geom.Translate(-float64(sb.Min.X), -float64(sb.Min.Y)).
		Then(m).
		Then(s.toPixel())
	aff := f64.Aff3{eff.A, eff.B, eff.C, eff.D, eff.E, eff.F}
	draw.BiLinear.Transform(s.im, aff, src, sb, draw.Over, nil)
}

// Composite draws src, whose top-left pixel sits at device position at,
// onto the surface with the given opacity (0..1) and blend mode.
func (s *Surface) Composite(src image.Image, at image.Point, opacity float64, mode BlendMode) {
	if src == nil {
		return
	}
	opacity = min(max(opacity, 0), 1)
	sb := src.Bounds()
	// Destination rectangle in buffer coordinates.
	origin := at.Sub(s.bounds.Min())
	dr := image.Rectangle{Min: origin, Max: origin.Add(sb.Size())}.Intersect(s.im.Bounds())
	if mode == BlendDstIn {
		s.clearOutside(dr)
	}
	if dr.Empty() {
		return
	}
	sp := sb.Min.Add(dr.Min.Sub(origin))

	switch mode {
	case BlendNormal, BlendSource:
		op := draw.Over
		if mode == BlendSource {
			op = draw.Src
		}
		if opacity >= 1 {
			draw.Draw(s.im, dr, src, sp, op)
			return
		}
		mask := image.NewUniform(color.Alpha{A: uint8(opacity*255 + 0.5)})
		draw.DrawMask(s.im, dr, src, sp, mask, image.Point{}, op)
	default:
		s.blendPixels(src, dr, sp, opacity, mode)
	}
}

func (s *Surface) clearOutside(keep image.Rectangle) {
	b := s.im.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if (image.Point{X: x, Y: y}).In(keep) {
				continue
			}
			i := s.im.PixOffset(x, y)
			copy(s.im.Pix[i:i+4], []uint8{0, 0, 0, 0})
		}
	}
}

// blendPixels handles the separable blend modes that image/draw lacks.
func (s *Surface) blendPixels(src image.Image, dr image.Rectangle, sp image.Point, opacity float64, mode BlendMode) {
	for y := 0; y < dr.Dy(); y++ {
		for x := 0; x < dr.Dx(); x++ {
			sr, sg, sbl, sa := src.At(sp.X+x, sp.Y+y).RGBA()
			i := s.im.PixOffset(dr.Min.X+x, dr.Min.Y+y)
			px := s.im.Pix[i : i+4 : i+4]

			fsa := float64(sa) / 0xffff * opacity
			fda := float64(px[3]) / 0xff
			chans := [3]float64{float64(sr), float64(sg), float64(sbl)}
			for c := 0; c < 3; c++ {
				fs := chans[c] / 0xffff * opacity
				fd := float64(px[c]) / 0xff
				px[c] = unit8(blendChannel(mode, fs, fsa, fd, fda))
			}
			px[3] = unit8(blendAlpha(mode, fsa, fda))
		}
	}
}

func unit8(v float64) uint8 {
	return uint8(min(max(v, 0), 1)*255 + 0.5)
}

// Snapshot returns an immutable straight-alpha copy of the surface.
func (s *Surface) Snapshot() *image.NRGBA {
	return imaging.Clone(s.im)
}
