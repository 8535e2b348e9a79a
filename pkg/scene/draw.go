package scene

import (
	"image/color"

	"github.com/matzehuels/boxrender/pkg/fonts"
	"github.com/matzehuels/boxrender/pkg/geom"
	"github.com/matzehuels/boxrender/pkg/raster"
	"github.com/matzehuels/boxrender/pkg/task"
)

// shapeDrawer fills and strokes a vector outline captured at setup time.
type shapeDrawer struct {
	path   raster.Path
	fill   raster.Paint
	stroke raster.Paint
	width  float64
}

func newShapeDrawer(kind Kind, p Props, frame int) shapeDrawer {
	w, h := p.Width.At(frame), p.Height.At(frame)
	var path raster.Path
	switch kind {
	case KindRect:
		path = raster.RectPath(0, 0, w, h, p.Radius.At(frame))
	case KindEllipse:
		path = raster.EllipsePath(w/2, h/2, w/2, h/2)
	case KindPath:
		path = raster.PolyPath(p.Points, p.Closed)
	}
	return shapeDrawer{
		path:   path,
		fill:   p.Fill,
		stroke: p.Stroke,
		width:  max(p.StrokeWidth.At(frame), 0),
	}
}

// bounds is the outline's box-space extent including half the stroke.
func (d shapeDrawer) bounds() geom.Rect {
	if d.path.Len() == 0 {
		return geom.Rect{}
	}
	r := d.path.Bounds()
	if !d.stroke.IsZero() && d.width > 0 {
		r = r.Grow(geom.Uniform(d.width / 2))
	}
	return r
}

func (d shapeDrawer) Draw(s *raster.Surface, _ task.Params, m geom.Matrix) {
	s.FillPath(d.path, m, d.fill)
	s.StrokePath(d.path, m, d.stroke, d.width)
}

// textDrawer sets a string in the embedded font. Glyphs are rasterized at
// device resolution and then mapped like an image, so rotated and scaled
// text stays sharp.
type textDrawer struct {
	text   string
	size   float64
	colour color.NRGBA
	w, h   float64
}

func newTextDrawer(p Props, frame int) (textDrawer, error) {
	size := p.FontSize.At(frame)
	if size <= 0 {
		return textDrawer{}, nil
	}
	w, h, err := fonts.Measure(p.Text, size)
	if err != nil {
		return textDrawer{}, err
	}
	return textDrawer{text: p.Text, size: size, colour: textColour(p.Fill), w: w, h: h}, nil
}

// textColour is the fill colour, the first gradient stop for gradient
// fills, or black when the box has no fill.
func textColour(p raster.Paint) color.NRGBA {
	switch {
	case p.Gradient != nil && len(p.Gradient.Stops) > 0:
		return p.Gradient.Stops[0].Color
	case p.Color.A > 0:
		return p.Color
	}
	return color.NRGBA{A: 255}
}

func (d textDrawer) bounds() geom.Rect {
	if d.w <= 0 || d.h <= 0 {
		return geom.Rect{}
	}
	return geom.RectXYWH(0, 0, d.w, d.h)
}

func (d textDrawer) Draw(s *raster.Surface, _ task.Params, m geom.Matrix) {
	scale := m.ScaleFactor()
	if d.size <= 0 || scale <= 0 {
		return
	}
	img, err := fonts.Render(d.text, d.size*scale, d.colour)
	if err != nil {
		return
	}
	s.DrawImage(img, geom.Scale(1/scale, 1/scale).Then(m))
}

// imageDrawer samples a decoded source. The source task is a dependency,
// so the image is available when Draw runs.
type imageDrawer struct {
	src *Source
}

func (d imageDrawer) Draw(s *raster.Surface, _ task.Params, m geom.Matrix) {
	if img := d.src.Image(); img != nil {
		s.DrawImage(img, m)
	}
}
