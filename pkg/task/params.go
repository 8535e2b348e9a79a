package task

import (
	"image/color"

	"github.com/matzehuels/boxrender/pkg/geom"
	"github.com/matzehuels/boxrender/pkg/raster"
)

// Params are the customizable inputs captured at queue time.
type Params struct {
	// Transform maps box coordinates to canvas coordinates.
	Transform geom.Matrix
	// Resolution scales canvas units to device pixels.
	Resolution float64
	// Opacity in 0..1. It is applied by whoever composites the output.
	Opacity float64
	// Blend is used when the output is composited.
	Blend raster.BlendMode
	// Relative is the box's bounding rectangle in box coordinates.
	Relative geom.Rect
	// Margin is extra device-pixel padding on top of the effects margin.
	Margin geom.Margins
	// MaxBounds clips the global rectangle, in canvas units. Empty means
	// unbounded.
	MaxBounds geom.Rect
	// Erase is the colour the buffer is cleared with before drawing.
	Erase color.NRGBA
}

// DefaultParams returns identity transform, unit resolution and full
// opacity.
func DefaultParams() Params {
	return Params{
		Transform:  geom.Identity(),
		Resolution: 1,
		Opacity:    1,
	}
}

// ScaledTransform maps box coordinates to device pixels.
func (p Params) ScaledTransform() geom.Matrix {
	return geom.GlobalRectInput{Transform: p.Transform, Resolution: p.Resolution}.ScaledTransform()
}

// Drawer paints a box into a surface. m maps box coordinates to device
// pixels. Drawers run on worker goroutines and must only use data captured
// when they were built.
type Drawer interface {
	Draw(s *raster.Surface, p Params, m geom.Matrix)
}

// DrawerFunc adapts a function to [Drawer].
type DrawerFunc func(s *raster.Surface, p Params, m geom.Matrix)

func (f DrawerFunc) Draw(s *raster.Surface, p Params, m geom.Matrix) { f(s, p, m) }

// DefaultSkipOpacity is the opacity at or below which drawing is skipped.
const DefaultSkipOpacity = 0.001

// Config controls processing.
type Config struct {
	// SkipOpacity: tasks whose opacity is at or below this value finish
	// without drawing. It lies in [0, 1); zero skips only fully transparent
	// tasks.
	SkipOpacity float64
}

// DefaultConfig returns the default processing configuration.
func DefaultConfig() Config {
	return Config{SkipOpacity: DefaultSkipOpacity}
}
