package task

import "github.com/matzehuels/boxrender/pkg/geom"

// Customizer rewrites a task's parameters. Customizers are applied once,
// at queue time, in registration order.
type Customizer interface {
	Customize(p Params) Params
}

// CustomizerFunc adapts a function to [Customizer].
type CustomizerFunc func(Params) Params

func (f CustomizerFunc) Customize(p Params) Params { return f(p) }

// ReplaceDisplacement overwrites the translation of the transform and
// keeps its linear part.
type ReplaceDisplacement struct {
	Dx, Dy float64
}

func (c ReplaceDisplacement) Customize(p Params) Params {
	p.Transform = p.Transform.WithTranslation(c.Dx, c.Dy)
	return p
}

// MultiplyTransform composes Matrix into the transform so that it acts
// first, in box coordinates, and multiplies opacity by Opacity. Note that
// a zero Opacity makes the task invisible; use [NewMultiplyTransform] for
// a transform-only customizer.
type MultiplyTransform struct {
	Matrix  geom.Matrix
	Opacity float64
}

// NewMultiplyTransform returns a MultiplyTransform that keeps opacity.
func NewMultiplyTransform(m geom.Matrix) MultiplyTransform {
	return MultiplyTransform{Matrix: m, Opacity: 1}
}

func (c MultiplyTransform) Customize(p Params) Params {
	p.Transform = p.Transform.Multiply(c.Matrix)
	p.Opacity *= c.Opacity
	return p
}

// MultiplyOpacity scales opacity.
type MultiplyOpacity struct {
	Opacity float64
}

func (c MultiplyOpacity) Customize(p Params) Params {
	p.Opacity *= c.Opacity
	return p
}

// Customize applies cs to p in order.
func Customize(p Params, cs ...Customizer) Params {
	for _, c := range cs {
		if c != nil {
			p = c.Customize(p)
		}
	}
	return p
}
