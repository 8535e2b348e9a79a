package geom

// GlobalRectInput collects everything that determines the pixel extent of a
// rendered task.
type GlobalRectInput struct {
	// Relative is the box's bounding rectangle in its own coordinates.
	Relative Rect
	// Resolution scales the transformed rectangle into device pixels.
	Resolution float64
	// Transform maps box coordinates to canvas coordinates.
	Transform Matrix
	// Others are device-space rectangles contributed by other tasks,
	// e.g. motion-blur samples.
	Others []Rect
	// Margin pads the result for effects that bleed outside the shape.
	Margin Margins
	// MaxBounds clips the result; it is in canvas coordinates and is scaled
	// by Resolution. An empty MaxBounds disables clipping.
	MaxBounds Rect
}

// ScaledTransform returns the transform from box coordinates to device
// pixels: Transform followed by the resolution scale.
func (in GlobalRectInput) ScaledTransform() Matrix {
	res := in.Resolution
	if res <= 0 {
		res = 1
	}
	return in.Transform.Then(Scale(res, res))
}

// GlobalRect computes the real-valued and pixel global rectangles.
//
// The relative rectangle is mapped through the scaled transform, unioned
// with the contributed rectangles, expanded by the margin and clipped to the
// scaled max bounds. The pixel rectangle floors the origin and ceils the
// width and height.
func GlobalRect(in GlobalRectInput) (Rect, IRect) {
	res := in.Resolution
	if res <= 0 {
		res = 1
	}
	r := in.ScaledTransform().MapRect(in.Relative)
	for _, o := range in.Others {
		r = r.Union(o)
	}
	if !r.IsEmpty() {
		r = r.Grow(in.Margin)
	}
	if !in.MaxBounds.IsEmpty() {
		r = r.Intersect(Scale(res, res).MapRect(in.MaxBounds))
	}
	return r, PixelRect(r)
}
