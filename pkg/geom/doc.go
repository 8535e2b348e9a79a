// Package geom provides the small amount of 2D geometry the render pipeline
// needs: affine matrices, real-valued and pixel rectangles, and the
// global-rectangle computation that sizes a task's raster buffer.
//
// # Conventions
//
// A [Matrix] maps column vectors:
//
//	x' = A*x + B*y + C
//	y' = D*x + E*y + F
//
// m.Multiply(n) returns the transform that applies n first and m second.
// [Matrix.Then] is the same product written in application order, which reads
// better when building a box transform step by step.
//
// Rectangles use min/max corners ([Rect]) for real-valued geometry and
// origin/size ([IRect]) for pixel buffers.
package geom
