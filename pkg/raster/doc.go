// Package raster is the pixel side of the render pipeline.
//
// A [Surface] is a premultiplied RGBA buffer that covers a rectangle of
// device space. Tasks allocate one sized to their global rectangle, draw
// vector shapes into it with [Surface.FillPath] and [Surface.StrokePath]
// (backed by github.com/fogleman/gg), sample source images into it with
// [Surface.DrawImage] (golang.org/x/image/draw), composite the outputs of
// other tasks with [Surface.Composite], and finally read back an immutable
// NRGBA snapshot with [Surface.Snapshot].
//
// Geometry passed to a surface is in box coordinates together with a
// box-to-device [geom.Matrix]; the surface subtracts its own origin, so
// callers never deal with buffer-local coordinates.
//
// Raster effects ([Blur], [Brightness]) operate on snapshots and report the
// margin they need so the global rectangle can grow to fit them.
package raster
