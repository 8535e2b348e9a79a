// Package nodelink renders task graphs as node-link diagrams.
//
// # Overview
//
// This package produces directed graph visualizations using Graphviz, where
// each render task appears as a box and arrows point from a task to the
// tasks it waited for. It is the quickest way to see why a frame took as
// long as it did: deep chains of groups and motion-blur samples show up as
// tall columns.
//
// # Usage
//
// Convert a DAG to DOT format, then render to SVG:
//
//	dot := nodelink.ToDOT(g, nodelink.Options{Detailed: false})
//	svg, err := nodelink.RenderSVG(dot)
//
// # Options
//
// The [Options] struct controls diagram generation:
//
//   - Detailed: When true, node labels include all metadata (row, frame, state, seq)
//
// # Styling
//
// Nodes are filled by the task's final state: yellow while created or
// queued, blue while processing, dashed grey when canceled and white when
// finished. Edges on the graph's critical path are drawn heavier. Graph
// metadata is written as leading DOT comments.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process
// rendering; no Graphviz installation is needed.
package nodelink
