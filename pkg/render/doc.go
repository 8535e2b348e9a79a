// Package render groups the diagram renderers for task graphs.
//
// Frames themselves are rasterized by [github.com/matzehuels/boxrender/pkg/raster];
// this tree only draws the structure of the work that produced them.
//
//   - [nodelink]: Graphviz node-link diagrams (DOT, SVG, PNG)
//
// [nodelink]: github.com/matzehuels/boxrender/pkg/render/nodelink
package render
