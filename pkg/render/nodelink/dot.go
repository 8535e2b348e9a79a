package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/boxrender/pkg/dag"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed adds the row and every metadata entry to node labels.
	Detailed bool
}

// graphAttrs is the DOT preamble shared by every task graph.
const graphAttrs = `  rankdir=TB;
  bgcolor="transparent";
  ranksep=0.5;
  nodesep=0.3;
  node [shape=box, style="rounded,filled", fillcolor=white, fontsize=14, margin="0.2,0.1"];
  edge [color=dimgrey, arrowsize=0.7];
`

// stateAttrs styles nodes by their "state" metadata. Finished tasks keep
// the defaults.
var stateAttrs = map[string][]string{
	"created":    {`fillcolor=lightyellow`},
	"queued":     {`fillcolor=lightyellow`},
	"processing": {`fillcolor=lightblue`, `color=steelblue`},
	"canceled":   {`style="rounded,filled,dashed"`, `fillcolor=lightgrey`, `fontcolor=dimgrey`},
}

// ToDOT converts a task graph to Graphviz DOT source, suitable for
// [RenderSVG] and [RenderPNG]. Nodes sharing a row are ranked together and
// edges point from a task to the tasks it waited for. Edges on the critical
// path are drawn heavier.
func ToDOT(g *dag.DAG, opts Options) string {
	var buf bytes.Buffer
	writeDOT(&buf, g, opts)
	return buf.String()
}

func writeDOT(w io.Writer, g *dag.DAG, opts Options) {
	fmt.Fprintln(w, "digraph G {")
	for _, k := range slices.Sorted(maps.Keys(g.Meta())) {
		fmt.Fprintf(w, "  // %s: %v\n", k, g.Meta()[k])
	}
	io.WriteString(w, graphAttrs)
	fmt.Fprintln(w)

	for _, n := range g.Nodes() {
		attrs := append([]string{"label=" + strconv.Quote(nodeLabel(*n, opts.Detailed))}, stateAttrs[stateOf(*n)]...)
		fmt.Fprintf(w, "  %q [%s];\n", n.ID, strings.Join(attrs, ", "))
	}

	fmt.Fprintln(w)
	for _, row := range g.RowIDs() {
		if nodes := g.NodesInRow(row); len(nodes) > 1 {
			ids := make([]string, len(nodes))
			for i, n := range nodes {
				ids[i] = strconv.Quote(n.ID)
			}
			fmt.Fprintf(w, "  { rank=same; %s; }\n", strings.Join(ids, "; "))
		}
	}

	critical := criticalEdges(g)
	for _, e := range g.Edges() {
		if critical[[2]string{e.From, e.To}] {
			fmt.Fprintf(w, "  %q -> %q [penwidth=2, color=black];\n", e.From, e.To)
			continue
		}
		fmt.Fprintf(w, "  %q -> %q;\n", e.From, e.To)
	}
	fmt.Fprintln(w, "}")
}

// criticalEdges returns the edges along the graph's critical path.
func criticalEdges(g *dag.DAG) map[[2]string]bool {
	path := g.CriticalPath()
	edges := make(map[[2]string]bool, len(path))
	for i := 1; i < len(path); i++ {
		edges[[2]string{path[i-1], path[i]}] = true
	}
	return edges
}

func stateOf(n dag.Node) string {
	s, _ := n.Meta["state"].(string)
	return s
}

func nodeLabel(n dag.Node, detailed bool) string {
	if !detailed {
		return n.DisplayLabel()
	}
	lines := []string{n.DisplayLabel(), fmt.Sprintf("row: %d", n.Row)}
	for _, k := range slices.Sorted(maps.Keys(n.Meta)) {
		lines = append(lines, fmt.Sprintf("%s: %v", k, n.Meta[k]))
	}
	return strings.Join(lines, "\n")
}

// RenderSVG renders DOT source to SVG with a viewBox-only root element, so
// the diagram scales with its container.
func RenderSVG(dot string) ([]byte, error) {
	out, err := render(dot, graphviz.SVG)
	if err != nil {
		return nil, err
	}
	return normalizeViewBox(out), nil
}

// RenderPNG renders DOT source to PNG.
func RenderPNG(dot string) ([]byte, error) { return render(dot, graphviz.PNG) }

func render(dot string, format graphviz.Format) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="[0-9.]+\s+[0-9.]+\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces the root element with one that carries only the
// namespace, the viewBox and integral width and height.
func normalizeViewBox(svg []byte) []byte {
	m := viewBoxRe.FindSubmatch(svg)
	if m == nil {
		return svg
	}
	w, _ := strconv.ParseFloat(string(m[1]), 64)
	h, _ := strconv.ParseFloat(string(m[2]), 64)
	if w == 0 || h == 0 {
		return svg
	}
	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(root))
}
