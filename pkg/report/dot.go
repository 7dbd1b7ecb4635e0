package report

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"

	"github.com/ibrahimkhairy/macroplace/pkg/adjacency"
	"github.com/ibrahimkhairy/macroplace/pkg/layout"
	"github.com/ibrahimkhairy/macroplace/pkg/macro"
)

// AdjacencyDOT returns a Graphviz DOT representation of the weighted
// adjacency model. Macros render as boxes, the four edge pseudo-macros as
// ellipses, and every weighted pair becomes a labeled edge. Output is
// sorted, so identical models produce identical documents.
func AdjacencyDOT(macros []macro.Macro, weights adjacency.WeightMap) string {
	var buf bytes.Buffer
	buf.WriteString("graph adjacency {\n")
	buf.WriteString("  layout=neato;\n")
	buf.WriteString("  overlap=false;\n")
	buf.WriteString("  node [fontname=\"monospace\", fontsize=12, style=filled, fillcolor=white];\n\n")

	for i := range macros {
		fmt.Fprintf(&buf, "  n%d [label=%q, shape=box];\n", i, macros[i].Name)
	}
	for e := 0; e < layout.EdgeCount; e++ {
		fmt.Fprintf(&buf, "  n%d [label=%q, shape=ellipse, fillcolor=lightgrey];\n",
			len(macros)+e, layout.EdgeFromIndex(e).String())
	}
	buf.WriteString("\n")

	for _, pair := range sortedPairs(weights) {
		fmt.Fprintf(&buf, "  n%d -- n%d [label=\"%d\"];\n", pair.From, pair.To, weights[pair])
	}

	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders a DOT document to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
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
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
