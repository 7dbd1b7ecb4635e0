// Package report renders placement diagnostics: edge pin counts, per-trial
// wirelength tables and the weighted adjacency model as a table, a Graphviz
// DOT document or an SVG image.
package report

import (
	"fmt"
	"io"
	"slices"

	"github.com/markkurossi/tabulate"

	"github.com/ibrahimkhairy/macroplace/pkg/adjacency"
	"github.com/ibrahimkhairy/macroplace/pkg/layout"
	"github.com/ibrahimkhairy/macroplace/pkg/macro"
	"github.com/ibrahimkhairy/macroplace/pkg/netlist"
	"github.com/ibrahimkhairy/macroplace/pkg/placer"
)

// EdgePinCounts tallies the chip boundary pins by their classified core
// edge. The array is indexed by CoreEdge.
func EdgePinCounts(db netlist.Database, core layout.Rect) [layout.EdgeCount]int {
	var counts [layout.EdgeCount]int
	for _, pin := range db.BoundaryPins() {
		counts[layout.NearestEdge(core, pin.X, pin.Y).Index()]++
	}
	return counts
}

// PrintEdgePinCounts writes the edge pin tally as a table.
func PrintEdgePinCounts(w io.Writer, counts [layout.EdgeCount]int) {
	tab := tabulate.New(tabulate.UnicodeLight)
	tab.Header("Edge").SetAlign(tabulate.ML)
	tab.Header("Pins").SetAlign(tabulate.MR)
	for e := 0; e < layout.EdgeCount; e++ {
		row := tab.Row()
		row.Column(layout.EdgeFromIndex(e).String())
		row.Column(fmt.Sprintf("%d", counts[e]))
	}
	tab.Print(w)
}

// PrintTrials writes the per-trial outcome table of a placement run.
func PrintTrials(w io.Writer, results []placer.TrialResult) {
	tab := tabulate.New(tabulate.UnicodeLight)
	tab.Header("Trial").SetAlign(tabulate.ML)
	tab.Header("Order").SetAlign(tabulate.ML)
	tab.Header("Weighted WL").SetAlign(tabulate.MR)
	tab.Header("Status").SetAlign(tabulate.ML)

	for _, r := range results {
		row := tab.Row()
		row.Column(r.Strategy.String())
		if r.Reverse {
			row.Column("reversed")
		} else {
			row.Column("default")
		}
		if r.Err != nil {
			row.Column("-")
			row.Column(r.Err.Error())
		} else {
			row.Column(fmt.Sprintf("%.3f", r.WL))
			row.Column("ok")
		}
	}
	tab.Print(w)
}

// PrintAdjacency writes the sparse weight map as a table, sorted by
// (from, to) for stable output.
func PrintAdjacency(w io.Writer, macros []macro.Macro, weights adjacency.WeightMap) {
	pairs := sortedPairs(weights)

	tab := tabulate.New(tabulate.UnicodeLight)
	tab.Header("From").SetAlign(tabulate.ML)
	tab.Header("To").SetAlign(tabulate.ML)
	tab.Header("Weight").SetAlign(tabulate.MR)
	for _, pair := range pairs {
		row := tab.Row()
		row.Column(nodeName(macros, pair.From))
		row.Column(nodeName(macros, pair.To))
		row.Column(fmt.Sprintf("%d", weights[pair]))
	}
	tab.Print(w)
}

// nodeName resolves a weight-model index to a display name: the macro's
// instance name, or the core edge for a pseudo-macro.
func nodeName(macros []macro.Macro, idx int) string {
	if idx < len(macros) {
		return macros[idx].Name
	}
	return layout.EdgeFromIndex(idx - len(macros)).String()
}

func sortedPairs(weights adjacency.WeightMap) []adjacency.Pair {
	pairs := make([]adjacency.Pair, 0, len(weights))
	for p := range weights {
		pairs = append(pairs, p)
	}
	slices.SortFunc(pairs, func(a, b adjacency.Pair) int {
		if a.From != b.From {
			return a.From - b.From
		}
		return a.To - b.To
	})
	return pairs
}
