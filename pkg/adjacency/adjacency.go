// Package adjacency derives the weighted macro-to-macro connectivity model
// that drives placement.
//
// The engine walks the timing graph in forward topological order, tracking
// for every vertex the set of macros whose outputs reach it combinationally
// (its macro fanin cone). Register boundaries stop propagation; a separate
// pass copies fanin sets across paired clocked elements so connectivity
// through retiming-insensitive paths survives. Chip boundary pins enter the
// model as four pseudo-macros, one per core edge.
//
// The result is a sparse map from ordered macro pairs to connection counts:
// one increment per pin-to-pin connection, never per net, never negative,
// and never a self pair. Given the same graph and macro set the result is
// identical on every run.
package adjacency

import (
	"github.com/charmbracelet/log"

	"github.com/ibrahimkhairy/macroplace/pkg/errors"
	"github.com/ibrahimkhairy/macroplace/pkg/layout"
	"github.com/ibrahimkhairy/macroplace/pkg/macro"
	"github.com/ibrahimkhairy/macroplace/pkg/netlist"
)

// Pair is an ordered (from, to) pair of weight-model node indices. Indices
// 0..N-1 are macro-list positions; N..N+3 are the edge pseudo-macros in
// West, East, North, South order.
type Pair struct {
	From, To int
}

// WeightMap is the sparse adjacency model: connection count per ordered
// pair. Pairs with zero weight are absent.
type WeightMap map[Pair]int

// MacroSet is a set of weight-model node indices.
type MacroSet map[int]struct{}

// VertexFaninMap records, per timing-graph vertex, the macros that reach it
// combinationally. It exists only while weights are being derived.
type VertexFaninMap map[netlist.VertexID]MacroSet

// PseudoIndex returns the weight-model index of an edge pseudo-macro for a
// macro list of the given length.
func PseudoIndex(macroCount int, e layout.CoreEdge) int {
	return macroCount + e.Index()
}

// Engine computes adjacency weights from the timing graph and macro list.
type Engine struct {
	db     netlist.Database
	graph  netlist.TimingGraph
	logger *log.Logger
}

// NewEngine creates an engine bound to its collaborators.
// A nil logger falls back to log.Default().
func NewEngine(db netlist.Database, graph netlist.TimingGraph, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{db: db, graph: graph, logger: logger}
}

// Find derives the weight map for the given macro list. index maps instance
// handles to macro-list positions and core is the rectangle used to classify
// boundary pins onto edges.
//
// When the timing graph reports no liberty data the engine falls back to
// direct driver-to-load weighting and logs a warning; the caller treats this
// as recoverable.
func (e *Engine) Find(macros []macro.Macro, index map[netlist.InstID]int, core layout.Rect) WeightMap {
	if !e.graph.HasTiming() {
		e.logger.Warn("using direct-connection weights",
			"err", errors.New(errors.ErrCodeMissingTiming, "timing graph reports no liberty data"),
			"macros", len(macros))
		return e.directWeights(macros, index, core)
	}

	fanins := make(VertexFaninMap)
	e.seedFanins(fanins, len(macros), index, core)
	e.propagate(fanins)
	e.copyAcrossRegisters(fanins)
	// Copied sets must flow onward to the next register boundary.
	e.propagate(fanins)
	return e.accumulate(fanins, len(macros), index, core)
}

// seedFanins roots the fanin sets: every macro output vertex carries its own
// macro, every boundary source pin carries its edge pseudo-macro.
func (e *Engine) seedFanins(fanins VertexFaninMap, macroCount int, index map[netlist.InstID]int, core layout.Rect) {
	for _, v := range e.graph.Vertices() {
		pin := e.graph.VertexPin(v)
		if pin.Dir != netlist.DirOutput {
			continue
		}
		var node int
		switch {
		case pin.IsBoundary():
			node = PseudoIndex(macroCount, layout.NearestEdge(core, pin.X, pin.Y))
		default:
			idx, isMacro := index[pin.Inst]
			if !isMacro {
				continue
			}
			node = idx
		}
		set := fanins[v]
		if set == nil {
			set = make(MacroSet)
			fanins[v] = set
		}
		set[node] = struct{}{}
	}
}

// propagate advances fanin sets in forward topological order: each vertex
// accumulates the union of its predecessors' sets. Vertices are visited only
// after all their fanins, so one sweep saturates every combinational path.
func (e *Engine) propagate(fanins VertexFaninMap) {
	for _, v := range e.graph.Vertices() {
		for _, f := range e.graph.Fanins(v) {
			src := fanins[f]
			if len(src) == 0 {
				continue
			}
			dst := fanins[v]
			if dst == nil {
				dst = make(MacroSet, len(src))
				fanins[v] = dst
			}
			for m := range src {
				dst[m] = struct{}{}
			}
		}
	}
}

// copyAcrossRegisters copies each sequential data input's fanin set onto its
// paired clocked output, preserving connectivity across the register stage.
func (e *Engine) copyAcrossRegisters(fanins VertexFaninMap) {
	for _, v := range e.graph.Vertices() {
		src := fanins[v]
		if len(src) == 0 {
			continue
		}
		q, ok := e.graph.SeqOutVertex(v)
		if !ok {
			continue
		}
		dst := fanins[q]
		if dst == nil {
			dst = make(MacroSet, len(src))
			fanins[q] = dst
		}
		for m := range src {
			dst[m] = struct{}{}
		}
	}
}

// accumulate folds the fanin sets into pairwise weights at every sink that
// belongs to the model: macro input pins and boundary sink pins.
func (e *Engine) accumulate(fanins VertexFaninMap, macroCount int, index map[netlist.InstID]int, core layout.Rect) WeightMap {
	weights := make(WeightMap)
	for _, v := range e.graph.Vertices() {
		pin := e.graph.VertexPin(v)
		if pin.Dir != netlist.DirInput {
			continue
		}
		var to int
		switch {
		case pin.IsBoundary():
			to = PseudoIndex(macroCount, layout.NearestEdge(core, pin.X, pin.Y))
		default:
			idx, isMacro := index[pin.Inst]
			if !isMacro {
				continue
			}
			to = idx
		}
		for from := range fanins[v] {
			if from == to {
				continue
			}
			weights[Pair{From: from, To: to}]++
		}
	}
	return weights
}

// directWeights is the non-timing fallback: every direct driver-to-load
// connection between model nodes gets weight one, with no fanin propagation.
func (e *Engine) directWeights(macros []macro.Macro, index map[netlist.InstID]int, core layout.Rect) WeightMap {
	resolve := func(id netlist.PinID) (int, bool) {
		pin, ok := e.db.Pin(id)
		if !ok {
			return 0, false
		}
		if pin.IsBoundary() {
			return PseudoIndex(len(macros), layout.NearestEdge(core, pin.X, pin.Y)), true
		}
		idx, isMacro := index[pin.Inst]
		return idx, isMacro
	}

	weights := make(WeightMap)
	for _, net := range e.db.Nets() {
		from, ok := resolve(net.Driver)
		if !ok {
			continue
		}
		for _, load := range net.Loads {
			to, ok := resolve(load)
			if !ok || from == to {
				continue
			}
			weights[Pair{From: from, To: to}]++
		}
	}
	return weights
}
