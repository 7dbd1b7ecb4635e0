// Package netlist defines the contracts between the macro placer and its
// external collaborators: the layout database holding instance geometry and
// the timing graph supplying connectivity for adjacency weighting.
//
// The placer depends only on the [Database] and [TimingGraph] interfaces.
// [Design] is an in-memory implementation of both, loadable from a JSON
// description, used by the CLI and the test suite.
//
// Instances, pins and graph vertices are addressed through opaque integer
// handles ([InstID], [PinID], [VertexID]) rather than pointers, so callers
// never couple to the lifetime of the database's object graph.
package netlist

import (
	"github.com/ibrahimkhairy/macroplace/pkg/layout"
)

// InstID is a stable handle for a placed instance in the database.
type InstID int

// PinID is a stable handle for a pin (instance pin or chip boundary pin).
type PinID int

// VertexID is a stable handle for a timing-graph vertex.
type VertexID int

// NoInst marks pins that belong to the chip boundary rather than an instance.
const NoInst InstID = -1

// Dir is the signal direction of a pin relative to the core netlist:
// a source drives nets, a sink is driven. Note that a chip-level input
// port is a source in this sense - it drives internal logic.
type Dir int

const (
	// DirInput marks a signal sink (instance input pin, chip output port).
	DirInput Dir = iota
	// DirOutput marks a signal source (instance output pin, chip input port).
	DirOutput
)

// Inst describes one placed instance: its identity, master cell type,
// lower-left location and footprint, and whether it is a placeable macro
// or a sequential (clocked) element.
type Inst struct {
	ID      InstID
	Name    string
	Type    string
	X, Y    float64 // lower-left corner
	W, H    float64
	IsMacro bool
	IsSeq   bool
}

// Pin describes one connection point. Inst is NoInst for chip boundary
// pins; X and Y carry the pin location, which for boundary pins drives
// the core-edge classification.
type Pin struct {
	ID   PinID
	Inst InstID
	Name string
	Dir  Dir
	X, Y float64
}

// IsBoundary reports whether the pin sits on the chip boundary.
func (p Pin) IsBoundary() bool { return p.Inst == NoInst }

// Net is one signal: a single driver pin and its load pins.
type Net struct {
	Name   string
	Driver PinID
	Loads  []PinID
}

// Database is the layout-database collaborator. It enumerates placeable
// instances with their geometry and accepts final coordinate writes.
// Implementations must return instances in a stable order.
type Database interface {
	// Instances returns the handles of all instances in a stable order.
	Instances() []InstID

	// Inst returns the instance record for the handle.
	Inst(id InstID) (Inst, bool)

	// SetLocation moves the instance's lower-left corner. This is the only
	// mutation the placer performs on the database.
	SetLocation(id InstID, x, y float64) error

	// CoreArea returns the chip core rectangle.
	CoreArea() layout.Rect

	// BoundaryPins returns all chip boundary pins.
	BoundaryPins() []Pin

	// Nets returns the netlist connectivity, used by the non-timing
	// weighting fallback.
	Nets() []Net

	// Pin resolves a pin handle.
	Pin(id PinID) (Pin, bool)
}

// TimingGraph is the timing-analyzer collaborator. It exposes the pin-level
// connectivity graph with a forward topological iteration order and enough
// liberty metadata to identify sequential boundaries.
type TimingGraph interface {
	// HasTiming reports whether liberty/timing data is available. When it
	// returns false the adjacency engine degrades to direct-connection
	// weighting.
	HasTiming() bool

	// Vertices returns every graph vertex in forward topological order:
	// a vertex appears only after all of its fanin vertices.
	Vertices() []VertexID

	// Fanins returns the vertices driving v (wire fanin plus combinational
	// arcs through instances). Sequential elements and macros contribute
	// no internal arcs, so propagation naturally stops at their inputs.
	Fanins(v VertexID) []VertexID

	// VertexPin returns the pin a vertex stands for.
	VertexPin(v VertexID) Pin

	// SeqOutVertex returns the paired clocked output vertex for a
	// sequential element's data-input vertex, and whether the pairing
	// exists. This is the hook for copying fanin sets across register
	// boundaries.
	SeqOutVertex(v VertexID) (VertexID, bool)
}
