package netlist

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/ibrahimkhairy/macroplace/pkg/errors"
	"github.com/ibrahimkhairy/macroplace/pkg/layout"
)

// Design is an in-memory netlist implementing both [Database] and
// [TimingGraph]. It is built from a JSON design file (see [ReadDesign]) and
// backs the CLI and the test suite.
//
// The pin-level graph is derived once at load time: every pin becomes a
// vertex, net drivers fan into their loads, and combinational instances
// contribute input-to-output arcs. Sequential elements and macros contribute
// no internal arcs, which is what makes them register boundaries for the
// fanin propagation.
type Design struct {
	core      layout.Rect
	hasTiming bool

	insts    []Inst
	instByNm map[string]InstID

	pins     []Pin
	pinByNm  map[string]PinID
	nets     []Net
	boundary []PinID

	fanins  [][]VertexID // vertex -> fanin vertices
	order   []VertexID   // forward topological order
	seqOut  map[VertexID]VertexID
	instOut map[InstID][]PinID
	instIn  map[InstID][]PinID
}

// designFile is the JSON schema of a design description.
//
// Port directions are chip-level: an "input" port carries a signal into the
// core and therefore acts as a source in the connectivity graph.
type designFile struct {
	Core struct {
		Lx float64 `json:"lx"`
		Ly float64 `json:"ly"`
		Ux float64 `json:"ux"`
		Uy float64 `json:"uy"`
	} `json:"core"`
	HasTiming *bool `json:"has_timing,omitempty"`

	Instances []struct {
		Name  string  `json:"name"`
		Type  string  `json:"type,omitempty"`
		X     float64 `json:"x"`
		Y     float64 `json:"y"`
		W     float64 `json:"w"`
		H     float64 `json:"h"`
		Macro bool    `json:"macro,omitempty"`
		Seq   bool    `json:"seq,omitempty"`
	} `json:"instances"`

	Ports []struct {
		Name string  `json:"name"`
		Dir  string  `json:"dir"`
		X    float64 `json:"x"`
		Y    float64 `json:"y"`
	} `json:"ports,omitempty"`

	Nets []struct {
		Name   string   `json:"name"`
		Driver string   `json:"driver"`
		Loads  []string `json:"loads"`
	} `json:"nets,omitempty"`
}

// LoadDesign reads and parses a JSON design file.
func LoadDesign(path string) (*Design, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open design %s", path)
	}
	defer f.Close()
	return ReadDesign(f)
}

// ReadDesign decodes a JSON design description and builds the pin-level
// connectivity graph. Returns INVALID_INPUT errors for malformed designs
// (unknown net endpoints, conflicting pin directions, combinational loops).
func ReadDesign(r io.Reader) (*Design, error) {
	var df designFile
	if err := json.NewDecoder(r).Decode(&df); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode design")
	}
	return buildDesign(&df)
}

func buildDesign(df *designFile) (*Design, error) {
	d := &Design{
		core:      layout.NewRect(df.Core.Lx, df.Core.Ly, df.Core.Ux, df.Core.Uy),
		hasTiming: df.HasTiming == nil || *df.HasTiming,
		instByNm:  make(map[string]InstID),
		pinByNm:   make(map[string]PinID),
		seqOut:    make(map[VertexID]VertexID),
		instOut:   make(map[InstID][]PinID),
		instIn:    make(map[InstID][]PinID),
	}
	if !d.core.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidInput, "core area has ux < lx or uy < ly")
	}

	for _, in := range df.Instances {
		if in.Name == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, "instance with empty name")
		}
		if _, dup := d.instByNm[in.Name]; dup {
			return nil, errors.New(errors.ErrCodeInvalidInput, "duplicate instance %q", in.Name)
		}
		id := InstID(len(d.insts))
		d.insts = append(d.insts, Inst{
			ID: id, Name: in.Name, Type: in.Type,
			X: in.X, Y: in.Y, W: in.W, H: in.H,
			IsMacro: in.Macro, IsSeq: in.Seq,
		})
		d.instByNm[in.Name] = id
	}

	for _, p := range df.Ports {
		dir := DirOutput // chip input port: source for internal logic
		switch p.Dir {
		case "input":
		case "output":
			dir = DirInput
		default:
			return nil, errors.New(errors.ErrCodeInvalidInput, "port %q: dir must be input or output, got %q", p.Name, p.Dir)
		}
		if _, err := d.addPin(p.Name, NoInst, dir, p.X, p.Y); err != nil {
			return nil, err
		}
	}

	for _, n := range df.Nets {
		driver, err := d.resolvePin(n.Driver, DirOutput)
		if err != nil {
			return nil, fmt.Errorf("net %q: %w", n.Name, err)
		}
		net := Net{Name: n.Name, Driver: driver}
		for _, l := range n.Loads {
			load, err := d.resolvePin(l, DirInput)
			if err != nil {
				return nil, fmt.Errorf("net %q: %w", n.Name, err)
			}
			net.Loads = append(net.Loads, load)
		}
		d.nets = append(d.nets, net)
	}

	d.buildGraph()
	if err := d.sortTopological(); err != nil {
		return nil, err
	}
	return d, nil
}

// addPin registers a new pin, keeping the index side tables current.
func (d *Design) addPin(name string, inst InstID, dir Dir, x, y float64) (PinID, error) {
	if _, dup := d.pinByNm[name]; dup {
		return 0, errors.New(errors.ErrCodeInvalidInput, "duplicate pin %q", name)
	}
	id := PinID(len(d.pins))
	d.pins = append(d.pins, Pin{ID: id, Inst: inst, Name: name, Dir: dir, X: x, Y: y})
	d.pinByNm[name] = id
	if inst == NoInst {
		d.boundary = append(d.boundary, id)
	} else if dir == DirOutput {
		d.instOut[inst] = append(d.instOut[inst], id)
	} else {
		d.instIn[inst] = append(d.instIn[inst], id)
	}
	return id, nil
}

// resolvePin looks up a net endpoint reference. "inst.pin" names an instance
// pin (created on first sight with the direction implied by its net role);
// a bare name must be a declared port.
func (d *Design) resolvePin(ref string, dir Dir) (PinID, error) {
	if id, ok := d.pinByNm[ref]; ok {
		p := d.pins[id]
		if p.Dir != dir && !p.IsBoundary() {
			return 0, errors.New(errors.ErrCodeInvalidInput, "pin %q used as both driver and load", ref)
		}
		return id, nil
	}
	instName, _, found := strings.Cut(ref, ".")
	if !found {
		return 0, errors.New(errors.ErrCodeInvalidInput, "unknown port %q", ref)
	}
	inst, ok := d.instByNm[instName]
	if !ok {
		return 0, errors.New(errors.ErrCodeInvalidInput, "unknown instance %q in pin ref %q", instName, ref)
	}
	in := d.insts[inst]
	return d.addPin(ref, inst, dir, in.X+in.W/2, in.Y+in.H/2)
}

// buildGraph derives fanin adjacency and the sequential output pairing.
func (d *Design) buildGraph() {
	d.fanins = make([][]VertexID, len(d.pins))

	// Wire fanin: net driver feeds every load.
	for _, n := range d.nets {
		for _, l := range n.Loads {
			d.fanins[l] = append(d.fanins[l], VertexID(n.Driver))
		}
	}

	// Combinational arcs: every input feeds every output of the same
	// instance. Macros and sequential elements get no arcs - their inputs
	// are where fanin propagation stops.
	for id := range d.insts {
		in := d.insts[id]
		if in.IsMacro || in.IsSeq {
			continue
		}
		for _, ip := range d.instIn[in.ID] {
			for _, op := range d.instOut[in.ID] {
				d.fanins[op] = append(d.fanins[op], VertexID(ip))
			}
		}
	}

	// Sequential pairing: each data input of a clocked element maps to the
	// element's outputs, sorted by name so the pairing is deterministic.
	for id := range d.insts {
		in := d.insts[id]
		if !in.IsSeq || in.IsMacro {
			continue
		}
		outs := slices.Clone(d.instOut[in.ID])
		slices.SortFunc(outs, func(a, b PinID) int {
			return strings.Compare(d.pins[a].Name, d.pins[b].Name)
		})
		if len(outs) == 0 {
			continue
		}
		for _, ip := range d.instIn[in.ID] {
			d.seqOut[VertexID(ip)] = VertexID(outs[0])
		}
	}
}

// sortTopological computes the forward iteration order with Kahn's
// algorithm over the fanin edges. The ready queue is seeded in ascending
// vertex order, so the result is deterministic for a given design.
func (d *Design) sortTopological() error {
	n := len(d.pins)
	outdeg := make([][]VertexID, n) // fanout adjacency
	indeg := make([]int, n)
	for v := range d.fanins {
		for _, f := range d.fanins[v] {
			outdeg[f] = append(outdeg[f], VertexID(v))
			indeg[v]++
		}
	}

	queue := make([]VertexID, 0, n)
	for v := 0; v < n; v++ {
		if indeg[v] == 0 {
			queue = append(queue, VertexID(v))
		}
	}

	d.order = make([]VertexID, 0, n)
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		d.order = append(d.order, v)
		for _, s := range outdeg[v] {
			indeg[s]--
			if indeg[s] == 0 {
				queue = append(queue, s)
			}
		}
	}
	if len(d.order) != n {
		return errors.New(errors.ErrCodeInvalidInput, "combinational loop in design")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Database implementation

// Instances returns all instance handles in declaration order.
func (d *Design) Instances() []InstID {
	ids := make([]InstID, len(d.insts))
	for i := range d.insts {
		ids[i] = InstID(i)
	}
	return ids
}

// Inst returns the instance record for the handle.
func (d *Design) Inst(id InstID) (Inst, bool) {
	if id < 0 || int(id) >= len(d.insts) {
		return Inst{}, false
	}
	return d.insts[id], true
}

// InstByName resolves an instance by name.
func (d *Design) InstByName(name string) (Inst, bool) {
	id, ok := d.instByNm[name]
	if !ok {
		return Inst{}, false
	}
	return d.insts[id], true
}

// SetLocation moves the instance's lower-left corner.
func (d *Design) SetLocation(id InstID, x, y float64) error {
	if id < 0 || int(id) >= len(d.insts) {
		return errors.New(errors.ErrCodeInternal, "unknown instance handle %d", id)
	}
	d.insts[id].X = x
	d.insts[id].Y = y
	return nil
}

// CoreArea returns the chip core rectangle.
func (d *Design) CoreArea() layout.Rect { return d.core }

// BoundaryPins returns all chip boundary pins in declaration order.
func (d *Design) BoundaryPins() []Pin {
	pins := make([]Pin, len(d.boundary))
	for i, id := range d.boundary {
		pins[i] = d.pins[id]
	}
	return pins
}

// Nets returns the netlist connectivity.
func (d *Design) Nets() []Net { return d.nets }

// Pin resolves a pin handle.
func (d *Design) Pin(id PinID) (Pin, bool) {
	if id < 0 || int(id) >= len(d.pins) {
		return Pin{}, false
	}
	return d.pins[id], true
}

// ---------------------------------------------------------------------------
// TimingGraph implementation

// HasTiming reports whether the design declares timing data available.
func (d *Design) HasTiming() bool { return d.hasTiming }

// Vertices returns every vertex in forward topological order.
func (d *Design) Vertices() []VertexID { return d.order }

// Fanins returns the vertices driving v.
func (d *Design) Fanins(v VertexID) []VertexID {
	if v < 0 || int(v) >= len(d.fanins) {
		return nil
	}
	return d.fanins[v]
}

// VertexPin returns the pin the vertex stands for.
func (d *Design) VertexPin(v VertexID) Pin {
	if v < 0 || int(v) >= len(d.pins) {
		return Pin{Inst: NoInst, ID: -1}
	}
	return d.pins[v]
}

// SeqOutVertex returns the paired clocked output for a sequential data
// input, mirroring the liberty findSeqOutPin contract.
func (d *Design) SeqOutVertex(v VertexID) (VertexID, bool) {
	q, ok := d.seqOut[v]
	return q, ok
}

// ---------------------------------------------------------------------------
// Placement output

// Placement is the committed location of one instance, used for writing
// placement results back out as JSON.
type Placement struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	W    float64 `json:"w"`
	H    float64 `json:"h"`
}

// MacroPlacements returns the current locations of all macro instances,
// sorted by name for deterministic output.
func (d *Design) MacroPlacements() []Placement {
	var out []Placement
	for i := range d.insts {
		in := d.insts[i]
		if !in.IsMacro {
			continue
		}
		out = append(out, Placement{Name: in.Name, X: in.X, Y: in.Y, W: in.W, H: in.H})
	}
	slices.SortFunc(out, func(a, b Placement) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// WritePlacements writes the macro placements as indented JSON.
func (d *Design) WritePlacements(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d.MacroPlacements())
}
