package adjacency

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/ibrahimkhairy/macroplace/pkg/errors"
	"github.com/ibrahimkhairy/macroplace/pkg/layout"
	"github.com/ibrahimkhairy/macroplace/pkg/macro"
	"github.com/ibrahimkhairy/macroplace/pkg/netlist"
)

// chainDesign routes ram0 through a buffer and a register into ram1, with a
// west-side input port feeding ram0 and an east-side output port fed by ram1.
const chainDesign = `{
  "core": {"lx": 0, "ly": 0, "ux": 100, "uy": 100},
  "instances": [
    {"name": "ram0", "type": "RAM", "x": 0, "y": 0, "w": 10, "h": 10, "macro": true},
    {"name": "ram1", "type": "RAM", "x": 50, "y": 50, "w": 10, "h": 10, "macro": true},
    {"name": "u1", "type": "BUF", "x": 20, "y": 20, "w": 1, "h": 1},
    {"name": "ff0", "type": "DFF", "x": 30, "y": 30, "w": 1, "h": 1, "seq": true}
  ],
  "ports": [
    {"name": "in0", "dir": "input", "x": 0, "y": 50},
    {"name": "out0", "dir": "output", "x": 100, "y": 50}
  ],
  "nets": [
    {"name": "n1", "driver": "ram0.q", "loads": ["u1.a"]},
    {"name": "n2", "driver": "u1.z", "loads": ["ff0.d"]},
    {"name": "n3", "driver": "ff0.q", "loads": ["ram1.a"]},
    {"name": "n4", "driver": "in0", "loads": ["ram0.a"]},
    {"name": "n5", "driver": "ram1.q", "loads": ["out0"]}
  ]
}`

func setup(t *testing.T, src string) (*netlist.Design, []macro.Macro, map[netlist.InstID]int) {
	t.Helper()
	d, err := netlist.ReadDesign(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ReadDesign: %v", err)
	}
	macros, index, err := macro.BuildList(d, macro.Defaults{}, nil)
	if err != nil {
		t.Fatalf("BuildList: %v", err)
	}
	return d, macros, index
}

func TestFindAcrossRegister(t *testing.T) {
	d, macros, index := setup(t, chainDesign)
	weights := NewEngine(d, d, nil).Find(macros, index, d.CoreArea())

	// ram0 is macro 0, ram1 is macro 1 (declaration order).
	west := PseudoIndex(len(macros), layout.West)
	east := PseudoIndex(len(macros), layout.East)
	want := WeightMap{
		{From: 0, To: 1}:    1, // ram0 -> buffer -> register -> ram1
		{From: west, To: 0}: 1, // in0 -> ram0
		{From: 1, To: east}: 1, // ram1 -> out0
	}
	if !reflect.DeepEqual(weights, want) {
		t.Errorf("weights = %v, want %v", weights, want)
	}
}

func TestFindInvariants(t *testing.T) {
	d, macros, index := setup(t, chainDesign)
	weights := NewEngine(d, d, nil).Find(macros, index, d.CoreArea())

	for pair, w := range weights {
		if w <= 0 {
			t.Errorf("pair %v has non-positive weight %d", pair, w)
		}
		if pair.From == pair.To {
			t.Errorf("self pair %v recorded", pair)
		}
	}
}

func TestFindDeterminism(t *testing.T) {
	d, macros, index := setup(t, chainDesign)
	engine := NewEngine(d, d, nil)

	first := engine.Find(macros, index, d.CoreArea())
	for i := 0; i < 10; i++ {
		if again := engine.Find(macros, index, d.CoreArea()); !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %v vs %v", i, again, first)
		}
	}
}

func TestFindStopsAtUnpairedRegister(t *testing.T) {
	// The register has a data input but no output pin, so the fanin cone
	// ends there and no macro pair is recorded.
	src := `{
	  "core": {"lx": 0, "ly": 0, "ux": 100, "uy": 100},
	  "instances": [
	    {"name": "ram0", "type": "RAM", "x": 0, "y": 0, "w": 10, "h": 10, "macro": true},
	    {"name": "ram1", "type": "RAM", "x": 50, "y": 50, "w": 10, "h": 10, "macro": true},
	    {"name": "ff0", "type": "DFF", "x": 30, "y": 30, "w": 1, "h": 1, "seq": true}
	  ],
	  "nets": [
	    {"name": "n1", "driver": "ram0.q", "loads": ["ff0.d"]},
	    {"name": "n2", "driver": "ram1.q", "loads": ["ram1.a"]}
	  ]
	}`
	d, macros, index := setup(t, src)
	weights := NewEngine(d, d, nil).Find(macros, index, d.CoreArea())
	if len(weights) != 0 {
		t.Errorf("weights = %v, want none (self loop skipped, cone stops at register)", weights)
	}
}

func TestFindPerPinNotPerNet(t *testing.T) {
	// One net from ram0 fans out to two input pins of ram1: two connections,
	// weight 2.
	src := `{
	  "core": {"lx": 0, "ly": 0, "ux": 100, "uy": 100},
	  "instances": [
	    {"name": "ram0", "type": "RAM", "x": 0, "y": 0, "w": 10, "h": 10, "macro": true},
	    {"name": "ram1", "type": "RAM", "x": 50, "y": 50, "w": 10, "h": 10, "macro": true}
	  ],
	  "nets": [
	    {"name": "n1", "driver": "ram0.q", "loads": ["ram1.a0", "ram1.a1"]}
	  ]
	}`
	d, macros, index := setup(t, src)
	weights := NewEngine(d, d, nil).Find(macros, index, d.CoreArea())
	if got := weights[Pair{From: 0, To: 1}]; got != 2 {
		t.Errorf("weight = %d, want 2 (one per pin-to-pin connection)", got)
	}
}

func TestFindFallbackWithoutTiming(t *testing.T) {
	src := `{
	  "core": {"lx": 0, "ly": 0, "ux": 100, "uy": 100},
	  "has_timing": false,
	  "instances": [
	    {"name": "ram0", "type": "RAM", "x": 0, "y": 0, "w": 10, "h": 10, "macro": true},
	    {"name": "ram1", "type": "RAM", "x": 50, "y": 50, "w": 10, "h": 10, "macro": true},
	    {"name": "u1", "type": "BUF", "x": 20, "y": 20, "w": 1, "h": 1}
	  ],
	  "ports": [
	    {"name": "in0", "dir": "input", "x": 0, "y": 50}
	  ],
	  "nets": [
	    {"name": "n1", "driver": "ram0.q", "loads": ["ram1.a", "u1.a"]},
	    {"name": "n2", "driver": "in0", "loads": ["ram0.a"]}
	  ]
	}`
	d, macros, index := setup(t, src)
	weights := NewEngine(d, d, nil).Find(macros, index, d.CoreArea())

	west := PseudoIndex(len(macros), layout.West)
	want := WeightMap{
		{From: 0, To: 1}:    1, // direct macro-to-macro connection
		{From: west, To: 0}: 1, // boundary pin still folds in
	}
	if !reflect.DeepEqual(weights, want) {
		t.Errorf("fallback weights = %v, want %v", weights, want)
	}
}

func TestFindFallbackLogsMissingTimingCode(t *testing.T) {
	src := `{
	  "core": {"lx": 0, "ly": 0, "ux": 100, "uy": 100},
	  "has_timing": false,
	  "instances": [
	    {"name": "ram0", "type": "RAM", "x": 0, "y": 0, "w": 10, "h": 10, "macro": true},
	    {"name": "ram1", "type": "RAM", "x": 50, "y": 50, "w": 10, "h": 10, "macro": true}
	  ],
	  "nets": [
	    {"name": "n1", "driver": "ram0.q", "loads": ["ram1.a"]}
	  ]
	}`
	d, macros, index := setup(t, src)

	var buf bytes.Buffer
	NewEngine(d, d, log.New(&buf)).Find(macros, index, d.CoreArea())

	if got := buf.String(); !strings.Contains(got, string(errors.ErrCodeMissingTiming)) {
		t.Errorf("fallback warning %q does not carry the %s code", got, errors.ErrCodeMissingTiming)
	}
}

func TestFindBoundaryEdgeAssignment(t *testing.T) {
	// Ports on all four edges; each should fold into its own pseudo-macro.
	src := `{
	  "core": {"lx": 0, "ly": 0, "ux": 100, "uy": 100},
	  "instances": [
	    {"name": "ram0", "type": "RAM", "x": 40, "y": 40, "w": 10, "h": 10, "macro": true}
	  ],
	  "ports": [
	    {"name": "w", "dir": "input", "x": 0, "y": 50},
	    {"name": "e", "dir": "input", "x": 100, "y": 50},
	    {"name": "n", "dir": "input", "x": 50, "y": 100},
	    {"name": "s", "dir": "input", "x": 50, "y": 0}
	  ],
	  "nets": [
	    {"name": "n1", "driver": "w", "loads": ["ram0.a"]},
	    {"name": "n2", "driver": "e", "loads": ["ram0.b"]},
	    {"name": "n3", "driver": "n", "loads": ["ram0.c"]},
	    {"name": "n4", "driver": "s", "loads": ["ram0.d"]}
	  ]
	}`
	d, macros, index := setup(t, src)
	weights := NewEngine(d, d, nil).Find(macros, index, d.CoreArea())

	for _, e := range []layout.CoreEdge{layout.West, layout.East, layout.North, layout.South} {
		pair := Pair{From: PseudoIndex(len(macros), e), To: 0}
		if weights[pair] != 1 {
			t.Errorf("%v pseudo-macro weight = %d, want 1", e, weights[pair])
		}
	}
}
