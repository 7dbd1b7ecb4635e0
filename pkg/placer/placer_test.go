package placer

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/ibrahimkhairy/macroplace/pkg/adjacency"
	"github.com/ibrahimkhairy/macroplace/pkg/errors"
	"github.com/ibrahimkhairy/macroplace/pkg/layout"
	"github.com/ibrahimkhairy/macroplace/pkg/macro"
	"github.com/ibrahimkhairy/macroplace/pkg/netlist"
	"github.com/ibrahimkhairy/macroplace/pkg/partition"
)

// twoMacroDesign is the canonical end-to-end scenario: two 2x2 macros with
// a single connection, placed inside a 10x10 region.
const twoMacroDesign = `{
  "core": {"lx": 0, "ly": 0, "ux": 10, "uy": 10},
  "instances": [
    {"name": "a", "type": "RAM", "x": 0, "y": 0, "w": 2, "h": 2, "macro": true},
    {"name": "b", "type": "RAM", "x": 8, "y": 8, "w": 2, "h": 2, "macro": true}
  ],
  "nets": [
    {"name": "n1", "driver": "a.q", "loads": ["b.a"]}
  ]
}`

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func newSession(t *testing.T, design string) (*Placer, *netlist.Design) {
	t.Helper()
	d, err := netlist.ReadDesign(strings.NewReader(design))
	if err != nil {
		t.Fatalf("ReadDesign: %v", err)
	}
	p := New()
	if err := p.Init(d, d, quietLogger()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return p, d
}

func TestInitRequiresCollaborators(t *testing.T) {
	p := New()
	if err := p.Init(nil, nil, nil); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Init(nil, nil) = %v, want INVALID_INPUT", err)
	}
	if p.State() != StateUninitialized {
		t.Errorf("state = %v, want uninitialized", p.State())
	}
	if err := p.PlaceMacros(context.Background()); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("PlaceMacros before Init = %v, want INVALID_INPUT", err)
	}
}

func TestPlaceTwoMacros(t *testing.T) {
	p, d := newSession(t, twoMacroDesign)
	p.SetFenceRegion(0, 0, 10, 10)

	if err := p.PlaceMacros(context.Background()); err != nil {
		t.Fatalf("PlaceMacros: %v", err)
	}
	if p.State() != StateSolved {
		t.Errorf("state = %v, want solved", p.State())
	}
	if p.SolutionCount() == 0 {
		t.Error("SolutionCount() = 0, want > 0")
	}

	// AdjWeightMap{(a, b): 1}
	if got := p.WeightMap()[adjacency.Pair{From: 0, To: 1}]; got != 1 {
		t.Errorf("weight(a, b) = %d, want 1", got)
	}

	// The committed placement minimizes the Manhattan center distance
	// subject to non-overlap: 2x2 blocks touch, centers 2 apart.
	if wl := p.WeightedWL(); math.Abs(wl-2) > 1e-6 {
		t.Errorf("WeightedWL() = %g, want 2", wl)
	}

	macros := p.Macros()
	for _, m := range macros {
		if m.Lx < 0 || m.Ly < 0 || m.Lx+m.W > 10 || m.Ly+m.H > 10 {
			t.Errorf("macro %s at (%g, %g) escapes the fence", m.Name, m.Lx, m.Ly)
		}
	}
	if overlap(macros[0].Lx, macros[0].Ly, 2, 2, macros[1].Lx, macros[1].Ly, 2, 2) {
		t.Errorf("macros overlap: %+v %+v", macros[0], macros[1])
	}

	// Coordinates were committed back to the database.
	a, _ := d.InstByName("a")
	if a.X != macros[0].Lx || a.Y != macros[0].Ly {
		t.Errorf("database coordinates (%g, %g) differ from macro (%g, %g)",
			a.X, a.Y, macros[0].Lx, macros[0].Ly)
	}
}

func overlap(ax, ay, aw, ah, bx, by, bw, bh float64) bool {
	const eps = 1e-9
	return ax < bx+bw-eps && bx < ax+aw-eps && ay < by+bh-eps && by < ay+ah-eps
}

func TestPlaceSingleMacroNoWeights(t *testing.T) {
	p, _ := newSession(t, `{
	  "core": {"lx": 0, "ly": 0, "ux": 10, "uy": 10},
	  "instances": [
	    {"name": "a", "type": "RAM", "x": 0, "y": 0, "w": 2, "h": 2, "macro": true}
	  ]
	}`)
	if err := p.PlaceMacros(context.Background()); err != nil {
		t.Fatalf("PlaceMacros: %v", err)
	}
	if wl := p.WeightedWL(); wl != 0 {
		t.Errorf("WeightedWL() = %g, want 0 (no adjacency)", wl)
	}
	m := p.Macros()[0]
	if m.Lx < 0 || m.Ly < 0 || m.Lx+m.W > 10 || m.Ly+m.H > 10 {
		t.Errorf("macro escapes region: %+v", m)
	}
}

func TestPlaceNoMacros(t *testing.T) {
	p, _ := newSession(t, `{
	  "core": {"lx": 0, "ly": 0, "ux": 10, "uy": 10},
	  "instances": [{"name": "u1", "type": "BUF", "x": 0, "y": 0, "w": 1, "h": 1}]
	}`)
	if err := p.PlaceMacros(context.Background()); err != nil {
		t.Fatalf("PlaceMacros: %v", err)
	}
	if p.SolutionCount() != 0 || p.State() != StateSolved {
		t.Errorf("solCount = %d state = %v, want 0/solved", p.SolutionCount(), p.State())
	}
}

func TestPlaceInfeasible(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`{"core": {"lx": 0, "ly": 0, "ux": 10, "uy": 10}, "instances": [`)
	for i := 0; i < 10; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"name": "m%d", "type": "RAM", "x": 0, "y": 0, "w": 6, "h": 6, "macro": true}`, i)
	}
	sb.WriteString(`]}`)

	p, _ := newSession(t, sb.String())
	err := p.PlaceMacros(context.Background())
	if !errors.Is(err, errors.ErrCodeInfeasible) {
		t.Fatalf("PlaceMacros = %v, want PLACEMENT_INFEASIBLE", err)
	}
	if p.SolutionCount() == 0 {
		t.Error("trials should have been attempted and counted")
	}
	for _, r := range p.Results() {
		if r.Err == nil {
			t.Errorf("trial %v should have failed", r.Strategy)
		}
	}
}

func TestBestSolutionIsMinimum(t *testing.T) {
	p, _ := newSession(t, twoMacroDesign)
	if err := p.PlaceMacros(context.Background()); err != nil {
		t.Fatalf("PlaceMacros: %v", err)
	}
	for _, r := range p.Results() {
		if r.Err != nil {
			continue
		}
		if p.WeightedWL() > r.WL+1e-9 {
			t.Errorf("committed WL %g exceeds trial %v/%v WL %g",
				p.WeightedWL(), r.Strategy, r.Reverse, r.WL)
		}
	}
}

func TestDeterminism(t *testing.T) {
	run := func() []float64 {
		p, _ := newSession(t, twoMacroDesign)
		if err := p.PlaceMacros(context.Background()); err != nil {
			t.Fatalf("PlaceMacros: %v", err)
		}
		var coords []float64
		for _, m := range p.Macros() {
			coords = append(coords, m.Lx, m.Ly)
		}
		return append(coords, p.WeightedWL())
	}

	first := run()
	for i := 0; i < 5; i++ {
		again := run()
		for k := range first {
			if first[k] != again[k] {
				t.Fatalf("run %d differs at %d: %v vs %v", i, k, again, first)
			}
		}
	}
}

func TestUpdateMacroCoordiWalksSolvedTree(t *testing.T) {
	p, d := newSession(t, twoMacroDesign)
	var err error
	p.macros, p.instIndex, err = macro.BuildList(d, p.defaults, nil)
	if err != nil {
		t.Fatalf("BuildList: %v", err)
	}
	p.region = layout.Rect{Lx: 0, Ly: 0, Ux: 10, Uy: 10}

	b := &partition.Bisector{
		Macros:   p.macros,
		Weight:   func(i, j int) int { return 0 },
		Strategy: partition.VerticalFirst,
	}
	tree, err := b.Build(p.region)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	p.UpdateMacroCoordi(tree)

	// Every macro record now sits centered in its assigned leaf.
	tree.Walk(func(node *partition.Partition) {
		if !node.IsLeaf() {
			return
		}
		for _, idx := range node.Macros() {
			m := p.macros[idx]
			r := node.Rect()
			if math.Abs(m.CenterX()-r.CenterX()) > 1e-9 || math.Abs(m.CenterY()-r.CenterY()) > 1e-9 {
				t.Errorf("macro %s center (%g, %g) not at leaf center (%g, %g)",
					m.Name, m.CenterX(), m.CenterY(), r.CenterX(), r.CenterY())
			}
		}
	})
}

func TestWirelengthStableAcrossCalls(t *testing.T) {
	p := New()
	p.macros = []macro.Macro{{W: 2, H: 2}, {W: 2, H: 2}, {W: 2, H: 2}}
	// Fractional distances make the float64 sum order-sensitive; the
	// accumulation order must therefore be fixed.
	p.weights = adjacency.WeightMap{
		{From: 0, To: 1}: 1,
		{From: 1, To: 2}: 2,
		{From: 0, To: 2}: 1,
	}
	p.fillMacroWeights()

	coords := []point{{x: 0, y: 0}, {x: 0.1, y: 0}, {x: 0.3, y: 0}}
	first := p.wirelength(coords)
	for i := 0; i < 5000; i++ {
		if got := p.wirelength(coords); got != first {
			t.Fatalf("call %d: wirelength = %v, want %v on identical input", i, got, first)
		}
	}
}

func TestSettersIgnoredAfterSolve(t *testing.T) {
	p, _ := newSession(t, twoMacroDesign)
	if err := p.PlaceMacros(context.Background()); err != nil {
		t.Fatalf("PlaceMacros: %v", err)
	}

	wl := p.WeightedWL()
	p.SetHalo(5, 5)
	p.SetFenceRegion(0, 0, 1, 1)
	p.SetChannel(2, 2)
	if p.WeightedWL() != wl || p.State() != StateSolved {
		t.Error("late setters must not corrupt solved state")
	}
	if err := p.PlaceMacros(context.Background()); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("second PlaceMacros = %v, want INVALID_INPUT", err)
	}
}

func TestWeightLookup(t *testing.T) {
	p, _ := newSession(t, twoMacroDesign)
	if err := p.PlaceMacros(context.Background()); err != nil {
		t.Fatalf("PlaceMacros: %v", err)
	}

	if p.Weight(0, 1) != 1 || p.Weight(1, 0) != 1 {
		t.Errorf("Weight(0,1)/Weight(1,0) = %d/%d, want symmetric 1", p.Weight(0, 1), p.Weight(1, 0))
	}
	if p.Weight(0, 0) != 0 {
		t.Errorf("Weight(0,0) = %d, want 0 (no self pairs)", p.Weight(0, 0))
	}
	// Out of range: 2 macros + 4 pseudo-macros = indices 0..5.
	if p.Weight(-1, 0) != 0 || p.Weight(0, 6) != 0 || p.Weight(99, 99) != 0 {
		t.Error("out-of-range lookups must return 0")
	}
}

func TestGlobalConfigFile(t *testing.T) {
	dir := t.TempDir()
	global := filepath.Join(dir, "global.toml")
	content := "[halo]\nx = 0.0\ny = 0.0\n\n[fence]\nlx = 0.0\nly = 0.0\nux = 10.0\nuy = 10.0\n"
	if err := os.WriteFile(global, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p, _ := newSession(t, twoMacroDesign)
	p.SetGlobalConfig(global)
	if err := p.PlaceMacros(context.Background()); err != nil {
		t.Fatalf("PlaceMacros: %v", err)
	}
	if r := p.Region(); r.Ux != 10 || r.Uy != 10 {
		t.Errorf("region = %+v, want fence from config file", r)
	}
}

func TestBadConfigAbortsBeforePlacement(t *testing.T) {
	dir := t.TempDir()
	global := filepath.Join(dir, "global.toml")
	if err := os.WriteFile(global, []byte("[halo]\nx = -3.0\ny = 0.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p, d := newSession(t, twoMacroDesign)
	p.SetGlobalConfig(global)
	if err := p.PlaceMacros(context.Background()); !errors.Is(err, errors.ErrCodeConfig) {
		t.Fatalf("PlaceMacros = %v, want CONFIG_ERROR", err)
	}
	// No placement work happened: database coordinates are untouched.
	a, _ := d.InstByName("a")
	if a.X != 0 || a.Y != 0 {
		t.Errorf("instance moved despite config error: (%g, %g)", a.X, a.Y)
	}
}
