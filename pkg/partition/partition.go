// Package partition implements the recursive spatial bisection consumed by
// the placement orchestrator. A Bisector splits the fence region into a tree
// of rectangular sub-regions, assigning macros to halves so that heavily
// connected macros end up on the same side of each cut.
//
// The orchestrator consumes the tree only through its query surface (Rect,
// Macros, IsLeaf, Children, MacroRect, Walk); it never reaches into the
// bisection internals. The tree is owned: each parent holds its children
// exclusively and the whole trial is garbage once the orchestrator drops the
// root.
package partition

import (
	"slices"

	"github.com/ibrahimkhairy/macroplace/pkg/errors"
	"github.com/ibrahimkhairy/macroplace/pkg/layout"
	"github.com/ibrahimkhairy/macroplace/pkg/macro"
)

// fitEps absorbs floating-point slack in fit comparisons.
const fitEps = 1e-9

// CutDir is the orientation of the cut applied at a tree node.
type CutDir int

const (
	// CutVertical splits along x: left and right children.
	CutVertical CutDir = iota
	// CutHorizontal splits along y: bottom and top children.
	CutHorizontal
)

// Strategy selects how cut orientations are chosen down the tree. Different
// strategies produce different candidate placements; the orchestrator runs
// one trial per strategy variant and keeps the best.
type Strategy int

const (
	// VerticalFirst alternates orientations starting with a vertical cut.
	VerticalFirst Strategy = iota
	// HorizontalFirst alternates orientations starting with a horizontal cut.
	HorizontalFirst
	// LongestSide always cuts across the longer side of the region.
	LongestSide
)

// String returns a short name for logging and trial reports.
func (s Strategy) String() string {
	switch s {
	case VerticalFirst:
		return "vertical-first"
	case HorizontalFirst:
		return "horizontal-first"
	case LongestSide:
		return "longest-side"
	}
	return "unknown"
}

// Partition is one node of the bisection tree: a rectangle and the macro
// indices assigned to it. Leaves hold exactly one macro.
type Partition struct {
	rect     layout.Rect
	macros   []int
	cut      CutDir
	children [2]*Partition
}

// Rect returns the node's assigned rectangle.
func (p *Partition) Rect() layout.Rect { return p.rect }

// Macros returns the macro indices assigned to the node's region.
// The returned slice is a read-only view.
func (p *Partition) Macros() []int { return p.macros }

// IsLeaf reports whether the node has been subdivided.
func (p *Partition) IsLeaf() bool { return p.children[0] == nil }

// Cut returns the cut orientation applied at this node.
// Meaningful only for non-leaf nodes.
func (p *Partition) Cut() CutDir { return p.cut }

// Children returns the two child partitions, or nil for a leaf.
func (p *Partition) Children() []*Partition {
	if p.IsLeaf() {
		return nil
	}
	return p.children[:]
}

// Walk visits the node and its descendants in pre-order.
func (p *Partition) Walk(fn func(*Partition)) {
	fn(p)
	if !p.IsLeaf() {
		p.children[0].Walk(fn)
		p.children[1].Walk(fn)
	}
}

// MacroRect returns the leaf rectangle assigned to the macro index, and
// whether the macro is present in this subtree.
func (p *Partition) MacroRect(idx int) (layout.Rect, bool) {
	if !slices.Contains(p.macros, idx) {
		return layout.Rect{}, false
	}
	if p.IsLeaf() {
		return p.rect, true
	}
	if r, ok := p.children[0].MacroRect(idx); ok {
		return r, true
	}
	return p.children[1].MacroRect(idx)
}

// Bisector builds a bisection tree for one placement trial.
type Bisector struct {
	// Macros is the macro list being placed; indices into it identify
	// macros throughout.
	Macros []macro.Macro

	// Weight returns the adjacency weight between two macro indices.
	// Used to keep connected macros on the same side of a cut.
	Weight func(i, j int) int

	// Strategy selects the cut-orientation policy.
	Strategy Strategy

	// ReverseOrder flips the greedy seeding order (smallest macros first
	// instead of largest), giving an extra trial variant per strategy.
	ReverseOrder bool
}

// Build subdivides the region until every leaf holds a single macro.
// Returns a PLACEMENT_INFEASIBLE error when the macros cannot fit: either
// their halo-inflated area exceeds the region or some leaf is too small for
// its macro.
func (b *Bisector) Build(region layout.Rect) (*Partition, error) {
	all := make([]int, len(b.Macros))
	total := 0.0
	for i := range b.Macros {
		all[i] = i
		total += b.demand(i)
	}
	if total > region.Area()+fitEps {
		return nil, errors.New(errors.ErrCodeInfeasible,
			"macros need %.2f area units, region %.2f x %.2f has %.2f",
			total, region.Width(), region.Height(), region.Area())
	}

	root := &Partition{rect: region, macros: all}
	if err := b.subdivide(root, 0); err != nil {
		return nil, err
	}
	return root, nil
}

// demand is the area a macro claims: footprint inflated by halo plus its
// routing channel margin.
func (b *Bisector) demand(i int) float64 {
	m := &b.Macros[i]
	return (m.W + 2*m.HaloX + m.ChannelX) * (m.H + 2*m.HaloY + m.ChannelY)
}

func (b *Bisector) subdivide(p *Partition, depth int) error {
	if len(p.macros) <= 1 {
		return b.checkLeafFit(p)
	}

	dir := b.cutDir(p.rect, depth)
	groupA, groupB := b.assign(p.macros)

	dA, dB := 0.0, 0.0
	for _, i := range groupA {
		dA += b.demand(i)
	}
	for _, i := range groupB {
		dB += b.demand(i)
	}

	// Cut position proportional to group demand, so each side's area
	// matches its load.
	frac := dA / (dA + dB)
	var rA, rB layout.Rect
	if dir == CutVertical {
		xcut := p.rect.Lx + p.rect.Width()*frac
		rA = layout.NewRect(p.rect.Lx, p.rect.Ly, xcut, p.rect.Uy)
		rB = layout.NewRect(xcut, p.rect.Ly, p.rect.Ux, p.rect.Uy)
	} else {
		ycut := p.rect.Ly + p.rect.Height()*frac
		rA = layout.NewRect(p.rect.Lx, p.rect.Ly, p.rect.Ux, ycut)
		rB = layout.NewRect(p.rect.Lx, ycut, p.rect.Ux, p.rect.Uy)
	}

	p.cut = dir
	p.children[0] = &Partition{rect: rA, macros: groupA}
	p.children[1] = &Partition{rect: rB, macros: groupB}
	if err := b.subdivide(p.children[0], depth+1); err != nil {
		return err
	}
	return b.subdivide(p.children[1], depth+1)
}

func (b *Bisector) cutDir(r layout.Rect, depth int) CutDir {
	switch b.Strategy {
	case VerticalFirst:
		if depth%2 == 0 {
			return CutVertical
		}
		return CutHorizontal
	case HorizontalFirst:
		if depth%2 == 0 {
			return CutHorizontal
		}
		return CutVertical
	default: // LongestSide
		if r.Width() >= r.Height() {
			return CutVertical
		}
		return CutHorizontal
	}
}

// assign splits the macro indices into two non-empty groups. The largest
// macro seeds the first group; every other macro joins the group it is more
// strongly connected to, unless that group already carries more than
// maxShare of the total demand. The balance guard is also what guarantees
// the second group is never left empty.
func (b *Bisector) assign(indices []int) (groupA, groupB []int) {
	const maxShare = 0.65

	order := slices.Clone(indices)
	slices.SortFunc(order, func(x, y int) int {
		dx, dy := b.demand(x), b.demand(y)
		switch {
		case dx > dy:
			return -1
		case dx < dy:
			return 1
		default:
			return x - y
		}
	})
	if b.ReverseOrder {
		slices.Reverse(order)
	}

	total := 0.0
	for _, i := range order {
		total += b.demand(i)
	}

	dA, dB := 0.0, 0.0
	for n, i := range order {
		if n == 0 {
			groupA = append(groupA, i)
			dA += b.demand(i)
			continue
		}

		affA, affB := 0, 0
		for _, j := range groupA {
			affA += b.Weight(i, j)
		}
		for _, j := range groupB {
			affB += b.Weight(i, j)
		}

		toA := affA > affB
		if affA == affB {
			toA = dA <= dB
		}
		// Balance guard keeps either side placeable.
		if toA && dA+b.demand(i) > total*maxShare {
			toA = false
		} else if !toA && dB+b.demand(i) > total*maxShare {
			toA = true
		}

		if toA {
			groupA = append(groupA, i)
			dA += b.demand(i)
		} else {
			groupB = append(groupB, i)
			dB += b.demand(i)
		}
	}
	return groupA, groupB
}

func (b *Bisector) checkLeafFit(p *Partition) error {
	if len(p.macros) == 0 {
		return nil
	}
	m := &b.Macros[p.macros[0]]
	if m.W+2*m.HaloX > p.rect.Width()+fitEps || m.H+2*m.HaloY > p.rect.Height()+fitEps {
		return errors.New(errors.ErrCodeInfeasible,
			"macro %s (%.2f x %.2f with halo) does not fit its %.2f x %.2f region",
			m.Name, m.W+2*m.HaloX, m.H+2*m.HaloY, p.rect.Width(), p.rect.Height())
	}
	return nil
}
