package placer

import (
	"context"
	"sync"

	"github.com/ibrahimkhairy/macroplace/pkg/errors"
	"github.com/ibrahimkhairy/macroplace/pkg/layout"
	"github.com/ibrahimkhairy/macroplace/pkg/partition"
)

// refinePasses bounds the attraction refinement; placements converge in a
// handful of passes, the bound only guards pathological oscillation.
const refinePasses = 64

// point is a macro's lower-left corner within one trial's scratch state.
type point struct {
	x, y float64
}

// trialSpec enumerates one strategy variant of the trial space.
type trialSpec struct {
	strategy partition.Strategy
	reverse  bool
}

func (p *Placer) trialSpecs() []trialSpec {
	specs := []trialSpec{
		{partition.VerticalFirst, false},
		{partition.HorizontalFirst, false},
		{partition.LongestSide, false},
		{partition.VerticalFirst, true},
		{partition.HorizontalFirst, true},
		{partition.LongestSide, true},
	}
	if p.maxTrials > 0 && p.maxTrials < len(specs) {
		specs = specs[:p.maxTrials]
	}
	return specs
}

// runTrials executes every trial concurrently on isolated coordinate state
// and commits the minimum-wirelength solution. Trials are independent given
// the fixed weight matrix; only the final reduction is serialized.
func (p *Placer) runTrials(ctx context.Context) error {
	parent := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	specs := p.trialSpecs()
	type outcome struct {
		tree *partition.Partition
		wl   float64
		err  error
	}
	outcomes := make([]outcome, len(specs))

	var wg sync.WaitGroup
	for i, spec := range specs {
		wg.Add(1)
		go func(i int, spec trialSpec) {
			defer wg.Done()
			tree, wl, err := p.runTrial(ctx, spec)
			outcomes[i] = outcome{tree: tree, wl: wl, err: err}
		}(i, spec)
	}
	wg.Wait()

	p.solCount = len(specs)
	p.results = make([]TrialResult, len(specs))
	best := -1
	for i, o := range outcomes {
		p.results[i] = TrialResult{
			Strategy: specs[i].strategy,
			Reverse:  specs[i].reverse,
			WL:       o.wl,
			Err:      o.err,
		}
		if o.err != nil {
			p.logger.Warn("trial failed",
				"strategy", specs[i].strategy, "reverse", specs[i].reverse, "err", o.err)
			continue
		}
		if p.verbose > 0 {
			p.logger.Debug("trial finished",
				"strategy", specs[i].strategy, "reverse", specs[i].reverse, "weightedWL", o.wl)
		}
		if best < 0 || o.wl < outcomes[best].wl {
			best = i
		}
	}
	if best < 0 {
		return errors.Wrap(errors.ErrCodeInfeasible, outcomes[0].err,
			"all %d trials failed", len(specs))
	}

	p.commit(parent, outcomes[best].tree)
	return nil
}

// commit replays the winning partition tree into the macro records via
// UpdateMacroCoordi and re-runs the deterministic refinement on them, so the
// committed coordinates derive from the tree itself rather than trial
// scratch state. Refinement is bounded work, so it runs under the parent
// context even when the trial deadline has already expired.
func (p *Placer) commit(ctx context.Context, tree *partition.Partition) {
	p.UpdateMacroCoordi(tree)

	coords := make([]point, len(p.macros))
	for i := range p.macros {
		coords[i] = point{x: p.macros[i].Lx, y: p.macros[i].Ly}
	}
	p.refine(ctx, coords, p.leafRects(tree))
	for i := range p.macros {
		p.macros[i].SetLocation(coords[i].x, coords[i].y)
	}
	p.bestWL = p.wirelength(coords)
}

// runTrial builds one bisection tree, derives initial coordinates, refines
// them and scores the result. The tree is returned so the winning trial can
// be committed without keeping per-trial coordinate state around.
func (p *Placer) runTrial(ctx context.Context, spec trialSpec) (*partition.Partition, float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, errors.Wrap(errors.ErrCodeInfeasible, err, "trial cancelled")
	}

	b := &partition.Bisector{
		Macros:       p.macros,
		Weight:       p.Weight,
		Strategy:     spec.strategy,
		ReverseOrder: spec.reverse,
	}
	tree, err := b.Build(p.region)
	if err != nil {
		return nil, 0, err
	}

	coords, leaves := p.initialCoords(tree)
	p.refine(ctx, coords, leaves)
	return tree, p.wirelength(coords), nil
}

// leafRects records each macro's assigned leaf rectangle, the clamp bound
// for refinement.
func (p *Placer) leafRects(tree *partition.Partition) []layout.Rect {
	leaves := make([]layout.Rect, len(p.macros))
	tree.Walk(func(node *partition.Partition) {
		if !node.IsLeaf() {
			return
		}
		for _, idx := range node.Macros() {
			leaves[idx] = node.Rect()
		}
	})
	return leaves
}

// initialCoords centers every macro in its assigned leaf and records the
// leaf rectangles for the refinement clamp.
func (p *Placer) initialCoords(tree *partition.Partition) ([]point, []layout.Rect) {
	leaves := p.leafRects(tree)
	coords := make([]point, len(p.macros))
	for i := range p.macros {
		m := &p.macros[i]
		coords[i] = point{x: leaves[i].CenterX() - m.W/2, y: leaves[i].CenterY() - m.H/2}
	}
	return coords, leaves
}

// refine pulls each macro toward the weighted centroid of its connected
// macros and edge pseudo-macros, clamped to its own leaf minus halo. Leaves
// are disjoint, so macros never overlap while they drift. The sweep updates
// in index order (each macro sees its predecessors' new positions), which
// converges quickly and keeps the result deterministic.
func (p *Placer) refine(ctx context.Context, coords []point, leaves []layout.Rect) {
	const eps = 1e-6
	n := len(p.macros)

	for pass := 0; pass < refinePasses; pass++ {
		select {
		case <-ctx.Done():
			return // keep the best-so-far coordinates
		default:
		}

		moved := false
		for i := range p.macros {
			m := &p.macros[i]
			wsum := 0.0
			tx, ty := 0.0, 0.0
			for j := 0; j < n+layout.EdgeCount; j++ {
				w := float64(p.Weight(i, j))
				if w == 0 {
					continue
				}
				cx, cy := p.nodeCenter(coords, j)
				tx += w * cx
				ty += w * cy
				wsum += w
			}
			if wsum == 0 {
				continue
			}

			leaf := leaves[i]
			x := clamp(tx/wsum-m.W/2, leaf.Lx+m.HaloX, leaf.Ux-m.W-m.HaloX)
			y := clamp(ty/wsum-m.H/2, leaf.Ly+m.HaloY, leaf.Uy-m.H-m.HaloY)
			if abs(x-coords[i].x) > eps || abs(y-coords[i].y) > eps {
				moved = true
			}
			coords[i] = point{x: x, y: y}
		}
		if !moved {
			return
		}
	}
}

// wirelength is the weighted half-perimeter metric: sum over adjacency
// pairs of weight times Manhattan distance between centers, with edge
// pseudo-macros anchored at their region-edge midpoints. Accumulation runs
// over the sorted pair slice, never the map, so identical coordinates
// always score to the identical float64.
func (p *Placer) wirelength(coords []point) float64 {
	total := 0.0
	for _, pair := range p.pairs {
		w := p.weights[pair]
		fx, fy := p.nodeCenter(coords, pair.From)
		tx, ty := p.nodeCenter(coords, pair.To)
		total += float64(w) * (abs(fx-tx) + abs(fy-ty))
	}
	return total
}

// nodeCenter resolves a weight-model node index to a center point: macro
// centers move with the trial coordinates, pseudo-macros sit fixed at the
// edge midpoints.
func (p *Placer) nodeCenter(coords []point, idx int) (float64, float64) {
	if idx < len(p.macros) {
		m := &p.macros[idx]
		return coords[idx].x + m.W/2, coords[idx].y + m.H/2
	}
	edge := layout.EdgeFromIndex(idx - len(p.macros))
	return layout.EdgeMidpoint(p.region, edge)
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		// Leaf tighter than the halo demands; fall back to the midpoint.
		return (lo + hi) / 2
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
