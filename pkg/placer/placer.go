// Package placer drives the macro placement pipeline: configuration, macro
// list construction, adjacency weighting, multi-trial partitioning and
// best-solution commit.
//
// A [Placer] is a single placement session. It walks a fixed state machine
// (Uninitialized, Configured, MacroListBuilt, WeightsComputed, Placing,
// Solved); configuration setters are only honored before placement starts.
// All per-session scratch state (the weight matrix, the instance index, the
// macro records) lives on the Placer, so independent sessions can run
// concurrently.
package placer

import (
	"context"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/ibrahimkhairy/macroplace/pkg/adjacency"
	"github.com/ibrahimkhairy/macroplace/pkg/config"
	"github.com/ibrahimkhairy/macroplace/pkg/errors"
	"github.com/ibrahimkhairy/macroplace/pkg/layout"
	"github.com/ibrahimkhairy/macroplace/pkg/macro"
	"github.com/ibrahimkhairy/macroplace/pkg/netlist"
	"github.com/ibrahimkhairy/macroplace/pkg/partition"
)

// State tracks a session's progress through the pipeline.
type State int

const (
	StateUninitialized State = iota
	StateConfigured
	StateMacroListBuilt
	StateWeightsComputed
	StatePlacing
	StateSolved
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConfigured:
		return "configured"
	case StateMacroListBuilt:
		return "macro-list-built"
	case StateWeightsComputed:
		return "weights-computed"
	case StatePlacing:
		return "placing"
	case StateSolved:
		return "solved"
	}
	return "unknown"
}

// TrialResult records the outcome of one placement trial for diagnostics.
type TrialResult struct {
	Strategy partition.Strategy
	Reverse  bool
	WL       float64
	Err      error
}

// Placer is one placement session.
type Placer struct {
	db     netlist.Database
	graph  netlist.TimingGraph
	logger *log.Logger

	sessionID string
	state     State

	defaults  macro.Defaults
	fence     *layout.Rect
	verbose   int
	maxTrials int
	timeout   time.Duration

	globalCfg string
	localCfg  string

	macros    []macro.Macro
	instIndex map[netlist.InstID]int
	weights   adjacency.WeightMap
	pairs     []adjacency.Pair
	matrix    [][]int
	region    layout.Rect

	bestWL   float64
	solCount int
	results  []TrialResult
}

// New creates an empty session with a fresh session ID.
func New() *Placer {
	return &Placer{
		sessionID: uuid.NewString(),
		logger:    log.Default(),
	}
}

// Init binds the external collaborators. The session transitions to
// Configured only when both the database and the timing graph are non-nil;
// a nil logger falls back to log.Default().
func (p *Placer) Init(db netlist.Database, graph netlist.TimingGraph, logger *log.Logger) error {
	if db == nil || graph == nil {
		return errors.New(errors.ErrCodeInvalidInput, "database and timing graph are required")
	}
	p.db = db
	p.graph = graph
	if logger != nil {
		p.logger = logger
	}
	p.state = StateConfigured
	return nil
}

// SessionID returns the session's unique identifier.
func (p *Placer) SessionID() string { return p.sessionID }

// State returns the session's pipeline state.
func (p *Placer) State() State { return p.state }

// configurable guards the setters: configuration is only honored before
// placement starts. Late calls warn and leave solved state untouched.
func (p *Placer) configurable(name string) bool {
	if p.state >= StatePlacing {
		p.logger.Warn("configuration ignored after placement", "setter", name, "state", p.state)
		return false
	}
	return true
}

// SetHalo sets the global halo defaults.
func (p *Placer) SetHalo(x, y float64) {
	if p.configurable("SetHalo") {
		p.defaults.HaloX, p.defaults.HaloY = x, y
	}
}

// SetChannel sets the global routing-channel defaults.
func (p *Placer) SetChannel(x, y float64) {
	if p.configurable("SetChannel") {
		p.defaults.ChannelX, p.defaults.ChannelY = x, y
	}
}

// SetFenceRegion restricts placement to the given rectangle.
func (p *Placer) SetFenceRegion(lx, ly, ux, uy float64) {
	if p.configurable("SetFenceRegion") {
		fence := layout.NewRect(lx, ly, ux, uy)
		p.fence = &fence
	}
}

// SetVerboseLevel sets the diagnostic verbosity.
func (p *Placer) SetVerboseLevel(v int) {
	if p.configurable("SetVerboseLevel") {
		p.verbose = v
	}
}

// SetGlobalConfig points the session at a global TOML configuration file,
// parsed at the start of PlaceMacros. File values override setter values.
func (p *Placer) SetGlobalConfig(path string) {
	if p.configurable("SetGlobalConfig") {
		p.globalCfg = path
	}
}

// SetLocalConfig points the session at a per-macro override file.
func (p *Placer) SetLocalConfig(path string) {
	if p.configurable("SetLocalConfig") {
		p.localCfg = path
	}
}

// SetMaxTrials bounds the number of placement trials. Zero or negative
// means all strategy variants run.
func (p *Placer) SetMaxTrials(n int) {
	if p.configurable("SetMaxTrials") {
		p.maxTrials = n
	}
}

// SetTrialTimeout sets a deadline for the trial phase; when it expires the
// best solution found so far is committed.
func (p *Placer) SetTrialTimeout(d time.Duration) {
	if p.configurable("SetTrialTimeout") {
		p.timeout = d
	}
}

// SolutionCount returns how many trials the last PlaceMacros ran.
func (p *Placer) SolutionCount() int { return p.solCount }

// WeightedWL returns the committed solution's weighted wirelength.
func (p *Placer) WeightedWL() float64 { return p.bestWL }

// Results returns the per-trial outcomes of the last PlaceMacros.
func (p *Placer) Results() []TrialResult { return p.results }

// Macros returns the session's macro records (committed coordinates after a
// successful PlaceMacros).
func (p *Placer) Macros() []macro.Macro { return p.macros }

// WeightMap returns the sparse adjacency model.
func (p *Placer) WeightMap() adjacency.WeightMap { return p.weights }

// Region returns the placement region (fence if set, else the core area).
func (p *Placer) Region() layout.Rect { return p.region }

// Weight is the O(1) lookup into the dense weight matrix. Indices 0..N-1
// address macros, N..N+3 the edge pseudo-macros. Out-of-range indices
// return 0.
func (p *Placer) Weight(i, j int) int {
	if i < 0 || j < 0 || i >= len(p.matrix) || j >= len(p.matrix) {
		return 0
	}
	return p.matrix[i][j]
}

// PlaceMacros runs the full pipeline and commits the best trial's
// coordinates to the database. Configuration errors abort before any
// placement work; missing timing data degrades to fallback weighting; the
// run fails with PLACEMENT_INFEASIBLE only when every trial fails.
func (p *Placer) PlaceMacros(ctx context.Context) error {
	switch p.state {
	case StateUninitialized:
		return errors.New(errors.ErrCodeInvalidInput, "session not initialized, call Init first")
	case StatePlacing, StateSolved:
		return errors.New(errors.ErrCodeInvalidInput, "session already %s", p.state)
	}

	locals, err := p.loadConfig()
	if err != nil {
		return err
	}

	p.macros, p.instIndex, err = macro.BuildList(p.db, p.defaults, locals)
	if err != nil {
		return err
	}
	p.state = StateMacroListBuilt
	if len(p.macros) == 0 {
		p.logger.Warn("no macros to place", "session", p.sessionID)
		p.solCount = 0
		p.state = StateSolved
		return nil
	}
	p.logger.Info("built macro list", "session", p.sessionID, "macros", len(p.macros))

	engine := adjacency.NewEngine(p.db, p.graph, p.logger)
	p.region = p.placementRegion()
	p.weights = engine.Find(p.macros, p.instIndex, p.region)
	p.fillMacroWeights()
	p.state = StateWeightsComputed
	p.logger.Info("computed adjacency weights",
		"pairs", len(p.weights), "timing", p.graph.HasTiming())

	p.state = StatePlacing
	if err := p.runTrials(ctx); err != nil {
		return err
	}

	if err := p.updateDbCoordi(); err != nil {
		return err
	}
	p.state = StateSolved
	p.logger.Info("placement committed",
		"session", p.sessionID,
		"trials", p.solCount,
		"weightedWL", p.bestWL)
	return nil
}

// loadConfig parses the configured TOML files. Returns the local overrides;
// global file values replace the setter-provided defaults.
func (p *Placer) loadConfig() (map[string]macro.LocalInfo, error) {
	if p.globalCfg != "" {
		g, err := config.ParseGlobal(p.globalCfg)
		if err != nil {
			return nil, err
		}
		p.defaults = macro.Defaults{
			HaloX: g.HaloX, HaloY: g.HaloY,
			ChannelX: g.ChannelX, ChannelY: g.ChannelY,
		}
		if g.Fence != nil {
			p.fence = g.Fence
		}
	}
	if p.fence != nil && !p.fence.Valid() {
		return nil, errors.New(errors.ErrCodeConfig, "fence region has ux < lx or uy < ly")
	}
	if p.localCfg == "" {
		return nil, nil
	}
	return config.ParseLocal(p.localCfg)
}

// placementRegion is the fence if configured, else the chip core.
func (p *Placer) placementRegion() layout.Rect {
	if p.fence != nil {
		return *p.fence
	}
	return p.db.CoreArea()
}

// fillMacroWeights materializes the sparse weight map into a dense
// symmetric-access matrix with four trailing pseudo-macro rows, and records
// the pairs in sorted order so float accumulations over them are stable.
func (p *Placer) fillMacroWeights() {
	n := len(p.macros) + layout.EdgeCount
	p.matrix = make([][]int, n)
	for i := range p.matrix {
		p.matrix[i] = make([]int, n)
	}
	p.pairs = make([]adjacency.Pair, 0, len(p.weights))
	for pair, w := range p.weights {
		p.matrix[pair.From][pair.To] += w
		p.matrix[pair.To][pair.From] += w
		p.pairs = append(p.pairs, pair)
	}
	sort.Slice(p.pairs, func(i, j int) bool {
		if p.pairs[i].From != p.pairs[j].From {
			return p.pairs[i].From < p.pairs[j].From
		}
		return p.pairs[i].To < p.pairs[j].To
	})
}

// UpdateMacroCoordi walks a solved partition tree and writes each leaf
// macro's coordinates, centering the macro in its assigned sub-region.
func (p *Placer) UpdateMacroCoordi(part *partition.Partition) {
	part.Walk(func(node *partition.Partition) {
		if !node.IsLeaf() {
			return
		}
		for _, idx := range node.Macros() {
			m := &p.macros[idx]
			r := node.Rect()
			m.SetLocation(r.CenterX()-m.W/2, r.CenterY()-m.H/2)
		}
	})
}

// updateDbCoordi pushes the committed macro coordinates to the database.
// This is the only point where external state mutates.
func (p *Placer) updateDbCoordi() error {
	for i := range p.macros {
		m := &p.macros[i]
		if err := p.db.SetLocation(m.Inst, m.Lx, m.Ly); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "write coordinates of %s", m.Name)
		}
	}
	return nil
}
