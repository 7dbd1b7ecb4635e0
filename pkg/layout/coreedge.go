package layout

// CoreEdge identifies one of the four chip boundary sides. Boundary pins are
// classified into exactly one edge and each edge acts as a pseudo-macro
// during adjacency weighting and wirelength evaluation.
type CoreEdge int

// The four core edges in their fixed index order. The order doubles as the
// tie-break priority when a pin is equidistant from several edges: West wins
// over East, East over North, North over South.
const (
	West CoreEdge = iota
	East
	North
	South
)

// EdgeCount is the number of core edges; the weight matrix reserves this
// many trailing indices for the edge pseudo-macros.
const EdgeCount = 4

// String returns the display name of the edge ("West", "East", ...).
func (e CoreEdge) String() string {
	switch e {
	case West:
		return "West"
	case East:
		return "East"
	case North:
		return "North"
	case South:
		return "South"
	}
	return "Unknown"
}

// Index returns the stable 0..3 index of the edge.
func (e CoreEdge) Index() int { return int(e) }

// EdgeFromIndex returns the edge with the given stable index.
// Indices outside 0..3 return West.
func EdgeFromIndex(i int) CoreEdge {
	if i < 0 || i >= EdgeCount {
		return West
	}
	return CoreEdge(i)
}

// NearestEdge classifies the point (x, y) onto the core edge whose boundary
// line is closest. Equal distances resolve by the fixed priority
// West > East > North > South; the declaration order of the enumeration is
// the priority order, so a plain minimum scan over the edges implements it.
//
// NearestEdge is a pure function: it reads only its arguments.
func NearestEdge(core Rect, x, y float64) CoreEdge {
	dists := [EdgeCount]float64{
		West:  abs(x - core.Lx),
		East:  abs(core.Ux - x),
		North: abs(core.Uy - y),
		South: abs(y - core.Ly),
	}
	best := West
	for e := West; e <= South; e++ {
		if dists[e] < dists[best] {
			best = e
		}
	}
	return best
}

// EdgeMidpoint returns the midpoint of the edge's boundary line. The four
// midpoints anchor the edge pseudo-macros during wirelength evaluation.
func EdgeMidpoint(core Rect, e CoreEdge) (x, y float64) {
	switch e {
	case West:
		return core.Lx, core.CenterY()
	case East:
		return core.Ux, core.CenterY()
	case North:
		return core.CenterX(), core.Uy
	default: // South
		return core.CenterX(), core.Ly
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
