// Package macro holds the placement-side record of one placeable block and
// the construction of the macro list from the database and configuration.
package macro

import (
	"github.com/ibrahimkhairy/macroplace/pkg/errors"
	"github.com/ibrahimkhairy/macroplace/pkg/layout"
	"github.com/ibrahimkhairy/macroplace/pkg/netlist"
)

// Macro is the geometric record of one placeable block. Geometry is fixed
// at construction; only the lower-left corner moves, via [Macro.SetLocation],
// while trials and the final commit run. Identity is the referenced database
// instance, held as an opaque handle.
type Macro struct {
	Lx, Ly float64
	W, H   float64

	HaloX, HaloY       float64
	ChannelX, ChannelY float64

	Inst netlist.InstID
	Name string
	Type string
}

// CenterX returns the x coordinate of the macro's center.
func (m *Macro) CenterX() float64 { return m.Lx + m.W/2 }

// CenterY returns the y coordinate of the macro's center.
func (m *Macro) CenterY() float64 { return m.Ly + m.H/2 }

// SetLocation moves the macro's lower-left corner.
func (m *Macro) SetLocation(lx, ly float64) {
	m.Lx = lx
	m.Ly = ly
}

// HaloRect returns the macro footprint inflated by its halo.
func (m *Macro) HaloRect() layout.Rect {
	return layout.NewRect(m.Lx-m.HaloX, m.Ly-m.HaloY, m.Lx+m.W+m.HaloX, m.Ly+m.H+m.HaloY)
}

// LocalInfo is a per-macro override of the global halo and channel spacing.
// Nil fields fall back to the global defaults.
type LocalInfo struct {
	HaloX, HaloY       *float64
	ChannelX, ChannelY *float64
}

// Defaults are the chip-wide spacing values applied where no local override
// exists.
type Defaults struct {
	HaloX, HaloY       float64
	ChannelX, ChannelY float64
}

// BuildList produces one Macro per macro instance in the database, resolving
// halo and channel spacing as: local override if present for the instance's
// name, else the global default. The second return value maps instance
// handles to macro-list positions and is the index used throughout placement.
//
// Returns CONFIG_ERROR when a local override carries a negative value or
// the global defaults are negative.
func BuildList(db netlist.Database, defaults Defaults, locals map[string]LocalInfo) ([]Macro, map[netlist.InstID]int, error) {
	if defaults.HaloX < 0 || defaults.HaloY < 0 || defaults.ChannelX < 0 || defaults.ChannelY < 0 {
		return nil, nil, errors.New(errors.ErrCodeConfig, "global halo/channel must be non-negative")
	}

	var macros []Macro
	index := make(map[netlist.InstID]int)
	for _, id := range db.Instances() {
		inst, ok := db.Inst(id)
		if !ok || !inst.IsMacro {
			continue
		}
		m := Macro{
			Lx: inst.X, Ly: inst.Y,
			W: inst.W, H: inst.H,
			HaloX: defaults.HaloX, HaloY: defaults.HaloY,
			ChannelX: defaults.ChannelX, ChannelY: defaults.ChannelY,
			Inst: id, Name: inst.Name, Type: inst.Type,
		}
		if local, ok := locals[inst.Name]; ok {
			if err := applyLocal(&m, local); err != nil {
				return nil, nil, err
			}
		}
		index[id] = len(macros)
		macros = append(macros, m)
	}
	return macros, index, nil
}

func applyLocal(m *Macro, local LocalInfo) error {
	set := func(dst *float64, src *float64, field string) error {
		if src == nil {
			return nil
		}
		if *src < 0 {
			return errors.New(errors.ErrCodeConfig, "macro %s: %s must be non-negative, got %g", m.Name, field, *src)
		}
		*dst = *src
		return nil
	}
	if err := set(&m.HaloX, local.HaloX, "halo_x"); err != nil {
		return err
	}
	if err := set(&m.HaloY, local.HaloY, "halo_y"); err != nil {
		return err
	}
	if err := set(&m.ChannelX, local.ChannelX, "channel_x"); err != nil {
		return err
	}
	return set(&m.ChannelY, local.ChannelY, "channel_y")
}
