// Package config parses the two placement configuration sources: the global
// file with chip-wide halo/channel defaults and an optional fence region,
// and the local file with per-macro overrides. Both are TOML.
//
// Global file:
//
//	[halo]
//	x = 2.0
//	y = 2.0
//
//	[channel]
//	x = 1.0
//	y = 1.0
//
//	[fence]
//	lx = 0.0
//	ly = 0.0
//	ux = 500.0
//	uy = 400.0
//
// Local file:
//
//	[[macro]]
//	name = "ram0"
//	halo_x = 4.0
//	channel_y = 2.0
package config

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/ibrahimkhairy/macroplace/pkg/errors"
	"github.com/ibrahimkhairy/macroplace/pkg/layout"
	"github.com/ibrahimkhairy/macroplace/pkg/macro"
)

// Global holds the chip-wide placement defaults. Fence is nil when the
// configuration does not restrict placement to a fence region.
type Global struct {
	HaloX, HaloY       float64
	ChannelX, ChannelY float64
	Fence              *layout.Rect
}

type globalFile struct {
	Halo    *xyPair    `toml:"halo"`
	Channel *xyPair    `toml:"channel"`
	Fence   *fenceRect `toml:"fence"`
}

type xyPair struct {
	X float64 `toml:"x"`
	Y float64 `toml:"y"`
}

type fenceRect struct {
	Lx float64 `toml:"lx"`
	Ly float64 `toml:"ly"`
	Ux float64 `toml:"ux"`
	Uy float64 `toml:"uy"`
}

type localFile struct {
	Macro []localEntry `toml:"macro"`
}

type localEntry struct {
	Name     string   `toml:"name"`
	HaloX    *float64 `toml:"halo_x"`
	HaloY    *float64 `toml:"halo_y"`
	ChannelX *float64 `toml:"channel_x"`
	ChannelY *float64 `toml:"channel_y"`
}

// ParseGlobal reads and validates the global configuration file.
// Negative spacing values and inverted fence rectangles are CONFIG_ERROR.
func ParseGlobal(path string) (Global, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Global{}, errors.Wrap(errors.ErrCodeFileNotFound, err, "read global config %s", path)
	}

	var gf globalFile
	if err := toml.Unmarshal(data, &gf); err != nil {
		return Global{}, errors.Wrap(errors.ErrCodeConfig, err, "parse global config %s", path)
	}

	var g Global
	if gf.Halo != nil {
		g.HaloX, g.HaloY = gf.Halo.X, gf.Halo.Y
	}
	if gf.Channel != nil {
		g.ChannelX, g.ChannelY = gf.Channel.X, gf.Channel.Y
	}
	if g.HaloX < 0 || g.HaloY < 0 || g.ChannelX < 0 || g.ChannelY < 0 {
		return Global{}, errors.New(errors.ErrCodeConfig, "%s: halo/channel must be non-negative", path)
	}
	if gf.Fence != nil {
		fence := layout.NewRect(gf.Fence.Lx, gf.Fence.Ly, gf.Fence.Ux, gf.Fence.Uy)
		if !fence.Valid() {
			return Global{}, errors.New(errors.ErrCodeConfig, "%s: fence has ux < lx or uy < ly", path)
		}
		g.Fence = &fence
	}
	return g, nil
}

// ParseLocal reads the per-macro override file and returns the overrides
// keyed by macro name. Value validation happens when the overrides are
// applied during macro-list construction; this only rejects entries without
// a name and duplicate names.
func ParseLocal(path string) (map[string]macro.LocalInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "read local config %s", path)
	}

	var lf localFile
	if err := toml.Unmarshal(data, &lf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfig, err, "parse local config %s", path)
	}

	locals := make(map[string]macro.LocalInfo, len(lf.Macro))
	for _, e := range lf.Macro {
		if e.Name == "" {
			return nil, errors.New(errors.ErrCodeConfig, "%s: macro entry without a name", path)
		}
		if _, dup := locals[e.Name]; dup {
			return nil, errors.New(errors.ErrCodeConfig, "%s: duplicate macro entry %q", path, e.Name)
		}
		locals[e.Name] = macro.LocalInfo{
			HaloX: e.HaloX, HaloY: e.HaloY,
			ChannelX: e.ChannelX, ChannelY: e.ChannelY,
		}
	}
	return locals, nil
}
