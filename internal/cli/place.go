package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ibrahimkhairy/macroplace/pkg/netlist"
	"github.com/ibrahimkhairy/macroplace/pkg/placer"
	"github.com/ibrahimkhairy/macroplace/pkg/report"
)

// placeOpts holds the command-line flags for the place command.
type placeOpts struct {
	design    string // JSON design file (required)
	globalCfg string // global TOML config
	localCfg  string // per-macro override TOML config
	out       string // placement output path (stdout if empty)

	haloX, haloY       float64
	channelX, channelY float64
	fence              string // "lx,ly,ux,uy"

	trials  int
	timeout time.Duration
	summary bool
}

func (c *CLI) placeCommand() *cobra.Command {
	opts := &placeOpts{}

	cmd := &cobra.Command{
		Use:   "place",
		Short: "Run the placement pipeline and write macro coordinates",
		Long: `Place reads a JSON design description, computes adjacency weights from
its timing graph, runs the multi-trial partitioner and writes the best
trial's macro coordinates.

Halo, channel and fence flags provide defaults; a global TOML config file
given with --global overrides them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPlace(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.design, "design", "", "JSON design file (required)")
	cmd.Flags().StringVar(&opts.globalCfg, "global", "", "global TOML configuration file")
	cmd.Flags().StringVar(&opts.localCfg, "local", "", "per-macro TOML override file")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "placement output file (default stdout)")
	cmd.Flags().Float64Var(&opts.haloX, "halo-x", 0, "default horizontal halo")
	cmd.Flags().Float64Var(&opts.haloY, "halo-y", 0, "default vertical halo")
	cmd.Flags().Float64Var(&opts.channelX, "channel-x", 0, "default horizontal routing channel")
	cmd.Flags().Float64Var(&opts.channelY, "channel-y", 0, "default vertical routing channel")
	cmd.Flags().StringVar(&opts.fence, "fence", "", "fence region as lx,ly,ux,uy")
	cmd.Flags().IntVar(&opts.trials, "trials", 0, "maximum placement trials (0 = all strategies)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "trial deadline, best-so-far wins on expiry")
	cmd.Flags().BoolVar(&opts.summary, "summary", false, "print the per-trial result table")
	_ = cmd.MarkFlagRequired("design")

	return cmd
}

func (c *CLI) runPlace(cmd *cobra.Command, opts *placeOpts) error {
	design, err := netlist.LoadDesign(opts.design)
	if err != nil {
		return err
	}

	p := placer.New()
	if err := p.Init(design, design, c.Logger); err != nil {
		return err
	}
	p.SetHalo(opts.haloX, opts.haloY)
	p.SetChannel(opts.channelX, opts.channelY)
	if opts.fence != "" {
		lx, ly, ux, uy, err := parseFence(opts.fence)
		if err != nil {
			return err
		}
		p.SetFenceRegion(lx, ly, ux, uy)
	}
	if opts.globalCfg != "" {
		p.SetGlobalConfig(opts.globalCfg)
	}
	if opts.localCfg != "" {
		p.SetLocalConfig(opts.localCfg)
	}
	p.SetMaxTrials(opts.trials)
	p.SetTrialTimeout(opts.timeout)

	prog := newProgress(c.Logger)
	if err := p.PlaceMacros(cmd.Context()); err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Placed %d macros, weighted WL %.3f (%d trials, session %s)",
		len(p.Macros()), p.WeightedWL(), p.SolutionCount(), p.SessionID()))

	if opts.summary {
		report.PrintTrials(cmd.OutOrStdout(), p.Results())
	}

	w := cmd.OutOrStdout()
	if opts.out != "" {
		f, err := os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("create %s: %w", opts.out, err)
		}
		defer f.Close()
		w = f
	}
	return design.WritePlacements(w)
}

// parseFence parses a "lx,ly,ux,uy" fence specification.
func parseFence(s string) (lx, ly, ux, uy float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("fence must be lx,ly,ux,uy, got %q", s)
	}
	vals := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return 0, 0, 0, 0, fmt.Errorf("fence coordinate %q: %w", part, err)
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], vals[3], nil
}
