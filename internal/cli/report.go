package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ibrahimkhairy/macroplace/pkg/adjacency"
	"github.com/ibrahimkhairy/macroplace/pkg/macro"
	"github.com/ibrahimkhairy/macroplace/pkg/netlist"
	"github.com/ibrahimkhairy/macroplace/pkg/report"
)

// reportOpts holds the command-line flags for the report command.
type reportOpts struct {
	design string
	dot    string // write the adjacency graph in DOT format
	svg    string // render the adjacency graph to SVG
}

func (c *CLI) reportCommand() *cobra.Command {
	opts := &reportOpts{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect a design's boundary pins and adjacency weights",
		Long: `Report loads a JSON design description and prints the per-edge boundary
pin counts and the macro adjacency weight table, without placing anything.

The adjacency graph can also be exported as Graphviz DOT or rendered
straight to SVG.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runReport(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.design, "design", "", "JSON design file (required)")
	cmd.Flags().StringVar(&opts.dot, "dot", "", "write the adjacency graph as DOT to this file")
	cmd.Flags().StringVar(&opts.svg, "svg", "", "render the adjacency graph as SVG to this file")
	_ = cmd.MarkFlagRequired("design")

	return cmd
}

func (c *CLI) runReport(cmd *cobra.Command, opts *reportOpts) error {
	design, err := netlist.LoadDesign(opts.design)
	if err != nil {
		return err
	}
	core := design.CoreArea()

	macros, index, err := macro.BuildList(design, macro.Defaults{}, nil)
	if err != nil {
		return err
	}
	weights := adjacency.NewEngine(design, design, c.Logger).Find(macros, index, core)

	w := cmd.OutOrStdout()
	report.PrintEdgePinCounts(w, report.EdgePinCounts(design, core))
	fmt.Fprintln(w)
	report.PrintAdjacency(w, macros, weights)

	if opts.dot == "" && opts.svg == "" {
		return nil
	}
	dot := report.AdjacencyDOT(macros, weights)
	if opts.dot != "" {
		if err := os.WriteFile(opts.dot, []byte(dot), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", opts.dot, err)
		}
		c.Logger.Info("Wrote adjacency graph", "path", opts.dot)
	}
	if opts.svg != "" {
		svg, err := report.RenderSVG(cmd.Context(), dot)
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.svg, svg, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", opts.svg, err)
		}
		c.Logger.Info("Rendered adjacency graph", "path", opts.svg)
	}
	return nil
}
