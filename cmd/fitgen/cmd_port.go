package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/fitgen/internal/grid"
	"github.com/nvandessel/fitgen/internal/port"
)

func newPortCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "port <scenario>",
		Short: "Resolve a scenario's excitation port",
		Long: `Snap the scenario's port endpoints to grid nodes and print the greedy
lattice path between them, the feed edge and the pinned nodes.

Examples:
  fitgen port line.yaml
  fitgen port line.hcl --tol 0.05 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			tol, _ := cmd.Flags().GetFloat64("tol")

			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			sc, err := env.loadScenario(args[0])
			if err != nil {
				return err
			}
			if tol > 0 {
				sc.Port.Tolerance = tol
			}
			xs, ys, zs := sc.Axes()
			g, err := grid.New(xs, ys, zs)
			if err != nil {
				return err
			}
			p, err := port.Find(g, sc.Source(), sc.Dest(), sc.Port.Tolerance)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"source":      p.Source,
					"dest":        p.Dest,
					"length":      p.Length(),
					"mid":         p.Mid(),
					"feed":        p.Feed(),
					"feed_offset": p.FeedOffset(g),
					"feed_axis":   p.FeedAxis(),
					"path":        p.Path,
					"pinned":      p.Pinned(),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Grid:   %dx%dx%d (%d cells)\n", g.NX(), g.NY(), g.NZ(), g.Cells())
			fmt.Fprintf(out, "Port:   %s -> %s, length %d\n", formatIndex(p.Source), formatIndex(p.Dest), p.Length())
			fmt.Fprintf(out, "Feed:   node %s, offset %d, axis %s\n", formatIndex(p.Feed()), p.FeedOffset(g), axisName(p.FeedAxis()))
			fmt.Fprintln(out)
			for i, n := range p.Path {
				marker := " "
				switch {
				case i == p.Mid():
					marker = "*"
				case i < p.Length():
					marker = "-"
				}
				fmt.Fprintf(out, "  %s %2d %s\n", marker, i, formatIndex(n))
			}
			fmt.Fprintln(out, "\n  * feed   - pinned")
			return nil
		},
	}

	cmd.Flags().Float64("tol", 0, "Endpoint snap tolerance (default: scenario or solver.tolerance)")

	return cmd
}

func formatIndex(i grid.Index) string {
	return fmt.Sprintf("(%d,%d,%d)", i.X, i.Y, i.Z)
}

func axisName(axis int) string {
	switch axis {
	case 0:
		return "x"
	case 1:
		return "y"
	case 2:
		return "z"
	default:
		return "?"
	}
}
