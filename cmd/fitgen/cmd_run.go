package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/fitgen/internal/pathutil"
	"github.com/nvandessel/fitgen/internal/simulation"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Build and step a scenario",
		Long: `Open a session for the scenario (port, coefficients, kernel build and
load), step the excitation through it and write the feed signal.

Outputs go to --out (default: ~/.fitgen/runs) and are named after the
scenario unless --name is given.

Examples:
  fitgen run line.yaml                       # CSV and archive
  fitgen run line.yaml --plot svg --no-archive
  fitgen run line.hcl --backend interp --steps 5000 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			outDir, _ := cmd.Flags().GetString("out")
			name, _ := cmd.Flags().GetString("name")
			backend, _ := cmd.Flags().GetString("backend")
			steps, _ := cmd.Flags().GetInt("steps")
			noCSV, _ := cmd.Flags().GetBool("no-csv")
			noArchive, _ := cmd.Flags().GetBool("no-archive")
			plotFmt, _ := cmd.Flags().GetString("plot")

			if steps < 0 {
				return fmt.Errorf("--steps must be non-negative, got %d", steps)
			}
			switch plotFmt {
			case "", "png", "svg", "pdf":
			default:
				return fmt.Errorf("unknown plot format %q (valid: png, svg, pdf)", plotFmt)
			}

			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			sc, err := env.loadScenario(args[0])
			if err != nil {
				return err
			}
			if steps > 0 {
				sc.Steps = steps
			}

			manager, err := env.newManager(backend)
			if err != nil {
				return err
			}
			defer manager.Close()

			if outDir == "" {
				outDir = filepath.Join(env.workDir, pathutil.RunsDirName)
			}
			out := simulation.Outputs{
				Dir:     outDir,
				Stem:    name,
				CSV:     !noCSV,
				Archive: !noArchive,
			}
			if plotFmt != "" {
				out.Plot = true
				out.PlotExt = "." + plotFmt
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			res, err := simulation.NewRunner(manager, env.logger).Run(ctx, sc, out)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Scenario %q: %d steps on %dx%dx%d grid (%s backend)\n",
				res.Scenario, res.Steps, res.Dims[0], res.Dims[1], res.Dims[2], res.Backend)
			fmt.Fprintf(w, "  session:    %s\n", res.SessionID)
			fmt.Fprintf(w, "  port:       length %d, feed offset %d, axis %s\n", res.PortLength, res.FeedOffset, axisName(res.FeedAxis))
			fmt.Fprintf(w, "  throughput: %.2f MCells/s over %v\n", res.Stats.MCellsPerSecond(), res.Stats.Elapsed)
			fmt.Fprintf(w, "  signal:     min %.4g, max %.4g, rms %.4g, peak at step %d\n",
				res.Summary.Min, res.Summary.Max, res.Summary.RMS, res.Summary.PeakAt)
			for _, p := range []struct{ label, path string }{
				{"csv", res.CSVPath}, {"plot", res.PlotPath}, {"archive", res.ArchivePath},
			} {
				if p.path != "" {
					fmt.Fprintf(w, "  %-11s %s\n", p.label+":", p.path)
				}
			}
			return nil
		},
	}

	cmd.Flags().String("out", "", "Output directory (default: ~/.fitgen/runs)")
	cmd.Flags().String("name", "", "Output file stem (default: scenario name)")
	cmd.Flags().String("backend", "", "Execution backend: native or interp (default: solver.backend)")
	cmd.Flags().Int("steps", 0, "Override the scenario step count")
	cmd.Flags().String("plot", "", "Also write a plot: png, svg or pdf")
	cmd.Flags().Bool("no-csv", false, "Do not write the CSV dump")
	cmd.Flags().Bool("no-archive", false, "Do not write the run archive")

	return cmd
}
