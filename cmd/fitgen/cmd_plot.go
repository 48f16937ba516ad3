package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvandessel/fitgen/internal/results"
	"github.com/nvandessel/fitgen/internal/sanitize"
)

func newPlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot <archive|csv>",
		Short: "Plot a stored run",
		Long: `Render the excitation and feed signal of a run archive (.fitrun) or a
CSV dump to an image. The format follows the output extension.

CSV dumps carry no time step; pass --dt to label the time axis.

Examples:
  fitgen plot ~/.fitgen/runs/line.fitrun
  fitgen plot line.csv --dt 1e-12 -o line.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			output, _ := cmd.Flags().GetString("output")
			dt, _ := cmd.Flags().GetFloat64("dt")
			title, _ := cmd.Flags().GetString("title")

			in := args[0]
			var src, out []float32
			switch strings.ToLower(filepath.Ext(in)) {
			case results.ArchiveExt:
				_, run, err := results.ReadArchive(in)
				if err != nil {
					return err
				}
				src, out, dt = run.Source, run.Output, run.Dt
				if title == "" {
					title = run.Scenario
				}
			case ".csv":
				f, err := os.Open(in)
				if err != nil {
					return fmt.Errorf("failed to open results: %w", err)
				}
				src, out, err = results.ReadCSV(f)
				f.Close()
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("unsupported input %q (want %s or .csv)", filepath.Ext(in), results.ArchiveExt)
			}

			if output == "" {
				output = strings.TrimSuffix(in, filepath.Ext(in)) + ".png"
			}
			if err := results.Plot(output, sanitize.Label(title), dt, src, out); err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"output":  output,
					"samples": len(out),
					"summary": results.Summarize(out),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Plot written to %s (%d samples)\n", output, len(out))
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "Image file (default: input name with .png)")
	cmd.Flags().Float64("dt", 1, "Time step for CSV input")
	cmd.Flags().String("title", "", "Plot title (default: scenario name)")

	return cmd
}
