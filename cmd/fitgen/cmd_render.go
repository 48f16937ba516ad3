package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/fitgen/internal/logging"
	"github.com/nvandessel/fitgen/internal/simulation"
)

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <scenario>",
		Short: "Render the specialized kernel source for a scenario",
		Long: `Resolve the scenario's port and substitute the grid dimensions, feed
offset and feed axis into the kernel template. Nothing is compiled.

Examples:
  fitgen render line.yaml                   # Print the source
  fitgen render line.yaml -o kernel.c       # Write it to a file
  fitgen render line.yaml --template my.c   # Use a custom template`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			output, _ := cmd.Flags().GetString("output")
			tplPath, _ := cmd.Flags().GetString("template")

			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			sc, err := env.loadScenario(args[0])
			if err != nil {
				return err
			}
			tpl, err := readTemplate(tplPath)
			if err != nil {
				return err
			}
			r, err := simulation.Render(sc, tpl)
			if err != nil {
				return err
			}
			env.logger.Log(cmd.Context(), logging.LevelTrace, "rendered kernel", "source", r.Source)

			if output != "" {
				if err := os.WriteFile(output, []byte(r.Source), 0644); err != nil {
					return fmt.Errorf("failed to write source: %w", err)
				}
			}

			if jsonOut {
				resp := map[string]interface{}{
					"hash":        r.Hash,
					"bytes":       len(r.Source),
					"feed_offset": r.Port.FeedOffset(r.Grid),
					"feed_axis":   r.Port.FeedAxis(),
				}
				if output != "" {
					resp["output"] = output
				} else {
					resp["source"] = r.Source
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(resp)
			}

			if output != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Kernel source written to %s (sha256 %s)\n", output, r.Hash[:12])
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), r.Source)
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "Write the source to this file instead of stdout")
	cmd.Flags().String("template", "", "Kernel template file (default: built-in template)")

	return cmd
}

// readTemplate returns the template at path, or "" for the built-in one.
func readTemplate(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read template: %w", err)
	}
	return string(data), nil
}
