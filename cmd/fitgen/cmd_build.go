package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nvandessel/fitgen/internal/build"
	"github.com/nvandessel/fitgen/internal/history"
	"github.com/nvandessel/fitgen/internal/kernel"
	"github.com/nvandessel/fitgen/internal/logging"
	"github.com/nvandessel/fitgen/internal/native"
	"github.com/nvandessel/fitgen/internal/simulation"
)

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build <scenario>",
		Short: "Render and compile a scenario's kernel without running it",
		Long: `Render the kernel for a scenario, compile it into a loadable module and
check that the module loads and exports its entry points.

The build goes into a fresh slot under the build root unless --dir is given.
The compiler log is always written next to the source as tpl.log.

Examples:
  fitgen build line.yaml
  fitgen build line.yaml --dir ./out/kernel --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			dir, _ := cmd.Flags().GetString("dir")
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

			id := uuid.NewString()
			if dir == "" {
				dir = build.SlotDir(env.cfg.BuildRootDir(env.workDir), id)
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			pipeline := build.NewPipeline(env.cfg.Build.Compiler, env.cfg.Build.SharedFlags, env.logger)
			res, buildErr := pipeline.Compile(ctx, r.Source, dir)
			if res != nil && env.ledger != nil {
				if err := env.ledger.RecordBuild(ctx, history.Build{
					SessionID:  id,
					SourceHash: res.Hash,
					Command:    res.Command,
					ExitCode:   res.ExitCode,
					Artifact:   res.ArtifactPath,
					LogPath:    res.LogPath,
					Duration:   res.Duration,
				}); err != nil {
					env.logger.Warn("recording build failed", "error", err)
				}
			}
			if buildErr != nil {
				var ce *build.CompileError
				if jsonOut && errors.As(buildErr, &ce) {
					json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
						"status":    "failed",
						"exit_code": ce.ExitCode,
						"command":   ce.Command,
						"log":       ce.LogPath,
					})
				}
				return buildErr
			}
			env.logger.Log(ctx, logging.LevelTrace, "compiler output", "log", res.Log)

			mod, err := native.Load(res.ArtifactPath, env.logger)
			if err != nil {
				return err
			}
			bound := mod.Bound()
			if err := mod.Close(); err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"status":       "ok",
					"dir":          dir,
					"artifact":     res.ArtifactPath,
					"log":          res.LogPath,
					"command":      res.Command,
					"hash":         res.Hash,
					"duration_ms":  res.Duration.Milliseconds(),
					"entry_points": bound,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Built %s in %v\n", res.ArtifactPath, res.Duration.Round(time.Millisecond))
			fmt.Fprintf(out, "  command: %s\n", res.Command)
			fmt.Fprintf(out, "  source:  %s (sha256 %s)\n", res.SourcePath, res.Hash[:12])
			for _, name := range []string{kernel.InitSymbol, kernel.StepSymbol, kernel.QuitSymbol} {
				status := "ok"
				if !bound[name] {
					status = "MISSING"
				}
				fmt.Fprintf(out, "  %-8s %s\n", name+":", status)
			}
			return nil
		},
	}

	cmd.Flags().String("dir", "", "Build directory (default: a new slot under the build root)")
	cmd.Flags().String("template", "", "Kernel template file (default: built-in template)")

	return cmd
}
