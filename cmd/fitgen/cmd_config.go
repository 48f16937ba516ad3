package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvandessel/fitgen/internal/config"
	"github.com/nvandessel/fitgen/internal/constants"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show fitgen configuration",
		Long: `View the effective fitgen configuration.

Configuration is read from ~/.fitgen/config.yaml (or --config) and
FITGEN_* environment variables override it.

Examples:
  fitgen config list                 # Show all settings
  fitgen config get build.compiler   # Get a specific setting`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer env.Close()
			cfg := env.cfg

			w := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(w).Encode(cfg)
			}

			fmt.Fprintf(w, "Configuration (%s):\n", filepath.Join(env.workDir, constants.ConfigFileName))
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Build Settings:")
			for _, key := range []string{"build.compiler", "build.shared_flags", "build.build_root", "build.keep_slots", "build.max_slot_age"} {
				printConfigValue(w, env, key)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Solver Settings:")
			printConfigValue(w, env, "solver.backend")
			printConfigValue(w, env, "solver.tolerance")
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Logging & History:")
			printConfigValue(w, env, "logging.level")
			printConfigValue(w, env, "history.enabled")
			printConfigValue(w, env, "history.path")
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]

			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			value, found := getConfigValue(env.cfg, env.workDir, key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func printConfigValue(w io.Writer, env *runtimeEnv, key string) {
	value, _ := getConfigValue(env.cfg, env.workDir, key)
	fmt.Fprintf(w, "  %-20s %v\n", key+":", value)
}

// getConfigValue retrieves a configuration value by dot-notation key. Path
// settings report their resolved location.
func getConfigValue(cfg *config.FitConfig, workDir, key string) (interface{}, bool) {
	switch key {
	case "build.compiler":
		return cfg.Build.Compiler, true
	case "build.shared_flags":
		return strings.Join(cfg.Build.SharedFlags, " "), true
	case "build.build_root":
		return cfg.BuildRootDir(workDir), true
	case "build.keep_slots":
		return cfg.Build.KeepSlots, true
	case "build.max_slot_age":
		return valueOrDefault(cfg.Build.MaxSlotAge, "(none)"), true
	case "solver.backend":
		return cfg.Solver.Backend, true
	case "solver.tolerance":
		return cfg.Solver.Tolerance, true
	case "logging.level":
		return cfg.Logging.Level, true
	case "history.enabled":
		return cfg.History.Enabled, true
	case "history.path":
		return cfg.HistoryPath(workDir), true
	default:
		return nil, false
	}
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
