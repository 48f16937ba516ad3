package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/fitgen/internal/constants"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs or kernel builds",
		Long: `List entries from the history ledger (~/.fitgen/history.db), newest
first.

Examples:
  fitgen history
  fitgen history --builds --limit 5
  fitgen history --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")
			builds, _ := cmd.Flags().GetBool("builds")

			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			if env.ledger == nil {
				return fmt.Errorf("history is disabled (set history.enabled: true)")
			}
			if limit <= 0 {
				limit = constants.DefaultHistoryLimit
			}

			w := cmd.OutOrStdout()
			if builds {
				entries, err := env.ledger.RecentBuilds(cmd.Context(), limit)
				if err != nil {
					return fmt.Errorf("failed to list builds: %w", err)
				}
				if jsonOut {
					return json.NewEncoder(w).Encode(map[string]interface{}{
						"builds": entries,
						"count":  len(entries),
					})
				}
				if len(entries) == 0 {
					fmt.Fprintln(w, "No builds recorded.")
					return nil
				}
				fmt.Fprintf(w, "%-20s  %-36s  %-4s  %8s  %s\n", "TIME", "SESSION", "EXIT", "DURATION", "HASH")
				for _, b := range entries {
					hash := b.SourceHash
					if len(hash) > 12 {
						hash = hash[:12]
					}
					fmt.Fprintf(w, "%-20s  %-36s  %-4d  %8s  %s\n",
						b.CreatedAt.Local().Format("2006-01-02 15:04:05"), b.SessionID, b.ExitCode,
						b.Duration.Round(time.Millisecond), hash)
				}
				return nil
			}

			entries, err := env.ledger.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}
			if jsonOut {
				return json.NewEncoder(w).Encode(map[string]interface{}{
					"runs":  entries,
					"count": len(entries),
				})
			}
			if len(entries) == 0 {
				fmt.Fprintln(w, "No runs recorded.")
				return nil
			}
			fmt.Fprintf(w, "%-20s  %-36s  %-7s  %9s  %7s  %s\n", "TIME", "SESSION", "BACKEND", "CELLS", "STEPS", "MCELLS/S")
			for _, r := range entries {
				fmt.Fprintf(w, "%-20s  %-36s  %-7s  %9d  %7d  %.2f\n",
					r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.SessionID, r.Backend,
					r.Cells, r.Steps, r.CellsPerSecond/1e6)
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", constants.DefaultHistoryLimit, "Maximum entries to show")
	cmd.Flags().Bool("builds", false, "Show kernel builds instead of runs")

	return cmd
}
