package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/fitgen/internal/build"
	"github.com/nvandessel/fitgen/internal/session"
)

func newSlotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Manage kernel build slots",
		Long: `Every native session compiles its kernel into its own slot under the
build root (~/.fitgen/build). Slots are pruned after each build according to
build.keep_slots and build.max_slot_age; these commands inspect and prune
them by hand.`,
	}

	cmd.AddCommand(
		newSlotsListCmd(),
		newSlotsPruneCmd(),
	)

	return cmd
}

func newSlotsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List build slots with their session manifests",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			root := env.cfg.BuildRootDir(env.workDir)
			slots, err := build.ListSlots(root)
			if err != nil {
				return fmt.Errorf("failed to list slots: %w", err)
			}

			if jsonOut {
				type jsonEntry struct {
					Path      string            `json:"path"`
					Size      int64             `json:"size_bytes"`
					CreatedAt string            `json:"created_at"`
					Manifest  *session.Manifest `json:"manifest,omitempty"`
				}
				entries := make([]jsonEntry, 0, len(slots))
				for _, s := range slots {
					m, _ := session.LoadManifest(s.Path)
					entries = append(entries, jsonEntry{
						Path:      s.Path,
						Size:      s.Size,
						CreatedAt: s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
						Manifest:  m,
					})
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"slots":       entries,
					"total_count": len(entries),
					"directory":   root,
				})
			}

			w := cmd.OutOrStdout()
			if len(slots) == 0 {
				fmt.Fprintf(w, "No build slots in %s\n", root)
				return nil
			}

			fmt.Fprintf(w, "Build slots in %s:\n", root)
			var totalSize int64
			for _, s := range slots {
				totalSize += s.Size
				detail := "(no manifest)"
				if m, err := session.LoadManifest(s.Path); err == nil {
					detail = fmt.Sprintf("%dx%dx%d, port length %d, dt %g", m.NX, m.NY, m.NZ, m.Length, m.Dt)
				}
				fmt.Fprintf(w, "  %s  %s  %8s  %s\n",
					filepath.Base(s.Path), s.CreatedAt.Local().Format("2006-01-02 15:04"), formatSize(s.Size), detail)
			}
			fmt.Fprintf(w, "\n%d slots, %s total\n", len(slots), formatSize(totalSize))
			return nil
		},
	}
}

func newSlotsPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete build slots outside the retention policy",
		Long: `Delete build slots not kept by the retention policy. Flags override
build.keep_slots and build.max_slot_age; a slot survives if either limit
keeps it.

Examples:
  fitgen slots prune                  # Apply the configured policy
  fitgen slots prune --keep 2         # Keep only the two newest
  fitgen slots prune --max-age 1d --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			if cmd.Flags().Changed("keep") {
				env.cfg.Build.KeepSlots, _ = cmd.Flags().GetInt("keep")
			}
			if cmd.Flags().Changed("max-age") {
				env.cfg.Build.MaxSlotAge, _ = cmd.Flags().GetString("max-age")
			}
			policy, err := env.cfg.Retention()
			if err != nil {
				return err
			}
			if policy == nil {
				return fmt.Errorf("no retention limit configured (set --keep or --max-age)")
			}

			root := env.cfg.BuildRootDir(env.workDir)
			var deleted []string
			if dryRun {
				deleted, err = pruneCandidates(root, policy)
			} else {
				deleted, err = build.ApplyRetention(root, policy)
			}
			if err != nil {
				return fmt.Errorf("failed to prune slots: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"deleted": deleted,
					"count":   len(deleted),
					"dry_run": dryRun,
				})
			}

			w := cmd.OutOrStdout()
			verb := "Deleted"
			if dryRun {
				verb = "Would delete"
			}
			for _, d := range deleted {
				fmt.Fprintf(w, "  %s\n", filepath.Base(d))
			}
			fmt.Fprintf(w, "%s %d slot(s)\n", verb, len(deleted))
			return nil
		},
	}

	cmd.Flags().Int("keep", 0, "Keep this many newest slots (0 disables the count limit)")
	cmd.Flags().String("max-age", "", "Keep slots newer than this (e.g. 12h, 7d, 2w)")
	cmd.Flags().Bool("dry-run", false, "List what would be deleted without deleting")

	return cmd
}

// pruneCandidates lists the slots ApplyRetention would delete.
func pruneCandidates(root string, policy build.RetentionPolicy) ([]string, error) {
	slots, err := build.ListSlots(root)
	if err != nil {
		return nil, err
	}
	keep := make(map[string]bool)
	for _, s := range policy.Apply(slots) {
		keep[s.Path] = true
	}
	var out []string
	for _, s := range slots {
		if !keep[s.Path] {
			out = append(out, s.Path)
		}
	}
	return out, nil
}

// formatSize renders a byte count for humans.
func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
