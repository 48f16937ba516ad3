package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/fitgen/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Run the MCP tool server over stdio",
		Long: `Serve fit_render, fit_simulate and fit_history to an MCP client over
stdin/stdout. Scenario and output paths must lie below --root or the
fitgen runs directory.

Logs go to stderr; stdout carries the protocol.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			server, err := mcp.NewServer(&mcp.Config{
				Name:    "fitgen",
				Version: version,
				Root:    env.root,
				WorkDir: env.workDir,
				Fit:     env.cfg,
				Logger:  env.logger,
				Events:  env.events,
				Ledger:  env.ledger,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			fmt.Fprintf(os.Stderr, "fitgen MCP server %s serving %s\n", version, env.root)
			return server.Run(cmd.Context())
		},
	}
}
