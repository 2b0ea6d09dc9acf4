package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/predman/projsim/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Run the MCP server over stdio",
		Long: `Run a Model Context Protocol server exposing projsim_simulate,
projsim_generate, projsim_stats and projsim_graph over stdio.

Tool paths are confined to the project root and the configured dataset
directories. Logs go to stderr; stdout carries the protocol.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")

			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			absRoot, err := filepath.Abs(root)
			if err != nil {
				return fmt.Errorf("resolve root: %w", err)
			}

			srv, err := mcp.NewServer(&mcp.Config{
				Name:     "projsim",
				Version:  version,
				Root:     absRoot,
				Settings: cfg,
				Logger:   newCmdLogger(cmd, cfg),
			})
			if err != nil {
				return fmt.Errorf("failed to start MCP server: %w", err)
			}
			return srv.Run(context.Background())
		},
	}
}
