package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/predman/projsim/internal/config"
	"github.com/predman/projsim/internal/logging"
	"github.com/predman/projsim/internal/store"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "projsim",
		Short: "Synthetic project-history generator",
		Long: `projsim simulates software projects day by day and writes labeled
time series for training completion-date predictors.

Each instance evolves a task backlog with dependencies, a changing team and
an external risk factor until the backlog is empty. The daily snapshots form
the feature table and the completion day is the label.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: <root>/projsim.yaml if present)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace (overrides config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newGenerateCmd(),
		newSimulateCmd(),
		newStatsCmd(),
		newGraphCmd(),
		newRunsCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)

	return rootCmd
}

// loadSettings resolves the effective configuration for a command.
func loadSettings(cmd *cobra.Command) (*config.ProjsimConfig, error) {
	root, _ := cmd.Flags().GetString("root")
	path, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.ProjsimConfig
		err error
	)
	if path != "" {
		cfg, err = config.LoadWithFile(path)
	} else {
		cfg, err = config.LoadDir(root)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	return cfg, nil
}

// newCmdLogger writes leveled logs to the command's stderr.
func newCmdLogger(cmd *cobra.Command, cfg *config.ProjsimConfig) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
}

// underRoot resolves a relative path against the project root.
func underRoot(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// openCatalog opens the SQLite run catalog, or returns nil when no path is
// configured.
func openCatalog(root, path string) (store.RunCatalog, error) {
	if path == "" {
		return nil, nil
	}
	c, err := store.OpenSQLiteCatalog(underRoot(root, path))
	if err != nil {
		return nil, fmt.Errorf("failed to open run catalog: %w", err)
	}
	return c, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
