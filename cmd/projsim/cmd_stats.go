package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/predman/projsim/internal/constants"
	"github.com/predman/projsim/internal/logging"
	"github.com/predman/projsim/internal/report"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats [dir]",
		Short: "Summarize the labels of a dataset directory",
		Long: `Scan every *_deadline.txt label file in a directory and print the count,
mean, median, maximum and the five smallest and largest labels.

Without an argument the configured directory of --split is scanned.
Files whose content is not an integer are skipped with a warning.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")
			splitFlag, _ := cmd.Flags().GetString("split")

			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			var dir string
			if len(args) == 1 {
				dir = args[0]
			} else {
				split := constants.Split(splitFlag)
				if !split.Valid() {
					return fmt.Errorf("invalid split %q (use 'train' or 'test')", splitFlag)
				}
				dir = underRoot(root, cfg.Dataset.Dir(split))
			}

			logger := newCmdLogger(cmd, cfg)
			ctx := logging.WithLogger(context.Background(), logger)

			stats, err := report.Scan(ctx, dir, nil)
			if err != nil {
				return err
			}
			if jsonOut {
				return stats.JSON(cmd.OutOrStdout())
			}
			return stats.Format(cmd.OutOrStdout())
		},
	}

	cmd.Flags().String("split", string(constants.SplitTrain), "Split whose configured directory is scanned")

	return cmd
}
