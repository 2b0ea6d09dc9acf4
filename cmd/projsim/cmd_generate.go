package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/predman/projsim/internal/batch"
	"github.com/predman/projsim/internal/config"
	"github.com/predman/projsim/internal/constants"
	"github.com/predman/projsim/internal/dataset"
	"github.com/predman/projsim/internal/logging"
	"github.com/predman/projsim/internal/report"
)

// generateResult is the --json output of generate.
type generateResult struct {
	Batches []batch.Summary `json:"batches"`
	Report  *report.Stats   `json:"report,omitempty"`
}

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate train and test datasets",
		Long: `Generate (feature table, label) pairs with randomized hyperparameters.

By default the train split is written first, then the test split, and a
label report of the train split is printed. Every instance is attempted;
failed instances are listed and the command exits non-zero.

Examples:
  projsim generate                              # train + test with configured sizes
  projsim generate --split test --test-size 50  # only the test split
  projsim generate --seed 7 --arrow             # also write Arrow copies
  projsim generate --catalog .projsim/runs.db   # record every run for replay`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")
			splitFlag, _ := cmd.Flags().GetString("split")
			noReport, _ := cmd.Flags().GetBool("no-report")

			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			applyGenerateFlags(cmd, &cfg.Dataset)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			splits, err := parseSplits(splitFlag)
			if err != nil {
				return err
			}

			logger := newCmdLogger(cmd, cfg)
			events := logging.NewEventLogger(underRoot(root, filepath.Dir(cfg.Dataset.TrainDir)), cfg.Logging.Level)
			defer events.Close()

			catalog, err := openCatalog(root, cfg.Dataset.CatalogPath)
			if err != nil {
				return err
			}
			if catalog != nil {
				defer catalog.Close()
			}

			ctx, cancel := signalContext(context.Background())
			defer cancel()
			ctx = logging.WithLogger(ctx, logger)

			orch := &batch.Orchestrator{
				Config: batch.Config{
					Seed:      cfg.Dataset.Seed,
					Workers:   cfg.Dataset.Workers,
					Generator: cfg.Generator,
				},
				Sink:    dataset.Writer{Arrow: cfg.Dataset.Arrow},
				Catalog: catalog,
				Logger:  logger,
				Events:  events,
			}

			out := cmd.OutOrStdout()
			var (
				result   generateResult
				failures []error
			)
			for _, split := range splits {
				dir := underRoot(root, cfg.Dataset.Dir(split))
				summary, err := orch.Run(ctx, split, dir, cfg.Dataset.Size(split))
				var batchErr *batch.BatchError
				if err != nil && !errors.As(err, &batchErr) {
					return fmt.Errorf("generating %s split: %w", split, err)
				}
				result.Batches = append(result.Batches, summary)
				if batchErr != nil {
					failures = append(failures, batchErr)
				}

				if !jsonOut {
					fmt.Fprintf(out, "%s: wrote %d/%d pairs to %s in %s\n",
						split, summary.Written, summary.Requested, summary.Dir, summary.Elapsed.Round(time.Millisecond))
					if summary.BatchID != "" {
						fmt.Fprintf(out, "  batch: %s\n", summary.BatchID)
					}
					if batchErr != nil {
						for _, f := range batchErr.Failures {
							fmt.Fprintf(out, "  failed instance %d: %v\n", f.Index, f.Err)
						}
					}
				}
				if ctx.Err() != nil {
					break
				}
			}

			if !noReport && slices.Contains(splits, constants.SplitTrain) && ctx.Err() == nil {
				stats, err := report.Scan(ctx, underRoot(root, cfg.Dataset.TrainDir), logger)
				if err != nil {
					return fmt.Errorf("reporting train split: %w", err)
				}
				result.Report = stats
				if !jsonOut {
					fmt.Fprintln(out)
					if err := stats.Format(out); err != nil {
						return err
					}
				}
			}

			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return fmt.Errorf("encode JSON: %w", err)
				}
			}

			if err := ctx.Err(); err != nil {
				return fmt.Errorf("generation interrupted: %w", err)
			}
			return errors.Join(failures...)
		},
	}

	cmd.Flags().String("split", "all", "Split to generate: train, test or all")
	cmd.Flags().Int("train-size", 0, "Number of train instances (default: config)")
	cmd.Flags().Int("test-size", 0, "Number of test instances (default: config)")
	cmd.Flags().Uint64("seed", 0, "Root seed (default: config)")
	cmd.Flags().Int("workers", 0, "Parallel workers (default: config)")
	cmd.Flags().Bool("arrow", false, "Also write Arrow IPC copies of every feature table")
	cmd.Flags().String("catalog", "", "SQLite run catalog path (default: config)")
	cmd.Flags().Bool("no-report", false, "Skip the train label report")

	return cmd
}

// applyGenerateFlags copies explicitly set flags over the dataset config.
func applyGenerateFlags(cmd *cobra.Command, ds *config.DatasetConfig) {
	flags := cmd.Flags()
	if flags.Changed("train-size") {
		ds.TrainSize, _ = flags.GetInt("train-size")
	}
	if flags.Changed("test-size") {
		ds.TestSize, _ = flags.GetInt("test-size")
	}
	if flags.Changed("seed") {
		ds.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("workers") {
		ds.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("arrow") {
		ds.Arrow, _ = flags.GetBool("arrow")
	}
	if flags.Changed("catalog") {
		ds.CatalogPath, _ = flags.GetString("catalog")
	}
}

func parseSplits(s string) ([]constants.Split, error) {
	switch s {
	case "", "all":
		return []constants.Split{constants.SplitTrain, constants.SplitTest}, nil
	}
	split := constants.Split(s)
	if !split.Valid() {
		return nil, fmt.Errorf("invalid split %q (use 'train', 'test' or 'all')", s)
	}
	return []constants.Split{split}, nil
}
