package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/predman/projsim/internal/constants"
	"github.com/predman/projsim/internal/dataset"
	"github.com/predman/projsim/internal/manifest"
	"github.com/predman/projsim/internal/store"
)

// runsResult is the --json output of runs.
type runsResult struct {
	Batch *store.Batch `json:"batch"`
	Runs  []store.Run  `json:"runs"`
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List catalog rows of a generation batch",
		Long: `List the instances recorded in the run catalog for the latest batch of a
split, or for a specific batch with --batch. Each row carries the seed and
stream that replay it with 'projsim simulate --batch <id> --index <i>'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")
			splitFlag, _ := cmd.Flags().GetString("split")
			batchID, _ := cmd.Flags().GetString("batch")
			failedOnly, _ := cmd.Flags().GetBool("failed")
			check, _ := cmd.Flags().GetBool("check")

			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			if cfg.Dataset.CatalogPath == "" {
				return fmt.Errorf("no run catalog configured (set dataset.catalog_path or PROJSIM_CATALOG)")
			}
			catalog, err := store.OpenSQLiteCatalog(underRoot(root, cfg.Dataset.CatalogPath))
			if err != nil {
				return fmt.Errorf("failed to open run catalog: %w", err)
			}
			defer catalog.Close()

			ctx := cmd.Context()
			if check {
				if err := catalog.Check(ctx); err != nil {
					return fmt.Errorf("catalog check failed: %w", err)
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "Catalog integrity: ok")
			}

			var batch *store.Batch
			if batchID == "" {
				split := constants.Split(splitFlag)
				if !split.Valid() {
					return fmt.Errorf("invalid split %q (use 'train' or 'test')", splitFlag)
				}
				batch, err = catalog.LatestBatch(ctx, split)
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no %s batch recorded in the catalog", split)
				}
				if err != nil {
					return err
				}
				batchID = batch.ID
			}

			runs, err := catalog.Runs(ctx, batchID)
			if err != nil {
				return fmt.Errorf("reading batch %s: %w", batchID, err)
			}
			if check {
				if batch == nil {
					if batch, err = catalog.Batch(ctx, batchID); err != nil {
						return fmt.Errorf("reading batch %s: %w", batchID, err)
					}
				}
				if err := checkPublished(underRoot(root, batch.Dir), runs); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Dataset pairs: ok (%s)\n", batch.Dir)
			}
			if failedOnly {
				kept := runs[:0]
				for _, r := range runs {
					if r.Status == store.StatusFailed {
						kept = append(kept, r)
					}
				}
				runs = kept
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(runsResult{Batch: batch, Runs: runs})
			}

			if batch != nil {
				fmt.Fprintf(out, "Batch %s (%s, seed %d, %d requested, %d failed)\n\n",
					batch.ID, batch.Split, batch.Seed, batch.Requested, batch.Failed)
			}
			fmt.Fprintf(out, "%-6s %-8s %-20s %-6s %-5s %-9s %s\n", "INDEX", "STATUS", "STREAM", "LABEL", "ROWS", "TRUNCATED", "ERROR")
			for _, r := range runs {
				fmt.Fprintf(out, "%-6d %-8s %-20d %-6d %-5d %-9v %s\n",
					r.Index, r.Status, r.Stream, r.Label, r.Rows, r.Truncated, r.Error)
			}
			return nil
		},
	}

	cmd.Flags().String("split", string(constants.SplitTrain), "Split whose latest batch is listed")
	cmd.Flags().String("batch", "", "Batch ID (overrides --split)")
	cmd.Flags().Bool("failed", false, "Only list failed instances")
	cmd.Flags().Bool("check", false, "Check catalog integrity and that every ok run's pair is on disk")

	cmd.AddCommand(
		newRunsExportCmd(),
		newRunsVerifyCmd(),
	)

	return cmd
}

// checkPublished confirms that every successful run has its feature table and
// label on disk and that both agree with the catalog row.
func checkPublished(dir string, runs []store.Run) error {
	var problems []error
	for _, r := range runs {
		if r.Status != store.StatusOK {
			continue
		}
		snaps, label, err := dataset.ReadInstance(dir, r.Index)
		switch {
		case err != nil:
			problems = append(problems, fmt.Errorf("instance %d: %w", r.Index, err))
		case label != r.Label:
			problems = append(problems, fmt.Errorf("instance %d: label %d on disk, catalog says %d", r.Index, label, r.Label))
		case len(snaps) != r.Rows:
			problems = append(problems, fmt.Errorf("instance %d: %d rows on disk, catalog says %d", r.Index, len(snaps), r.Rows))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("dataset check failed: %w", errors.Join(problems...))
	}
	return nil
}

func newRunsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a batch manifest to a checksummed file",
		Long: `Write one batch and all of its catalog rows to a compressed manifest
file with a SHA-256 checksum header. Ship it next to the dataset so every
pair can be replayed without the catalog database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")
			splitFlag, _ := cmd.Flags().GetString("split")
			batchID, _ := cmd.Flags().GetString("batch")
			output, _ := cmd.Flags().GetString("output")

			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			catalog, err := openCatalog(root, cfg.Dataset.CatalogPath)
			if err != nil {
				return err
			}
			if catalog == nil {
				return fmt.Errorf("no run catalog configured (set dataset.catalog_path or PROJSIM_CATALOG)")
			}
			defer catalog.Close()

			ctx := cmd.Context()
			if batchID == "" {
				split := constants.Split(splitFlag)
				if !split.Valid() {
					return fmt.Errorf("invalid split %q (use 'train' or 'test')", splitFlag)
				}
				b, err := catalog.LatestBatch(ctx, split)
				if err != nil {
					return err
				}
				batchID = b.ID
			}

			m, err := manifest.Build(ctx, catalog, batchID)
			if err != nil {
				return fmt.Errorf("reading batch %s: %w", batchID, err)
			}
			if output == "" {
				output = filepath.Join(underRoot(root, m.Batch.Dir), "manifest-"+batchID+".gz")
			}
			header, err := manifest.Write(output, m)
			if err != nil {
				return fmt.Errorf("writing manifest: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"path":   output,
					"header": header,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d runs of batch %s to %s\n", header.RunCount, batchID, output)
			return nil
		},
	}

	cmd.Flags().String("split", string(constants.SplitTrain), "Split whose latest batch is exported")
	cmd.Flags().String("batch", "", "Batch ID (overrides --split)")
	cmd.Flags().StringP("output", "o", "", "Output file (default: manifest-<batch>.gz in the batch directory)")

	return cmd
}

func newRunsVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <manifest>",
		Short: "Verify the checksum of an exported manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			header, err := manifest.Verify(args[0])
			if err != nil {
				return fmt.Errorf("verification failed: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(header)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: batch %s (%s), %d runs, %d failed, created %s\n",
				header.BatchID, header.Split, header.RunCount, header.Failed, header.CreatedAt.Format(time.RFC3339))
			return nil
		},
	}
}
