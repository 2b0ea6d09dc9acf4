// Package batch generates train/test datasets by running many independent
// simulation instances on a bounded worker pool.
//
// Usage:
//
//	o := &batch.Orchestrator{
//		Config: batch.Config{Seed: 1, Workers: 8, Generator: config.DefaultGenerator()},
//		Sink:   dataset.Writer{},
//	}
//	summary, err := o.Run(ctx, constants.SplitTrain, "dataset/train", 1000)
//	var be *batch.BatchError
//	if errors.As(err, &be) {
//		// summary still lists every pair that was written
//	}
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/predman/projsim/internal/config"
	"github.com/predman/projsim/internal/constants"
	"github.com/predman/projsim/internal/dataset"
	"github.com/predman/projsim/internal/logging"
	"github.com/predman/projsim/internal/sanitize"
	"github.com/predman/projsim/internal/simulation"
	"github.com/predman/projsim/internal/store"
)

// Sink publishes one finished instance. dataset.Writer is the production sink.
type Sink interface {
	Write(dir string, index int, ep *simulation.Episode) (dataset.Artifact, error)
}

// Config holds the settings shared by every instance of a batch.
type Config struct {
	Seed      uint64
	Workers   int
	Generator config.GeneratorConfig
}

// Orchestrator runs batches. Catalog, Logger and Events are optional.
type Orchestrator struct {
	Config  Config
	Sink    Sink
	Catalog store.RunCatalog
	Logger  *slog.Logger
	Events  *logging.EventLogger
}

// Summary describes a finished batch.
type Summary struct {
	BatchID   string             `json:"batch_id,omitempty"`
	Split     constants.Split    `json:"split"`
	Dir       string             `json:"dir"`
	Requested int                `json:"requested"`
	Written   int                `json:"written"`
	Failed    []int              `json:"failed,omitempty"`
	Artifacts []dataset.Artifact `json:"artifacts"`
	Elapsed   time.Duration      `json:"elapsed"`
}

// Run generates count instances into dir. Every instance is attempted; if
// any fail, the returned *BatchError names each failed index and the
// Summary still describes the pairs that were written.
func (o *Orchestrator) Run(ctx context.Context, split constants.Split, dir string, count int) (Summary, error) {
	if !split.Valid() {
		return Summary{}, fmt.Errorf("unknown split %q", split)
	}
	if count < 0 {
		return Summary{}, fmt.Errorf("instance count must be non-negative, got %d", count)
	}
	if o.Sink == nil {
		return Summary{}, fmt.Errorf("orchestrator has no sink")
	}
	if err := o.Config.Generator.Validate(); err != nil {
		return Summary{}, fmt.Errorf("invalid generator config: %w", err)
	}

	logger := o.logger(ctx)
	start := time.Now()

	summary := Summary{Split: split, Dir: dir, Requested: count}
	if o.Catalog != nil {
		id, err := o.Catalog.BeginBatch(ctx, store.Batch{
			Split:     split,
			Dir:       dir,
			Seed:      o.Config.Seed,
			Requested: count,
		})
		if err != nil {
			return Summary{}, fmt.Errorf("recording batch: %w", err)
		}
		summary.BatchID = id
	}

	logger.Info("batch started", "split", split, "dir", dir, "count", count, "workers", o.workers())

	var (
		mu        sync.Mutex
		failures  []Failure
		artifacts []dataset.Artifact
	)
	fail := func(index int, err error) {
		o.reportFailure(ctx, split, index, err)
		mu.Lock()
		failures = append(failures, Failure{Index: index, Err: err})
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(o.workers())

	for i := 0; i < count; i++ {
		if ctx.Err() != nil {
			// Stop scheduling; the rest fail with the context error.
			_, err := o.runInstance(ctx, summary.BatchID, split, dir, i)
			fail(i, err)
			continue
		}

		g.Go(func() error {
			art, err := o.runInstance(ctx, summary.BatchID, split, dir, i)
			if err != nil {
				fail(i, err)
				return nil
			}
			mu.Lock()
			artifacts = append(artifacts, art)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(artifacts, func(a, b int) bool { return artifacts[a].Index < artifacts[b].Index })
	sort.Slice(failures, func(a, b int) bool { return failures[a].Index < failures[b].Index })

	summary.Artifacts = artifacts
	summary.Written = len(artifacts)
	for _, f := range failures {
		summary.Failed = append(summary.Failed, f.Index)
	}
	summary.Elapsed = time.Since(start)

	if o.Catalog != nil {
		// The batch row is closed even when ctx was cancelled.
		if err := o.Catalog.FinishBatch(context.WithoutCancel(ctx), summary.BatchID, len(failures)); err != nil {
			logger.Warn("failed to finish batch in catalog", "batch", summary.BatchID, "error", err)
		}
	}

	o.Events.Log(map[string]any{
		"event":   "batch_done",
		"batch":   summary.BatchID,
		"split":   split.String(),
		"written": summary.Written,
		"failed":  len(failures),
		"elapsed": summary.Elapsed.String(),
	})
	logger.Info("batch finished", "split", split, "written", summary.Written, "failed", len(failures), "elapsed", summary.Elapsed)

	if len(failures) > 0 {
		return summary, &BatchError{Split: split, Requested: count, Failures: failures}
	}
	return summary, nil
}

// runInstance simulates and publishes instance i, recording the outcome.
func (o *Orchestrator) runInstance(ctx context.Context, batchID string, split constants.Split, dir string, i int) (art dataset.Artifact, err error) {
	stream := InstanceStream(split, i)
	paramRng, simRng := InstanceRands(o.Config.Seed, stream)
	params := SampleParams(paramRng, o.Config.Generator)

	rec := store.Run{
		BatchID: batchID,
		Index:   i,
		Seed:    o.Config.Seed,
		Stream:  stream,
		Params:  params,
		Status:  store.StatusOK,
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("instance panicked: %v", r)
		}
		if err != nil {
			rec.Status = store.StatusFailed
			rec.Error = sanitize.Error(err)
		}
		o.record(ctx, rec)
	}()

	if err := ctx.Err(); err != nil {
		return dataset.Artifact{}, err
	}

	logger := o.logger(ctx)
	logger.Log(ctx, logging.LevelTrace, "instance params", "split", split, "index", i, "params", params)

	ep, err := simulation.Generate(simRng, params)
	if err != nil {
		return dataset.Artifact{}, fmt.Errorf("simulating: %w", err)
	}
	rec.Label = ep.Label
	rec.Rows = len(ep.Snapshots)
	rec.Truncated = ep.Truncated

	art, err = o.Sink.Write(dir, i, ep)
	if err != nil {
		return dataset.Artifact{}, fmt.Errorf("writing pair: %w", err)
	}

	o.Events.Log(map[string]any{
		"event":     "instance_done",
		"split":     split.String(),
		"index":     i,
		"label":     ep.Label,
		"days":      ep.Days,
		"rows":      len(ep.Snapshots),
		"truncated": ep.Truncated,
	})
	logger.Debug("instance written", "split", split, "index", i, "label", ep.Label, "rows", len(ep.Snapshots))
	return art, nil
}

// reportFailure logs a failed instance to both sinks.
func (o *Orchestrator) reportFailure(ctx context.Context, split constants.Split, index int, err error) {
	o.logger(ctx).Warn("instance failed", "split", split, "index", index, "error", err)
	o.Events.Log(map[string]any{
		"event": "instance_failed",
		"split": split.String(),
		"index": index,
		"error": sanitize.Error(err),
	})
}

func (o *Orchestrator) record(ctx context.Context, rec store.Run) {
	if o.Catalog == nil {
		return
	}
	if err := o.Catalog.RecordRun(context.WithoutCancel(ctx), rec); err != nil {
		o.logger(ctx).Warn("failed to record run", "index", rec.Index, "error", err)
	}
}

func (o *Orchestrator) workers() int {
	if o.Config.Workers < 1 {
		return 1
	}
	return o.Config.Workers
}

func (o *Orchestrator) logger(ctx context.Context) *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logging.FromContext(ctx)
}
