// Package store defines the RunCatalog interface for recording dataset
// generation batches and the outcome of every simulated instance.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/predman/projsim/internal/constants"
	"github.com/predman/projsim/internal/simulation"
)

// ErrNotFound is returned when a requested batch does not exist.
var ErrNotFound = errors.New("not found")

// RunStatus is the outcome of one instance.
type RunStatus string

const (
	StatusOK     RunStatus = "ok"     // Pair written
	StatusFailed RunStatus = "failed" // Simulation or write failed
)

// Batch is one generation run over a split.
type Batch struct {
	ID         string          `json:"id"`
	Split      constants.Split `json:"split"`
	Dir        string          `json:"dir"`
	Seed       uint64          `json:"seed"`
	Requested  int             `json:"requested"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Failed     int             `json:"failed"`
}

// Run records one instance of a batch. Seed and Stream replay it exactly.
type Run struct {
	BatchID   string            `json:"batch_id"`
	Index     int               `json:"index"`
	Seed      uint64            `json:"seed"`
	Stream    uint64            `json:"stream"`
	Params    simulation.Params `json:"params"`
	Label     int               `json:"label"`
	Rows      int               `json:"rows"`
	Truncated bool              `json:"truncated"`
	Status    RunStatus         `json:"status"`
	Error     string            `json:"error,omitempty"`
}

// RunCatalog persists batch manifests. Implementations must be safe for
// concurrent use since batch workers record runs in parallel.
type RunCatalog interface {
	// BeginBatch records a new batch and returns its assigned ID.
	BeginBatch(ctx context.Context, b Batch) (string, error)
	RecordRun(ctx context.Context, r Run) error
	FinishBatch(ctx context.Context, batchID string, failed int) error

	// Runs returns the runs of a batch ordered by index.
	Runs(ctx context.Context, batchID string) ([]Run, error)

	// Batch returns one batch by ID, or ErrNotFound.
	Batch(ctx context.Context, batchID string) (*Batch, error)

	// LatestBatch returns the most recently started batch for split.
	// Returns ErrNotFound when none exists.
	LatestBatch(ctx context.Context, split constants.Split) (*Batch, error)

	Close() error
}
