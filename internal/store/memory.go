package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/predman/projsim/internal/constants"
)

// MemoryCatalog implements RunCatalog for testing and dry runs.
type MemoryCatalog struct {
	mu      sync.RWMutex
	batches map[string]Batch
	order   []string
	runs    map[string][]Run
}

// NewMemoryCatalog creates an empty in-memory catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		batches: make(map[string]Batch),
		runs:    make(map[string][]Run),
	}
}

// BeginBatch records b under a fresh ID.
func (c *MemoryCatalog) BeginBatch(ctx context.Context, b Batch) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b.ID = uuid.NewString()
	if b.StartedAt.IsZero() {
		b.StartedAt = time.Now().UTC()
	}
	c.batches[b.ID] = b
	c.order = append(c.order, b.ID)
	return b.ID, nil
}

// RecordRun appends r to its batch, replacing an earlier record of the same index.
func (c *MemoryCatalog) RecordRun(ctx context.Context, r Run) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.batches[r.BatchID]; !ok {
		return fmt.Errorf("batch %s: %w", r.BatchID, ErrNotFound)
	}
	runs := c.runs[r.BatchID]
	for i := range runs {
		if runs[i].Index == r.Index {
			runs[i] = r
			return nil
		}
	}
	c.runs[r.BatchID] = append(runs, r)
	return nil
}

// FinishBatch stamps the batch as finished.
func (c *MemoryCatalog) FinishBatch(ctx context.Context, batchID string, failed int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.batches[batchID]
	if !ok {
		return fmt.Errorf("batch %s: %w", batchID, ErrNotFound)
	}
	now := time.Now().UTC()
	b.FinishedAt = &now
	b.Failed = failed
	c.batches[batchID] = b
	return nil
}

// Runs returns a copy of the batch's runs ordered by index.
func (c *MemoryCatalog) Runs(ctx context.Context, batchID string) ([]Run, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.batches[batchID]; !ok {
		return nil, fmt.Errorf("batch %s: %w", batchID, ErrNotFound)
	}
	out := append([]Run(nil), c.runs[batchID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// Batch returns a copy of the batch with batchID.
func (c *MemoryCatalog) Batch(ctx context.Context, batchID string) (*Batch, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	b, ok := c.batches[batchID]
	if !ok {
		return nil, fmt.Errorf("batch %s: %w", batchID, ErrNotFound)
	}
	return &b, nil
}

// LatestBatch returns the last batch begun for split.
func (c *MemoryCatalog) LatestBatch(ctx context.Context, split constants.Split) (*Batch, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := len(c.order) - 1; i >= 0; i-- {
		b := c.batches[c.order[i]]
		if b.Split == split {
			return &b, nil
		}
	}
	return nil, fmt.Errorf("no %s batch: %w", split, ErrNotFound)
}

// Close is a no-op.
func (c *MemoryCatalog) Close() error {
	return nil
}
