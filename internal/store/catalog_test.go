package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/predman/projsim/internal/constants"
	"github.com/predman/projsim/internal/simulation"
)

var (
	_ RunCatalog = (*SQLiteCatalog)(nil)
	_ RunCatalog = (*MemoryCatalog)(nil)
)

// catalogs returns a fresh instance of every RunCatalog implementation.
func catalogs(t *testing.T) map[string]RunCatalog {
	t.Helper()
	sqlite, err := OpenSQLiteCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("OpenSQLiteCatalog() error = %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]RunCatalog{
		"sqlite": sqlite,
		"memory": NewMemoryCatalog(),
	}
}

func sampleRun(batchID string, index int) Run {
	p := simulation.DefaultParams()
	p.TeamSize = 3 + index
	return Run{
		BatchID:   batchID,
		Index:     index,
		Seed:      1<<63 + 5, // high bit exercises the int64 round trip
		Stream:    uint64(index),
		Params:    p,
		Label:     40 + index,
		Rows:      41 + index,
		Truncated: index%2 == 1,
		Status:    StatusOK,
	}
}

func TestCatalog_BatchLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, c := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			id, err := c.BeginBatch(ctx, Batch{Split: constants.SplitTrain, Dir: "out/train", Seed: 7, Requested: 3})
			if err != nil {
				t.Fatalf("BeginBatch() error = %v", err)
			}
			if id == "" {
				t.Fatal("BeginBatch() returned empty id")
			}

			want := []Run{sampleRun(id, 0), sampleRun(id, 1)}
			failed := Run{BatchID: id, Index: 2, Seed: 7, Stream: 2, Params: simulation.DefaultParams(), Status: StatusFailed, Error: "boom"}
			want = append(want, failed)

			// Record out of order to check ordering on read.
			for _, r := range []Run{want[2], want[0], want[1]} {
				if err := c.RecordRun(ctx, r); err != nil {
					t.Fatalf("RecordRun(%d) error = %v", r.Index, err)
				}
			}
			if err := c.FinishBatch(ctx, id, 1); err != nil {
				t.Fatalf("FinishBatch() error = %v", err)
			}

			got, err := c.Runs(ctx, id)
			if err != nil {
				t.Fatalf("Runs() error = %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Runs() mismatch (-want +got):\n%s", diff)
			}

			b, err := c.LatestBatch(ctx, constants.SplitTrain)
			if err != nil {
				t.Fatalf("LatestBatch() error = %v", err)
			}
			if b.ID != id || b.Seed != 7 || b.Requested != 3 || b.Dir != "out/train" {
				t.Errorf("LatestBatch() = %+v", b)
			}
			if b.FinishedAt == nil || b.Failed != 1 {
				t.Errorf("batch not finished correctly: finished=%v failed=%d", b.FinishedAt, b.Failed)
			}

			byID, err := c.Batch(ctx, id)
			if err != nil {
				t.Fatalf("Batch() error = %v", err)
			}
			if diff := cmp.Diff(b, byID); diff != "" {
				t.Errorf("Batch() and LatestBatch() disagree (-latest +byID):\n%s", diff)
			}
		})
	}
}

func TestCatalog_RecordRunReplaces(t *testing.T) {
	ctx := context.Background()
	for name, c := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			id, _ := c.BeginBatch(ctx, Batch{Split: constants.SplitTest, Dir: "d", Requested: 1})

			first := sampleRun(id, 0)
			first.Status = StatusFailed
			first.Error = "transient"
			second := sampleRun(id, 0)

			if err := c.RecordRun(ctx, first); err != nil {
				t.Fatal(err)
			}
			if err := c.RecordRun(ctx, second); err != nil {
				t.Fatal(err)
			}

			got, err := c.Runs(ctx, id)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 1 || got[0].Status != StatusOK || got[0].Error != "" {
				t.Errorf("Runs() = %+v, want single ok run", got)
			}
		})
	}
}

func TestCatalog_LatestBatchPerSplit(t *testing.T) {
	ctx := context.Background()
	for name, c := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := c.LatestBatch(ctx, constants.SplitTrain); !errors.Is(err, ErrNotFound) {
				t.Fatalf("LatestBatch() on empty catalog error = %v, want ErrNotFound", err)
			}

			first, _ := c.BeginBatch(ctx, Batch{Split: constants.SplitTrain, Dir: "a"})
			testID, _ := c.BeginBatch(ctx, Batch{Split: constants.SplitTest, Dir: "b"})
			second, _ := c.BeginBatch(ctx, Batch{Split: constants.SplitTrain, Dir: "c"})

			b, err := c.LatestBatch(ctx, constants.SplitTrain)
			if err != nil {
				t.Fatal(err)
			}
			if b.ID != second || b.ID == first {
				t.Errorf("latest train batch = %s, want %s", b.ID, second)
			}

			b, err = c.LatestBatch(ctx, constants.SplitTest)
			if err != nil {
				t.Fatal(err)
			}
			if b.ID != testID || b.FinishedAt != nil {
				t.Errorf("latest test batch = %+v, want unfinished %s", b, testID)
			}
		})
	}
}

func TestCatalog_UnknownBatch(t *testing.T) {
	ctx := context.Background()
	for name, c := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := c.Runs(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Runs() error = %v, want ErrNotFound", err)
			}
			if _, err := c.Batch(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Batch() error = %v, want ErrNotFound", err)
			}
			if err := c.FinishBatch(ctx, "missing", 0); !errors.Is(err, ErrNotFound) {
				t.Errorf("FinishBatch() error = %v, want ErrNotFound", err)
			}
			if err := c.RecordRun(ctx, sampleRun("missing", 0)); err == nil {
				t.Error("RecordRun() for unknown batch should fail")
			}
		})
	}
}

func TestCatalog_ConcurrentRecords(t *testing.T) {
	ctx := context.Background()
	for name, c := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			id, _ := c.BeginBatch(ctx, Batch{Split: constants.SplitTrain, Dir: "d", Requested: 32})

			var wg sync.WaitGroup
			errs := make(chan error, 32)
			for i := 0; i < 32; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					if err := c.RecordRun(ctx, sampleRun(id, i)); err != nil {
						errs <- fmt.Errorf("run %d: %w", i, err)
					}
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				t.Error(err)
			}

			got, err := c.Runs(ctx, id)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 32 {
				t.Fatalf("got %d runs, want 32", len(got))
			}
			for i, r := range got {
				if r.Index != i {
					t.Errorf("runs[%d].Index = %d", i, r.Index)
				}
			}
		})
	}
}

func TestSQLiteCatalog_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "catalog.db")

	c, err := OpenSQLiteCatalog(path)
	if err != nil {
		t.Fatalf("OpenSQLiteCatalog() error = %v", err)
	}
	if c.Path() != path {
		t.Errorf("Path() = %q, want %q", c.Path(), path)
	}
	id, _ := c.BeginBatch(ctx, Batch{Split: constants.SplitTrain, Dir: "d"})
	if err := c.RecordRun(ctx, sampleRun(id, 0)); err != nil {
		t.Fatal(err)
	}
	c.Close()

	c, err = OpenSQLiteCatalog(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer c.Close()

	runs, err := c.Runs(ctx, id)
	if err != nil || len(runs) != 1 {
		t.Fatalf("Runs() after reopen = %v, %v", runs, err)
	}
	if err := c.Check(ctx); err != nil {
		t.Errorf("Check() error = %v", err)
	}
}

func TestInitSchema_RejectsNewerVersion(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")

	c, err := OpenSQLiteCatalog(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.db.ExecContext(ctx, `INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`, SchemaVersion+1); err != nil {
		t.Fatal(err)
	}
	c.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if err := InitSchema(ctx, db); err == nil {
		t.Error("InitSchema() should reject a newer schema version")
	}
}
