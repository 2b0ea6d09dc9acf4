package manifest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/predman/projsim/internal/constants"
	"github.com/predman/projsim/internal/simulation"
	"github.com/predman/projsim/internal/store"
)

func newCatalogWithBatch(t *testing.T) (*store.MemoryCatalog, string) {
	t.Helper()
	ctx := context.Background()
	c := store.NewMemoryCatalog()

	id, err := c.BeginBatch(ctx, store.Batch{Split: constants.SplitTest, Dir: "dataset/test", Seed: 3, Requested: 3})
	if err != nil {
		t.Fatal(err)
	}
	for i := range 3 {
		r := store.Run{BatchID: id, Index: i, Seed: 3, Stream: uint64(i), Params: simulation.DefaultParams(), Label: 10 + i, Rows: 5, Status: store.StatusOK}
		if i == 1 {
			r.Status, r.Error = store.StatusFailed, "simulating: day limit"
		}
		if err := c.RecordRun(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.FinishBatch(ctx, id, 1); err != nil {
		t.Fatal(err)
	}
	return c, id
}

func TestWriteRead_RoundTrip(t *testing.T) {
	c, id := newCatalogWithBatch(t)
	m, err := Build(context.Background(), c, id)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if m.Failed() != 1 {
		t.Errorf("Failed() = %d, want 1", m.Failed())
	}

	path := filepath.Join(t.TempDir(), "out", "manifest.gz")
	header, err := Write(path, m)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if header.BatchID != id || header.Split != "test" || header.RunCount != 3 || header.Failed != 1 {
		t.Errorf("header = %+v", header)
	}
	if !strings.HasPrefix(header.Checksum, "sha256:") {
		t.Errorf("checksum = %q", header.Checksum)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	verified, err := Verify(path)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if diff := cmp.Diff(header, verified); diff != "" {
		t.Errorf("Verify() header mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_UnknownBatch(t *testing.T) {
	c, _ := newCatalogWithBatch(t)
	if _, err := Build(context.Background(), c, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Build() error = %v, want ErrNotFound", err)
	}
}

func TestVerify_DetectsCorruption(t *testing.T) {
	c, id := newCatalogWithBatch(t)
	m, err := Build(context.Background(), c, id)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "manifest.gz")
	if _, err := Write(path, m); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)-1] ^= 0xFF
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Verify(path); err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Errorf("Verify() error = %v, want checksum mismatch", err)
	}
	if _, err := Read(path); err == nil {
		t.Error("Read() should reject a corrupted file")
	}
}

func TestRead_BadFiles(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"no header line", `{"version":1}`, "reading header line"},
		{"bad header", "not json\n", "parsing header"},
		{"future version", `{"version":99}` + "\n", "unsupported manifest version"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_"))
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := Read(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Read() error = %v, want %q", err, tt.wantErr)
			}
		})
	}

	if _, err := Read(filepath.Join(dir, "missing")); err == nil {
		t.Error("Read() of a missing file should fail")
	}
}
