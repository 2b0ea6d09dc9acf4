package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/predman/projsim/internal/simulation"
)

// Artifact lists the files published for one instance.
type Artifact struct {
	Index int    `json:"index"`
	Table string `json:"table"`
	Arrow string `json:"arrow,omitempty"`
	Label string `json:"label"`
	Rows  int    `json:"rows"`
}

// Writer publishes instance artifacts into a directory.
type Writer struct {
	// Arrow additionally writes an Arrow IPC copy of each feature table.
	Arrow bool
}

// Write publishes the feature table (and Arrow copy) first and the label
// last, each atomically. A label on disk therefore always has a complete
// table next to it. When any step fails, the files this call already
// published are removed so a failed instance leaves nothing behind.
func (w Writer) Write(dir string, index int, ep *simulation.Episode) (_ Artifact, retErr error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Artifact{}, fmt.Errorf("creating dataset directory: %w", err)
	}

	art := Artifact{
		Index: index,
		Table: TablePath(dir, index),
		Label: LabelPath(dir, index),
		Rows:  len(ep.Snapshots),
	}

	var published []string
	defer func() {
		if retErr == nil {
			return
		}
		for _, p := range published {
			if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				retErr = errors.Join(retErr, fmt.Errorf("removing %s: %w", p, err))
			}
		}
	}()

	if err := writeAtomic(art.Table, func(f *os.File) error {
		return WriteTable(f, ep.Snapshots)
	}); err != nil {
		return Artifact{}, fmt.Errorf("writing %s: %w", art.Table, err)
	}
	published = append(published, art.Table)

	if w.Arrow {
		art.Arrow = ArrowPath(dir, index)
		if err := writeAtomic(art.Arrow, func(f *os.File) error {
			return WriteArrow(f, ep.Snapshots)
		}); err != nil {
			return Artifact{}, fmt.Errorf("writing %s: %w", art.Arrow, err)
		}
		published = append(published, art.Arrow)
	}

	if err := writeAtomic(art.Label, func(f *os.File) error {
		return WriteLabel(f, ep.Label)
	}); err != nil {
		return Artifact{}, fmt.Errorf("writing %s: %w", art.Label, err)
	}
	return art, nil
}

// ReadInstance loads a published table and its label.
func ReadInstance(dir string, index int) ([]simulation.Snapshot, int, error) {
	f, err := os.Open(TablePath(dir, index))
	if err != nil {
		return nil, 0, fmt.Errorf("opening feature table: %w", err)
	}
	defer f.Close()

	snaps, err := ReadTable(f)
	if err != nil {
		return nil, 0, fmt.Errorf("parsing feature table: %w", err)
	}

	raw, err := os.ReadFile(LabelPath(dir, index))
	if err != nil {
		return nil, 0, fmt.Errorf("reading label: %w", err)
	}
	label, err := ParseLabel(raw)
	if err != nil {
		return nil, 0, fmt.Errorf("parsing label: %w", err)
	}
	return snaps, label, nil
}
