// Package report summarizes the labels of a generated dataset directory.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/predman/projsim/internal/dataset"
	"github.com/predman/projsim/internal/logging"
)

// TopN is the number of entries listed at each end of the distribution.
const TopN = 5

// Entry is one label file and its value.
type Entry struct {
	File  string `json:"file"`
	Value int    `json:"value"`
}

// Stats describes the label distribution of a directory.
type Stats struct {
	Dir      string  `json:"dir"`
	Count    int     `json:"count"`
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	Max      Entry   `json:"max"`
	Smallest []Entry `json:"smallest"`
	Largest  []Entry `json:"largest"`
	Skipped  int     `json:"skipped"`
}

// Scan reads every label file in dir. Files whose content is not an integer
// are skipped with a warning. A nil logger uses the one carried by ctx.
func Scan(ctx context.Context, dir string, logger *slog.Logger) (*Stats, error) {
	if logger == nil {
		logger = logging.FromContext(ctx)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading dataset directory: %w", err)
	}

	stats := &Stats{Dir: dir}
	var values []Entry
	for _, de := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, ok := dataset.LabelIndex(de.Name()); de.IsDir() || !ok {
			continue
		}

		path := filepath.Join(dir, de.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("skipping unreadable label file", "file", path, "error", err)
			stats.Skipped++
			continue
		}
		v, err := dataset.ParseLabel(raw)
		if err != nil {
			logger.Warn("skipping label file: content is not a valid integer", "file", path, "content", strings.TrimSpace(string(raw)))
			stats.Skipped++
			continue
		}
		values = append(values, Entry{File: path, Value: v})
	}

	stats.compute(values)
	return stats, nil
}

// fromEntries builds Stats over an in-memory set of labels.
func fromEntries(entries []Entry) *Stats {
	s := &Stats{}
	s.compute(append([]Entry(nil), entries...))
	return s
}

// compute fills the aggregates. entries is reordered.
func (s *Stats) compute(entries []Entry) {
	s.Count = len(entries)
	if s.Count == 0 {
		return
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Value != entries[j].Value {
			return entries[i].Value < entries[j].Value
		}
		return entries[i].File < entries[j].File
	})

	sum := 0
	for _, e := range entries {
		sum += e.Value
	}
	s.Mean = float64(sum) / float64(s.Count)

	mid := s.Count / 2
	if s.Count%2 == 1 {
		s.Median = float64(entries[mid].Value)
	} else {
		s.Median = float64(entries[mid-1].Value+entries[mid].Value) / 2
	}

	n := min(TopN, s.Count)
	s.Smallest = append([]Entry(nil), entries[:n]...)
	s.Largest = make([]Entry, 0, n)
	for i := s.Count - 1; i >= s.Count-n; i-- {
		s.Largest = append(s.Largest, entries[i])
	}
	s.Max = s.Largest[0]
}

// Format writes the text report.
func (s *Stats) Format(w io.Writer) error {
	rule := strings.Repeat("=", 50)
	sep := strings.Repeat("-", 50)

	var b strings.Builder
	if s.Count == 0 {
		b.WriteString("No valid label files found.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	fmt.Fprintf(&b, "%s\nDATASET STATISTICS\n%s\n", rule, rule)
	fmt.Fprintf(&b, "Total Files Processed : %d\n", s.Count)
	if s.Skipped > 0 {
		fmt.Fprintf(&b, "Files Skipped         : %d\n", s.Skipped)
	}
	fmt.Fprintf(&b, "%s\n", sep)
	fmt.Fprintf(&b, "Maximum:\n  File: %s\n  Value: %d\n", s.Max.File, s.Max.Value)
	fmt.Fprintf(&b, "Average: %.2f\n", s.Mean)
	fmt.Fprintf(&b, "Median : %g\n", s.Median)
	fmt.Fprintf(&b, "%s\n", sep)

	b.WriteString("FIVE SMALLEST:\n")
	for _, e := range s.Smallest {
		fmt.Fprintf(&b, "  File: %s -> Value: %d\n", e.File, e.Value)
	}
	fmt.Fprintf(&b, "%s\n", sep)
	b.WriteString("FIVE BIGGEST:\n")
	for _, e := range s.Largest {
		fmt.Fprintf(&b, "  File: %s -> Value: %d\n", e.File, e.Value)
	}
	fmt.Fprintf(&b, "%s\n", rule)

	_, err := io.WriteString(w, b.String())
	return err
}

// JSON writes the stats as indented JSON.
func (s *Stats) JSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
