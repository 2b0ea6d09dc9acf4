package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/predman/projsim/internal/constants"
	"github.com/predman/projsim/internal/simulation"
)

// ErrBadHeader is returned when a feature table does not start with the
// expected column names.
var ErrBadHeader = errors.New("unexpected feature table header")

// Record renders one snapshot as a table row.
func Record(s simulation.Snapshot) []string {
	return []string{
		strconv.Itoa(s.Day),
		strconv.Itoa(s.RemainingTasks),
		strconv.Itoa(s.TotalStoryPoints),
		formatFloat(s.DependencyCoefficient),
		strconv.Itoa(s.CriticalPathLength),
		strconv.Itoa(s.TeamSize),
		strconv.Itoa(s.SumExperience),
		strconv.Itoa(s.AvailableHours),
		formatFloat(s.ExternalRisk),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteTable writes the header and one row per snapshot.
func WriteTable(w io.Writer, snaps []simulation.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(constants.Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, s := range snaps {
		if err := cw.Write(Record(s)); err != nil {
			return fmt.Errorf("writing day %d: %w", s.Day, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTable parses a feature table written by WriteTable.
func ReadTable(r io.Reader) ([]simulation.Snapshot, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(constants.Columns)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	for i, col := range constants.Columns {
		if strings.TrimSpace(header[i]) != col {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrBadHeader, i, header[i], col)
		}
	}

	var out []simulation.Snapshot
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading line %d: %w", line, err)
		}
		s, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func parseRecord(rec []string) (simulation.Snapshot, error) {
	var s simulation.Snapshot
	ints := []struct {
		idx int
		dst *int
	}{
		{0, &s.Day},
		{1, &s.RemainingTasks},
		{2, &s.TotalStoryPoints},
		{4, &s.CriticalPathLength},
		{5, &s.TeamSize},
		{6, &s.SumExperience},
		{7, &s.AvailableHours},
	}
	for _, f := range ints {
		v, err := strconv.Atoi(rec[f.idx])
		if err != nil {
			return s, fmt.Errorf("%s: %w", constants.Columns[f.idx], err)
		}
		*f.dst = v
	}

	var err error
	if s.DependencyCoefficient, err = strconv.ParseFloat(rec[3], 64); err != nil {
		return s, fmt.Errorf("%s: %w", constants.Columns[3], err)
	}
	if s.ExternalRisk, err = strconv.ParseFloat(rec[8], 64); err != nil {
		return s, fmt.Errorf("%s: %w", constants.Columns[8], err)
	}
	return s, nil
}

// WriteLabel writes the label as a bare decimal integer.
func WriteLabel(w io.Writer, label int) error {
	_, err := io.WriteString(w, strconv.Itoa(label))
	return err
}

// ParseLabel parses label file content, tolerating surrounding whitespace.
func ParseLabel(content []byte) (int, error) {
	return strconv.Atoi(strings.TrimSpace(string(content)))
}
