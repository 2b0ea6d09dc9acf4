// Package dataset reads and writes the per-instance artifacts of a generated
// dataset: the feature table, its optional Arrow copy and the label sidecar.
package dataset

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/predman/projsim/internal/constants"
)

// TablePath returns <dir>/project_history_<index>.csv.
func TablePath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("%s%d%s", constants.HistoryPrefix, index, constants.TableExt))
}

// ArrowPath returns <dir>/project_history_<index>.arrow.
func ArrowPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("%s%d%s", constants.HistoryPrefix, index, constants.ArrowExt))
}

// LabelPath returns <dir>/project_history_<index>_deadline.txt.
func LabelPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("%s%d%s", constants.HistoryPrefix, index, constants.LabelSuffix))
}

// IsLabelFile reports whether name looks like a label sidecar.
func IsLabelFile(name string) bool {
	return strings.HasSuffix(name, constants.LabelSuffix)
}

// LabelIndex extracts the instance index from a label file name.
func LabelIndex(name string) (int, bool) {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, constants.HistoryPrefix) || !IsLabelFile(base) {
		return 0, false
	}
	mid := strings.TrimSuffix(strings.TrimPrefix(base, constants.HistoryPrefix), constants.LabelSuffix)
	n, err := strconv.Atoi(mid)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
