package dataset

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/predman/projsim/internal/constants"
	"github.com/predman/projsim/internal/simulation"
)

// Schema is the Arrow schema of the feature table. Float columns are the
// two ratios; every other column is a count.
var Schema = func() *arrow.Schema {
	fields := make([]arrow.Field, len(constants.Columns))
	for i, name := range constants.Columns {
		typ := arrow.DataType(arrow.PrimitiveTypes.Int64)
		if i == 3 || i == 8 {
			typ = arrow.PrimitiveTypes.Float64
		}
		fields[i] = arrow.Field{Name: name, Type: typ}
	}
	return arrow.NewSchema(fields, nil)
}()

// NewRecord builds one Arrow record holding every snapshot. The caller must
// Release it.
func NewRecord(mem memory.Allocator, snaps []simulation.Snapshot) arrow.Record {
	b := array.NewRecordBuilder(mem, Schema)
	defer b.Release()

	ints := func(i int) *array.Int64Builder { return b.Field(i).(*array.Int64Builder) }
	floats := func(i int) *array.Float64Builder { return b.Field(i).(*array.Float64Builder) }

	for _, s := range snaps {
		ints(0).Append(int64(s.Day))
		ints(1).Append(int64(s.RemainingTasks))
		ints(2).Append(int64(s.TotalStoryPoints))
		floats(3).Append(s.DependencyCoefficient)
		ints(4).Append(int64(s.CriticalPathLength))
		ints(5).Append(int64(s.TeamSize))
		ints(6).Append(int64(s.SumExperience))
		ints(7).Append(int64(s.AvailableHours))
		floats(8).Append(s.ExternalRisk)
	}
	return b.NewRecord()
}

// WriteArrow writes the snapshots as an Arrow IPC file with a single record
// batch. The file footer needs a seekable destination.
func WriteArrow(w io.WriteSeeker, snaps []simulation.Snapshot) error {
	mem := memory.NewGoAllocator()
	rec := NewRecord(mem, snaps)
	defer rec.Release()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(Schema), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("creating arrow writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("writing arrow record: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("closing arrow writer: %w", err)
	}
	return nil
}
