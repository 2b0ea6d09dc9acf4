package batch_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/predman/projsim/internal/batch"
	"github.com/predman/projsim/internal/config"
	"github.com/predman/projsim/internal/constants"
	"github.com/predman/projsim/internal/dataset"
	"github.com/predman/projsim/internal/logging"
	"github.com/predman/projsim/internal/simulation"
	"github.com/predman/projsim/internal/store"
)

// smallGenerator keeps instances short enough for unit tests.
func smallGenerator() config.GeneratorConfig {
	g := config.DefaultGenerator()
	g.TeamSize = config.IntRange{Min: 3, Max: 6}
	g.InitialTasks = config.IntRange{Min: 5, Max: 20}
	return g
}

func newOrchestrator(sink batch.Sink, catalog store.RunCatalog, workers int) *batch.Orchestrator {
	return &batch.Orchestrator{
		Config:  batch.Config{Seed: 42, Workers: workers, Generator: smallGenerator()},
		Sink:    sink,
		Catalog: catalog,
		Logger:  logging.Discard(),
	}
}

// faultySink wraps dataset.Writer and fails or panics on chosen indices.
type faultySink struct {
	dataset.Writer
	fail  map[int]bool
	panic map[int]bool
}

func (s faultySink) Write(dir string, index int, ep *simulation.Episode) (dataset.Artifact, error) {
	if s.panic[index] {
		panic(fmt.Sprintf("sink exploded on %d", index))
	}
	if s.fail[index] {
		return dataset.Artifact{}, fmt.Errorf("disk full writing %d", index)
	}
	return s.Writer.Write(dir, index, ep)
}

func TestRun_WritesEveryPair(t *testing.T) {
	dir := t.TempDir()
	catalog := store.NewMemoryCatalog()
	o := newOrchestrator(dataset.Writer{}, catalog, 4)

	summary, err := o.Run(context.Background(), constants.SplitTrain, dir, 8)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Written != 8 || len(summary.Failed) != 0 {
		t.Fatalf("summary = %d written, %v failed; want 8, none", summary.Written, summary.Failed)
	}

	for i, art := range summary.Artifacts {
		if art.Index != i {
			t.Errorf("artifacts[%d].Index = %d, artifacts not sorted", i, art.Index)
		}
		snaps, label, err := dataset.ReadInstance(dir, i)
		if err != nil {
			t.Fatalf("ReadInstance(%d) error = %v", i, err)
		}
		if len(snaps) != art.Rows {
			t.Errorf("instance %d: %d rows on disk, artifact says %d", i, len(snaps), art.Rows)
		}
		if label < 1 {
			t.Errorf("instance %d: label %d, want positive", i, label)
		}
	}

	runs, err := catalog.Runs(context.Background(), summary.BatchID)
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(runs) != 8 {
		t.Fatalf("catalog has %d runs, want 8", len(runs))
	}
	for _, r := range runs {
		if r.Status != store.StatusOK {
			t.Errorf("run %d status = %s, want ok", r.Index, r.Status)
		}
	}

	b, err := catalog.LatestBatch(context.Background(), constants.SplitTrain)
	if err != nil {
		t.Fatal(err)
	}
	if b.FinishedAt == nil || b.Failed != 0 || b.Requested != 8 {
		t.Errorf("batch record = %+v", b)
	}
}

func TestRun_LabelPublishFailure(t *testing.T) {
	const (
		count  = 5
		failed = 3
	)
	dir := t.TempDir()
	// A non-empty directory at one label path makes that instance's final
	// rename fail after its table and arrow copy were already published.
	blocker := dataset.LabelPath(dir, failed)
	if err := os.MkdirAll(filepath.Join(blocker, "occupied"), 0755); err != nil {
		t.Fatal(err)
	}
	catalog := store.NewMemoryCatalog()
	o := newOrchestrator(dataset.Writer{Arrow: true}, catalog, 2)

	summary, err := o.Run(context.Background(), constants.SplitTrain, dir, count)

	var be *batch.BatchError
	if !errors.As(err, &be) {
		t.Fatalf("Run() error = %v, want *BatchError", err)
	}
	if diff := cmp.Diff([]int{failed}, be.Indices()); diff != "" {
		t.Errorf("failed indices mismatch (-want +got):\n%s", diff)
	}
	if summary.Written != count-1 {
		t.Errorf("Written = %d, want %d", summary.Written, count-1)
	}

	regularFiles := func(pattern string) []string {
		matches, _ := filepath.Glob(filepath.Join(dir, pattern))
		var files []string
		for _, m := range matches {
			if fi, err := os.Stat(m); err == nil && fi.Mode().IsRegular() {
				files = append(files, filepath.Base(m))
			}
		}
		return files
	}
	if tables := regularFiles("*" + constants.TableExt); len(tables) != count-1 {
		t.Errorf("found %d feature tables, want %d: %v", len(tables), count-1, tables)
	}
	if arrows := regularFiles("*" + constants.ArrowExt); len(arrows) != count-1 {
		t.Errorf("found %d arrow files, want %d: %v", len(arrows), count-1, arrows)
	}
	if labels := regularFiles("*" + constants.LabelSuffix); len(labels) != count-1 {
		t.Errorf("found %d label files, want %d: %v", len(labels), count-1, labels)
	}
	for _, p := range []string{dataset.TablePath(dir, failed), dataset.ArrowPath(dir, failed)} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s left behind by the failed instance (stat err = %v)", filepath.Base(p), err)
		}
	}
}

func TestRun_FailureInjection(t *testing.T) {
	const count = 6
	dir := t.TempDir()
	catalog := store.NewMemoryCatalog()
	sink := faultySink{fail: map[int]bool{2: true}}
	o := newOrchestrator(sink, catalog, 3)

	summary, err := o.Run(context.Background(), constants.SplitTest, dir, count)

	var be *batch.BatchError
	if !errors.As(err, &be) {
		t.Fatalf("Run() error = %v, want *BatchError", err)
	}
	if diff := cmp.Diff([]int{2}, be.Indices()); diff != "" {
		t.Errorf("failed indices mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(be.Error(), "1 of 6") || !strings.Contains(be.Error(), "disk full") {
		t.Errorf("BatchError message = %q", be.Error())
	}
	if summary.Written != count-1 {
		t.Errorf("Written = %d, want %d", summary.Written, count-1)
	}

	labels, _ := filepath.Glob(filepath.Join(dir, "*"+constants.LabelSuffix))
	if len(labels) != count-1 {
		t.Errorf("found %d label files, want %d", len(labels), count-1)
	}
	if _, err := os.Stat(dataset.LabelPath(dir, 2)); !os.IsNotExist(err) {
		t.Errorf("label for failed instance exists (stat err = %v)", err)
	}

	runs, _ := catalog.Runs(context.Background(), summary.BatchID)
	if len(runs) != count {
		t.Fatalf("catalog has %d runs, want %d", len(runs), count)
	}
	if runs[2].Status != store.StatusFailed || !strings.Contains(runs[2].Error, "disk full") {
		t.Errorf("run 2 = %+v, want failed with error text", runs[2])
	}
}

func TestRun_PanicIsInstanceFailure(t *testing.T) {
	dir := t.TempDir()
	sink := faultySink{panic: map[int]bool{1: true, 3: true}}
	o := newOrchestrator(sink, nil, 2)

	summary, err := o.Run(context.Background(), constants.SplitTrain, dir, 5)

	var be *batch.BatchError
	if !errors.As(err, &be) {
		t.Fatalf("Run() error = %v, want *BatchError", err)
	}
	if diff := cmp.Diff([]int{1, 3}, summary.Failed); diff != "" {
		t.Errorf("failed indices mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(be.Failures[0].Err.Error(), "sink exploded on 1") {
		t.Errorf("panic not captured: %v", be.Failures[0].Err)
	}
	if summary.Written != 3 {
		t.Errorf("Written = %d, want 3", summary.Written)
	}
}

func TestRun_IndependentOfWorkerCount(t *testing.T) {
	read := func(workers int) map[string]string {
		dir := t.TempDir()
		o := newOrchestrator(dataset.Writer{}, nil, workers)
		if _, err := o.Run(context.Background(), constants.SplitTrain, dir, 6); err != nil {
			t.Fatalf("Run(workers=%d) error = %v", workers, err)
		}
		files := map[string]string{}
		entries, _ := os.ReadDir(dir)
		for _, e := range entries {
			data, err := os.ReadFile(filepath.Join(dir, e.Name()))
			if err != nil {
				t.Fatal(err)
			}
			files[e.Name()] = string(data)
		}
		return files
	}

	if diff := cmp.Diff(read(1), read(5)); diff != "" {
		t.Errorf("output depends on worker count (-serial +parallel):\n%s", diff)
	}
}

func TestRun_SplitsUseDistinctStreams(t *testing.T) {
	trainDir, testDir := t.TempDir(), t.TempDir()
	o := newOrchestrator(dataset.Writer{}, nil, 2)
	ctx := context.Background()

	if _, err := o.Run(ctx, constants.SplitTrain, trainDir, 3); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Run(ctx, constants.SplitTest, testDir, 3); err != nil {
		t.Fatal(err)
	}

	identical := 0
	for i := 0; i < 3; i++ {
		a, _ := os.ReadFile(dataset.TablePath(trainDir, i))
		b, _ := os.ReadFile(dataset.TablePath(testDir, i))
		if string(a) == string(b) {
			identical++
		}
	}
	if identical == 3 {
		t.Error("train and test splits produced identical instances")
	}
}

func TestRun_ReplayFromCatalog(t *testing.T) {
	dir := t.TempDir()
	catalog := store.NewMemoryCatalog()
	o := newOrchestrator(dataset.Writer{}, catalog, 2)
	ctx := context.Background()

	summary, err := o.Run(ctx, constants.SplitTrain, dir, 4)
	if err != nil {
		t.Fatal(err)
	}
	runs, err := catalog.Runs(ctx, summary.BatchID)
	if err != nil {
		t.Fatal(err)
	}

	for _, r := range runs {
		ep, err := simulation.Generate(simulation.NewRand(r.Seed, r.Stream), r.Params)
		if err != nil {
			t.Fatalf("replay %d: %v", r.Index, err)
		}
		snaps, label, err := dataset.ReadInstance(dir, r.Index)
		if err != nil {
			t.Fatal(err)
		}
		if ep.Label != label || ep.Label != r.Label {
			t.Errorf("replay %d: label %d, disk %d, catalog %d", r.Index, ep.Label, label, r.Label)
		}
		if diff := cmp.Diff(snaps, ep.Snapshots); diff != "" {
			t.Errorf("replay %d differs from disk (-disk +replay):\n%s", r.Index, diff)
		}
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	catalog := store.NewMemoryCatalog()
	o := newOrchestrator(dataset.Writer{}, catalog, 2)
	summary, err := o.Run(ctx, constants.SplitTrain, t.TempDir(), 4)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if summary.Written != 0 || len(summary.Failed) != 4 {
		t.Errorf("summary = %d written, %v failed", summary.Written, summary.Failed)
	}
	runs, _ := catalog.Runs(context.Background(), summary.BatchID)
	if len(runs) != 4 {
		t.Errorf("catalog recorded %d runs, want 4", len(runs))
	}
}

func TestRun_Events(t *testing.T) {
	dir := t.TempDir()
	events := logging.NewEventLogger(dir, "debug")
	o := newOrchestrator(faultySink{fail: map[int]bool{0: true}}, nil, 1)
	o.Events = events

	_, _ = o.Run(context.Background(), constants.SplitTrain, dir, 2)
	events.Close()

	data, err := os.ReadFile(filepath.Join(dir, constants.EventsFile))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"instance_failed"`, `"instance_done"`, `"batch_done"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("events.jsonl missing %s:\n%s", want, data)
		}
	}
}

func TestRun_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		o     *batch.Orchestrator
		split constants.Split
		count int
	}{
		{"unknown split", newOrchestrator(dataset.Writer{}, nil, 1), "validation", 1},
		{"negative count", newOrchestrator(dataset.Writer{}, nil, 1), constants.SplitTrain, -1},
		{"no sink", newOrchestrator(nil, nil, 1), constants.SplitTrain, 1},
		{"bad generator", func() *batch.Orchestrator {
			o := newOrchestrator(dataset.Writer{}, nil, 1)
			o.Config.Generator.SPMin = 0
			return o
		}(), constants.SplitTrain, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.o.Run(ctx, tt.split, t.TempDir(), tt.count)
			if err == nil {
				t.Fatal("expected error")
			}
			var be *batch.BatchError
			if errors.As(err, &be) {
				t.Errorf("input error reported as BatchError: %v", err)
			}
		})
	}
}

func TestSampleParams(t *testing.T) {
	g := config.DefaultGenerator()
	for i := 0; i < 500; i++ {
		rng, _ := batch.InstanceRands(7, uint64(i))
		p := batch.SampleParams(rng, g)

		if p.TeamSize < 5 || p.TeamSize > 15 {
			t.Fatalf("TeamSize %d outside [5,15]", p.TeamSize)
		}
		if p.InitialTasks < 15 || p.InitialTasks > 150 {
			t.Fatalf("InitialTasks %d outside [15,150]", p.InitialTasks)
		}
		if p.ExternalRisk < 0.01 || p.ExternalRisk > 0.1 {
			t.Fatalf("ExternalRisk %f outside [0.01,0.1]", p.ExternalRisk)
		}
		if scaled := p.ExternalRisk * 1e4; math.Abs(scaled-math.Round(scaled)) > 1e-6 {
			t.Fatalf("ExternalRisk %v not rounded to 4 decimals", p.ExternalRisk)
		}
		if scaled := p.ExternalRiskChange * 100; math.Abs(scaled-math.Round(scaled)) > 1e-6 {
			t.Fatalf("ExternalRiskChange %v not rounded to 2 decimals", p.ExternalRiskChange)
		}
		if p.TeamChangeProbability < 1e-5 || p.TeamChangeProbability > 1e-3 {
			t.Fatalf("TeamChangeProbability %g out of range", p.TeamChangeProbability)
		}
		if err := p.Validate(); err != nil {
			t.Fatalf("sampled params invalid: %v", err)
		}
	}
}

func TestSampleParams_FixedValues(t *testing.T) {
	rng, _ := batch.InstanceRands(1, 1)
	p := batch.SampleParams(rng, config.DefaultGenerator())

	if p.SPMin != 1 || p.SPMax != 10 || p.MaxDependencies != 5 || p.MaxTeamChange != 4 {
		t.Errorf("fixed values not carried: %+v", p)
	}
	if p.TruncationProbability != 0.95 || p.DependencyProbability != 0.3 {
		t.Errorf("fixed probabilities not carried: %+v", p)
	}
}

func TestInstanceStream(t *testing.T) {
	seen := map[uint64]bool{}
	for _, split := range []constants.Split{constants.SplitTrain, constants.SplitTest} {
		for i := 0; i < 100; i++ {
			s := batch.InstanceStream(split, i)
			if seen[s] {
				t.Fatalf("stream %d reused (split %s, index %d)", s, split, i)
			}
			seen[s] = true
		}
	}
}
