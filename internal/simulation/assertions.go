package simulation

import (
	"testing"
)

// AssertDaysConsecutive asserts that snapshot days run 0, 1, 2, ... without gaps.
func AssertDaysConsecutive(t *testing.T, snaps []Snapshot) {
	t.Helper()
	for i, s := range snaps {
		if s.Day != i {
			t.Errorf("AssertDaysConsecutive: snapshot %d has day %d", i, s.Day)
			return
		}
	}
}

// AssertTerminated asserts that a full run ends on an empty backlog observed
// exactly on the label day, and nowhere earlier.
func AssertTerminated(t *testing.T, res *Result) {
	t.Helper()
	if len(res.Snapshots) == 0 {
		t.Fatal("AssertTerminated: no snapshots")
	}
	last := res.Snapshots[len(res.Snapshots)-1]
	if last.RemainingTasks != 0 {
		t.Errorf("AssertTerminated: last snapshot has %d remaining tasks", last.RemainingTasks)
	}
	if last.Day != res.Label {
		t.Errorf("AssertTerminated: last day %d != label %d", last.Day, res.Label)
	}
	for _, s := range res.Snapshots[:len(res.Snapshots)-1] {
		if s.RemainingTasks == 0 {
			t.Errorf("AssertTerminated: backlog already empty on day %d before label %d", s.Day, res.Label)
		}
	}
}

// AssertSnapshotBounds asserts per-snapshot invariants: non-negative counts,
// coefficients and risk in [0,1], and critical path no larger than the
// remaining story points.
func AssertSnapshotBounds(t *testing.T, snaps []Snapshot) {
	t.Helper()
	for _, s := range snaps {
		if s.RemainingTasks < 0 || s.TotalStoryPoints < 0 || s.TeamSize < 0 {
			t.Errorf("AssertSnapshotBounds: day %d has negative counts: %+v", s.Day, s)
		}
		if s.DependencyCoefficient < 0 || s.DependencyCoefficient > 1 {
			t.Errorf("AssertSnapshotBounds: day %d dependency coefficient %.4f", s.Day, s.DependencyCoefficient)
		}
		if s.ExternalRisk < 0 || s.ExternalRisk > 1 {
			t.Errorf("AssertSnapshotBounds: day %d external risk %.4f", s.Day, s.ExternalRisk)
		}
		if s.CriticalPathLength > s.TotalStoryPoints {
			t.Errorf("AssertSnapshotBounds: day %d critical path %d exceeds remaining points %d", s.Day, s.CriticalPathLength, s.TotalStoryPoints)
		}
		if s.RemainingTasks > 0 && s.CriticalPathLength == 0 {
			t.Errorf("AssertSnapshotBounds: day %d has open tasks but zero critical path", s.Day)
		}
	}
}

// AssertEpisode asserts that a (possibly truncated) episode is a prefix of a
// valid run and still carries the full run's label.
func AssertEpisode(t *testing.T, ep *Episode) {
	t.Helper()
	AssertDaysConsecutive(t, ep.Snapshots)
	AssertSnapshotBounds(t, ep.Snapshots)
	if ep.Label != ep.Days-1 {
		t.Errorf("AssertEpisode: label %d but full run had %d days", ep.Label, ep.Days)
	}
	if ep.Truncated {
		if len(ep.Snapshots) < 5 || len(ep.Snapshots) >= ep.Days {
			t.Errorf("AssertEpisode: truncated length %d outside [5,%d)", len(ep.Snapshots), ep.Days)
		}
	} else if len(ep.Snapshots) != ep.Days {
		t.Errorf("AssertEpisode: untruncated length %d != %d days", len(ep.Snapshots), ep.Days)
	}
}
