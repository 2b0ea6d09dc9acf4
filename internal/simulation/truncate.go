package simulation

import (
	"math/rand/v2"

	"github.com/predman/projsim/internal/constants"
)

// Truncate, with the given probability, cuts a sequence longer than five
// snapshots down to a uniformly chosen length in [5, len). The input slice is
// not modified; a shorter slice header over it is returned.
func Truncate(rng *rand.Rand, snaps []Snapshot, probability float64) []Snapshot {
	n := len(snaps)
	if n <= constants.MinTruncatedLength {
		return snaps
	}
	if rng.Float64() >= probability {
		return snaps
	}
	keep := constants.MinTruncatedLength + rng.IntN(n-constants.MinTruncatedLength)
	return snaps[:keep:keep]
}

// Episode is one dataset instance: the retained observation window and the
// label of the full run it came from.
type Episode struct {
	Snapshots []Snapshot
	// Label is the final day of the full run, never the retained length.
	Label int
	// Days is the length of the full run before truncation.
	Days      int
	Truncated bool
	Params    Params
}

// Generate runs one simulation and applies the truncation policy.
func Generate(rng *rand.Rand, p Params) (*Episode, error) {
	res, err := Run(rng, p)
	if err != nil {
		return nil, err
	}
	kept := Truncate(rng, res.Snapshots, p.TruncationProbability)
	return &Episode{
		Snapshots: kept,
		Label:     res.Label,
		Days:      len(res.Snapshots),
		Truncated: len(kept) < len(res.Snapshots),
		Params:    p,
	}, nil
}
