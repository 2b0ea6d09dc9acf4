package simulation

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// ErrDayLimit is returned when a run exceeds Params.MaxDays without finishing.
var ErrDayLimit = errors.New("simulation exceeded day limit")

// Result is a complete, untruncated simulation.
type Result struct {
	Snapshots []Snapshot
	Label     int
	Params    Params
}

// Run validates p and steps a fresh state until termination.
func Run(rng *rand.Rand, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s, err := NewState(rng, p)
	if err != nil {
		return nil, err
	}

	limit := p.maxDays()
	var snaps []Snapshot
	for {
		snap, done := Step(rng, s, p)
		snaps = append(snaps, snap)
		if done {
			break
		}
		if s.Day > limit {
			return nil, fmt.Errorf("%w: %d days, %d tasks still open", ErrDayLimit, limit, snap.RemainingTasks)
		}
	}

	return &Result{
		Snapshots: snaps,
		Label:     s.Label,
		Params:    p,
	}, nil
}

// NewRand returns an independent PCG-backed generator for (seed, stream).
// Distinct streams under one seed never share a sequence.
func NewRand(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

// Advance validates p, builds a fresh state and steps it for at most days
// days, stopping early if the backlog empties. Used to inspect a backlog
// part way through a run.
func Advance(rng *rand.Rand, p Params, days int) (*State, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if days < 0 {
		return nil, fmt.Errorf("%w: days must be non-negative, got %d", ErrInvalidParams, days)
	}
	s, err := NewState(rng, p)
	if err != nil {
		return nil, err
	}
	for i := 0; i < days && s.Phase == Running; i++ {
		Step(rng, s, p)
	}
	return s, nil
}
