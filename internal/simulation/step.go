package simulation

import (
	"math"
	"math/rand/v2"

	"github.com/predman/projsim/internal/constants"
	"github.com/predman/projsim/internal/taskgraph"
	"github.com/predman/projsim/internal/team"
)

// Step advances s by one day and returns that day's snapshot. It reports
// true once the snapshot shows an empty backlog; s is then Terminated, its
// Label is set, and further calls return the final observation unchanged.
func Step(rng *rand.Rand, s *State, p Params) (Snapshot, bool) {
	snap := s.Observe()
	if s.Phase == Terminated {
		return snap, true
	}
	if snap.RemainingTasks == 0 {
		s.Phase = Terminated
		s.Label = s.Day
		return snap, true
	}

	ApplyTeamChange(rng, s, p)
	ApplyArrival(rng, s, p)

	budget := team.Dampen(rng, s.Team.Capacity(), s.ExternalRisk, s.CompletionCoefficient)
	completed := CompleteTasks(rng, s.Graph, budget)
	ApplyStarvation(s, completed)

	DriftRisk(rng, s, p.ExternalRiskChange)
	s.Day++
	return snap, false
}

// ApplyTeamChange, with probability p.TeamChangeProbability, adds or removes
// between 1 and p.MaxTeamChange members. A change that would empty the team
// is always a join. Returns the signed change applied.
func ApplyTeamChange(rng *rand.Rand, s *State, p Params) int {
	if rng.Float64() >= p.TeamChangeProbability {
		return 0
	}
	change := int(math.RoundToEven(1 + rng.Float64()*float64(p.MaxTeamChange-1)))
	if s.Team.Size() > change && rng.IntN(2) == 0 {
		change = -change
	}
	for i := 0; i < change; i++ {
		s.Team.Join(rng)
	}
	for i := 0; i > change; i-- {
		s.Team.Leave(rng)
	}
	return change
}

// ApplyArrival, with probability p.TaskAddProbability, appends one new task
// to the backlog. Returns the new index, or -1 when nothing arrived.
func ApplyArrival(rng *rand.Rand, s *State, p Params) int {
	if rng.Float64() >= p.TaskAddProbability {
		return -1
	}
	return s.Graph.AppendRandom(rng, p.Generator())
}

// CompleteTasks spends budget greedily: it repeatedly completes a uniformly
// chosen ready task that still fits, until none fits. Choosing at random
// rather than by size models non-optimal human picking. Returns the number
// of tasks completed.
func CompleteTasks(rng *rand.Rand, g *taskgraph.Graph, budget float64) int {
	completed := 0
	for budget > 0 {
		eligible := g.Eligible(budget)
		if len(eligible) == 0 {
			break
		}
		i := eligible[rng.IntN(len(eligible))]
		g.Complete(i)
		budget -= float64(g.Task(i).StoryPoints)
		completed++
	}
	return completed
}

// ApplyStarvation raises the completion coefficient after an idle day and
// resets it after a productive one.
func ApplyStarvation(s *State, completed int) {
	if completed == 0 {
		s.CompletionCoefficient *= constants.StarvationMultiplier
		return
	}
	s.CompletionCoefficient = 1
}

// DriftRisk, with probability 0.2, moves external risk by a uniform delta in
// [-delta, delta], clamped to [0,1] and rounded to two decimals.
func DriftRisk(rng *rand.Rand, s *State, delta float64) {
	if rng.Float64() >= constants.RiskDriftProbability {
		return
	}
	r := s.ExternalRisk + (2*rng.Float64()-1)*delta
	r = math.Min(1, math.Max(0, r))
	scale := math.Pow(10, constants.RiskDecimals)
	s.ExternalRisk = math.Round(r*scale) / scale
}
