package simulation

import (
	"github.com/predman/projsim/internal/taskgraph"
	"github.com/predman/projsim/internal/team"
)

// StateSpec is a flat builder for constructing a State by hand in tests,
// bypassing random backlog and team generation.
type StateSpec struct {
	// Tasks lists story points; Deps[i], when present, lists task i's dependencies.
	Tasks      []int
	Deps       map[int][]int
	Completed  []int
	Experience []int
	Hours      []int
	Risk       float64
	Day        int
}

// Build converts the StateSpec into a running State. It panics on invalid
// input.
func (sp StateSpec) Build() *State {
	g := taskgraph.New()
	for i, points := range sp.Tasks {
		if _, err := g.Add(points, sp.Deps[i]); err != nil {
			panic("simulation: StateSpec: " + err.Error())
		}
	}
	for _, i := range sp.Completed {
		g.Complete(i)
	}
	tm, err := team.Fixed(sp.Experience, sp.Hours)
	if err != nil {
		panic("simulation: StateSpec: " + err.Error())
	}
	return &State{
		Graph:                 g,
		Team:                  tm,
		ExternalRisk:          sp.Risk,
		CompletionCoefficient: 1,
		Day:                   sp.Day,
		Phase:                 Running,
	}
}
