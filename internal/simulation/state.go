package simulation

import (
	"fmt"
	"math/rand/v2"

	"github.com/predman/projsim/internal/taskgraph"
	"github.com/predman/projsim/internal/team"
)

// Phase is the lifecycle state of a simulation.
type Phase int

const (
	Running Phase = iota
	Terminated
)

func (p Phase) String() string {
	switch p {
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// State is everything one simulation instance mutates.
type State struct {
	Graph                 *taskgraph.Graph
	Team                  *team.Team
	ExternalRisk          float64
	CompletionCoefficient float64
	Day                   int
	Phase                 Phase

	// Label is the termination day. Only meaningful once Phase is Terminated.
	Label int
}

// NewState builds the day-0 state for p. p must already be valid.
func NewState(rng *rand.Rand, p Params) (*State, error) {
	g, err := taskgraph.InitializeBacklog(rng, p.Generator())
	if err != nil {
		return nil, fmt.Errorf("initializing backlog: %w", err)
	}

	var tm *team.Team
	if p.Team != nil {
		tm, err = team.Fixed(p.Team.Experience, p.Team.Hours)
		if err != nil {
			return nil, fmt.Errorf("building fixed team: %w", err)
		}
	} else {
		tm = team.New(rng, p.TeamSize)
	}

	return &State{
		Graph:                 g,
		Team:                  tm,
		ExternalRisk:          p.ExternalRisk,
		CompletionCoefficient: 1,
		Phase:                 Running,
	}, nil
}

// Snapshot is one day's 9-feature observation. Field order matches the
// feature table columns.
type Snapshot struct {
	Day                   int     `json:"snapshot_day"`
	RemainingTasks        int     `json:"remaining_tasks"`
	TotalStoryPoints      int     `json:"total_story_points"`
	DependencyCoefficient float64 `json:"dependency_coefficient"`
	CriticalPathLength    int     `json:"critical_path_length"`
	TeamSize              int     `json:"team_size"`
	SumExperience         int     `json:"sum_experience"`
	AvailableHours        int     `json:"available_hours"`
	ExternalRisk          float64 `json:"external_risk_probability"`
}

// Observe computes the snapshot of the current state without mutating it.
func (s *State) Observe() Snapshot {
	r := s.Graph.Remaining()
	return Snapshot{
		Day:                   s.Day,
		RemainingTasks:        r.Tasks,
		TotalStoryPoints:      r.StoryPoints,
		DependencyCoefficient: r.DependencyCoefficient(),
		CriticalPathLength:    s.Graph.CriticalPath(),
		TeamSize:              s.Team.Size(),
		SumExperience:         s.Team.SumExperience(),
		AvailableHours:        s.Team.AvailableHours(),
		ExternalRisk:          s.ExternalRisk,
	}
}
