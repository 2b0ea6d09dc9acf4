package simulation

import (
	"errors"
	"fmt"

	"github.com/predman/projsim/internal/constants"
	"github.com/predman/projsim/internal/taskgraph"
)

// ErrInvalidParams is returned by Params.Validate.
var ErrInvalidParams = errors.New("invalid simulation parameters")

// TeamSpec pins the initial team instead of sampling it.
type TeamSpec struct {
	Experience []int `json:"experience" yaml:"experience"`
	Hours      []int `json:"hours" yaml:"hours"`
}

// Params are the hyperparameters of one simulation instance.
type Params struct {
	TeamSize              int     `json:"team_size" yaml:"team_size"`
	InitialTasks          int     `json:"initial_tasks" yaml:"initial_tasks"`
	ExternalRisk          float64 `json:"external_risk" yaml:"external_risk"`
	ExternalRiskChange    float64 `json:"external_risk_change" yaml:"external_risk_change"`
	TeamChangeProbability float64 `json:"team_change_probability" yaml:"team_change_probability"`
	MaxTeamChange         int     `json:"max_team_change" yaml:"max_team_change"`
	TaskAddProbability    float64 `json:"task_add_probability" yaml:"task_add_probability"`
	TruncationProbability float64 `json:"truncation_probability" yaml:"truncation_probability"`
	SPMin                 int     `json:"sp_min" yaml:"sp_min"`
	SPMax                 int     `json:"sp_max" yaml:"sp_max"`
	DependencyProbability float64 `json:"dependency_probability" yaml:"dependency_probability"`
	MaxDependencies       int     `json:"max_dependencies" yaml:"max_dependencies"`

	// MaxDays bounds the run; 0 means constants.DefaultMaxDays.
	MaxDays int `json:"max_days,omitempty" yaml:"max_days,omitempty"`

	// Team, when set, replaces random sampling of the initial team.
	// TeamSize is ignored in that case.
	Team *TeamSpec `json:"team,omitempty" yaml:"team,omitempty"`
}

// DefaultParams mirrors the midpoint of the default generator ranges.
func DefaultParams() Params {
	return Params{
		TeamSize:              5,
		InitialTasks:          50,
		ExternalRisk:          0.05,
		ExternalRiskChange:    0.1,
		TeamChangeProbability: 0.0005,
		MaxTeamChange:         4,
		TaskAddProbability:    0.001,
		TruncationProbability: 0.3,
		SPMin:                 1,
		SPMax:                 10,
		DependencyProbability: 0.3,
		MaxDependencies:       3,
	}
}

// Generator returns the backlog generator settings implied by p.
func (p Params) Generator() taskgraph.GeneratorConfig {
	return taskgraph.GeneratorConfig{
		Count:                 p.InitialTasks,
		SPMin:                 p.SPMin,
		SPMax:                 p.SPMax,
		DependencyProbability: p.DependencyProbability,
		MaxDependencies:       p.MaxDependencies,
	}
}

func (p Params) teamSize() int {
	if p.Team != nil {
		return len(p.Team.Experience)
	}
	return p.TeamSize
}

func (p Params) maxDays() int {
	if p.MaxDays > 0 {
		return p.MaxDays
	}
	return constants.DefaultMaxDays
}

// Validate rejects parameter sets that could never run or never terminate.
func (p Params) Validate() error {
	if err := p.Generator().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if p.Team == nil && p.TeamSize < 0 {
		return fmt.Errorf("%w: team_size must be non-negative, got %d", ErrInvalidParams, p.TeamSize)
	}
	if p.Team != nil && len(p.Team.Experience) != len(p.Team.Hours) {
		return fmt.Errorf("%w: team has %d experience values but %d hour values", ErrInvalidParams, len(p.Team.Experience), len(p.Team.Hours))
	}
	if p.InitialTasks > 0 && p.teamSize() == 0 {
		return fmt.Errorf("%w: a team of zero can never finish %d tasks", ErrInvalidParams, p.InitialTasks)
	}

	probs := []struct {
		name string
		v    float64
	}{
		{"external_risk", p.ExternalRisk},
		{"team_change_probability", p.TeamChangeProbability},
		{"task_add_probability", p.TaskAddProbability},
		{"truncation_probability", p.TruncationProbability},
	}
	for _, pr := range probs {
		if pr.v < 0 || pr.v > 1 {
			return fmt.Errorf("%w: %s must be between 0 and 1, got %f", ErrInvalidParams, pr.name, pr.v)
		}
	}

	if p.ExternalRiskChange < 0 {
		return fmt.Errorf("%w: external_risk_change must be non-negative, got %f", ErrInvalidParams, p.ExternalRiskChange)
	}
	if p.TeamChangeProbability > 0 && p.MaxTeamChange < 1 {
		return fmt.Errorf("%w: max_team_change must be at least 1 when team changes are enabled, got %d", ErrInvalidParams, p.MaxTeamChange)
	}
	if p.MaxDays < 0 {
		return fmt.Errorf("%w: max_days must be non-negative, got %d", ErrInvalidParams, p.MaxDays)
	}
	return nil
}
