package taskgraph

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// ErrInvalidConfig is returned by GeneratorConfig.Validate.
var ErrInvalidConfig = errors.New("invalid generator config")

// GeneratorConfig controls random backlog generation.
type GeneratorConfig struct {
	// Count is the number of tasks created by InitializeBacklog.
	Count int `json:"count" yaml:"count"`

	// SPMin and SPMax bound story points, inclusive.
	SPMin int `json:"sp_min" yaml:"sp_min"`
	SPMax int `json:"sp_max" yaml:"sp_max"`

	// DependencyProbability is the chance a task (other than the first) gets dependencies.
	DependencyProbability float64 `json:"dependency_probability" yaml:"dependency_probability"`

	// MaxDependencies caps the dependency count; the effective cap for task i is min(MaxDependencies, i).
	MaxDependencies int `json:"max_dependencies" yaml:"max_dependencies"`
}

// Validate checks the config before any generation work starts.
func (c GeneratorConfig) Validate() error {
	if c.Count < 0 {
		return fmt.Errorf("%w: count must be non-negative, got %d", ErrInvalidConfig, c.Count)
	}
	if c.SPMin < 1 {
		return fmt.Errorf("%w: sp_min must be at least 1, got %d", ErrInvalidConfig, c.SPMin)
	}
	if c.SPMax < c.SPMin {
		return fmt.Errorf("%w: sp_max (%d) is below sp_min (%d)", ErrInvalidConfig, c.SPMax, c.SPMin)
	}
	if c.DependencyProbability < 0 || c.DependencyProbability > 1 {
		return fmt.Errorf("%w: dependency_probability must be between 0 and 1, got %f", ErrInvalidConfig, c.DependencyProbability)
	}
	if c.DependencyProbability > 0 && c.MaxDependencies < 1 {
		return fmt.Errorf("%w: max_dependencies must be at least 1 when dependencies are enabled, got %d", ErrInvalidConfig, c.MaxDependencies)
	}
	return nil
}

// InitializeBacklog builds a fresh graph of cfg.Count random tasks.
func InitializeBacklog(rng *rand.Rand, cfg GeneratorConfig) (*Graph, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Graph{tasks: make([]Task, 0, cfg.Count)}
	for i := 0; i < cfg.Count; i++ {
		g.AppendRandom(rng, cfg)
	}
	return g, nil
}

// AppendRandom adds one random task using the current length as its index
// and returns that index. cfg.Count is ignored. cfg must already be valid.
func (g *Graph) AppendRandom(rng *rand.Rand, cfg GeneratorConfig) int {
	idx := len(g.tasks)
	sp := cfg.SPMin + rng.IntN(cfg.SPMax-cfg.SPMin+1)

	var deps []int
	if idx > 0 && rng.Float64() < cfg.DependencyProbability {
		k := 1 + rng.IntN(min(cfg.MaxDependencies, idx))
		deps = sampleDistinct(rng, idx, k)
	}
	g.tasks = append(g.tasks, Task{StoryPoints: sp, Dependencies: deps})
	return idx
}

// sampleDistinct draws k distinct values from [0, n) using Floyd's algorithm.
// The result is in selection order.
func sampleDistinct(rng *rand.Rand, n, k int) []int {
	chosen := make(map[int]bool, k)
	out := make([]int, 0, k)
	for j := n - k; j < n; j++ {
		v := rng.IntN(j + 1)
		if chosen[v] {
			v = j
		}
		chosen[v] = true
		out = append(out, v)
	}
	return out
}
