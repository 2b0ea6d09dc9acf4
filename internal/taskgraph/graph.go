// Package taskgraph holds the project backlog as an append-only arena of
// tasks with integer-index dependencies.
//
// A task may only depend on tasks with a lower index, so the graph is acyclic
// by construction and ascending index order is already a topological order.
// Nothing in this package checks for cycles at runtime.
package taskgraph

import (
	"errors"
	"fmt"
)

// ErrBadDependency is returned when an explicit dependency would break the
// lower-index invariant.
var ErrBadDependency = errors.New("invalid dependency")

// Task is one backlog item. Its identity is its index in the Graph.
type Task struct {
	StoryPoints  int   `json:"story_points"`
	Completed    bool  `json:"completed"`
	Dependencies []int `json:"dependencies,omitempty"`
}

// Graph is the append-only task arena.
type Graph struct {
	tasks []Task
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{}
}

// Len returns the number of tasks ever added, completed or not.
func (g *Graph) Len() int {
	return len(g.tasks)
}

// Task returns a copy of the task at index i.
func (g *Graph) Task(i int) Task {
	t := g.tasks[i]
	t.Dependencies = append([]int(nil), t.Dependencies...)
	return t
}

// Add appends a task with explicit dependencies and returns its index.
// Every dependency must reference an earlier task exactly once.
func (g *Graph) Add(storyPoints int, deps []int) (int, error) {
	idx := len(g.tasks)
	if storyPoints <= 0 {
		return 0, fmt.Errorf("task %d: story points must be positive, got %d", idx, storyPoints)
	}
	seen := make(map[int]bool, len(deps))
	for _, d := range deps {
		if d < 0 || d >= idx {
			return 0, fmt.Errorf("task %d: %w: %d is not an earlier task", idx, ErrBadDependency, d)
		}
		if seen[d] {
			return 0, fmt.Errorf("task %d: %w: %d listed twice", idx, ErrBadDependency, d)
		}
		seen[d] = true
	}
	g.append(storyPoints, deps)
	return idx, nil
}

func (g *Graph) append(storyPoints int, deps []int) int {
	var owned []int
	if len(deps) > 0 {
		owned = append([]int(nil), deps...)
	}
	g.tasks = append(g.tasks, Task{StoryPoints: storyPoints, Dependencies: owned})
	return len(g.tasks) - 1
}

// Complete marks task i as done. Completing a task twice is a no-op.
func (g *Graph) Complete(i int) {
	g.tasks[i].Completed = true
}

// Ready reports whether task i is incomplete and all of its dependencies are done.
func (g *Graph) Ready(i int) bool {
	t := &g.tasks[i]
	if t.Completed {
		return false
	}
	for _, d := range t.Dependencies {
		if !g.tasks[d].Completed {
			return false
		}
	}
	return true
}

// Eligible returns the indices of ready tasks whose story points fit in budget.
func (g *Graph) Eligible(budget float64) []int {
	var out []int
	for i := range g.tasks {
		if float64(g.tasks[i].StoryPoints) <= budget && g.Ready(i) {
			out = append(out, i)
		}
	}
	return out
}

// Remaining summarizes the incomplete part of the backlog.
type Remaining struct {
	Tasks       int
	StoryPoints int
	// WithDependencies counts incomplete tasks that declare at least one dependency.
	WithDependencies int
}

// DependencyCoefficient is the fraction of remaining tasks that declare a
// dependency, or 0 when nothing remains.
func (r Remaining) DependencyCoefficient() float64 {
	if r.Tasks == 0 {
		return 0
	}
	return float64(r.WithDependencies) / float64(r.Tasks)
}

// Remaining scans the backlog once and returns the incomplete-task summary.
func (g *Graph) Remaining() Remaining {
	var r Remaining
	for i := range g.tasks {
		t := &g.tasks[i]
		if t.Completed {
			continue
		}
		r.Tasks++
		r.StoryPoints += t.StoryPoints
		if len(t.Dependencies) > 0 {
			r.WithDependencies++
		}
	}
	return r
}
