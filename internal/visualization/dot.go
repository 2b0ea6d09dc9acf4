// Package visualization renders task backlogs in various output formats.
package visualization

import (
	"fmt"
	"strings"

	"github.com/predman/projsim/internal/taskgraph"
)

// Format specifies the output format for graph rendering.
type Format string

const (
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatDOT, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (valid: dot, json)", s)
}

// Task states used for coloring.
const (
	StateCompleted = "completed"
	StateCritical  = "critical"
	StateReady     = "ready"
	StateBlocked   = "blocked"
)

// nodeColors maps task states to DOT colors.
var nodeColors = map[string]string{
	StateCompleted: "lightgray",
	StateCritical:  "tomato",
	StateReady:     "mediumseagreen",
	StateBlocked:   "steelblue",
}

// Node is a task in the rendered graph.
type Node struct {
	ID           int    `json:"id"`
	StoryPoints  int    `json:"story_points"`
	Completed    bool   `json:"completed"`
	State        string `json:"state"`
	Dependencies []int  `json:"dependencies"`
}

// Edge points from a dependency to the task that needs it.
type Edge struct {
	Source   int  `json:"source"`
	Target   int  `json:"target"`
	Critical bool `json:"critical"`
}

// Graph is the JSON form of a backlog.
type Graph struct {
	Nodes         []Node `json:"nodes"`
	Edges         []Edge `json:"edges"`
	CriticalChain []int  `json:"critical_chain"`
	CriticalPath  int    `json:"critical_path"`
	NodeCount     int    `json:"node_count"`
	EdgeCount     int    `json:"edge_count"`
}

// Build classifies every task of g and collects its edges.
func Build(g *taskgraph.Graph) Graph {
	chain := g.CriticalChain()
	onChain := make(map[int]bool, len(chain))
	criticalEdge := make(map[[2]int]bool, len(chain))
	for i, idx := range chain {
		onChain[idx] = true
		if i > 0 {
			criticalEdge[[2]int{chain[i-1], idx}] = true
		}
	}

	out := Graph{
		Nodes:         make([]Node, 0, g.Len()),
		Edges:         []Edge{},
		CriticalChain: chain,
		CriticalPath:  g.CriticalPath(),
	}
	if out.CriticalChain == nil {
		out.CriticalChain = []int{}
	}

	for i := 0; i < g.Len(); i++ {
		t := g.Task(i)
		deps := append([]int{}, t.Dependencies...)
		out.Nodes = append(out.Nodes, Node{
			ID:           i,
			StoryPoints:  t.StoryPoints,
			Completed:    t.Completed,
			State:        taskState(g, i, onChain[i]),
			Dependencies: deps,
		})
		for _, d := range deps {
			out.Edges = append(out.Edges, Edge{Source: d, Target: i, Critical: criticalEdge[[2]int{d, i}]})
		}
	}

	out.NodeCount = len(out.Nodes)
	out.EdgeCount = len(out.Edges)
	return out
}

func taskState(g *taskgraph.Graph, i int, critical bool) string {
	switch {
	case g.Task(i).Completed:
		return StateCompleted
	case critical:
		return StateCritical
	case g.Ready(i):
		return StateReady
	default:
		return StateBlocked
	}
}

// RenderDOT produces a Graphviz DOT representation of the backlog.
// Critical-chain tasks and the edges between them are highlighted.
func RenderDOT(g *taskgraph.Graph) string {
	graph := Build(g)

	var b strings.Builder
	b.WriteString("digraph backlog {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=filled, fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=10];\n")
	fmt.Fprintf(&b, "  label=\"critical path %d sp\";\n\n", graph.CriticalPath)

	for _, n := range graph.Nodes {
		fmt.Fprintf(&b, "  t%d [label=\"#%d\\n%d sp\", fillcolor=%q, tooltip=%q];\n",
			n.ID, n.ID, n.StoryPoints, nodeColors[n.State], n.State)
	}
	b.WriteString("\n")

	for _, e := range graph.Edges {
		if e.Critical {
			fmt.Fprintf(&b, "  t%d -> t%d [color=\"tomato\", penwidth=2];\n", e.Source, e.Target)
			continue
		}
		fmt.Fprintf(&b, "  t%d -> t%d;\n", e.Source, e.Target)
	}

	b.WriteString("}\n")
	return b.String()
}
