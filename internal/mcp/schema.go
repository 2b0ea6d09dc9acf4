package mcp

import (
	"github.com/predman/projsim/internal/report"
	"github.com/predman/projsim/internal/simulation"
)

// SimulateInput defines the input for projsim_simulate tool.
type SimulateInput struct {
	Seed     uint64             `json:"seed,omitempty" jsonschema:"Root seed of the random source (default 0)"`
	Stream   uint64             `json:"stream,omitempty" jsonschema:"PCG stream; together with seed it replays a catalog run exactly"`
	Params   *simulation.Params `json:"params,omitempty" jsonschema:"Full hyperparameter set (default: the built-in defaults)"`
	Truncate bool               `json:"truncate,omitempty" jsonschema:"Apply the truncation policy to the returned snapshots"`
}

// SimulateOutput defines the output for projsim_simulate tool.
type SimulateOutput struct {
	Label     int                   `json:"label" jsonschema:"Day on which the backlog first emptied"`
	Days      int                   `json:"days" jsonschema:"Length of the full run in snapshots"`
	Rows      int                   `json:"rows" jsonschema:"Number of snapshots returned"`
	Truncated bool                  `json:"truncated" jsonschema:"Whether the snapshots were cut short"`
	Params    simulation.Params     `json:"params" jsonschema:"Hyperparameters actually used"`
	Snapshots []simulation.Snapshot `json:"snapshots" jsonschema:"One 9-feature observation per day"`
}

// GenerateInput defines the input for projsim_generate tool.
type GenerateInput struct {
	Split   string  `json:"split" jsonschema:"Dataset split: 'train' or 'test'"`
	Dir     string  `json:"dir,omitempty" jsonschema:"Output directory (default: the configured directory of the split)"`
	Count   int     `json:"count,omitempty" jsonschema:"Number of instances (default: the configured size of the split)"`
	Seed    *uint64 `json:"seed,omitempty" jsonschema:"Root seed (default: the configured seed)"`
	Workers int     `json:"workers,omitempty" jsonschema:"Parallel workers (default: the configured worker count)"`
	Arrow   bool    `json:"arrow,omitempty" jsonschema:"Also write Arrow IPC copies of every feature table"`
}

// GenerateOutput defines the output for projsim_generate tool.
type GenerateOutput struct {
	BatchID   string `json:"batch_id,omitempty" jsonschema:"Catalog ID of the batch when a run catalog is configured"`
	Dir       string `json:"dir" jsonschema:"Directory the pairs were written to"`
	Requested int    `json:"requested" jsonschema:"Instances requested"`
	Written   int    `json:"written" jsonschema:"Pairs written"`
	Failed    []int  `json:"failed,omitempty" jsonschema:"Indices of failed instances"`
	Message   string `json:"message" jsonschema:"Human-readable summary"`
}

// StatsInput defines the input for projsim_stats tool.
type StatsInput struct {
	Split string `json:"split,omitempty" jsonschema:"Split whose configured directory is scanned (default: train)"`
	Dir   string `json:"dir,omitempty" jsonschema:"Directory to scan; overrides split"`
}

// StatsOutput defines the output for projsim_stats tool.
type StatsOutput struct {
	Stats  report.Stats `json:"stats" jsonschema:"Label distribution of the directory"`
	Report string       `json:"report" jsonschema:"Formatted text report"`
}

// GraphInput defines the input for projsim_graph tool.
type GraphInput struct {
	Seed   uint64             `json:"seed,omitempty" jsonschema:"Seed of the generated backlog"`
	Params *simulation.Params `json:"params,omitempty" jsonschema:"Full hyperparameter set (default: the built-in defaults)"`
	Days   int                `json:"days,omitempty" jsonschema:"Simulate this many days before rendering (default 0)"`
	Format string             `json:"format,omitempty" jsonschema:"Output format: 'dot' or 'json' (default: json)"`
}

// GraphOutput defines the output for projsim_graph tool.
type GraphOutput struct {
	Format       string `json:"format" jsonschema:"Format of the graph field"`
	Graph        any    `json:"graph" jsonschema:"DOT text or JSON graph"`
	Day          int    `json:"day" jsonschema:"Simulated day the backlog was captured on"`
	NodeCount    int    `json:"node_count" jsonschema:"Number of tasks"`
	EdgeCount    int    `json:"edge_count" jsonschema:"Number of dependency edges"`
	CriticalPath int    `json:"critical_path" jsonschema:"Remaining critical path in story points"`
}
