package mcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"

	"github.com/predman/projsim/internal/batch"
	"github.com/predman/projsim/internal/constants"
	"github.com/predman/projsim/internal/dataset"
	"github.com/predman/projsim/internal/pathutil"
	"github.com/predman/projsim/internal/ratelimit"
	"github.com/predman/projsim/internal/report"
	"github.com/predman/projsim/internal/simulation"
	"github.com/predman/projsim/internal/visualization"
)

const (
	// maxGenerateCount bounds a single projsim_generate call.
	maxGenerateCount = 10000

	// maxGraphDays bounds how far projsim_graph advances a backlog.
	maxGraphDays = 10000

	configURI = "projsim://config"
)

// registerTools registers all projsim MCP tools and resources with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolSimulate,
		Description: "Run one project simulation and return its daily snapshots and completion-day label",
	}, s.handleSimulate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolGenerate,
		Description: "Generate a dataset split of (feature table, label) pairs with randomized hyperparameters",
	}, s.handleGenerate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolStats,
		Description: "Summarize the label distribution of a dataset directory (mean, median, max, extremes)",
	}, s.handleStats)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolGraph,
		Description: "Render a generated backlog in DOT (Graphviz) or JSON with the critical chain highlighted",
	}, s.handleGraph)

	s.server.AddResource(&sdk.Resource{
		URI:         configURI,
		Name:        "projsim-config",
		Description: "Effective dataset and generator configuration used by projsim_generate.",
		MIMEType:    "application/yaml",
	}, s.handleConfigResource)
}

// handleConfigResource returns the effective configuration as YAML.
func (s *Server) handleConfigResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	data, err := yaml.Marshal(s.settings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      configURI,
				MIMEType: "application/yaml",
				Text:     string(data),
			},
		},
	}, nil
}

// handleSimulate runs a single instance. With the seed and stream of a
// catalog row it reproduces that row's table exactly.
func (s *Server) handleSimulate(ctx context.Context, req *sdk.CallToolRequest, args SimulateInput) (_ *sdk.CallToolResult, _ SimulateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolSimulate, start, retErr, sanitizeToolParams(map[string]any{
			"seed":     args.Seed,
			"stream":   args.Stream,
			"params":   args.Params,
			"truncate": args.Truncate,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolSimulate); err != nil {
		return nil, SimulateOutput{}, err
	}

	params := simulation.DefaultParams()
	if args.Params != nil {
		params = *args.Params
	}
	if err := params.Validate(); err != nil {
		return nil, SimulateOutput{}, err
	}

	rng := simulation.NewRand(args.Seed, args.Stream)
	if args.Truncate {
		ep, err := simulation.Generate(rng, params)
		if err != nil {
			return nil, SimulateOutput{}, fmt.Errorf("simulation failed: %w", err)
		}
		return nil, SimulateOutput{
			Label:     ep.Label,
			Days:      ep.Days,
			Rows:      len(ep.Snapshots),
			Truncated: ep.Truncated,
			Params:    ep.Params,
			Snapshots: ep.Snapshots,
		}, nil
	}

	res, err := simulation.Run(rng, params)
	if err != nil {
		return nil, SimulateOutput{}, fmt.Errorf("simulation failed: %w", err)
	}
	return nil, SimulateOutput{
		Label:     res.Label,
		Days:      len(res.Snapshots),
		Rows:      len(res.Snapshots),
		Params:    res.Params,
		Snapshots: res.Snapshots,
	}, nil
}

// handleGenerate writes one split. Instance failures are reported in the
// output rather than failing the call, so the caller still learns which
// pairs were written.
func (s *Server) handleGenerate(ctx context.Context, req *sdk.CallToolRequest, args GenerateInput) (_ *sdk.CallToolResult, _ GenerateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolGenerate, start, retErr, sanitizeToolParams(map[string]any{
			"split":   args.Split,
			"dir":     args.Dir,
			"count":   args.Count,
			"workers": args.Workers,
			"arrow":   args.Arrow,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolGenerate); err != nil {
		return nil, GenerateOutput{}, err
	}

	split := constants.Split(args.Split)
	if !split.Valid() {
		return nil, GenerateOutput{}, fmt.Errorf("'split' must be %q or %q, got %q", constants.SplitTrain, constants.SplitTest, args.Split)
	}

	ds := s.settings.Dataset
	dir, err := s.resolveDir(args.Dir, ds.Dir(split))
	if err != nil {
		return nil, GenerateOutput{}, err
	}

	count := args.Count
	if count == 0 {
		count = ds.Size(split)
	}
	if count < 1 || count > maxGenerateCount {
		return nil, GenerateOutput{}, fmt.Errorf("'count' must be between 1 and %d, got %d", maxGenerateCount, count)
	}

	seed := ds.Seed
	if args.Seed != nil {
		seed = *args.Seed
	}
	workers := args.Workers
	if workers <= 0 {
		workers = ds.Workers
	}

	orch := &batch.Orchestrator{
		Config: batch.Config{
			Seed:      seed,
			Workers:   workers,
			Generator: s.settings.Generator,
		},
		Sink:    dataset.Writer{Arrow: args.Arrow || ds.Arrow},
		Catalog: s.catalog,
		Logger:  s.logger,
	}

	summary, err := orch.Run(ctx, split, dir, count)
	var batchErr *batch.BatchError
	if err != nil && !errors.As(err, &batchErr) {
		return nil, GenerateOutput{}, fmt.Errorf("generation failed: %w", err)
	}

	out := GenerateOutput{
		BatchID:   summary.BatchID,
		Dir:       pathutil.RedactPath(summary.Dir),
		Requested: summary.Requested,
		Written:   summary.Written,
		Failed:    summary.Failed,
	}
	if batchErr != nil {
		out.Message = fmt.Sprintf("Wrote %d of %d %s pairs; failed indices: %s",
			summary.Written, summary.Requested, split, joinInts(batchErr.Indices()))
	} else {
		out.Message = fmt.Sprintf("Wrote %d %s pairs in %s", summary.Written, split, summary.Elapsed.Round(time.Millisecond))
	}
	return nil, out, nil
}

// handleStats scans a directory of label files.
func (s *Server) handleStats(ctx context.Context, req *sdk.CallToolRequest, args StatsInput) (_ *sdk.CallToolResult, _ StatsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolStats, start, retErr, sanitizeToolParams(map[string]any{
			"split": args.Split,
			"dir":   args.Dir,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolStats); err != nil {
		return nil, StatsOutput{}, err
	}

	split := constants.SplitTrain
	if args.Split != "" {
		split = constants.Split(args.Split)
		if !split.Valid() {
			return nil, StatsOutput{}, fmt.Errorf("'split' must be %q or %q, got %q", constants.SplitTrain, constants.SplitTest, args.Split)
		}
	}

	dir, err := s.resolveDir(args.Dir, s.settings.Dataset.Dir(split))
	if err != nil {
		return nil, StatsOutput{}, err
	}

	stats, err := report.Scan(ctx, dir, s.logger)
	if err != nil {
		return nil, StatsOutput{}, err
	}
	var buf bytes.Buffer
	if err := stats.Format(&buf); err != nil {
		return nil, StatsOutput{}, fmt.Errorf("formatting report: %w", err)
	}
	stats.Dir = pathutil.RedactPath(stats.Dir)

	return nil, StatsOutput{
		Stats:  *stats,
		Report: buf.String(),
	}, nil
}

// handleGraph renders the backlog of a seeded instance after a number of days.
func (s *Server) handleGraph(ctx context.Context, req *sdk.CallToolRequest, args GraphInput) (_ *sdk.CallToolResult, _ GraphOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolGraph, start, retErr, sanitizeToolParams(map[string]any{
			"seed":   args.Seed,
			"params": args.Params,
			"days":   args.Days,
			"format": args.Format,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolGraph); err != nil {
		return nil, GraphOutput{}, err
	}

	format := visualization.FormatJSON
	if args.Format != "" {
		f, err := visualization.ParseFormat(args.Format)
		if err != nil {
			return nil, GraphOutput{}, err
		}
		format = f
	}
	if args.Days > maxGraphDays {
		return nil, GraphOutput{}, fmt.Errorf("'days' must be at most %d, got %d", maxGraphDays, args.Days)
	}

	params := simulation.DefaultParams()
	if args.Params != nil {
		params = *args.Params
	}

	state, err := simulation.Advance(simulation.NewRand(args.Seed, 0), params, args.Days)
	if err != nil {
		return nil, GraphOutput{}, err
	}

	g := visualization.Build(state.Graph)
	out := GraphOutput{
		Format:       string(format),
		Day:          state.Day,
		NodeCount:    g.NodeCount,
		EdgeCount:    g.EdgeCount,
		CriticalPath: g.CriticalPath,
	}
	switch format {
	case visualization.FormatDOT:
		out.Graph = visualization.RenderDOT(state.Graph)
	default:
		out.Graph = g
	}
	return nil, out, nil
}

// resolveDir validates an explicit directory, or the configured fallback,
// against the server's allowed roots.
func (s *Server) resolveDir(explicit, fallback string) (string, error) {
	dir := explicit
	if dir == "" {
		dir = fallback
	}
	resolved, err := pathutil.Resolve(dir, s.roots)
	if err != nil {
		return "", fmt.Errorf("invalid 'dir': %w", err)
	}
	return resolved, nil
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	return strings.Join(parts, ", ")
}
