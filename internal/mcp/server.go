// Package mcp provides an MCP (Model Context Protocol) server for projsim.
//
// The server exposes four tools: projsim_simulate runs a single instance,
// projsim_generate writes a dataset split, projsim_stats summarizes a split's
// labels and projsim_graph renders a generated backlog.
//
// Usage:
//
//	srv, err := mcp.NewServer(&mcp.Config{Name: "projsim", Version: version, Root: root, Settings: cfg})
//	if err != nil {
//		return err
//	}
//	defer srv.Close()
//	return srv.Run(ctx)
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/predman/projsim/internal/config"
	"github.com/predman/projsim/internal/logging"
	"github.com/predman/projsim/internal/pathutil"
	"github.com/predman/projsim/internal/ratelimit"
	"github.com/predman/projsim/internal/store"
)

// Server wraps the MCP SDK server and provides projsim-specific functionality.
type Server struct {
	server       *sdk.Server
	settings     *config.ProjsimConfig
	root         string
	roots        []string
	catalog      store.RunCatalog
	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger
	logger       *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Name     string                // Server name (e.g., "projsim")
	Version  string                // Server version
	Root     string                // Project root; tool paths must stay under it or a configured dataset dir
	Settings *config.ProjsimConfig // nil uses config.Default()
	Logger   *slog.Logger          // nil discards
}

// NewServer creates a new MCP server with projsim tools.
func NewServer(cfg *Config) (*Server, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	var catalog store.RunCatalog
	if settings.Dataset.CatalogPath != "" {
		path := settings.Dataset.CatalogPath
		if resolved, err := pathutil.Resolve(path, []string{cfg.Root}); err == nil {
			path = resolved
		}
		c, err := store.OpenSQLiteCatalog(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open run catalog: %w", err)
		}
		catalog = c
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		settings:     settings,
		root:         cfg.Root,
		roots:        pathutil.DatasetRoots(cfg.Root, settings.Dataset.TrainDir, settings.Dataset.TestDir),
		catalog:      catalog,
		toolLimiters: ratelimit.NewToolLimiters(),
		auditLogger:  NewAuditLogger(cfg.Root),
		logger:       logger,
	}

	s.registerTools()
	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := s.server.Run(logging.WithLogger(ctx, s.logger), &sdk.StdioTransport{})
	if closeErr := s.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Close closes the catalog and audit log.
func (s *Server) Close() error {
	var firstErr error
	if s.catalog != nil {
		if err := s.catalog.Close(); err != nil {
			firstErr = err
		}
		s.catalog = nil
	}
	if err := s.auditLogger.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	s.auditLogger = nil
	return firstErr
}
