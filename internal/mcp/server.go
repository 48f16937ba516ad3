// Package mcp provides an MCP (Model Context Protocol) server for fitgen.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/fitgen/internal/config"
	"github.com/nvandessel/fitgen/internal/history"
	"github.com/nvandessel/fitgen/internal/logging"
	"github.com/nvandessel/fitgen/internal/pathutil"
	"github.com/nvandessel/fitgen/internal/ratelimit"
	"github.com/nvandessel/fitgen/internal/session"
	"github.com/nvandessel/fitgen/internal/simulation"
)

// Server wraps the MCP SDK server and exposes the fitgen pipeline as tools.
type Server struct {
	server  *sdk.Server
	manager *session.Manager
	runner  *simulation.Runner
	ledger  *history.Ledger
	logger  *slog.Logger
	fit     *config.FitConfig

	root    string
	workDir string

	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger

	// mu serializes tool calls; sessions are not reentrant.
	mu sync.Mutex
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "fitgen")
	Version string // Server version
	Root    string // Project root directory; scenarios and outputs may live below it
	WorkDir string // fitgen work directory (build slots, runs, audit log)

	Fit    *config.FitConfig
	Logger *slog.Logger
	Events *logging.EventLog
	Ledger *history.Ledger // optional; fit_history is unavailable without it
}

// NewServer creates a new MCP server with fitgen tools.
func NewServer(cfg *Config) (*Server, error) {
	if cfg.WorkDir == "" {
		return nil, fmt.Errorf("work directory is required")
	}
	fit := cfg.Fit
	if fit == nil {
		fit = config.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	retention, err := fit.Retention()
	if err != nil {
		return nil, err
	}
	mcfg := session.ManagerConfig{
		Backend:     fit.Solver.Backend,
		BuildRoot:   fit.BuildRootDir(cfg.WorkDir),
		Compiler:    fit.Build.Compiler,
		SharedFlags: fit.Build.SharedFlags,
		Retention:   retention,
		Logger:      logger,
		Events:      cfg.Events,
	}
	if cfg.Ledger != nil {
		mcfg.Ledger = cfg.Ledger
	}
	manager, err := session.NewManager(mcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create session manager: %w", err)
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
		manager:      manager,
		runner:       simulation.NewRunner(manager, logger),
		ledger:       cfg.Ledger,
		logger:       logger,
		fit:          fit,
		root:         cfg.Root,
		workDir:      cfg.WorkDir,
		toolLimiters: ratelimit.NewToolLimiters(),
		auditLogger:  NewAuditLogger(cfg.WorkDir),
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// runsDir is the default output directory for fit_simulate.
func (s *Server) runsDir() string {
	return filepath.Join(s.workDir, pathutil.RunsDirName)
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

	err := s.server.Run(ctx, &sdk.StdioTransport{})

	if cerr := s.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Close shuts down every open session and closes the audit log. The ledger
// belongs to the caller.
func (s *Server) Close() error {
	err := s.manager.Close()
	if aerr := s.auditLogger.Close(); aerr != nil && err == nil {
		err = aerr
	}
	return err
}
