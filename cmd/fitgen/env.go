package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/fitgen/internal/config"
	"github.com/nvandessel/fitgen/internal/history"
	"github.com/nvandessel/fitgen/internal/logging"
	"github.com/nvandessel/fitgen/internal/scenario"
	"github.com/nvandessel/fitgen/internal/session"
)

// runtimeEnv is the configuration and shared collaborators of one command
// invocation.
type runtimeEnv struct {
	cfg     *config.FitConfig
	workDir string
	root    string
	logger  *slog.Logger
	events  *logging.EventLog
	ledger  *history.Ledger
}

// loadEnv resolves config (--config, then ~/.fitgen/config.yaml, then
// FITGEN_* overrides), applies --log-level and opens the event log and
// history ledger. Callers must Close the result.
func loadEnv(cmd *cobra.Command) (*runtimeEnv, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	var (
		cfg *config.FitConfig
		err error
	)
	if cfgPath != "" {
		cfg, err = config.LoadPath(cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	workDir, err := config.WorkDir()
	if err != nil {
		return nil, err
	}
	root, _ := cmd.Flags().GetString("root")
	if root, err = filepath.Abs(root); err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}

	env := &runtimeEnv{
		cfg:     cfg,
		workDir: workDir,
		root:    root,
		logger:  logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr()),
		events:  logging.NewEventLog(workDir, cfg.Logging.Level),
	}

	if cfg.History.Enabled {
		ledger, err := history.Open(cfg.HistoryPath(workDir))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: history disabled: %v\n", err)
		} else {
			env.ledger = ledger
		}
	}

	return env, nil
}

// Close releases the event log and ledger.
func (e *runtimeEnv) Close() {
	e.events.Close()
	if e.ledger != nil {
		if err := e.ledger.Close(); err != nil {
			e.logger.Warn("closing history failed", "error", err)
		}
	}
}

// newManager builds a session manager from config. A non-empty backend
// overrides solver.backend.
func (e *runtimeEnv) newManager(backend string) (*session.Manager, error) {
	retention, err := e.cfg.Retention()
	if err != nil {
		return nil, err
	}
	if backend == "" {
		backend = e.cfg.Solver.Backend
	}
	mcfg := session.ManagerConfig{
		Backend:     backend,
		BuildRoot:   e.cfg.BuildRootDir(e.workDir),
		Compiler:    e.cfg.Build.Compiler,
		SharedFlags: e.cfg.Build.SharedFlags,
		Retention:   retention,
		Logger:      e.logger,
		Events:      e.events,
	}
	if e.ledger != nil {
		mcfg.Ledger = e.ledger
	}
	return session.NewManager(mcfg)
}

// loadScenario loads path with the configured solver defaults.
func (e *runtimeEnv) loadScenario(path string) (*scenario.Scenario, error) {
	return scenario.LoadWithDefaults(path, scenario.Defaults{Tolerance: e.cfg.Solver.Tolerance})
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
