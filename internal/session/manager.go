package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/nvandessel/fitgen/internal/build"
	"github.com/nvandessel/fitgen/internal/coeff"
	"github.com/nvandessel/fitgen/internal/grid"
	"github.com/nvandessel/fitgen/internal/history"
	"github.com/nvandessel/fitgen/internal/interp"
	"github.com/nvandessel/fitgen/internal/kernel"
	"github.com/nvandessel/fitgen/internal/logging"
	"github.com/nvandessel/fitgen/internal/native"
	"github.com/nvandessel/fitgen/internal/port"
)

// Backend kinds accepted by ManagerConfig.Backend.
const (
	BackendNative = "native"
	BackendInterp = "interp"
)

// Ledger is the persistence the Manager reports builds and runs to.
type Ledger interface {
	Recorder
	RecordBuild(ctx context.Context, b history.Build) error
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Backend selects BackendNative (default) or BackendInterp.
	Backend string

	// BuildRoot holds one build slot per session.
	BuildRoot string

	Compiler    string
	SharedFlags []string

	// Template overrides the built-in kernel template.
	Template string

	// Retention prunes old build slots after each successful build. Slots
	// of open sessions are never pruned.
	Retention build.RetentionPolicy

	Logger *slog.Logger
	Events *logging.EventLog
	Ledger Ledger
}

// Request describes the simulation to open.
type Request struct {
	Xs, Ys, Zs []float64

	Source, Dest grid.Point
	Tolerance    float64

	Eps, Mue []float32
	Dt       float32
}

// Manager is the process-wide registry of open sessions. It owns the build
// root and hands every session its own slot.
type Manager struct {
	cfg      ManagerConfig
	logger   *slog.Logger
	pipeline *build.Pipeline

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewManager creates a Manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Backend == "" {
		cfg.Backend = BackendNative
	}
	if cfg.Backend != BackendNative && cfg.Backend != BackendInterp {
		return nil, fmt.Errorf("unknown backend %q (valid: %s, %s)", cfg.Backend, BackendNative, BackendInterp)
	}
	if cfg.Backend == BackendNative && cfg.BuildRoot == "" {
		return nil, fmt.Errorf("native backend requires a build root")
	}
	if cfg.Template == "" {
		cfg.Template = kernel.DefaultTemplate()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:      cfg,
		logger:   logger,
		pipeline: build.NewPipeline(cfg.Compiler, cfg.SharedFlags, logger),
		sessions: make(map[string]*Session),
	}, nil
}

// Open runs the full pipeline for req and returns an Initialized session.
// Any failure leaves nothing behind that can be stepped.
func (m *Manager) Open(ctx context.Context, req Request) (*Session, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("session manager is closed")
	}

	id := uuid.NewString()
	logger := m.logger.With("session", id)

	g, err := grid.New(req.Xs, req.Ys, req.Zs)
	if err != nil {
		return nil, err
	}

	tol := req.Tolerance
	if tol <= 0 {
		tol = port.DefaultTolerance
	}
	p, err := port.Find(g, req.Source, req.Dest, tol)
	if err != nil {
		return nil, err
	}
	logger.Debug("port resolved", "source", p.Source, "dest", p.Dest, "length", p.Length(), "feed", p.Feed())
	m.cfg.Events.Log(map[string]any{
		"event":   "port",
		"session": id,
		"path":    p.Path,
		"feed":    p.FeedOffset(g),
		"axis":    p.FeedAxis(),
	})

	set, err := coeff.Derive(g, req.Dt, req.Eps, req.Mue, p)
	if err != nil {
		return nil, err
	}

	var (
		backend Backend
		slot    string
		hash    string
	)
	switch m.cfg.Backend {
	case BackendInterp:
		backend = interp.New(g, p)
	default:
		slot = build.SlotDir(m.cfg.BuildRoot, id)
		backend, hash, err = m.buildNative(ctx, id, slot, g, p, logger)
		if err != nil {
			return nil, err
		}
	}

	var rec Recorder
	if m.cfg.Ledger != nil {
		rec = m.cfg.Ledger
	}
	s := New(id, g, p, set, backend, Options{
		Logger:     m.logger,
		Events:     m.cfg.Events,
		Recorder:   rec,
		onShutdown: m.forget,
	})
	s.Dt = req.Dt
	s.Slot = slot

	if err := s.Initialize(); err != nil {
		return nil, errors.Join(err, backend.Shutdown())
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	if slot != "" {
		if err := SaveManifest(ManifestOf(s, hash), slot); err != nil {
			logger.Warn("writing slot manifest failed", "error", err)
		}
		m.prune()
	}

	logger.Info("session opened", "backend", backend.Name(),
		"grid", fmt.Sprintf("%dx%dx%d", g.NX(), g.NY(), g.NZ()))
	return s, nil
}

func (m *Manager) buildNative(ctx context.Context, id, slot string, g *grid.Grid, p *port.Port, logger *slog.Logger) (Backend, string, error) {
	src := kernel.Render(g, p, m.cfg.Template)
	res, err := m.pipeline.Compile(ctx, src, slot)
	if res != nil {
		m.cfg.Events.Log(map[string]any{
			"event":     "compile",
			"session":   id,
			"cmd":       res.Command,
			"exit_code": res.ExitCode,
			"log":       res.LogPath,
			"hash":      res.Hash,
		})
		if m.cfg.Ledger != nil {
			rec := history.Build{
				SessionID:  id,
				SourceHash: res.Hash,
				Command:    res.Command,
				ExitCode:   res.ExitCode,
				Artifact:   res.ArtifactPath,
				LogPath:    res.LogPath,
				Duration:   res.Duration,
			}
			if recErr := m.cfg.Ledger.RecordBuild(ctx, rec); recErr != nil {
				logger.Warn("recording build failed", "error", recErr)
			}
		}
	}
	if err != nil {
		return nil, "", err
	}

	mod, err := native.Load(res.ArtifactPath, logger)
	if err != nil {
		return nil, "", err
	}
	return native.NewBackend(mod), res.Hash, nil
}

func (m *Manager) prune() {
	if m.cfg.Retention == nil {
		return
	}
	m.mu.Lock()
	active := make([]string, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s.Slot != "" {
			active = append(active, s.Slot)
		}
	}
	m.mu.Unlock()

	deleted, err := build.ApplyRetention(m.cfg.BuildRoot, m.cfg.Retention, active...)
	if err != nil {
		m.logger.Warn("pruning build slots failed", "error", err)
		return
	}
	if len(deleted) > 0 {
		m.logger.Debug("pruned build slots", "count", len(deleted))
	}
}

func (m *Manager) forget(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Get returns the open session with id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Sessions returns the IDs of open sessions, sorted.
func (m *Manager) Sessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close shuts down every open session. Safe to call multiple times.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	var errs []error
	for _, s := range open {
		if err := s.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
