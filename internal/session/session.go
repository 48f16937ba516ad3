// Package session owns the lifecycle of one simulation: initialize the
// execution backend with update coefficients, step it per sample, and shut it
// down exactly once.
//
// A Session is not reentrant. Callers that share one across goroutines must
// serialize access themselves.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nvandessel/fitgen/internal/coeff"
	"github.com/nvandessel/fitgen/internal/grid"
	"github.com/nvandessel/fitgen/internal/history"
	"github.com/nvandessel/fitgen/internal/logging"
	"github.com/nvandessel/fitgen/internal/port"
)

var (
	// ErrInitializationFailed wraps a backend that refused its coefficients.
	ErrInitializationFailed = errors.New("initialization failed")

	// ErrNotInitialized is returned when stepping an uninitialized session.
	ErrNotInitialized = errors.New("session not initialized")

	// ErrShutDown is returned for any call after Shutdown.
	ErrShutDown = errors.New("session shut down")
)

// InitError reports a backend that failed to accept its coefficients. It
// matches ErrInitializationFailed and the backend's own error.
type InitError struct {
	Session string
	Backend string
	Err     error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initializing session %s (%s backend): %v", e.Session, e.Backend, e.Err)
}

func (e *InitError) Unwrap() []error {
	return []error{ErrInitializationFailed, e.Err}
}

// Backend executes the grid update for a session.
type Backend interface {
	Name() string
	Initialize(set *coeff.Set) error
	StepSample(s float32) (float32, error)
	Shutdown() error
}

// State is the session lifecycle position.
type State int

const (
	Uninitialized State = iota
	Initialized
	ShutDown
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case ShutDown:
		return "shut_down"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Stats is the throughput diagnostic for a batch of steps.
type Stats struct {
	Count          int           `json:"count"`
	Elapsed        time.Duration `json:"elapsed"`
	CellsPerSecond float64       `json:"cells_per_second"`
}

// MCellsPerSecond returns CellsPerSecond in millions.
func (s Stats) MCellsPerSecond() float64 {
	return s.CellsPerSecond / 1e6
}

// Options carry the optional collaborators of a Session.
type Options struct {
	Logger   *slog.Logger
	Events   *logging.EventLog
	Recorder Recorder

	// onShutdown is set by the Manager to drop the session from its registry.
	onShutdown func(id string)
}

// Recorder persists run statistics. history.Ledger implements it.
type Recorder interface {
	RecordRun(ctx context.Context, run history.Run) error
}

// Session aggregates one grid, one coefficient set and one backend.
type Session struct {
	ID    string
	Grid  *grid.Grid
	Port  *port.Port
	Dt    float32
	Slot  string
	Coeff *coeff.Set

	backend  Backend
	state    State
	cells    int
	logger   *slog.Logger
	events   *logging.EventLog
	recorder Recorder
	onClose  func(id string)
}

// New assembles a session around an already-constructed backend. The
// session starts Uninitialized.
func New(id string, g *grid.Grid, p *port.Port, set *coeff.Set, b Backend, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		ID:       id,
		Grid:     g,
		Port:     p,
		Coeff:    set,
		backend:  b,
		cells:    g.Cells(),
		logger:   logger.With("session", id, "backend", b.Name()),
		events:   opts.Events,
		recorder: opts.Recorder,
		onClose:  opts.onShutdown,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Backend returns the backend name.
func (s *Session) Backend() string { return s.backend.Name() }

// Initialize hands the coefficients to the backend. The session becomes
// Initialized only on success.
func (s *Session) Initialize() error {
	switch s.state {
	case ShutDown:
		return ErrShutDown
	case Initialized:
		return fmt.Errorf("session %s already initialized", s.ID)
	}

	if err := s.backend.Initialize(s.Coeff); err != nil {
		s.logger.Error("backend initialization failed", "error", err)
		return &InitError{Session: s.ID, Backend: s.backend.Name(), Err: err}
	}

	s.state = Initialized
	s.logger.Debug("session initialized", "cells", s.cells)
	s.events.Log(map[string]any{
		"event":   "initialized",
		"session": s.ID,
		"backend": s.backend.Name(),
		"cells":   s.cells,
	})
	return nil
}

func (s *Session) ready() error {
	switch s.state {
	case Uninitialized:
		return ErrNotInitialized
	case ShutDown:
		return ErrShutDown
	}
	return nil
}

// Step performs one grid update driven by sample.
func (s *Session) Step(sample float32) (float32, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	return s.backend.StepSample(sample)
}

// cancelCheckInterval is how many steps StepBatch takes between context checks.
const cancelCheckInterval = 1024

// StepBatch performs one grid update per sample, in order. On error the
// outputs computed so far are returned. Stats are diagnostic only.
func (s *Session) StepBatch(ctx context.Context, samples []float32) ([]float32, Stats, error) {
	if err := s.ready(); err != nil {
		return nil, Stats{}, err
	}

	out := make([]float32, 0, len(samples))
	start := time.Now()
	for i, v := range samples {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return out, s.stats(len(out), time.Since(start)), err
			}
		}
		r, err := s.backend.StepSample(v)
		if err != nil {
			return out, s.stats(len(out), time.Since(start)), fmt.Errorf("step %d: %w", i, err)
		}
		out = append(out, r)
	}
	stats := s.stats(len(out), time.Since(start))

	s.logger.Info("PERF", "steps", stats.Count, "elapsed", stats.Elapsed.Round(time.Microsecond),
		"mcells_per_sec", fmt.Sprintf("%.2f", stats.MCellsPerSecond()))
	s.events.Log(map[string]any{
		"event":            "batch",
		"session":          s.ID,
		"steps":            stats.Count,
		"elapsed_ns":       stats.Elapsed.Nanoseconds(),
		"cells_per_second": stats.CellsPerSecond,
	})
	if s.recorder != nil {
		run := history.Run{
			SessionID:      s.ID,
			Backend:        s.backend.Name(),
			Cells:          s.cells,
			Steps:          stats.Count,
			Elapsed:        stats.Elapsed,
			CellsPerSecond: stats.CellsPerSecond,
		}
		if err := s.recorder.RecordRun(ctx, run); err != nil {
			s.logger.Warn("recording run failed", "error", err)
		}
	}
	return out, stats, nil
}

func (s *Session) stats(count int, elapsed time.Duration) Stats {
	st := Stats{Count: count, Elapsed: elapsed}
	if secs := elapsed.Seconds(); secs > 0 {
		st.CellsPerSecond = float64(s.cells) * float64(count) / secs
	}
	return st
}

// Shutdown stops the backend and releases the grid and coefficient buffers.
// Safe to call multiple times; only the first call does any work. The
// session is ShutDown afterwards even if the backend reported an error.
func (s *Session) Shutdown() error {
	if s.state == ShutDown {
		return nil
	}

	err := s.backend.Shutdown()
	s.state = ShutDown
	s.Grid.Release()
	s.Coeff.Release()
	if s.onClose != nil {
		s.onClose(s.ID)
	}

	s.events.Log(map[string]any{"event": "shutdown", "session": s.ID})
	if err != nil {
		s.logger.Warn("backend shutdown reported an error", "error", err)
		return fmt.Errorf("shutting down session %s: %w", s.ID, err)
	}
	s.logger.Debug("session shut down")
	return nil
}
