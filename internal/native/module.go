// Package native loads a compiled kernel module and calls its entry points.
//
// Entry points are resolved when the module is loaded, but a missing symbol is
// not a load failure: it is reported as ErrMissingEntryPoint by the first call
// that needs it.
package native

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/nvandessel/fitgen/internal/coeff"
	"github.com/nvandessel/fitgen/internal/kernel"
)

// ErrMissingEntryPoint is returned when a call targets an unbound symbol.
var ErrMissingEntryPoint = errors.New("missing entry point")

// LoadError reports a module that could not be opened.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load module %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// EntryError reports a non-zero status returned by an entry point.
type EntryError struct {
	Symbol string
	Code   int32
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s returned %d", e.Symbol, e.Code)
}

// Module is a loaded kernel module. It is not safe for concurrent use.
type Module struct {
	path   string
	handle uintptr
	loaded bool

	initFn func(le, re, lh, rh *float32) int32
	stepFn func(s float32) float32
	quitFn func() int32
}

// Load opens the module at path and binds the kernel entry points.
func Load(path string, logger *slog.Logger) (*Module, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	handle, err := openLibrary(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	m := &Module{path: path, handle: handle, loaded: true}
	m.bind(kernel.InitSymbol, &m.initFn, logger)
	m.bind(kernel.StepSymbol, &m.stepFn, logger)
	m.bind(kernel.QuitSymbol, &m.quitFn, logger)

	logger.Debug("module loaded", "path", path,
		"init", m.initFn != nil, "step", m.stepFn != nil, "quit", m.quitFn != nil)
	return m, nil
}

func (m *Module) bind(name string, fptr any, logger *slog.Logger) {
	addr, err := lookup(m.handle, name)
	if err != nil || addr == 0 {
		logger.Warn("module entry point not found", "symbol", name, "path", m.path)
		return
	}
	bindFunc(fptr, addr)
}

// Path returns the artifact location.
func (m *Module) Path() string { return m.path }

// Loaded reports whether the module is still open.
func (m *Module) Loaded() bool { return m.loaded }

// Bound reports which entry points were resolved.
func (m *Module) Bound() map[string]bool {
	return map[string]bool{
		kernel.InitSymbol: m.initFn != nil,
		kernel.StepSymbol: m.stepFn != nil,
		kernel.QuitSymbol: m.quitFn != nil,
	}
}

// Initialize hands the coefficient buffers to the module. The module copies
// them; the Go buffers may be released afterwards.
func (m *Module) Initialize(set *coeff.Set) (int32, error) {
	if err := m.check(kernel.InitSymbol, m.initFn != nil); err != nil {
		return 0, err
	}
	if set == nil || set.Len() == 0 {
		return 0, fmt.Errorf("initialize: empty coefficient set")
	}
	return m.initFn(&set.LE[0], &set.RE[0], &set.LH[0], &set.RH[0]), nil
}

// Step advances the module by one full grid update.
func (m *Module) Step(s float32) (float32, error) {
	if err := m.check(kernel.StepSymbol, m.stepFn != nil); err != nil {
		return 0, err
	}
	return m.stepFn(s), nil
}

// Shutdown asks the module to release its own resources.
func (m *Module) Shutdown() (int32, error) {
	if err := m.check(kernel.QuitSymbol, m.quitFn != nil); err != nil {
		return 0, err
	}
	return m.quitFn(), nil
}

func (m *Module) check(symbol string, bound bool) error {
	if !m.loaded {
		return fmt.Errorf("%s: module %s is closed", symbol, m.path)
	}
	if !bound {
		return fmt.Errorf("%w: %s in %s", ErrMissingEntryPoint, symbol, m.path)
	}
	return nil
}

// Close unloads the module. Safe to call multiple times.
func (m *Module) Close() error {
	if !m.loaded {
		return nil
	}
	m.loaded = false
	m.initFn, m.stepFn, m.quitFn = nil, nil, nil
	if err := closeLibrary(m.handle); err != nil {
		return fmt.Errorf("closing module %s: %w", m.path, err)
	}
	m.handle = 0
	return nil
}
