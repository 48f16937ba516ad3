package native

import (
	"errors"

	"github.com/nvandessel/fitgen/internal/coeff"
	"github.com/nvandessel/fitgen/internal/kernel"
)

// Backend drives a loaded Module as a session execution backend.
type Backend struct {
	Module *Module
}

// NewBackend wraps m.
func NewBackend(m *Module) *Backend {
	return &Backend{Module: m}
}

// Name identifies the backend in logs.
func (b *Backend) Name() string { return "native" }

// Initialize calls the module's init entry; a non-zero status is an *EntryError.
func (b *Backend) Initialize(set *coeff.Set) error {
	code, err := b.Module.Initialize(set)
	if err != nil {
		return err
	}
	if code != 0 {
		return &EntryError{Symbol: kernel.InitSymbol, Code: code}
	}
	return nil
}

// StepSample performs one grid update.
func (b *Backend) StepSample(s float32) (float32, error) {
	return b.Module.Step(s)
}

// Shutdown calls the module's quit entry and unloads it. The module is
// unloaded even when the quit entry is missing or fails.
func (b *Backend) Shutdown() error {
	var quitErr error
	code, err := b.Module.Shutdown()
	switch {
	case err != nil:
		quitErr = err
	case code != 0:
		quitErr = &EntryError{Symbol: kernel.QuitSymbol, Code: code}
	}
	return errors.Join(quitErr, b.Module.Close())
}
