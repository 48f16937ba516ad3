// Package coeff derives per-edge leapfrog update coefficients from material
// fields and pins the excitation port to a hard boundary.
//
// Buffers are component-major: component c of node g lives at c*cells+g.
package coeff

import (
	"fmt"

	"github.com/nvandessel/fitgen/internal/grid"
	"github.com/nvandessel/fitgen/internal/port"
)

// Loss parameters of the medium. Both are zero (lossless) but the update
// formulas keep them so a lossy medium only needs new values here.
const (
	Kappa float32 = 0
	Rho   float32 = 0
)

// Set holds the four update coefficient buffers.
type Set struct {
	LE, RE, LH, RH []float32
}

// Len returns the buffer length, or 0 once released.
func (s *Set) Len() int {
	return len(s.LE)
}

// Released reports whether Release has been called.
func (s *Set) Released() bool {
	return s.LE == nil
}

// Release drops the buffers. Safe to call multiple times.
func (s *Set) Release() {
	s.LE, s.RE, s.LH, s.RH = nil, nil, nil, nil
}

// Derive computes the coefficients for every edge and pins the port path.
func Derive(g *grid.Grid, dt float32, eps, mue []float32, p *port.Port) (*Set, error) {
	n := g.FieldLen()
	if len(eps) != n {
		return nil, fmt.Errorf("%w: eps has %d values, grid needs %d", grid.ErrConfiguration, len(eps), n)
	}
	if len(mue) != n {
		return nil, fmt.Errorf("%w: mue has %d values, grid needs %d", grid.ErrConfiguration, len(mue), n)
	}
	if !(dt > 0) {
		return nil, fmt.Errorf("%w: time step must be positive, got %g", grid.ErrConfiguration, dt)
	}

	s := &Set{
		LE: make([]float32, n),
		RE: make([]float32, n),
		LH: make([]float32, n),
		RH: make([]float32, n),
	}
	for i := 0; i < n; i++ {
		k := Kappa * eps[i] * dt / 2
		s.LE[i] = (1 - k) / (1 + k)
		s.RE[i] = dt * eps[i] / (1 + k)

		m := Rho * mue[i] * dt / 2
		s.LH[i] = (1 - m) / (1 + m)
		s.RH[i] = dt * mue[i] / (1 + m)
	}

	if p != nil {
		for _, node := range p.Pinned() {
			f := g.Flatten(node)
			s.LE[f] = 1
			s.RE[f] = 0
		}
	}

	return s, nil
}

// Uniform returns a field buffer for g filled with v.
func Uniform(g *grid.Grid, v float32) []float32 {
	buf := make([]float32, g.FieldLen())
	for i := range buf {
		buf[i] = v
	}
	return buf
}
