// Package interp is a pure-Go execution backend running the same leapfrog
// update as the generated kernel. It needs no toolchain and serves as the
// reference the compiled module is checked against.
package interp

import (
	"fmt"

	"github.com/nvandessel/fitgen/internal/coeff"
	"github.com/nvandessel/fitgen/internal/grid"
	"github.com/nvandessel/fitgen/internal/port"
)

// Backend holds the field state for one session.
type Backend struct {
	nx, ny, nz int
	ng         int
	feed       int

	e, h           []float32
	le, re, lh, rh []float32
}

// New returns a backend specialized to g and p, mirroring what the kernel
// template bakes in as literals.
func New(g *grid.Grid, p *port.Port) *Backend {
	b := &Backend{nx: g.NX(), ny: g.NY(), nz: g.NZ(), ng: g.Cells()}
	b.feed = p.FeedAxis()*b.ng + p.FeedOffset(g)
	return b
}

// Name identifies the backend in logs.
func (b *Backend) Name() string { return "interp" }

// Initialize copies the coefficients and zeroes the fields.
func (b *Backend) Initialize(set *coeff.Set) error {
	n := 3 * b.ng
	if set == nil || set.Len() != n {
		return fmt.Errorf("interp: coefficient set has %d values, want %d", setLen(set), n)
	}
	b.le = append([]float32(nil), set.LE...)
	b.re = append([]float32(nil), set.RE...)
	b.lh = append([]float32(nil), set.LH...)
	b.rh = append([]float32(nil), set.RH...)
	b.e = make([]float32, n)
	b.h = make([]float32, n)
	return nil
}

// StepSample performs one H then E update and injects s at the feed edge.
func (b *Backend) StepSample(s float32) (float32, error) {
	if b.e == nil {
		return 0, nil
	}
	b.updateH()
	b.updateE()
	b.e[b.feed] -= b.re[b.feed] * s
	return b.e[b.feed], nil
}

// Shutdown drops all state. Safe to call multiple times.
func (b *Backend) Shutdown() error {
	b.e, b.h = nil, nil
	b.le, b.re, b.lh, b.rh = nil, nil, nil, nil
	return nil
}

// at reads component c at (x,y,z); nodes outside the lattice read as zero.
func (b *Backend) at(f []float32, c, x, y, z int) float32 {
	if x < 0 || x >= b.nx || y < 0 || y >= b.ny || z < 0 || z >= b.nz {
		return 0
	}
	return f[c*b.ng+x+y*b.nx+z*b.nx*b.ny]
}

func (b *Backend) updateH() {
	ng, e, h := b.ng, b.e, b.h
	for z := 0; z < b.nz; z++ {
		for y := 0; y < b.ny; y++ {
			for x := 0; x < b.nx; x++ {
				g := x + y*b.nx + z*b.nx*b.ny
				ex, ey, ez := e[g], e[ng+g], e[2*ng+g]
				cx := (b.at(e, 2, x, y+1, z) - ez) - (b.at(e, 1, x, y, z+1) - ey)
				cy := (b.at(e, 0, x, y, z+1) - ex) - (b.at(e, 2, x+1, y, z) - ez)
				cz := (b.at(e, 1, x+1, y, z) - ey) - (b.at(e, 0, x, y+1, z) - ex)
				h[g] = b.lh[g]*h[g] - b.rh[g]*cx
				h[ng+g] = b.lh[ng+g]*h[ng+g] - b.rh[ng+g]*cy
				h[2*ng+g] = b.lh[2*ng+g]*h[2*ng+g] - b.rh[2*ng+g]*cz
			}
		}
	}
}

func (b *Backend) updateE() {
	ng, e, h := b.ng, b.e, b.h
	for z := 0; z < b.nz; z++ {
		for y := 0; y < b.ny; y++ {
			for x := 0; x < b.nx; x++ {
				g := x + y*b.nx + z*b.nx*b.ny
				hx, hy, hz := h[g], h[ng+g], h[2*ng+g]
				cx := (hz - b.at(h, 2, x, y-1, z)) - (hy - b.at(h, 1, x, y, z-1))
				cy := (hx - b.at(h, 0, x, y, z-1)) - (hz - b.at(h, 2, x-1, y, z))
				cz := (hy - b.at(h, 1, x-1, y, z)) - (hx - b.at(h, 0, x, y-1, z))
				e[g] = b.le[g]*e[g] + b.re[g]*cx
				e[ng+g] = b.le[ng+g]*e[ng+g] + b.re[ng+g]*cy
				e[2*ng+g] = b.le[2*ng+g]*e[2*ng+g] + b.re[2*ng+g]*cz
			}
		}
	}
}

func setLen(set *coeff.Set) int {
	if set == nil {
		return 0
	}
	return set.Len()
}
