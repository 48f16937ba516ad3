// Package grid models the non-uniform rectilinear lattice the solver runs on.
//
// A Grid is three strictly increasing coordinate arrays. Lattice nodes are
// addressed by an integer Index and linearized with x varying fastest, which is
// the layout every field and coefficient buffer uses.
package grid

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrConfiguration is returned for malformed grid or field input.
	ErrConfiguration = errors.New("configuration error")

	// ErrOutOfRange is returned when an Index lies outside the lattice.
	ErrOutOfRange = errors.New("index out of range")
)

// Index addresses one lattice node.
type Index struct {
	X, Y, Z int
}

// Add returns i + o.
func (i Index) Add(o Index) Index {
	return Index{i.X + o.X, i.Y + o.Y, i.Z + o.Z}
}

// Sub returns i - o.
func (i Index) Sub(o Index) Index {
	return Index{i.X - o.X, i.Y - o.Y, i.Z - o.Z}
}

// Abs returns the component-wise absolute value.
func (i Index) Abs() Index {
	return Index{absInt(i.X), absInt(i.Y), absInt(i.Z)}
}

// Sum returns X+Y+Z.
func (i Index) Sum() int {
	return i.X + i.Y + i.Z
}

// Axis returns the axis (0=x, 1=y, 2=z) of the first non-zero component,
// or 2 when all components are zero.
func (i Index) Axis() int {
	switch {
	case i.X != 0:
		return 0
	case i.Y != 0:
		return 1
	default:
		return 2
	}
}

func (i Index) String() string {
	return fmt.Sprintf("(%d,%d,%d)", i.X, i.Y, i.Z)
}

// Point is a physical position.
type Point struct {
	X, Y, Z float64
}

// Sub returns p - o.
func (p Point) Sub(o Point) Point {
	return Point{p.X - o.X, p.Y - o.Y, p.Z - o.Z}
}

// Length returns the Euclidean norm.
func (p Point) Length() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

func (p Point) String() string {
	return fmt.Sprintf("[%g %g %g]", p.X, p.Y, p.Z)
}

// Grid is a rectilinear lattice with per-axis coordinates.
type Grid struct {
	Xs, Ys, Zs []float64
}

// New validates and copies the axis coordinates. Every axis must be
// non-empty and strictly increasing.
func New(xs, ys, zs []float64) (*Grid, error) {
	axes := [3][]float64{xs, ys, zs}
	for a, coords := range axes {
		if err := checkAxis("xyz"[a], coords); err != nil {
			return nil, err
		}
	}
	return &Grid{
		Xs: append([]float64(nil), xs...),
		Ys: append([]float64(nil), ys...),
		Zs: append([]float64(nil), zs...),
	}, nil
}

func checkAxis(name byte, coords []float64) error {
	if len(coords) == 0 {
		return fmt.Errorf("%w: axis %c has no coordinates", ErrConfiguration, name)
	}
	for i := 1; i < len(coords); i++ {
		if !(coords[i] > coords[i-1]) {
			return fmt.Errorf("%w: axis %c not strictly increasing at index %d (%g after %g)",
				ErrConfiguration, name, i, coords[i], coords[i-1])
		}
	}
	return nil
}

// NX returns the node count along x.
func (g *Grid) NX() int { return len(g.Xs) }

// NY returns the node count along y.
func (g *Grid) NY() int { return len(g.Ys) }

// NZ returns the node count along z.
func (g *Grid) NZ() int { return len(g.Zs) }

// Cells returns nx*ny*nz.
func (g *Grid) Cells() int {
	return g.NX() * g.NY() * g.NZ()
}

// FieldLen returns the length of a three-component field buffer.
func (g *Grid) FieldLen() int {
	return 3 * g.Cells()
}

// Contains reports whether idx lies inside the lattice.
func (g *Grid) Contains(idx Index) bool {
	return idx.X >= 0 && idx.X < g.NX() &&
		idx.Y >= 0 && idx.Y < g.NY() &&
		idx.Z >= 0 && idx.Z < g.NZ()
}

// At returns the physical position of idx.
func (g *Grid) At(idx Index) (Point, error) {
	if !g.Contains(idx) {
		return Point{}, fmt.Errorf("%w: %v not in [0,%d)x[0,%d)x[0,%d)",
			ErrOutOfRange, idx, g.NX(), g.NY(), g.NZ())
	}
	return Point{g.Xs[idx.X], g.Ys[idx.Y], g.Zs[idx.Z]}, nil
}

// Flatten linearizes idx with x fastest-varying.
func (g *Grid) Flatten(idx Index) int {
	nx, ny := g.NX(), g.NY()
	return idx.X + idx.Y*nx + idx.Z*nx*ny
}

// Unflatten is the inverse of Flatten.
func (g *Grid) Unflatten(flat int) Index {
	nx, ny := g.NX(), g.NY()
	return Index{X: flat % nx, Y: (flat / nx) % ny, Z: flat / (nx * ny)}
}

// Release drops the coordinate buffers. A released grid has zero cells.
func (g *Grid) Release() {
	g.Xs, g.Ys, g.Zs = nil, nil, nil
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
