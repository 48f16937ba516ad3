// Package port resolves a two-point excitation port onto the lattice and
// computes the axis-aligned path between its endpoints.
package port

import (
	"errors"
	"fmt"
	"math"

	"github.com/nvandessel/fitgen/internal/grid"
)

// DefaultTolerance is the snapping distance used when none is configured.
const DefaultTolerance = 1e-3

var (
	// ErrNotFound is returned when an endpoint has no node within tolerance.
	ErrNotFound = errors.New("port endpoint not found")

	// ErrDegeneratePort is returned when both endpoints snap to the same node.
	ErrDegeneratePort = errors.New("degenerate port")
)

// neighbors is the traversal evaluation order. Ties keep the earliest entry,
// so this order is part of the result.
var neighbors = [6]grid.Index{
	{X: 1}, {X: -1},
	{Y: 1}, {Y: -1},
	{Z: 1}, {Z: -1},
}

// Port is a resolved excitation path, canonicalized so Source has the
// smaller flat offset.
type Port struct {
	Source grid.Index
	Dest   grid.Index
	Path   []grid.Index
}

// Length is the number of unit steps in the path.
func (p *Port) Length() int {
	return len(p.Path) - 1
}

// Mid is the position within Path of the driven node.
func (p *Port) Mid() int {
	return p.Length() / 2
}

// Feed returns the driven node.
func (p *Port) Feed() grid.Index {
	return p.Path[p.Mid()]
}

// FeedOffset returns the flat offset of the driven node.
func (p *Port) FeedOffset(g *grid.Grid) int {
	return g.Flatten(p.Feed())
}

// FeedAxis returns the axis along which the driven node couples to the next
// node of the path.
func (p *Port) FeedAxis() int {
	m := p.Mid()
	return p.Path[m+1].Sub(p.Path[m]).Axis()
}

// Pinned returns the nodes held by the hard-excitation boundary: the first
// Length() path nodes except the driven one.
func (p *Port) Pinned() []grid.Index {
	mid := p.Mid()
	pinned := make([]grid.Index, 0, p.Length())
	for i := 0; i < p.Length(); i++ {
		if i != mid {
			pinned = append(pinned, p.Path[i])
		}
	}
	return pinned
}

// Find snaps src and dst to lattice nodes within tol and walks a greedy
// axis-aligned path between them. Find(a, b) and Find(b, a) are identical.
func Find(g *grid.Grid, src, dst grid.Point, tol float64) (*Port, error) {
	i, ok := Nearest(g, src, tol)
	if !ok {
		return nil, fmt.Errorf("%w: source %v has no node within %g", ErrNotFound, src, tol)
	}
	j, ok := Nearest(g, dst, tol)
	if !ok {
		return nil, fmt.Errorf("%w: destination %v has no node within %g", ErrNotFound, dst, tol)
	}

	if g.Flatten(i) > g.Flatten(j) {
		i, j = j, i
		src, dst = dst, src
	}

	length := i.Sub(j).Abs().Sum()
	if length == 0 {
		return nil, fmt.Errorf("%w: %v and %v both resolve to node %v", ErrDegeneratePort, src, dst, i)
	}

	path := make([]grid.Index, 0, length+1)
	path = append(path, i)
	cur := i
	for s := 0; s < length; s++ {
		best, dist := cur, math.Inf(1)
		for _, d := range neighbors {
			n := cur.Add(d)
			pos, err := g.At(n)
			if err != nil {
				continue
			}
			if r := pos.Sub(dst).Length(); r < dist {
				best, dist = n, r
			}
		}
		cur = best
		path = append(path, cur)
	}

	if cur != j {
		return nil, fmt.Errorf("%w: traversal from %v ended at %v instead of %v", ErrDegeneratePort, i, cur, j)
	}

	return &Port{Source: i, Dest: j, Path: path}, nil
}

// Nearest returns the node closest to p among those within tol. The scan
// runs x-outer, z-inner and keeps the first of equally distant nodes.
func Nearest(g *grid.Grid, p grid.Point, tol float64) (grid.Index, bool) {
	var found grid.Index
	best := math.Inf(1)
	for ix, x := range g.Xs {
		for iy, y := range g.Ys {
			for iz, z := range g.Zs {
				r := (grid.Point{X: x, Y: y, Z: z}).Sub(p).Length()
				if r < tol && r < best {
					found, best = grid.Index{X: ix, Y: iy, Z: iz}, r
				}
			}
		}
	}
	return found, !math.IsInf(best, 1)
}
