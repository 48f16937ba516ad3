package grid

import (
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		xs      []float64
		ys      []float64
		zs      []float64
		wantErr bool
	}{
		{"valid", []float64{0, 1, 2}, []float64{0, 1}, []float64{0, 1}, false},
		{"single node axes", []float64{0}, []float64{5}, []float64{-1}, false},
		{"non-uniform", []float64{0, 0.1, 0.5, 2}, []float64{0, 1}, []float64{0, 3}, false},
		{"empty axis", []float64{}, []float64{0, 1}, []float64{0, 1}, true},
		{"duplicate coordinate", []float64{0, 1, 1}, []float64{0, 1}, []float64{0, 1}, true},
		{"decreasing", []float64{0, 1}, []float64{1, 0}, []float64{0, 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(tt.xs, tt.ys, tt.zs)
			if tt.wantErr {
				if !errors.Is(err, ErrConfiguration) {
					t.Fatalf("expected ErrConfiguration, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if g.NX() != len(tt.xs) || g.NY() != len(tt.ys) || g.NZ() != len(tt.zs) {
				t.Errorf("dims = %d,%d,%d", g.NX(), g.NY(), g.NZ())
			}
		})
	}
}

func TestNewCopiesInput(t *testing.T) {
	xs := []float64{0, 1, 2}
	g, err := New(xs, []float64{0}, []float64{0})
	if err != nil {
		t.Fatal(err)
	}
	xs[0] = 100
	if g.Xs[0] != 0 {
		t.Errorf("grid aliases caller slice: Xs[0] = %g", g.Xs[0])
	}
}

func TestFlattenRoundTrip(t *testing.T) {
	g, err := New([]float64{0, 1, 2}, []float64{0, 1}, []float64{0, 1})
	if err != nil {
		t.Fatal(err)
	}

	if got := g.Flatten(Index{1, 1, 1}); got != 1+1*3+1*6 {
		t.Errorf("Flatten(1,1,1) = %d, want 10", got)
	}

	for flat := 0; flat < g.Cells(); flat++ {
		idx := g.Unflatten(flat)
		if !g.Contains(idx) {
			t.Fatalf("Unflatten(%d) = %v outside grid", flat, idx)
		}
		if back := g.Flatten(idx); back != flat {
			t.Errorf("Flatten(Unflatten(%d)) = %d", flat, back)
		}
	}
}

func TestAt(t *testing.T) {
	g, err := New([]float64{0, 0.5, 2}, []float64{-1, 1}, []float64{3, 4})
	if err != nil {
		t.Fatal(err)
	}

	p, err := g.At(Index{2, 0, 1})
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	if p != (Point{2, -1, 4}) {
		t.Errorf("At(2,0,1) = %v", p)
	}

	for _, idx := range []Index{{-1, 0, 0}, {3, 0, 0}, {0, 2, 0}, {0, 0, 2}} {
		if _, err := g.At(idx); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("At(%v): expected ErrOutOfRange, got %v", idx, err)
		}
	}
}

func TestIndexHelpers(t *testing.T) {
	a, b := Index{2, 0, 1}, Index{0, 3, 1}
	if d := a.Sub(b).Abs().Sum(); d != 5 {
		t.Errorf("manhattan = %d, want 5", d)
	}
	if ax := (Index{0, -1, 0}).Axis(); ax != 1 {
		t.Errorf("Axis = %d, want 1", ax)
	}
	if ax := (Index{0, 0, 1}).Axis(); ax != 2 {
		t.Errorf("Axis = %d, want 2", ax)
	}
}

func TestRelease(t *testing.T) {
	g, err := New([]float64{0, 1}, []float64{0, 1}, []float64{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	g.Release()
	if g.Cells() != 0 {
		t.Errorf("Cells after Release = %d", g.Cells())
	}
}
