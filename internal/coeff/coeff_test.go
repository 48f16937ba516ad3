package coeff

import (
	"errors"
	"testing"

	"github.com/nvandessel/fitgen/internal/grid"
	"github.com/nvandessel/fitgen/internal/port"
)

func scenario(t *testing.T) (*grid.Grid, *port.Port) {
	t.Helper()
	g, err := grid.New([]float64{0, 1, 2}, []float64{0, 1}, []float64{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	p, err := port.Find(g, grid.Point{X: 0}, grid.Point{X: 2}, port.DefaultTolerance)
	if err != nil {
		t.Fatal(err)
	}
	return g, p
}

func TestDeriveUniformMedium(t *testing.T) {
	g, p := scenario(t)
	eps, mue := Uniform(g, 1), Uniform(g, 1)

	s, err := Derive(g, 0.5, eps, mue, p)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if s.Len() != 36 {
		t.Fatalf("Len = %d, want 36", s.Len())
	}

	pinned := g.Flatten(grid.Index{X: 0, Y: 0, Z: 0})
	for i := 0; i < s.Len(); i++ {
		if s.LH[i] != 1 || s.RH[i] != 0.5 {
			t.Errorf("[%d] lh=%g rh=%g, want 1 and 0.5", i, s.LH[i], s.RH[i])
		}
		if i == pinned {
			if s.LE[i] != 1 || s.RE[i] != 0 {
				t.Errorf("pinned [%d] le=%g re=%g, want 1 and 0", i, s.LE[i], s.RE[i])
			}
			continue
		}
		if s.LE[i] != 1 || s.RE[i] != 0.5 {
			t.Errorf("[%d] le=%g re=%g, want 1 and 0.5", i, s.LE[i], s.RE[i])
		}
	}

	if feed := p.FeedOffset(g); s.RE[feed] != 0.5 {
		t.Errorf("feed node re = %g, want 0.5 (not pinned)", s.RE[feed])
	}
}

func TestDeriveVaryingMaterial(t *testing.T) {
	g, p := scenario(t)
	eps := make([]float32, g.FieldLen())
	mue := make([]float32, g.FieldLen())
	for i := range eps {
		eps[i] = float32(i) + 1
		mue[i] = 2 * (float32(i) + 1)
	}

	const dt = 0.25
	s, err := Derive(g, dt, eps, mue, p)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < s.Len(); i++ {
		if s.RE[i] != dt*eps[i] {
			t.Errorf("re[%d] = %g, want %g", i, s.RE[i], dt*eps[i])
		}
		if s.RH[i] != dt*mue[i] {
			t.Errorf("rh[%d] = %g, want %g", i, s.RH[i], dt*mue[i])
		}
	}
}

func TestDeriveRejectsBadInput(t *testing.T) {
	g, p := scenario(t)
	good := Uniform(g, 1)

	tests := []struct {
		name     string
		dt       float32
		eps, mue []float32
	}{
		{"short eps", 0.5, good[:10], good},
		{"short mue", 0.5, good, good[:35]},
		{"zero dt", 0, good, good},
		{"negative dt", -1, good, good},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Derive(g, tt.dt, tt.eps, tt.mue, p); !errors.Is(err, grid.ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestRelease(t *testing.T) {
	g, p := scenario(t)
	s, err := Derive(g, 0.5, Uniform(g, 1), Uniform(g, 1), p)
	if err != nil {
		t.Fatal(err)
	}
	s.Release()
	s.Release()
	if !s.Released() || s.Len() != 0 {
		t.Errorf("Released=%v Len=%d after Release", s.Released(), s.Len())
	}
}
