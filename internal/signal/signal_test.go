package signal

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBinSearch(t *testing.T) {
	xs := []float64{0, 1, 2, 4}
	tests := []struct {
		x    float64
		want int
	}{
		{-0.5, -1},
		{0, 0},
		{0.5, 0},
		{1, 0},
		{1.5, 1},
		{3, 2},
		{4, 2},
		{9, 3},
	}
	for _, tt := range tests {
		if got := BinSearch(xs, tt.x); got != tt.want {
			t.Errorf("BinSearch(%g) = %d, want %d", tt.x, got, tt.want)
		}
	}
	if got := BinSearch(nil, 1); got != -1 {
		t.Errorf("BinSearch(nil) = %d, want -1", got)
	}
}

func TestInterp1(t *testing.T) {
	xs := []float64{0, 1, 3}
	ys := []float64{10, 20, 0}
	tests := []struct {
		name string
		x    float64
		want float64
	}{
		{"below range clamps", -1, 10},
		{"first sample", 0, 10},
		{"midpoint", 0.5, 15},
		{"interior sample", 1, 20},
		{"second segment", 2, 10},
		{"last sample", 3, 0},
		{"above range clamps", 7, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Interp1(xs, ys, tt.x); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Interp1(%g) = %g, want %g", tt.x, got, tt.want)
			}
		})
	}
}

func TestResample(t *testing.T) {
	// Curve in nanoseconds, solver time in seconds.
	xs := []float64{0, 1, 2}
	ys := []float64{0, 1, 0}
	out, err := Resample(xs, ys, 0.5e-9, 6, 1e9)
	if err != nil {
		t.Fatal(err)
	}
	want := []float32{0, 0.5, 1, 0.5, 0, 0}
	for i := range want {
		if math.Abs(float64(out[i]-want[i])) > 1e-6 {
			t.Errorf("out[%d] = %g, want %g", i, out[i], want[i])
		}
	}

	if _, err := Resample(nil, nil, 1, 3, 1); !errors.Is(err, ErrEmptyCurve) {
		t.Errorf("empty curve error = %v", err)
	}
	if _, err := Resample(xs, ys[:2], 1, 3, 1); err == nil {
		t.Error("expected error for mismatched curve")
	}
}

func TestGaussian(t *testing.T) {
	out := Gaussian(11, 0.1, 0.5, 0.2)
	if len(out) != 11 {
		t.Fatalf("len = %d, want 11", len(out))
	}
	if math.Abs(float64(out[5])-1) > 1e-6 {
		t.Errorf("peak = %g, want 1", out[5])
	}
	if math.Abs(float64(out[4]-out[6])) > 1e-6 {
		t.Errorf("pulse not symmetric: %g vs %g", out[4], out[6])
	}
	if out[0] >= out[1] || out[0] > 0.01 {
		t.Errorf("pulse tail = %g, want small and rising", out[0])
	}

	for _, v := range Gaussian(4, 1, 0, 0) {
		if v != 0 {
			t.Fatalf("zero width should yield zeros, got %g", v)
		}
	}
}

func TestSine(t *testing.T) {
	out := Sine(5, 0.25, 1)
	want := []float64{0, 1, 0, -1, 0}
	for i := range want {
		if math.Abs(float64(out[i])-want[i]) > 1e-6 {
			t.Errorf("out[%d] = %g, want %g", i, out[i], want[i])
		}
	}
}

func TestReadCurve(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantN   int
		wantErr bool
	}{
		{"plain", "0,0\n1,2\n2,4\n", 3, false},
		{"header and comments", "# port signal\nt,i1\n0,0\n1, 0.5\n", 2, false},
		{"extra columns ignored", "0,1,9\n1,2,9\n", 2, false},
		{"non numeric body", "0,0\nx,y\n", 0, true},
		{"single column", "0\n1\n", 0, true},
		{"not ascending", "0,0\n0,1\n", 0, true},
		{"header only", "t,v\n", 0, true},
		{"empty", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			xs, ys, err := ReadCurve(strings.NewReader(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ReadCurve() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (len(xs) != tt.wantN || len(ys) != tt.wantN) {
				t.Errorf("got %d/%d samples, want %d", len(xs), len(ys), tt.wantN)
			}
		})
	}
}

func TestLoadCurve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "i1.csv")
	if err := os.WriteFile(path, []byte("0,0\n1e-9,1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	xs, ys, err := LoadCurve(path)
	if err != nil {
		t.Fatal(err)
	}
	if xs[1] != 1e-9 || ys[1] != 1 {
		t.Errorf("curve = %v %v", xs, ys)
	}

	if _, _, err := LoadCurve(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}
