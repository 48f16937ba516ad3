// Package signal builds excitation sequences: interpolated curves, a
// Gaussian pulse and a sine.
package signal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// ErrEmptyCurve is returned for a curve with no samples.
var ErrEmptyCurve = errors.New("curve has no samples")

// BinSearch returns the index i with xs[i] < x <= xs[i+1] for ascending xs,
// -1 when x is below xs[0] and len(xs)-1 when x is above the last value.
// x equal to xs[0] returns 0.
func BinSearch(xs []float64, x float64) int {
	if len(xs) == 0 || x < xs[0] {
		return -1
	}
	i, j := 0, len(xs)
	for i < j-1 {
		k := (i + j) / 2
		if xs[k] < x {
			i = k
		} else {
			j = k
		}
	}
	return i
}

// Interp1 linearly interpolates ys over xs at x, clamping to the first and
// last value outside the sampled range.
func Interp1(xs, ys []float64, x float64) float64 {
	if len(ys) == 0 {
		return 0
	}
	i := BinSearch(xs, x)
	switch {
	case i < 0:
		return ys[0]
	case i >= len(xs)-1:
		return ys[len(ys)-1]
	}
	span := xs[i+1] - xs[i]
	return ys[i]*(xs[i+1]-x)/span + ys[i+1]*(x-xs[i])/span
}

// Resample evaluates the curve (xs, ys) at n instants i*dt*scale. scale
// converts solver time to the curve's time unit, e.g. 1e9 for a curve in
// nanoseconds.
func Resample(xs, ys []float64, dt float64, n int, scale float64) ([]float32, error) {
	if len(xs) == 0 {
		return nil, ErrEmptyCurve
	}
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("curve has %d abscissae and %d values", len(xs), len(ys))
	}
	if scale == 0 {
		scale = 1
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(Interp1(xs, ys, float64(i)*dt*scale))
	}
	return out, nil
}

// Gaussian returns n samples of exp(-((t-t0)/width)^2) at t = i*dt.
func Gaussian(n int, dt, t0, width float64) []float32 {
	out := make([]float32, n)
	if width == 0 {
		return out
	}
	for i := range out {
		u := (float64(i)*dt - t0) / width
		out[i] = float32(math.Exp(-u * u))
	}
	return out
}

// Sine returns n samples of sin(2*pi*freq*t) at t = i*dt.
func Sine(n int, dt, freq float64) []float32 {
	out := make([]float32, n)
	w := 2 * math.Pi * freq
	for i := range out {
		out[i] = float32(math.Sin(w * float64(i) * dt))
	}
	return out
}

// LoadCurve reads a two-column CSV curve from path.
func LoadCurve(path string) (xs, ys []float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening curve: %w", err)
	}
	defer f.Close()
	return ReadCurve(f)
}

// ReadCurve parses a two-column CSV curve. Lines starting with '#' are
// skipped, as is a leading header row that does not parse as numbers.
// Abscissae must be strictly ascending.
func ReadCurve(r io.Reader) (xs, ys []float64, err error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading curve: %w", err)
		}
		line++
		if len(rec) < 2 {
			return nil, nil, fmt.Errorf("curve line %d: want 2 columns, got %d", line, len(rec))
		}

		x, errX := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if errX != nil || errY != nil {
			if line == 1 {
				continue
			}
			return nil, nil, fmt.Errorf("curve line %d: %q is not numeric", line, strings.Join(rec, ","))
		}
		if n := len(xs); n > 0 && x <= xs[n-1] {
			return nil, nil, fmt.Errorf("curve line %d: abscissa %g not above %g", line, x, xs[n-1])
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}

	if len(xs) == 0 {
		return nil, nil, ErrEmptyCurve
	}
	return xs, ys, nil
}
