package results

import (
	"fmt"
	"image/color"
	"math"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Plot dimensions.
const (
	PlotWidth  = 8 * vg.Inch
	PlotHeight = 4 * vg.Inch
)

// Summary holds scalar diagnostics of a sample sequence.
type Summary struct {
	Samples int     `json:"samples"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	RMS     float64 `json:"rms"`
	PeakAt  int     `json:"peak_at"`
}

// Summarize computes min, max, RMS and the index of the largest magnitude.
func Summarize(xs []float32) Summary {
	if len(xs) == 0 {
		return Summary{}
	}
	v := widen(xs)
	abs := make([]float64, len(v))
	for i, x := range v {
		abs[i] = math.Abs(x)
	}
	return Summary{
		Samples: len(v),
		Min:     floats.Min(v),
		Max:     floats.Max(v),
		RMS:     floats.Norm(v, 2) / math.Sqrt(float64(len(v))),
		PeakAt:  floats.MaxIdx(abs),
	}
}

// Plot renders the excitation and the port response against time to path.
// The image format follows the extension (.png, .svg, .pdf, ...).
func Plot(path, title string, dt float64, src, out []float32) error {
	if len(src) != len(out) {
		return fmt.Errorf("source has %d samples, output has %d", len(src), len(out))
	}
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "t (s)"
	p.Y.Label.Text = "amplitude"
	p.Add(plotter.NewGrid())

	srcLine, err := plotter.NewLine(series(dt, src))
	if err != nil {
		return fmt.Errorf("building source series: %w", err)
	}
	srcLine.Color = color.Gray{Y: 128}
	srcLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	outLine, err := plotter.NewLine(series(dt, out))
	if err != nil {
		return fmt.Errorf("building output series: %w", err)
	}
	outLine.Width = vg.Points(1.5)

	p.Add(srcLine, outLine)
	p.Legend.Add("src", srcLine)
	p.Legend.Add("sig", outLine)
	p.Legend.Top = true

	if err := p.Save(PlotWidth, PlotHeight, path); err != nil {
		return fmt.Errorf("saving plot: %w", err)
	}
	return nil
}

func series(dt float64, ys []float32) plotter.XYs {
	xys := make(plotter.XYs, len(ys))
	for i, y := range ys {
		xys[i].X = float64(i) * dt
		xys[i].Y = float64(y)
	}
	return xys
}

func widen(xs []float32) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = float64(x)
	}
	return out
}
