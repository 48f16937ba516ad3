// Package scenario loads simulation input files. A scenario names the grid
// axes, the excitation port, the material matrices, the time step and the
// excitation waveform. YAML (.yaml, .yml) and HCL (.hcl) are accepted.
package scenario

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvandessel/fitgen/internal/constants"
	"github.com/nvandessel/fitgen/internal/grid"
	"github.com/nvandessel/fitgen/internal/signal"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid scenario")

// Excitation kinds.
const (
	KindGaussian = "gaussian"
	KindSine     = "sine"
	KindCurve    = "curve"
)

// Scenario is one simulation input.
type Scenario struct {
	Name  string  `yaml:"name" hcl:"name,optional"`
	Dt    float64 `yaml:"dt" hcl:"dt"`
	Steps int     `yaml:"steps" hcl:"steps,optional"`

	Grid       GridSpec        `yaml:"grid" hcl:"grid,block"`
	Port       PortSpec        `yaml:"port" hcl:"port,block"`
	Materials  *MaterialSpec   `yaml:"materials" hcl:"materials,block"`
	Excitation *ExcitationSpec `yaml:"excitation" hcl:"excitation,block"`

	// Path is the file the scenario was loaded from. Relative file
	// references resolve against its directory.
	Path string `yaml:"-"`
}

// GridSpec holds the three axis coordinate lists.
type GridSpec struct {
	X Axis `yaml:"x" hcl:"x"`
	Y Axis `yaml:"y" hcl:"y"`
	Z Axis `yaml:"z" hcl:"z"`
}

// PortSpec holds the physical port endpoints.
type PortSpec struct {
	Source    []float64 `yaml:"source" hcl:"source"`
	Dest      []float64 `yaml:"dest" hcl:"dest"`
	Tolerance float64   `yaml:"tolerance" hcl:"tolerance,optional"`
}

// MaterialSpec gives each material matrix as a uniform value or a file of
// little-endian float32 values in component-major order. A file wins over a
// value; both absent means 1.
type MaterialSpec struct {
	Eps     float64 `yaml:"eps" hcl:"eps,optional"`
	Mue     float64 `yaml:"mue" hcl:"mue,optional"`
	EpsFile string  `yaml:"eps_file" hcl:"eps_file,optional"`
	MueFile string  `yaml:"mue_file" hcl:"mue_file,optional"`
}

// ExcitationSpec describes the source waveform.
type ExcitationSpec struct {
	Kind      string  `yaml:"kind" hcl:"kind"`
	Amplitude float64 `yaml:"amplitude" hcl:"amplitude,optional"`

	// gaussian
	T0    float64 `yaml:"t0" hcl:"t0,optional"`
	Width float64 `yaml:"width" hcl:"width,optional"`

	// sine
	Freq float64 `yaml:"freq" hcl:"freq,optional"`

	// curve: two-column CSV sampled at i*dt*scale
	File  string  `yaml:"file" hcl:"file,optional"`
	Scale float64 `yaml:"scale" hcl:"scale,optional"`
}

// Defaults fill fields a scenario file leaves unset. Zero values fall back
// to the built-in defaults.
type Defaults struct {
	Steps     int
	Tolerance float64
}

// Load reads the scenario at path, choosing the decoder by extension, and
// validates it.
func Load(path string) (*Scenario, error) {
	return LoadWithDefaults(path, Defaults{})
}

// LoadWithDefaults is Load with caller-supplied defaults, typically taken
// from the solver configuration.
func LoadWithDefaults(path string, d Defaults) (*Scenario, error) {
	var (
		s   *Scenario
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		s, err = decodeYAML(path)
	case ".hcl":
		s, err = decodeHCL(path)
	default:
		return nil, fmt.Errorf("unsupported scenario format %q (want .yaml, .yml or .hcl)", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	s.Path = path
	s.applyDefaults(d)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scenario) applyDefaults(d Defaults) {
	if d.Steps == 0 {
		d.Steps = constants.DefaultSteps
	}
	if d.Tolerance == 0 {
		d.Tolerance = constants.DefaultPortTolerance
	}
	if s.Name == "" && s.Path != "" {
		s.Name = strings.TrimSuffix(filepath.Base(s.Path), filepath.Ext(s.Path))
	}
	if s.Steps == 0 {
		s.Steps = d.Steps
	}
	if s.Port.Tolerance == 0 {
		s.Port.Tolerance = d.Tolerance
	}
	if s.Materials == nil {
		s.Materials = &MaterialSpec{}
	}
	if s.Excitation == nil {
		s.Excitation = &ExcitationSpec{Kind: KindGaussian}
	}
	if s.Excitation.Amplitude == 0 {
		s.Excitation.Amplitude = 1
	}
	if s.Excitation.Kind == KindCurve && s.Excitation.Scale == 0 {
		s.Excitation.Scale = 1
	}
	if s.Excitation.Kind == KindGaussian {
		if s.Excitation.Width == 0 {
			s.Excitation.Width = 20 * s.Dt
		}
		if s.Excitation.T0 == 0 {
			s.Excitation.T0 = 4 * s.Excitation.Width
		}
	}
}

// Validate checks the scenario without touching referenced files.
func (s *Scenario) Validate() error {
	if !(s.Dt > 0) || math.IsInf(s.Dt, 0) {
		return fmt.Errorf("%w: dt must be positive, got %g", ErrInvalid, s.Dt)
	}
	if s.Steps < 0 {
		return fmt.Errorf("%w: steps must be non-negative, got %d", ErrInvalid, s.Steps)
	}
	for _, ax := range []struct {
		name string
		vals Axis
	}{{"x", s.Grid.X}, {"y", s.Grid.Y}, {"z", s.Grid.Z}} {
		if len(ax.vals) == 0 {
			return fmt.Errorf("%w: grid axis %s is empty", ErrInvalid, ax.name)
		}
	}
	if len(s.Port.Source) != 3 {
		return fmt.Errorf("%w: port source needs 3 coordinates, got %d", ErrInvalid, len(s.Port.Source))
	}
	if len(s.Port.Dest) != 3 {
		return fmt.Errorf("%w: port dest needs 3 coordinates, got %d", ErrInvalid, len(s.Port.Dest))
	}
	if s.Port.Tolerance < 0 {
		return fmt.Errorf("%w: port tolerance must be non-negative", ErrInvalid)
	}
	if m := s.Materials; m != nil {
		if m.Eps < 0 || m.Mue < 0 {
			return fmt.Errorf("%w: material values must be non-negative", ErrInvalid)
		}
	}

	if e := s.Excitation; e != nil {
		switch e.Kind {
		case KindGaussian:
			if e.Width <= 0 {
				return fmt.Errorf("%w: gaussian width must be positive", ErrInvalid)
			}
		case KindSine:
			if e.Freq <= 0 {
				return fmt.Errorf("%w: sine freq must be positive", ErrInvalid)
			}
		case KindCurve:
			if e.File == "" {
				return fmt.Errorf("%w: curve excitation needs a file", ErrInvalid)
			}
		default:
			return fmt.Errorf("%w: unknown excitation kind %q (valid: %s, %s, %s)",
				ErrInvalid, e.Kind, KindGaussian, KindSine, KindCurve)
		}
	}
	return nil
}

// Axes returns copies of the grid coordinate lists.
func (s *Scenario) Axes() (xs, ys, zs []float64) {
	return append([]float64(nil), s.Grid.X...),
		append([]float64(nil), s.Grid.Y...),
		append([]float64(nil), s.Grid.Z...)
}

// Source returns the port source as a grid point.
func (s *Scenario) Source() grid.Point {
	return grid.Point{X: s.Port.Source[0], Y: s.Port.Source[1], Z: s.Port.Source[2]}
}

// Dest returns the port destination as a grid point.
func (s *Scenario) Dest() grid.Point {
	return grid.Point{X: s.Port.Dest[0], Y: s.Port.Dest[1], Z: s.Port.Dest[2]}
}

// LoadMaterials builds the eps and mue matrices for g.
func (s *Scenario) LoadMaterials(g *grid.Grid) (eps, mue []float32, err error) {
	m := s.Materials
	if m == nil {
		m = &MaterialSpec{}
	}
	eps, err = s.material(g, "eps", m.Eps, m.EpsFile)
	if err != nil {
		return nil, nil, err
	}
	mue, err = s.material(g, "mue", m.Mue, m.MueFile)
	if err != nil {
		return nil, nil, err
	}
	return eps, mue, nil
}

func (s *Scenario) material(g *grid.Grid, name string, value float64, file string) ([]float32, error) {
	n := g.FieldLen()
	if file == "" {
		if value == 0 {
			value = 1
		}
		buf := make([]float32, n)
		for i := range buf {
			buf[i] = float32(value)
		}
		return buf, nil
	}

	data, err := os.ReadFile(s.resolve(file))
	if err != nil {
		return nil, fmt.Errorf("reading %s matrix: %w", name, err)
	}
	if len(data) != 4*n {
		return nil, fmt.Errorf("%w: %s matrix has %d bytes, grid needs %d float32 values",
			ErrInvalid, name, len(data), n)
	}
	buf := make([]float32, n)
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return buf, nil
}

// WriteMaterial writes buf as little-endian float32 values, the format
// MaterialSpec files are read in.
func WriteMaterial(path string, buf []float32) error {
	data := make([]byte, 4*len(buf))
	for i, v := range buf {
		binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(v))
	}
	return os.WriteFile(path, data, 0644)
}

// Samples returns Steps samples of the configured waveform.
func (s *Scenario) Samples() ([]float32, error) {
	e := s.Excitation
	if e == nil {
		return nil, fmt.Errorf("%w: no excitation", ErrInvalid)
	}

	var out []float32
	switch e.Kind {
	case KindGaussian:
		out = signal.Gaussian(s.Steps, s.Dt, e.T0, e.Width)
	case KindSine:
		out = signal.Sine(s.Steps, s.Dt, e.Freq)
	case KindCurve:
		xs, ys, err := signal.LoadCurve(s.resolve(e.File))
		if err != nil {
			return nil, err
		}
		out, err = signal.Resample(xs, ys, s.Dt, s.Steps, e.Scale)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown excitation kind %q", ErrInvalid, e.Kind)
	}

	if e.Amplitude != 1 {
		a := float32(e.Amplitude)
		for i := range out {
			out[i] *= a
		}
	}
	return out, nil
}

func (s *Scenario) resolve(file string) string {
	if filepath.IsAbs(file) || s.Path == "" {
		return file
	}
	return filepath.Join(filepath.Dir(s.Path), file)
}
