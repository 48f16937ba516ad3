package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/fitgen/internal/grid"
	"github.com/nvandessel/fitgen/internal/kernel"
	"github.com/nvandessel/fitgen/internal/port"
	"github.com/nvandessel/fitgen/internal/results"
	"github.com/nvandessel/fitgen/internal/sanitize"
	"github.com/nvandessel/fitgen/internal/scenario"
	"github.com/nvandessel/fitgen/internal/session"
)

// Outputs selects what a run writes. Files are named <Stem>.csv,
// <Stem><PlotExt> and <Stem>.fitrun inside Dir.
type Outputs struct {
	Dir     string
	Stem    string
	CSV     bool
	Plot    bool
	PlotExt string
	Archive bool
}

// Any reports whether at least one output is requested.
func (o Outputs) Any() bool {
	return o.CSV || o.Plot || o.Archive
}

// Result describes a finished run.
type Result struct {
	Scenario   string          `json:"scenario"`
	SessionID  string          `json:"session_id"`
	Backend    string          `json:"backend"`
	Dims       [3]int          `json:"dims"`
	PortLength int             `json:"port_length"`
	FeedOffset int             `json:"feed_offset"`
	FeedAxis   int             `json:"feed_axis"`
	Steps      int             `json:"steps"`
	Stats      session.Stats   `json:"stats"`
	Summary    results.Summary `json:"summary"`

	CSVPath     string `json:"csv_path,omitempty"`
	PlotPath    string `json:"plot_path,omitempty"`
	ArchivePath string `json:"archive_path,omitempty"`

	Source []float32 `json:"-"`
	Output []float32 `json:"-"`
}

// Runner executes scenarios against a session manager.
type Runner struct {
	manager *session.Manager
	logger  *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(m *session.Manager, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{manager: m, logger: logger}
}

// RequestFor builds the session request for sc, reading material files.
func RequestFor(sc *scenario.Scenario) (session.Request, error) {
	xs, ys, zs := sc.Axes()
	g, err := grid.New(xs, ys, zs)
	if err != nil {
		return session.Request{}, err
	}
	eps, mue, err := sc.LoadMaterials(g)
	if err != nil {
		return session.Request{}, err
	}
	return session.Request{
		Xs: xs, Ys: ys, Zs: zs,
		Source:    sc.Source(),
		Dest:      sc.Dest(),
		Tolerance: sc.Port.Tolerance,
		Eps:       eps,
		Mue:       mue,
		Dt:        float32(sc.Dt),
	}, nil
}

// Run opens a session for sc, steps the excitation through it, writes the
// requested outputs and shuts the session down.
func (r *Runner) Run(ctx context.Context, sc *scenario.Scenario, out Outputs) (_ *Result, retErr error) {
	src, err := sc.Samples()
	if err != nil {
		return nil, err
	}
	req, err := RequestFor(sc)
	if err != nil {
		return nil, err
	}

	s, err := r.manager.Open(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() {
		retErr = errors.Join(retErr, s.Shutdown())
	}()

	res := &Result{
		Scenario:   sc.Name,
		SessionID:  s.ID,
		Backend:    s.Backend(),
		Dims:       [3]int{s.Grid.NX(), s.Grid.NY(), s.Grid.NZ()},
		PortLength: s.Port.Length(),
		FeedOffset: s.Port.FeedOffset(s.Grid),
		FeedAxis:   s.Port.FeedAxis(),
		Source:     src,
	}
	path := make([][3]int, len(s.Port.Path))
	for i, n := range s.Port.Path {
		path[i] = [3]int{n.X, n.Y, n.Z}
	}

	output, stats, err := s.StepBatch(ctx, src)
	if err != nil {
		return nil, err
	}
	res.Output = output
	res.Steps = len(output)
	res.Stats = stats
	res.Summary = results.Summarize(output)

	if err := r.write(res, sc, path, out); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Runner) write(res *Result, sc *scenario.Scenario, path [][3]int, out Outputs) error {
	if !out.Any() {
		return nil
	}
	stem := out.Stem
	if stem == "" {
		stem = sanitize.FileStem(sc.Name)
	}
	if err := os.MkdirAll(out.Dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	if out.CSV {
		res.CSVPath = filepath.Join(out.Dir, stem+".csv")
		f, err := os.Create(res.CSVPath)
		if err != nil {
			return fmt.Errorf("creating csv: %w", err)
		}
		if err := results.WriteCSV(f, res.Source, res.Output); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing csv: %w", err)
		}
	}

	if out.Plot {
		ext := out.PlotExt
		if ext == "" {
			ext = ".png"
		}
		res.PlotPath = filepath.Join(out.Dir, stem+ext)
		if err := results.Plot(res.PlotPath, sanitize.Label(sc.Name), sc.Dt, res.Source, res.Output); err != nil {
			return err
		}
	}

	if out.Archive {
		res.ArchivePath = filepath.Join(out.Dir, stem+results.ArchiveExt)
		run := &results.Run{
			Scenario:   sc.Name,
			SessionID:  res.SessionID,
			Backend:    res.Backend,
			CreatedAt:  time.Now().UTC(),
			Dt:         sc.Dt,
			Dims:       res.Dims,
			PortPath:   path,
			FeedOffset: res.FeedOffset,
			FeedAxis:   res.FeedAxis,
			Source:     res.Source,
			Output:     res.Output,
			Summary:    res.Summary,
		}
		if err := results.WriteArchive(res.ArchivePath, run, map[string]string{"scenario_path": sc.Path}); err != nil {
			return err
		}
	}

	r.logger.Debug("run outputs written", "csv", res.CSVPath, "plot", res.PlotPath, "archive", res.ArchivePath)
	return nil
}

// Rendered is a kernel source generated for a scenario without building it.
type Rendered struct {
	Source string
	Hash   string
	Grid   *grid.Grid
	Port   *port.Port
}

// Render resolves sc's port and renders tpl (the built-in template when
// empty) for it.
func Render(sc *scenario.Scenario, tpl string) (*Rendered, error) {
	xs, ys, zs := sc.Axes()
	g, err := grid.New(xs, ys, zs)
	if err != nil {
		return nil, err
	}
	p, err := port.Find(g, sc.Source(), sc.Dest(), sc.Port.Tolerance)
	if err != nil {
		return nil, err
	}
	if tpl == "" {
		tpl = kernel.DefaultTemplate()
	}
	src := kernel.Render(g, p, tpl)
	return &Rendered{Source: src, Hash: kernel.Hash(src), Grid: g, Port: p}, nil
}
