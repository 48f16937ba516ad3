package session

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/nvandessel/fitgen/internal/build"
	"github.com/nvandessel/fitgen/internal/grid"
	"github.com/nvandessel/fitgen/internal/history"
	"github.com/nvandessel/fitgen/internal/port"
)

type memLedger struct {
	memRecorder
	builds []history.Build
}

func (l *memLedger) RecordBuild(ctx context.Context, b history.Build) error {
	l.builds = append(l.builds, b)
	return nil
}

func lineRequest() Request {
	xs := []float64{0, 1, 2}
	ys := []float64{0, 1}
	zs := []float64{0, 1}
	n := 3 * len(xs) * len(ys) * len(zs)
	ones := make([]float32, n)
	for i := range ones {
		ones[i] = 1
	}
	return Request{
		Xs: xs, Ys: ys, Zs: zs,
		Source: grid.Point{},
		Dest:   grid.Point{X: 2},
		Eps:    ones,
		Mue:    ones,
		Dt:     0.5,
	}
}

func TestNewManager_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ManagerConfig
		wantErr bool
	}{
		{"interp without build root", ManagerConfig{Backend: BackendInterp}, false},
		{"native with build root", ManagerConfig{Backend: BackendNative, BuildRoot: t.TempDir()}, false},
		{"native default needs build root", ManagerConfig{}, true},
		{"unknown backend", ManagerConfig{Backend: "cuda"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewManager() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestManager_OpenInterp(t *testing.T) {
	ledger := &memLedger{}
	m, err := NewManager(ManagerConfig{Backend: BackendInterp, Ledger: ledger})
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	s, err := m.Open(context.Background(), lineRequest())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if s.State() != Initialized {
		t.Errorf("State() = %v, want initialized", s.State())
	}
	if s.Backend() != BackendInterp {
		t.Errorf("Backend() = %q, want interp", s.Backend())
	}
	if s.Slot != "" {
		t.Errorf("interp session has slot %q", s.Slot)
	}

	got, ok := m.Get(s.ID)
	if !ok || got != s {
		t.Fatal("Get() did not return the opened session")
	}

	out, _, err := s.StepBatch(context.Background(), []float32{1})
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != -0.5 {
		t.Errorf("first step = %g, want -0.5", out[0])
	}
	if len(ledger.runs) != 1 {
		t.Errorf("recorded runs = %d, want 1", len(ledger.runs))
	}

	if err := s.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Get(s.ID); ok {
		t.Error("session still registered after Shutdown")
	}
}

func TestManager_OpenFailures(t *testing.T) {
	m, err := NewManager(ManagerConfig{Backend: BackendInterp})
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	tests := []struct {
		name   string
		mutate func(*Request)
		want   error
	}{
		{"unsorted axis", func(r *Request) { r.Xs = []float64{0, 2, 1} }, grid.ErrConfiguration},
		{"source off grid", func(r *Request) { r.Source = grid.Point{X: 0.5} }, port.ErrNotFound},
		{"degenerate port", func(r *Request) { r.Dest = grid.Point{} }, port.ErrDegeneratePort},
		{"short material", func(r *Request) { r.Eps = r.Eps[:3] }, grid.ErrConfiguration},
		{"zero dt", func(r *Request) { r.Dt = 0 }, grid.ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := lineRequest()
			tt.mutate(&req)
			s, err := m.Open(context.Background(), req)
			if !errors.Is(err, tt.want) {
				t.Errorf("Open() error = %v, want %v", err, tt.want)
			}
			if s != nil {
				t.Error("Open() returned a session on failure")
			}
		})
	}

	if ids := m.Sessions(); len(ids) != 0 {
		t.Errorf("Sessions() = %v, want none after failures", ids)
	}
}

func TestManager_Close(t *testing.T) {
	m, err := NewManager(ManagerConfig{Backend: BackendInterp})
	if err != nil {
		t.Fatal(err)
	}

	var opened []*Session
	for i := 0; i < 3; i++ {
		s, err := m.Open(context.Background(), lineRequest())
		if err != nil {
			t.Fatal(err)
		}
		opened = append(opened, s)
	}
	if got := len(m.Sessions()); got != 3 {
		t.Fatalf("Sessions() = %d, want 3", got)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	for _, s := range opened {
		if s.State() != ShutDown {
			t.Errorf("session %s state = %v, want shut_down", s.ID, s.State())
		}
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := m.Open(context.Background(), lineRequest()); err == nil {
		t.Error("Open() after Close should fail")
	}
}

func TestManager_OpenNative(t *testing.T) {
	if _, err := exec.LookPath(build.DefaultCompiler); err != nil {
		t.Skip("no C compiler on PATH")
	}

	root := t.TempDir()
	ledger := &memLedger{}
	m, err := NewManager(ManagerConfig{
		Backend:   BackendNative,
		BuildRoot: root,
		Ledger:    ledger,
		Retention: &build.CountPolicy{MaxCount: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	first, err := m.Open(context.Background(), lineRequest())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if first.Slot != build.SlotDir(root, first.ID) {
		t.Errorf("Slot = %q, want per-session slot", first.Slot)
	}
	if _, err := os.Stat(filepath.Join(first.Slot, build.ArtifactName())); err != nil {
		t.Errorf("artifact missing: %v", err)
	}
	if len(ledger.builds) != 1 || ledger.builds[0].ExitCode != 0 {
		t.Errorf("recorded builds = %+v", ledger.builds)
	}

	mf, err := LoadManifest(first.Slot)
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	if mf.ID != first.ID || mf.Length != 2 || mf.Backend != BackendNative {
		t.Errorf("manifest = %+v", mf)
	}

	out, err := first.Step(1)
	if err != nil {
		t.Fatal(err)
	}
	if out != -0.5 {
		t.Errorf("first native step = %g, want -0.5", out)
	}

	// A second open session protects the first slot from count retention.
	second, err := m.Open(context.Background(), lineRequest())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(first.Slot); err != nil {
		t.Errorf("slot of open session was pruned: %v", err)
	}
	if second.Slot == first.Slot {
		t.Error("sessions share a build slot")
	}
}
