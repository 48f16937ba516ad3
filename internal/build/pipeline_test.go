package build

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/fitgen/internal/grid"
	"github.com/nvandessel/fitgen/internal/kernel"
	"github.com/nvandessel/fitgen/internal/port"
)

func requireCompiler(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath(DefaultCompiler); err != nil {
		t.Skipf("%s not on PATH", DefaultCompiler)
	}
}

func TestNewPipelineDefaults(t *testing.T) {
	p := NewPipeline("", nil, nil)
	if p.Compiler != DefaultCompiler {
		t.Errorf("Compiler = %q, want %q", p.Compiler, DefaultCompiler)
	}
	if len(p.SharedFlags) != len(DefaultSharedFlags) {
		t.Errorf("SharedFlags = %v", p.SharedFlags)
	}
	if p.Logger == nil {
		t.Error("Logger is nil")
	}
}

func TestArgs(t *testing.T) {
	p := NewPipeline("nvcc", []string{"--shared"}, nil)
	dir := filepath.Join("b", "slot")
	args := p.Args(dir)

	want := []string{
		"-I" + filepath.Join(dir, IncludeDir),
		filepath.Join(dir, SourceName),
		"--shared",
		"-o", filepath.Join(dir, ArtifactName()),
	}
	if strings.Join(args, " ") != strings.Join(want, " ") {
		t.Errorf("Args = %v, want %v", args, want)
	}
}

func TestCompileInvalidSource(t *testing.T) {
	requireCompiler(t)
	dir := t.TempDir()

	res, err := NewPipeline("", nil, nil).Compile(context.Background(), "this is not C;\n", dir)

	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CompileError, got %v", err)
	}
	if res == nil || res.ExitCode == 0 {
		t.Fatalf("expected non-zero exit code, got %+v", res)
	}
	if strings.TrimSpace(res.Log) == "" {
		t.Error("expected compiler diagnostics in the log")
	}
	if ce.LogPath != filepath.Join(dir, LogName) {
		t.Errorf("LogPath = %q", ce.LogPath)
	}
	if !strings.Contains(ce.Error(), "exit code") {
		t.Errorf("error message lacks exit code: %v", ce)
	}
}

func TestCompileDefaultTemplate(t *testing.T) {
	requireCompiler(t)
	g, err := grid.New([]float64{0, 1, 2}, []float64{0, 1}, []float64{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	p, err := port.Find(g, grid.Point{}, grid.Point{X: 2}, port.DefaultTolerance)
	if err != nil {
		t.Fatal(err)
	}
	src := kernel.Render(g, p, kernel.DefaultTemplate())
	dir := t.TempDir()

	res, err := NewPipeline("", nil, nil).Compile(context.Background(), src, dir)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d", res.ExitCode)
	}
	if _, err := os.Stat(res.ArtifactPath); err != nil {
		t.Errorf("artifact missing: %v", err)
	}
	if res.Hash != kernel.Hash(src) {
		t.Error("Hash does not match source")
	}

	// A second build in the same slot overwrites the source file.
	if _, err := NewPipeline("", nil, nil).Compile(context.Background(), src+"\n", dir); err != nil {
		t.Fatalf("second Compile: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, SourceName))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != src+"\n" {
		t.Error("source file was not overwritten")
	}
}

func TestCompileMissingCompiler(t *testing.T) {
	p := NewPipeline("fitgen-no-such-compiler", nil, nil)
	res, err := p.Compile(context.Background(), "int x;\n", t.TempDir())
	if err == nil {
		t.Fatal("expected error for missing compiler")
	}
	var ce *CompileError
	if errors.As(err, &ce) {
		t.Errorf("missing compiler should not be a CompileError: %v", err)
	}
	if res != nil {
		t.Errorf("expected nil result, got %+v", res)
	}
}
