// Package build persists rendered kernel source and compiles it into a
// loadable module with an external native toolchain.
//
// Each build writes fixed file names inside its directory and overwrites
// whatever a previous build left there. Two builds sharing one directory at
// the same time corrupt each other; callers give every session its own slot
// (see SlotDir).
package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/nvandessel/fitgen/internal/kernel"
)

// Fixed artifact names inside a build directory.
const (
	SourceName = "tpl.c"
	LogName    = "tpl.log"
	IncludeDir = "include"
)

// ArtifactName returns the module file name for the host platform.
func ArtifactName() string {
	switch runtime.GOOS {
	case "windows":
		return "tpl.dll"
	case "darwin":
		return "tpl.dylib"
	default:
		return "tpl.so"
	}
}

// DefaultCompiler is used when no compiler is configured.
const DefaultCompiler = "cc"

// DefaultSharedFlags asks a gcc/clang style driver for a shared module.
var DefaultSharedFlags = []string{"-shared", "-fPIC", "-O2"}

// CompileError reports a non-zero compiler exit.
type CompileError struct {
	ExitCode int
	Command  string
	LogPath  string
	Log      string
}

func (e *CompileError) Error() string {
	msg := fmt.Sprintf("compile failed: exit code %d, cmd: %s, log: %s", e.ExitCode, e.Command, e.LogPath)
	if tail := lastLines(e.Log, 20); tail != "" {
		msg += "\n" + tail
	}
	return msg
}

// Result describes one compiler invocation.
type Result struct {
	ExitCode     int
	Command      string
	SourcePath   string
	ArtifactPath string
	LogPath      string
	Log          string
	Hash         string
	Duration     time.Duration
}

// Pipeline invokes the native compiler.
type Pipeline struct {
	// Compiler is the driver executable, e.g. "cc", "clang" or "nvcc".
	Compiler string

	// SharedFlags request a shared loadable module from the driver.
	SharedFlags []string

	Logger *slog.Logger
}

// NewPipeline returns a Pipeline, falling back to the defaults for empty values.
func NewPipeline(compiler string, sharedFlags []string, logger *slog.Logger) *Pipeline {
	if compiler == "" {
		compiler = DefaultCompiler
	}
	if len(sharedFlags) == 0 {
		sharedFlags = DefaultSharedFlags
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{Compiler: compiler, SharedFlags: sharedFlags, Logger: logger}
}

// Args returns the compiler argument list for a build in dir.
func (p *Pipeline) Args(dir string) []string {
	args := []string{"-I" + filepath.Join(dir, IncludeDir), filepath.Join(dir, SourceName)}
	args = append(args, p.SharedFlags...)
	return append(args, "-o", filepath.Join(dir, ArtifactName()))
}

// Compile writes src into dir and runs the compiler, blocking until it exits.
// Compiler stdout and stderr both go to the build log. A non-zero exit
// returns the populated Result together with a *CompileError. No timeout is
// applied; ctx only carries the caller's interrupt.
func (p *Pipeline) Compile(ctx context.Context, src, dir string) (*Result, error) {
	if err := os.MkdirAll(filepath.Join(dir, IncludeDir), 0755); err != nil {
		return nil, fmt.Errorf("creating build directory: %w", err)
	}

	res := &Result{
		SourcePath:   filepath.Join(dir, SourceName),
		ArtifactPath: filepath.Join(dir, ArtifactName()),
		LogPath:      filepath.Join(dir, LogName),
		Hash:         kernel.Hash(src),
	}

	if err := os.WriteFile(res.SourcePath, []byte(src), 0644); err != nil {
		return nil, fmt.Errorf("writing kernel source: %w", err)
	}
	headerPath := filepath.Join(dir, IncludeDir, kernel.HeaderName)
	if err := os.WriteFile(headerPath, kernel.Header(), 0644); err != nil {
		return nil, fmt.Errorf("writing kernel header: %w", err)
	}

	logFile, err := os.Create(res.LogPath)
	if err != nil {
		return nil, fmt.Errorf("creating build log: %w", err)
	}

	args := p.Args(dir)
	res.Command = p.Compiler + " " + strings.Join(args, " ")

	cmd := exec.CommandContext(ctx, p.Compiler, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	p.Logger.Debug("compiling kernel", "cmd", res.Command, "hash", res.Hash[:12])
	start := time.Now()
	runErr := cmd.Run()
	res.Duration = time.Since(start)

	if err := logFile.Close(); err != nil {
		return nil, fmt.Errorf("closing build log: %w", err)
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, fmt.Errorf("running compiler %q: %w", p.Compiler, runErr)
		}
		res.ExitCode = exitErr.ExitCode()
	}

	if logData, err := os.ReadFile(res.LogPath); err == nil {
		res.Log = string(logData)
	}

	if res.ExitCode != 0 {
		p.Logger.Warn("kernel compile failed", "exit_code", res.ExitCode, "log", res.LogPath)
		return res, &CompileError{
			ExitCode: res.ExitCode,
			Command:  res.Command,
			LogPath:  res.LogPath,
			Log:      res.Log,
		}
	}

	p.Logger.Info("kernel compiled", "artifact", res.ArtifactPath, "duration", res.Duration.Round(time.Millisecond))
	return res, nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
