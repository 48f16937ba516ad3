package mcp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nvandessel/fitgen/internal/config"
	"github.com/nvandessel/fitgen/internal/history"
	"github.com/nvandessel/fitgen/internal/session"
)

const lineScenario = `
name: line
dt: 0.5
steps: 40
grid:
  x: [0, 1, 2]
  y: [0, 1]
  z: [0, 1]
port:
  source: [0, 0, 0]
  dest: [2, 0, 0]
`

// setupTestServer creates a server on the interp backend with a project
// root holding line.yaml and a work directory with a history ledger.
func setupTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	tmpDir := t.TempDir()
	root := filepath.Join(tmpDir, "project")
	workDir := filepath.Join(tmpDir, "work")
	if err := os.MkdirAll(root, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "line.yaml"), []byte(lineScenario), 0644); err != nil {
		t.Fatal(err)
	}

	ledger, err := history.Open(filepath.Join(workDir, history.DBName))
	if err != nil {
		t.Fatalf("history.Open failed: %v", err)
	}
	t.Cleanup(func() { ledger.Close() })

	fit := config.Default()
	fit.Solver.Backend = session.BackendInterp

	server, err := NewServer(&Config{
		Name:    "test-server",
		Version: "v1.0.0",
		Root:    root,
		WorkDir: workDir,
		Fit:     fit,
		Ledger:  ledger,
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(func() { server.Close() })
	return server, root
}

func TestNewServer(t *testing.T) {
	server, root := setupTestServer(t)

	if server.server == nil {
		t.Error("Server.server is nil")
	}
	if server.manager == nil || server.runner == nil {
		t.Error("session manager not wired")
	}
	if server.root != root {
		t.Errorf("Server.root = %q, want %q", server.root, root)
	}
	if server.auditLogger == nil {
		t.Error("expected auditLogger to be initialized")
	}
	if len(server.toolLimiters) != 3 {
		t.Errorf("toolLimiters = %d, want 3", len(server.toolLimiters))
	}
}

func TestNewServer_Errors(t *testing.T) {
	if _, err := NewServer(&Config{Name: "x"}); err == nil {
		t.Error("expected error without work directory")
	}

	fit := config.Default()
	fit.Solver.Backend = "gpu"
	if _, err := NewServer(&Config{Name: "x", WorkDir: t.TempDir(), Fit: fit}); err == nil {
		t.Error("expected error for unknown backend")
	}

	fit = config.Default()
	fit.Build.MaxSlotAge = "soon"
	if _, err := NewServer(&Config{Name: "x", WorkDir: t.TempDir(), Fit: fit}); err == nil {
		t.Error("expected error for bad max_slot_age")
	}
}

func TestServerClose_Idempotent(t *testing.T) {
	server, _ := setupTestServer(t)

	if err := server.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := server.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
