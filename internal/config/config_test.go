package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvandessel/fitgen/internal/build"
)

func TestDefault(t *testing.T) {
	config := Default()

	if config.Build.Compiler != "cc" {
		t.Errorf("expected Compiler 'cc', got '%s'", config.Build.Compiler)
	}
	if len(config.Build.SharedFlags) != 3 || config.Build.SharedFlags[0] != "-shared" {
		t.Errorf("unexpected SharedFlags %v", config.Build.SharedFlags)
	}
	if config.Build.KeepSlots != 8 {
		t.Errorf("expected KeepSlots 8, got %d", config.Build.KeepSlots)
	}
	if config.Solver.Backend != "native" {
		t.Errorf("expected Backend 'native', got '%s'", config.Solver.Backend)
	}
	if config.Solver.Tolerance != 1e-3 {
		t.Errorf("expected Tolerance 1e-3, got %g", config.Solver.Tolerance)
	}
	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}
	if !config.History.Enabled {
		t.Error("expected History.Enabled to be true by default")
	}

	// Default must not alias the package-level flag slice.
	config.Build.SharedFlags[0] = "-static"
	if build.DefaultSharedFlags[0] != "-shared" {
		t.Error("Default() aliases build.DefaultSharedFlags")
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
build:
  compiler: clang
  shared_flags: ["-shared", "-fPIC", "-O3", "-march=native"]
  build_root: /tmp/fit-slots
  keep_slots: 3
  max_slot_age: 12h

solver:
  backend: interp
  tolerance: 0.01

logging:
  level: debug

history:
  enabled: false
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Build.Compiler != "clang" {
		t.Errorf("expected Compiler 'clang', got '%s'", config.Build.Compiler)
	}
	if len(config.Build.SharedFlags) != 4 || config.Build.SharedFlags[3] != "-march=native" {
		t.Errorf("unexpected SharedFlags %v", config.Build.SharedFlags)
	}
	if config.Build.BuildRoot != "/tmp/fit-slots" {
		t.Errorf("expected BuildRoot '/tmp/fit-slots', got '%s'", config.Build.BuildRoot)
	}
	if config.Build.KeepSlots != 3 {
		t.Errorf("expected KeepSlots 3, got %d", config.Build.KeepSlots)
	}
	if config.Solver.Backend != "interp" {
		t.Errorf("expected Backend 'interp', got '%s'", config.Solver.Backend)
	}
	if config.Solver.Tolerance != 0.01 {
		t.Errorf("expected Tolerance 0.01, got %g", config.Solver.Tolerance)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("expected Logging.Level 'debug', got '%s'", config.Logging.Level)
	}
	if config.History.Enabled {
		t.Error("expected History.Enabled false")
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadFromFile_PartialKeepsDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("solver:\n  backend: interp\n"), 0600); err != nil {
		t.Fatal(err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.Build.Compiler != "cc" {
		t.Errorf("Compiler = %q, want default cc", config.Build.Compiler)
	}
	if config.Solver.Tolerance != 1e-3 {
		t.Errorf("Tolerance = %g, want default", config.Solver.Tolerance)
	}
}

func TestLoadFromFile_EnvExpansion(t *testing.T) {
	t.Setenv("FIT_TEST_CC", "/opt/llvm/bin/clang")
	t.Setenv("FIT_TEST_ROOT", "/scratch")

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := "build:\n  compiler: ${FIT_TEST_CC}\n  build_root: ${FIT_TEST_ROOT}/slots\n"
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.Build.Compiler != "/opt/llvm/bin/clang" {
		t.Errorf("Compiler = %q, want expanded path", config.Build.Compiler)
	}
	if config.Build.BuildRoot != "/scratch/slots" {
		t.Errorf("BuildRoot = %q, want /scratch/slots", config.Build.BuildRoot)
	}
}

func TestLoadPath_AppliesEnv(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "fit.yaml")
	if err := os.WriteFile(configPath, []byte("solver:\n  backend: interp\nlogging:\n  level: debug\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FITGEN_LOG_LEVEL", "trace")

	config, err := LoadPath(configPath)
	if err != nil {
		t.Fatalf("LoadPath failed: %v", err)
	}
	if config.Solver.Backend != "interp" {
		t.Errorf("Backend = %q, want interp from file", config.Solver.Backend)
	}
	if config.Logging.Level != "trace" {
		t.Errorf("Level = %q, want env override trace", config.Logging.Level)
	}

	if _, err := LoadPath(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_WorkDirFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("FITGEN_HOME", home)
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte("build:\n  keep_slots: 2\n"), 0600); err != nil {
		t.Fatal(err)
	}

	config, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Build.KeepSlots != 2 {
		t.Errorf("KeepSlots = %d, want 2", config.Build.KeepSlots)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FITGEN_HOME", t.TempDir())
	t.Setenv("FITGEN_COMPILER", "gcc")
	t.Setenv("FITGEN_SHARED_FLAGS", "-shared -fPIC -O1")
	t.Setenv("FITGEN_BUILD_ROOT", "/var/fit")
	t.Setenv("FITGEN_KEEP_SLOTS", "4")
	t.Setenv("FITGEN_BACKEND", "interp")
	t.Setenv("FITGEN_TOLERANCE", "0.5")
	t.Setenv("FITGEN_HISTORY", "false")
	t.Setenv("FITGEN_LOG_LEVEL", "trace")

	config, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if config.Build.Compiler != "gcc" {
		t.Errorf("Compiler = %q, want gcc", config.Build.Compiler)
	}
	if len(config.Build.SharedFlags) != 3 || config.Build.SharedFlags[2] != "-O1" {
		t.Errorf("SharedFlags = %v", config.Build.SharedFlags)
	}
	if config.Build.BuildRoot != "/var/fit" {
		t.Errorf("BuildRoot = %q, want /var/fit", config.Build.BuildRoot)
	}
	if config.Build.KeepSlots != 4 {
		t.Errorf("KeepSlots = %d, want 4", config.Build.KeepSlots)
	}
	if config.Solver.Backend != "interp" {
		t.Errorf("Backend = %q, want interp", config.Solver.Backend)
	}
	if config.Solver.Tolerance != 0.5 {
		t.Errorf("Tolerance = %g, want 0.5", config.Solver.Tolerance)
	}
	if config.History.Enabled {
		t.Error("History.Enabled should be false")
	}
	if config.Logging.Level != "trace" {
		t.Errorf("Level = %q, want trace", config.Logging.Level)
	}
}

func TestEnvOverrides_IgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("FITGEN_HOME", t.TempDir())
	t.Setenv("FITGEN_KEEP_SLOTS", "many")
	t.Setenv("FITGEN_TOLERANCE", "tiny")

	config, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if config.Build.KeepSlots != 8 || config.Solver.Tolerance != 1e-3 {
		t.Errorf("malformed env changed config: keep=%d tol=%g", config.Build.KeepSlots, config.Solver.Tolerance)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*FitConfig)
		wantErr bool
	}{
		{"defaults", func(c *FitConfig) {}, false},
		{"empty compiler", func(c *FitConfig) { c.Build.Compiler = " " }, true},
		{"negative keep", func(c *FitConfig) { c.Build.KeepSlots = -1 }, true},
		{"bad age", func(c *FitConfig) { c.Build.MaxSlotAge = "soon" }, true},
		{"empty age", func(c *FitConfig) { c.Build.MaxSlotAge = "" }, false},
		{"unknown backend", func(c *FitConfig) { c.Solver.Backend = "opencl" }, true},
		{"interp backend", func(c *FitConfig) { c.Solver.Backend = "interp" }, false},
		{"zero tolerance", func(c *FitConfig) { c.Solver.Tolerance = 0 }, true},
		{"bad level", func(c *FitConfig) { c.Logging.Level = "verbose" }, true},
		{"empty level", func(c *FitConfig) { c.Logging.Level = "" }, false},
		{"warn level", func(c *FitConfig) { c.Logging.Level = "warn" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolvedPaths(t *testing.T) {
	c := Default()
	if got := c.BuildRootDir("/w"); got != filepath.Join("/w", "build") {
		t.Errorf("BuildRootDir = %q", got)
	}
	if got := c.HistoryPath("/w"); got != filepath.Join("/w", "history.db") {
		t.Errorf("HistoryPath = %q", got)
	}

	c.Build.BuildRoot = "/slots"
	c.History.Path = "/db/h.db"
	if got := c.BuildRootDir("/w"); got != "/slots" {
		t.Errorf("BuildRootDir override = %q", got)
	}
	if got := c.HistoryPath("/w"); got != "/db/h.db" {
		t.Errorf("HistoryPath override = %q", got)
	}
}

func TestRetention(t *testing.T) {
	tests := []struct {
		name string
		keep int
		age  string
		want string
	}{
		{"both", 3, "7d", "composite"},
		{"count only", 3, "", "count"},
		{"age only", 0, "1h", "age"},
		{"none", 0, "", "nil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			c.Build.KeepSlots = tt.keep
			c.Build.MaxSlotAge = tt.age

			policy, err := c.Retention()
			if err != nil {
				t.Fatal(err)
			}
			var got string
			switch p := policy.(type) {
			case nil:
				got = "nil"
			case *build.CountPolicy:
				got = "count"
				if p.MaxCount != tt.keep {
					t.Errorf("MaxCount = %d, want %d", p.MaxCount, tt.keep)
				}
			case *build.AgePolicy:
				got = "age"
				if p.MaxAge != time.Hour {
					t.Errorf("MaxAge = %v, want 1h", p.MaxAge)
				}
			case *build.CompositePolicy:
				got = "composite"
			}
			if got != tt.want {
				t.Errorf("Retention() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLoadFromFile_NotFound(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("build: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(configPath); err == nil {
		t.Error("expected error for invalid YAML")
	}
}
