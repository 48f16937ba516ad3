// Package config provides unified configuration loading for fitgen.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/fitgen/internal/build"
	"github.com/nvandessel/fitgen/internal/constants"
	"gopkg.in/yaml.v3"
)

// FitConfig contains all fitgen configuration settings.
type FitConfig struct {
	// Build contains settings for kernel compilation and build slots.
	Build BuildConfig `json:"build" yaml:"build"`

	// Solver contains settings for the execution backend.
	Solver SolverConfig `json:"solver" yaml:"solver"`

	// Logging contains settings for operational logging and the event trace.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// History contains settings for the run ledger.
	History HistoryConfig `json:"history" yaml:"history"`
}

// BuildConfig configures the native build pipeline.
type BuildConfig struct {
	// Compiler is the C compiler executable. Supports ${VAR} syntax.
	Compiler string `json:"compiler" yaml:"compiler"`

	// SharedFlags are passed to the compiler after the source file. They
	// must produce a position-independent shared object.
	SharedFlags []string `json:"shared_flags" yaml:"shared_flags"`

	// BuildRoot holds one build slot per session. Empty means
	// ~/.fitgen/build. Supports ${VAR} syntax.
	BuildRoot string `json:"build_root,omitempty" yaml:"build_root,omitempty"`

	// KeepSlots is how many build slots a prune keeps. 0 disables the
	// count limit.
	KeepSlots int `json:"keep_slots" yaml:"keep_slots"`

	// MaxSlotAge removes slots older than this ("7d", "12h"). Empty
	// disables the age limit.
	MaxSlotAge string `json:"max_slot_age,omitempty" yaml:"max_slot_age,omitempty"`
}

// SolverConfig configures session execution.
type SolverConfig struct {
	// Backend is "native" (compiled kernel) or "interp" (pure Go).
	Backend string `json:"backend" yaml:"backend"`

	// Tolerance is the default snap distance for port endpoints.
	Tolerance float64 `json:"tolerance" yaml:"tolerance"`
}

// LoggingConfig configures fitgen's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "warn", "info" (default), "debug", or "trace".
	// "debug" enables the event trace in ~/.fitgen/events.jsonl.
	// "trace" additionally echoes generated kernel source and compiler logs.
	Level string `json:"level" yaml:"level"`
}

// HistoryConfig configures the SQLite run ledger.
type HistoryConfig struct {
	// Enabled turns build and run recording on.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path is the database file. Empty means ~/.fitgen/history.db.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Default returns a FitConfig with sensible defaults.
func Default() *FitConfig {
	return &FitConfig{
		Build: BuildConfig{
			Compiler:    build.DefaultCompiler,
			SharedFlags: append([]string(nil), build.DefaultSharedFlags...),
			KeepSlots:   constants.DefaultKeepSlots,
			MaxSlotAge:  constants.DefaultMaxSlotAge,
		},
		Solver: SolverConfig{
			Backend:   constants.DefaultBackend,
			Tolerance: constants.DefaultPortTolerance,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		History: HistoryConfig{
			Enabled: true,
		},
	}
}

// WorkDir returns the fitgen work directory: $FITGEN_HOME when set,
// otherwise ~/.fitgen.
func WorkDir() (string, error) {
	if v := os.Getenv("FITGEN_HOME"); v != "" {
		return v, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, constants.WorkDirName), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.fitgen/config.yaml -> environment variables
func Load() (*FitConfig, error) {
	config := Default()

	if dir, err := WorkDir(); err == nil {
		configPath := filepath.Join(dir, constants.ConfigFileName)
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadPath is Load with an explicit config file in place of the default
// location. Environment overrides still apply.
func LoadPath(path string) (*FitConfig, error) {
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(config)
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*FitConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Build.Compiler = expandEnvVars(config.Build.Compiler)
	config.Build.BuildRoot = expandEnvVars(config.Build.BuildRoot)
	config.History.Path = expandEnvVars(config.History.Path)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *FitConfig) Validate() error {
	if strings.TrimSpace(c.Build.Compiler) == "" {
		return fmt.Errorf("build.compiler must not be empty")
	}

	if c.Build.KeepSlots < 0 {
		return fmt.Errorf("build.keep_slots must be non-negative, got %d", c.Build.KeepSlots)
	}

	if c.Build.MaxSlotAge != "" {
		if _, err := build.ParseDuration(c.Build.MaxSlotAge); err != nil {
			return fmt.Errorf("build.max_slot_age: %w", err)
		}
	}

	validBackends := map[string]bool{"native": true, "interp": true}
	if !validBackends[c.Solver.Backend] {
		return fmt.Errorf("invalid solver backend: %s (valid: native, interp)", c.Solver.Backend)
	}

	if c.Solver.Tolerance <= 0 {
		return fmt.Errorf("solver.tolerance must be positive, got %g", c.Solver.Tolerance)
	}

	validLevels := map[string]bool{"warn": true, "info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: warn, info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// BuildRootDir resolves the build root against workDir.
func (c *FitConfig) BuildRootDir(workDir string) string {
	if c.Build.BuildRoot != "" {
		return c.Build.BuildRoot
	}
	return filepath.Join(workDir, constants.BuildDirName)
}

// HistoryPath resolves the ledger location against workDir.
func (c *FitConfig) HistoryPath(workDir string) string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return filepath.Join(workDir, "history.db")
}

// Retention builds the slot retention policy. It returns nil when both
// limits are disabled.
func (c *FitConfig) Retention() (build.RetentionPolicy, error) {
	var policies []build.RetentionPolicy
	if c.Build.KeepSlots > 0 {
		policies = append(policies, &build.CountPolicy{MaxCount: c.Build.KeepSlots})
	}
	if c.Build.MaxSlotAge != "" {
		age, err := build.ParseDuration(c.Build.MaxSlotAge)
		if err != nil {
			return nil, fmt.Errorf("build.max_slot_age: %w", err)
		}
		policies = append(policies, &build.AgePolicy{MaxAge: age})
	}
	switch len(policies) {
	case 0:
		return nil, nil
	case 1:
		return policies[0], nil
	default:
		return &build.CompositePolicy{Policies: policies}, nil
	}
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *FitConfig) {
	if v := os.Getenv("FITGEN_COMPILER"); v != "" {
		config.Build.Compiler = v
	}

	if v := os.Getenv("FITGEN_SHARED_FLAGS"); v != "" {
		config.Build.SharedFlags = strings.Fields(v)
	}

	if v := os.Getenv("FITGEN_BUILD_ROOT"); v != "" {
		config.Build.BuildRoot = v
	}

	if v := os.Getenv("FITGEN_KEEP_SLOTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Build.KeepSlots = n
		}
	}

	if v := os.Getenv("FITGEN_MAX_SLOT_AGE"); v != "" {
		config.Build.MaxSlotAge = v
	}

	if v := os.Getenv("FITGEN_BACKEND"); v != "" {
		config.Solver.Backend = v
	}

	if v := os.Getenv("FITGEN_TOLERANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Solver.Tolerance = f
		}
	}

	if v := os.Getenv("FITGEN_HISTORY"); v != "" {
		config.History.Enabled = v == "true" || v == "1"
	}

	if v := os.Getenv("FITGEN_HISTORY_PATH"); v != "" {
		config.History.Path = v
	}

	if v := os.Getenv("FITGEN_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
