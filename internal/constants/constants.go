// Package constants provides named constants used throughout fitgen.
// This centralizes magic numbers for better maintainability and documentation.
package constants

// Work directory layout
const (
	// WorkDirName is the per-user directory holding config, build slots,
	// history and the event trace.
	WorkDirName = ".fitgen"

	// ConfigFileName is the YAML config file inside the work directory.
	ConfigFileName = "config.yaml"

	// BuildDirName is the default build root inside the work directory.
	BuildDirName = "build"
)

// Build slot retention defaults
const (
	// DefaultKeepSlots is how many build slots survive a prune.
	DefaultKeepSlots = 8

	// DefaultMaxSlotAge is the oldest a build slot may get before a prune
	// removes it, in ParseDuration syntax.
	DefaultMaxSlotAge = "7d"
)

// Solver defaults
const (
	// DefaultBackend selects the compiled kernel.
	DefaultBackend = "native"

	// DefaultPortTolerance is the distance within which a port endpoint
	// snaps to a grid node.
	DefaultPortTolerance = 1e-3

	// DefaultSteps is the run length when a scenario names none.
	DefaultSteps = 1000
)

// Output limits
const (
	// DefaultHistoryLimit is how many rows history listings return.
	DefaultHistoryLimit = 20

	// MaxHistoryLimit caps history listings requested over MCP.
	MaxHistoryLimit = 500

	// MaxMCPSteps caps the steps a single fit_simulate call may run.
	MaxMCPSteps = 1_000_000
)
