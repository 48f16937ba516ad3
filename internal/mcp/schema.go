package mcp

import (
	"time"

	"github.com/nvandessel/fitgen/internal/history"
	"github.com/nvandessel/fitgen/internal/results"
	"github.com/nvandessel/fitgen/internal/session"
)

// FitRenderInput defines the input for fit_render tool.
type FitRenderInput struct {
	Scenario string `json:"scenario" jsonschema:"Scenario file (.yaml, .yml or .hcl), relative to the project root"`
	Template string `json:"template,omitempty" jsonschema:"Custom kernel template file (default: built-in template)"`
}

// FitRenderOutput defines the output for fit_render tool.
type FitRenderOutput struct {
	Source     string   `json:"source" jsonschema:"Rendered kernel source"`
	Hash       string   `json:"hash" jsonschema:"sha256 of the rendered source"`
	Dims       [3]int   `json:"dims" jsonschema:"Node counts along x, y and z"`
	PortPath   [][3]int `json:"port_path" jsonschema:"Lattice nodes of the port from source to destination"`
	FeedOffset int      `json:"feed_offset" jsonschema:"Flat offset of the feed node"`
	FeedAxis   int      `json:"feed_axis" jsonschema:"Field component of the feed edge (0=x, 1=y, 2=z)"`
}

// FitSimulateInput defines the input for fit_simulate tool.
type FitSimulateInput struct {
	Scenario  string   `json:"scenario" jsonschema:"Scenario file (.yaml, .yml or .hcl), relative to the project root"`
	Steps     int      `json:"steps,omitempty" jsonschema:"Override the scenario step count"`
	OutputDir string   `json:"output_dir,omitempty" jsonschema:"Directory for result files (default: the fitgen runs directory)"`
	Formats   []string `json:"formats,omitempty" jsonschema:"Result files to write: csv, png, svg, archive (default: csv and archive)"`
}

// FitSimulateOutput defines the output for fit_simulate tool.
type FitSimulateOutput struct {
	SessionID   string          `json:"session_id" jsonschema:"ID of the session that ran the scenario"`
	Backend     string          `json:"backend" jsonschema:"Execution backend (native or interp)"`
	Dims        [3]int          `json:"dims" jsonschema:"Node counts along x, y and z"`
	PortLength  int             `json:"port_length" jsonschema:"Number of edges on the port path"`
	Steps       int             `json:"steps" jsonschema:"Number of steps executed"`
	Stats       session.Stats   `json:"stats" jsonschema:"Throughput diagnostics"`
	Summary     results.Summary `json:"summary" jsonschema:"Statistics of the feed signal"`
	Preview     []float32       `json:"preview,omitempty" jsonschema:"First samples of the feed signal"`
	CSVPath     string          `json:"csv_path,omitempty" jsonschema:"Written CSV file"`
	PlotPath    string          `json:"plot_path,omitempty" jsonschema:"Written plot file"`
	ArchivePath string          `json:"archive_path,omitempty" jsonschema:"Written run archive"`
	Message     string          `json:"message" jsonschema:"Human-readable result message"`
}

// FitHistoryInput defines the input for fit_history tool.
type FitHistoryInput struct {
	Limit  int  `json:"limit,omitempty" jsonschema:"Maximum entries to return (default: 20)"`
	Builds bool `json:"builds,omitempty" jsonschema:"List kernel builds instead of runs (default: false)"`
}

// FitHistoryOutput defines the output for fit_history tool.
type FitHistoryOutput struct {
	Runs   []RunSummary   `json:"runs,omitempty" jsonschema:"Recent stepping runs, newest first"`
	Builds []BuildSummary `json:"builds,omitempty" jsonschema:"Recent kernel builds, newest first"`
	Count  int            `json:"count" jsonschema:"Number of entries returned"`
}

// RunSummary provides a simplified view of a ledger run.
type RunSummary struct {
	SessionID       string  `json:"session_id"`
	Backend         string  `json:"backend"`
	Cells           int     `json:"cells"`
	Steps           int     `json:"steps"`
	ElapsedMs       int64   `json:"elapsed_ms"`
	MCellsPerSecond float64 `json:"mcells_per_second"`
	CreatedAt       string  `json:"created_at"`
}

// BuildSummary provides a simplified view of a ledger build.
type BuildSummary struct {
	SessionID  string `json:"session_id"`
	SourceHash string `json:"source_hash"`
	ExitCode   int    `json:"exit_code"`
	DurationMs int64  `json:"duration_ms"`
	CreatedAt  string `json:"created_at"`
}

func runSummary(r history.Run) RunSummary {
	return RunSummary{
		SessionID:       r.SessionID,
		Backend:         r.Backend,
		Cells:           r.Cells,
		Steps:           r.Steps,
		ElapsedMs:       r.Elapsed.Milliseconds(),
		MCellsPerSecond: r.CellsPerSecond / 1e6,
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
	}
}

func buildSummary(b history.Build) BuildSummary {
	return BuildSummary{
		SessionID:  b.SessionID,
		SourceHash: b.SourceHash,
		ExitCode:   b.ExitCode,
		DurationMs: b.Duration.Milliseconds(),
		CreatedAt:  b.CreatedAt.Format(time.RFC3339),
	}
}
