package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/fitgen/internal/constants"
	"github.com/nvandessel/fitgen/internal/kernel"
	"github.com/nvandessel/fitgen/internal/pathutil"
	"github.com/nvandessel/fitgen/internal/ratelimit"
	"github.com/nvandessel/fitgen/internal/scenario"
	"github.com/nvandessel/fitgen/internal/simulation"
)

// previewSamples is how many feed samples fit_simulate returns inline.
const previewSamples = 32

// Resource URIs.
const (
	templateURI = "fitgen://kernel/template"
	headerURI   = "fitgen://kernel/header"
)

// registerTools registers all fitgen MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolRender,
		Description: "Resolve a scenario's port and render the specialized kernel source without compiling it",
	}, s.handleFitRender)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolSimulate,
		Description: "Build and run a scenario, writing the feed signal as CSV, plot and run archive",
	}, s.handleFitSimulate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolHistory,
		Description: "List recent stepping runs or kernel builds from the history ledger",
	}, s.handleFitHistory)
}

// registerResources exposes the built-in kernel template and ABI header.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         templateURI,
		Name:        "fitgen-kernel-template",
		Description: "Built-in kernel template. Placeholders $nx, $ny, $nz, $sg, $sd and _$i are substituted per grid and port.",
		MIMEType:    "text/x-c",
	}, s.handleTemplateResource)

	s.server.AddResource(&sdk.Resource{
		URI:         headerURI,
		Name:        "fitgen-kernel-abi",
		Description: "C header declaring the init/step/quit entry points every kernel exports.",
		MIMEType:    "text/x-c",
	}, s.handleHeaderResource)
}

func (s *Server) handleTemplateResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{URI: templateURI, MIMEType: "text/x-c", Text: kernel.DefaultTemplate()},
		},
	}, nil
}

func (s *Server) handleHeaderResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{URI: headerURI, MIMEType: "text/x-c", Text: string(kernel.Header())},
		},
	}, nil
}

// resolvePath makes a caller-supplied path absolute against the project
// root and checks it stays inside the allowed directories.
func (s *Server) resolvePath(p string) (string, error) {
	if !filepath.IsAbs(p) && s.root != "" {
		p = filepath.Join(s.root, p)
	}
	if err := pathutil.ValidatePath(p, pathutil.AllowedDirs(s.workDir, s.root)); err != nil {
		return "", err
	}
	return filepath.Abs(p)
}

func (s *Server) loadScenario(p string) (*scenario.Scenario, error) {
	if p == "" {
		return nil, fmt.Errorf("'scenario' parameter is required")
	}
	path, err := s.resolvePath(p)
	if err != nil {
		return nil, fmt.Errorf("scenario path rejected: %w", err)
	}
	return scenario.LoadWithDefaults(path, scenario.Defaults{Tolerance: s.fit.Solver.Tolerance})
}

// handleFitRender implements the fit_render tool.
func (s *Server) handleFitRender(ctx context.Context, req *sdk.CallToolRequest, args FitRenderInput) (_ *sdk.CallToolResult, _ FitRenderOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolRender, start, retErr, sanitizeToolParams(ratelimit.ToolRender, map[string]interface{}{
			"scenario": args.Scenario, "template": args.Template,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolRender); err != nil {
		return nil, FitRenderOutput{}, err
	}

	sc, err := s.loadScenario(args.Scenario)
	if err != nil {
		return nil, FitRenderOutput{}, err
	}

	var tpl string
	if args.Template != "" {
		path, err := s.resolvePath(args.Template)
		if err != nil {
			return nil, FitRenderOutput{}, fmt.Errorf("template path rejected: %w", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, FitRenderOutput{}, fmt.Errorf("failed to read template: %w", err)
		}
		tpl = string(data)
	}

	r, err := simulation.Render(sc, tpl)
	if err != nil {
		return nil, FitRenderOutput{}, err
	}

	path := make([][3]int, len(r.Port.Path))
	for i, n := range r.Port.Path {
		path[i] = [3]int{n.X, n.Y, n.Z}
	}
	return nil, FitRenderOutput{
		Source:     r.Source,
		Hash:       r.Hash,
		Dims:       [3]int{r.Grid.NX(), r.Grid.NY(), r.Grid.NZ()},
		PortPath:   path,
		FeedOffset: r.Port.FeedOffset(r.Grid),
		FeedAxis:   r.Port.FeedAxis(),
	}, nil
}

// outputsFor maps the requested formats onto simulation outputs.
func outputsFor(dir string, formats []string) (simulation.Outputs, error) {
	out := simulation.Outputs{Dir: dir}
	if len(formats) == 0 {
		formats = []string{"csv", "archive"}
	}
	for _, f := range formats {
		switch f {
		case "csv":
			out.CSV = true
		case "archive":
			out.Archive = true
		case "png", "svg":
			if out.Plot && out.PlotExt != "."+f {
				return out, fmt.Errorf("only one plot format may be requested")
			}
			out.Plot = true
			out.PlotExt = "." + f
		default:
			return out, fmt.Errorf("unknown format %q (valid: csv, png, svg, archive)", f)
		}
	}
	return out, nil
}

// handleFitSimulate implements the fit_simulate tool.
func (s *Server) handleFitSimulate(ctx context.Context, req *sdk.CallToolRequest, args FitSimulateInput) (_ *sdk.CallToolResult, _ FitSimulateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolSimulate, start, retErr, sanitizeToolParams(ratelimit.ToolSimulate, map[string]interface{}{
			"scenario": args.Scenario, "steps": args.Steps, "output_dir": args.OutputDir, "formats": args.Formats,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolSimulate); err != nil {
		return nil, FitSimulateOutput{}, err
	}

	sc, err := s.loadScenario(args.Scenario)
	if err != nil {
		return nil, FitSimulateOutput{}, err
	}
	if args.Steps < 0 {
		return nil, FitSimulateOutput{}, fmt.Errorf("steps must be non-negative, got %d", args.Steps)
	}
	if args.Steps > 0 {
		sc.Steps = args.Steps
	}
	if sc.Steps > constants.MaxMCPSteps {
		return nil, FitSimulateOutput{}, fmt.Errorf("steps %d exceeds the limit of %d", sc.Steps, constants.MaxMCPSteps)
	}

	dir := s.runsDir()
	if args.OutputDir != "" {
		dir, err = s.resolvePath(args.OutputDir)
		if err != nil {
			return nil, FitSimulateOutput{}, fmt.Errorf("output path rejected: %w", err)
		}
	}
	out, err := outputsFor(dir, args.Formats)
	if err != nil {
		return nil, FitSimulateOutput{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.runner.Run(ctx, sc, out)
	if err != nil {
		return nil, FitSimulateOutput{}, fmt.Errorf("simulation failed: %w", err)
	}

	preview := res.Output
	if len(preview) > previewSamples {
		preview = preview[:previewSamples]
	}
	return nil, FitSimulateOutput{
		SessionID:   res.SessionID,
		Backend:     res.Backend,
		Dims:        res.Dims,
		PortLength:  res.PortLength,
		Steps:       res.Steps,
		Stats:       res.Stats,
		Summary:     res.Summary,
		Preview:     preview,
		CSVPath:     res.CSVPath,
		PlotPath:    res.PlotPath,
		ArchivePath: res.ArchivePath,
		Message: fmt.Sprintf("Ran %d steps on %dx%dx%d grid (%s backend, %.2f MCells/s)",
			res.Steps, res.Dims[0], res.Dims[1], res.Dims[2], res.Backend, res.Stats.MCellsPerSecond()),
	}, nil
}

// handleFitHistory implements the fit_history tool.
func (s *Server) handleFitHistory(ctx context.Context, req *sdk.CallToolRequest, args FitHistoryInput) (_ *sdk.CallToolResult, _ FitHistoryOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolHistory, start, retErr, sanitizeToolParams(ratelimit.ToolHistory, map[string]interface{}{
			"limit": args.Limit, "builds": args.Builds,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolHistory); err != nil {
		return nil, FitHistoryOutput{}, err
	}

	if s.ledger == nil {
		return nil, FitHistoryOutput{}, errors.New("history is disabled (history.enabled: false)")
	}

	limit := args.Limit
	if limit <= 0 {
		limit = constants.DefaultHistoryLimit
	}
	if limit > constants.MaxHistoryLimit {
		limit = constants.MaxHistoryLimit
	}

	var out FitHistoryOutput
	if args.Builds {
		builds, err := s.ledger.RecentBuilds(ctx, limit)
		if err != nil {
			return nil, FitHistoryOutput{}, fmt.Errorf("failed to list builds: %w", err)
		}
		for _, b := range builds {
			out.Builds = append(out.Builds, buildSummary(b))
		}
		out.Count = len(out.Builds)
		return nil, out, nil
	}

	runs, err := s.ledger.RecentRuns(ctx, limit)
	if err != nil {
		return nil, FitHistoryOutput{}, fmt.Errorf("failed to list runs: %w", err)
	}
	for _, r := range runs {
		out.Runs = append(out.Runs, runSummary(r))
	}
	out.Count = len(out.Runs)
	return nil, out, nil
}
