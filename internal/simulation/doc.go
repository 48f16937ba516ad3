// Package simulation runs scenarios end to end: it resolves the port,
// renders the kernel, opens a session through the session manager, steps
// the excitation through it and writes the requested outputs.
//
// Both the CLI and the MCP server drive simulations through a Runner, so a
// scenario produces the same CSV, plot and archive whichever surface ran it.
//
// Usage:
//
//	m, _ := session.NewManager(session.ManagerConfig{Backend: session.BackendInterp})
//	r := simulation.NewRunner(m, logger)
//	res, err := r.Run(ctx, sc, simulation.Outputs{Dir: "runs", CSV: true})
package simulation
