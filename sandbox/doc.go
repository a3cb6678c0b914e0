// Package sandbox runs diagram scripts in isolated containers.
//
// Every run gets a fresh workspace directory holding diagram_code.py. The
// workspace is bind-mounted into the container, the script runs there, and
// the produced image is found by probing "<name>.<format>" and then
// "diagram.<format>". Workspaces are never removed so the caller can read
// the image after Run returns.
//
// Run never fails: write errors, launch errors and timeouts are all
// reported in Result.Error, and a non-zero exit status only clears
// Result.OK.
//
// Backends are docker and podman (CLI), docker-api (Engine API) and local
// (host interpreter, development only).
//
// Usage:
//
//	runner, err := sandbox.NewRunner(logger, cfg)
//	result := runner.Run(ctx, sandbox.Request{
//	    Script:     script,
//	    OutputName: "diagram",
//	    Format:     sandbox.FormatPNG,
//	})
package sandbox
