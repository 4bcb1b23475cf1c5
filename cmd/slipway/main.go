// Package main provides the slipway CLI entrypoint.
//
// All commands except `release` are read-only.
//
// Usage:
//
//	slipway <command> [options]
//
// Exit codes for `release`:
//   - 0: every unit of work succeeded
//   - 1: at least one platform build failed
//   - 2: configuration or version-resolution failure
//   - 3: builds succeeded, distribution did not
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/slipway-dev/slipway/cli/cmd"
	"github.com/slipway-dev/slipway/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "slipway",
		Usage:          "Multi-platform release pipeline CLI",
		Version:        fmt.Sprintf("%s (commit: %s)", types.ToolVersion, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.ReleaseCommand(),
			cmd.PlanCommand(),
			cmd.HistoryCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		// This branch handles unexpected errors that weren't wrapped.
		os.Exit(1)
	}
}

// exitErrHandler handles errors from the CLI, preserving exit codes from
// cli.Exit(). Release outcome codes must reach the caller unchanged.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	// Check for ExitCoder (from cli.Exit), handles wrapped errors
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// Only print if there's a real message (not just "exit status N")
		// cli.Exit("", N).Error() returns "exit status N", so skip those
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	// Unexpected error - print and exit with code 1
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
