// Package toolchain invokes the external per-platform build tool.
//
// The tool is an opaque collaborator: slipway passes the compile target,
// build profile, and extra flags, then consumes the exit status and the
// binary the tool leaves in its output tree. Stderr is captured for
// diagnostics.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
)

// Result is the outcome of one tool invocation.
type Result struct {
	// ExitCode is the process exit code (0 on success).
	ExitCode int
	// StderrBytes is the captured stderr output.
	StderrBytes []byte
}

// Runner abstracts process execution for testing.
type Runner interface {
	Run(ctx context.Context, argv []string, env []string) (*Result, error)
}

// Config configures a Toolchain.
type Config struct {
	// Command is the build tool binary (e.g. "cargo").
	Command string
	// OutRoot is the tool's output tree root (default "target").
	// Built binaries are expected at {OutRoot}/{target}/{profile}/{binary}.
	OutRoot string
	// Runner overrides process execution (for testing). Nil uses exec.
	Runner Runner
}

// BuildRequest describes one platform build invocation.
type BuildRequest struct {
	// Target is the compile target triple.
	Target string
	// Profile is the build profile (e.g. "release").
	Profile string
	// Flags are extra flags appended after target and profile.
	Flags []string
}

// Toolchain runs the external build tool for one pipeline.
type Toolchain struct {
	command string
	outRoot string
	runner  Runner
}

// New creates a Toolchain from config.
func New(cfg Config) (*Toolchain, error) {
	if cfg.Command == "" {
		return nil, errors.New("toolchain command must be non-empty")
	}
	outRoot := cfg.OutRoot
	if outRoot == "" {
		outRoot = "target"
	}
	runner := cfg.Runner
	if runner == nil {
		runner = &execRunner{}
	}
	return &Toolchain{command: cfg.Command, outRoot: outRoot, runner: runner}, nil
}

// Setup runs a platform prerequisite command (argv form).
// A non-zero exit is returned as an error; it is fatal to the calling job only.
func (t *Toolchain) Setup(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return nil
	}
	res, err := t.runner.Run(ctx, argv, os.Environ())
	if err != nil {
		return fmt.Errorf("setup %s: %w", argv[0], err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("setup %s exited %d: %s", argv[0], res.ExitCode, stderrExcerpt(res.StderrBytes))
	}
	return nil
}

// Build invokes the tool for one platform and returns its result.
// A non-zero exit is returned as an error carrying a stderr excerpt.
func (t *Toolchain) Build(ctx context.Context, req BuildRequest) (*Result, error) {
	argv := []string{t.command, "build", "--target", req.Target}
	if req.Profile != "" {
		argv = append(argv, "--profile", req.Profile)
	}
	argv = append(argv, req.Flags...)

	res, err := t.runner.Run(ctx, argv, os.Environ())
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", req.Target, err)
	}
	if res.ExitCode != 0 {
		return res, fmt.Errorf("build %s exited %d: %s", req.Target, res.ExitCode, stderrExcerpt(res.StderrBytes))
	}
	return res, nil
}

// BinaryPath returns where the tool leaves the built binary for a target.
func (t *Toolchain) BinaryPath(target, profile, binaryName string, windows bool) string {
	name := binaryName
	if windows {
		name += ".exe"
	}
	if profile == "" {
		profile = "release"
	}
	return filepath.Join(t.outRoot, target, profile, name)
}

// stderrExcerpt returns the last few lines of stderr for error messages.
// Build tools tend to put the actionable failure at the end of the stream.
func stderrExcerpt(stderr []byte) string {
	s := strings.TrimSpace(string(stderr))
	if s == "" {
		return "(no stderr)"
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, "\n")
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run starts argv[0] with argv[1:] and waits for exit.
func (r *execRunner) Run(ctx context.Context, argv []string, env []string) (*Result, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty argv")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = env

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &Result{StderrBytes: stderr.Bytes()}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
				result.ExitCode = status.ExitStatus()
			} else {
				result.ExitCode = -1
			}
			return result, nil
		}
		return nil, fmt.Errorf("start %s: %w", argv[0], err)
	}

	result.ExitCode = 0
	return result, nil
}
